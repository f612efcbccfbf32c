package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"plan-chat-backend/internal/models"
	"plan-chat-backend/internal/plan"
)

var planIntentRegexp = regexp.MustCompile(`(?i)\b(project plan|plan|workstreams?|deliverables?)\b`)

// MockProvider answers offline. It echoes the newest user message and, for
// planning requests, attaches a project-plan block.
type MockProvider struct {
	prefix string
}

func MockFactory(prefix string) Factory {
	return func(ctx context.Context, catalog *Catalog) (Provider, error) {
		return NewMockProvider(prefix), nil
	}
}

func NewMockProvider(prefix string) *MockProvider {
	return &MockProvider{prefix: prefix}
}

func (m *MockProvider) Name() string { return ProviderMock }

func (m *MockProvider) GenerateResponse(ctx context.Context, history []models.ChatMessage, modelID string) (string, error) {
	last, err := lastUserMessage(history)
	if err != nil {
		return "", &GenerationError{Provider: ProviderMock, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return "", &GenerationError{Provider: ProviderMock, Err: err}
	}

	reply := fmt.Sprintf("[%s] You said: %s", m.prefix, last.Content)
	if !planIntentRegexp.MatchString(last.Content) {
		return reply, nil
	}

	body, err := json.MarshalIndent(mockPlan(last.Content), "", "  ")
	if err != nil {
		return "", &GenerationError{Provider: ProviderMock, Err: err}
	}
	return reply + "\n\n" + plan.Fence(string(body)) + "\n\nLet me know what to refine.", nil
}

func (m *MockProvider) GenerateTitle(ctx context.Context, content, modelID string) (string, error) {
	words := strings.Fields(content)
	if len(words) == 0 {
		return "", &GenerationError{Provider: ProviderMock, Err: fmt.Errorf("nothing to title")}
	}
	if len(words) > 5 {
		words = words[:5]
	}
	return TruncateTitle(strings.Join(words, " ")), nil
}

func mockPlan(goal string) models.ProjectPlan {
	return models.ProjectPlan{
		Workstreams: []models.Workstream{
			{
				Title:       "Discovery",
				Description: "Clarify scope for: " + goal,
				Deliverables: []models.Deliverable{
					{Title: "Scope brief", Description: "One-page summary of goals and constraints."},
				},
			},
			{
				Title:       "Execution",
				Description: "Carry out the agreed work.",
			},
		},
	}
}
