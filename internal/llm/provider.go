package llm

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"plan-chat-backend/internal/models"
)

// Provider tags.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// MaxTitleLength caps chat titles, in characters.
const MaxTitleLength = 50

// Provider is one LLM backend. Implementations are shared by all in-flight
// requests and must be safe for concurrent use.
type Provider interface {
	Name() string
	// GenerateResponse produces the assistant reply for history, which is
	// ordered oldest first and ends with the newest user message.
	GenerateResponse(ctx context.Context, history []models.ChatMessage, modelID string) (string, error)
	// GenerateTitle produces a short title for a chat seeded with content.
	GenerateTitle(ctx context.Context, content, modelID string) (string, error)
}

// GenerationError reports a backend or network failure.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// UnregisteredProviderError means a provider tag has no factory. It points
// at a configuration defect, not a bad request.
type UnregisteredProviderError struct {
	Provider string
}

func (e *UnregisteredProviderError) Error() string {
	return fmt.Sprintf("no LLM provider registered for %q", e.Provider)
}

// TruncateTitle trims whitespace and caps s at MaxTitleLength characters.
func TruncateTitle(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= MaxTitleLength {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:MaxTitleLength]))
}

// cleanTitle normalizes raw model output into a title: first line only,
// surrounding quotes and markdown emphasis removed.
func cleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	title = strings.Trim(title, " \t\"'`*#")
	return TruncateTitle(title)
}

func titlePrompt(content string) string {
	return fmt.Sprintf("Generate a very short title (maximum 5 words) for a chat that starts with this message. Only respond with the title, nothing else:\n\n%q", content)
}

func lastUserMessage(history []models.ChatMessage) (models.ChatMessage, error) {
	if len(history) == 0 {
		return models.ChatMessage{}, fmt.Errorf("conversation history is empty")
	}
	last := history[len(history)-1]
	if last.Role != models.RoleUser {
		return models.ChatMessage{}, fmt.Errorf("conversation must end with a user message, got %q", last.Role)
	}
	return last, nil
}
