package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"plan-chat-backend/internal/models"
)

type GeminiProvider struct {
	client   *genai.Client
	catalog  *Catalog
	system   string
	rateChan chan struct{} // Token bucket
}

// GeminiFactory registers the Gemini backend. concurrentReqs bounds the
// number of requests in flight against the API.
func GeminiFactory(apiKey string, concurrentReqs int) Factory {
	return func(ctx context.Context, catalog *Catalog) (Provider, error) {
		return NewGeminiProvider(ctx, apiKey, concurrentReqs, catalog)
	}
}

func NewGeminiProvider(ctx context.Context, apiKey string, concurrentReqs int, catalog *Catalog) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	system, err := SystemPrompt()
	if err != nil {
		client.Close()
		return nil, err
	}

	if concurrentReqs < 1 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiProvider{
		client:   client,
		catalog:  catalog,
		system:   system,
		rateChan: rateChan,
	}, nil
}

func (p *GeminiProvider) Name() string { return ProviderGemini }

func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

// acquireRate blocks until a rate slot is available
func (p *GeminiProvider) acquireRate(ctx context.Context) error {
	select {
	case <-p.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *GeminiProvider) releaseRate() {
	p.rateChan <- struct{}{}
}

func (p *GeminiProvider) GenerateResponse(ctx context.Context, history []models.ChatMessage, modelID string) (string, error) {
	last, err := lastUserMessage(history)
	if err != nil {
		return "", &GenerationError{Provider: ProviderGemini, Err: err}
	}

	if err := p.acquireRate(ctx); err != nil {
		return "", &GenerationError{Provider: ProviderGemini, Err: err}
	}
	defer p.releaseRate()

	backendModel := p.catalog.BackendName(modelID)
	log.Debug().Str("model", backendModel).Int("history", len(history)).Msg("Gemini generate response")

	model := p.client.GenerativeModel(backendModel)
	model.SystemInstruction = genai.NewUserContent(genai.Text(p.system))

	cs := model.StartChat()
	cs.History = toGeminiHistory(history[:len(history)-1])

	start := time.Now()
	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return "", &GenerationError{Provider: ProviderGemini, Err: fmt.Errorf("Gemini API error: %w", err)}
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Warn().Int("candidate", i).Str("finish_reason", cand.FinishReason.String()).Msg("Gemini stopped early")
		}
	}

	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		return "", &GenerationError{Provider: ProviderGemini, Err: errors.New("Gemini returned empty text")}
	}

	log.Debug().Str("model", backendModel).Dur("elapsed", time.Since(start)).Msg("Gemini response received")
	return text, nil
}

func (p *GeminiProvider) GenerateTitle(ctx context.Context, content, modelID string) (string, error) {
	if err := p.acquireRate(ctx); err != nil {
		return "", &GenerationError{Provider: ProviderGemini, Err: err}
	}
	defer p.releaseRate()

	model := p.client.GenerativeModel(p.catalog.BackendName(modelID))
	resp, err := model.GenerateContent(ctx, genai.Text(titlePrompt(content)))
	if err != nil {
		return "", &GenerationError{Provider: ProviderGemini, Err: fmt.Errorf("Gemini API error: %w", err)}
	}

	title := cleanTitle(extractText(resp))
	if title == "" {
		return "", &GenerationError{Provider: ProviderGemini, Err: errors.New("Gemini returned an empty title")}
	}
	return title, nil
}

// toGeminiHistory maps chat roles onto Gemini's vocabulary, where the
// assistant speaks as "model".
func toGeminiHistory(history []models.ChatMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return contents
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
