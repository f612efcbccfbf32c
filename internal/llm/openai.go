package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"plan-chat-backend/internal/models"
)

// OpenAIProvider talks to the Chat Completions API, or any compatible
// backend when a base URL is configured.
type OpenAIProvider struct {
	client  *openai.Client
	catalog *Catalog
	system  string
}

func OpenAIFactory(apiKey, baseURL string) Factory {
	return func(ctx context.Context, catalog *Catalog) (Provider, error) {
		return NewOpenAIProvider(apiKey, baseURL, catalog)
	}
}

func NewOpenAIProvider(apiKey, baseURL string, catalog *Catalog) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	system, err := SystemPrompt()
	if err != nil {
		return nil, err
	}

	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(cfg),
		catalog: catalog,
		system:  system,
	}, nil
}

func (p *OpenAIProvider) Name() string { return ProviderOpenAI }

func (p *OpenAIProvider) GenerateResponse(ctx context.Context, history []models.ChatMessage, modelID string) (string, error) {
	if _, err := lastUserMessage(history); err != nil {
		return "", &GenerationError{Provider: ProviderOpenAI, Err: err}
	}

	backendModel := p.catalog.BackendName(modelID)
	log.Debug().Str("model", backendModel).Int("history", len(history)).Msg("OpenAI generate response")

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.system})
	msgs = append(msgs, toOpenAIMessages(history)...)

	return p.complete(ctx, backendModel, msgs)
}

func (p *OpenAIProvider) GenerateTitle(ctx context.Context, content, modelID string) (string, error) {
	raw, err := p.complete(ctx, p.catalog.BackendName(modelID), []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: titlePrompt(content)},
	})
	if err != nil {
		return "", err
	}

	title := cleanTitle(raw)
	if title == "" {
		return "", &GenerationError{Provider: ProviderOpenAI, Err: errors.New("OpenAI returned an empty title")}
	}
	return title, nil
}

func (p *OpenAIProvider) complete(ctx context.Context, model string, msgs []openai.ChatCompletionMessage) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
	})
	if err != nil {
		return "", &GenerationError{Provider: ProviderOpenAI, Err: fmt.Errorf("OpenAI API error: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return "", &GenerationError{Provider: ProviderOpenAI, Err: errors.New("OpenAI returned no choices")}
	}

	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", &GenerationError{Provider: ProviderOpenAI, Err: errors.New("OpenAI returned empty text")}
	}
	return text, nil
}

func toOpenAIMessages(history []models.ChatMessage) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return msgs
}
