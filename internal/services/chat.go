package services

import (
	"context"
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"plan-chat-backend/internal/llm"
	"plan-chat-backend/internal/models"
	"plan-chat-backend/internal/repository"
)

type chatStore interface {
	CreateChat(ctx context.Context, chat *models.Chat) (*models.Chat, error)
	GetChat(ctx context.Context, id string) (*models.Chat, error)
	ListChats(ctx context.Context) ([]*models.Chat, error)
	DeleteChat(ctx context.Context, id string) (bool, error)
	UpdateChatTitle(ctx context.Context, id, title string) (*models.Chat, error)
	AddMessage(ctx context.Context, msg *models.Message) (*models.Message, error)
	ListMessages(ctx context.Context, chatID string) ([]*models.Message, error)
}

type providerRegistry interface {
	IsValidModel(modelID string) bool
	ListModels() []models.ModelInfo
	ListModelIDs() []string
	ResolveProvider(ctx context.Context, modelID string) (llm.Provider, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, event models.ChatEvent) error
}

// ChatService runs the chat use cases over a store and the provider
// registry.
type ChatService struct {
	store    chatStore
	registry providerRegistry
	events   eventPublisher
	locks    *chatLocks

	now   func() time.Time
	newID func() string
}

// NewChatService wires the service. events may be nil.
func NewChatService(store chatStore, registry providerRegistry, events eventPublisher) *ChatService {
	return &ChatService{
		store:    store,
		registry: registry,
		events:   events,
		locks:    newChatLocks(),
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

func (s *ChatService) ListModels() []models.ModelInfo {
	return s.registry.ListModels()
}

func (s *ChatService) ListChats(ctx context.Context) ([]*models.Chat, error) {
	return s.store.ListChats(ctx)
}

func (s *ChatService) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	chat, err := s.store.GetChat(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &ChatNotFoundError{ChatID: id}
	}
	return chat, err
}

// DeleteChat removes a chat and its messages, reporting whether it existed.
func (s *ChatService) DeleteChat(ctx context.Context, id string) (bool, error) {
	deleted, err := s.store.DeleteChat(ctx, id)
	if err != nil || !deleted {
		return deleted, err
	}

	s.publish(ctx, models.ChatEvent{Type: models.EventChatDeleted, ChatID: id})
	return true, nil
}

func (s *ChatService) ListMessages(ctx context.Context, chatID string) ([]*models.Message, error) {
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, chatID)
}

// CreateChat starts a conversation with content and returns the chat with
// its first exchange. If the reply cannot be generated the chat is removed
// again, so callers never see a chat without an answer.
func (s *ChatService) CreateChat(ctx context.Context, req models.SendMessageRequest) (*models.CreateChatResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	provider, err := s.registry.ResolveProvider(ctx, req.Model)
	if err != nil {
		return nil, err
	}

	chat, err := s.store.CreateChat(ctx, &models.Chat{
		ID:        s.newID(),
		Title:     models.PlaceholderTitle,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}

	userMsg, err := s.store.AddMessage(ctx, s.newMessage(chat.ID, models.RoleUser, req.Content))
	if err != nil {
		s.rollback(ctx, chat.ID)
		return nil, err
	}

	reply, err := provider.GenerateResponse(ctx, []models.ChatMessage{
		{Role: models.RoleUser, Content: req.Content},
	}, req.Model)
	if err != nil {
		s.rollback(ctx, chat.ID)
		log.Error().Err(err).Str("chat_id", chat.ID).Str("model", req.Model).Msg("response generation failed; chat rolled back")
		return nil, &UpstreamGenerationError{Err: err}
	}

	assistantMsg, err := s.store.AddMessage(ctx, s.newMessage(chat.ID, models.RoleAssistant, reply))
	if err != nil {
		return nil, s.storeErr(chat.ID, err)
	}

	title := s.generateTitle(ctx, provider, req.Content, req.Model)
	if updated, err := s.store.UpdateChatTitle(ctx, chat.ID, title); err == nil {
		chat = updated
	} else {
		chat.Title = title
	}

	messages := []*models.Message{userMsg, assistantMsg}
	s.publish(ctx, models.ChatEvent{Type: models.EventChatCreated, ChatID: chat.ID, Chat: chat, Messages: messages})

	return &models.CreateChatResponse{Chat: chat, Messages: messages}, nil
}

// SendMessage posts content into an existing chat and returns the exchange.
// The user message is kept even if generation fails.
func (s *ChatService) SendMessage(ctx context.Context, chatID string, req models.SendMessageRequest) (*models.SendMessageResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	if _, err := s.GetChat(ctx, chatID); err != nil {
		return nil, err
	}

	provider, err := s.registry.ResolveProvider(ctx, req.Model)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(chatID)
	defer unlock()

	userMsg, err := s.store.AddMessage(ctx, s.newMessage(chatID, models.RoleUser, req.Content))
	if err != nil {
		return nil, s.storeErr(chatID, err)
	}

	stored, err := s.store.ListMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	history := make([]models.ChatMessage, len(stored))
	for i, m := range stored {
		history[i] = models.ChatMessage{Role: m.Role, Content: m.Content}
	}

	reply, err := provider.GenerateResponse(ctx, history, req.Model)
	if err != nil {
		log.Error().Err(err).Str("chat_id", chatID).Str("model", req.Model).Msg("response generation failed; user message kept")
		return nil, &UpstreamGenerationError{Err: err}
	}

	assistantMsg, err := s.store.AddMessage(ctx, s.newMessage(chatID, models.RoleAssistant, reply))
	if err != nil {
		return nil, s.storeErr(chatID, err)
	}

	s.publish(ctx, models.ChatEvent{
		Type:     models.EventMessagesAdded,
		ChatID:   chatID,
		Messages: []*models.Message{userMsg, assistantMsg},
	})

	return &models.SendMessageResponse{UserMessage: userMsg, AssistantMessage: assistantMsg}, nil
}

func (s *ChatService) validate(req models.SendMessageRequest) error {
	if !s.registry.IsValidModel(req.Model) {
		return &InvalidModelError{Model: req.Model, Allowed: s.registry.ListModelIDs()}
	}
	if req.Content == "" {
		return &ValidationError{Fields: map[string]string{"content": "Content is required"}}
	}
	return nil
}

// generateTitle never fails: a failed or empty title falls back to the
// start of the user's content.
func (s *ChatService) generateTitle(ctx context.Context, provider llm.Provider, content, modelID string) string {
	title, err := provider.GenerateTitle(ctx, content, modelID)
	if err == nil {
		if title = llm.TruncateTitle(title); title != "" {
			return title
		}
	}

	log.Warn().Err(err).Str("model", modelID).Msg("title generation failed; using fallback title")
	return FallbackTitle(content)
}

// FallbackTitle is the first MaxTitleLength characters of content, with an
// ellipsis when anything was cut.
func FallbackTitle(content string) string {
	if utf8.RuneCountInString(content) <= llm.MaxTitleLength {
		return content
	}
	return string([]rune(content)[:llm.MaxTitleLength]) + "..."
}

func (s *ChatService) newMessage(chatID string, role models.Role, content string) *models.Message {
	return &models.Message{
		ID:        s.newID(),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	}
}

func (s *ChatService) rollback(ctx context.Context, chatID string) {
	if _, err := s.store.DeleteChat(context.WithoutCancel(ctx), chatID); err != nil {
		log.Error().Err(err).Str("chat_id", chatID).Msg("failed to roll back chat")
	}
}

func (s *ChatService) storeErr(chatID string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &ChatNotFoundError{ChatID: chatID}
	}
	return err
}

func (s *ChatService) publish(ctx context.Context, event models.ChatEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		log.Warn().Err(err).Str("event", event.Type).Str("chat_id", event.ChatID).Msg("failed to publish chat event")
	}
}

// chatLocks serializes writers per chat so two sends to the same chat see
// each other's history.
type chatLocks struct {
	mu    sync.Mutex
	locks map[string]*chatLock
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

func newChatLocks() *chatLocks {
	return &chatLocks{locks: make(map[string]*chatLock)}
}

func (l *chatLocks) lock(chatID string) func() {
	l.mu.Lock()
	cl, ok := l.locks[chatID]
	if !ok {
		cl = &chatLock{}
		l.locks[chatID] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.mu.Lock()

	return func() {
		cl.mu.Unlock()

		l.mu.Lock()
		cl.refs--
		if cl.refs == 0 {
			delete(l.locks, chatID)
		}
		l.mu.Unlock()
	}
}
