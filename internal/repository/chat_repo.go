package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"plan-chat-backend/internal/models"
)

var ErrNotFound = errors.New("not found")

type chatEntry struct {
	chat     models.Chat
	seq      uint64
	messages []models.Message
}

// ChatRepo keeps chats and their messages in process memory. It is safe for
// concurrent use and never hands out pointers into its own state.
type ChatRepo struct {
	mu    sync.RWMutex
	chats map[string]*chatEntry
	seq   uint64
}

func NewChatRepo() *ChatRepo {
	return &ChatRepo{chats: make(map[string]*chatEntry)}
}

// CreateChat registers a chat with an empty message list. An existing chat
// with the same ID is replaced.
func (r *ChatRepo) CreateChat(ctx context.Context, chat *models.Chat) (*models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	r.chats[chat.ID] = &chatEntry{chat: *chat, seq: r.seq}

	c := *chat
	return &c, nil
}

func (r *ChatRepo) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.chats[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := e.chat
	return &c, nil
}

// ListChats returns all chats, newest first. Chats sharing a timestamp are
// ordered by reverse insertion so a later chat always sorts first.
func (r *ChatRepo) ListChats(ctx context.Context) ([]*models.Chat, error) {
	r.mu.RLock()
	entries := make([]chatEntry, 0, len(r.chats))
	for _, e := range r.chats {
		entries = append(entries, chatEntry{chat: e.chat, seq: e.seq})
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.chat.CreatedAt.Equal(b.chat.CreatedAt) {
			return a.chat.CreatedAt.After(b.chat.CreatedAt)
		}
		return a.seq > b.seq
	})

	chats := make([]*models.Chat, len(entries))
	for i := range entries {
		c := entries[i].chat
		chats[i] = &c
	}
	return chats, nil
}

// DeleteChat removes a chat together with its messages and reports whether
// the chat existed.
func (r *ChatRepo) DeleteChat(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.chats[id]; !ok {
		return false, nil
	}
	delete(r.chats, id)
	return true, nil
}

func (r *ChatRepo) UpdateChatTitle(ctx context.Context, id, title string) (*models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.chats[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.chat.Title = title
	c := e.chat
	return &c, nil
}

// AddMessage appends to the chat's message list. It fails with ErrNotFound
// when the chat is gone so a message can never outlive its chat.
func (r *ChatRepo) AddMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.chats[msg.ChatID]
	if !ok {
		return nil, ErrNotFound
	}
	e.messages = append(e.messages, *msg)

	m := *msg
	return &m, nil
}

// ListMessages returns the chat's messages in insertion order. Unknown chats
// yield an empty list.
func (r *ChatRepo) ListMessages(ctx context.Context, chatID string) ([]*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.chats[chatID]
	if !ok {
		return []*models.Message{}, nil
	}

	msgs := make([]*models.Message, len(e.messages))
	for i := range e.messages {
		m := e.messages[i]
		msgs[i] = &m
	}
	return msgs, nil
}
