package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PlaceholderTitle is the title a chat carries until auto-titling runs.
const PlaceholderTitle = "New Chat"

type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is one turn in a chat. Messages are never edited after creation.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatMessage is a history entry handed to an LLM provider.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ModelInfo describes a model offered to callers.
type ModelInfo struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Provider string `json:"provider" yaml:"provider"`
}

// SendMessageRequest is the payload for creating a chat or posting into one.
type SendMessageRequest struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

type CreateChatResponse struct {
	Chat     *Chat      `json:"chat"`
	Messages []*Message `json:"messages"`
}

type SendMessageResponse struct {
	UserMessage      *Message `json:"userMessage"`
	AssistantMessage *Message `json:"assistantMessage"`
}
