package models

// Chat event types fanned out to websocket clients.
const (
	EventChatCreated   = "chat_created"
	EventMessagesAdded = "messages_added"
	EventChatDeleted   = "chat_deleted"
)

type ChatEvent struct {
	Type     string     `json:"type"`
	ChatID   string     `json:"chatId"`
	Chat     *Chat      `json:"chat,omitempty"`
	Messages []*Message `json:"messages,omitempty"`
}
