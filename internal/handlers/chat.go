package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"plan-chat-backend/internal/models"
	"plan-chat-backend/internal/plan"
)

type chatService interface {
	ListChats(ctx context.Context) ([]*models.Chat, error)
	CreateChat(ctx context.Context, req models.SendMessageRequest) (*models.CreateChatResponse, error)
	GetChat(ctx context.Context, id string) (*models.Chat, error)
	DeleteChat(ctx context.Context, id string) (bool, error)
	ListMessages(ctx context.Context, chatID string) ([]*models.Message, error)
	SendMessage(ctx context.Context, chatID string, req models.SendMessageRequest) (*models.SendMessageResponse, error)
	ListModels() []models.ModelInfo
}

type ChatHandler struct {
	chats chatService
}

func NewChatHandler(chats chatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// messageWithSegments is a message plus its content split into text and
// project plans.
type messageWithSegments struct {
	*models.Message
	Segments []plan.Segment `json:"segments"`
}

func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chats.ListChats(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

func (h *ChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSendRequest(w, r)
	if !ok {
		return
	}

	resp, err := h.chats.CreateChat(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	chat, err := h.chats.GetChat(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.chats.DeleteChat(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Chat not found", r))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMessages returns the chat's messages in order. With ?segments=true
// each message also carries its parsed segments.
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chats.ListMessages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	withSegments, _ := strconv.ParseBool(r.URL.Query().Get("segments"))
	if !withSegments {
		writeJSON(w, http.StatusOK, messages)
		return
	}

	out := make([]messageWithSegments, len(messages))
	for i, m := range messages {
		out[i] = messageWithSegments{Message: m, Segments: plan.Parse(m.Content)}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSendRequest(w, r)
	if !ok {
		return
	}

	resp, err := h.chats.SendMessage(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ChatHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.chats.ListModels())
}

func decodeSendRequest(w http.ResponseWriter, r *http.Request) (models.SendMessageRequest, bool) {
	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return req, false
	}
	return req, true
}
