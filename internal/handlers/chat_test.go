package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plan-chat-backend/internal/llm"
	"plan-chat-backend/internal/models"
	"plan-chat-backend/internal/repository"
	"plan-chat-backend/internal/services"
)

const (
	mockModel   = "mock-echo"
	brokenModel = "broken-1"
)

type failingProvider struct{}

func (failingProvider) Name() string { return "broken" }

func (failingProvider) GenerateResponse(ctx context.Context, history []models.ChatMessage, modelID string) (string, error) {
	return "", errors.New("quota exceeded")
}

func (failingProvider) GenerateTitle(ctx context.Context, content, modelID string) (string, error) {
	return "", errors.New("quota exceeded")
}

func newTestHandler(t *testing.T) *ChatHandler {
	t.Helper()

	catalog, err := llm.NewCatalog([]models.ModelInfo{
		{ID: mockModel, Name: "Mock Echo", Provider: llm.ProviderMock},
		{ID: brokenModel, Name: "Broken", Provider: "broken"},
	}, nil)
	require.NoError(t, err)

	registry := llm.NewRegistry(catalog, llm.ProviderMock)
	registry.Register(llm.ProviderMock, llm.MockFactory("mock"))
	registry.Register("broken", func(ctx context.Context, c *llm.Catalog) (llm.Provider, error) {
		return failingProvider{}, nil
	})

	svc := services.NewChatService(repository.NewChatRepo(), registry, nil)
	return NewChatHandler(svc)
}

func newTestRouter(h *ChatHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/chats", h.List)
	r.Post("/chats", h.Create)
	r.Get("/chats/{id}", h.Get)
	r.Delete("/chats/{id}", h.Delete)
	r.Get("/chats/{id}/messages", h.ListMessages)
	r.Post("/chats/{id}/messages", h.SendMessage)
	r.Get("/models", h.ListModels)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-1")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error
}

func createChat(t *testing.T, h http.Handler, content string) models.CreateChatResponse {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/chats", models.SendMessageRequest{Content: content, Model: mockModel})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp models.CreateChatResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestChatHandler_CreateAndList(t *testing.T) {
	router := newTestRouter(newTestHandler(t))

	created := createChat(t, router, "Plan my product launch")
	require.NotNil(t, created.Chat)
	assert.NotEqual(t, models.PlaceholderTitle, created.Chat.Title)
	require.Len(t, created.Messages, 2)
	assert.Equal(t, models.RoleUser, created.Messages[0].Role)
	assert.Equal(t, models.RoleAssistant, created.Messages[1].Role)

	rr := do(t, router, http.MethodGet, "/chats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var chats []models.Chat
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &chats))
	require.Len(t, chats, 1)
	assert.Equal(t, created.Chat.ID, chats[0].ID)

	rr = do(t, router, http.MethodGet, "/chats/"+created.Chat.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestChatHandler_Create_InvalidModel(t *testing.T) {
	router := newTestRouter(newTestHandler(t))

	rr := do(t, router, http.MethodPost, "/chats", models.SendMessageRequest{Content: "hi", Model: "gpt-9"})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	apiErr := decodeError(t, rr)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	assert.Equal(t, "Invalid model. Allowed models: mock-echo, broken-1", apiErr.Message)
	assert.Equal(t, "req-1", apiErr.RequestID)
}

func TestChatHandler_Create_EmptyContent(t *testing.T) {
	router := newTestRouter(newTestHandler(t))

	rr := do(t, router, http.MethodPost, "/chats", models.SendMessageRequest{Content: "", Model: mockModel})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeError(t, rr).Fields, "content")
}

func TestChatHandler_Create_BadBody(t *testing.T) {
	router := newTestRouter(newTestHandler(t))

	req := httptest.NewRequest(http.MethodPost, "/chats", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChatHandler_Create_UpstreamFailure(t *testing.T) {
	router := newTestRouter(newTestHandler(t))

	rr := do(t, router, http.MethodPost, "/chats", models.SendMessageRequest{Content: "hi", Model: brokenModel})
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	apiErr := decodeError(t, rr)
	assert.Equal(t, "AI_ERROR", apiErr.Code)
	assert.Equal(t, "Failed to get response from LLM", apiErr.Message)
	assert.Contains(t, apiErr.Details, "quota exceeded")

	rr = do(t, router, http.MethodGet, "/chats", nil)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestChatHandler_NotFound(t *testing.T) {
	router := newTestRouter(newTestHandler(t))

	for _, tc := range []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodGet, "/chats/missing", nil},
		{http.MethodDelete, "/chats/missing", nil},
		{http.MethodGet, "/chats/missing/messages", nil},
		{http.MethodPost, "/chats/missing/messages", models.SendMessageRequest{Content: "hi", Model: mockModel}},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rr := do(t, router, tc.method, tc.path, tc.body)
			require.Equal(t, http.StatusNotFound, rr.Code)
			apiErr := decodeError(t, rr)
			assert.Equal(t, "NOT_FOUND", apiErr.Code)
			assert.Equal(t, "Chat not found", apiErr.Message)
		})
	}
}

func TestChatHandler_SendMessageAndSegments(t *testing.T) {
	router := newTestRouter(newTestHandler(t))
	created := createChat(t, router, "hello")

	rr := do(t, router, http.MethodPost, "/chats/"+created.Chat.ID+"/messages",
		models.SendMessageRequest{Content: "Draft a project plan with workstreams", Model: mockModel})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var sent models.SendMessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sent))
	assert.Equal(t, "Draft a project plan with workstreams", sent.UserMessage.Content)
	assert.Contains(t, sent.AssistantMessage.Content, "```project-plan")

	rr = do(t, router, http.MethodGet, "/chats/"+created.Chat.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var plain []models.Message
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &plain))
	assert.Len(t, plain, 4)

	rr = do(t, router, http.MethodGet, "/chats/"+created.Chat.ID+"/messages?segments=true", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var withSegments []struct {
		ID       string `json:"id"`
		Role     string `json:"role"`
		Segments []struct {
			Text string               `json:"text"`
			Plan *models.ProjectPlan `json:"plan"`
		} `json:"segments"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &withSegments))
	require.Len(t, withSegments, 4)

	last := withSegments[3]
	assert.Equal(t, "assistant", last.Role)
	var plans int
	for _, s := range last.Segments {
		if s.Plan != nil {
			plans++
			assert.NotEmpty(t, s.Plan.Workstreams)
		}
	}
	assert.Equal(t, 1, plans)
}

func TestChatHandler_SendMessage_UpstreamFailureKeepsUserMessage(t *testing.T) {
	router := newTestRouter(newTestHandler(t))
	created := createChat(t, router, "hello")

	rr := do(t, router, http.MethodPost, "/chats/"+created.Chat.ID+"/messages",
		models.SendMessageRequest{Content: "again", Model: brokenModel})
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = do(t, router, http.MethodGet, "/chats/"+created.Chat.ID+"/messages", nil)
	var msgs []models.Message
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &msgs))
	require.Len(t, msgs, 3)
	assert.Equal(t, "again", msgs[2].Content)
}

func TestChatHandler_Delete(t *testing.T) {
	router := newTestRouter(newTestHandler(t))
	created := createChat(t, router, "hello")

	rr := do(t, router, http.MethodDelete, "/chats/"+created.Chat.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())

	rr = do(t, router, http.MethodGet, "/chats/"+created.Chat.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestChatHandler_ListModels(t *testing.T) {
	router := newTestRouter(newTestHandler(t))

	rr := do(t, router, http.MethodGet, "/models", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var list []models.ModelInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, models.ModelInfo{ID: mockModel, Name: "Mock Echo", Provider: llm.ProviderMock}, list[0])
}

func TestHandleServiceError_Unknown(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rr := httptest.NewRecorder()
	handleServiceError(rr, req, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, rr).Code)
}
