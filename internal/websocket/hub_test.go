package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plan-chat-backend/internal/models"
)

func dial(t *testing.T, srv *httptest.Server, user string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?user=" + user
	return websocket.DefaultDialer.Dial(url, nil)
}

func TestHub_RejectsUnknownUser(t *testing.T) {
	hub := NewHub([]string{"richard"})
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	_, resp, err := dial(t, srv, "erlich")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestHub_BroadcastsEvents(t *testing.T) {
	hub := NewHub([]string{"richard", "gilfoyle"})
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	events := make(chan models.ChatEvent, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx, events)
		close(done)
	}()

	a, _, err := dial(t, srv, "richard")
	require.NoError(t, err)
	defer a.Close()
	b, _, err := dial(t, srv, "gilfoyle")
	require.NoError(t, err)
	defer b.Close()

	require.Eventually(t, func() bool { return hub.ConnectionCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	events <- models.ChatEvent{Type: models.EventChatDeleted, ChatID: "c1"}

	for _, conn := range []*websocket.Conn{a, b} {
		var got models.ChatEvent
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, models.EventChatDeleted, got.Type)
		assert.Equal(t, "c1", got.ChatID)
	}

	cancel()
	<-done
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestHub_UnregistersOnClientClose(t *testing.T) {
	hub := NewHub([]string{"dinesh"})
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn, _, err := dial(t, srv, "dinesh")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_DropsConnectionOnWriteFailure(t *testing.T) {
	hub := NewHub([]string{"richard"})
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	client, _, err := dial(t, srv, "richard")
	require.NoError(t, err)
	defer client.Close()
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Close the server side underneath the hub so the next write fails.
	hub.mu.RLock()
	for conn := range hub.connections {
		conn.UnderlyingConn().Close()
	}
	hub.mu.RUnlock()

	hub.broadcast([]byte(`{"type":"chat_deleted","chatId":"c1"}`))
	assert.Equal(t, 0, hub.ConnectionCount())
}
