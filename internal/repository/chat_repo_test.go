package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plan-chat-backend/internal/models"
)

func newChat(id string, createdAt time.Time) *models.Chat {
	return &models.Chat{ID: id, Title: models.PlaceholderTitle, CreatedAt: createdAt}
}

func newMessage(id, chatID string, role models.Role, content string) *models.Message {
	return &models.Message{ID: id, ChatID: chatID, Role: role, Content: content, CreatedAt: time.Now()}
}

func TestChatRepo_ListChats_NewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepo()
	base := time.Now()

	_, _ = repo.CreateChat(ctx, newChat("a", base))
	_, _ = repo.CreateChat(ctx, newChat("b", base.Add(time.Second)))
	_, _ = repo.CreateChat(ctx, newChat("c", base.Add(-time.Second)))

	chats, err := repo.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{chats[0].ID, chats[1].ID, chats[2].ID})
}

func TestChatRepo_ListChats_TiesFavorLaterInsert(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepo()
	ts := time.Now()

	for _, id := range []string{"first", "second", "third"} {
		_, _ = repo.CreateChat(ctx, newChat(id, ts))
	}

	chats, err := repo.ListChats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "third", chats[0].ID)
	assert.Equal(t, "second", chats[1].ID)
	assert.Equal(t, "first", chats[2].ID)
}

func TestChatRepo_GetChat_Missing(t *testing.T) {
	repo := NewChatRepo()

	chat, err := repo.GetChat(context.Background(), "nope")
	assert.Nil(t, chat)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChatRepo_DeleteChat_RemovesMessages(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepo()

	_, _ = repo.CreateChat(ctx, newChat("chat-1", time.Now()))
	_, err := repo.AddMessage(ctx, newMessage("m1", "chat-1", models.RoleUser, "hello"))
	require.NoError(t, err)

	deleted, err := repo.DeleteChat(ctx, "chat-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	msgs, err := repo.ListMessages(ctx, "chat-1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = repo.GetChat(ctx, "chat-1")
	assert.ErrorIs(t, err, ErrNotFound)

	deleted, err = repo.DeleteChat(ctx, "chat-1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestChatRepo_AddMessage_UnknownChat(t *testing.T) {
	repo := NewChatRepo()

	_, err := repo.AddMessage(context.Background(), newMessage("m1", "ghost", models.RoleUser, "hi"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChatRepo_ListMessages_InsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepo()
	_, _ = repo.CreateChat(ctx, newChat("chat-1", time.Now()))

	for i := 0; i < 5; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		_, err := repo.AddMessage(ctx, newMessage(fmt.Sprintf("m%d", i), "chat-1", role, fmt.Sprintf("msg %d", i)))
		require.NoError(t, err)
	}

	msgs, err := repo.ListMessages(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for i, m := range msgs {
		assert.Equal(t, fmt.Sprintf("m%d", i), m.ID)
	}
}

func TestChatRepo_UpdateChatTitle(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepo()
	_, _ = repo.CreateChat(ctx, newChat("chat-1", time.Now()))

	updated, err := repo.UpdateChatTitle(ctx, "chat-1", "Launch plan")
	require.NoError(t, err)
	assert.Equal(t, "Launch plan", updated.Title)

	got, err := repo.GetChat(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "Launch plan", got.Title)

	missing, err := repo.UpdateChatTitle(ctx, "ghost", "x")
	assert.Nil(t, missing)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChatRepo_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepo()
	_, _ = repo.CreateChat(ctx, newChat("chat-1", time.Now()))

	got, err := repo.GetChat(ctx, "chat-1")
	require.NoError(t, err)
	got.Title = "mutated"

	again, err := repo.GetChat(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, models.PlaceholderTitle, again.Title)
}

func TestChatRepo_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepo()
	_, _ = repo.CreateChat(ctx, newChat("chat-1", time.Now()))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = repo.AddMessage(ctx, newMessage(fmt.Sprintf("m%d", i), "chat-1", models.RoleUser, "x"))
		}(i)
	}
	wg.Wait()

	msgs, err := repo.ListMessages(ctx, "chat-1")
	require.NoError(t, err)
	assert.Len(t, msgs, 50)
}
