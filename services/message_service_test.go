package services

import (
	"chat-gateway/domain/chat"
	"chat-gateway/errors"
	"chat-gateway/mocks"
	"chat-gateway/repositories"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// setupRecruitmentThread reproduces U1 and U2 joined to recruitment:app-42 backed by c1.
func setupRecruitmentThread(t *testing.T) (*repositories.BadgerStore, *MessageService) {
	t.Helper()
	store := newTestStore(t)
	resolver := NewRoomResolver(store, testLogger())
	resolver.newID = func() string { return "c1" }
	for _, u := range []string{"u1", "u2"} {
		_, err := resolver.Resolve(context.Background(), "recruitment:app-42", u)
		require.NoError(t, err)
	}
	return store, NewMessageService(store, testLogger(), time.Minute, 50)
}

func messageCount(t *testing.T, store repositories.Store, conversationID string) int {
	t.Helper()
	var count int
	err := store.View(context.Background(), func(tx repositories.Tx) error {
		messages, _, err := tx.ListMessages(conversationID, nil, 100)
		count = len(messages)
		return err
	})
	require.NoError(t, err)
	return count
}

func TestMessageService_Persist(t *testing.T) {
	t0 := time.Now().UTC().Add(-time.Minute).Truncate(time.Millisecond)

	t.Run("should persist and fan out unread counters", func(t *testing.T) {
		req := require.New(t)
		store, svc := setupRecruitmentThread(t)

		// When U1 sends m1
		result, err := svc.Persist(context.Background(), chat.PersistMessageCommand{
			ConversationID: "c1", MessageID: "m1", SenderID: "u1", Text: "hello", CreatedAt: &t0,
		})

		// Then the stored record is returned and only U2 has something unread
		req.NoError(err)
		req.False(result.Duplicate)
		req.Equal("hello", result.Message.Content)
		req.Equal("u1", result.Message.SenderID)
		req.Equal(chat.MessageTypeText, result.Message.Type)
		req.True(result.Message.CreatedAt.Equal(t0))
		req.Equal(0, participant(t, store, "c1", "u1").UnreadCount)
		req.Equal(1, participant(t, store, "c1", "u2").UnreadCount)

		err = store.View(context.Background(), func(tx repositories.Tx) error {
			conv, err := tx.GetConversation("c1")
			req.NoError(err)
			req.True(conv.LastMessageAt.Equal(t0))
			_, err = tx.GetMessageRead("m1", "u1")
			return err
		})
		req.NoError(err)
	})

	t.Run("should be idempotent on retried sends", func(t *testing.T) {
		req := require.New(t)
		store, svc := setupRecruitmentThread(t)
		cmd := chat.PersistMessageCommand{
			ConversationID: "c1", MessageID: "m1", SenderID: "u1", Text: "hello", CreatedAt: &t0,
			Attachments: []chat.Attachment{{URL: "https://cdn/cv.pdf"}},
		}

		first, err := svc.Persist(context.Background(), cmd)
		req.NoError(err)

		// When the client retries the same payload after losing the ack
		cmd.Text = "edited on retry"
		second, err := svc.Persist(context.Background(), cmd)

		// Then nothing is duplicated and the stored content wins
		req.NoError(err)
		req.True(second.Duplicate)
		req.Equal(first.Message.ID, second.Message.ID)
		req.Equal("hello", second.Message.Content)
		req.Len(second.Message.Attachments, 1)
		req.Equal(1, messageCount(t, store, "c1"))
		req.Equal(1, participant(t, store, "c1", "u2").UnreadCount)
	})

	t.Run("should type messages with attachments as FILE", func(t *testing.T) {
		req := require.New(t)
		_, svc := setupRecruitmentThread(t)

		result, err := svc.Persist(context.Background(), chat.PersistMessageCommand{
			ConversationID: "c1", MessageID: "m2", SenderID: "u2", CreatedAt: &t0,
			Attachments: []chat.Attachment{
				{URL: "https://cdn/photo.png", MimeType: lo.ToPtr("image/png; charset=binary"), Size: lo.ToPtr(int64(2048))},
				{URL: "https://cdn/cv.pdf", Name: lo.ToPtr("cv.pdf")},
			},
		})

		req.NoError(err)
		req.Equal(chat.MessageTypeFile, result.Message.Type)
		req.Empty(result.Message.Content)
		req.Len(result.Message.Attachments, 2)
		req.Equal("image/png", *result.Message.Attachments[0].MimeType)
		req.Equal("cv.pdf", *result.Message.Attachments[1].Name)
	})

	t.Run("should clamp createdAt far in the future", func(t *testing.T) {
		req := require.New(t)
		store, svc := setupRecruitmentThread(t)
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		svc.now = func() time.Time { return now }
		future := now.Add(24 * time.Hour)

		result, err := svc.Persist(context.Background(), chat.PersistMessageCommand{
			ConversationID: "c1", MessageID: "m3", SenderID: "u1", Text: "from the future", CreatedAt: &future,
		})

		req.NoError(err)
		req.True(result.Message.CreatedAt.Equal(now))
		err = store.View(context.Background(), func(tx repositories.Tx) error {
			conv, err := tx.GetConversation("c1")
			req.True(conv.LastMessageAt.Equal(now))
			return err
		})
		req.NoError(err)
	})

	t.Run("should default createdAt to server time", func(t *testing.T) {
		req := require.New(t)
		_, svc := setupRecruitmentThread(t)
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		svc.now = func() time.Time { return now }

		result, err := svc.Persist(context.Background(), chat.PersistMessageCommand{
			ConversationID: "c1", MessageID: "m4", SenderID: "u1", Text: "no clock",
		})

		req.NoError(err)
		req.True(result.Message.CreatedAt.Equal(now))
	})

	t.Run("should refuse an unknown conversation", func(t *testing.T) {
		req := require.New(t)
		store, svc := setupRecruitmentThread(t)

		_, err := svc.Persist(context.Background(), chat.PersistMessageCommand{
			ConversationID: "ghost", MessageID: "m5", SenderID: "u1", Text: "hello",
		})

		req.ErrorIs(err, errors.ErrConversationNotFound)
		req.Equal(0, messageCount(t, store, "ghost"))
	})

	t.Run("should refuse an anonymous sender", func(t *testing.T) {
		req := require.New(t)
		_, svc := setupRecruitmentThread(t)

		_, err := svc.Persist(context.Background(), chat.PersistMessageCommand{ConversationID: "c1", MessageID: "m6"})

		req.ErrorIs(err, errors.ErrUnauthorized)
	})

	t.Run("should replace createdAt before the Unix epoch", func(t *testing.T) {
		req := require.New(t)
		_, svc := setupRecruitmentThread(t)
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		svc.now = func() time.Time { return now }

		for i, past := range []time.Time{time.UnixMilli(-5000), time.Date(1500, 1, 1, 0, 0, 0, 0, time.UTC)} {
			result, err := svc.Persist(context.Background(), chat.PersistMessageCommand{
				ConversationID: "c1", MessageID: fmt.Sprintf("old-%d", i), SenderID: "u1", Text: "ancient", CreatedAt: &past,
			})

			req.NoError(err)
			req.True(result.Message.CreatedAt.Equal(now))
		}
	})

	t.Run("should refuse reusing an id from another conversation", func(t *testing.T) {
		req := require.New(t)
		store, svc := setupRecruitmentThread(t)
		err := store.Update(context.Background(), func(tx repositories.Tx) error {
			_, err := tx.CreateConversation(chat.Conversation{ID: "c2", Title: "other", CreatedAt: t0, UpdatedAt: t0})
			return err
		})
		req.NoError(err)

		// Given m7 stored in c1
		_, err = svc.Persist(context.Background(), chat.PersistMessageCommand{
			ConversationID: "c1", MessageID: "m7", SenderID: "u1", Text: "private", CreatedAt: &t0,
		})
		req.NoError(err)

		// When the same id is sent to c2
		_, err = svc.Persist(context.Background(), chat.PersistMessageCommand{
			ConversationID: "c2", MessageID: "m7", SenderID: "u2", Text: "echo",
		})

		// Then it is rejected and c2 stays empty
		req.ErrorIs(err, errors.ErrValidation)
		req.Equal(0, messageCount(t, store, "c2"))
	})
}

func TestMessageService_PersistFailureIsReportedAsPersistence(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)

	// Given a store whose transaction fails
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().
		Update(gomock.Any(), gomock.Any()).
		Return(fmt.Errorf("disk full")).
		Times(1)
	svc := NewMessageService(store, testLogger(), time.Minute, 50)

	// When persisting
	_, err := svc.Persist(context.Background(), chat.PersistMessageCommand{
		ConversationID: "c1", MessageID: "m1", SenderID: "u1", Text: "hello",
	})

	// Then the caller sees a persistence failure
	req.ErrorIs(err, errors.ErrPersistence)
}

func TestMessageService_History(t *testing.T) {
	req := require.New(t)
	_, svc := setupRecruitmentThread(t)
	t0 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	for i := range 3 {
		at := t0.Add(time.Duration(i) * time.Second)
		_, err := svc.Persist(context.Background(), chat.PersistMessageCommand{
			ConversationID: "c1", MessageID: fmt.Sprintf("m%d", i), SenderID: "u1", Text: "hi", CreatedAt: &at,
		})
		req.NoError(err)
	}

	page, err := svc.History(context.Background(), "c1", nil, 2)
	req.NoError(err)
	req.Equal([]string{"m2", "m1"}, lo.Map(page.Messages, func(m chat.Message, _ int) string { return m.ID }))
	req.NotNil(page.Cursor)

	page, err = svc.History(context.Background(), "c1", page.Cursor, 2)
	req.NoError(err)
	req.Equal([]string{"m0"}, lo.Map(page.Messages, func(m chat.Message, _ int) string { return m.ID }))
	req.Nil(page.Cursor)

	found, err := svc.Get(context.Background(), []string{"m1", "unknown"})
	req.NoError(err)
	req.Len(found, 1)
}
