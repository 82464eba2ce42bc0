package services

import (
	"chat-gateway/domain/chat"
	"chat-gateway/errors"
	"chat-gateway/repositories"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReadService_MarkRead(t *testing.T) {
	t.Run("should reset unread and record receipts", func(t *testing.T) {
		req := require.New(t)
		store, messages := setupRecruitmentThread(t)
		for _, id := range []string{"m1", "m2"} {
			_, err := messages.Persist(context.Background(), chat.PersistMessageCommand{
				ConversationID: "c1", MessageID: id, SenderID: "u1", Text: "hello",
			})
			req.NoError(err)
		}
		req.Equal(2, participant(t, store, "c1", "u2").UnreadCount)
		svc := NewReadService(store, testLogger())

		// When U2 reads both messages plus an unknown one
		result, err := svc.MarkRead(context.Background(), "u2", []string{"m1", "m2", "unknown"})

		// Then the unknown id is ignored and the counter is back to zero
		req.NoError(err)
		req.Equal([]string{"c1"}, result.ConversationIDs)
		req.ElementsMatch([]string{"m1", "m2"}, result.MessageIDsByConversation["c1"])
		req.Equal(0, participant(t, store, "c1", "u2").UnreadCount)
		err = store.View(context.Background(), func(tx repositories.Tx) error {
			_, err := tx.GetMessageRead("m2", "u2")
			return err
		})
		req.NoError(err)
	})

	t.Run("should be idempotent and monotonic", func(t *testing.T) {
		req := require.New(t)
		store, messages := setupRecruitmentThread(t)
		_, err := messages.Persist(context.Background(), chat.PersistMessageCommand{
			ConversationID: "c1", MessageID: "m1", SenderID: "u1", Text: "hello",
		})
		req.NoError(err)
		svc := NewReadService(store, testLogger())
		t0 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

		svc.now = func() time.Time { return t0 }
		_, err = svc.MarkRead(context.Background(), "u2", []string{"m1"})
		req.NoError(err)

		// A late duplicate carrying an older clock must not move readAt back
		svc.now = func() time.Time { return t0.Add(-time.Hour) }
		_, err = svc.MarkRead(context.Background(), "u2", []string{"m1"})
		req.NoError(err)

		req.Equal(0, participant(t, store, "c1", "u2").UnreadCount)
		err = store.View(context.Background(), func(tx repositories.Tx) error {
			read, err := tx.GetMessageRead("m1", "u2")
			req.True(read.ReadAt.Equal(t0))
			return err
		})
		req.NoError(err)
	})

	t.Run("should touch nothing for unknown ids", func(t *testing.T) {
		req := require.New(t)
		store, _ := setupRecruitmentThread(t)
		svc := NewReadService(store, testLogger())

		result, err := svc.MarkRead(context.Background(), "u2", []string{"nope"})

		req.NoError(err)
		req.Empty(result.ConversationIDs)
	})

	t.Run("should reject an anonymous reader", func(t *testing.T) {
		req := require.New(t)
		svc := NewReadService(newTestStore(t), testLogger())

		_, err := svc.MarkRead(context.Background(), "", []string{"m1"})

		req.ErrorIs(err, errors.ErrUnauthorized)
	})
}
