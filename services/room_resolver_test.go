package services

import (
	"chat-gateway/domain/chat"
	"chat-gateway/errors"
	"chat-gateway/repositories"
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *repositories.BadgerStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repositories.NewBadgerStore(db, testLogger(), 10)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func createConversation(t *testing.T, store repositories.Store, id string) {
	t.Helper()
	now := time.Now().UTC()
	err := store.Update(context.Background(), func(tx repositories.Tx) error {
		_, err := tx.CreateConversation(chat.Conversation{ID: id, Title: id, CreatedAt: now, UpdatedAt: now})
		return err
	})
	require.NoError(t, err)
}

func participant(t *testing.T, store repositories.Store, conversationID, userID string) chat.Participant {
	t.Helper()
	var p chat.Participant
	err := store.View(context.Background(), func(tx repositories.Tx) error {
		var err error
		p, err = tx.GetParticipant(conversationID, userID)
		return err
	})
	require.NoError(t, err)
	return p
}

func TestRoomResolver_Resolve(t *testing.T) {
	t.Run("should create the recruitment conversation once", func(t *testing.T) {
		req := require.New(t)
		store := newTestStore(t)
		resolver := NewRoomResolver(store, testLogger())
		resolver.newID = func() string { return "c1" }

		// Given two users joining the same recruitment room
		first, err := resolver.Resolve(context.Background(), "recruitment:app-42", "u1")
		req.NoError(err)
		resolver.newID = func() string { return "c2" }
		second, err := resolver.Resolve(context.Background(), "recruitment:app-42", "u2")
		req.NoError(err)

		// Then they share one conversation linked to the applicant
		req.Equal("c1", first.ConversationID)
		req.Equal(first.ConversationID, second.ConversationID)
		req.Equal(chat.KindRecruitment, second.Kind)
		req.Equal("app-42", *second.ApplicantID)
		req.Equal("u1", participant(t, store, "c1", "u1").UserID)
		req.Equal("u2", participant(t, store, "c1", "u2").UserID)
	})

	t.Run("should resolve an existing direct conversation", func(t *testing.T) {
		req := require.New(t)
		store := newTestStore(t)
		createConversation(t, store, "c9")
		resolver := NewRoomResolver(store, testLogger())

		descriptor, err := resolver.Resolve(context.Background(), "conversation:c9", "u1")

		req.NoError(err)
		req.Equal("c9", descriptor.ConversationID)
		req.Equal(chat.KindDirect, descriptor.Kind)
	})

	t.Run("should treat unknown namespaces as a literal conversation id", func(t *testing.T) {
		req := require.New(t)
		store := newTestStore(t)
		createConversation(t, store, "legacy-room")
		resolver := NewRoomResolver(store, testLogger())

		descriptor, err := resolver.Resolve(context.Background(), "legacy-room", "u1")

		req.NoError(err)
		req.Equal("legacy-room", descriptor.ConversationID)
		req.Equal(chat.KindLegacy, descriptor.Kind)
	})

	t.Run("should fail with not found and create nothing", func(t *testing.T) {
		req := require.New(t)
		store := newTestStore(t)
		resolver := NewRoomResolver(store, testLogger())

		_, err := resolver.Resolve(context.Background(), "conversation:missing", "u1")
		req.ErrorIs(err, errors.ErrConversationNotFound)

		_, err = resolver.Resolve(context.Background(), "nowhere", "u1")
		req.ErrorIs(err, errors.ErrConversationNotFound)

		err = store.View(context.Background(), func(tx repositories.Tx) error {
			_, err := tx.GetParticipant("missing", "u1")
			return err
		})
		req.ErrorIs(err, errors.ErrParticipantNotFound)
	})

	t.Run("should reject a missing user", func(t *testing.T) {
		req := require.New(t)
		resolver := NewRoomResolver(newTestStore(t), testLogger())

		_, err := resolver.Resolve(context.Background(), "recruitment:app-42", " ")

		req.ErrorIs(err, errors.ErrUnauthorized)
	})

	t.Run("should reject an empty room", func(t *testing.T) {
		req := require.New(t)
		resolver := NewRoomResolver(newTestStore(t), testLogger())

		_, err := resolver.Resolve(context.Background(), "", "u1")

		req.ErrorIs(err, errors.ErrValidation)
	})

	t.Run("should refresh lastReadAt without resetting unread", func(t *testing.T) {
		req := require.New(t)
		store := newTestStore(t)
		createConversation(t, store, "c1")
		resolver := NewRoomResolver(store, testLogger())
		t0 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
		resolver.now = func() time.Time { return t0 }

		_, err := resolver.Resolve(context.Background(), "conversation:c1", "u2")
		req.NoError(err)
		err = store.Update(context.Background(), func(tx repositories.Tx) error {
			return tx.IncrementUnread("c1", "u1")
		})
		req.NoError(err)

		// When u2 joins again later
		resolver.now = func() time.Time { return t0.Add(time.Hour) }
		_, err = resolver.Resolve(context.Background(), "conversation:c1", "u2")
		req.NoError(err)

		// Then the counter survives and lastReadAt moved
		p := participant(t, store, "c1", "u2")
		req.Equal(1, p.UnreadCount)
		req.True(p.LastReadAt.Equal(t0.Add(time.Hour)))
	})
}
