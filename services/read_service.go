//go:generate go run go.uber.org/mock/mockgen -source=read_service.go -destination=../mocks/mock_read_service.go -package=mocks
package services

import (
	"chat-gateway/domain/chat"
	"chat-gateway/errors"
	"chat-gateway/repositories"
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"
)

type IReadService interface {
	MarkRead(ctx context.Context, userID string, messageIDs []string) (chat.ReadResult, error)
}

type ReadService struct {
	store repositories.Store
	log   *slog.Logger
	now   func() time.Time
}

func NewReadService(store repositories.Store, log *slog.Logger) *ReadService {
	return &ReadService{store: store, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// MarkRead records a receipt per known message and resets the user's unread
// counter once per touched conversation, all in one transaction.
// Unknown ids are ignored.
func (s *ReadService) MarkRead(ctx context.Context, userID string, messageIDs []string) (chat.ReadResult, error) {
	if strings.TrimSpace(userID) == "" {
		return chat.ReadResult{}, errors.ErrUnauthorized
	}
	ids := lo.Uniq(lo.Compact(messageIDs))
	if len(ids) == 0 {
		return chat.ReadResult{MessageIDsByConversation: map[string][]string{}}, nil
	}

	var result chat.ReadResult
	err := s.store.Update(ctx, func(tx repositories.Tx) error {
		now := s.now()
		messages, err := tx.GetMessages(ids)
		if err != nil {
			return err
		}
		for _, msg := range messages {
			if err := tx.UpsertMessageRead(chat.MessageRead{MessageID: msg.ID, UserID: userID, ReadAt: now}); err != nil {
				return err
			}
		}

		byConversation := lo.GroupBy(messages, func(m chat.Message) string { return m.ConversationID })
		conversationIDs := lo.Uniq(lo.Map(messages, func(m chat.Message, _ int) string { return m.ConversationID }))
		for _, conversationID := range conversationIDs {
			if err := tx.UpsertParticipant(repositories.ParticipantUpsert{
				ConversationID: conversationID,
				UserID:         userID,
				ReadAt:         now,
				ResetUnread:    true,
			}); err != nil {
				return err
			}
		}

		result = chat.ReadResult{
			ConversationIDs: conversationIDs,
			MessageIDsByConversation: lo.MapValues(byConversation, func(msgs []chat.Message, _ string) []string {
				return lo.Map(msgs, func(m chat.Message, _ int) string { return m.ID })
			}),
		}
		return nil
	})
	if err != nil {
		s.log.Warn("Read receipts not persisted", "user_id", userID, "error", err)
		return chat.ReadResult{}, classify(err)
	}
	if skipped := len(ids) - lo.Sum(lo.Map(lo.Values(result.MessageIDsByConversation), func(v []string, _ int) int { return len(v) })); skipped > 0 {
		s.log.Debug("Unknown message ids ignored", "user_id", userID, "count", skipped)
	}
	return result, nil
}
