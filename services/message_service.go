//go:generate go run go.uber.org/mock/mockgen -source=message_service.go -destination=../mocks/mock_message_service.go -package=mocks
package services

import (
	"chat-gateway/domain/chat"
	"chat-gateway/domain/mimetypes"
	"chat-gateway/errors"
	"chat-gateway/repositories"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"
)

type IMessageService interface {
	Persist(ctx context.Context, cmd chat.PersistMessageCommand) (chat.PersistResult, error)
	History(ctx context.Context, conversationID string, cursor *string, limit int) (chat.HistoryPage, error)
	Get(ctx context.Context, ids []string) ([]chat.Message, error)
}

type MessageService struct {
	store              repositories.Store
	log                *slog.Logger
	clockSkewTolerance time.Duration
	historyLimit       int
	now                func() time.Time
}

func NewMessageService(store repositories.Store, log *slog.Logger, clockSkewTolerance time.Duration, historyLimit int) *MessageService {
	return &MessageService{
		store:              store,
		log:                log,
		clockSkewTolerance: clockSkewTolerance,
		historyLimit:       historyLimit,
		now:                func() time.Time { return time.Now().UTC() },
	}
}

var unixEpoch = time.Unix(0, 0)

// Persist stores a message in a single transaction.
// The client id is the idempotency key: a retry of a known id only refreshes
// the sender's read receipt and returns the stored record, so attachments and
// unread counters are never applied twice.
func (s *MessageService) Persist(ctx context.Context, cmd chat.PersistMessageCommand) (chat.PersistResult, error) {
	if strings.TrimSpace(cmd.SenderID) == "" {
		return chat.PersistResult{}, errors.ErrUnauthorized
	}
	if strings.TrimSpace(cmd.MessageID) == "" || cmd.ConversationID == "" {
		return chat.PersistResult{}, fmt.Errorf("message id and conversation are required: %w", errors.ErrValidation)
	}

	var result chat.PersistResult
	err := s.store.Update(ctx, func(tx repositories.Tx) error {
		now := s.now()

		existing, err := tx.GetMessage(cmd.MessageID)
		switch {
		case err == nil:
			if existing.ConversationID != cmd.ConversationID {
				return fmt.Errorf("message %s belongs to another conversation: %w", existing.ID, errors.ErrValidation)
			}
			result = chat.PersistResult{Message: existing, Duplicate: true}
			return tx.UpsertMessageRead(chat.MessageRead{MessageID: existing.ID, UserID: cmd.SenderID, ReadAt: now})
		case !errors.Is(err, errors.ErrMessageNotFound):
			return err
		}

		if _, err := tx.GetConversation(cmd.ConversationID); err != nil {
			return err
		}

		msg := chat.Message{
			ID:             cmd.MessageID,
			ConversationID: cmd.ConversationID,
			SenderID:       cmd.SenderID,
			Type:           chat.TypeOf(cmd.Attachments),
			Content:        cmd.Text,
			CreatedAt:      s.createdAt(cmd.CreatedAt, now),
			Attachments: lo.Map(cmd.Attachments, func(a chat.Attachment, _ int) chat.Attachment {
				a.MimeType = mimetypes.Normalize(a.MimeType)
				return a
			}),
		}
		if err := tx.CreateMessage(msg); err != nil {
			return err
		}
		if err := tx.TouchConversation(msg.ConversationID, msg.CreatedAt, now); err != nil {
			return err
		}
		if err := tx.UpsertParticipant(repositories.ParticipantUpsert{
			ConversationID: msg.ConversationID,
			UserID:         msg.SenderID,
			ReadAt:         now,
			ResetUnread:    true,
		}); err != nil {
			return err
		}
		if err := tx.IncrementUnread(msg.ConversationID, msg.SenderID); err != nil {
			return err
		}
		if err := tx.UpsertMessageRead(chat.MessageRead{MessageID: msg.ID, UserID: msg.SenderID, ReadAt: now}); err != nil {
			return err
		}
		result = chat.PersistResult{Message: msg}
		return nil
	})
	if err != nil {
		s.log.Warn("Message not persisted", "message_id", cmd.MessageID, "conversation_id", cmd.ConversationID, "error", err)
		return chat.PersistResult{}, classify(err)
	}
	if result.Duplicate {
		s.log.Debug("Duplicate send acknowledged", "message_id", cmd.MessageID)
	}
	return result, nil
}

// createdAt keeps the client clock unless it runs ahead of the server by more
// than the tolerance, which would pin lastMessageAt in the future.
// Dates before the Unix epoch are replaced too: ordering keys are unsigned nanoseconds.
func (s *MessageService) createdAt(client *time.Time, now time.Time) time.Time {
	if client == nil || client.IsZero() {
		return now
	}
	if client.After(now.Add(s.clockSkewTolerance)) || client.Before(unixEpoch) {
		s.log.Debug("Client createdAt clamped", "client", client, "server", now)
		return now
	}
	return client.UTC()
}

func (s *MessageService) History(ctx context.Context, conversationID string, cursor *string, limit int) (chat.HistoryPage, error) {
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	var page chat.HistoryPage
	err := s.store.View(ctx, func(tx repositories.Tx) error {
		messages, next, err := tx.ListMessages(conversationID, cursor, limit)
		if err != nil {
			return err
		}
		page = chat.HistoryPage{Messages: messages, Cursor: next}
		return nil
	})
	if err != nil {
		return chat.HistoryPage{}, classify(err)
	}
	return page, nil
}

// Get returns the stored messages among ids, unknown ids are skipped.
func (s *MessageService) Get(ctx context.Context, ids []string) ([]chat.Message, error) {
	var messages []chat.Message
	err := s.store.View(ctx, func(tx repositories.Tx) error {
		var err error
		messages, err = tx.GetMessages(ids)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return messages, nil
}
