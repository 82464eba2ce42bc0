//go:generate go run go.uber.org/mock/mockgen -source=room_resolver.go -destination=../mocks/mock_room_resolver.go -package=mocks
package services

import (
	"chat-gateway/domain/chat"
	"chat-gateway/errors"
	"chat-gateway/repositories"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

type IRoomResolver interface {
	Resolve(ctx context.Context, room, userID string) (chat.ConversationDescriptor, error)
}

type RoomResolver struct {
	store repositories.Store
	log   *slog.Logger
	now   func() time.Time
	newID func() string
}

func NewRoomResolver(store repositories.Store, log *slog.Logger) *RoomResolver {
	return &RoomResolver{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Resolve maps a room name onto its conversation and makes sure userID
// participates in it, refreshing lastReadAt. The unread counter is left alone:
// joining a room is not reading it.
// A recruitment thread is created on first use, at most once per applicant.
func (r *RoomResolver) Resolve(ctx context.Context, room, userID string) (chat.ConversationDescriptor, error) {
	if strings.TrimSpace(userID) == "" {
		return chat.ConversationDescriptor{}, errors.ErrUnauthorized
	}
	ref, err := chat.ParseRoom(room)
	if err != nil {
		return chat.ConversationDescriptor{}, err
	}

	var descriptor chat.ConversationDescriptor
	err = r.store.Update(ctx, func(tx repositories.Tx) error {
		now := r.now()
		var conv chat.Conversation
		var kind chat.ConversationKind
		var err error

		switch ref := ref.(type) {
		case chat.DirectConversation:
			kind = chat.KindDirect
			if conv, err = tx.GetConversation(ref.ID); err != nil {
				return err
			}
		case chat.RecruitmentThread:
			kind = chat.KindRecruitment
			conv, err = tx.GetConversationByApplicant(ref.ApplicantID)
			if errors.Is(err, errors.ErrConversationNotFound) {
				conv, err = tx.CreateConversation(chat.NewRecruitmentConversation(r.newID(), ref.ApplicantID, now))
				if err == nil {
					r.log.Info("Recruitment conversation created", "applicant_id", ref.ApplicantID, "conversation_id", conv.ID)
				}
			}
			if err != nil {
				return err
			}
		case chat.LegacyFallback:
			kind = chat.KindLegacy
			if conv, err = tx.GetConversation(ref.ID); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported room reference %T: %w", ref, errors.ErrValidation)
		}

		if err := tx.UpsertParticipant(repositories.ParticipantUpsert{
			ConversationID: conv.ID,
			UserID:         userID,
			ReadAt:         now,
		}); err != nil {
			return err
		}
		descriptor = chat.ConversationDescriptor{
			ConversationID: conv.ID,
			ApplicantID:    conv.ApplicantID,
			Kind:           kind,
		}
		return nil
	})
	if err != nil {
		return chat.ConversationDescriptor{}, classify(err)
	}
	return descriptor, nil
}

// classify keeps client-facing sentinels and folds anything else into ErrPersistence.
func classify(err error) error {
	switch {
	case errors.Is(err, errors.ErrUnauthorized),
		errors.Is(err, errors.ErrValidation),
		errors.Is(err, errors.ErrConversationNotFound),
		errors.Is(err, errors.ErrMessageNotFound),
		errors.Is(err, errors.ErrParticipantNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
}
