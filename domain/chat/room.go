package chat

import (
	"chat-gateway/errors"
	"fmt"
	"strings"
)

const (
	conversationNamespace = "conversation"
	recruitmentNamespace  = "recruitment"
)

// RoomRef is the parsed form of a room name. It is one of
// DirectConversation, RecruitmentThread or LegacyFallback.
type RoomRef interface {
	isRoomRef()
}

type DirectConversation struct {
	ID string
}

type RecruitmentThread struct {
	ApplicantID string
}

// LegacyFallback is any room name without a known namespace,
// used verbatim as a conversation id.
type LegacyFallback struct {
	ID string
}

func (DirectConversation) isRoomRef() {}
func (RecruitmentThread) isRoomRef()  {}
func (LegacyFallback) isRoomRef()     {}

// ParseRoom splits a room name on its first ':' and maps the namespace.
func ParseRoom(room string) (RoomRef, error) {
	room = strings.TrimSpace(room)
	if room == "" {
		return nil, fmt.Errorf("empty room name: %w", errors.ErrValidation)
	}
	namespace, id, found := strings.Cut(room, ":")
	if !found {
		return LegacyFallback{ID: room}, nil
	}
	switch namespace {
	case conversationNamespace:
		if id == "" {
			return nil, fmt.Errorf("room %q has no conversation id: %w", room, errors.ErrValidation)
		}
		return DirectConversation{ID: id}, nil
	case recruitmentNamespace:
		if id == "" {
			return nil, fmt.Errorf("room %q has no applicant id: %w", room, errors.ErrValidation)
		}
		return RecruitmentThread{ApplicantID: id}, nil
	default:
		return LegacyFallback{ID: room}, nil
	}
}

func ConversationRoom(conversationID string) string {
	return conversationNamespace + ":" + conversationID
}
