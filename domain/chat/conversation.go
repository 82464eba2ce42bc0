// Package chat contains the durable concepts of the gateway: conversations,
// participants, messages and their read state.
// No runtime, network, or storage logic should be added here.
package chat

import "time"

type ConversationKind string

const (
	KindDirect      ConversationKind = "DIRECT"
	KindRecruitment ConversationKind = "RECRUITMENT"
	KindLegacy      ConversationKind = "LEGACY"
)

// Conversation is the durable storage unit behind a room.
// At most one conversation exists per ApplicantID.
type Conversation struct {
	ID            string
	ApplicantID   *string
	Title         string
	IsGroup       bool
	LastMessageAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Participant joins a user to a conversation. UnreadCount never goes below zero.
type Participant struct {
	ConversationID string
	UserID         string
	LastReadAt     time.Time
	UnreadCount    int
}

// ConversationDescriptor is what a room resolves to. It is cached per connection.
type ConversationDescriptor struct {
	ConversationID string
	ApplicantID    *string
	Kind           ConversationKind
}

func NewRecruitmentConversation(id, applicantID string, now time.Time) Conversation {
	return Conversation{
		ID:          id,
		ApplicantID: &applicantID,
		Title:       "Recruitment " + applicantID,
		IsGroup:     false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
