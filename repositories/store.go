//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks
package repositories

import (
	"chat-gateway/domain/chat"
	"context"
	"time"
)

// Store runs units of work. Everything done through the Tx of one
// Update call commits or rolls back together.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

type ParticipantUpsert struct {
	ConversationID string
	UserID         string
	ReadAt         time.Time
	ResetUnread    bool
}

// Tx is the record level API available inside a transaction.
// Lookups of missing records return the matching Err*NotFound sentinel.
type Tx interface {
	GetConversation(id string) (chat.Conversation, error)
	GetConversationByApplicant(applicantID string) (chat.Conversation, error)
	// CreateConversation inserts conv unless its applicant is already linked,
	// in which case the linked conversation is returned untouched.
	CreateConversation(conv chat.Conversation) (chat.Conversation, error)
	// TouchConversation sets updatedAt to now and moves lastMessageAt forward only.
	TouchConversation(id string, lastMessageAt, now time.Time) error

	UpsertParticipant(p ParticipantUpsert) error
	IncrementUnread(conversationID, exceptUserID string) error
	GetParticipant(conversationID, userID string) (chat.Participant, error)
	ListParticipants(conversationID string) ([]chat.Participant, error)

	GetMessage(id string) (chat.Message, error)
	// GetMessages skips unknown ids.
	GetMessages(ids []string) ([]chat.Message, error)
	CreateMessage(msg chat.Message) error
	// ListMessages pages a conversation newest first. The returned cursor feeds the next call.
	ListMessages(conversationID string, cursor *string, limit int) ([]chat.Message, *string, error)

	// UpsertMessageRead keeps the latest readAt of (messageID, userID).
	UpsertMessageRead(read chat.MessageRead) error
	GetMessageRead(messageID, userID string) (chat.MessageRead, error)
}
