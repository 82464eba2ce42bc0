package event

import (
	"chat-gateway/domain/chat"
	"time"
)

// DomainEvent is published after a transaction committed.
// It feeds in-process side effects (search index, counters), never the wire.
type DomainEvent interface {
	ConversationID() string
}

type MessagePersisted struct {
	Room      string
	Message   chat.Message
	Duplicate bool
}

func (m MessagePersisted) ConversationID() string {
	return m.Message.ConversationID
}

type MessagesRead struct {
	UserID       string
	Conversation string
	MessageIDs   []string
	At           time.Time
}

func (m MessagesRead) ConversationID() string {
	return m.Conversation
}
