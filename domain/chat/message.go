package chat

import "time"

type MessageType string

const (
	MessageTypeText MessageType = "TEXT"
	MessageTypeFile MessageType = "FILE"
)

// Message is immutable once created. ID is chosen by the client and doubles
// as the idempotency key of the write path.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Type           MessageType
	Content        string
	CreatedAt      time.Time
	Attachments    []Attachment
}

type Attachment struct {
	URL      string
	MimeType *string
	Size     *int64
	Name     *string
}

// MessageRead is unique per (MessageID, UserID). ReadAt only moves forward.
type MessageRead struct {
	MessageID string
	UserID    string
	ReadAt    time.Time
}

// TypeOf derives the message type from its attachments.
func TypeOf(attachments []Attachment) MessageType {
	if len(attachments) > 0 {
		return MessageTypeFile
	}
	return MessageTypeText
}

// PersistMessageCommand is the input of the message write path.
type PersistMessageCommand struct {
	ConversationID string
	MessageID      string
	SenderID       string
	Text           string
	CreatedAt      *time.Time
	Attachments    []Attachment
}

type PersistResult struct {
	Message   Message
	Duplicate bool
}

// ReadResult lists what a mark-read call touched, grouped by conversation.
type ReadResult struct {
	ConversationIDs          []string
	MessageIDsByConversation map[string][]string
}

type HistoryPage struct {
	Messages []Message
	Cursor   *string
}
