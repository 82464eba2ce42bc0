package gormstore

import (
	"chat-gateway/domain/chat"
	"time"

	"github.com/samber/lo"
)

type conversationRow struct {
	ID            string  `gorm:"primaryKey;size:191"`
	ApplicantID   *string `gorm:"uniqueIndex;size:191"`
	Title         string  `gorm:"size:255"`
	IsGroup       bool
	LastMessageAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (conversationRow) TableName() string { return "conversations" }

type participantRow struct {
	ConversationID string `gorm:"primaryKey;size:191"`
	UserID         string `gorm:"primaryKey;size:191"`
	LastReadAt     time.Time
	UnreadCount    int `gorm:"not null;default:0"`
}

func (participantRow) TableName() string { return "participants" }

// messageRow keeps createdAt twice: CreatedAtNano gives a portable total order
// for scrollback pagination across SQLite and MySQL.
type messageRow struct {
	ID             string `gorm:"primaryKey;size:191"`
	ConversationID string `gorm:"size:191;index:idx_messages_scrollback,priority:1"`
	CreatedAtNano  int64  `gorm:"index:idx_messages_scrollback,priority:2"`
	SenderID       string `gorm:"size:191"`
	Type           string `gorm:"size:16"`
	Content        string `gorm:"type:text"`
	CreatedAt      time.Time
	Attachments    []attachmentRow `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

func (messageRow) TableName() string { return "messages" }

type attachmentRow struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	MessageID string `gorm:"size:191;index"`
	Position  int
	URL       string  `gorm:"type:text"`
	MimeType  *string `gorm:"size:255"`
	Size      *int64
	Name      *string `gorm:"size:255"`
}

func (attachmentRow) TableName() string { return "attachments" }

type messageReadRow struct {
	MessageID string `gorm:"primaryKey;size:191"`
	UserID    string `gorm:"primaryKey;size:191"`
	ReadAt    time.Time
}

func (messageReadRow) TableName() string { return "message_reads" }

func fromConversation(c chat.Conversation) conversationRow {
	return conversationRow{
		ID:            c.ID,
		ApplicantID:   c.ApplicantID,
		Title:         c.Title,
		IsGroup:       c.IsGroup,
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func toConversation(r conversationRow) chat.Conversation {
	var lastMessageAt *time.Time
	if r.LastMessageAt != nil {
		lastMessageAt = lo.ToPtr(r.LastMessageAt.UTC())
	}
	return chat.Conversation{
		ID:            r.ID,
		ApplicantID:   r.ApplicantID,
		Title:         r.Title,
		IsGroup:       r.IsGroup,
		LastMessageAt: lastMessageAt,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

func toParticipant(r participantRow) chat.Participant {
	return chat.Participant{
		ConversationID: r.ConversationID,
		UserID:         r.UserID,
		LastReadAt:     r.LastReadAt.UTC(),
		UnreadCount:    r.UnreadCount,
	}
}

func fromMessage(m chat.Message) messageRow {
	return messageRow{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		CreatedAtNano:  m.CreatedAt.UnixNano(),
		SenderID:       m.SenderID,
		Type:           string(m.Type),
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
		Attachments: lo.Map(m.Attachments, func(a chat.Attachment, i int) attachmentRow {
			return attachmentRow{MessageID: m.ID, Position: i, URL: a.URL, MimeType: a.MimeType, Size: a.Size, Name: a.Name}
		}),
	}
}

func toMessage(r messageRow) chat.Message {
	return chat.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		SenderID:       r.SenderID,
		Type:           chat.MessageType(r.Type),
		Content:        r.Content,
		CreatedAt:      time.Unix(0, r.CreatedAtNano).UTC(),
		Attachments: lo.Map(r.Attachments, func(a attachmentRow, _ int) chat.Attachment {
			return chat.Attachment{URL: a.URL, MimeType: a.MimeType, Size: a.Size, Name: a.Name}
		}),
	}
}
