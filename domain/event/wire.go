package event

import (
	"bytes"
	"chat-gateway/domain/chat"
	"chat-gateway/errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/samber/lo"
)

type Name string

const (
	RoomJoin   Name = "room:join"
	RoomJoined Name = "room:joined"
	RoomLeave  Name = "room:leave"
	RoomLeft   Name = "room:left"
	RoomError  Name = "room:error"

	ChatSend          Name = "chat:send"
	ChatMessage       Name = "chat:message"
	ChatDelivered     Name = "chat:delivered"
	ChatError         Name = "chat:error"
	ChatMarkDelivered Name = "chat:markDelivered"
	ChatMarkRead      Name = "chat:markRead"
	ChatRead          Name = "chat:read"
	ChatHistory       Name = "chat:history"
	ChatSearch        Name = "chat:search"
	ChatSearchResults Name = "chat:searchResults"

	TypingStart  Name = "typing:start"
	TypingStop   Name = "typing:stop"
	TypingUpdate Name = "typing:update"

	PresencePing   Name = "presence:ping"
	PresenceUpdate Name = "presence:update"
)

// Inbound is a client frame. Data is decoded lazily per event.
type Inbound struct {
	Event Name            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is a server frame.
type Outbound struct {
	Event Name `json:"event"`
	Data  any  `json:"data"`
}

func DecodeInbound(frame []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(frame, &in); err != nil {
		return Inbound{}, fmt.Errorf("malformed frame: %v: %w", err, errors.ErrValidation)
	}
	if in.Event == "" {
		return Inbound{}, fmt.Errorf("frame without event: %w", errors.ErrValidation)
	}
	return in, nil
}

// DecodeRoom reads the bare string payload of room:join, room:leave and typing events.
func DecodeRoom(data json.RawMessage) (string, error) {
	var room string
	if err := json.Unmarshal(data, &room); err != nil {
		return "", fmt.Errorf("room payload: %v: %w", err, errors.ErrValidation)
	}
	return room, nil
}

type ErrorPayload struct {
	Room    string `json:"room"`
	Message string `json:"message"`
}

type RoomJoinedPayload struct {
	Room           string `json:"room"`
	ConversationID string `json:"conversationId"`
}

type RoomLeftPayload struct {
	Room string `json:"room"`
}

type TypingPayload struct {
	Room   string `json:"room"`
	Typing bool   `json:"typing"`
}

type AttachmentPayload struct {
	URL      string  `json:"url" validate:"required"`
	MimeType *string `json:"mimeType,omitempty"`
	Size     *int64  `json:"size,omitempty" validate:"omitempty,gte=0"`
	Name     *string `json:"name,omitempty"`
}

// SendPayload is the client shape of chat:send. SenderID is informative only:
// the authenticated session decides who the sender is.
type SendPayload struct {
	ID             string              `json:"id" validate:"required,max=128"`
	Room           string              `json:"room" validate:"required"`
	Text           string              `json:"text"`
	SenderID       string              `json:"senderId"`
	CreatedAt      *Timestamp          `json:"createdAt,omitempty"`
	ConversationID *string             `json:"conversationId,omitempty"`
	Attachments    []AttachmentPayload `json:"attachments,omitempty" validate:"omitempty,dive"`
}

// MessagePayload is the canonical chat:message frame, always built from the stored record.
type MessagePayload struct {
	ID             string              `json:"id"`
	Room           string              `json:"room"`
	ConversationID string              `json:"conversationId"`
	SenderID       string              `json:"senderId"`
	Text           string              `json:"text"`
	Content        string              `json:"content"`
	Type           chat.MessageType    `json:"type"`
	CreatedAt      time.Time           `json:"createdAt"`
	Attachments    []AttachmentPayload `json:"attachments"`
}

type HistoryRequest struct {
	Room   string  `json:"room" validate:"required"`
	Cursor *string `json:"cursor,omitempty"`
	Limit  int     `json:"limit,omitempty" validate:"omitempty,gte=1,lte=200"`
}

type HistoryPayload struct {
	Room           string           `json:"room"`
	ConversationID string           `json:"conversationId"`
	Messages       []MessagePayload `json:"messages"`
	Cursor         *string          `json:"cursor,omitempty"`
}

type SearchRequest struct {
	Room  string `json:"room" validate:"required"`
	Query string `json:"query" validate:"required,max=256"`
	Limit int    `json:"limit,omitempty" validate:"omitempty,gte=1,lte=100"`
}

type SearchResultsPayload struct {
	Room     string           `json:"room"`
	Query    string           `json:"query"`
	Messages []MessagePayload `json:"messages"`
}

func (a AttachmentPayload) ToAttachment() chat.Attachment {
	return chat.Attachment{URL: a.URL, MimeType: a.MimeType, Size: a.Size, Name: a.Name}
}

func ToMessagePayload(room string, m chat.Message) MessagePayload {
	return MessagePayload{
		ID:             m.ID,
		Room:           room,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Text:           m.Content,
		Content:        m.Content,
		Type:           m.Type,
		CreatedAt:      m.CreatedAt,
		Attachments: lo.Map(m.Attachments, func(a chat.Attachment, _ int) AttachmentPayload {
			return AttachmentPayload{URL: a.URL, MimeType: a.MimeType, Size: a.Size, Name: a.Name}
		}),
	}
}

// ReceiptRequest is the canonical form of chat:markRead and chat:markDelivered.
// Clients send either a bare id array or {ids, room}.
type ReceiptRequest struct {
	IDs  []string
	Room *string
}

func (r *ReceiptRequest) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*r = ReceiptRequest{}
		return nil
	}
	switch trimmed[0] {
	case '[':
		var ids []string
		if err := json.Unmarshal(trimmed, &ids); err != nil {
			return err
		}
		*r = ReceiptRequest{IDs: ids}
	case '{':
		var obj struct {
			IDs  []string `json:"ids"`
			Room *string  `json:"room"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return err
		}
		*r = ReceiptRequest{IDs: obj.IDs, Room: obj.Room}
		if r.Room != nil && *r.Room == "" {
			r.Room = nil
		}
	default:
		return fmt.Errorf("receipt payload must be an array or an object: %w", errors.ErrValidation)
	}
	r.IDs = lo.Uniq(lo.Compact(r.IDs))
	return nil
}

// Timestamp accepts an RFC3339 string or epoch milliseconds.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("createdAt %q: %w", s, errors.ErrValidation)
		}
		t.Time = parsed.UTC()
		return nil
	}
	ms, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil {
		return fmt.Errorf("createdAt %s: %w", trimmed, errors.ErrValidation)
	}
	t.Time = time.UnixMilli(int64(ms)).UTC()
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time)
}

func (t *Timestamp) Ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	return lo.ToPtr(t.Time)
}
