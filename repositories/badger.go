package repositories

import (
	"chat-gateway/domain/chat"
	"chat-gateway/errors"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/samber/lo"
)

const (
	conversationPrefix = "conv:"
	applicantIdxPrefix = "idx:applicant:"
	participantPrefix  = "part:"
	messagePrefix      = "msg:"
	messageIdxPrefix   = "idx:msg:"
	readPrefix         = "read:"

	maxCursor = "9999999999999999999"
)

// BadgerStore keeps every record as a JSON value under a typed key prefix:
//
//	conv:{id}                                  conversation
//	idx:applicant:{applicantId}                -> conversation id
//	part:{conversationId}:{userId}             participant
//	msg:{id}                                   message with its attachments
//	idx:msg:{conversationId}:{createdAt}:{id}  chronological index, createdAt padded to 19 digits
//	read:{messageId}:{userId}                  read receipt
type BadgerStore struct {
	db                 *badger.DB
	log                *slog.Logger
	maxConflictRetries int
}

func NewBadgerStore(db *badger.DB, log *slog.Logger, maxConflictRetries int) *BadgerStore {
	return &BadgerStore{db: db, log: log, maxConflictRetries: maxConflictRetries}
}

// Update runs fn in a read-write transaction. Badger detects write conflicts
// at commit time only, so fn is replayed on badger.ErrConflict.
func (s *BadgerStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	var err error
	for attempt := 0; attempt <= s.maxConflictRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(func(txn *badger.Txn) error {
			return fn(badgerTx{txn: txn})
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debug("Transaction conflict, replaying", "attempt", attempt+1)
	}
	return fmt.Errorf("%w: %v", errors.ErrStorageConflict, err)
}

func (s *BadgerStore) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(badgerTx{txn: txn})
	})
}

func (s *BadgerStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return fmt.Errorf("badger is closed")
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

type badgerTx struct {
	txn *badger.Txn
}

type diskConversation struct {
	ID            string     `json:"id"`
	ApplicantID   *string    `json:"applicantId,omitempty"`
	Title         string     `json:"title"`
	IsGroup       bool       `json:"isGroup"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type diskParticipant struct {
	ConversationID string    `json:"conversationId"`
	UserID         string    `json:"userId"`
	LastReadAt     time.Time `json:"lastReadAt"`
	UnreadCount    int       `json:"unreadCount"`
}

type diskAttachment struct {
	URL      string  `json:"url"`
	MimeType *string `json:"mimeType,omitempty"`
	Size     *int64  `json:"size,omitempty"`
	Name     *string `json:"name,omitempty"`
}

type diskMessage struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversationId"`
	SenderID       string           `json:"senderId"`
	Type           string           `json:"type"`
	Content        string           `json:"content"`
	CreatedAt      time.Time        `json:"createdAt"`
	Attachments    []diskAttachment `json:"attachments,omitempty"`
}

type diskRead struct {
	MessageID string    `json:"messageId"`
	UserID    string    `json:"userId"`
	ReadAt    time.Time `json:"readAt"`
}

func conversationKey(id string) []byte { return []byte(conversationPrefix + id) }
func applicantKey(id string) []byte    { return []byte(applicantIdxPrefix + id) }
func messageKey(id string) []byte      { return []byte(messagePrefix + id) }

func participantKey(conversationID, userID string) []byte {
	return []byte(participantPrefix + conversationID + ":" + userID)
}

func readKey(messageID, userID string) []byte {
	return []byte(readPrefix + messageID + ":" + userID)
}

func messageIndexPrefix(conversationID string) string {
	return messageIdxPrefix + conversationID + ":"
}

// messageIndexKey pads createdAt to 19 digits so lexicographical order is chronological.
func messageIndexKey(conversationID string, createdAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", messageIndexPrefix(conversationID), createdAt.UnixNano(), id))
}

func (t badgerTx) get(key []byte, out any) error {
	item, err := t.txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func (t badgerTx) set(key []byte, value any) error {
	bytes, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return t.txn.Set(key, bytes)
}

func notFound(err error, sentinel error, id string) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%s: %w", id, sentinel)
	}
	return err
}

func (t badgerTx) GetConversation(id string) (chat.Conversation, error) {
	var disk diskConversation
	if err := t.get(conversationKey(id), &disk); err != nil {
		return chat.Conversation{}, notFound(err, errors.ErrConversationNotFound, id)
	}
	return toConversation(disk), nil
}

func (t badgerTx) GetConversationByApplicant(applicantID string) (chat.Conversation, error) {
	var conversationID string
	if err := t.get(applicantKey(applicantID), &conversationID); err != nil {
		return chat.Conversation{}, notFound(err, errors.ErrConversationNotFound, "applicant "+applicantID)
	}
	return t.GetConversation(conversationID)
}

func (t badgerTx) CreateConversation(conv chat.Conversation) (chat.Conversation, error) {
	if conv.ApplicantID != nil {
		existing, err := t.GetConversationByApplicant(*conv.ApplicantID)
		switch {
		case err == nil:
			return existing, nil
		case !errors.Is(err, errors.ErrConversationNotFound):
			return chat.Conversation{}, err
		}
		if err := t.set(applicantKey(*conv.ApplicantID), conv.ID); err != nil {
			return chat.Conversation{}, err
		}
	}
	if err := t.set(conversationKey(conv.ID), fromConversation(conv)); err != nil {
		return chat.Conversation{}, err
	}
	return conv, nil
}

func (t badgerTx) TouchConversation(id string, lastMessageAt, now time.Time) error {
	var disk diskConversation
	if err := t.get(conversationKey(id), &disk); err != nil {
		return notFound(err, errors.ErrConversationNotFound, id)
	}
	if disk.LastMessageAt == nil || lastMessageAt.After(*disk.LastMessageAt) {
		disk.LastMessageAt = lo.ToPtr(lastMessageAt)
	}
	disk.UpdatedAt = now
	return t.set(conversationKey(id), disk)
}

func (t badgerTx) UpsertParticipant(p ParticipantUpsert) error {
	disk := diskParticipant{ConversationID: p.ConversationID, UserID: p.UserID}
	err := t.get(participantKey(p.ConversationID, p.UserID), &disk)
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	disk.LastReadAt = p.ReadAt
	if p.ResetUnread {
		disk.UnreadCount = 0
	}
	return t.set(participantKey(p.ConversationID, p.UserID), disk)
}

func (t badgerTx) IncrementUnread(conversationID, exceptUserID string) error {
	participants, err := t.listParticipants(conversationID)
	if err != nil {
		return err
	}
	for _, p := range participants {
		if p.UserID == exceptUserID {
			continue
		}
		p.UnreadCount++
		if err := t.set(participantKey(p.ConversationID, p.UserID), p); err != nil {
			return err
		}
	}
	return nil
}

func (t badgerTx) GetParticipant(conversationID, userID string) (chat.Participant, error) {
	var disk diskParticipant
	if err := t.get(participantKey(conversationID, userID), &disk); err != nil {
		return chat.Participant{}, notFound(err, errors.ErrParticipantNotFound, conversationID+"/"+userID)
	}
	return toParticipant(disk), nil
}

func (t badgerTx) ListParticipants(conversationID string) ([]chat.Participant, error) {
	disks, err := t.listParticipants(conversationID)
	if err != nil {
		return nil, err
	}
	return lo.Map(disks, func(d diskParticipant, _ int) chat.Participant { return toParticipant(d) }), nil
}

// listParticipants collects before any write happens: ids may contain ':'
// so the prefix can match a neighbour conversation, hence the filter.
func (t badgerTx) listParticipants(conversationID string) ([]diskParticipant, error) {
	prefix := []byte(participantPrefix + conversationID + ":")
	options := badger.DefaultIteratorOptions
	options.Prefix = prefix
	it := t.txn.NewIterator(options)
	defer it.Close()

	var participants []diskParticipant
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var disk diskParticipant
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		}); err != nil {
			return nil, err
		}
		if disk.ConversationID == conversationID {
			participants = append(participants, disk)
		}
	}
	return participants, nil
}

func (t badgerTx) GetMessage(id string) (chat.Message, error) {
	var disk diskMessage
	if err := t.get(messageKey(id), &disk); err != nil {
		return chat.Message{}, notFound(err, errors.ErrMessageNotFound, id)
	}
	return toMessage(disk), nil
}

func (t badgerTx) GetMessages(ids []string) ([]chat.Message, error) {
	var messages []chat.Message
	for _, id := range lo.Uniq(ids) {
		msg, err := t.GetMessage(id)
		if errors.Is(err, errors.ErrMessageNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (t badgerTx) CreateMessage(msg chat.Message) error {
	if err := t.set(messageKey(msg.ID), fromMessage(msg)); err != nil {
		return err
	}
	return t.txn.Set(messageIndexKey(msg.ConversationID, msg.CreatedAt, msg.ID), []byte(msg.ID))
}

// ListMessages walks the chronological index backwards, like a chat scrollback.
// The cursor is the index key suffix of the last returned message.
func (t badgerTx) ListMessages(conversationID string, cursor *string, limit int) ([]chat.Message, *string, error) {
	prefixStr := messageIndexPrefix(conversationID)
	prefix := []byte(prefixStr)
	options := badger.DefaultIteratorOptions
	options.Reverse = true
	options.Prefix = prefix
	it := t.txn.NewIterator(options)
	defer it.Close()

	var seekKey []byte
	switch cursor {
	case nil:
		seekKey = append([]byte(prefixStr), []byte(maxCursor)...)
	default:
		seekKey = append([]byte(prefixStr), []byte(*cursor)...)
	}
	it.Seek(seekKey)
	if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()) == string(seekKey) {
		it.Next()
	}

	var ids []string
	var lastKey string
	for ; it.ValidForPrefix(prefix); it.Next() {
		if len(ids) == limit {
			break
		}
		key := string(it.Item().Key())
		suffix := key[len(prefixStr):]
		// {createdAt}:{id}, where id may itself contain ':'
		if len(suffix) < 20 || suffix[19] != ':' || strings.Contains(suffix[:19], ":") {
			continue
		}
		lastKey = suffix
		ids = append(ids, suffix[20:])
	}
	hasMore := it.ValidForPrefix(prefix)

	messages := make([]chat.Message, 0, len(ids))
	for _, id := range ids {
		msg, err := t.GetMessage(id)
		if err != nil {
			return nil, nil, err
		}
		if msg.ConversationID == conversationID {
			messages = append(messages, msg)
		}
	}
	if !hasMore || lastKey == "" {
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}

func (t badgerTx) UpsertMessageRead(read chat.MessageRead) error {
	var disk diskRead
	err := t.get(readKey(read.MessageID, read.UserID), &disk)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return err
	case !read.ReadAt.After(disk.ReadAt):
		return nil
	}
	return t.set(readKey(read.MessageID, read.UserID), diskRead{
		MessageID: read.MessageID,
		UserID:    read.UserID,
		ReadAt:    read.ReadAt,
	})
}

func (t badgerTx) GetMessageRead(messageID, userID string) (chat.MessageRead, error) {
	var disk diskRead
	if err := t.get(readKey(messageID, userID), &disk); err != nil {
		return chat.MessageRead{}, notFound(err, errors.ErrMessageNotFound, "read "+messageID+"/"+userID)
	}
	return chat.MessageRead{MessageID: disk.MessageID, UserID: disk.UserID, ReadAt: disk.ReadAt}, nil
}

func fromConversation(c chat.Conversation) diskConversation {
	return diskConversation{
		ID:            c.ID,
		ApplicantID:   c.ApplicantID,
		Title:         c.Title,
		IsGroup:       c.IsGroup,
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func toConversation(d diskConversation) chat.Conversation {
	return chat.Conversation{
		ID:            d.ID,
		ApplicantID:   d.ApplicantID,
		Title:         d.Title,
		IsGroup:       d.IsGroup,
		LastMessageAt: d.LastMessageAt,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func toParticipant(d diskParticipant) chat.Participant {
	return chat.Participant{
		ConversationID: d.ConversationID,
		UserID:         d.UserID,
		LastReadAt:     d.LastReadAt,
		UnreadCount:    d.UnreadCount,
	}
}

func fromMessage(m chat.Message) diskMessage {
	return diskMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Type:           string(m.Type),
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
		Attachments: lo.Map(m.Attachments, func(a chat.Attachment, _ int) diskAttachment {
			return diskAttachment{URL: a.URL, MimeType: a.MimeType, Size: a.Size, Name: a.Name}
		}),
	}
}

func toMessage(d diskMessage) chat.Message {
	return chat.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		Type:           chat.MessageType(d.Type),
		Content:        d.Content,
		CreatedAt:      d.CreatedAt,
		Attachments: lo.Map(d.Attachments, func(a diskAttachment, _ int) chat.Attachment {
			return chat.Attachment{URL: a.URL, MimeType: a.MimeType, Size: a.Size, Name: a.Name}
		}),
	}
}
