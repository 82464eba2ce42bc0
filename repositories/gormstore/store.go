// Package gormstore implements the repositories.Store contract on a relational
// database through gorm. SQLite and MySQL are supported.
package gormstore

import (
	"chat-gateway/domain/chat"
	"chat-gateway/errors"
	"chat-gateway/repositories"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type Store struct {
	db  *gorm.DB
	log *slog.Logger
}

// Open connects to driver ("sqlite" or "mysql") and migrates the schema.
func Open(driver, dsn string, log *slog.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", driver)
	}

	logLevel := logger.Silent
	if log.Enabled(context.Background(), slog.LevelDebug) {
		logLevel = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite" {
		// SQLite allows a single writer
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db, log)
}

func New(db *gorm.DB, log *slog.Logger) (*Store, error) {
	if err := db.AutoMigrate(
		&conversationRow{},
		&participantRow{},
		&messageRow{},
		&attachmentRow{},
		&messageReadRow{},
	); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Update(ctx context.Context, fn func(tx repositories.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(gormTx{db: tx})
	})
}

func (s *Store) View(ctx context.Context, fn func(tx repositories.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(gormTx{db: tx})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gormTx struct {
	db *gorm.DB
}

func notFound(err error, sentinel error, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", id, sentinel)
	}
	return err
}

func (t gormTx) GetConversation(id string) (chat.Conversation, error) {
	var row conversationRow
	if err := t.db.First(&row, "id = ?", id).Error; err != nil {
		return chat.Conversation{}, notFound(err, errors.ErrConversationNotFound, id)
	}
	return toConversation(row), nil
}

func (t gormTx) GetConversationByApplicant(applicantID string) (chat.Conversation, error) {
	var row conversationRow
	if err := t.db.First(&row, "applicant_id = ?", applicantID).Error; err != nil {
		return chat.Conversation{}, notFound(err, errors.ErrConversationNotFound, "applicant "+applicantID)
	}
	return toConversation(row), nil
}

// CreateConversation relies on the unique applicant index: a losing concurrent
// insert affects no row and reads the winner instead.
func (t gormTx) CreateConversation(conv chat.Conversation) (chat.Conversation, error) {
	row := fromConversation(conv)
	result := t.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		return chat.Conversation{}, result.Error
	}
	if result.RowsAffected == 0 && conv.ApplicantID != nil {
		return t.GetConversationByApplicant(*conv.ApplicantID)
	}
	return conv, nil
}

func (t gormTx) TouchConversation(id string, lastMessageAt, now time.Time) error {
	var row conversationRow
	if err := t.db.First(&row, "id = ?", id).Error; err != nil {
		return notFound(err, errors.ErrConversationNotFound, id)
	}
	updates := map[string]any{"updated_at": now}
	if row.LastMessageAt == nil || lastMessageAt.After(*row.LastMessageAt) {
		updates["last_message_at"] = lastMessageAt
	}
	return t.db.Model(&conversationRow{}).Where("id = ?", id).UpdateColumns(updates).Error
}

func (t gormTx) UpsertParticipant(p repositories.ParticipantUpsert) error {
	columns := []string{"last_read_at"}
	if p.ResetUnread {
		columns = append(columns, "unread_count")
	}
	return t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&participantRow{
		ConversationID: p.ConversationID,
		UserID:         p.UserID,
		LastReadAt:     p.ReadAt,
		UnreadCount:    0,
	}).Error
}

func (t gormTx) IncrementUnread(conversationID, exceptUserID string) error {
	return t.db.Model(&participantRow{}).
		Where("conversation_id = ? AND user_id <> ?", conversationID, exceptUserID).
		UpdateColumn("unread_count", gorm.Expr("unread_count + ?", 1)).Error
}

func (t gormTx) GetParticipant(conversationID, userID string) (chat.Participant, error) {
	var row participantRow
	err := t.db.First(&row, "conversation_id = ? AND user_id = ?", conversationID, userID).Error
	if err != nil {
		return chat.Participant{}, notFound(err, errors.ErrParticipantNotFound, conversationID+"/"+userID)
	}
	return toParticipant(row), nil
}

func (t gormTx) ListParticipants(conversationID string) ([]chat.Participant, error) {
	var rows []participantRow
	if err := t.db.Where("conversation_id = ?", conversationID).Order("user_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return lo.Map(rows, func(r participantRow, _ int) chat.Participant { return toParticipant(r) }), nil
}

func (t gormTx) withAttachments() *gorm.DB {
	return t.db.Preload("Attachments", func(db *gorm.DB) *gorm.DB {
		return db.Order("position")
	})
}

func (t gormTx) GetMessage(id string) (chat.Message, error) {
	var row messageRow
	if err := t.withAttachments().First(&row, "id = ?", id).Error; err != nil {
		return chat.Message{}, notFound(err, errors.ErrMessageNotFound, id)
	}
	return toMessage(row), nil
}

// GetMessages keeps the order of ids, unknown ids are skipped.
func (t gormTx) GetMessages(ids []string) ([]chat.Message, error) {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []messageRow
	if err := t.withAttachments().Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := lo.KeyBy(rows, func(r messageRow) string { return r.ID })
	return lo.FilterMap(ids, func(id string, _ int) (chat.Message, bool) {
		row, ok := byID[id]
		if !ok {
			return chat.Message{}, false
		}
		return toMessage(row), true
	}), nil
}

// CreateMessage inserts the message and its attachments in one statement batch.
func (t gormTx) CreateMessage(msg chat.Message) error {
	row := fromMessage(msg)
	return t.db.Create(&row).Error
}

// ListMessages pages newest first. The cursor is "{createdAtNano}:{id}" of the last returned row.
func (t gormTx) ListMessages(conversationID string, cursor *string, limit int) ([]chat.Message, *string, error) {
	query := t.withAttachments().Where("conversation_id = ?", conversationID)
	if cursor != nil {
		nano, id, err := parseCursor(*cursor)
		if err != nil {
			return nil, nil, err
		}
		query = query.Where("created_at_nano < ? OR (created_at_nano = ? AND id < ?)", nano, nano, id)
	}
	var rows []messageRow
	if err := query.Order("created_at_nano DESC").Order("id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	if len(rows) <= limit {
		return lo.Map(rows, func(r messageRow, _ int) chat.Message { return toMessage(r) }), nil, nil
	}
	rows = rows[:limit]
	last := rows[len(rows)-1]
	next := fmt.Sprintf("%d:%s", last.CreatedAtNano, last.ID)
	return lo.Map(rows, func(r messageRow, _ int) chat.Message { return toMessage(r) }), &next, nil
}

func parseCursor(cursor string) (int64, string, error) {
	rawNano, id, found := strings.Cut(cursor, ":")
	if !found {
		return 0, "", fmt.Errorf("cursor %q: %w", cursor, errors.ErrValidation)
	}
	nano, err := strconv.ParseInt(rawNano, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("cursor %q: %w", cursor, errors.ErrValidation)
	}
	return nano, id, nil
}

func (t gormTx) UpsertMessageRead(read chat.MessageRead) error {
	var row messageReadRow
	err := t.db.First(&row, "message_id = ? AND user_id = ?", read.MessageID, read.UserID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return t.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&messageReadRow{
			MessageID: read.MessageID,
			UserID:    read.UserID,
			ReadAt:    read.ReadAt,
		}).Error
	case err != nil:
		return err
	case !read.ReadAt.After(row.ReadAt):
		return nil
	}
	return t.db.Model(&messageReadRow{}).
		Where("message_id = ? AND user_id = ?", read.MessageID, read.UserID).
		UpdateColumn("read_at", read.ReadAt).Error
}

func (t gormTx) GetMessageRead(messageID, userID string) (chat.MessageRead, error) {
	var row messageReadRow
	if err := t.db.First(&row, "message_id = ? AND user_id = ?", messageID, userID).Error; err != nil {
		return chat.MessageRead{}, notFound(err, errors.ErrMessageNotFound, "read "+messageID+"/"+userID)
	}
	return chat.MessageRead{MessageID: row.MessageID, UserID: row.UserID, ReadAt: row.ReadAt.UTC()}, nil
}
