//go:generate go run go.uber.org/mock/mockgen -source=index.go -destination=../../mocks/mock_search_index.go -package=mocks
package search

import (
	"chat-gateway/domain/chat"
	"chat-gateway/domain/search"
	"context"
	"fmt"
	"log/slog"

	"github.com/blugelabs/bluge"
)

const (
	fieldConversation = "conversation_id"
	fieldSender       = "sender_id"
	fieldContent      = "content"
	fieldAttachment   = "attachment_name"
	fieldCreatedAt    = "created_at"
)

type IIndex interface {
	Index(ctx context.Context, msg chat.Message) error
	Search(ctx context.Context, q search.Query) ([]string, error)
	Close() error
}

// Index is the full-text index of message contents, scoped per conversation.
type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

// Open uses path on disk, or memory when path is empty.
func Open(path string, log *slog.Logger) (*Index, error) {
	cfg := bluge.InMemoryOnlyConfig()
	if path != "" {
		cfg = bluge.DefaultConfig(path)
	}
	writer, err := bluge.OpenWriter(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	return &Index{writer: writer, log: log}, nil
}

// Index upserts msg; indexing the same id twice keeps one document.
func (i *Index) Index(ctx context.Context, msg chat.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := bluge.NewDocument(msg.ID).
		AddField(bluge.NewKeywordField(fieldConversation, msg.ConversationID).StoreValue()).
		AddField(bluge.NewKeywordField(fieldSender, msg.SenderID).StoreValue()).
		AddField(bluge.NewTextField(fieldContent, msg.Content)).
		AddField(bluge.NewDateTimeField(fieldCreatedAt, msg.CreatedAt).StoreValue().Sortable())
	for _, attachment := range msg.Attachments {
		if attachment.Name != nil {
			doc.AddField(bluge.NewTextField(fieldAttachment, *attachment.Name))
		}
	}
	return i.writer.Update(doc.ID(), doc)
}

// Search returns message ids of q.ConversationID matching every term, newest first.
func (i *Index) Search(ctx context.Context, q search.Query) ([]string, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(q.ConversationID).SetField(fieldConversation))
	if q.SenderID != "" {
		query.AddMust(bluge.NewTermQuery(q.SenderID).SetField(fieldSender))
	}
	if q.Terms != "" {
		query.AddMust(bluge.NewBooleanQuery().
			SetMinShould(1).
			AddShould(bluge.NewMatchQuery(q.Terms).SetField(fieldContent).SetOperator(bluge.MatchQueryOperatorAnd)).
			AddShould(bluge.NewMatchQuery(q.Terms).SetField(fieldAttachment).SetOperator(bluge.MatchQueryOperatorAnd)))
	}

	request := bluge.NewTopNSearch(q.Limit, query).SortBy([]string{"-" + fieldCreatedAt})
	matches, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var ids []string
	match, err := matches.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, string(value))
			}
			return true
		})
		if err != nil {
			break
		}
		match, err = matches.Next()
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (i *Index) Close() error {
	i.log.Info("Closing Bluge...")
	return i.writer.Close()
}
