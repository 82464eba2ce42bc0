package sink

import (
	"chat-gateway/domain/event"
	"chat-gateway/infrastructure/search"
	"context"
	"log/slog"
)

// IndexSink feeds freshly persisted messages to the search index.
// Duplicates were indexed on their first send and are skipped.
type IndexSink struct {
	index search.IIndex
	log   *slog.Logger
}

func NewIndexSink(index search.IIndex, log *slog.Logger) *IndexSink {
	return &IndexSink{index: index, log: log}
}

func (s *IndexSink) Consume(ctx context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessagePersisted:
		if evt.Duplicate {
			return nil
		}
		if err := s.index.Index(ctx, evt.Message); err != nil {
			return err
		}
		s.log.Debug("Message indexed", "message_id", evt.Message.ID, "conversation_id", evt.Message.ConversationID)
	}
	return nil
}
