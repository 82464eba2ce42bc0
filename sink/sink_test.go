package sink_test

import (
	"chat-gateway/domain/chat"
	"chat-gateway/domain/event"
	"chat-gateway/mocks"
	"chat-gateway/sink"
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestIndexSink_Consume(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockIndex := mocks.NewMockIIndex(ctrl)
	// Silencing logs for clean test output
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	s := sink.NewIndexSink(mockIndex, logger)
	msg := chat.Message{ID: "m1", ConversationID: "c1", Content: "hello"}

	t.Run("indexes new messages", func(t *testing.T) {
		req := require.New(t)
		mockIndex.EXPECT().Index(gomock.Any(), msg).Return(nil).Times(1)

		req.NoError(s.Consume(ctx, event.MessagePersisted{Room: "conversation:c1", Message: msg}))
	})

	t.Run("skips duplicates and read events", func(t *testing.T) {
		req := require.New(t)
		mockIndex.EXPECT().Index(gomock.Any(), gomock.Any()).Times(0)

		req.NoError(s.Consume(ctx, event.MessagePersisted{Message: msg, Duplicate: true}))
		req.NoError(s.Consume(ctx, event.MessagesRead{UserID: "u2", Conversation: "c1", MessageIDs: []string{"m1"}}))
	})

	t.Run("surfaces index failures", func(t *testing.T) {
		req := require.New(t)
		mockIndex.EXPECT().Index(gomock.Any(), msg).Return(fmt.Errorf("index closed")).Times(1)

		req.Error(s.Consume(ctx, event.MessagePersisted{Message: msg}))
	})
}

func TestCounterSink_Consume(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := sink.NewCounterSink()

	req.NoError(s.Consume(ctx, event.MessagePersisted{Message: chat.Message{ID: "m1", Attachments: []chat.Attachment{{URL: "a"}, {URL: "b"}}}}))
	req.NoError(s.Consume(ctx, event.MessagePersisted{Message: chat.Message{ID: "m1"}, Duplicate: true}))
	req.NoError(s.Consume(ctx, event.MessagesRead{MessageIDs: []string{"m1", "m2"}}))

	req.Equal(sink.Counters{Messages: 1, Duplicates: 1, Attachments: 2, Reads: 2}, s.Snapshot())
}
