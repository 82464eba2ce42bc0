package search

import (
	"chat-gateway/domain/chat"
	"chat-gateway/domain/search"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestIndex_Search_Scoped_To_Conversation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index, err := Open("", logs.GetLoggerFromLevel(slog.LevelDebug))
	req.NoError(err)
	defer func() { _ = index.Close() }()
	t0 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	// Given messages in two conversations
	messages := []chat.Message{
		{ID: "m1", ConversationID: "c1", SenderID: "u1", Content: "Interview scheduled on Monday", CreatedAt: t0},
		{ID: "m2", ConversationID: "c1", SenderID: "u2", Content: "Monday interview works for me", CreatedAt: t0.Add(time.Minute)},
		{ID: "m3", ConversationID: "c2", SenderID: "u1", Content: "Interview with another applicant", CreatedAt: t0},
		{ID: "m4", ConversationID: "c1", SenderID: "u1", CreatedAt: t0.Add(2 * time.Minute),
			Attachments: []chat.Attachment{{URL: "https://cdn/resume.pdf", Name: lo.ToPtr("resume")}}},
	}
	for _, m := range messages {
		req.NoError(index.Index(ctx, m))
	}
	// Indexing twice keeps a single document
	req.NoError(index.Index(ctx, messages[0]))

	// When searching c1
	ids, err := index.Search(ctx, search.NewSearchQuery("interview", "c1", 10))

	// Then only c1 hits come back, newest first
	req.NoError(err)
	req.Equal([]string{"m2", "m1"}, ids)

	// And the sender filter narrows the result
	ids, err = index.Search(ctx, search.NewSearchQuery("interview --from u1", "c1", 10))
	req.NoError(err)
	req.Equal([]string{"m1"}, ids)

	// And attachment names are searchable
	ids, err = index.Search(ctx, search.NewSearchQuery("resume", "c1", 10))
	req.NoError(err)
	req.Equal([]string{"m4"}, ids)
}
