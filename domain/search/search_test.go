package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSearchQuery(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		limit  int
		terms  string
		sender string
		want   int
	}{
		{"Plain terms", "interview tomorrow", 0, "interview tomorrow", "", DefaultLimit},
		{"Sender filter", "contract --from u42", 0, "contract", "u42", DefaultLimit},
		{"Inline limit overrides", "cv --limit 5", 10, "cv", "", 5},
		{"Explicit limit", "cv", 10, "cv", "", 10},
		{"Unknown flag stays a term", "salary --eur 50", 0, "salary --eur 50", "", DefaultLimit},
		{"Dangling flag stays a term", "salary --from", 0, "salary --from", "", DefaultLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			q := NewSearchQuery(tt.input, "c1", tt.limit)
			req.Equal(tt.terms, q.Terms)
			req.Equal(tt.sender, q.SenderID)
			req.Equal(tt.want, q.Limit)
			req.Equal("c1", q.ConversationID)
		})
	}
}

func TestQuery_IsEmpty(t *testing.T) {
	req := require.New(t)
	req.True(NewSearchQuery("   ", "c1", 0).IsEmpty())
	req.False(NewSearchQuery("--from u1", "c1", 0).IsEmpty())
}
