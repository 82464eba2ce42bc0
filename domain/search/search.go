package search

import (
	"strconv"
	"strings"
)

const DefaultLimit = 20

// Query is the structured form of a chat:search input.
// It decouples what the user typed from what the index needs.
type Query struct {
	RawInput       string // The original input from the user
	Terms          string // The actual text to search in the index
	SenderID       string // Optional --from filter
	ConversationID string // Target conversation, always set by the gateway
	Limit          int
}

// NewSearchQuery parses a raw string to extract command-line style arguments.
// Example: invoice interview --from u42 --limit 5
func NewSearchQuery(input string, conversationID string, limit int) Query {
	query := Query{
		RawInput:       input,
		ConversationID: conversationID,
		Limit:          DefaultLimit,
	}
	if limit > 0 {
		query.Limit = limit
	}

	parts := strings.Fields(input)
	var textTerms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			val := parts[i+1]
			switch strings.TrimPrefix(part, "--") {
			case "from":
				query.SenderID = val
			case "limit":
				if n, err := strconv.Atoi(val); err == nil && n > 0 {
					query.Limit = n
				}
			default:
				textTerms = append(textTerms, part, val)
			}
			i++ // Skip the value part in next iteration
			continue
		}
		textTerms = append(textTerms, part)
	}

	query.Terms = strings.Join(textTerms, " ")
	return query
}

func (q Query) IsEmpty() bool {
	return strings.TrimSpace(q.Terms) == "" && q.SenderID == ""
}
