package repositories

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mama165/sdk-go/database"
)

const inspectTimeLayout = "2006-01-02 15:04:05"

// InspectPrefixes lists the record families of the badger layout, indexes last.
var InspectPrefixes = []string{conversationPrefix, participantPrefix, messagePrefix, readPrefix, applicantIdxPrefix, messageIdxPrefix}

// InspectMapper renders one badger record for the debug inspector and the inspect CLI.
// Namespace holds the conversation, Scores the counters worth eyeballing.
func InspectMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	switch {
	case strings.HasPrefix(key, applicantIdxPrefix):
		row.Type = "APPLICANT_IDX"
		row.EntityID = strings.TrimPrefix(key, applicantIdxPrefix)
		row.Namespace = strings.Trim(string(val), `"`)
		row.Detail = "-> " + row.Namespace
	case strings.HasPrefix(key, messageIdxPrefix):
		row.Type = "MESSAGE_IDX"
		row.Detail = "-> " + strings.Trim(string(val), `"`)
	case strings.HasPrefix(key, conversationPrefix):
		var c diskConversation
		if err := json.Unmarshal(val, &c); err != nil {
			return undecodable(row, err)
		}
		row.Type = "CONVERSATION"
		row.EntityID = c.ID
		row.Namespace = c.ID
		row.Timestamp = c.UpdatedAt.Format(inspectTimeLayout)
		row.Detail = c.Title
		if c.LastMessageAt != nil {
			row.Scores = "last:" + c.LastMessageAt.Format(inspectTimeLayout)
		}
	case strings.HasPrefix(key, participantPrefix):
		var p diskParticipant
		if err := json.Unmarshal(val, &p); err != nil {
			return undecodable(row, err)
		}
		row.Type = "PARTICIPANT"
		row.EntityID = p.UserID
		row.Namespace = p.ConversationID
		row.Timestamp = p.LastReadAt.Format(inspectTimeLayout)
		row.Scores = fmt.Sprintf("unread:%d", p.UnreadCount)
	case strings.HasPrefix(key, messagePrefix):
		var m diskMessage
		if err := json.Unmarshal(val, &m); err != nil {
			return undecodable(row, err)
		}
		row.Type = m.Type
		row.EntityID = m.ID
		row.Namespace = m.ConversationID
		row.Timestamp = m.CreatedAt.Format(inspectTimeLayout)
		row.Detail = fmt.Sprintf("%s: %s", m.SenderID, truncate(m.Content, 80))
		row.Scores = fmt.Sprintf("attachments:%d", len(m.Attachments))
	case strings.HasPrefix(key, readPrefix):
		var r diskRead
		if err := json.Unmarshal(val, &r); err != nil {
			return undecodable(row, err)
		}
		row.Type = "READ"
		row.EntityID = r.MessageID
		row.Namespace = "-"
		row.Timestamp = r.ReadAt.Format(inspectTimeLayout)
		row.Detail = "by " + r.UserID
	}
	return row
}

func undecodable(row database.InspectRow, err error) database.InspectRow {
	row.Detail = "Error: unmarshal failed: " + err.Error()
	return row
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
