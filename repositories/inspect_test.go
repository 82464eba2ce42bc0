package repositories

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

func TestInspectMapper(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	encode := func(v any) []byte {
		data, err := json.Marshal(v)
		req.NoError(err)
		return data
	}

	participant := InspectMapper("part:c1:u2", encode(diskParticipant{ConversationID: "c1", UserID: "u2", LastReadAt: at, UnreadCount: 3}))
	req.Equal("PARTICIPANT", participant.Type)
	req.Equal("u2", participant.EntityID)
	req.Equal("c1", participant.Namespace)
	req.Equal("unread:3", participant.Scores)
	req.Equal("2024-03-01 10:00:00", participant.Timestamp)

	message := InspectMapper("msg:m1", encode(diskMessage{ID: "m1", ConversationID: "c1", SenderID: "u1", Type: "TEXT", Content: "hello", CreatedAt: at}))
	req.Equal("TEXT", message.Type)
	req.Equal("u1: hello", message.Detail)
	req.Equal("attachments:0", message.Scores)

	applicant := InspectMapper("idx:applicant:app-42", encode("c1"))
	req.Equal("APPLICANT_IDX", applicant.Type)
	req.Equal("app-42", applicant.EntityID)
	req.Equal("c1", applicant.Namespace)

	broken := InspectMapper("conv:c1", []byte("{"))
	req.Contains(broken.Detail, "unmarshal failed")
}
