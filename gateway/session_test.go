package gateway

import (
	"chat-gateway/domain/chat"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSession_RoomsFor(t *testing.T) {
	req := require.New(t)
	session := NewSession("conn-1", "u1")
	session.Remember("recruitment:app-42", chat.ConversationDescriptor{ConversationID: "c1", Kind: chat.KindRecruitment})
	session.Remember("conversation:c1", chat.ConversationDescriptor{ConversationID: "c1", Kind: chat.KindDirect})
	session.Remember("c2", chat.ConversationDescriptor{ConversationID: "c2", Kind: chat.KindLegacy})

	rooms := session.RoomsFor([]string{"c1", "c3"})

	req.Len(rooms, 1)
	req.ElementsMatch([]string{"recruitment:app-42", "conversation:c1"}, rooms["c1"])
}

func TestSession_Close(t *testing.T) {
	req := require.New(t)
	session := NewSession("conn-1", "u1")
	session.Remember("c1", chat.ConversationDescriptor{ConversationID: "c1"})
	session.Remember("c2", chat.ConversationDescriptor{ConversationID: "c2"})
	req.True(session.Forget("c2"))
	req.False(session.Forget("c2"))

	rooms := session.Close()

	req.Equal([]string{"c1"}, rooms)
	req.True(session.IsClosed())
	req.Empty(session.JoinedRooms())
	req.False(session.Remember("c1", chat.ConversationDescriptor{ConversationID: "c1"}))
}
