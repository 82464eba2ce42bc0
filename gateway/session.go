package gateway

import (
	"chat-gateway/domain/chat"
	"sync"

	"github.com/samber/lo"
)

// Session is the per-connection state: who is connected and which rooms
// it joined, with the conversation each room resolved to.
type Session struct {
	ConnectionID string
	UserID       string

	mu        sync.Mutex
	roomsMeta map[string]chat.ConversationDescriptor
	closed    bool
}

func NewSession(connectionID, userID string) *Session {
	return &Session{
		ConnectionID: connectionID,
		UserID:       userID,
		roomsMeta:    make(map[string]chat.ConversationDescriptor),
	}
}

// Remember caches the descriptor of a joined room.
// It returns false once the session is closed.
func (s *Session) Remember(room string, descriptor chat.ConversationDescriptor) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.roomsMeta[room] = descriptor
	return true
}

func (s *Session) Forget(room string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.roomsMeta[room]
	delete(s.roomsMeta, room)
	return ok
}

func (s *Session) Descriptor(room string) (chat.ConversationDescriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	descriptor, ok := s.roomsMeta[room]
	return descriptor, ok
}

func (s *Session) Joined(room string) bool {
	_, ok := s.Descriptor(room)
	return ok
}

func (s *Session) JoinedRooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Keys(s.roomsMeta)
}

// RoomsFor maps conversation ids back to the joined rooms resolving to them.
func (s *Session) RoomsFor(conversationIDs []string) map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := lo.SliceToMap(conversationIDs, func(id string) (string, struct{}) { return id, struct{}{} })
	rooms := make(map[string][]string)
	for room, descriptor := range s.roomsMeta {
		if _, ok := wanted[descriptor.ConversationID]; ok {
			rooms[descriptor.ConversationID] = append(rooms[descriptor.ConversationID], room)
		}
	}
	return rooms
}

// Close marks the session disconnected and returns the rooms it was in.
func (s *Session) Close() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	rooms := lo.Keys(s.roomsMeta)
	s.roomsMeta = make(map[string]chat.ConversationDescriptor)
	return rooms
}

func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
