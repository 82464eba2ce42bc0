package runtime

import (
	"chat-gateway/contract"
	"chat-gateway/domain/event"
	"chat-gateway/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

type Set map[string]struct{}

// Registry is the in-process presence table: which live connection sits in
// which room, and how to reach it. It is shared by every connection goroutine.
type Registry struct {
	mu          sync.RWMutex
	log         *slog.Logger
	connections map[string]contract.Emitter // map connection -> Emitter
	roomMembers map[string]Set              // map room to connections
}

type Stats struct {
	Rooms       int
	Connections int
	Memberships int
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:         log,
		connections: make(map[string]contract.Emitter),
		roomMembers: make(map[string]Set),
	}
}

func (r *Registry) Attach(connectionID string, emitter contract.Emitter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[connectionID] = emitter
}

func (r *Registry) Detach(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connections, connectionID)
}

// TrackJoin adds connectionID to the room, creating the set on the fly.
// Joining twice is the same as joining once.
func (r *Registry) TrackJoin(room, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roomMembers[room]; !ok {
		r.roomMembers[room] = make(Set)
	}
	r.roomMembers[room][connectionID] = struct{}{}
}

// TrackLeave removes connectionID from the room. Empty rooms are dropped
// so the table never accumulates dead entries. Unknown members are a no-op.
func (r *Registry) TrackLeave(room, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if members, ok := r.roomMembers[room]; ok {
		delete(members, connectionID)

		// If no one is left in the room, remove the room entry entirely
		if len(members) == 0 {
			delete(r.roomMembers, room)
		}
	}
}

// HasOthers reports whether someone other than connectionID is in the room.
func (r *Registry) HasOthers(room, connectionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for member := range r.roomMembers[room] {
		if member != connectionID {
			return true
		}
	}
	return false
}

func (r *Registry) Members(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.roomMembers[room])
}

// BroadcastPresence tells every member except the excluded one whether
// the room has someone online.
func (r *Registry) BroadcastPresence(ctx context.Context, room string, online bool, exceptConnectionID string) {
	r.Broadcast(ctx, room, event.Outbound{Event: event.PresenceUpdate, Data: online}, exceptConnectionID)
}

// Broadcast emits out to the room members, minus exceptConnectionID when set.
// Emitters are snapshotted under the read lock and called outside of it.
func (r *Registry) Broadcast(ctx context.Context, room string, out event.Outbound, exceptConnectionID string) {
	for connectionID, emitter := range r.snapshot(room, exceptConnectionID) {
		if err := emitter.Emit(ctx, out); err != nil {
			r.log.Debug("Emit skipped", "room", room, "connection_id", connectionID, "event", out.Event, "error", err)
		}
	}
}

func (r *Registry) EmitTo(ctx context.Context, connectionID string, out event.Outbound) error {
	r.mu.RLock()
	emitter, ok := r.connections[connectionID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s: %w", connectionID, errors.ErrConnectionClosed)
	}
	return emitter.Emit(ctx, out)
}

func (r *Registry) snapshot(room, exceptConnectionID string) map[string]contract.Emitter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[room]
	if !ok {
		return nil
	}
	emitters := make(map[string]contract.Emitter, len(members))
	for connectionID := range members {
		if connectionID == exceptConnectionID {
			continue
		}
		if emitter, exists := r.connections[connectionID]; exists {
			emitters[connectionID] = emitter
		}
	}
	return emitters
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	memberships := 0
	for _, members := range r.roomMembers {
		memberships += len(members)
	}
	return Stats{Rooms: len(r.roomMembers), Connections: len(r.connections), Memberships: memberships}
}
