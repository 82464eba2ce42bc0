package runtime

import (
	"chat-gateway/domain/event"
	"chat-gateway/errors"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordingEmitter struct {
	mu     sync.Mutex
	frames []event.Outbound
	fail   bool
}

func (e *recordingEmitter) Emit(_ context.Context, out event.Outbound) error {
	if e.fail {
		return fmt.Errorf("peer gone: %w", errors.ErrConnectionClosed)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frames = append(e.frames, out)
	return nil
}

func (e *recordingEmitter) Frames() []event.Outbound {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]event.Outbound(nil), e.frames...)
}

func newTestRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn})))
}

func TestRegistry_TrackJoin_One_Room_One_Connection(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	connectionID := uuid.NewString()

	// Given no room exists
	req.Empty(registry.Members("recruitment:app-42"))

	// When a connection joins twice
	registry.TrackJoin("recruitment:app-42", connectionID)
	registry.TrackJoin("recruitment:app-42", connectionID)

	// Then it is a member once
	req.Equal([]string{connectionID}, registry.Members("recruitment:app-42"))
	req.Equal(Stats{Rooms: 1, Connections: 0, Memberships: 1}, registry.Stats())
}

func TestRegistry_TrackLeave_Removes_Empty_Room(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	c1, c2 := uuid.NewString(), uuid.NewString()

	// Given two connections in a room
	registry.TrackJoin("room", c1)
	registry.TrackJoin("room", c2)

	// When both leave, one of them twice
	registry.TrackLeave("room", c1)
	registry.TrackLeave("room", c1)
	req.Len(registry.Members("room"), 1)
	registry.TrackLeave("room", c2)

	// Then the room entry is gone
	req.Empty(registry.Members("room"))
	req.Zero(registry.Stats().Rooms)

	// And leaving an unknown room is a no-op
	registry.TrackLeave("nowhere", c1)
	req.Zero(registry.Stats().Rooms)
}

func TestRegistry_HasOthers_Ignores_Self(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()

	registry.TrackJoin("room", "c1")
	req.False(registry.HasOthers("room", "c1"))
	req.True(registry.HasOthers("room", "c2"))

	registry.TrackJoin("room", "c2")
	req.True(registry.HasOthers("room", "c1"))
	req.False(registry.HasOthers("empty", "c1"))
}

func TestRegistry_BroadcastPresence_Skips_Excluded_Connection(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	e1, e2, e3 := &recordingEmitter{}, &recordingEmitter{}, &recordingEmitter{}
	registry.Attach("c1", e1)
	registry.Attach("c2", e2)
	registry.Attach("c3", e3)
	registry.TrackJoin("room", "c1")
	registry.TrackJoin("room", "c2")
	registry.TrackJoin("other", "c3")

	// When c1 announces itself
	registry.BroadcastPresence(context.Background(), "room", true, "c1")

	// Then only c2 hears about it
	req.Empty(e1.Frames())
	req.Equal([]event.Outbound{{Event: event.PresenceUpdate, Data: true}}, e2.Frames())
	req.Empty(e3.Frames())
}

func TestRegistry_Broadcast_Survives_Failing_Emitter(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	broken, healthy := &recordingEmitter{fail: true}, &recordingEmitter{}
	registry.Attach("broken", broken)
	registry.Attach("healthy", healthy)
	registry.TrackJoin("room", "broken")
	registry.TrackJoin("room", "healthy")

	registry.Broadcast(context.Background(), "room", event.Outbound{Event: event.ChatMessage, Data: "x"}, "")

	req.Len(healthy.Frames(), 1)
}

func TestRegistry_EmitTo_Detached_Connection(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	emitter := &recordingEmitter{}
	registry.Attach("c1", emitter)

	req.NoError(registry.EmitTo(context.Background(), "c1", event.Outbound{Event: event.ChatDelivered, Data: []string{"m1"}}))
	registry.Detach("c1")
	err := registry.EmitTo(context.Background(), "c1", event.Outbound{Event: event.ChatDelivered})

	req.ErrorIs(err, errors.ErrConnectionClosed)
	req.Len(emitter.Frames(), 1)
}

func TestRegistry_Concurrent_Join_Leave(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connectionID := fmt.Sprintf("c%d", i)
			registry.Attach(connectionID, &recordingEmitter{})
			registry.TrackJoin("room", connectionID)
			registry.BroadcastPresence(context.Background(), "room", true, connectionID)
			registry.TrackLeave("room", connectionID)
			registry.Detach(connectionID)
		}(i)
	}
	wg.Wait()

	req.Equal(Stats{}, registry.Stats())
}
