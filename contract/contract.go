//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-gateway/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink consumes committed domain events (search index, counters).
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Emitter delivers a server frame to one live connection.
// Implementations must not block the caller on a slow peer.
type Emitter interface {
	Emit(ctx context.Context, out event.Outbound) error
}

type IPresenceRegistry interface {
	Attach(connectionID string, emitter Emitter)
	Detach(connectionID string)
	TrackJoin(room, connectionID string)
	TrackLeave(room, connectionID string)
	HasOthers(room, connectionID string) bool
	Members(room string) []string
	Broadcast(ctx context.Context, room string, out event.Outbound, exceptConnectionID string)
	BroadcastPresence(ctx context.Context, room string, online bool, exceptConnectionID string)
	EmitTo(ctx context.Context, connectionID string, out event.Outbound) error
}
