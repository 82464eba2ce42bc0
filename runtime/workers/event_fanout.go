package workers

import (
	"chat-gateway/contract"
	"chat-gateway/domain/event"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// EventFanout hands committed domain events to in-process sinks.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// ordering across sinks, durability, or retries. EventFanout is not a message broker.
// The wire already got its frames before the event is published here.
type EventFanout struct {
	log         *slog.Logger
	events      chan event.DomainEvent
	sinkTimeout time.Duration
	sinks       []contract.EventSink
}

func NewEventFanout(log *slog.Logger, events chan event.DomainEvent, sinkTimeout time.Duration, sinks ...contract.EventSink) *EventFanout {
	return &EventFanout{log: log, events: events, sinkTimeout: sinkTimeout, sinks: sinks}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.events:
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping domain event fan-out")
			return nil
		}
	}
}

// Fanout gives each sink its own deadline so a slow sink cannot starve the others.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	var wg sync.WaitGroup
	for _, sink := range w.sinks {
		wg.Add(1)
		go func(sink contract.EventSink) {
			defer wg.Done()
			sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
			defer cancel()
			if err := sink.Consume(sinkCtx, evt); err != nil {
				w.log.Warn("Sink failed", "sink", fmt.Sprintf("%T", sink), "conversation_id", evt.ConversationID(), "error", err)
			}
		}(sink)
	}
	wg.Wait()
}

// Publish never blocks the request path: a full buffer drops the event.
func Publish(log *slog.Logger, events chan<- event.DomainEvent, evt event.DomainEvent) {
	select {
	case events <- evt:
	default:
		log.Debug("Domain event lost, fan-out buffer full", "conversation_id", evt.ConversationID())
	}
}
