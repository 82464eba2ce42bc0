package sink

import (
	"chat-gateway/domain/event"
	"context"
	"sync/atomic"
)

// Counters holds process-wide traffic counters read by the telemetry worker.
type Counters struct {
	Messages    int64
	Duplicates  int64
	Attachments int64
	Reads       int64
}

type CounterSink struct {
	messages    atomic.Int64
	duplicates  atomic.Int64
	attachments atomic.Int64
	reads       atomic.Int64
}

func NewCounterSink() *CounterSink {
	return &CounterSink{}
}

func (s *CounterSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessagePersisted:
		if evt.Duplicate {
			s.duplicates.Add(1)
			return nil
		}
		s.messages.Add(1)
		s.attachments.Add(int64(len(evt.Message.Attachments)))
	case event.MessagesRead:
		s.reads.Add(int64(len(evt.MessageIDs)))
	}
	return nil
}

func (s *CounterSink) Snapshot() Counters {
	return Counters{
		Messages:    s.messages.Load(),
		Duplicates:  s.duplicates.Load(),
		Attachments: s.attachments.Load(),
		Reads:       s.reads.Load(),
	}
}
