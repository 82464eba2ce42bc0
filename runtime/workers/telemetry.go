package workers

import (
	"chat-gateway/runtime"
	"chat-gateway/sink"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

type PresenceStats interface {
	Stats() runtime.Stats
}

type TrafficCounters interface {
	Snapshot() sink.Counters
}

// TelemetryWorker logs process usage, presence and traffic every metricInterval.
type TelemetryWorker struct {
	log            *slog.Logger
	metricInterval time.Duration
	presence       PresenceStats
	counters       TrafficCounters
}

func NewTelemetryWorker(log *slog.Logger, metricInterval time.Duration, presence PresenceStats, counters TrafficCounters) *TelemetryWorker {
	return &TelemetryWorker{log: log, metricInterval: metricInterval, presence: presence, counters: counters}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry")
			return nil
		case <-ticker.C:
			w.report(p)
		}
	}
}

func (w *TelemetryWorker) report(p *process.Process) {
	stats := w.presence.Stats()
	counters := w.counters.Snapshot()
	attrs := []any{
		"rooms", stats.Rooms,
		"connections", stats.Connections,
		"memberships", stats.Memberships,
		"messages", counters.Messages,
		"duplicates", counters.Duplicates,
		"attachments", counters.Attachments,
		"reads", counters.Reads,
	}
	if mem, err := p.MemoryInfo(); err == nil {
		attrs = append(attrs, "rss_mb", mem.RSS/1024/1024)
	} else {
		w.log.Debug("Error while finding process ram usage", "err", err)
	}
	if cpu, err := p.CPUPercent(); err == nil {
		attrs = append(attrs, "cpu_percent", cpu)
	} else {
		w.log.Debug("Error while finding process cpu usage", "err", err)
	}
	w.log.Info("Gateway telemetry", attrs...)
}
