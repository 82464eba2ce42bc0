package workers

import (
	"context"
	"log/slog"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

// HealthProbeWorker mirrors store reachability into the gRPC health service.
type HealthProbeWorker struct {
	log      *slog.Logger
	store    Pinger
	health   HealthSetter
	service  string
	interval time.Duration
	timeout  time.Duration
}

func NewHealthProbeWorker(log *slog.Logger, store Pinger, health HealthSetter, service string, interval, timeout time.Duration) *HealthProbeWorker {
	return &HealthProbeWorker{log: log, store: store, health: health, service: service, interval: interval, timeout: timeout}
}

func (w *HealthProbeWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	last := w.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			w.health.SetServingStatus(w.service, healthpb.HealthCheckResponse_NOT_SERVING)
			return nil
		case <-ticker.C:
			status := w.Probe(ctx)
			if status != last {
				w.log.Warn("Health status changed", "service", w.service, "status", status.String())
				last = status
			}
		}
	}
}

func (w *HealthProbeWorker) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	probeCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := w.store.Ping(probeCtx); err != nil {
		w.log.Debug("Store ping failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	w.health.SetServingStatus(w.service, status)
	return status
}
