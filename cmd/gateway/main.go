package main

import (
	"chat-gateway/contract"
	"chat-gateway/domain/event"
	"chat-gateway/gateway"
	grpc2 "chat-gateway/grpc"
	"chat-gateway/infrastructure/search"
	"chat-gateway/internal"
	"chat-gateway/repositories"
	"chat-gateway/repositories/gormstore"
	"chat-gateway/runtime"
	"chat-gateway/runtime/workers"
	"chat-gateway/services"
	"chat-gateway/sink"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 15 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Gateway terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and owns their lifecycle, so deferred cleanups
// always execute before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	driver, err := config.Driver()
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Storage
	var storageWorkers []contract.Worker
	var store repositories.Store
	switch driver {
	case internal.DriverBadger:
		db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
		if err != nil {
			return exitRuntime, fmt.Errorf("database opening failed: %w", err)
		}
		defer func() {
			logger.Info("Closing BadgerDB...")
			_ = db.Close()
		}()
		if logger.Enabled(ctx, slog.LevelDebug) {
			endpoint := "/inspect"
			logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
			database.StartDebugServer(db, config.DebugPort, endpoint, repositories.InspectMapper)
		}
		store = repositories.NewBadgerStore(db, logger, config.MaxConflictRetries)
		storageWorkers = append(storageWorkers, workers.NewBadgerGCWorker(db, logger, config.BadgerGCInterval))
	default:
		sqlStore, err := gormstore.Open(string(driver), config.StorageDSN, logger)
		if err != nil {
			return exitRuntime, fmt.Errorf("database opening failed: %w", err)
		}
		defer func() {
			logger.Info("Closing SQL store...", "driver", driver)
			_ = sqlStore.Close()
		}()
		store = sqlStore
	}

	index, err := search.Open(config.BlugeFilepath, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = index.Close() }()

	// 3. Presence, services and domain event fan-out
	registry := runtime.NewRegistry(logger)
	counters := sink.NewCounterSink()
	events := make(chan event.DomainEvent, config.BufferSize)
	health := grpc2.NewHealthServer(logger)

	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(
		workers.NewEventFanout(logger, events, config.SinkTimeout, sink.NewIndexSink(index, logger), counters),
		workers.NewTelemetryWorker(logger, config.MetricInterval, registry, counters),
		workers.NewHealthProbeWorker(logger, store, health, grpc2.ServiceName, config.HealthProbeInterval, config.OperationTimeout),
	).Add(storageWorkers...)

	// Storage calls outlive both the client connection and the shutdown signal:
	// they are cancelled only once the gateway drained.
	operations, cancelOperations := context.WithCancel(context.Background())
	defer cancelOperations()

	handler := gateway.NewHandler(operations, logger, registry,
		services.NewRoomResolver(store, logger),
		services.NewMessageService(store, logger, config.ClockSkewTolerance, config.HistoryLimit),
		services.NewReadService(store, logger),
		index, events, config.OperationTimeout)
	wsServer := gateway.NewServer(logger, gateway.ServerConfig{
		JWTSecret:            config.JWTSecret,
		AllowedOrigins:       config.Origins(),
		ConnectionBufferSize: config.ConnectionBufferSize,
		MaxFrameBytes:        config.MaxFrameBytes,
		PingInterval:         config.PingInterval,
		ReadTimeout:          config.ReadTimeout,
	}, handler, registry)

	// 4. Listeners
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpListener, err := net.Listen("tcp", address)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GrpcPort)
	grpcListener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		_ = httpListener.Close()
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}

	workersCtx, stopWorkers := context.WithCancel(context.Background())
	supervisorDone := make(chan struct{})
	go func() {
		sup.Run(workersCtx)
		close(supervisorDone)
	}()

	errChan := make(chan error, 2)

	if !logger.Enabled(ctx, slog.LevelDebug) {
		gin.SetMode(gin.ReleaseMode)
	}
	httpServer := &http.Server{
		Handler:           wsServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Starting websocket gateway", "address", address, "driver", driver, "at", time.Now().UTC())
		if err := httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()
	go func() {
		logger.Info("Starting gRPC health server", "address", grpcAddress)
		if err := health.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 5. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 6. Graceful shutdown: stop accepting, drain sockets and frames, then workers.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	wsServer.Shutdown()
	cancelOperations()
	stopWorkers()
	<-supervisorDone
	health.Stop()
	logger.Info("Program stopped cleanly")

	return code, runErr
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}

	return options
}
