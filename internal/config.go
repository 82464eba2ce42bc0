package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

type StorageDriver string

const (
	DriverBadger StorageDriver = "badger"
	DriverSQLite StorageDriver = "sqlite"
	DriverMySQL  StorageDriver = "mysql"
)

type Config struct {
	Host     string `env:"HOST,default=0.0.0.0"`
	Port     int    `env:"PORT,required=true"`
	GrpcPort int    `env:"GRPC_PORT,required=true"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`

	StorageDriver  string `env:"STORAGE_DRIVER,default=badger"`
	BadgerFilepath string `env:"BADGER_FILEPATH"`
	StorageDSN     string `env:"STORAGE_DSN"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH"`

	BufferSize           int           `env:"BUFFER_SIZE,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	OperationTimeout     time.Duration `env:"OPERATION_TIMEOUT,required=true"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,required=true"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,required=true"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,required=true"`
	BadgerGCInterval     time.Duration `env:"BADGER_GC_INTERVAL,default=5m"`
	HealthProbeInterval  time.Duration `env:"HEALTH_PROBE_INTERVAL,default=10s"`
	PingInterval         time.Duration `env:"PING_INTERVAL,default=30s"`
	ReadTimeout          time.Duration `env:"READ_TIMEOUT,default=60s"`
	ClockSkewTolerance   time.Duration `env:"CLOCK_SKEW_TOLERANCE,default=1m"`
	MaxConflictRetries   int           `env:"MAX_CONFLICT_RETRIES,default=5"`
	HistoryLimit         int           `env:"HISTORY_LIMIT,default=50"`
	MaxFrameBytes        int64         `env:"MAX_FRAME_BYTES,default=65536"`

	JWTSecret      string `env:"JWT_SECRET"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=*"`
	DebugPort      int    `env:"DEBUG_PORT,default=8081"`
}

// Driver validates STORAGE_DRIVER and the location it needs.
func (c Config) Driver() (StorageDriver, error) {
	driver := StorageDriver(strings.ToLower(c.StorageDriver))
	switch driver {
	case DriverBadger:
		if c.BadgerFilepath == "" {
			return "", fmt.Errorf("BADGER_FILEPATH is required with the %s driver", driver)
		}
	case DriverSQLite, DriverMySQL:
		if c.StorageDSN == "" {
			return "", fmt.Errorf("STORAGE_DSN is required with the %s driver", driver)
		}
	default:
		return "", fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	return driver, nil
}

func (c Config) Origins() []string {
	return lo.Compact(lo.Map(strings.Split(c.AllowedOrigins, ","), func(o string, _ int) string {
		return strings.TrimSpace(o)
	}))
}
