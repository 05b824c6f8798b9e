package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variable configuration guidelines:
// - required: Values that differ between environments and cannot be guessed
// - default: Values common across all environments (timeouts, retry bounds, etc.)
// Postgres credentials are only checked when STORAGE_DRIVER=postgres.
// -----------------------------------------------------------------------------

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	App         AppConfig
	DB          DBConfig
	Log         LogConfig
	Bus         BusConfig
	Outbox      OutboxConfig
	Lock        LockConfig
	Reservation ReservationConfig
	Idempotency IdempotencyConfig
	NATS        NATSConfig
}

type AppConfig struct {
	Name          string `envconfig:"APP_NAME" default:"billiard-hall"`
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"memory"`
}

type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER"`
	Password string `envconfig:"DB_PASSWORD"`
	DBName   string `envconfig:"DB_NAME"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	TimeZone string `envconfig:"DB_TIMEZONE" default:"UTC"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"20"`
	MinConns int32  `envconfig:"DB_MIN_CONNS" default:"2"`
}

type LogConfig struct {
	Level          string `envconfig:"LOG_LEVEL" default:"info"`
	Format         string `envconfig:"LOG_FORMAT" default:"json"`
	TimeZone       string `envconfig:"LOG_TIMEZONE" default:"UTC"`
	TimeFormat     string `envconfig:"LOG_TIME_FORMAT" default:"2006-01-02 15:04:05.000"`
	TimeZoneOffset int    `envconfig:"LOG_TIMEZONE_OFFSET" default:"0"`
}

type BusConfig struct {
	MaxDeliveryAttempts  int           `envconfig:"BUS_MAX_DELIVERY_ATTEMPTS" default:"5"`
	RetryInitialInterval time.Duration `envconfig:"BUS_RETRY_INITIAL_INTERVAL" default:"100ms"`
	RetryMaxInterval     time.Duration `envconfig:"BUS_RETRY_MAX_INTERVAL" default:"5s"`
	DrainTimeout         time.Duration `envconfig:"BUS_DRAIN_TIMEOUT" default:"10s"`
}

type OutboxConfig struct {
	PollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"500ms"`
	BatchSize    int           `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
}

type LockConfig struct {
	AcquireTimeout time.Duration `envconfig:"LOCK_ACQUIRE_TIMEOUT" default:"2s"`
}

type ReservationConfig struct {
	MaxHorizon         time.Duration `envconfig:"RESERVATION_MAX_HORIZON" default:"720h"`
	CancellationCutoff time.Duration `envconfig:"RESERVATION_CANCELLATION_CUTOFF" default:"1h"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
}

type NATSConfig struct {
	URL            string   `envconfig:"NATS_URL"`
	Stream         string   `envconfig:"NATS_STREAM" default:"BILLIARD"`
	SubjectPrefix  string   `envconfig:"NATS_SUBJECT_PREFIX" default:"billiard"`
	ImportSubjects []string `envconfig:"NATS_IMPORT_SUBJECTS" default:"billiard.event.members.>"`
	Durable        string   `envconfig:"NATS_DURABLE" default:"orders-replicas"`
}

func (c NATSConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

func (c *DBConfig) BuildDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&timezone=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode, c.TimeZone,
	)
}

func (c Config) Validate() error {
	switch c.App.StorageDriver {
	case StorageMemory:
	case StoragePostgres:
		var missing []string
		if c.DB.User == "" {
			missing = append(missing, "DB_USER")
		}
		if c.DB.Password == "" {
			missing = append(missing, "DB_PASSWORD")
		}
		if c.DB.DBName == "" {
			missing = append(missing, "DB_NAME")
		}
		if len(missing) > 0 {
			return fmt.Errorf("postgres storage requires %s", strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.App.StorageDriver)
	}
	if c.Bus.MaxDeliveryAttempts < 1 {
		return fmt.Errorf("BUS_MAX_DELIVERY_ATTEMPTS must be at least 1, got %d", c.Bus.MaxDeliveryAttempts)
	}
	if c.Reservation.MaxHorizon <= 0 {
		return fmt.Errorf("RESERVATION_MAX_HORIZON must be positive")
	}
	return nil
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func NewTestConfig() Config {
	return Config{
		App: AppConfig{
			Name:          "billiard-hall-test",
			StorageDriver: StorageMemory,
		},
		DB: DBConfig{
			Host:     "localhost",
			Port:     "15433", // Test DB port
			User:     "test",
			Password: "test",
			DBName:   "test_db",
			SSLMode:  "disable",
			TimeZone: "UTC",
			MaxConns: 5,
			MinConns: 1,
		},
		Log: LogConfig{
			Level:      "error", // Error level only for tests
			Format:     "text",
			TimeZone:   "UTC",
			TimeFormat: "2006-01-02 15:04:05.000",
		},
		Bus: BusConfig{
			MaxDeliveryAttempts:  3,
			RetryInitialInterval: time.Millisecond,
			RetryMaxInterval:     5 * time.Millisecond,
			DrainTimeout:         time.Second,
		},
		Outbox: OutboxConfig{
			PollInterval: 10 * time.Millisecond,
			BatchSize:    50,
		},
		Lock: LockConfig{
			AcquireTimeout: 200 * time.Millisecond,
		},
		Reservation: ReservationConfig{
			MaxHorizon:         30 * 24 * time.Hour,
			CancellationCutoff: time.Hour,
		},
		Idempotency: IdempotencyConfig{
			TTL: 24 * time.Hour,
		},
		NATS: NATSConfig{
			Stream:        "BILLIARD_TEST",
			SubjectPrefix: "billiard",
			Durable:       "orders-replicas-test",
		},
	}
}
