// Package config reads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DBMemory   = "memory"
	DBSQLite   = "sqlite"
	DBPostgres = "postgres"

	EventsNone  = "none"
	EventsAMQP  = "amqp"
	EventsKafka = "kafka"
)

// ErrInvalid marks a configuration that cannot be used to start the service.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	LogLevel        string

	DBDriver string
	DBDSN    string

	JWTSecret             string
	RequireIdempotencyKey bool
	SeedProductsFile      string
	NotifyMaxRetries      uint64
	RealtimeBuffer        int
	RedisAddr             string
	RedisChannelPrefix    string

	EventsDriver string
	AMQPURL      string
	AMQPExchange string
	KafkaBrokers []string
	KafkaTopic   string

	OTelEndpoint string
	OTelInsecure bool
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var errs []error

	cfg := Config{
		HTTPAddr:           getenv("HTTP_ADDR", ":8081"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		DBDriver:           strings.ToLower(getenv("DB_DRIVER", DBSQLite)),
		DBDSN:              getenv("DB_DSN", "backoffice.db"),
		JWTSecret:          os.Getenv("JWT_SECRET_ADMIN"),
		SeedProductsFile:   os.Getenv("SEED_PRODUCTS_FILE"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisChannelPrefix: getenv("REDIS_CHANNEL_PREFIX", "notifications:"),
		EventsDriver:       strings.ToLower(getenv("EVENTS_DRIVER", EventsNone)),
		AMQPURL:            os.Getenv("AMQP_URL"),
		AMQPExchange:       getenv("AMQP_EXCHANGE", "backoffice.sales"),
		KafkaBrokers:       splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:         getenv("KAFKA_TOPIC", "sales.recorded"),
		OTelEndpoint:       os.Getenv("OTEL_ENDPOINT"),
	}

	shutdown, err := atoienv("SHUTDOWN_TIMEOUT", 15)
	errs = append(errs, err)
	cfg.ShutdownTimeout = time.Duration(shutdown) * time.Second

	retries, err := atoienv("NOTIFY_MAX_RETRIES", 3)
	errs = append(errs, err)
	if retries < 0 {
		errs = append(errs, errors.New("NOTIFY_MAX_RETRIES must not be negative"))
	}
	cfg.NotifyMaxRetries = uint64(retries)

	cfg.RealtimeBuffer, err = atoienv("REALTIME_BUFFER", 64)
	errs = append(errs, err)

	cfg.RequireIdempotencyKey, err = boolenv("SALES_REQUIRE_IDEMPOTENCY_KEY", true)
	errs = append(errs, err)
	cfg.OTelInsecure, err = boolenv("OTEL_INSECURE", false)
	errs = append(errs, err)

	errs = append(errs, cfg.validate()...)
	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cfg, nil
}

func (c Config) validate() []error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET_ADMIN is required"))
	}
	switch c.DBDriver {
	case DBMemory, DBSQLite, DBPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver))
	}
	switch c.EventsDriver {
	case EventsNone:
	case EventsAMQP:
		if c.AMQPURL == "" {
			errs = append(errs, errors.New("AMQP_URL is required when EVENTS_DRIVER=amqp"))
		}
	case EventsKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required when EVENTS_DRIVER=kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EVENTS_DRIVER %q", c.EventsDriver))
	}
	if c.RealtimeBuffer <= 0 {
		errs = append(errs, errors.New("REALTIME_BUFFER must be greater than zero"))
	}
	return errs
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func atoienv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func boolenv(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
