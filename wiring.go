package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"api_backoffice/internal/config"
	"api_backoffice/internal/events"
	"api_backoffice/internal/inventory"
	"api_backoffice/internal/notifications"
	"api_backoffice/internal/realtime"
	"api_backoffice/internal/reports"
	"api_backoffice/internal/sales"
	"api_backoffice/internal/storage/memory"
	"api_backoffice/internal/storage/sqlstore"
)

type stores struct {
	sales         sales.Repository
	catalog       inventory.Catalog
	reports       reports.Reader
	notifications notifications.Storage
	close         func() error
}

func openStores(cfg config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.DBDriver == config.DBMemory {
		local := memory.NewLocalStorage()
		return &stores{
			sales:         local,
			catalog:       local,
			reports:       local,
			notifications: memory.NewNotificationStorage(),
			close:         func() error { return nil },
		}, nil
	}

	db, err := sqlstore.Open(cfg.DBDriver, cfg.DBDSN, logger.Named("gorm"))
	if err != nil {
		return nil, err
	}
	repo := sqlstore.NewSalesRepository(db)
	return &stores{
		sales:         repo,
		catalog:       repo,
		reports:       repo,
		notifications: sqlstore.NewNotificationRepository(db),
		close:         func() error { return sqlstore.Close(db) },
	}, nil
}

// seedProducts imports the catalog hand-off file. Products whose SKU is
// already present are skipped so restarts against a persistent store work.
func seedProducts(ctx context.Context, path string, catalog inventory.Catalog, logger *zap.Logger) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	products, err := inventory.LoadSeed(f)
	if err != nil {
		return err
	}
	imported := 0
	for _, p := range products {
		err := inventory.Import(ctx, catalog, []*inventory.Product{p})
		if errors.Is(err, inventory.ErrInvalidProduct) {
			logger.Warn("skipping seed product", zap.String("sku", p.SKU), zap.Error(err))
			continue
		}
		if err != nil {
			return err
		}
		imported++
	}
	logger.Info("seed products imported", zap.Int("imported", imported), zap.Int("total", len(products)))
	return nil
}

type realtimeStack struct {
	hub        *realtime.Hub
	dispatcher *realtime.Dispatcher
	close      func()
}

// startRealtime builds the local hub. With REDIS_ADDR set, notifications are
// relayed through Redis so every instance delivers to its own connections.
func startRealtime(ctx context.Context, cfg config.Config, logger *zap.Logger) (*realtimeStack, error) {
	hub := realtime.NewHub(logger.Named("realtime"), cfg.RealtimeBuffer)
	if cfg.RedisAddr == "" {
		return &realtimeStack{hub: hub, dispatcher: realtime.NewDispatcher(hub), close: hub.Close}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	relay := realtime.NewRedisRelay(client, hub, cfg.RedisChannelPrefix, logger.Named("redis"))
	relayCtx, cancel := context.WithCancel(ctx)
	go func() {
		b := backoff.NewExponentialBackOff()
		b.MaxInterval = 30 * time.Second
		b.MaxElapsedTime = 0
		if err := relay.Serve(relayCtx, b); err != nil {
			logger.Error("redis relay stopped", zap.Error(err))
		}
	}()

	return &realtimeStack{
		hub:        hub,
		dispatcher: realtime.NewDispatcher(relay),
		close: func() {
			cancel()
			hub.Close()
			_ = client.Close()
		},
	}, nil
}

func openEvents(ctx context.Context, cfg config.Config, logger *zap.Logger) (events.Publisher, error) {
	switch cfg.EventsDriver {
	case config.EventsAMQP:
		pub, err := events.DialAMQP(ctx, cfg.AMQPURL, cfg.AMQPExchange, logger.Named("amqp"))
		if err != nil {
			return nil, err
		}
		return pub, nil
	case config.EventsKafka:
		return events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)), nil
	default:
		return nil, nil
	}
}

func newEventRelay(publisher events.Publisher, logger *zap.Logger) *events.Relay {
	return events.NewRelay(publisher, logger.Named("events"))
}
