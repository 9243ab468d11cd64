package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisRelay fans events out through Redis pub/sub so that an admin
// connected to any instance receives them. Messages published here reach
// the local hub only through the subscription started by Run.
type RedisRelay struct {
	client *redis.Client
	hub    *Hub
	prefix string
	logger *zap.Logger
}

// NewRedisRelay creates a relay publishing on channels named prefix+adminID.
func NewRedisRelay(client *redis.Client, hub *Hub, prefix string, logger *zap.Logger) *RedisRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{client: client, hub: hub, prefix: prefix, logger: logger}
}

// Broadcast publishes msg on the admin's Redis channel.
func (r *RedisRelay) Broadcast(ctx context.Context, adminID string, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", msg.Event, err)
	}
	if err := r.client.Publish(ctx, r.prefix+adminID, payload).Err(); err != nil {
		return fmt.Errorf("publish to redis: %w", err)
	}
	return nil
}

// ErrRelayClosed is returned by Run when the subscription ends while the
// relay is still wanted.
var ErrRelayClosed = errors.New("redis subscription closed")

// Serve keeps Run going until ctx is done, subscribing again after every
// failure with the delays b produces. It returns the last error once b
// gives up, or nil when ctx ends.
func (r *RedisRelay) Serve(ctx context.Context, b backoff.BackOff) error {
	err := backoff.RetryNotify(func() error {
		err := r.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = ErrRelayClosed
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		r.logger.Warn("redis relay failed, resubscribing", zap.Duration("retry_in", wait), zap.Error(err))
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Run forwards every relayed message into the local hub until ctx is done.
// It returns once the subscription is confirmed failed or ctx ends.
func (r *RedisRelay) Run(ctx context.Context) error {
	ps := r.client.PSubscribe(ctx, r.prefix+"*")
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to redis: %w", err)
	}
	r.logger.Info("redis relay subscribed", zap.String("pattern", r.prefix+"*"))

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrRelayClosed
			}
			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				r.logger.Warn("dropping malformed relay message", zap.String("channel", m.Channel), zap.Error(err))
				continue
			}
			adminID := strings.TrimPrefix(m.Channel, r.prefix)
			if err := r.hub.Broadcast(ctx, adminID, msg); err != nil {
				r.logger.Warn("notification delivery failed", zap.String("admin_id", adminID), zap.Error(err))
			}
		}
	}
}
