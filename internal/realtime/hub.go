// Package realtime delivers notifications to admins over live connections.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const (
	EventJoin            = "join"
	EventJoined          = "joined"
	EventNewNotification = "new-notification"
	EventError           = "error"
)

const defaultBuffer = 64

var (
	// ErrHubClosed is returned by Join after Close.
	ErrHubClosed = errors.New("realtime hub closed")

	// ErrMissingAdmin is returned when joining without an admin identity.
	ErrMissingAdmin = errors.New("admin id is required to join")

	// ErrSlowSubscriber reports events dropped because a queue was full.
	ErrSlowSubscriber = errors.New("subscriber queue full")
)

// Message is the envelope exchanged on a live connection.
type Message struct {
	Event   string          `json:"event"`
	AdminID string          `json:"adminId,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Conn is one live connection as seen by the hub.
type Conn interface {
	Send(payload []byte) error
	Close() error
}

// Broadcaster publishes a message to every connection joined to an admin.
type Broadcaster interface {
	Broadcast(ctx context.Context, adminID string, msg Message) error
}

type subscriber struct {
	adminID string
	conn    Conn
	queue   chan []byte
	done    chan struct{}
	once    sync.Once
}

// Hub is the process-wide registry of admin channels. Each subscriber has
// its own queue drained by a single writer, which keeps delivery FIFO per
// connection.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*subscriber]struct{}
	closed   bool
	buffer   int
	logger   *zap.Logger
}

// NewHub creates a Hub whose subscriber queues hold buffer messages.
func NewHub(logger *zap.Logger, buffer int) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		channels: map[string]map[*subscriber]struct{}{},
		buffer:   buffer,
		logger:   logger,
	}
}

// Join attaches conn to the channel of adminID. A non-nil welcome is queued
// ahead of any broadcast, so it is the first thing the connection receives
// and nothing published after it is missed. The returned leave func detaches
// and closes the connection; it is safe to call more than once.
func (h *Hub) Join(adminID string, conn Conn, welcome []byte) (leave func(), err error) {
	if adminID == "" {
		return nil, ErrMissingAdmin
	}
	sub := &subscriber{
		adminID: adminID,
		conn:    conn,
		queue:   make(chan []byte, h.buffer),
		done:    make(chan struct{}),
	}
	if welcome != nil {
		sub.queue <- welcome
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	subs, ok := h.channels[adminID]
	if !ok {
		subs = map[*subscriber]struct{}{}
		h.channels[adminID] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(sub)
	h.logger.Info("admin joined channel", zap.String("admin_id", adminID))
	return func() { h.remove(sub) }, nil
}

// Broadcast queues msg for every connection of adminID. Without a joined
// connection it does nothing.
func (h *Hub) Broadcast(_ context.Context, adminID string, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", msg.Event, err)
	}

	dropped := 0
	h.mu.RLock()
	for sub := range h.channels[adminID] {
		select {
		case sub.queue <- payload:
		default:
			dropped++
		}
	}
	h.mu.RUnlock()

	if dropped > 0 {
		return fmt.Errorf("%w: %d connection(s) of admin %s", ErrSlowSubscriber, dropped, adminID)
	}
	return nil
}

// Subscribers returns how many connections are joined to adminID.
func (h *Hub) Subscribers(adminID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[adminID])
}

// Close detaches every connection and refuses new joins.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*subscriber
	for _, subs := range h.channels {
		for sub := range subs {
			all = append(all, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range all {
		h.remove(sub)
	}
}

func (h *Hub) writeLoop(sub *subscriber) {
	for {
		select {
		case <-sub.done:
			return
		case payload := <-sub.queue:
			if err := sub.conn.Send(payload); err != nil {
				h.logger.Warn("live delivery failed, dropping connection",
					zap.String("admin_id", sub.adminID),
					zap.Error(err),
				)
				h.remove(sub)
				return
			}
		}
	}
}

func (h *Hub) remove(sub *subscriber) {
	sub.once.Do(func() {
		h.mu.Lock()
		if subs, ok := h.channels[sub.adminID]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.channels, sub.adminID)
			}
		}
		h.mu.Unlock()

		close(sub.done)
		_ = sub.conn.Close()
		h.logger.Info("admin left channel", zap.String("admin_id", sub.adminID))
	})
}
