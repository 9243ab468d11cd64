package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"api_backoffice/internal/notifications"
)

// Dispatcher publishes stored notifications as "new-notification" events.
type Dispatcher struct {
	broadcaster Broadcaster
}

// NewDispatcher creates a Dispatcher on top of a hub or relay.
func NewDispatcher(b Broadcaster) *Dispatcher {
	return &Dispatcher{broadcaster: b}
}

// Publish sends n to the channel of its owning admin.
func (d *Dispatcher) Publish(ctx context.Context, n *notifications.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification %s: %w", n.ID, err)
	}
	return d.broadcaster.Broadcast(ctx, n.AdminID, Message{Event: EventNewNotification, Data: data})
}
