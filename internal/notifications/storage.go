package notifications

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no notification with the given ID belongs to
// the admin.
var ErrNotFound = errors.New("notification not found")

// ErrAlreadyExists is returned by Create when the ID is already stored.
var ErrAlreadyExists = errors.New("notification already exists")

// Storage persists notifications. Every query is scoped to one admin.
type Storage interface {
	Create(ctx context.Context, n *Notification) error
	// ListByAdmin returns the admin's notifications, newest first.
	ListByAdmin(ctx context.Context, adminID string) ([]*Notification, error)
	CountUnread(ctx context.Context, adminID string) (int64, error)
	// MarkRead returns ErrNotFound when the notification does not exist or
	// belongs to another admin.
	MarkRead(ctx context.Context, id, adminID string) error
	MarkAllRead(ctx context.Context, adminID string) (int64, error)
}

// Publisher delivers a stored notification to its admin's live channel.
type Publisher interface {
	Publish(ctx context.Context, n *Notification) error
}
