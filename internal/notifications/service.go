package notifications

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Service answers an admin's notification queries.
type Service struct {
	storage Storage
	logger  *zap.Logger
}

// NewService creates a new Service.
func NewService(storage Storage, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{storage: storage, logger: logger}
}

// List returns the admin's notifications, newest first.
func (s *Service) List(ctx context.Context, adminID string) ([]*Notification, error) {
	if adminID == "" {
		return nil, ErrMissingAdmin
	}
	list, err := s.storage.ListByAdmin(ctx, adminID)
	if err != nil {
		s.logger.Error("failed to list notifications", zap.String("admin_id", adminID), zap.Error(err))
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return list, nil
}

// UnreadCount counts the admin's unread notifications.
func (s *Service) UnreadCount(ctx context.Context, adminID string) (int64, error) {
	if adminID == "" {
		return 0, ErrMissingAdmin
	}
	n, err := s.storage.CountUnread(ctx, adminID)
	if err != nil {
		s.logger.Error("failed to count unread notifications", zap.String("admin_id", adminID), zap.Error(err))
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

// MarkRead flips one of the admin's notifications to read.
func (s *Service) MarkRead(ctx context.Context, id, adminID string) error {
	if adminID == "" {
		return ErrMissingAdmin
	}
	if err := s.storage.MarkRead(ctx, id, adminID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		s.logger.Error("failed to mark notification read", zap.String("notification_id", id), zap.Error(err))
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead flips every unread notification of the admin and returns how
// many changed.
func (s *Service) MarkAllRead(ctx context.Context, adminID string) (int64, error) {
	if adminID == "" {
		return 0, ErrMissingAdmin
	}
	n, err := s.storage.MarkAllRead(ctx, adminID)
	if err != nil {
		s.logger.Error("failed to mark notifications read", zap.String("admin_id", adminID), zap.Error(err))
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return n, nil
}
