package sqlstore

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"api_backoffice/internal/notifications"
)

// NotificationRepository stores notifications with gorm.
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a repository on top of db.
func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *notifications.Notification) error {
	err := r.db.WithContext(ctx).Create(n).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return notifications.ErrAlreadyExists
	}
	return err
}

func (r *NotificationRepository) ListByAdmin(ctx context.Context, adminID string) ([]*notifications.Notification, error) {
	var list []*notifications.Notification
	err := r.db.WithContext(ctx).
		Where("admin_id = ?", adminID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *NotificationRepository) CountUnread(ctx context.Context, adminID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&notifications.Notification{}).
		Where("admin_id = ? AND is_read = ?", adminID, false).
		Count(&n).Error
	return n, err
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, adminID string) error {
	res := r.db.WithContext(ctx).Model(&notifications.Notification{}).
		Where("id = ? AND admin_id = ?", id, adminID).
		UpdateColumn("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notifications.ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, adminID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&notifications.Notification{}).
		Where("admin_id = ? AND is_read = ?", adminID, false).
		UpdateColumn("is_read", true)
	return res.RowsAffected, res.Error
}
