package memory

import (
	"context"
	"sort"
	"sync"

	"api_backoffice/internal/notifications"
)

// NotificationStorage keeps notifications in insertion order.
type NotificationStorage struct {
	mu    sync.RWMutex
	items []*notifications.Notification
	byID  map[string]*notifications.Notification
}

// NewNotificationStorage instantiates an empty NotificationStorage.
func NewNotificationStorage() *NotificationStorage {
	return &NotificationStorage{byID: map[string]*notifications.Notification{}}
}

func (s *NotificationStorage) Create(_ context.Context, n *notifications.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[n.ID]; ok {
		return notifications.ErrAlreadyExists
	}
	stored := *n
	s.items = append(s.items, &stored)
	s.byID[n.ID] = &stored
	return nil
}

func (s *NotificationStorage) ListByAdmin(_ context.Context, adminID string) ([]*notifications.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []*notifications.Notification
	for i := len(s.items) - 1; i >= 0; i-- {
		if n := s.items[i]; n.AdminID == adminID {
			cp := *n
			list = append(list, &cp)
		}
	}
	// insertion order breaks ties between equal timestamps
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (s *NotificationStorage) CountUnread(_ context.Context, adminID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, item := range s.items {
		if item.AdminID == adminID && !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *NotificationStorage) MarkRead(_ context.Context, id, adminID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok || n.AdminID != adminID {
		return notifications.ErrNotFound
	}
	n.IsRead = true
	return nil
}

func (s *NotificationStorage) MarkAllRead(_ context.Context, adminID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed int64
	for _, n := range s.items {
		if n.AdminID == adminID && !n.IsRead {
			n.IsRead = true
			changed++
		}
	}
	return changed, nil
}
