package notifications

import "time"

// Type classifies what caused a notification.
type Type string

const (
	TypeSale   Type = "sale"
	TypeStock  Type = "stock"
	TypeSystem Type = "system"
)

// Notification is an append-only message for one admin. IsRead is the only
// field that changes after creation.
type Notification struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	AdminID     string    `json:"adminId" gorm:"size:64;index;not null"`
	Type        Type      `json:"type" gorm:"size:20;not null"`
	Title       string    `json:"title" gorm:"size:255;not null"`
	Message     string    `json:"message" gorm:"type:text;not null"`
	IsRead      bool      `json:"isRead" gorm:"not null;default:false"`
	ReferenceID string    `json:"referenceId" gorm:"size:36"`
	CreatedAt   time.Time `json:"createdAt" gorm:"index"`
}
