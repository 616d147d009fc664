package domain

import "time"

// DeviceToken is a Firebase Cloud Messaging registration for a reviewer's
// browser or device. Reviewers are pushed a notice when new drafts wait.
type DeviceToken struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	TenantID   string    `json:"tenant_id" gorm:"index;not null"`
	UserID     string    `json:"user_id" gorm:"index;not null"`
	Token      string    `json:"-" gorm:"uniqueIndex;not null"`
	DeviceInfo string    `json:"device_info"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
