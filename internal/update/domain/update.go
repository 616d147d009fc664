package domain

import (
	"errors"
	"time"
)

const (
	StatusPending = "pending"
	// StatusApproved is accepted by the schema but nothing transitions to it.
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusSent     = "sent"
	// StatusSending marks a row claimed by an in-flight send. It returns to
	// pending if delivery fails.
	StatusSending = "sending"
)

var (
	// ErrNotFound covers both a missing update and one that is no longer
	// pending.
	ErrNotFound = errors.New("update not found or not pending")
	// ErrDeliveryFailed wraps mailer errors on send; the update stays pending.
	ErrDeliveryFailed = errors.New("email delivery failed")
)

func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusSending, StatusApproved, StatusRejected, StatusSent:
		return true
	}
	return false
}

// PendingUpdate is a drafted client email awaiting review.
type PendingUpdate struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	TenantID      string     `json:"tenant_id" gorm:"index:idx_pending_tenant_status,priority:1;not null"`
	ClientID      string     `json:"client_id" gorm:"index:idx_pending_client_status,priority:1;not null"`
	Subject       string     `json:"subject" gorm:"not null"`
	BodyHTML      string     `json:"body_html" gorm:"type:text;not null"`
	BodyPlain     *string    `json:"body_plain" gorm:"type:text"`
	ChangeSummary *string    `json:"change_summary" gorm:"type:text"`
	Status        string     `json:"status" gorm:"size:16;not null;index:idx_pending_tenant_status,priority:2;index:idx_pending_client_status,priority:2"`
	SnapshotID    *string    `json:"snapshot_id"`
	CreatedAt     time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt     time.Time  `json:"updated_at"`
	SentAt        *time.Time `json:"sent_at"`
}

// UpdateHistory is written once per sent update and never changed.
// SnapshotVersion is the id of the snapshot that triggered the draft.
type UpdateHistory struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	TenantID        string    `json:"tenant_id" gorm:"index;not null"`
	ClientID        string    `json:"client_id" gorm:"index;not null"`
	PendingUpdateID *string   `json:"pending_update_id"`
	Subject         string    `json:"subject" gorm:"not null"`
	ChangeSummary   *string   `json:"change_summary" gorm:"type:text"`
	SentAt          time.Time `json:"sent_at" gorm:"index"`
	SnapshotVersion *string   `json:"snapshot_version"`
}

func (UpdateHistory) TableName() string {
	return "update_history"
}
