package domain

import (
	"errors"
	"time"
)

var (
	// ErrNotConnected means the tenant has no usable QuickBooks credential.
	ErrNotConnected = errors.New("quickbooks is not connected")
	// ErrInvalidCallback is returned for OAuth callbacks missing code,
	// realm or a known tenant in state.
	ErrInvalidCallback = errors.New("invalid quickbooks callback")
)

// Connection holds a tenant's OAuth credential. One row per tenant, updated
// in place on every refresh.
type Connection struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	TenantID       string    `json:"tenant_id" gorm:"uniqueIndex;not null"`
	RealmID        string    `json:"realm_id" gorm:"not null"`
	AccessToken    string    `json:"-" gorm:"type:text;not null"`
	RefreshToken   string    `json:"-" gorm:"type:text;not null"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Connection) TableName() string {
	return "quickbooks_connections"
}
