package domain

import (
	"errors"
	"time"
)

var ErrClientNotFound = errors.New("client not found")

// Client mirrors one accounting-system customer of a tenant.
type Client struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	TenantID     string    `json:"tenant_id" gorm:"not null;uniqueIndex:idx_client_tenant_customer,priority:1"`
	QBCustomerID string    `json:"qb_customer_id" gorm:"not null;uniqueIndex:idx_client_tenant_customer,priority:2"`
	DisplayName  string    `json:"display_name" gorm:"not null"`
	Email        *string   `json:"email"`
	CompanyName  *string   `json:"company_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RemoteCustomer is the upstream shape after display-name and company
// resolution. A nil Email leaves the stored email untouched.
type RemoteCustomer struct {
	QBCustomerID string
	DisplayName  string
	Email        *string
	CompanyName  *string
}
