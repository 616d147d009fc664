package usecase

import (
	"context"

	"client-update-agent/internal/quickbooks/domain"
	"client-update-agent/internal/quickbooks/dto"
	"client-update-agent/pkg/qbo"
)

// ConnectionManager owns the per-tenant OAuth credential.
type ConnectionManager interface {
	AuthorizeURL(tenantID string) (string, error)
	HandleCallback(ctx context.Context, code, realmID, state string) error
	// GetValidConnection returns nil when the tenant is not connected or its
	// credential could not be refreshed.
	GetValidConnection(ctx context.Context, tenantID string) (*domain.Connection, error)
	Status(ctx context.Context, tenantID string) (*dto.StatusResponse, error)
	ConnectedTenants(ctx context.Context) ([]string, error)
}

// Fetcher reads remote accounting data. Both calls return an empty slice
// when the tenant is not connected.
type Fetcher interface {
	FetchCustomers(ctx context.Context, tenantID string) ([]qbo.Customer, error)
	FetchInvoices(ctx context.Context, tenantID, customerID string) ([]qbo.Invoice, error)
}

// API is the subset of *qbo.Client used here.
type API interface {
	QueryCustomers(ctx context.Context, realmID, accessToken string) ([]qbo.Customer, error)
	QueryInvoices(ctx context.Context, realmID, accessToken, customerID string) ([]qbo.Invoice, error)
}

// TenantLookup confirms that an OAuth state names a real tenant.
type TenantLookup interface {
	TenantExists(ctx context.Context, tenantID string) (bool, error)
}

// TenantLookupFunc adapts a plain function to TenantLookup.
type TenantLookupFunc func(ctx context.Context, tenantID string) (bool, error)

func (f TenantLookupFunc) TenantExists(ctx context.Context, tenantID string) (bool, error) {
	return f(ctx, tenantID)
}
