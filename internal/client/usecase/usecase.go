package usecase

import (
	"context"

	"client-update-agent/internal/client/domain"
	"client-update-agent/internal/client/dto"
	snapshotdomain "client-update-agent/internal/snapshot/domain"
	"client-update-agent/pkg/qbo"
)

// CustomerSource lists a tenant's active upstream customers. It returns an
// empty slice when the tenant has no usable connection.
type CustomerSource interface {
	FetchCustomers(ctx context.Context, tenantID string) ([]qbo.Customer, error)
}

// ClientUsecase defines the interface for client business logic
type ClientUsecase interface {
	List(ctx context.Context, tenantID, query string) ([]domain.Client, error)
	Get(ctx context.Context, tenantID, id string) (*domain.Client, error)
	Update(ctx context.Context, tenantID, id string, req dto.UpdateClientRequest) (*domain.Client, error)
	Snapshots(ctx context.Context, tenantID, id string, limit int) ([]snapshotdomain.ClientSnapshot, error)
	// SyncClients upserts every upstream customer and returns how many were
	// written.
	SyncClients(ctx context.Context, tenantID string) (int, error)
}
