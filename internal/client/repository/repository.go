package repository

import (
	"context"
	"errors"
	"time"

	"client-update-agent/internal/client/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClientRepository stores clients scoped by tenant. Finders return nil, nil
// when nothing matches.
type ClientRepository interface {
	List(ctx context.Context, tenantID string) ([]domain.Client, error)
	FindByID(ctx context.Context, tenantID, id string) (*domain.Client, error)
	FindByIDs(ctx context.Context, tenantID string, ids []string) (map[string]domain.Client, error)
	Update(ctx context.Context, client *domain.Client) error
	// UpsertRemote inserts or updates clients keyed by QBCustomerID and
	// returns how many records were written.
	UpsertRemote(ctx context.Context, tenantID string, customers []domain.RemoteCustomer) (int, error)
}

type clientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) List(ctx context.Context, tenantID string) ([]domain.Client, error) {
	var clients []domain.Client
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("display_name ASC").
		Order("id ASC").
		Find(&clients).Error
	return clients, err
}

func (r *clientRepository) FindByID(ctx context.Context, tenantID, id string) (*domain.Client, error) {
	var client domain.Client
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) FindByIDs(ctx context.Context, tenantID string, ids []string) (map[string]domain.Client, error) {
	out := make(map[string]domain.Client, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var clients []domain.Client
	if err := r.db.WithContext(ctx).Where("tenant_id = ? AND id IN ?", tenantID, ids).Find(&clients).Error; err != nil {
		return nil, err
	}
	for _, c := range clients {
		out[c.ID] = c
	}
	return out, nil
}

func (r *clientRepository) Update(ctx context.Context, client *domain.Client) error {
	client.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&domain.Client{}).
		Where("tenant_id = ? AND id = ?", client.TenantID, client.ID).
		Updates(map[string]interface{}{
			"display_name": client.DisplayName,
			"email":        client.Email,
			"updated_at":   client.UpdatedAt,
		}).Error
}

func (r *clientRepository) UpsertRemote(ctx context.Context, tenantID string, customers []domain.RemoteCustomer) (int, error) {
	if len(customers) == 0 {
		return 0, nil
	}

	written := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []domain.Client
		if err := tx.Where("tenant_id = ?", tenantID).Find(&existing).Error; err != nil {
			return err
		}
		byRemote := make(map[string]*domain.Client, len(existing))
		for i := range existing {
			byRemote[existing[i].QBCustomerID] = &existing[i]
		}

		now := time.Now().UTC()
		for _, rc := range customers {
			if cur, ok := byRemote[rc.QBCustomerID]; ok {
				updates := map[string]interface{}{
					"display_name": rc.DisplayName,
					"company_name": rc.CompanyName,
					"updated_at":   now,
				}
				if rc.Email != nil {
					updates["email"] = *rc.Email
				}
				if err := tx.Model(&domain.Client{}).Where("id = ?", cur.ID).Updates(updates).Error; err != nil {
					return err
				}
			} else {
				c := &domain.Client{
					ID:           uuid.New().String(),
					TenantID:     tenantID,
					QBCustomerID: rc.QBCustomerID,
					DisplayName:  rc.DisplayName,
					Email:        rc.Email,
					CompanyName:  rc.CompanyName,
					CreatedAt:    now,
					UpdatedAt:    now,
				}
				if err := tx.Create(c).Error; err != nil {
					return err
				}
				byRemote[rc.QBCustomerID] = c
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}
