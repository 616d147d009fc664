package repository

import (
	"context"
	"errors"
	"time"

	"client-update-agent/internal/quickbooks/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConnectionRepository interface {
	FindByTenant(ctx context.Context, tenantID string) (*domain.Connection, error)
	// Upsert writes the connection keyed by tenant, replacing realm and
	// tokens of an existing row.
	Upsert(ctx context.Context, conn *domain.Connection) error
	UpdateTokens(ctx context.Context, conn *domain.Connection) error
	ListTenantIDs(ctx context.Context) ([]string, error)
}

type connectionRepository struct {
	db *gorm.DB
}

func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

func (r *connectionRepository) FindByTenant(ctx context.Context, tenantID string) (*domain.Connection, error) {
	var conn domain.Connection
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepository) Upsert(ctx context.Context, conn *domain.Connection) error {
	now := time.Now().UTC()
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	conn.CreatedAt = now
	conn.UpdatedAt = now

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"realm_id", "access_token", "refresh_token", "token_expires_at", "updated_at"}),
	}).Create(conn).Error
}

func (r *connectionRepository) UpdateTokens(ctx context.Context, conn *domain.Connection) error {
	conn.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&domain.Connection{}).
		Where("id = ?", conn.ID).
		Updates(map[string]interface{}{
			"access_token":     conn.AccessToken,
			"refresh_token":    conn.RefreshToken,
			"token_expires_at": conn.TokenExpiresAt,
			"updated_at":       conn.UpdatedAt,
		}).Error
}

func (r *connectionRepository) ListTenantIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&domain.Connection{}).Order("tenant_id").Pluck("tenant_id", &ids).Error
	return ids, err
}
