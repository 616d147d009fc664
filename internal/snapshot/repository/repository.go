package repository

import (
	"context"
	"errors"
	"time"

	"client-update-agent/internal/snapshot/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SnapshotRepository is the append-only store of client snapshots.
type SnapshotRepository interface {
	// Latest returns the most recent snapshot of kind for a client, or nil.
	Latest(ctx context.Context, tenantID, clientID, kind string) (*domain.ClientSnapshot, error)
	Append(ctx context.Context, snapshot *domain.ClientSnapshot) error
	ListByClient(ctx context.Context, tenantID, clientID string, limit int) ([]domain.ClientSnapshot, error)
	// WithTx binds the repository to an open transaction.
	WithTx(tx *gorm.DB) SnapshotRepository
}

type snapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) WithTx(tx *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: tx}
}

func (r *snapshotRepository) Latest(ctx context.Context, tenantID, clientID, kind string) (*domain.ClientSnapshot, error) {
	var snap domain.ClientSnapshot
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND client_id = ? AND snapshot_type = ?", tenantID, clientID, kind).
		Order("created_at DESC").
		Order("id DESC").
		First(&snap).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snap, nil
}

// Append always inserts a new row. IDs are time-ordered so rows written in
// the same instant still sort by insertion.
func (r *snapshotRepository) Append(ctx context.Context, snapshot *domain.ClientSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.Must(uuid.NewV7()).String()
	}
	if snapshot.SnapshotType == "" {
		snapshot.SnapshotType = domain.KindInvoices
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(snapshot).Error
}

func (r *snapshotRepository) ListByClient(ctx context.Context, tenantID, clientID string, limit int) ([]domain.ClientSnapshot, error) {
	var snaps []domain.ClientSnapshot
	q := r.db.WithContext(ctx).
		Where("tenant_id = ? AND client_id = ?", tenantID, clientID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&snaps).Error
	return snaps, err
}
