package repository

import (
	"context"
	"errors"
	"time"

	"client-update-agent/internal/update/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UpdateRepository stores pending updates and their send history. Every
// query is scoped by tenant.
type UpdateRepository interface {
	Create(ctx context.Context, update *domain.PendingUpdate) error
	FindByID(ctx context.Context, tenantID, id string) (*domain.PendingUpdate, error)
	FindPending(ctx context.Context, tenantID, id string) (*domain.PendingUpdate, error)
	List(ctx context.Context, tenantID, status string) ([]domain.PendingUpdate, error)
	// UpdateContent saves subject and bodies, only while the row is pending.
	UpdateContent(ctx context.Context, update *domain.PendingUpdate) (bool, error)
	// Transition moves a pending row to status and reports whether it did.
	Transition(ctx context.Context, tenantID, id, status string) (bool, error)
	// Claim moves a pending row to sending and returns it, or nil if another
	// caller got there first or the row left pending.
	Claim(ctx context.Context, tenantID, id string, at time.Time) (*domain.PendingUpdate, error)
	// Release puts a claimed row back to pending.
	Release(ctx context.Context, update *domain.PendingUpdate) error
	// MarkSent flips a claimed row to sent and records history in one
	// transaction. It returns domain.ErrNotFound if the row is not claimed.
	MarkSent(ctx context.Context, update *domain.PendingUpdate, sentAt time.Time) (*domain.UpdateHistory, error)
	HasRecentPending(ctx context.Context, tenantID, clientID string, since time.Time) (bool, error)
	ListHistory(ctx context.Context, tenantID, clientID string) ([]domain.UpdateHistory, error)
	WithTx(tx *gorm.DB) UpdateRepository
}

type updateRepository struct {
	db *gorm.DB
}

func NewUpdateRepository(db *gorm.DB) UpdateRepository {
	return &updateRepository{db: db}
}

func (r *updateRepository) WithTx(tx *gorm.DB) UpdateRepository {
	return &updateRepository{db: tx}
}

func (r *updateRepository) Create(ctx context.Context, update *domain.PendingUpdate) error {
	now := time.Now().UTC()
	if update.ID == "" {
		update.ID = uuid.New().String()
	}
	if update.Status == "" {
		update.Status = domain.StatusPending
	}
	if update.CreatedAt.IsZero() {
		update.CreatedAt = now
	}
	update.UpdatedAt = update.CreatedAt
	return r.db.WithContext(ctx).Create(update).Error
}

func (r *updateRepository) FindByID(ctx context.Context, tenantID, id string) (*domain.PendingUpdate, error) {
	return r.first(r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id))
}

func (r *updateRepository) FindPending(ctx context.Context, tenantID, id string) (*domain.PendingUpdate, error) {
	return r.first(r.db.WithContext(ctx).Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, domain.StatusPending))
}

func (r *updateRepository) first(q *gorm.DB) (*domain.PendingUpdate, error) {
	var update domain.PendingUpdate
	if err := q.First(&update).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &update, nil
}

func (r *updateRepository) List(ctx context.Context, tenantID, status string) ([]domain.PendingUpdate, error) {
	var updates []domain.PendingUpdate
	q := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("created_at DESC").Order("id DESC").Find(&updates).Error
	return updates, err
}

func (r *updateRepository) UpdateContent(ctx context.Context, update *domain.PendingUpdate) (bool, error) {
	update.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&domain.PendingUpdate{}).
		Where("tenant_id = ? AND id = ? AND status = ?", update.TenantID, update.ID, domain.StatusPending).
		Updates(map[string]interface{}{
			"subject":    update.Subject,
			"body_html":  update.BodyHTML,
			"body_plain": update.BodyPlain,
			"updated_at": update.UpdatedAt,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *updateRepository) Transition(ctx context.Context, tenantID, id, status string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.PendingUpdate{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, domain.StatusPending).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}

func (r *updateRepository) Claim(ctx context.Context, tenantID, id string, at time.Time) (*domain.PendingUpdate, error) {
	var claimed *domain.PendingUpdate
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.PendingUpdate{}).
			Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, domain.StatusPending).
			Updates(map[string]interface{}{
				"status":     domain.StatusSending,
				"updated_at": at,
			})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		row, err := r.first(tx.Where("tenant_id = ? AND id = ?", tenantID, id))
		claimed = row
		return err
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *updateRepository) Release(ctx context.Context, update *domain.PendingUpdate) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).
		Model(&domain.PendingUpdate{}).
		Where("tenant_id = ? AND id = ? AND status = ?", update.TenantID, update.ID, domain.StatusSending).
		Updates(map[string]interface{}{
			"status":     domain.StatusPending,
			"updated_at": now,
		}).Error
	if err != nil {
		return err
	}
	update.Status = domain.StatusPending
	update.UpdatedAt = now
	return nil
}

func (r *updateRepository) MarkSent(ctx context.Context, update *domain.PendingUpdate, sentAt time.Time) (*domain.UpdateHistory, error) {
	pendingID := update.ID
	history := &domain.UpdateHistory{
		ID:              uuid.New().String(),
		TenantID:        update.TenantID,
		ClientID:        update.ClientID,
		PendingUpdateID: &pendingID,
		Subject:         update.Subject,
		ChangeSummary:   update.ChangeSummary,
		SentAt:          sentAt,
		SnapshotVersion: update.SnapshotID,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.PendingUpdate{}).
			Where("tenant_id = ? AND id = ? AND status = ?", update.TenantID, update.ID, domain.StatusSending).
			Updates(map[string]interface{}{
				"status":     domain.StatusSent,
				"sent_at":    sentAt,
				"updated_at": sentAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return tx.Create(history).Error
	})
	if err != nil {
		return nil, err
	}

	update.Status = domain.StatusSent
	update.SentAt = &sentAt
	update.UpdatedAt = sentAt
	return history, nil
}

func (r *updateRepository) HasRecentPending(ctx context.Context, tenantID, clientID string, since time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.PendingUpdate{}).
		Where("tenant_id = ? AND client_id = ? AND status IN ? AND created_at >= ?", tenantID, clientID, []string{domain.StatusPending, domain.StatusSending}, since).
		Count(&count).Error
	return count > 0, err
}

func (r *updateRepository) ListHistory(ctx context.Context, tenantID, clientID string) ([]domain.UpdateHistory, error) {
	var history []domain.UpdateHistory
	q := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if clientID != "" {
		q = q.Where("client_id = ?", clientID)
	}
	err := q.Order("sent_at DESC").Find(&history).Error
	return history, err
}
