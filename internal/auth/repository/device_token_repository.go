package repository

import (
	"context"
	"time"

	authdomain "client-update-agent/internal/auth/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type deviceTokenRepository struct {
	db *gorm.DB
}

func NewDeviceTokenRepository(db *gorm.DB) DeviceTokenRepository {
	return &deviceTokenRepository{db: db}
}

// SaveToken upserts on the token value, so a device that changes hands
// follows its latest user.
func (r *deviceTokenRepository) SaveToken(ctx context.Context, tenantID, userID, token, deviceInfo string) error {
	now := time.Now().UTC()
	row := &authdomain.DeviceToken{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		UserID:     userID,
		Token:      token,
		DeviceInfo: deviceInfo,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"tenant_id", "user_id", "device_info", "updated_at"}),
	}).Create(row).Error
}

func (r *deviceTokenRepository) GetTokensByTenant(ctx context.Context, tenantID string) ([]authdomain.DeviceToken, error) {
	var tokens []authdomain.DeviceToken
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Find(&tokens).Error
	return tokens, err
}

func (r *deviceTokenRepository) DeleteToken(ctx context.Context, userID, token string) error {
	return r.db.WithContext(ctx).Where("user_id = ? AND token = ?", userID, token).Delete(&authdomain.DeviceToken{}).Error
}

func (r *deviceTokenRepository) DeleteTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("token IN ?", tokens).Delete(&authdomain.DeviceToken{}).Error
}
