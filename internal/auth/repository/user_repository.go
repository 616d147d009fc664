package repository

import (
	"context"
	"errors"
	"time"

	authdomain "client-update-agent/internal/auth/domain"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// userRepository implements UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of userRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{
		db: db,
	}
}

// CreateTenantWithOwner inserts a tenant and its first user atomically.
func (r *userRepository) CreateTenantWithOwner(ctx context.Context, tenant *authdomain.Tenant, user *authdomain.User) error {
	now := time.Now().UTC()
	if tenant.ID == "" {
		tenant.ID = uuid.New().String()
	}
	tenant.CreatedAt = now
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.TenantID = tenant.ID
	user.CreatedAt = now
	user.UpdatedAt = now

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(tenant).Error; err != nil {
			return err
		}
		return tx.Create(user).Error
	})
}

func (r *userRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&authdomain.Tenant{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

func (r *userRepository) FindTenantByID(ctx context.Context, id string) (*authdomain.Tenant, error) {
	var tenant authdomain.Tenant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tenant, nil
}

func (r *userRepository) ListActiveTenants(ctx context.Context) ([]authdomain.Tenant, error) {
	var tenants []authdomain.Tenant
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("created_at ASC").Find(&tenants).Error
	return tenants, err
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*authdomain.User, error) {
	var user authdomain.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*authdomain.User, error) {
	var user authdomain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ListActiveByTenant(ctx context.Context, tenantID string) ([]authdomain.User, error) {
	var users []authdomain.User
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND is_active = ?", tenantID, true).Find(&users).Error
	return users, err
}

func (r *userRepository) SaveRefreshToken(ctx context.Context, token *authdomain.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	token.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *userRepository) FindRefreshToken(ctx context.Context, tokenHash string) (*authdomain.RefreshToken, error) {
	var refreshToken authdomain.RefreshToken
	err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&refreshToken).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refreshToken, nil
}

// RotateRefreshToken consumes oldHash and stores next in one transaction.
// It fails with ErrInvalidSession when oldHash was already consumed, so a
// replayed cookie cannot mint a second session.
func (r *userRepository) RotateRefreshToken(ctx context.Context, oldHash string, next *authdomain.RefreshToken) error {
	if next.ID == "" {
		next.ID = uuid.New().String()
	}
	next.CreatedAt = time.Now().UTC()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("token_hash = ?", oldHash).Delete(&authdomain.RefreshToken{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return authdomain.ErrInvalidSession
		}
		// opportunistic cleanup of this user's expired sessions
		if err := tx.Where("user_id = ? AND expires_at < ?", next.UserID, next.CreatedAt).Delete(&authdomain.RefreshToken{}).Error; err != nil {
			return err
		}
		return tx.Create(next).Error
	})
}

func (r *userRepository) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	return r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Delete(&authdomain.RefreshToken{}).Error
}

func (r *userRepository) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&authdomain.RefreshToken{})
	return res.RowsAffected, res.Error
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with a hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
