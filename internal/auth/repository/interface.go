package repository

import (
	"context"
	"time"

	authdomain "client-update-agent/internal/auth/domain"
)

// UserRepository covers tenants, users and refresh-token sessions.
// Finders return nil, nil when nothing matches.
type UserRepository interface {
	CreateTenantWithOwner(ctx context.Context, tenant *authdomain.Tenant, user *authdomain.User) error
	SlugExists(ctx context.Context, slug string) (bool, error)
	FindTenantByID(ctx context.Context, id string) (*authdomain.Tenant, error)
	ListActiveTenants(ctx context.Context) ([]authdomain.Tenant, error)

	FindByEmail(ctx context.Context, email string) (*authdomain.User, error)
	FindByID(ctx context.Context, id string) (*authdomain.User, error)
	ListActiveByTenant(ctx context.Context, tenantID string) ([]authdomain.User, error)

	SaveRefreshToken(ctx context.Context, token *authdomain.RefreshToken) error
	FindRefreshToken(ctx context.Context, tokenHash string) (*authdomain.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, oldHash string, next *authdomain.RefreshToken) error
	DeleteRefreshToken(ctx context.Context, tokenHash string) error
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type DeviceTokenRepository interface {
	SaveToken(ctx context.Context, tenantID, userID, token, deviceInfo string) error
	GetTokensByTenant(ctx context.Context, tenantID string) ([]authdomain.DeviceToken, error)
	DeleteToken(ctx context.Context, userID, token string) error
	DeleteTokens(ctx context.Context, tokens []string) error
}
