package usecase

import (
	"context"

	authdomain "client-update-agent/internal/auth/domain"
	authdto "client-update-agent/internal/auth/dto"
)

// AuthUsecase defines registration, session and device-token operations.
type AuthUsecase interface {
	Register(ctx context.Context, req *authdto.RegisterRequest) (*authdto.Session, error)
	Login(ctx context.Context, req *authdto.LoginRequest) (*authdto.Session, error)
	// Refresh consumes a refresh cookie value and returns a rotated session.
	Refresh(ctx context.Context, refreshToken string) (*authdto.Session, error)
	Logout(ctx context.Context, refreshToken string) error
	// ValidateToken resolves an access token to an active user.
	ValidateToken(ctx context.Context, accessToken string) (*authdomain.User, error)
	Me(ctx context.Context, user *authdomain.User) (*authdto.MeResponse, error)

	RegisterDevice(ctx context.Context, user *authdomain.User, req *authdto.RegisterDeviceRequest) error
	UnregisterDevice(ctx context.Context, user *authdomain.User, token string) error
}
