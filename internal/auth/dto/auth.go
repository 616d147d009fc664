package dto

import (
	"time"

	authdomain "client-update-agent/internal/auth/domain"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	FullName   string `json:"full_name"`
	TenantName string `json:"tenant_name" binding:"required"`
}

type RegisterDeviceRequest struct {
	Token      string `json:"token" binding:"required"`
	DeviceInfo string `json:"device_info"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id"`
	TenantID    string `json:"tenant_id"`
	Email       string `json:"email"`
}

// Session is what a successful login/register/refresh hands the delivery
// layer: the JSON body plus the refresh cookie to set.
type Session struct {
	Token            TokenResponse
	RefreshToken     string
	RefreshExpiresAt time.Time
}

type MeResponse struct {
	User   *authdomain.User   `json:"user"`
	Tenant *authdomain.Tenant `json:"tenant"`
}
