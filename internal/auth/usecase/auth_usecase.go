package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	authdomain "client-update-agent/internal/auth/domain"
	authdto "client-update-agent/internal/auth/dto"
	"client-update-agent/internal/auth/repository"
	"client-update-agent/pkg/config"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const tokenTypeAccess = "access"

// AccessClaims is the payload of a bearer access token.
type AccessClaims struct {
	TenantID  string `json:"tenant_id"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	userRepo   repository.UserRepository
	deviceRepo repository.DeviceTokenRepository
	config     *config.Config
	log        *zap.Logger
	now        func() time.Time
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(userRepo repository.UserRepository, deviceRepo repository.DeviceTokenRepository, cfg *config.Config, log *zap.Logger) AuthUsecase {
	return &authUsecase{
		userRepo:   userRepo,
		deviceRepo: deviceRepo,
		config:     cfg,
		log:        log.Named("auth"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (u *authUsecase) Register(ctx context.Context, req *authdto.RegisterRequest) (*authdto.Session, error) {
	email := normalizeEmail(req.Email)
	existing, err := u.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, authdomain.ErrEmailTaken
	}

	slug, err := uniqueSlug(ctx, Slugify(req.TenantName), u.userRepo.SlugExists)
	if err != nil {
		return nil, err
	}

	hashedPassword, err := repository.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	tenant := &authdomain.Tenant{
		Name:     strings.TrimSpace(req.TenantName),
		Slug:     slug,
		IsActive: true,
	}
	user := &authdomain.User{
		Email:          email,
		HashedPassword: hashedPassword,
		FullName:       strings.TrimSpace(req.FullName),
		IsActive:       true,
	}
	if err := u.userRepo.CreateTenantWithOwner(ctx, tenant, user); err != nil {
		return nil, err
	}

	u.log.Info("Tenant registered", zap.String("tenant_id", tenant.ID), zap.String("slug", slug))
	return u.newSession(ctx, user)
}

func (u *authUsecase) Login(ctx context.Context, req *authdto.LoginRequest) (*authdto.Session, error) {
	user, err := u.userRepo.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if user == nil || user.HashedPassword == "" || !repository.CheckPasswordHash(req.Password, user.HashedPassword) {
		return nil, authdomain.ErrInvalidCredentials
	}
	if err := u.ensureActive(ctx, user); err != nil {
		return nil, err
	}
	return u.newSession(ctx, user)
}

func (u *authUsecase) Refresh(ctx context.Context, refreshToken string) (*authdto.Session, error) {
	if refreshToken == "" {
		return nil, authdomain.ErrInvalidSession
	}
	oldHash := hashToken(refreshToken)

	stored, err := u.userRepo.FindRefreshToken(ctx, oldHash)
	if err != nil {
		return nil, err
	}
	if stored == nil || !stored.ExpiresAt.After(u.now()) {
		return nil, authdomain.ErrInvalidSession
	}

	user, err := u.userRepo.FindByID(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, authdomain.ErrInvalidSession
	}
	if err := u.ensureActive(ctx, user); err != nil {
		return nil, err
	}

	raw, next, err := u.newRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}
	if err := u.userRepo.RotateRefreshToken(ctx, oldHash, next); err != nil {
		return nil, err
	}

	access, err := u.generateAccessToken(user)
	if err != nil {
		return nil, err
	}
	return &authdto.Session{
		Token:            tokenResponse(access, user),
		RefreshToken:     raw,
		RefreshExpiresAt: next.ExpiresAt,
	}, nil
}

func (u *authUsecase) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return u.userRepo.DeleteRefreshToken(ctx, hashToken(refreshToken))
}

func (u *authUsecase) ValidateToken(ctx context.Context, tokenString string) (*authdomain.User, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(u.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(u.now))
	if err != nil || !token.Valid {
		return nil, authdomain.ErrInvalidToken
	}
	if claims.TokenType != tokenTypeAccess || claims.Subject == "" {
		return nil, authdomain.ErrInvalidToken
	}

	user, err := u.userRepo.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive || user.TenantID != claims.TenantID {
		return nil, authdomain.ErrInvalidToken
	}
	return user, nil
}

func (u *authUsecase) Me(ctx context.Context, user *authdomain.User) (*authdto.MeResponse, error) {
	tenant, err := u.userRepo.FindTenantByID(ctx, user.TenantID)
	if err != nil {
		return nil, err
	}
	return &authdto.MeResponse{User: user, Tenant: tenant}, nil
}

func (u *authUsecase) RegisterDevice(ctx context.Context, user *authdomain.User, req *authdto.RegisterDeviceRequest) error {
	return u.deviceRepo.SaveToken(ctx, user.TenantID, user.ID, req.Token, req.DeviceInfo)
}

func (u *authUsecase) UnregisterDevice(ctx context.Context, user *authdomain.User, token string) error {
	return u.deviceRepo.DeleteToken(ctx, user.ID, token)
}

func (u *authUsecase) ensureActive(ctx context.Context, user *authdomain.User) error {
	if !user.IsActive {
		return authdomain.ErrTenantInactive
	}
	tenant, err := u.userRepo.FindTenantByID(ctx, user.TenantID)
	if err != nil {
		return err
	}
	if tenant == nil || !tenant.IsActive {
		return authdomain.ErrTenantInactive
	}
	return nil
}

func (u *authUsecase) newSession(ctx context.Context, user *authdomain.User) (*authdto.Session, error) {
	access, err := u.generateAccessToken(user)
	if err != nil {
		return nil, err
	}
	raw, stored, err := u.newRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}
	if err := u.userRepo.SaveRefreshToken(ctx, stored); err != nil {
		return nil, err
	}
	return &authdto.Session{
		Token:            tokenResponse(access, user),
		RefreshToken:     raw,
		RefreshExpiresAt: stored.ExpiresAt,
	}, nil
}

func (u *authUsecase) generateAccessToken(user *authdomain.User) (string, error) {
	now := u.now()
	claims := AccessClaims{
		TenantID:  user.TenantID,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(u.config.JWTAccessExpiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(u.config.JWTSecret))
}

// newRefreshToken returns the raw cookie value and the row that stores its hash.
func (u *authUsecase) newRefreshToken(userID string) (string, *authdomain.RefreshToken, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("generate refresh token: %w", err)
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)
	return raw, &authdomain.RefreshToken{
		UserID:    userID,
		TokenHash: hashToken(raw),
		ExpiresAt: u.now().Add(u.config.RefreshTokenExpiry),
	}, nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func tokenResponse(access string, user *authdomain.User) authdto.TokenResponse {
	return authdto.TokenResponse{
		AccessToken: access,
		TokenType:   "bearer",
		UserID:      user.ID,
		TenantID:    user.TenantID,
		Email:       user.Email,
	}
}

// IsAuthError reports whether err belongs to the 401/403 family.
func IsAuthError(err error) bool {
	return errors.Is(err, authdomain.ErrInvalidCredentials) ||
		errors.Is(err, authdomain.ErrInvalidSession) ||
		errors.Is(err, authdomain.ErrInvalidToken) ||
		errors.Is(err, authdomain.ErrTenantInactive)
}
