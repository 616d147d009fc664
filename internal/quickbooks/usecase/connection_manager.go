package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"client-update-agent/internal/quickbooks/domain"
	"client-update-agent/internal/quickbooks/dto"
	"client-update-agent/internal/quickbooks/repository"
	"client-update-agent/pkg/qbo"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	refreshMargin      = 5 * time.Minute
	defaultTokenTTLSec = 3600

	stateTTL      = 10 * time.Minute
	stateAudience = "qb-connect"
)

type connectionManager struct {
	repo        repository.ConnectionRepository
	oauth       *oauth2.Config
	stateSecret []byte
	tenants     TenantLookup
	log         *zap.Logger
	now         func() time.Time
}

// NewConnectionManager signs OAuth state with stateSecret.
func NewConnectionManager(repo repository.ConnectionRepository, oauth *oauth2.Config, stateSecret []byte, tenants TenantLookup, log *zap.Logger) ConnectionManager {
	return &connectionManager{
		repo:        repo,
		oauth:       oauth,
		stateSecret: stateSecret,
		tenants:     tenants,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// AuthorizeURL carries a short-lived signed token naming the tenant as
// OAuth state so the callback knows which tenant authorized.
func (m *connectionManager) AuthorizeURL(tenantID string) (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		Subject:   tenantID,
		Audience:  jwt.ClaimStrings{stateAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
	}
	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.stateSecret)
	if err != nil {
		return "", fmt.Errorf("sign oauth state: %w", err)
	}
	return m.oauth.AuthCodeURL(state), nil
}

// tenantFromState returns the tenant named by a valid, unexpired state.
func (m *connectionManager) tenantFromState(state string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		return m.stateSecret, nil
	}
	_, err := jwt.ParseWithClaims(state, claims, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(stateAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || claims.Subject == "" {
		return "", domain.ErrInvalidCallback
	}
	return claims.Subject, nil
}

func (m *connectionManager) HandleCallback(ctx context.Context, code, realmID, state string) error {
	if code == "" || realmID == "" || state == "" {
		return domain.ErrInvalidCallback
	}
	tenantID, err := m.tenantFromState(state)
	if err != nil {
		m.log.Warn("QuickBooks callback carried an invalid state", zap.String("realm_id", realmID))
		return err
	}
	if m.tenants != nil {
		ok, err := m.tenants.TenantExists(ctx, tenantID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidCallback
		}
	}

	tok, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		return &qbo.RemoteServiceError{Op: "exchange code", Err: err}
	}

	conn := &domain.Connection{
		TenantID:       tenantID,
		RealmID:        realmID,
		AccessToken:    tok.AccessToken,
		RefreshToken:   tok.RefreshToken,
		TokenExpiresAt: m.expiry(tok),
	}
	if err := m.repo.Upsert(ctx, conn); err != nil {
		return fmt.Errorf("save connection: %w", err)
	}

	m.log.Info("QuickBooks connected",
		zap.String("tenant_id", tenantID),
		zap.String("realm_id", realmID),
	)
	return nil
}

func (m *connectionManager) GetValidConnection(ctx context.Context, tenantID string) (*domain.Connection, error) {
	conn, err := m.repo.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, nil
	}
	if conn.TokenExpiresAt.Sub(m.now()) >= refreshMargin {
		return conn, nil
	}

	if err := m.refresh(ctx, conn); err != nil {
		m.log.Warn("QuickBooks token refresh failed",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		return nil, nil
	}
	// Intuit may already have rotated the refresh token, so a storage
	// failure here is an error, not a disconnect.
	if err := m.repo.UpdateTokens(ctx, conn); err != nil {
		return nil, fmt.Errorf("persist refreshed token: %w", err)
	}
	return conn, nil
}

// refresh asks the token endpoint for a new access token and updates conn
// in memory.
func (m *connectionManager) refresh(ctx context.Context, conn *domain.Connection) error {
	// no access token forces the source to hit the token endpoint
	src := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: conn.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return err
	}

	conn.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		conn.RefreshToken = tok.RefreshToken
	}
	conn.TokenExpiresAt = m.expiry(tok)
	return nil
}

func (m *connectionManager) expiry(tok *oauth2.Token) time.Time {
	switch {
	case tok.ExpiresIn > 0:
		return m.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	case !tok.Expiry.IsZero():
		return m.now().Add(time.Until(tok.Expiry))
	default:
		return m.now().Add(defaultTokenTTLSec * time.Second)
	}
}

func (m *connectionManager) Status(ctx context.Context, tenantID string) (*dto.StatusResponse, error) {
	conn, err := m.GetValidConnection(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return &dto.StatusResponse{Connected: false}, nil
	}
	realm := conn.RealmID
	return &dto.StatusResponse{Connected: true, RealmID: &realm}, nil
}

func (m *connectionManager) ConnectedTenants(ctx context.Context) ([]string, error) {
	return m.repo.ListTenantIDs(ctx)
}

// requireConnection turns a missing connection into ErrNotConnected.
func requireConnection(ctx context.Context, m ConnectionManager, tenantID string) (*domain.Connection, error) {
	conn, err := m.GetValidConnection(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, domain.ErrNotConnected
	}
	return conn, nil
}

func isNotConnected(err error) bool {
	return errors.Is(err, domain.ErrNotConnected)
}
