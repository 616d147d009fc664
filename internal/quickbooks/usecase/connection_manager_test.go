package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"client-update-agent/internal/quickbooks/domain"
	"client-update-agent/internal/quickbooks/repository"
	"client-update-agent/pkg/database"
	"client-update-agent/pkg/qbo"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeIntuit struct {
	server    *httptest.Server
	refreshes atomic.Int32
	queries   atomic.Int32
}

func newFakeIntuit(t *testing.T) *fakeIntuit {
	t.Helper()
	f := &fakeIntuit{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		switch r.Form.Get("grant_type") {
		case "authorization_code":
			if r.Form.Get("code") != "good-code" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","token_type":"bearer","expires_in":3600}`))
		case "refresh_token":
			f.refreshes.Add(1)
			if r.Form.Get("refresh_token") == "revoked" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"at-2","refresh_token":"rt-2","token_type":"bearer","expires_in":3600}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/v3/company/realm-1/query", func(w http.ResponseWriter, r *http.Request) {
		f.queries.Add(1)
		w.Header().Set("Content-Type", "application/json")
		q := r.URL.Query().Get("query")
		if r.Header.Get("Authorization") != "Bearer at-1" && r.Header.Get("Authorization") != "Bearer at-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if len(q) > 15 && q[:15] == "SELECT * FROM C" {
			_ = json.NewEncoder(w).Encode(map[string]any{"QueryResponse": map[string]any{
				"Customer": []map[string]any{{"Id": "1", "DisplayName": "Acme", "Active": true}},
			}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"QueryResponse": map[string]any{
			"Invoice": []map[string]any{{"Id": "9", "DocNumber": "1009", "TotalAmt": 75, "Balance": 75, "TxnDate": "2024-03-01"}},
		}})
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

type env struct {
	intuit  *fakeIntuit
	repo    repository.ConnectionRepository
	manager *connectionManager
	fetcher Fetcher
	now     time.Time
}

func setup(t *testing.T) *env {
	t.Helper()
	db, err := database.OpenSQLiteMemory()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Connection{}))

	intuit := newFakeIntuit(t)
	oauth := qbo.OAuthConfig("cid", "secret", "http://localhost/cb", intuit.server.URL+"/auth", intuit.server.URL+"/token")
	repo := repository.NewConnectionRepository(db)
	known := TenantLookupFunc(func(_ context.Context, id string) (bool, error) { return id == "t1" || id == "t2", nil })

	e := &env{intuit: intuit, repo: repo, now: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
	m := NewConnectionManager(repo, oauth, []byte("state-secret"), known, zap.NewNop()).(*connectionManager)
	m.now = func() time.Time { return e.now }
	e.manager = m
	e.fetcher = NewFetcher(m, qbo.NewClient(intuit.server.URL, 0, nil))
	return e
}

func (e *env) seed(t *testing.T, tenantID, refreshToken string, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, e.repo.Upsert(context.Background(), &domain.Connection{
		TenantID: tenantID, RealmID: "realm-1", AccessToken: "at-1", RefreshToken: refreshToken, TokenExpiresAt: expiresAt,
	}))
}

// state returns the OAuth state the consent URL carries for tenantID.
func (e *env) state(t *testing.T, tenantID string) string {
	t.Helper()
	raw, err := e.manager.AuthorizeURL(tenantID)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestAuthorizeURL(t *testing.T) {
	e := setup(t)
	raw, err := e.manager.AuthorizeURL("t1")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	state := u.Query().Get("state")
	assert.NotEqual(t, "t1", state, "tenant id is never sent bare")
	assert.Equal(t, qbo.Scope, u.Query().Get("scope"))
	assert.Equal(t, "code", u.Query().Get("response_type"))

	tenantID, err := e.manager.tenantFromState(state)
	require.NoError(t, err)
	assert.Equal(t, "t1", tenantID)
}

func TestHandleCallback(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	state := e.state(t, "t1")

	assert.ErrorIs(t, e.manager.HandleCallback(ctx, "", "realm-1", state), domain.ErrInvalidCallback)
	assert.ErrorIs(t, e.manager.HandleCallback(ctx, "good-code", "", state), domain.ErrInvalidCallback)
	assert.ErrorIs(t, e.manager.HandleCallback(ctx, "good-code", "realm-1", ""), domain.ErrInvalidCallback)
	assert.ErrorIs(t, e.manager.HandleCallback(ctx, "good-code", "realm-1", e.state(t, "ghost")), domain.ErrInvalidCallback)

	err := e.manager.HandleCallback(ctx, "bad-code", "realm-1", state)
	assert.True(t, qbo.IsRemoteServiceError(err))

	require.NoError(t, e.manager.HandleCallback(ctx, "good-code", "realm-1", state))
	conn, err := e.repo.FindByTenant(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, "at-1", conn.AccessToken)
	assert.Equal(t, "rt-1", conn.RefreshToken)
	assert.WithinDuration(t, e.now.Add(time.Hour), conn.TokenExpiresAt, time.Second)

	// reconnecting updates the same row
	require.NoError(t, e.manager.HandleCallback(ctx, "good-code", "realm-2", state))
	again, err := e.repo.FindByTenant(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, conn.ID, again.ID)
	assert.Equal(t, "realm-2", again.RealmID)
}

func TestHandleCallback_RejectsForgedState(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	assert.ErrorIs(t, e.manager.HandleCallback(ctx, "good-code", "realm-9", "t1"), domain.ErrInvalidCallback, "bare tenant id")

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "t1",
		Audience:  jwt.ClaimStrings{stateAudience},
		ExpiresAt: jwt.NewNumericDate(e.now.Add(time.Minute)),
	}).SignedString([]byte("someone-else"))
	require.NoError(t, err)
	assert.ErrorIs(t, e.manager.HandleCallback(ctx, "good-code", "realm-9", forged), domain.ErrInvalidCallback, "wrong key")

	stale := e.state(t, "t1")
	e.now = e.now.Add(stateTTL + time.Minute)
	assert.ErrorIs(t, e.manager.HandleCallback(ctx, "good-code", "realm-9", stale), domain.ErrInvalidCallback, "expired")

	conn, err := e.repo.FindByTenant(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, conn, "no connection was attached")
}

func TestGetValidConnection_NotConnected(t *testing.T) {
	e := setup(t)
	conn, err := e.manager.GetValidConnection(context.Background(), "t1")
	require.NoError(t, err)
	assert.Nil(t, conn)

	status, err := e.manager.Status(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.Nil(t, status.RealmID)
}

func TestGetValidConnection_FreshTokenIsNotRefreshed(t *testing.T) {
	e := setup(t)
	e.seed(t, "t1", "rt-1", e.now.Add(30*time.Minute))

	conn, err := e.manager.GetValidConnection(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, "at-1", conn.AccessToken)
	assert.Zero(t, e.intuit.refreshes.Load())
}

func TestGetValidConnection_RefreshesNearExpiry(t *testing.T) {
	e := setup(t)
	e.seed(t, "t1", "rt-1", e.now.Add(4*time.Minute))

	conn, err := e.manager.GetValidConnection(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, "at-2", conn.AccessToken)
	assert.EqualValues(t, 1, e.intuit.refreshes.Load())

	stored, err := e.repo.FindByTenant(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", stored.AccessToken)
	assert.Equal(t, "rt-2", stored.RefreshToken, "rotated refresh token is kept")
	assert.WithinDuration(t, e.now.Add(time.Hour), stored.TokenExpiresAt, time.Second)

	status, err := e.manager.Status(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, "realm-1", *status.RealmID)
}

func TestGetValidConnection_RefreshFailureYieldsNil(t *testing.T) {
	e := setup(t)
	e.seed(t, "t1", "revoked", e.now.Add(-time.Hour))

	conn, err := e.manager.GetValidConnection(context.Background(), "t1")
	require.NoError(t, err)
	assert.Nil(t, conn)
}

type failingTokenStore struct {
	repository.ConnectionRepository
}

func (failingTokenStore) UpdateTokens(context.Context, *domain.Connection) error {
	return errors.New("disk full")
}

func TestGetValidConnection_PersistFailureIsAnError(t *testing.T) {
	e := setup(t)
	e.seed(t, "t1", "rt-1", e.now.Add(time.Minute))
	e.manager.repo = failingTokenStore{e.repo}

	conn, err := e.manager.GetValidConnection(context.Background(), "t1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Nil(t, conn)
	assert.EqualValues(t, 1, e.intuit.refreshes.Load())
}

func TestFetcher(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	customers, err := e.fetcher.FetchCustomers(ctx, "t2")
	require.NoError(t, err)
	assert.Empty(t, customers)
	invoices, err := e.fetcher.FetchInvoices(ctx, "t2", "1")
	require.NoError(t, err)
	assert.Empty(t, invoices)
	assert.Zero(t, e.intuit.queries.Load(), "no remote call without a connection")

	e.seed(t, "t1", "rt-1", e.now.Add(time.Hour))
	customers, err = e.fetcher.FetchCustomers(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "Acme", customers[0].DisplayName)

	invoices, err = e.fetcher.FetchInvoices(ctx, "t1", "1")
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "75", invoices[0].TotalAmt.String())
}

func TestFetcher_RemoteError(t *testing.T) {
	e := setup(t)
	require.NoError(t, e.repo.Upsert(context.Background(), &domain.Connection{
		TenantID: "t1", RealmID: "realm-1", AccessToken: "stale", RefreshToken: "rt", TokenExpiresAt: e.now.Add(time.Hour),
	}))

	_, err := e.fetcher.FetchCustomers(context.Background(), "t1")
	require.Error(t, err)
	assert.True(t, qbo.IsRemoteServiceError(err))
}

func TestConnectedTenants(t *testing.T) {
	e := setup(t)
	e.seed(t, "t2", "rt", e.now.Add(time.Hour))
	e.seed(t, "t1", "rt", e.now.Add(time.Hour))

	ids, err := e.manager.ConnectedTenants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, ids)
}
