package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	agentdelivery "client-update-agent/internal/agent/delivery"
	agentusecase "client-update-agent/internal/agent/usecase"
	authdelivery "client-update-agent/internal/auth/delivery"
	authdomain "client-update-agent/internal/auth/domain"
	authrepo "client-update-agent/internal/auth/repository"
	authusecase "client-update-agent/internal/auth/usecase"
	clientdelivery "client-update-agent/internal/client/delivery"
	clientdomain "client-update-agent/internal/client/domain"
	clientrepo "client-update-agent/internal/client/repository"
	clientusecase "client-update-agent/internal/client/usecase"
	qbdelivery "client-update-agent/internal/quickbooks/delivery"
	qbdomain "client-update-agent/internal/quickbooks/domain"
	qbrepo "client-update-agent/internal/quickbooks/repository"
	qbusecase "client-update-agent/internal/quickbooks/usecase"
	snapshotdomain "client-update-agent/internal/snapshot/domain"
	snapshotrepo "client-update-agent/internal/snapshot/repository"
	updatedelivery "client-update-agent/internal/update/delivery"
	updatedomain "client-update-agent/internal/update/domain"
	updaterepo "client-update-agent/internal/update/repository"
	updateusecase "client-update-agent/internal/update/usecase"
	"client-update-agent/pkg/config"
	"client-update-agent/pkg/database"
	"client-update-agent/pkg/qbo"
	"client-update-agent/pkg/runlock"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubPinger struct {
	err error
	got string
}

func (p *stubPinger) Ping(_ context.Context, baseURL string) error {
	p.got = baseURL
	return p.err
}

type testEnv struct {
	engine  *gin.Engine
	users   authrepo.UserRepository
	conns   qbusecase.ConnectionManager
	runtime *RuntimeConfig
	pinger  *stubPinger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	db, err := database.OpenSQLiteMemory()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&authdomain.Tenant{}, &authdomain.User{}, &authdomain.RefreshToken{}, &authdomain.DeviceToken{},
		&qbdomain.Connection{}, &clientdomain.Client{}, &snapshotdomain.ClientSnapshot{},
		&updatedomain.PendingUpdate{}, &updatedomain.UpdateHistory{},
	))

	cfg := &config.Config{
		Env:                "test",
		JWTSecret:          "router-secret",
		JWTAccessExpiry:    time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		RefreshCookieName:  "refresh_token",
		CookieSameSite:     "lax",
		FrontendURL:        "http://app.local",
	}

	users := authrepo.NewUserRepository(db)
	authUc := authusecase.NewAuthUsecase(users, authrepo.NewDeviceTokenRepository(db), cfg, log)

	oauthCfg := qbo.OAuthConfig("id", "secret", "http://localhost/api/qb/callback", "http://intuit.local/auth", "http://intuit.local/token")
	conns := qbusecase.NewConnectionManager(qbrepo.NewConnectionRepository(db), oauthCfg, []byte(cfg.JWTSecret), TenantLookup(users), log)
	fetcher := qbusecase.NewFetcher(conns, qbo.NewClient("http://qbo.local", 100, nil))

	clients := clientrepo.NewClientRepository(db)
	snapshots := snapshotrepo.NewSnapshotRepository(db)
	updates := updaterepo.NewUpdateRepository(db)
	clientUc := clientusecase.NewClientUsecase(clients, snapshots, fetcher, log)
	updateUc := updateusecase.NewUpdateUsecase(updates, clients, nil, nil, log)
	composer := agentusecase.NewDraftComposer(nil, time.Second, 0, log)
	agentUc := agentusecase.NewAgentUsecase(db, conns, clientUc, fetcher, clients, snapshots, updates, composer, runlock.NewMemoryLocker(), log)

	runtime := NewRuntimeConfig("http://ollama.local:11434", "llama3")
	pinger := &stubPinger{}

	srv := NewServer(cfg, authUc, Handlers{
		Auth:       authdelivery.NewAuthHandler(authUc, cfg, log),
		Clients:    clientdelivery.NewClientHandler(clientUc, log),
		Updates:    updatedelivery.NewUpdateHandler(updateUc, log),
		QuickBooks: qbdelivery.NewQuickBooksHandler(conns, cfg.FrontendURL, log),
		Agent:      agentdelivery.NewAgentHandler(agentUc, updateUc, log),
		Settings:   NewSettingsHandler(runtime, pinger, "ollama"),
	}, false, log)

	return &testEnv{engine: srv.Engine(), users: users, conns: conns, runtime: runtime, pinger: pinger}
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *testEnv) register(t *testing.T, email, tenant string) (token, tenantID string) {
	t.Helper()
	w := e.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": "correct-horse", "tenant_name": tenant,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		AccessToken string `json:"access_token"`
		TenantID    string `json:"tenant_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res.AccessToken, res.TenantID
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodGet, "/api/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	e := newTestEnv(t)
	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/clients"},
		{http.MethodGet, "/api/pending-updates"},
		{http.MethodGet, "/api/updates/history"},
		{http.MethodGet, "/api/qb/connect"},
		{http.MethodPost, "/api/qb/sync-clients"},
		{http.MethodPost, "/api/agent/run"},
		{http.MethodGet, "/api/settings/ai"},
		{http.MethodPost, "/api/fcm/register"},
	}
	for _, r := range routes {
		w := e.do(r.method, r.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, r.method+" "+r.path)
	}
}

func TestCORSPreflight(t *testing.T) {
	e := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/agent/run", nil)
	req.Header.Set("Origin", "http://app.local")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://app.local", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestAgentRunWithoutConnection(t *testing.T) {
	e := newTestEnv(t)
	token, _ := e.register(t, "owner@acme.io", "Acme")

	w := e.do(http.MethodPost, "/api/agent/run", token, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"connected":false,"synced":0,"created":[],"clients":[]}`, w.Body.String())

	w = e.do(http.MethodGet, "/api/pending-updates", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestQuickBooksConnectAndStatus(t *testing.T) {
	e := newTestEnv(t)
	token, tenantID := e.register(t, "owner@acme.io", "Acme")

	w := e.do(http.MethodGet, "/api/qb/connect", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	consent, err := url.Parse(res.URL)
	require.NoError(t, err)
	state := consent.Query().Get("state")
	assert.NotEmpty(t, state)
	assert.NotEqual(t, tenantID, state)

	w = e.do(http.MethodGet, "/api/qb/callback?code=x&realmId=r1&state="+tenantID, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "bare tenant id is not a valid state")

	w = e.do(http.MethodGet, "/api/qb/status", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"connected":false,"realm_id":null}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/qb/sync-clients", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"synced":0}`, w.Body.String())
}

func TestAISettings(t *testing.T) {
	e := newTestEnv(t)
	token, _ := e.register(t, "owner@acme.io", "Acme")

	w := e.do(http.MethodGet, "/api/settings/ai", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"provider":"ollama","ollama_base_url":"http://ollama.local:11434","ollama_model":"llama3"}`, w.Body.String())

	w = e.do(http.MethodPut, "/api/settings/ai", token, map[string]string{"ollama_base_url": "http://gpu.local:11434"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://gpu.local:11434", e.runtime.OllamaBaseURL())
	assert.Equal(t, "llama3", e.runtime.OllamaModel())

	w = e.do(http.MethodPut, "/api/settings/ai", token, map[string]string{"ollama_model": "mistral"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/settings/ai/test", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://gpu.local:11434", e.pinger.got)

	e.pinger.err = errors.New("connection refused")
	w = e.do(http.MethodPost, "/api/settings/ai/test", token, map[string]string{"ollama_base_url": "http://down.local"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "http://down.local", e.pinger.got)
}

func TestActiveTenants(t *testing.T) {
	e := newTestEnv(t)
	_, tenantID := e.register(t, "owner@acme.io", "Acme")

	// no connection yet
	ids, err := NewActiveTenants(e.conns, e.users).ConnectedTenants(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)

	ok, err := TenantLookup(e.users).TenantExists(context.Background(), tenantID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = TenantLookup(e.users).TenantExists(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
