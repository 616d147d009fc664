package delivery

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	authdomain "client-update-agent/internal/auth/domain"
	authdto "client-update-agent/internal/auth/dto"
	"client-update-agent/internal/auth/repository"
	"client-update-agent/internal/auth/usecase"
	"client-update-agent/pkg/config"
	"client-update-agent/pkg/database"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLiteMemory()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&authdomain.Tenant{}, &authdomain.User{}, &authdomain.RefreshToken{}, &authdomain.DeviceToken{}))

	cfg := &config.Config{
		JWTSecret:          "handler-secret",
		JWTAccessExpiry:    time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		RefreshCookieName:  "refresh_token",
		CookieSameSite:     "lax",
	}
	uc := usecase.NewAuthUsecase(repository.NewUserRepository(db), repository.NewDeviceTokenRepository(db), cfg, zap.NewNop())
	h := NewAuthHandler(uc, cfg, zap.NewNop())

	r := gin.New()
	auth := r.Group("/api/auth")
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.Refresh)
	auth.POST("/logout", h.Logout)
	auth.GET("/me", AuthMiddleware(uc), h.Me)
	return r
}

func do(r *gin.Engine, method, path string, body any, cookie *http.Cookie, bearer string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func refreshCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "refresh_token" {
			return c
		}
	}
	t.Fatalf("no refresh cookie in response")
	return nil
}

func TestAuthFlow(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/auth/register", gin.H{
		"email": "owner@example.com", "password": "long-enough", "tenant_name": "Owner Books",
	}, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var tok authdto.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	assert.Equal(t, "bearer", tok.TokenType)
	assert.Equal(t, "owner@example.com", tok.Email)

	first := refreshCookie(t, w)
	assert.True(t, first.HttpOnly)
	assert.Equal(t, "/api/auth", first.Path)
	assert.Equal(t, http.SameSiteLaxMode, first.SameSite)

	w = do(r, http.MethodGet, "/api/auth/me", nil, nil, tok.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "owner-books")

	w = do(r, http.MethodPost, "/api/auth/refresh", nil, first, "")
	require.Equal(t, http.StatusOK, w.Code)
	second := refreshCookie(t, w)
	assert.NotEqual(t, first.Value, second.Value)

	// the old cookie is dead and the response clears it
	w = do(r, http.MethodPost, "/api/auth/refresh", nil, first, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.True(t, refreshCookie(t, w).MaxAge < 0)

	w = do(r, http.MethodPost, "/api/auth/logout", nil, second, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, refreshCookie(t, w).MaxAge < 0)

	w = do(r, http.MethodPost, "/api/auth/refresh", nil, second, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthErrors(t *testing.T) {
	r := newTestRouter(t)
	body := gin.H{"email": "x@example.com", "password": "long-enough", "tenant_name": "X"}
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/auth/register", body, nil, "").Code)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/auth/register", body, nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/auth/register", gin.H{"email": "bad"}, nil, "").Code)

	w := do(r, http.MethodPost, "/api/auth/login", gin.H{"email": "x@example.com", "password": "nope"}, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/api/auth/refresh", nil, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/auth/me", nil, nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/auth/me", nil, nil, "not-a-jwt").Code)
}
