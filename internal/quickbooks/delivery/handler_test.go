package delivery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"client-update-agent/internal/quickbooks/domain"
	"client-update-agent/internal/quickbooks/dto"
	"client-update-agent/pkg/qbo"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockManager struct {
	mock.Mock
	urlErr error
}

func (m *mockManager) AuthorizeURL(tenantID string) (string, error) {
	if m.urlErr != nil {
		return "", m.urlErr
	}
	return "https://intuit.example/connect?state=" + tenantID, nil
}

func (m *mockManager) HandleCallback(ctx context.Context, code, realmID, state string) error {
	return m.Called(code, realmID, state).Error(0)
}

func (m *mockManager) GetValidConnection(context.Context, string) (*domain.Connection, error) {
	return nil, nil
}

func (m *mockManager) Status(ctx context.Context, tenantID string) (*dto.StatusResponse, error) {
	args := m.Called(tenantID)
	s, _ := args.Get(0).(*dto.StatusResponse)
	return s, args.Error(1)
}

func (m *mockManager) ConnectedTenants(context.Context) ([]string, error) { return nil, nil }

func newRouter(m *mockManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewQuickBooksHandler(m, "http://app.local/", zap.NewNop())
	r := gin.New()
	r.GET("/api/qb/callback", h.Callback)
	authed := r.Group("/api/qb", func(c *gin.Context) { c.Set("tenantID", "t1") })
	authed.GET("/connect", h.Connect)
	authed.GET("/status", h.Status)
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestConnect(t *testing.T) {
	w := get(newRouter(&mockManager{}), "/api/qb/connect")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"url":"https://intuit.example/connect?state=t1"}`, w.Body.String())

	w = get(newRouter(&mockManager{urlErr: errors.New("no key")}), "/api/qb/connect")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCallback(t *testing.T) {
	m := &mockManager{}
	m.On("HandleCallback", "c", "r", "t1").Return(nil)
	m.On("HandleCallback", "", "r", "t1").Return(domain.ErrInvalidCallback)
	m.On("HandleCallback", "bad", "r", "t1").Return(&qbo.RemoteServiceError{Op: "exchange code", Err: errors.New("invalid_grant")})
	r := newRouter(m)

	w := get(r, "/api/qb/callback?code=c&realmId=r&state=t1")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://app.local/dashboard?qb=connected", w.Header().Get("Location"))

	w = get(r, "/api/qb/callback?realmId=r&state=t1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(r, "/api/qb/callback?code=bad&realmId=r&state=t1")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = get(r, "/api/qb/callback?error=access_denied&state=t1")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://app.local/dashboard?qb=error", w.Header().Get("Location"))
}

func TestStatus(t *testing.T) {
	m := &mockManager{}
	realm := "realm-1"
	m.On("Status", "t1").Return(&dto.StatusResponse{Connected: true, RealmID: &realm}, nil)

	w := get(newRouter(m), "/api/qb/status")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"connected":true,"realm_id":"realm-1"}`, w.Body.String())
}
