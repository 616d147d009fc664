package delivery

import (
	"errors"
	"net/http"
	"strings"

	authdelivery "client-update-agent/internal/auth/delivery"
	"client-update-agent/internal/quickbooks/domain"
	"client-update-agent/internal/quickbooks/dto"
	"client-update-agent/internal/quickbooks/usecase"
	"client-update-agent/pkg/qbo"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type QuickBooksHandler struct {
	conns       usecase.ConnectionManager
	frontendURL string
	log         *zap.Logger
}

func NewQuickBooksHandler(conns usecase.ConnectionManager, frontendURL string, log *zap.Logger) *QuickBooksHandler {
	return &QuickBooksHandler{
		conns:       conns,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		log:         log,
	}
}

// Connect returns the Intuit consent URL for the caller's tenant.
// GET /api/qb/connect
func (h *QuickBooksHandler) Connect(c *gin.Context) {
	url, err := h.conns.AuthorizeURL(authdelivery.TenantID(c))
	if err != nil {
		h.log.Error("QuickBooks connect URL failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not start QuickBooks authorization"})
		return
	}
	c.JSON(http.StatusOK, dto.ConnectURLResponse{URL: url})
}

// Callback is hit by Intuit after consent. It is not authenticated; the
// tenant comes back in the signed state.
// GET /api/qb/callback?code=...&realmId=...&state=...
func (h *QuickBooksHandler) Callback(c *gin.Context) {
	if reason := c.Query("error"); reason != "" {
		h.log.Warn("QuickBooks authorization declined", zap.String("reason", reason))
		c.Redirect(http.StatusFound, h.frontendURL+"/dashboard?qb=error")
		return
	}

	err := h.conns.HandleCallback(c.Request.Context(), c.Query("code"), c.Query("realmId"), c.Query("state"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCallback):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid code, realmId or state"})
		case qbo.IsRemoteServiceError(err):
			h.log.Warn("QuickBooks code exchange failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "QuickBooks token exchange failed"})
		default:
			h.log.Error("QuickBooks callback failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.Redirect(http.StatusFound, h.frontendURL+"/dashboard?qb=connected")
}

// GET /api/qb/status
func (h *QuickBooksHandler) Status(c *gin.Context) {
	status, err := h.conns.Status(c.Request.Context(), authdelivery.TenantID(c))
	if err != nil {
		h.log.Error("QuickBooks status failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}
