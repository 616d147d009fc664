package delivery

import (
	"errors"
	"net/http"

	authdomain "client-update-agent/internal/auth/domain"
	authdto "client-update-agent/internal/auth/dto"
	"client-update-agent/internal/auth/usecase"
	"client-update-agent/pkg/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authUsecase usecase.AuthUsecase
	config      *config.Config
	log         *zap.Logger
}

func NewAuthHandler(authUsecase usecase.AuthUsecase, cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{authUsecase: authUsecase, config: cfg, log: log}
}

// Register creates a tenant and its first user.
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req authdto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.authUsecase.Register(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeSession(c, session)
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req authdto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.authUsecase.Login(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeSession(c, session)
}

// Refresh rotates the refresh cookie. Any failure clears it.
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	raw, _ := c.Cookie(h.config.RefreshCookieName)
	if raw == "" {
		clearRefreshCookie(c, h.config)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing refresh token"})
		return
	}

	session, err := h.authUsecase.Refresh(c.Request.Context(), raw)
	if err != nil {
		clearRefreshCookie(c, h.config)
		h.writeError(c, err)
		return
	}
	h.writeSession(c, session)
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	raw, _ := c.Cookie(h.config.RefreshCookieName)
	if err := h.authUsecase.Logout(c.Request.Context(), raw); err != nil {
		h.log.Warn("Failed to revoke refresh token", zap.Error(err))
	}
	clearRefreshCookie(c, h.config)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	me, err := h.authUsecase.Me(c.Request.Context(), CurrentUser(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, me)
}

// POST /api/fcm/register
func (h *AuthHandler) RegisterDevice(c *gin.Context) {
	var req authdto.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.authUsecase.RegisterDevice(c.Request.Context(), CurrentUser(c), &req); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Device registered"})
}

// DELETE /api/fcm/:token
func (h *AuthHandler) UnregisterDevice(c *gin.Context) {
	if err := h.authUsecase.UnregisterDevice(c.Request.Context(), CurrentUser(c), c.Param("token")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Device unregistered"})
}

func (h *AuthHandler) writeSession(c *gin.Context, session *authdto.Session) {
	setRefreshCookie(c, h.config, session.RefreshToken, session.RefreshExpiresAt)
	c.JSON(http.StatusOK, session.Token)
}

func (h *AuthHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, authdomain.ErrEmailTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, authdomain.ErrTenantInactive):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case usecase.IsAuthError(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		h.log.Error("Auth request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
