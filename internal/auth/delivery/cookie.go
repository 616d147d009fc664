package delivery

import (
	"net/http"
	"time"

	"client-update-agent/pkg/config"

	"github.com/gin-gonic/gin"
)

const refreshCookiePath = "/api/auth"

func sameSite(mode string) http.SameSite {
	switch mode {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func setRefreshCookie(c *gin.Context, cfg *config.Config, value string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = int(cfg.RefreshTokenExpiry.Seconds())
	}
	c.SetSameSite(sameSite(cfg.CookieSameSite))
	c.SetCookie(cfg.RefreshCookieName, value, maxAge, refreshCookiePath, "", cfg.CookieSecure, true)
}

func clearRefreshCookie(c *gin.Context, cfg *config.Config) {
	c.SetSameSite(sameSite(cfg.CookieSameSite))
	c.SetCookie(cfg.RefreshCookieName, "", -1, refreshCookiePath, "", cfg.CookieSecure, true)
}
