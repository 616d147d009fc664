package api

import (
	"net/http"

	agentdelivery "client-update-agent/internal/agent/delivery"
	authdelivery "client-update-agent/internal/auth/delivery"
	authusecase "client-update-agent/internal/auth/usecase"
	clientdelivery "client-update-agent/internal/client/delivery"
	qbdelivery "client-update-agent/internal/quickbooks/delivery"
	updatedelivery "client-update-agent/internal/update/delivery"

	"github.com/gin-gonic/gin"
)

// Handlers groups the feature handlers mounted under /api.
type Handlers struct {
	Auth       *authdelivery.AuthHandler
	Clients    *clientdelivery.ClientHandler
	Updates    *updatedelivery.UpdateHandler
	QuickBooks *qbdelivery.QuickBooksHandler
	Agent      *agentdelivery.AgentHandler
	Settings   *SettingsHandler
}

func SetupRoutes(r *gin.Engine, authUsecase authusecase.AuthUsecase, h Handlers) {
	requireAuth := authdelivery.AuthMiddleware(authUsecase)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
			auth.POST("/logout", h.Auth.Logout)
			auth.GET("/me", requireAuth, h.Auth.Me)
		}

		fcm := api.Group("/fcm")
		fcm.Use(requireAuth)
		{
			fcm.POST("/register", h.Auth.RegisterDevice)
			fcm.DELETE("/:token", h.Auth.UnregisterDevice)
		}

		clients := api.Group("/clients")
		clients.Use(requireAuth)
		{
			clients.GET("", h.Clients.GetClients)
			clients.GET("/:id", h.Clients.GetClient)
			clients.PATCH("/:id", h.Clients.UpdateClient)
			clients.GET("/:id/snapshots", h.Clients.GetSnapshots)
		}

		pending := api.Group("/pending-updates")
		pending.Use(requireAuth)
		{
			pending.GET("", h.Updates.GetPendingUpdates)
			pending.GET("/:id", h.Updates.GetPendingUpdate)
			pending.PATCH("/:id", h.Updates.EditPendingUpdate)
			pending.DELETE("/:id", h.Updates.RejectPendingUpdate)
			pending.POST("/:id/send", h.Updates.SendPendingUpdate)
		}
		api.GET("/updates/history", requireAuth, h.Updates.GetHistory)

		qb := api.Group("/qb")
		{
			// Intuit redirects the browser here; the tenant travels in state.
			qb.GET("/callback", h.QuickBooks.Callback)
			qb.GET("/connect", requireAuth, h.QuickBooks.Connect)
			qb.GET("/status", requireAuth, h.QuickBooks.Status)
			qb.POST("/sync-clients", requireAuth, h.Clients.SyncClients)
		}

		api.POST("/agent/run", requireAuth, h.Agent.RunAgent)

		settings := api.Group("/settings")
		settings.Use(requireAuth)
		{
			settings.GET("/ai", h.Settings.GetAISettings)
			settings.PUT("/ai", h.Settings.UpdateAISettings)
			settings.POST("/ai/test", h.Settings.TestAIConnection)
		}
	}
}
