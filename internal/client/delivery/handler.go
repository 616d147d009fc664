package delivery

import (
	"errors"
	"net/http"
	"strconv"

	authdelivery "client-update-agent/internal/auth/delivery"
	"client-update-agent/internal/client/domain"
	"client-update-agent/internal/client/dto"
	"client-update-agent/internal/client/usecase"
	"client-update-agent/pkg/qbo"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ClientHandler struct {
	clientUsecase usecase.ClientUsecase
	log           *zap.Logger
}

func NewClientHandler(clientUsecase usecase.ClientUsecase, log *zap.Logger) *ClientHandler {
	return &ClientHandler{clientUsecase: clientUsecase, log: log}
}

// GetClients lists the tenant's clients, optionally fuzzy-ranked by q.
// GET /api/clients?q=acme
func (h *ClientHandler) GetClients(c *gin.Context) {
	clients, err := h.clientUsecase.List(c.Request.Context(), authdelivery.TenantID(c), c.Query("q"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ClientListResponse{Clients: clients, Total: len(clients)})
}

// GET /api/clients/:id
func (h *ClientHandler) GetClient(c *gin.Context) {
	client, err := h.clientUsecase.Get(c.Request.Context(), authdelivery.TenantID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// PATCH /api/clients/:id
func (h *ClientHandler) UpdateClient(c *gin.Context) {
	var req dto.UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, err := h.clientUsecase.Update(c.Request.Context(), authdelivery.TenantID(c), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// GetSnapshots returns the recent snapshot history of a client.
// GET /api/clients/:id/snapshots?limit=20
func (h *ClientHandler) GetSnapshots(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	snaps, err := h.clientUsecase.Snapshots(c.Request.Context(), authdelivery.TenantID(c), c.Param("id"), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SnapshotListResponse{Snapshots: snaps})
}

// SyncClients pulls customers from QuickBooks into the client table.
// POST /api/qb/sync-clients
func (h *ClientHandler) SyncClients(c *gin.Context) {
	n, err := h.clientUsecase.SyncClients(c.Request.Context(), authdelivery.TenantID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SyncResponse{Synced: n})
}

func (h *ClientHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrClientNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
	case qbo.IsRemoteServiceError(err):
		h.log.Warn("QuickBooks request failed", zap.String("tenant_id", authdelivery.TenantID(c)), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "QuickBooks request failed"})
	default:
		h.log.Error("Client request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
