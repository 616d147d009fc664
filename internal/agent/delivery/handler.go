package delivery

import (
	"context"
	"errors"
	"net/http"

	"client-update-agent/internal/agent/domain"
	"client-update-agent/internal/agent/dto"
	"client-update-agent/internal/agent/usecase"
	authdelivery "client-update-agent/internal/auth/delivery"
	updatedomain "client-update-agent/internal/update/domain"
	updatedto "client-update-agent/internal/update/dto"
	"client-update-agent/pkg/qbo"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UpdateEnricher attaches client names and emails to drafted updates.
type UpdateEnricher interface {
	Enrich(ctx context.Context, tenantID string, updates []updatedomain.PendingUpdate) ([]updatedto.PendingUpdateResponse, error)
}

type AgentHandler struct {
	agentUsecase usecase.AgentUsecase
	enricher     UpdateEnricher
	log          *zap.Logger
}

func NewAgentHandler(agentUsecase usecase.AgentUsecase, enricher UpdateEnricher, log *zap.Logger) *AgentHandler {
	return &AgentHandler{agentUsecase: agentUsecase, enricher: enricher, log: log}
}

// RunAgent syncs clients, detects invoice changes and drafts updates for
// the caller's tenant.
// POST /api/agent/run
func (h *AgentHandler) RunAgent(c *gin.Context) {
	tenantID := authdelivery.TenantID(c)
	res, err := h.agentUsecase.Run(c.Request.Context(), tenantID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	created, err := h.enricher.Enrich(c.Request.Context(), tenantID, res.Created)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if created == nil {
		created = []updatedto.PendingUpdateResponse{}
	}

	c.JSON(http.StatusOK, dto.RunResponse{
		Connected: res.Connected,
		Synced:    res.Synced,
		Created:   created,
		Clients:   res.Clients,
	})
}

func (h *AgentHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case qbo.IsRemoteServiceError(err):
		h.log.Warn("Agent run upstream failure", zap.String("tenant_id", authdelivery.TenantID(c)), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		h.log.Error("Agent run failed", zap.String("tenant_id", authdelivery.TenantID(c)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
