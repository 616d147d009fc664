package delivery

import (
	"errors"
	"net/http"

	authdelivery "client-update-agent/internal/auth/delivery"
	"client-update-agent/internal/update/domain"
	"client-update-agent/internal/update/dto"
	"client-update-agent/internal/update/usecase"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UpdateHandler struct {
	updateUsecase usecase.UpdateUsecase
	log           *zap.Logger
}

func NewUpdateHandler(updateUsecase usecase.UpdateUsecase, log *zap.Logger) *UpdateHandler {
	return &UpdateHandler{updateUsecase: updateUsecase, log: log}
}

// GetPendingUpdates lists drafts newest first.
// GET /api/pending-updates?status=pending
func (h *UpdateHandler) GetPendingUpdates(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !domain.ValidStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	updates, err := h.updateUsecase.List(c.Request.Context(), authdelivery.TenantID(c), status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updates)
}

// GET /api/pending-updates/:id
func (h *UpdateHandler) GetPendingUpdate(c *gin.Context) {
	update, err := h.updateUsecase.Get(c.Request.Context(), authdelivery.TenantID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, update)
}

// PATCH /api/pending-updates/:id
func (h *UpdateHandler) EditPendingUpdate(c *gin.Context) {
	var req dto.EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	update, err := h.updateUsecase.Edit(c.Request.Context(), authdelivery.TenantID(c), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, update)
}

// RejectPendingUpdate flips a draft to rejected; the row is kept.
// DELETE /api/pending-updates/:id
func (h *UpdateHandler) RejectPendingUpdate(c *gin.Context) {
	if err := h.updateUsecase.Reject(c.Request.Context(), authdelivery.TenantID(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ActionResponse{OK: true})
}

// POST /api/pending-updates/:id/send
func (h *UpdateHandler) SendPendingUpdate(c *gin.Context) {
	res, err := h.updateUsecase.Send(c.Request.Context(), authdelivery.TenantID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/updates/history?client_id=
func (h *UpdateHandler) GetHistory(c *gin.Context) {
	history, err := h.updateUsecase.History(c.Request.Context(), authdelivery.TenantID(c), c.Query("client_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.HistoryResponse{History: history})
}

func (h *UpdateHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Update not found or not pending"})
	case errors.Is(err, domain.ErrDeliveryFailed):
		h.log.Warn("Update delivery failed", zap.String("tenant_id", authdelivery.TenantID(c)), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Email delivery failed"})
	default:
		h.log.Error("Update request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
