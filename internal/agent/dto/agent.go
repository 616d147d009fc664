package dto

import (
	"client-update-agent/internal/agent/domain"
	updatedto "client-update-agent/internal/update/dto"
)

// RunResponse is returned by POST /api/agent/run. Clients lists every
// client the run looked at, including the ones that failed.
type RunResponse struct {
	Connected bool                              `json:"connected"`
	Synced    int                               `json:"synced"`
	Created   []updatedto.PendingUpdateResponse `json:"created"`
	Clients   []domain.ClientOutcome            `json:"clients"`
}
