package dto

import (
	clientdomain "client-update-agent/internal/client/domain"
	snapshotdomain "client-update-agent/internal/snapshot/domain"
)

// UpdateClientRequest only touches the fields that are present. An empty
// email string clears it.
type UpdateClientRequest struct {
	Email       *string `json:"email" binding:"omitempty,max=320"`
	DisplayName *string `json:"display_name" binding:"omitempty,min=1,max=255"`
}

type ClientListResponse struct {
	Clients []clientdomain.Client `json:"clients"`
	Total   int                   `json:"total"`
}

type SnapshotListResponse struct {
	Snapshots []snapshotdomain.ClientSnapshot `json:"snapshots"`
}

type SyncResponse struct {
	Synced int `json:"synced"`
}
