package dto

import (
	"client-update-agent/internal/update/domain"
)

// PendingUpdateResponse adds the client's name and email for the review
// screen.
type PendingUpdateResponse struct {
	domain.PendingUpdate
	ClientDisplayName *string `json:"client_display_name"`
	ClientEmail       *string `json:"client_email"`
}

type EditRequest struct {
	Subject   *string `json:"subject" binding:"omitempty,min=1,max=500"`
	BodyHTML  *string `json:"body_html"`
	BodyPlain *string `json:"body_plain"`
}

type ActionResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

type HistoryResponse struct {
	History []domain.UpdateHistory `json:"history"`
}
