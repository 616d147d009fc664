package usecase

import (
	"context"
	"time"

	"client-update-agent/internal/update/domain"
	"client-update-agent/internal/update/dto"
)

// Message is one outgoing client email.
type Message struct {
	To        string
	ToName    string
	Subject   string
	BodyPlain string
	BodyHTML  string
}

// Mailer delivers approved updates. A nil Mailer means sending only marks
// the update as sent.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// EventPublisher emits domain events such as update.sent.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, tenantID string, payload any) error
}

const (
	EventUpdateSent     = "update.sent"
	EventUpdateRejected = "update.rejected"
)

type UpdateUsecase interface {
	List(ctx context.Context, tenantID, status string) ([]dto.PendingUpdateResponse, error)
	Get(ctx context.Context, tenantID, id string) (*dto.PendingUpdateResponse, error)
	Edit(ctx context.Context, tenantID, id string, req dto.EditRequest) (*dto.PendingUpdateResponse, error)
	Reject(ctx context.Context, tenantID, id string) error
	Send(ctx context.Context, tenantID, id string) (*dto.ActionResponse, error)
	HasRecentPending(ctx context.Context, tenantID, clientID string, since time.Time) (bool, error)
	History(ctx context.Context, tenantID, clientID string) ([]domain.UpdateHistory, error)
	Enrich(ctx context.Context, tenantID string, updates []domain.PendingUpdate) ([]dto.PendingUpdateResponse, error)
}
