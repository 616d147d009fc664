package usecase

import (
	"context"

	"client-update-agent/internal/agent/domain"
	qbdomain "client-update-agent/internal/quickbooks/domain"
	"client-update-agent/pkg/qbo"
)

// AgentUsecase runs the sync, detect and draft pipeline for a tenant.
type AgentUsecase interface {
	Run(ctx context.Context, tenantID string) (*domain.RunResult, error)
	SetNotifier(n ReviewerNotifier)
	SetPublisher(p EventPublisher)
}

// DraftComposer turns a change summary into an email draft.
type DraftComposer interface {
	Draft(ctx context.Context, in domain.DraftInput) (*domain.Draft, error)
}

type ConnectionChecker interface {
	GetValidConnection(ctx context.Context, tenantID string) (*qbdomain.Connection, error)
}

type ClientSyncer interface {
	SyncClients(ctx context.Context, tenantID string) (int, error)
}

type InvoiceFetcher interface {
	FetchInvoices(ctx context.Context, tenantID, customerID string) ([]qbo.Invoice, error)
}

// ReviewerNotifier tells a tenant's reviewers that drafts are waiting.
type ReviewerNotifier interface {
	NotifyDrafts(ctx context.Context, tenantID string, count int) error
}

type EventPublisher interface {
	Publish(ctx context.Context, eventType, tenantID string, payload any) error
}

const (
	EventUpdateDrafted = "update.drafted"
	EventRunCompleted  = "agent.run.completed"
)
