package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"client-update-agent/internal/agent/domain"
	clientdomain "client-update-agent/internal/client/domain"
	clientrepo "client-update-agent/internal/client/repository"
	snapshotdomain "client-update-agent/internal/snapshot/domain"
	snapshotrepo "client-update-agent/internal/snapshot/repository"
	updatedomain "client-update-agent/internal/update/domain"
	updaterepo "client-update-agent/internal/update/repository"
	"client-update-agent/pkg/runlock"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	runLockTTL      = 15 * time.Minute
	duplicateWindow = 24 * time.Hour
)

type agentUsecase struct {
	db        *gorm.DB
	conns     ConnectionChecker
	syncer    ClientSyncer
	fetcher   InvoiceFetcher
	clients   clientrepo.ClientRepository
	snapshots snapshotrepo.SnapshotRepository
	updates   updaterepo.UpdateRepository
	composer  DraftComposer
	locker    runlock.Locker
	notifier  ReviewerNotifier
	publisher EventPublisher
	log       *zap.Logger
	now       func() time.Time
}

// NewAgentUsecase creates a new instance of AgentUsecase
func NewAgentUsecase(
	db *gorm.DB,
	conns ConnectionChecker,
	syncer ClientSyncer,
	fetcher InvoiceFetcher,
	clients clientrepo.ClientRepository,
	snapshots snapshotrepo.SnapshotRepository,
	updates updaterepo.UpdateRepository,
	composer DraftComposer,
	locker runlock.Locker,
	log *zap.Logger,
) AgentUsecase {
	return &agentUsecase{
		db:        db,
		conns:     conns,
		syncer:    syncer,
		fetcher:   fetcher,
		clients:   clients,
		snapshots: snapshots,
		updates:   updates,
		composer:  composer,
		locker:    locker,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetNotifier sets the reviewer push notifier
func (u *agentUsecase) SetNotifier(n ReviewerNotifier) {
	u.notifier = n
}

// SetPublisher sets the domain event publisher
func (u *agentUsecase) SetPublisher(p EventPublisher) {
	u.publisher = p
}

func (u *agentUsecase) Run(ctx context.Context, tenantID string) (*domain.RunResult, error) {
	lease, err := u.locker.Acquire(ctx, "agent-run:"+tenantID, runLockTTL)
	if err != nil {
		if errors.Is(err, runlock.ErrHeld) {
			return nil, domain.ErrRunInProgress
		}
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	defer func() {
		if err := u.locker.Release(context.WithoutCancel(ctx), lease); err != nil {
			u.log.Warn("Failed to release run lock", zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}()

	result := &domain.RunResult{
		TenantID:  tenantID,
		Created:   []updatedomain.PendingUpdate{},
		Clients:   []domain.ClientOutcome{},
		StartedAt: u.now(),
	}

	conn, err := u.conns.GetValidConnection(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		result.FinishedAt = u.now()
		return result, nil
	}
	result.Connected = true

	synced, err := u.syncer.SyncClients(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	result.Synced = synced

	clients, err := u.clients.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	for i := range clients {
		outcome, created, err := u.processClient(ctx, tenantID, &clients[i])
		if err != nil {
			return nil, err
		}
		result.Clients = append(result.Clients, outcome)
		if created != nil {
			result.Created = append(result.Created, *created)
		}
	}
	result.FinishedAt = u.now()

	u.log.Info("Agent run completed",
		zap.String("tenant_id", tenantID),
		zap.Int("clients", len(result.Clients)),
		zap.Int("drafted", result.Count(domain.OutcomeDrafted)),
		zap.Int("suppressed", result.Count(domain.OutcomeSuppressed)),
		zap.Int("failed", result.Count(domain.OutcomeFailed)),
		zap.Duration("duration", result.FinishedAt.Sub(result.StartedAt)),
	)

	u.publish(ctx, EventRunCompleted, tenantID, map[string]any{
		"synced":     result.Synced,
		"drafted":    result.Count(domain.OutcomeDrafted),
		"suppressed": result.Count(domain.OutcomeSuppressed),
		"unchanged":  result.Count(domain.OutcomeUnchanged),
		"failed":     result.Count(domain.OutcomeFailed),
	})
	if len(result.Created) > 0 && u.notifier != nil {
		if err := u.notifier.NotifyDrafts(ctx, tenantID, len(result.Created)); err != nil {
			u.log.Warn("Failed to notify reviewers", zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}
	return result, nil
}

// processClient handles one client. Upstream and draft failures are reported
// in the outcome; a returned error means storage failed and aborts the run.
func (u *agentUsecase) processClient(ctx context.Context, tenantID string, client *clientdomain.Client) (domain.ClientOutcome, *updatedomain.PendingUpdate, error) {
	outcome := domain.ClientOutcome{ClientID: client.ID, DisplayName: client.DisplayName}

	invoices, err := u.fetcher.FetchInvoices(ctx, tenantID, client.QBCustomerID)
	if err != nil {
		u.log.Warn("Failed to fetch invoices",
			zap.String("tenant_id", tenantID),
			zap.String("client_id", client.ID),
			zap.Error(err),
		)
		outcome.Status = domain.OutcomeFailed
		outcome.Error = err.Error()
		return outcome, nil, nil
	}

	current := snapshotdomain.Normalize(invoices)
	prev, err := u.snapshots.Latest(ctx, tenantID, client.ID, snapshotdomain.KindInvoices)
	if errors.Is(err, snapshotdomain.ErrPayloadDecode) {
		u.log.Warn("Stored snapshot does not decode, treating client as first seen",
			zap.String("tenant_id", tenantID),
			zap.String("client_id", client.ID),
			zap.Error(err),
		)
		prev, err = nil, nil
	}
	if err != nil {
		return outcome, nil, err
	}
	var previous *snapshotdomain.InvoiceSnapshot
	if prev != nil {
		previous = &prev.Payload
	}

	now := u.now()
	change := snapshotdomain.DetectChanges(previous, current)
	if change == nil {
		outcome.Status = domain.OutcomeUnchanged
		return outcome, nil, u.appendSnapshot(ctx, u.snapshots, tenantID, client.ID, current, now)
	}
	outcome.Summary = change.Summary

	since := now.Add(-duplicateWindow)
	recent, err := u.updates.HasRecentPending(ctx, tenantID, client.ID, since)
	if err != nil {
		return outcome, nil, err
	}
	if recent {
		outcome.Status = domain.OutcomeSuppressed
		return outcome, nil, u.appendSnapshot(ctx, u.snapshots, tenantID, client.ID, current, now)
	}

	draft, err := u.composer.Draft(ctx, draftInput(client, change.Summary))
	if err != nil {
		u.log.Warn("Failed to draft update",
			zap.String("tenant_id", tenantID),
			zap.String("client_id", client.ID),
			zap.Error(err),
		)
		outcome.Status = domain.OutcomeFailed
		outcome.Error = err.Error()
		return outcome, nil, nil
	}

	var created *updatedomain.PendingUpdate
	err = u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := u.updates.WithTx(tx)
		snapshots := u.snapshots.WithTx(tx)

		// another writer may have drafted while the model was working
		recent, err := updates.HasRecentPending(ctx, tenantID, client.ID, since)
		if err != nil {
			return err
		}
		snap := &snapshotdomain.ClientSnapshot{
			TenantID:     tenantID,
			ClientID:     client.ID,
			SnapshotType: snapshotdomain.KindInvoices,
			Payload:      current,
			CreatedAt:    now,
		}
		if err := snapshots.Append(ctx, snap); err != nil {
			return err
		}
		if recent {
			return nil
		}

		summary := change.Summary
		plain := draft.BodyPlain
		snapID := snap.ID
		row := &updatedomain.PendingUpdate{
			TenantID:      tenantID,
			ClientID:      client.ID,
			Subject:       draft.Subject,
			BodyHTML:      draft.BodyHTML,
			BodyPlain:     &plain,
			ChangeSummary: &summary,
			Status:        updatedomain.StatusPending,
			SnapshotID:    &snapID,
			CreatedAt:     now,
		}
		if err := updates.Create(ctx, row); err != nil {
			return err
		}
		created = row
		return nil
	})
	if err != nil {
		return outcome, nil, err
	}

	if created == nil {
		outcome.Status = domain.OutcomeSuppressed
		return outcome, nil, nil
	}
	outcome.Status = domain.OutcomeDrafted
	outcome.UpdateID = &created.ID

	u.publish(ctx, EventUpdateDrafted, tenantID, map[string]any{
		"update_id": created.ID,
		"client_id": client.ID,
		"subject":   created.Subject,
	})
	return outcome, created, nil
}

func (u *agentUsecase) appendSnapshot(ctx context.Context, repo snapshotrepo.SnapshotRepository, tenantID, clientID string, payload snapshotdomain.InvoiceSnapshot, at time.Time) error {
	return repo.Append(ctx, &snapshotdomain.ClientSnapshot{
		TenantID:     tenantID,
		ClientID:     clientID,
		SnapshotType: snapshotdomain.KindInvoices,
		Payload:      payload,
		CreatedAt:    at,
	})
}

func (u *agentUsecase) publish(ctx context.Context, eventType, tenantID string, payload any) {
	if u.publisher == nil {
		return
	}
	if err := u.publisher.Publish(ctx, eventType, tenantID, payload); err != nil {
		u.log.Warn("Failed to publish event",
			zap.String("event", eventType),
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
	}
}

func draftInput(c *clientdomain.Client, summary string) domain.DraftInput {
	in := domain.DraftInput{ClientName: c.DisplayName, ChangeSummary: summary}
	if c.Email != nil {
		in.ClientEmail = *c.Email
	}
	if c.CompanyName != nil && *c.CompanyName != "" {
		in.CompanyContext = "Company: " + *c.CompanyName
	}
	return in
}
