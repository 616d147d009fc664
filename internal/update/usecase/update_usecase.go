package usecase

import (
	"context"
	"fmt"
	"time"

	clientdomain "client-update-agent/internal/client/domain"
	clientrepo "client-update-agent/internal/client/repository"
	"client-update-agent/internal/update/domain"
	"client-update-agent/internal/update/dto"
	"client-update-agent/internal/update/repository"

	"go.uber.org/zap"
)

const sentMessage = "Update marked as sent."

type updateUsecase struct {
	updates   repository.UpdateRepository
	clients   clientrepo.ClientRepository
	mailer    Mailer
	publisher EventPublisher
	log       *zap.Logger
	now       func() time.Time
}

// NewUpdateUsecase wires the lifecycle. mailer and publisher may be nil.
func NewUpdateUsecase(updates repository.UpdateRepository, clients clientrepo.ClientRepository, mailer Mailer, publisher EventPublisher, log *zap.Logger) UpdateUsecase {
	return &updateUsecase{
		updates:   updates,
		clients:   clients,
		mailer:    mailer,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (u *updateUsecase) List(ctx context.Context, tenantID, status string) ([]dto.PendingUpdateResponse, error) {
	rows, err := u.updates.List(ctx, tenantID, status)
	if err != nil {
		return nil, err
	}
	return u.Enrich(ctx, tenantID, rows)
}

func (u *updateUsecase) Get(ctx context.Context, tenantID, id string) (*dto.PendingUpdateResponse, error) {
	row, err := u.updates.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.ErrNotFound
	}
	return u.enrichOne(ctx, tenantID, row)
}

func (u *updateUsecase) Edit(ctx context.Context, tenantID, id string, req dto.EditRequest) (*dto.PendingUpdateResponse, error) {
	row, err := u.updates.FindPending(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.ErrNotFound
	}

	if req.Subject != nil {
		row.Subject = *req.Subject
	}
	if req.BodyHTML != nil {
		row.BodyHTML = *req.BodyHTML
	}
	if req.BodyPlain != nil {
		plain := *req.BodyPlain
		row.BodyPlain = &plain
	}

	ok, err := u.updates.UpdateContent(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("save update: %w", err)
	}
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u.enrichOne(ctx, tenantID, row)
}

func (u *updateUsecase) Reject(ctx context.Context, tenantID, id string) error {
	ok, err := u.updates.Transition(ctx, tenantID, id, domain.StatusRejected)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	u.publish(ctx, EventUpdateRejected, tenantID, map[string]string{"update_id": id})
	return nil
}

func (u *updateUsecase) Send(ctx context.Context, tenantID, id string) (*dto.ActionResponse, error) {
	row, err := u.updates.Claim(ctx, tenantID, id, u.now())
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.ErrNotFound
	}

	if u.mailer != nil {
		if err := u.deliver(ctx, row); err != nil {
			u.release(ctx, row)
			return nil, err
		}
	}

	history, err := u.updates.MarkSent(ctx, row, u.now())
	if err != nil {
		return nil, err
	}

	u.log.Info("Update sent",
		zap.String("tenant_id", tenantID),
		zap.String("client_id", row.ClientID),
		zap.String("update_id", row.ID),
	)
	u.publish(ctx, EventUpdateSent, tenantID, history)
	return &dto.ActionResponse{OK: true, Message: sentMessage}, nil
}

func (u *updateUsecase) release(ctx context.Context, row *domain.PendingUpdate) {
	if err := u.updates.Release(context.WithoutCancel(ctx), row); err != nil {
		u.log.Error("Failed to release claimed update",
			zap.String("tenant_id", row.TenantID),
			zap.String("update_id", row.ID),
			zap.Error(err),
		)
	}
}

// deliver mails the update when the client has an address on file. A
// client without one is still marked sent.
func (u *updateUsecase) deliver(ctx context.Context, row *domain.PendingUpdate) error {
	client, err := u.clients.FindByID(ctx, row.TenantID, row.ClientID)
	if err != nil {
		return err
	}
	if client == nil || client.Email == nil || *client.Email == "" {
		u.log.Info("Client has no email, skipping delivery",
			zap.String("tenant_id", row.TenantID),
			zap.String("client_id", row.ClientID),
		)
		return nil
	}

	msg := Message{
		To:       *client.Email,
		ToName:   client.DisplayName,
		Subject:  row.Subject,
		BodyHTML: row.BodyHTML,
	}
	if row.BodyPlain != nil {
		msg.BodyPlain = *row.BodyPlain
	}
	if err := u.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	return nil
}

func (u *updateUsecase) HasRecentPending(ctx context.Context, tenantID, clientID string, since time.Time) (bool, error) {
	return u.updates.HasRecentPending(ctx, tenantID, clientID, since)
}

func (u *updateUsecase) History(ctx context.Context, tenantID, clientID string) ([]domain.UpdateHistory, error) {
	history, err := u.updates.ListHistory(ctx, tenantID, clientID)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []domain.UpdateHistory{}
	}
	return history, nil
}

func (u *updateUsecase) Enrich(ctx context.Context, tenantID string, updates []domain.PendingUpdate) ([]dto.PendingUpdateResponse, error) {
	ids := make([]string, 0, len(updates))
	for _, p := range updates {
		ids = append(ids, p.ClientID)
	}
	clients, err := u.clients.FindByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}

	out := make([]dto.PendingUpdateResponse, 0, len(updates))
	for _, p := range updates {
		out = append(out, toResponse(p, clients))
	}
	return out, nil
}

func (u *updateUsecase) enrichOne(ctx context.Context, tenantID string, row *domain.PendingUpdate) (*dto.PendingUpdateResponse, error) {
	res, err := u.Enrich(ctx, tenantID, []domain.PendingUpdate{*row})
	if err != nil {
		return nil, err
	}
	return &res[0], nil
}

func toResponse(p domain.PendingUpdate, clients map[string]clientdomain.Client) dto.PendingUpdateResponse {
	res := dto.PendingUpdateResponse{PendingUpdate: p}
	if c, ok := clients[p.ClientID]; ok {
		name := c.DisplayName
		res.ClientDisplayName = &name
		res.ClientEmail = c.Email
	}
	return res
}

func (u *updateUsecase) publish(ctx context.Context, eventType, tenantID string, payload any) {
	if u.publisher == nil {
		return
	}
	if err := u.publisher.Publish(ctx, eventType, tenantID, payload); err != nil {
		u.log.Warn("Failed to publish event", zap.String("event", eventType), zap.Error(err))
	}
}
