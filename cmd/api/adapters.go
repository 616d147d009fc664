package api

import (
	"context"

	authrepo "client-update-agent/internal/auth/repository"
	qbusecase "client-update-agent/internal/quickbooks/usecase"
	updateusecase "client-update-agent/internal/update/usecase"
	"client-update-agent/pkg/gmail"
)

// mailerAdapter adapts the Gmail mailer to the update usecase Mailer.
type mailerAdapter struct {
	mailer *gmail.Mailer
}

func NewMailerAdapter(m *gmail.Mailer) updateusecase.Mailer {
	return &mailerAdapter{mailer: m}
}

func (a *mailerAdapter) Send(ctx context.Context, msg updateusecase.Message) error {
	return a.mailer.Send(ctx, gmail.Message{
		To:        msg.To,
		ToName:    msg.ToName,
		Subject:   msg.Subject,
		BodyPlain: msg.BodyPlain,
		BodyHTML:  msg.BodyHTML,
	})
}

// TenantLookup resolves OAuth state to a known tenant.
func TenantLookup(users authrepo.UserRepository) qbusecase.TenantLookup {
	return qbusecase.TenantLookupFunc(func(ctx context.Context, tenantID string) (bool, error) {
		tenant, err := users.FindTenantByID(ctx, tenantID)
		if err != nil {
			return false, err
		}
		return tenant != nil, nil
	})
}

// ActiveTenants lists connected tenants that are still active.
type ActiveTenants struct {
	conns qbusecase.ConnectionManager
	users authrepo.UserRepository
}

func NewActiveTenants(conns qbusecase.ConnectionManager, users authrepo.UserRepository) *ActiveTenants {
	return &ActiveTenants{conns: conns, users: users}
}

func (a *ActiveTenants) ConnectedTenants(ctx context.Context) ([]string, error) {
	connected, err := a.conns.ConnectedTenants(ctx)
	if err != nil {
		return nil, err
	}
	active, err := a.users.ListActiveTenants(ctx)
	if err != nil {
		return nil, err
	}
	isActive := make(map[string]bool, len(active))
	for _, t := range active {
		isActive[t.ID] = true
	}

	out := make([]string, 0, len(connected))
	for _, id := range connected {
		if isActive[id] {
			out = append(out, id)
		}
	}
	return out, nil
}
