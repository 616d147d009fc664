package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"client-update-agent/internal/client/domain"
	"client-update-agent/internal/client/dto"
	"client-update-agent/internal/client/repository"
	snapshotdomain "client-update-agent/internal/snapshot/domain"
	snapshotrepo "client-update-agent/internal/snapshot/repository"
	"client-update-agent/pkg/fuzzy"
	"client-update-agent/pkg/qbo"

	"go.uber.org/zap"
)

const defaultSnapshotLimit = 20

type clientUsecase struct {
	clients   repository.ClientRepository
	snapshots snapshotrepo.SnapshotRepository
	source    CustomerSource
	log       *zap.Logger
}

func NewClientUsecase(clients repository.ClientRepository, snapshots snapshotrepo.SnapshotRepository, source CustomerSource, log *zap.Logger) ClientUsecase {
	return &clientUsecase{
		clients:   clients,
		snapshots: snapshots,
		source:    source,
		log:       log,
	}
}

func (u *clientUsecase) List(ctx context.Context, tenantID, query string) ([]domain.Client, error) {
	clients, err := u.clients.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if clients == nil {
		clients = []domain.Client{}
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return clients, nil
	}

	type scored struct {
		client domain.Client
		score  float64
	}
	var hits []scored
	for _, c := range clients {
		s := fuzzy.ClientScore(query, c.DisplayName, deref(c.CompanyName), deref(c.Email))
		if s > 0 {
			hits = append(hits, scored{client: c, score: s})
		}
	}
	// stable keeps display-name order among equal scores
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	out := make([]domain.Client, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.client)
	}
	return out, nil
}

func (u *clientUsecase) Get(ctx context.Context, tenantID, id string) (*domain.Client, error) {
	client, err := u.clients.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, domain.ErrClientNotFound
	}
	return client, nil
}

func (u *clientUsecase) Update(ctx context.Context, tenantID, id string, req dto.UpdateClientRequest) (*domain.Client, error) {
	client, err := u.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email == "" {
			client.Email = nil
		} else {
			client.Email = &email
		}
	}
	if req.DisplayName != nil {
		if name := strings.TrimSpace(*req.DisplayName); name != "" {
			client.DisplayName = name
		}
	}
	if err := u.clients.Update(ctx, client); err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	return client, nil
}

func (u *clientUsecase) Snapshots(ctx context.Context, tenantID, id string, limit int) ([]snapshotdomain.ClientSnapshot, error) {
	if _, err := u.Get(ctx, tenantID, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = defaultSnapshotLimit
	}
	snaps, err := u.snapshots.ListByClient(ctx, tenantID, id, limit)
	if err != nil {
		return nil, err
	}
	if snaps == nil {
		snaps = []snapshotdomain.ClientSnapshot{}
	}
	return snaps, nil
}

func (u *clientUsecase) SyncClients(ctx context.Context, tenantID string) (int, error) {
	customers, err := u.source.FetchCustomers(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	remote := make([]domain.RemoteCustomer, 0, len(customers))
	for _, c := range customers {
		remote = append(remote, ToRemoteCustomer(c))
	}
	n, err := u.clients.UpsertRemote(ctx, tenantID, remote)
	if err != nil {
		return 0, fmt.Errorf("upsert clients: %w", err)
	}

	u.log.Info("Synced clients",
		zap.String("tenant_id", tenantID),
		zap.Int("count", n),
	)
	return n, nil
}

// ToRemoteCustomer resolves the display name, company and email of an
// upstream customer. Blank upstream emails map to nil so a sync never
// erases a locally known address.
func ToRemoteCustomer(c qbo.Customer) domain.RemoteCustomer {
	display := c.DisplayName
	if display == "" {
		display = c.FullyQualifiedName
	}
	if display == "" {
		display = "Unknown"
	}

	rc := domain.RemoteCustomer{
		QBCustomerID: c.ID,
		DisplayName:  display,
	}
	if company := strings.TrimSpace(c.CompanyName); company != "" {
		rc.CompanyName = &company
	}
	if c.PrimaryEmailAddr != nil && c.PrimaryEmailAddr.Address != "" {
		email := c.PrimaryEmailAddr.Address
		rc.Email = &email
	}
	return rc
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
