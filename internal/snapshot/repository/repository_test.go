package repository

import (
	"context"
	"testing"
	"time"

	"client-update-agent/internal/snapshot/domain"
	"client-update-agent/pkg/database"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T) SnapshotRepository {
	t.Helper()
	db, err := database.OpenSQLiteMemory()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.ClientSnapshot{}))
	return NewSnapshotRepository(db)
}

func payload(ids ...string) domain.InvoiceSnapshot {
	s := domain.InvoiceSnapshot{Count: len(ids), Invoices: []domain.InvoiceSummary{}}
	for _, id := range ids {
		s.Invoices = append(s.Invoices, domain.InvoiceSummary{ID: id, TotalAmt: decimal.NewFromInt(10)})
	}
	return s
}

func TestLatest_Empty(t *testing.T) {
	repo := setupRepo(t)
	got, err := repo.Latest(context.Background(), "t1", "c1", domain.KindInvoices)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAppendAndLatest(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(ctx, &domain.ClientSnapshot{TenantID: "t1", ClientID: "c1", Payload: payload("1"), CreatedAt: base}))
	require.NoError(t, repo.Append(ctx, &domain.ClientSnapshot{TenantID: "t1", ClientID: "c1", Payload: payload("1", "2"), CreatedAt: base.Add(time.Hour)}))
	// other tenant, same client id
	require.NoError(t, repo.Append(ctx, &domain.ClientSnapshot{TenantID: "t2", ClientID: "c1", Payload: payload("9", "8", "7"), CreatedAt: base.Add(2 * time.Hour)}))

	got, err := repo.Latest(ctx, "t1", "c1", domain.KindInvoices)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Payload.Count)
	assert.Equal(t, "2", got.Payload.Invoices[1].ID)
	assert.Equal(t, domain.KindInvoices, got.SnapshotType)

	list, err := repo.ListByClient(ctx, "t1", "c1", 0)
	require.NoError(t, err)
	assert.Len(t, list, 2, "append never overwrites")
}

func TestLatest_SameInstantUsesInsertionOrder(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(ctx, &domain.ClientSnapshot{TenantID: "t1", ClientID: "c1", Payload: payload("1"), CreatedAt: at}))
	require.NoError(t, repo.Append(ctx, &domain.ClientSnapshot{TenantID: "t1", ClientID: "c1", Payload: payload("1", "2", "3"), CreatedAt: at}))

	got, err := repo.Latest(ctx, "t1", "c1", domain.KindInvoices)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Payload.Count)
}

func TestListByClient_Limit(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, repo.Append(ctx, &domain.ClientSnapshot{TenantID: "t1", ClientID: "c1", Payload: payload(), CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	list, err := repo.ListByClient(ctx, "t1", "c1", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
}
