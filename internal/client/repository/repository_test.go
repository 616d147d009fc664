package repository

import (
	"context"
	"testing"

	"client-update-agent/internal/client/domain"
	"client-update-agent/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T) ClientRepository {
	t.Helper()
	db, err := database.OpenSQLiteMemory()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Client{}))
	return NewClientRepository(db)
}

func strPtr(s string) *string { return &s }

func TestUpsertRemote_InsertsThenUpdates(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	n, err := repo.UpsertRemote(ctx, "t1", []domain.RemoteCustomer{
		{QBCustomerID: "1", DisplayName: "Acme", Email: strPtr("ops@acme.io"), CompanyName: strPtr("Acme Ltd")},
		{QBCustomerID: "2", DisplayName: "Bolt"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// resync: blank email must not erase, company can be cleared
	n, err = repo.UpsertRemote(ctx, "t1", []domain.RemoteCustomer{
		{QBCustomerID: "1", DisplayName: "Acme Corp"},
		{QBCustomerID: "2", DisplayName: "Bolt", Email: strPtr("hi@bolt.dev")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	clients, err := repo.List(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, clients, 2, "resync must not duplicate")

	assert.Equal(t, "Acme Corp", clients[0].DisplayName)
	require.NotNil(t, clients[0].Email)
	assert.Equal(t, "ops@acme.io", *clients[0].Email)
	assert.Nil(t, clients[0].CompanyName)

	require.NotNil(t, clients[1].Email)
	assert.Equal(t, "hi@bolt.dev", *clients[1].Email)
}

func TestUpsertRemote_TenantsAreIndependent(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	_, err := repo.UpsertRemote(ctx, "t1", []domain.RemoteCustomer{{QBCustomerID: "1", DisplayName: "Acme"}})
	require.NoError(t, err)
	_, err = repo.UpsertRemote(ctx, "t2", []domain.RemoteCustomer{{QBCustomerID: "1", DisplayName: "Other"}})
	require.NoError(t, err)

	t1, err := repo.List(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, t1, 1)
	assert.Equal(t, "Acme", t1[0].DisplayName)

	got, err := repo.FindByID(ctx, "t2", t1[0].ID)
	require.NoError(t, err)
	assert.Nil(t, got, "tenant t2 cannot read tenant t1's client")

	byIDs, err := repo.FindByIDs(ctx, "t2", []string{t1[0].ID})
	require.NoError(t, err)
	assert.Empty(t, byIDs)
}

func TestUpdate(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	_, err := repo.UpsertRemote(ctx, "t1", []domain.RemoteCustomer{{QBCustomerID: "1", DisplayName: "Acme"}})
	require.NoError(t, err)
	list, err := repo.List(ctx, "t1")
	require.NoError(t, err)

	c := list[0]
	c.DisplayName = "Acme Renamed"
	c.Email = strPtr("new@acme.io")
	require.NoError(t, repo.Update(ctx, &c))

	got, err := repo.FindByID(ctx, "t1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Renamed", got.DisplayName)
	assert.Equal(t, "new@acme.io", *got.Email)
}

func TestUpsertRemote_Empty(t *testing.T) {
	repo := setupRepo(t)
	n, err := repo.UpsertRemote(context.Background(), "t1", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
