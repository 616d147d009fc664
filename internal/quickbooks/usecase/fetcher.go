package usecase

import (
	"context"

	"client-update-agent/pkg/qbo"
)

type fetcher struct {
	conns ConnectionManager
	api   API
}

func NewFetcher(conns ConnectionManager, api API) Fetcher {
	return &fetcher{conns: conns, api: api}
}

func (f *fetcher) FetchCustomers(ctx context.Context, tenantID string) ([]qbo.Customer, error) {
	conn, err := requireConnection(ctx, f.conns, tenantID)
	if err != nil {
		if isNotConnected(err) {
			return []qbo.Customer{}, nil
		}
		return nil, err
	}
	customers, err := f.api.QueryCustomers(ctx, conn.RealmID, conn.AccessToken)
	if err != nil {
		return nil, err
	}
	if customers == nil {
		customers = []qbo.Customer{}
	}
	return customers, nil
}

func (f *fetcher) FetchInvoices(ctx context.Context, tenantID, customerID string) ([]qbo.Invoice, error) {
	conn, err := requireConnection(ctx, f.conns, tenantID)
	if err != nil {
		if isNotConnected(err) {
			return []qbo.Invoice{}, nil
		}
		return nil, err
	}
	invoices, err := f.api.QueryInvoices(ctx, conn.RealmID, conn.AccessToken, customerID)
	if err != nil {
		return nil, err
	}
	if invoices == nil {
		invoices = []qbo.Invoice{}
	}
	return invoices, nil
}
