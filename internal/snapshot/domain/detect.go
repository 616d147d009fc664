package domain

import (
	"fmt"
	"strings"

	"client-update-agent/pkg/qbo"
)

// ChangeSummary is the reportable difference between two snapshots.
type ChangeSummary struct {
	Summary     string
	NewInvoices []InvoiceSummary
}

// Normalize keeps only the invoice fields the detector and prompt care about.
func Normalize(invoices []qbo.Invoice) InvoiceSnapshot {
	out := InvoiceSnapshot{
		Count:    len(invoices),
		Invoices: make([]InvoiceSummary, 0, len(invoices)),
	}
	for _, inv := range invoices {
		out.Invoices = append(out.Invoices, InvoiceSummary{
			ID:        inv.ID,
			DocNumber: inv.DocNumber,
			TotalAmt:  inv.TotalAmt,
			Balance:   inv.Balance,
			TxnDate:   inv.TxnDate,
		})
	}
	return out
}

// DetectChanges reports invoices in current whose id is absent from previous.
// It returns nil when there is nothing to report. Only additions are
// reported: an invoice that disappears upstream yields nil.
func DetectChanges(previous *InvoiceSnapshot, current InvoiceSnapshot) *ChangeSummary {
	if len(current.Invoices) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	if previous != nil {
		for _, inv := range previous.Invoices {
			seen[inv.ID] = struct{}{}
		}
	}

	var added []InvoiceSummary
	for _, inv := range current.Invoices {
		if _, ok := seen[inv.ID]; !ok {
			added = append(added, inv)
		}
	}
	if len(added) == 0 && previous != nil && previous.Count == current.Count {
		return nil
	}

	lines := make([]string, 0, len(added))
	for _, inv := range added {
		ref := inv.DocNumber
		if ref == "" {
			ref = inv.ID
		}
		lines = append(lines, fmt.Sprintf("New invoice %s (amount: %s)", ref, inv.TotalAmt.String()))
	}
	if len(lines) == 0 {
		return nil
	}

	return &ChangeSummary{
		Summary:     strings.Join(lines, "; "),
		NewInvoices: added,
	}
}
