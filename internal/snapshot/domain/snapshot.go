package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// KindInvoices tags snapshots holding a client's normalized invoice list.
const KindInvoices = "invoices"

// ErrPayloadDecode marks a stored payload that no longer decodes.
var ErrPayloadDecode = errors.New("snapshot payload does not decode")

// InvoiceSummary keeps the upstream field names so stored payloads read the
// same as the accounting API.
type InvoiceSummary struct {
	ID        string          `json:"Id"`
	DocNumber string          `json:"DocNumber"`
	TotalAmt  decimal.Decimal `json:"TotalAmt"`
	Balance   decimal.Decimal `json:"Balance"`
	TxnDate   string          `json:"TxnDate"`
}

// InvoiceSnapshot is the normalized, comparable invoice state of one client.
type InvoiceSnapshot struct {
	Count    int              `json:"count"`
	Invoices []InvoiceSummary `json:"invoices"`
}

func (s InvoiceSnapshot) Value() (driver.Value, error) {
	if s.Invoices == nil {
		s.Invoices = []InvoiceSummary{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *InvoiceSnapshot) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*s = InvoiceSnapshot{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into InvoiceSnapshot", value)
	}
	if err := json.Unmarshal(raw, s); err != nil {
		return fmt.Errorf("%w: %w", ErrPayloadDecode, err)
	}
	return nil
}

// ClientSnapshot rows are append-only; the current state of a client is the
// newest row of a given kind.
type ClientSnapshot struct {
	ID           string          `json:"id" gorm:"primaryKey"`
	TenantID     string          `json:"tenant_id" gorm:"index;not null"`
	ClientID     string          `json:"client_id" gorm:"index:idx_snapshot_lookup,priority:1;not null"`
	SnapshotType string          `json:"snapshot_type" gorm:"index:idx_snapshot_lookup,priority:2;not null"`
	Payload      InvoiceSnapshot `json:"payload" gorm:"type:text;not null"`
	CreatedAt    time.Time       `json:"created_at" gorm:"index:idx_snapshot_lookup,priority:3"`
}
