package domain

import (
	"errors"
	"time"

	updatedomain "client-update-agent/internal/update/domain"
)

// DefaultSubject is used when the model reply carries no subject.
const DefaultSubject = "Update for you"

var (
	// ErrDraftParse means the model reply was not a usable JSON draft.
	ErrDraftParse = errors.New("could not parse draft from model reply")
	// ErrRunInProgress is returned when another run holds the tenant lock.
	ErrRunInProgress = errors.New("an agent run is already in progress for this tenant")
)

// Per-client outcome of a run.
const (
	OutcomeUnchanged  = "unchanged"
	OutcomeSuppressed = "suppressed"
	OutcomeDrafted    = "drafted"
	OutcomeFailed     = "failed"
)

// DraftInput is the client context handed to the composer.
type DraftInput struct {
	ClientName     string
	ClientEmail    string
	ChangeSummary  string
	CompanyContext string
}

// Draft is a composed email ready to be stored as a pending update.
type Draft struct {
	Subject   string `json:"subject"`
	BodyPlain string `json:"body_plain"`
	BodyHTML  string `json:"body_html"`
}

type ClientOutcome struct {
	ClientID    string  `json:"client_id"`
	DisplayName string  `json:"display_name"`
	Status      string  `json:"status"`
	Summary     string  `json:"summary,omitempty"`
	UpdateID    *string `json:"update_id,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// RunResult reports what one tenant run did. Created holds the pending
// updates written by the run, in client order.
type RunResult struct {
	TenantID   string                       `json:"tenant_id"`
	Connected  bool                         `json:"connected"`
	Synced     int                          `json:"synced"`
	Created    []updatedomain.PendingUpdate `json:"created"`
	Clients    []ClientOutcome              `json:"clients"`
	StartedAt  time.Time                    `json:"started_at"`
	FinishedAt time.Time                    `json:"finished_at"`
}

func (r *RunResult) Count(status string) int {
	n := 0
	for _, c := range r.Clients {
		if c.Status == status {
			n++
		}
	}
	return n
}
