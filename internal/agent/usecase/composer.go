package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"client-update-agent/internal/agent/domain"
	"client-update-agent/pkg/ai"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const systemInstruction = "You are a professional assistant that writes brief, friendly email updates " +
	"for business clients. Given a summary of what changed (e.g. new invoices, " +
	"milestone completions), draft a short email (2-4 sentences) that informs " +
	"the client without overwhelming detail. Tone: clear, professional, warm. " +
	"Do not invent data; only reference what is provided. " +
	"Respond with valid JSON only, in this exact shape: " +
	`{"subject": "Subject line here", "body_plain": "Plain text body.", "body_html": "<p>HTML body.</p>"}`

var errEmptyDraft = errors.New("draft has no body")

type draftComposer struct {
	gen        ai.TextGenerator
	timeout    time.Duration
	maxRetries int
	newBackOff func() backoff.BackOff
	log        *zap.Logger
}

// NewDraftComposer bounds each generation call by timeout and retries
// failed or unusable replies up to maxRetries times.
func NewDraftComposer(gen ai.TextGenerator, timeout time.Duration, maxRetries int, log *zap.Logger) DraftComposer {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &draftComposer{
		gen:        gen,
		timeout:    timeout,
		maxRetries: maxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 10 * time.Second
			return b
		},
		log: log,
	}
}

func (c *draftComposer) Draft(ctx context.Context, in domain.DraftInput) (*domain.Draft, error) {
	prompt := BuildPrompt(in)

	op := func() (*domain.Draft, error) {
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		text, err := c.gen.Generate(callCtx, systemInstruction, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, fmt.Errorf("generate draft: %w", err)
		}
		draft, err := ParseDraft(text)
		if err != nil {
			return nil, err
		}
		if draft.BodyHTML == "" && draft.BodyPlain == "" {
			return nil, fmt.Errorf("%w: %w", domain.ErrDraftParse, errEmptyDraft)
		}
		return draft, nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.maxRetries)), ctx)
	draft, err := backoff.RetryNotifyWithData(op, b, func(err error, wait time.Duration) {
		c.log.Warn("Draft attempt failed, retrying",
			zap.String("client", in.ClientName),
			zap.String("provider", c.gen.Name()),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	if err != nil {
		return nil, err
	}
	return draft, nil
}

// BuildPrompt lays out the client context and change summary for the model.
func BuildPrompt(in domain.DraftInput) string {
	email := in.ClientEmail
	if email == "" {
		email = "Not set"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Client name: %s\n", in.ClientName)
	fmt.Fprintf(&sb, "Contact email: %s\n", email)
	if in.CompanyContext != "" {
		sb.WriteString(in.CompanyContext)
		sb.WriteString("\n")
	}
	sb.WriteString("Changes to report:\n")
	sb.WriteString(in.ChangeSummary)
	sb.WriteString("\n\nDraft one brief email update. Output only the JSON object, no other text.")
	return sb.String()
}

// ParseDraft reads a model reply into a draft. A fenced code block around
// the JSON is accepted. Missing bodies fall back to each other and a
// missing or blank subject becomes DefaultSubject.
func ParseDraft(text string) (*domain.Draft, error) {
	var raw struct {
		Subject   *string `json:"subject"`
		BodyPlain *string `json:"body_plain"`
		BodyHTML  *string `json:"body_html"`
	}
	if err := json.Unmarshal([]byte(ai.ExtractJSONObject(text)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDraftParse, err)
	}

	d := &domain.Draft{Subject: subjectOrDefault(raw.Subject)}
	switch {
	case raw.BodyPlain != nil && raw.BodyHTML != nil:
		d.BodyPlain, d.BodyHTML = *raw.BodyPlain, *raw.BodyHTML
	case raw.BodyPlain != nil:
		d.BodyPlain, d.BodyHTML = *raw.BodyPlain, *raw.BodyPlain
	case raw.BodyHTML != nil:
		d.BodyPlain, d.BodyHTML = *raw.BodyHTML, *raw.BodyHTML
	}
	return d, nil
}

func subjectOrDefault(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return domain.DefaultSubject
	}
	return strings.TrimSpace(*s)
}
