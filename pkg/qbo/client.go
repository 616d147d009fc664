// Package qbo is a minimal QuickBooks Online accounting API client covering
// the OAuth2 configuration and the customer/invoice query endpoints.
package qbo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	Scope = "com.intuit.quickbooks.accounting"

	MaxCustomers = 1000
	MaxInvoices  = 500

	defaultTimeout = 30 * time.Second
)

type Customer struct {
	ID                 string        `json:"Id"`
	DisplayName        string        `json:"DisplayName"`
	FullyQualifiedName string        `json:"FullyQualifiedName"`
	CompanyName        string        `json:"CompanyName"`
	PrimaryEmailAddr   *EmailAddress `json:"PrimaryEmailAddr,omitempty"`
	Active             bool          `json:"Active"`
}

type EmailAddress struct {
	Address string `json:"Address"`
}

type Invoice struct {
	ID          string          `json:"Id"`
	DocNumber   string          `json:"DocNumber"`
	TotalAmt    decimal.Decimal `json:"TotalAmt"`
	Balance     decimal.Decimal `json:"Balance"`
	TxnDate     string          `json:"TxnDate"`
	CustomerRef *Reference      `json:"CustomerRef,omitempty"`
}

type Reference struct {
	Value string `json:"value"`
	Name  string `json:"name,omitempty"`
}

// RemoteServiceError reports a failed call to the accounting API: a
// transport failure (StatusCode 0), a non-2xx response, or a response that
// could not be read or decoded.
type RemoteServiceError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteServiceError) Error() string {
	msg := "quickbooks " + e.Op
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
		if e.Body != "" {
			msg += ": " + e.Body
		}
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RemoteServiceError) Unwrap() error { return e.Err }

func IsRemoteServiceError(err error) bool {
	var target *RemoteServiceError
	return errors.As(err, &target)
}

// OAuthConfig builds the authorization-code flow configuration.
func OAuthConfig(clientID, clientSecret, redirectURI, authURL, tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{Scope},
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// Client issues query requests against one API host. It is safe for
// concurrent use; all calls share one rate limiter.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient returns a client for baseURL. rps <= 0 disables throttling.
func NewClient(baseURL string, rps float64, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = max(1, int(rps))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// QueryCustomers lists active customers, capped at MaxCustomers.
func (c *Client) QueryCustomers(ctx context.Context, realmID, accessToken string) ([]Customer, error) {
	q := fmt.Sprintf("SELECT * FROM Customer WHERE Active = true MAXRESULTS %d", MaxCustomers)
	var resp struct {
		QueryResponse struct {
			Customer []Customer `json:"Customer"`
		} `json:"QueryResponse"`
	}
	if err := c.query(ctx, "fetch customers", realmID, accessToken, q, &resp); err != nil {
		return nil, err
	}
	return resp.QueryResponse.Customer, nil
}

// QueryInvoices lists a customer's invoices, newest transaction first,
// capped at MaxInvoices.
func (c *Client) QueryInvoices(ctx context.Context, realmID, accessToken, customerID string) ([]Invoice, error) {
	q := fmt.Sprintf("SELECT * FROM Invoice WHERE CustomerRef = '%s' ORDER BY TxnDate DESC MAXRESULTS %d",
		escapeLiteral(customerID), MaxInvoices)
	var resp struct {
		QueryResponse struct {
			Invoice []Invoice `json:"Invoice"`
		} `json:"QueryResponse"`
	}
	if err := c.query(ctx, "fetch invoices", realmID, accessToken, q, &resp); err != nil {
		return nil, err
	}
	return resp.QueryResponse.Invoice, nil
}

func (c *Client) query(ctx context.Context, op, realmID, accessToken, q string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &RemoteServiceError{Op: op, Err: err}
	}

	endpoint := fmt.Sprintf("%s/v3/company/%s/query?query=%s", c.baseURL, url.PathEscape(realmID), url.QueryEscape(q))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &RemoteServiceError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RemoteServiceError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return &RemoteServiceError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RemoteServiceError{Op: op, StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &RemoteServiceError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
