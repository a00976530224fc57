// Package mercadopago talks to the MercadoPago REST API: payment lookups for
// webhook processing and checkout preferences for the PRO plan.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/mercadolocal/pkg/httpclient"
)

// ServiceName labels upstream errors and the circuit breaker.
const ServiceName = "mercadopago"

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.mercadopago.com"

// Payment statuses.
const (
	StatusApproved   = "approved"
	StatusPending    = "pending"
	StatusInProcess  = "in_process"
	StatusRejected   = "rejected"
	StatusCancelled  = "cancelled"
	StatusRefunded   = "refunded"
	StatusChargeBack = "charged_back"
)

// Payment is the subset of a MercadoPago payment the service reads.
type Payment struct {
	ID                int64      `json:"id"`
	Status            string     `json:"status"`
	StatusDetail      string     `json:"status_detail"`
	ExternalReference string     `json:"external_reference"`
	TransactionAmount float64    `json:"transaction_amount"`
	CurrencyID        string     `json:"currency_id"`
	DateApproved      *time.Time `json:"date_approved"`
}

// Approved reports whether the payment cleared.
func (p *Payment) Approved() bool {
	return p.Status == StatusApproved
}

// PreferenceItem is one line of a checkout preference.
type PreferenceItem struct {
	ID         string  `json:"id,omitempty"`
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

// BackURLs are the pages the buyer returns to after checkout.
type BackURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

// PreferenceRequest creates a checkout preference.
type PreferenceRequest struct {
	Items             []PreferenceItem `json:"items"`
	ExternalReference string           `json:"external_reference"`
	BackURLs          BackURLs         `json:"back_urls"`
	AutoReturn        string           `json:"auto_return,omitempty"`
	NotificationURL   string           `json:"notification_url,omitempty"`
}

// Preference is a created checkout preference.
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// Client calls the MercadoPago API with a bearer access token.
type Client struct {
	doer        httpclient.Doer
	baseURL     string
	accessToken string
}

// NewClient creates a client. doer is normally a circuit-breaker wrapped
// retrying client; an empty baseURL selects DefaultBaseURL.
func NewClient(doer httpclient.Doer, baseURL, accessToken string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		doer:        doer,
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
	}
}

// GetPayment fetches the authoritative state of payment id.
func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/payments/"+url.PathEscape(id), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build payment request: %w", err)
	}
	c.authorize(req)

	var p Payment
	if err := httpclient.DoJSON(ctx, c.doer, req, &p, ServiceName); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePreference creates a checkout preference and returns its init point.
func (c *Client) CreatePreference(ctx context.Context, in PreferenceRequest) (*Preference, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal preference: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/checkout/preferences", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build preference request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	// Retries of this request reuse the key, so the provider creates one preference.
	req.Header.Set("X-Idempotency-Key", uuid.NewString())

	var pref Preference
	if err := httpclient.DoJSON(ctx, c.doer, req, &pref, ServiceName); err != nil {
		return nil, err
	}
	return &pref, nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
}
