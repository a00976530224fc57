// Package identity manages login accounts through the hosted auth admin API.
// Session tokens issued by the same provider are validated by the Auth
// middleware; this package only creates and deletes accounts.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
	"github.com/utafrali/mercadolocal/pkg/httpclient"
)

// ServiceName labels upstream errors and the circuit breaker.
const ServiceName = "auth-admin"

// Account is a login account as returned by the admin API.
type Account struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// NewAccount is the input for CreateAccount.
type NewAccount struct {
	Email    string
	Password string
	FullName string
	Role     string
}

type createAccountRequest struct {
	Email        string         `json:"email"`
	Password     string         `json:"password"`
	EmailConfirm bool           `json:"email_confirm"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// Client calls the admin endpoints with the service-role key.
type Client struct {
	doer       httpclient.Doer
	baseURL    string
	serviceKey string
}

// NewClient creates an admin API client rooted at baseURL.
func NewClient(doer httpclient.Doer, baseURL, serviceKey string) *Client {
	return &Client{
		doer:       doer,
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
	}
}

// CreateAccount registers a pre-confirmed account. An email that is already
// registered is reported as AlreadyExists.
func (c *Client) CreateAccount(ctx context.Context, in NewAccount) (*Account, error) {
	body, err := json.Marshal(createAccountRequest{
		Email:        in.Email,
		Password:     in.Password,
		EmailConfirm: true,
		UserMetadata: map[string]any{"full_name": in.FullName, "role": in.Role},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal account: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/admin/users", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build create account request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	var acct Account
	if err := httpclient.DoJSON(ctx, c.doer, req, &acct, ServiceName); err != nil {
		// The admin API answers 422 for a taken email.
		if errors.Is(err, apperrors.ErrInvalidInput) && strings.Contains(strings.ToLower(err.Error()), "already") {
			return nil, apperrors.AlreadyExists("user", "email", in.Email)
		}
		return nil, err
	}
	if acct.ID == "" {
		return nil, apperrors.Unavailable(ServiceName, errors.New("created account has no id"))
	}
	return &acct, nil
}

// DeleteAccount removes the account with the given id. An account that no
// longer exists counts as deleted.
func (c *Client) DeleteAccount(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/auth/v1/admin/users/"+url.PathEscape(id), http.NoBody)
	if err != nil {
		return fmt.Errorf("build delete account request: %w", err)
	}
	c.authorize(req)

	if err := httpclient.DoJSON(ctx, c.doer, req, nil, ServiceName); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
}
