package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"tattoo-app/pkg/apperr"
)

// Validator turns a bearer token into a Caller.
type Validator interface {
	Validate(ctx context.Context, token string) (Caller, error)
}

// Directory resolves users by id.
type Directory interface {
	GetUser(ctx context.Context, id string) (*User, error)
}

// Client talks to auth-service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Validate отправляет токен в /auth/validate
func (c *Client) Validate(ctx context.Context, token string) (Caller, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/validate", nil)
	if err != nil {
		return Caller{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Caller{}, fmt.Errorf("auth-service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return Caller{}, apperr.New(apperr.ErrUnauthorized, "invalid or expired token")
	}
	if resp.StatusCode != http.StatusOK {
		return Caller{}, fmt.Errorf("auth-service returned status %d", resp.StatusCode)
	}

	var caller Caller
	if err := json.NewDecoder(resp.Body).Decode(&caller); err != nil {
		return Caller{}, fmt.Errorf("failed to decode validate response: %w", err)
	}
	if caller.ID == "" || !caller.Role.Valid() {
		return Caller{}, apperr.New(apperr.ErrUnauthorized, "token carries no usable identity")
	}
	return caller, nil
}

func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	endpoint := fmt.Sprintf("%s/internal/users/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusBadRequest:
		return nil, apperr.New(apperr.ErrNotFound, "user %s not found", id)
	default:
		return nil, fmt.Errorf("auth-service returned status %d", resp.StatusCode)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &user, nil
}
