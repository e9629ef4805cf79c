// Package identity resolves owner email addresses to client ids by calling
// the external identity-lookup service. The directory never stores email
// addresses itself.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// UpstreamError reports an identity-lookup failure together with the status
// the upstream returned, so handlers can propagate it instead of guessing.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("identity lookup failed: %d %s", e.StatusCode, e.Message)
}

// Client is a client for the identity-lookup service.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates an identity client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// resolveResponse is the upstream's wire format.
type resolveResponse struct {
	ClientID string `json:"client_id"`
}

// Resolve returns the client id registered for an email address.
func (c *Client) Resolve(ctx context.Context, email string) (string, error) {
	endpoint := c.baseURL + "/api/v1/clients?email=" + url.QueryEscape(email)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &UpstreamError{StatusCode: http.StatusBadGateway, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
		}
	}

	var result resolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &UpstreamError{StatusCode: http.StatusBadGateway, Message: "decode response: " + err.Error()}
	}
	if result.ClientID == "" {
		return "", &UpstreamError{StatusCode: http.StatusBadGateway, Message: "empty client id in response"}
	}

	return result.ClientID, nil
}
