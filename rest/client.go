// rest/client.go
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	pulse_errors "github.com/schoolsync/pulse/errors"
	"github.com/schoolsync/pulse/model"
)

// HeaderSource contributes headers to every outgoing request; the
// impersonation manager implements it.
type HeaderSource interface {
	Headers() map[string]string
}

// Client wraps the dashboard backend's REST surface used by the realtime
// core: impersonation validation and notification read-state sync.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	headers HeaderSource
}

func NewClient(baseURL, token string, headers HeaderSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		headers: headers,
	}
}

// SetHeaderSource wires the impersonation manager after construction; the
// manager itself needs the client for validation calls.
func (c *Client) SetHeaderSource(headers HeaderSource) {
	c.headers = headers
}

// ValidateImpersonation asks the backend whether the target may be
// impersonated by the current user.
func (c *Client) ValidateImpersonation(ctx context.Context, targetUserID string) (model.ValidateImpersonationResponse, error) {
	var out model.ValidateImpersonationResponse
	err := c.do(ctx, http.MethodPost, "/impersonate/validate",
		model.ValidateImpersonationRequest{TargetUserID: targetUserID}, &out)
	if err != nil {
		return out, fmt.Errorf("%w: %v", pulse_errors.ErrImpersonationValidation, err)
	}
	return out, nil
}

// MarkRead syncs read-state: ids is a comma-separated id list or the
// literal "all".
func (c *Client) MarkRead(ctx context.Context, ids string) error {
	if err := c.do(ctx, http.MethodPost, "/notifications/read",
		map[string]string{"ids": ids}, nil); err != nil {
		return fmt.Errorf("%w: %v", pulse_errors.ErrMarkReadFailed, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.headers != nil {
		for key, value := range c.headers.Headers() {
			req.Header.Set(key, value)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: request to %s returned status %d", pulse_errors.ErrUnauthorized, path, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("request to %s returned status %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}
	return nil
}
