// Package client talks to the relay HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/telhawk-systems/userrelay/internal/models"
)

// RunResponse is the body of a successful execute or clear call.
type RunResponse struct {
	Success   bool   `json:"success" yaml:"success"`
	Operation string `json:"operation" yaml:"operation"`
	Message   string `json:"message" yaml:"message"`
	Records   int    `json:"records,omitempty" yaml:"records,omitempty"`
	Bytes     int    `json:"bytes,omitempty" yaml:"bytes,omitempty"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s (%s, HTTP %d)", e.Message, e.Kind, e.Status)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

type RelayClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewRelayClient(baseURL, token string) *RelayClient {
	return &RelayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Execute triggers one relay run. A non-empty hexKey overrides the key
// carried by the upstream envelope.
func (c *RelayClient) Execute(ctx context.Context, hexKey string) (*RunResponse, error) {
	var body io.Reader
	if hexKey != "" {
		b, err := json.Marshal(map[string]string{"key": hexKey})
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	var resp RunResponse
	if err := c.do(ctx, http.MethodPost, "/api/execute", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *RelayClient) Clear(ctx context.Context) (*RunResponse, error) {
	var resp RunResponse
	if err := c.do(ctx, http.MethodPost, "/api/clear", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *RelayClient) Users(ctx context.Context, page, limit int) (*models.UserList, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var list models.UserList
	if err := c.do(ctx, http.MethodGet, "/api/users?"+q.Encode(), nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *RelayClient) Runs(ctx context.Context, limit int) (*models.RunList, error) {
	var list models.RunList
	if err := c.do(ctx, http.MethodGet, "/api/runs?limit="+strconv.Itoa(limit), nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *RelayClient) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var e struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
			apiErr.Kind = e.Kind
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
