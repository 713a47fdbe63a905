// Package upstream fetches encrypted envelopes from the operator-configured
// source endpoint.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/telhawk-systems/userrelay/internal/envelope"
	"github.com/telhawk-systems/userrelay/internal/secret"
)

// maxResponseBytes bounds how much of an upstream response is read.
const maxResponseBytes = 10 << 20

// ErrNoEnvelope is returned when the response has no "encrypted" object.
var ErrNoEnvelope = errors.New("upstream response has no encrypted envelope")

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream response status %d", e.Code)
}

type Client struct {
	url        string
	token      secret.String
	httpClient *http.Client
}

type Option func(*Client)

// WithToken sends token as a bearer credential.
func WithToken(token secret.String) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default client. Its timeout is kept as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(url string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// response accepts both {"data":{"encrypted":{...}}} and {"encrypted":{...}}.
type response struct {
	Data *struct {
		Encrypted *envelope.Envelope `json:"encrypted"`
	} `json:"data"`
	Encrypted *envelope.Envelope `json:"encrypted"`
}

// Fetch performs one GET and returns the envelope it contains.
func (c *Client) Fetch(ctx context.Context) (*envelope.Envelope, error) {
	if c == nil || c.url == "" {
		return nil, fmt.Errorf("upstream client not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if !c.token.IsZero() {
		req.Header.Set("Authorization", "Bearer "+c.token.Reveal())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var body response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	switch {
	case body.Data != nil && body.Data.Encrypted != nil:
		return body.Data.Encrypted, nil
	case body.Encrypted != nil:
		return body.Encrypted, nil
	default:
		return nil, ErrNoEnvelope
	}
}
