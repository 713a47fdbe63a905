// Package webhook forwards decrypted documents to the workflow webhook and
// asks it to discard them.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/telhawk-systems/userrelay/common/audit"
	"github.com/telhawk-systems/userrelay/internal/payload"
	"github.com/telhawk-systems/userrelay/internal/secret"
)

// StatusError reports a non-2xx webhook response.
type StatusError struct {
	Method string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook %s response status %d", e.Method, e.Code)
}

type Client struct {
	url        string
	httpClient *http.Client
	signer     *audit.RequestSigner
}

type Option func(*Client)

// WithSigner signs every request. A nil signer disables signing.
func WithSigner(s *audit.RequestSigner) Option {
	return func(c *Client) { c.signer = s }
}

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

// Forward POSTs doc as the JSON request body.
func (c *Client) Forward(ctx context.Context, doc *payload.Document) error {
	if doc == nil {
		return fmt.Errorf("no document to forward")
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	defer secret.Zero(body)

	return c.send(ctx, http.MethodPost, body)
}

// Clear sends DELETE with no body.
func (c *Client) Clear(ctx context.Context) error {
	return c.send(ctx, http.MethodDelete, nil)
}

func (c *Client) send(ctx context.Context, method string, body []byte) error {
	if c == nil || c.url == "" {
		return fmt.Errorf("webhook client not configured")
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.signer != nil {
		sig, ts := c.signer.Headers(method, body)
		req.Header.Set(audit.SignatureHeader, sig)
		req.Header.Set(audit.TimestampHeader, ts)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, Code: resp.StatusCode}
	}
	return nil
}
