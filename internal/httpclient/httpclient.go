package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTimeout = 10 * time.Second
	maxBody        = 1 << 20
)

// ExternalServiceError is a failed call to a third-party API. Retryable is set for network
// failures, timeouts, 5xx and 429; everything else is terminal.
type ExternalServiceError struct {
	Service    string
	StatusCode int
	Retryable  bool
	Message    string
	Err        error
}

func (e *ExternalServiceError) Error() string {
	var b strings.Builder
	b.WriteString(e.Service)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is an ExternalServiceError worth retrying.
func IsRetryable(err error) bool {
	var ext *ExternalServiceError
	return errors.As(err, &ext) && ext.Retryable
}

// Client is a JSON client for one external service.
type Client struct {
	service  string
	baseURL  string
	http     *http.Client
	header   http.Header
	sanitize func([]byte) []byte
}

type Option func(*Client)

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Set(key, value) }
}

// WithSanitizer rewrites response bodies before they are decoded.
func WithSanitizer(f func([]byte) []byte) Option {
	return func(c *Client) { c.sanitize = f }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func New(service, baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		header:  make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Service() string { return c.service }

func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", c.service, err)
	}
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &ExternalServiceError{Service: c.service, Message: "building request", Err: err}
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// network errors, timeouts and cancellations
		return &ExternalServiceError{Service: c.service, Retryable: ctx.Err() == nil, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return &ExternalServiceError{Service: c.service, StatusCode: resp.StatusCode, Retryable: true, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ExternalServiceError{
			Service:    c.service,
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
			Message:    providerMessage(raw),
		}
	}
	if out == nil {
		return nil
	}
	if c.sanitize != nil {
		raw = c.sanitize(raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ExternalServiceError{Service: c.service, StatusCode: resp.StatusCode, Message: "malformed response", Err: err}
	}
	return nil
}

// providerMessage pulls a human readable message out of an error body.
func providerMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if s, ok := body.Error.(string); ok && s != "" {
			return s
		}
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
