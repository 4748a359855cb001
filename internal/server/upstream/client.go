// Package upstream is the HTTP client for one organization's identity
// backend. It performs form-encoded requests the way the backend expects and
// hands raw status/body/header triples back to the proxy handlers, which
// forward them unchanged.
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client performs requests against the identity backend of one organization.
type Client struct {
	httpClient *http.Client
	host       string
}

// Response is a raw upstream reply. Handlers forward StatusCode and Body
// unchanged; Header is kept for pagination (Link) passthrough.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// OK reports whether the upstream replied with a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// RequestOption настраивает отдельный запрос к identity backend
type RequestOption func(*http.Request)

// WithBearer adds an Authorization: Bearer header.
func WithBearer(token string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// WithAcceptLanguage forwards the end user's preferred language.
func WithAcceptLanguage(lang string) RequestOption {
	return func(req *http.Request) {
		if lang != "" {
			req.Header.Set("Accept-Language", lang)
		}
	}
}

// New creates an upstream client for host with the given request timeout.
func New(host string, timeout time.Duration) *Client {
	return &Client{
		host: strings.TrimRight(host, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// PostForm sends a form-encoded POST to path.
func (c *Client) PostForm(ctx context.Context, path string, data url.Values, opts ...RequestOption) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, opts)
}

// PostJSON sends a JSON POST to path.
func (c *Client) PostJSON(ctx context.Context, path string, body []byte, opts ...RequestOption) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, opts)
}

// Get sends a GET to path with the given query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values, opts ...RequestOption) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}
	return c.do(req, opts)
}

func (c *Client) do(req *http.Request, opts []RequestOption) (*Response, error) {
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Header:     resp.Header,
	}, nil
}
