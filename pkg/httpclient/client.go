// Package httpclient builds short-lived HTTP clients for outbound workflow calls.
package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// MaxResponseBytes bounds how much of a response body is kept in the execution context.
const MaxResponseBytes = 1 << 20

type Request struct {
	Method    string
	URL       string
	Headers   map[string]string
	Body      string
	Timeout   time.Duration
	VerifyTLS bool
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Doer dispatches a single request.
type Doer interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// ControlFunc is invoked by the dialer before connecting; returning an error aborts the dial.
type ControlFunc func(network, address string, c syscall.RawConn) error

// Client creates a fresh *http.Client per request so per-node TLS and timeout
// settings never leak into other calls.
type Client struct {
	control ControlFunc
}

func New(control ControlFunc) *Client {
	return &Client{control: control}
}

func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	if req.Body != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client(req).Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

func (c *Client) client(req Request) *http.Client {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: c.control,
	}

	transport := &http.Transport{
		Proxy:               nil,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableKeepAlives:   true,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: !req.VerifyTLS, //nolint:gosec // opt-in per node
		},
	}

	return &http.Client{
		Timeout:   req.Timeout,
		Transport: transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return http.ErrUseLastResponse
			}

			return nil
		},
	}
}
