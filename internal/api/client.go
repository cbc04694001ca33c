// Package api is a typed client for the money-transfer backend REST API.
//
// Every method takes the caller's context: when the browser that triggered
// the call goes away the request is abandoned. There is no retry logic.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"moneywire/internal/core"
	"moneywire/internal/middleware/trace"
)

const (
	DefaultBaseURL = "http://localhost:8080/api/v1"
	DefaultTimeout = 10 * time.Second

	// TokenCookie is the cookie name the backend reads for cookie-authenticated endpoints.
	TokenCookie = "token"

	maxErrorBody = 64 << 10
)

type authMode int

const (
	authNone authMode = iota
	authBearer
	authCookie
)

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds every single backend call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates a client for the API rooted at baseURL (e.g. http://host/api/v1).
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type credentialsKey struct{}

// WithCredentials returns a context under which the client keeps the cookies
// the backend sets and sends them back on later calls made with the same
// context, like a browser fetch with credentials included.
func WithCredentials(ctx context.Context) context.Context {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return ctx
	}
	return context.WithValue(ctx, credentialsKey{}, jar)
}

func credentialsFrom(ctx context.Context) http.CookieJar {
	jar, _ := ctx.Value(credentialsKey{}).(http.CookieJar)
	return jar
}

type request struct {
	op     string
	method string
	path   string
	auth   authMode
	token  string
	body   any
	out    any
}

// do performs one call. Transport failures become *core.NetworkError, non-2xx
// responses become *StatusError.
func (c *Client) do(ctx context.Context, req request) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", req.op, err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", req.op, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if id := trace.GetRequestID(ctx); id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}
	switch req.auth {
	case authBearer:
		if req.token == "" {
			return fmt.Errorf("%s: %w", req.op, ErrMissingToken)
		}
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	case authCookie:
		if req.token == "" {
			return fmt.Errorf("%s: %w", req.op, ErrMissingToken)
		}
		httpReq.AddCookie(&http.Cookie{Name: TokenCookie, Value: req.token})
	}

	hc := c.http
	if jar := credentialsFrom(ctx); jar != nil {
		withJar := *c.http
		withJar.Jar = jar
		hc = &withJar
	}

	resp, err := hc.Do(httpReq)
	if err != nil {
		return &core.NetworkError{Op: req.op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(req.op, resp)
	}

	if req.out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(req.out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: empty response body", req.op)
		}
		return fmt.Errorf("%s: decode response: %w", req.op, err)
	}
	return nil
}

func newStatusError(op string, resp *http.Response) *StatusError {
	se := &StatusError{Op: op, Status: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return se
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return se
	}
	se.Parsed = true
	se.Message = payload.Error
	if se.Message == "" {
		se.Message = payload.Message
	}
	return se
}

// Ping reports whether the backend answers HTTP at all. Any status counts.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("ping: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &core.NetworkError{Op: "ping", Err: err}
	}
	_ = resp.Body.Close()
	return nil
}
