// Package fetch performs bounded-time HTTP requests that return JSON, and
// classifies every failure into a small, fixed set of reasons.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout is the per-request budget of a Client.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxBodyBytes caps how much of a response body is read.
	DefaultMaxBodyBytes = 16 << 20

	// DefaultUserAgent is sent when no other agent is configured.
	DefaultUserAgent = "MinutoDash/1.0"
)

// Request describes one upstream call.
type Request struct {
	Method string // defaults to GET
	URL    string
	Body   any // JSON-encoded when non-nil
	Header http.Header

	// Timeout overrides the client budget for this request when positive.
	Timeout time.Duration
}

// Doer executes a Request and returns the raw JSON body.
type Doer interface {
	Do(ctx context.Context, req Request) (json.RawMessage, error)
}

// Client is the default Doer. It is safe for concurrent use.
type Client struct {
	hc        *http.Client
	timeout   time.Duration
	userAgent string
	maxBody   int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying http.Client. Its own Timeout should be
// zero; the Client enforces its budget through the request context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithTimeout sets the default per-request budget.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header sent on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithMaxBodyBytes caps the number of body bytes read per response.
func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		hc:        &http.Client{},
		timeout:   DefaultTimeout,
		userAgent: DefaultUserAgent,
		maxBody:   DefaultMaxBodyBytes,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Do issues req under a deadline and returns the body if it is valid JSON.
// Every failure is an *Error.
func (c *Client) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	timeout := c.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hreq, err := c.newRequest(tctx, req)
	if err != nil {
		return nil, &Error{Reason: ReasonNetwork, URL: req.URL, Err: err}
	}

	resp, err := c.hc.Do(hreq)
	if err != nil {
		return nil, classify(ctx, tctx, req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &Error{Reason: ReasonHTTPStatus, StatusCode: resp.StatusCode, URL: req.URL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, classify(ctx, tctx, req.URL, err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, &Error{Reason: ReasonDecode, URL: req.URL, Err: fmt.Errorf("body exceeds %d bytes", c.maxBody)}
	}
	if !json.Valid(body) {
		return nil, &Error{Reason: ReasonDecode, URL: req.URL, Err: errors.New("body is not valid JSON")}
	}
	return body, nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	hreq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	hreq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" && hreq.Header.Get("User-Agent") == "" {
		hreq.Header.Set("User-Agent", c.userAgent)
	}
	return hreq, nil
}

// classify maps a transport or body-read error to a Reason. Only the
// request's own deadline counts as a timeout; a cancelled parent context is a
// network failure carrying the cancellation cause.
func classify(parent, tctx context.Context, url string, err error) *Error {
	if errors.Is(tctx.Err(), context.DeadlineExceeded) && !errors.Is(parent.Err(), context.Canceled) {
		return &Error{Reason: ReasonTimeout, URL: url, Err: err}
	}
	if perr := parent.Err(); perr != nil {
		return &Error{Reason: ReasonNetwork, URL: url, Err: perr}
	}
	return &Error{Reason: ReasonNetwork, URL: url, Err: err}
}

// Decode unmarshals raw into a T, reporting failures as decode-failure.
func Decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, &Error{Reason: ReasonDecode, Err: err}
	}
	return v, nil
}
