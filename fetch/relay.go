package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultRelayURL is the public CORS relay used when no other is set.
	DefaultRelayURL = "https://api.allorigins.win/get?url="

	// DefaultRelayTimeout is the budget for a relayed request.
	DefaultRelayTimeout = 15 * time.Second
)

// Relay fetches a target URL through a "get?url=" style relay that wraps the
// upstream body in a {"contents": "<json string>", "status": ...} envelope.
type Relay struct {
	next    Doer
	base    string
	timeout time.Duration
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

// WithRelayTimeout sets the budget for relayed requests that carry none.
func WithRelayTimeout(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRelay wraps next. An empty base selects DefaultRelayURL.
func NewRelay(next Doer, base string, opts ...RelayOption) *Relay {
	if base == "" {
		base = DefaultRelayURL
	}
	r := &Relay{next: next, base: base, timeout: DefaultRelayTimeout}
	for _, o := range opts {
		o(r)
	}
	return r
}

// relayEnvelope is the outer document returned by the relay.
type relayEnvelope struct {
	Contents *string        `json:"contents"`
	Status   json.RawMessage `json:"status"`
}

// Do fetches req.URL through the relay and returns the inner JSON.
func (r *Relay) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	if req.Method != "" && req.Method != http.MethodGet {
		return nil, &Error{Reason: ReasonNetwork, URL: req.URL, Err: ErrRelayMethod}
	}
	timeout := r.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	outer, err := r.next.Do(ctx, Request{
		Method:  http.MethodGet,
		URL:     r.base + url.QueryEscape(req.URL),
		Header:  req.Header,
		Timeout: timeout,
	})
	if err != nil {
		// The outer body is the relay's own document; failing to parse it is an
		// envelope problem, not a problem with the relayed feed.
		var fe *Error
		if errors.As(err, &fe) && fe.Reason == ReasonDecode {
			return nil, &Error{Reason: ReasonEnvelopeMalformed, URL: req.URL, Err: err}
		}
		return nil, err
	}

	var env relayEnvelope
	if err := json.Unmarshal(outer, &env); err != nil {
		return nil, &Error{Reason: ReasonEnvelopeMalformed, URL: req.URL, Err: err}
	}
	if env.Contents == nil {
		return nil, &Error{Reason: ReasonEnvelopeMalformed, URL: req.URL, Err: errors.New(`missing "contents"`)}
	}
	if code := envelopeStatus(env.Status); code != 0 && (code < 200 || code > 299) {
		return nil, &Error{Reason: ReasonHTTPStatus, StatusCode: code, URL: req.URL}
	}

	inner := json.RawMessage(*env.Contents)
	if !json.Valid(inner) {
		return nil, &Error{Reason: ReasonDecode, URL: req.URL, Err: errors.New("relayed contents are not valid JSON")}
	}
	return inner, nil
}

// envelopeStatus extracts the upstream status code, which relays report either
// as a bare number or as {"http_code": n}. Zero means unknown.
func envelopeStatus(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var code int
	if err := json.Unmarshal(raw, &code); err == nil {
		return code
	}
	var obj struct {
		HTTPCode int `json:"http_code"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.HTTPCode
	}
	return 0
}
