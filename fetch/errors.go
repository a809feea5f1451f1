package fetch

import (
	"errors"
	"fmt"
)

// Reason classifies why a fetch failed.
type Reason string

const (
	ReasonTimeout           Reason = "timeout"
	ReasonHTTPStatus        Reason = "http-status"
	ReasonNetwork           Reason = "network-failure"
	ReasonDecode            Reason = "decode-failure"
	ReasonEnvelopeMalformed Reason = "envelope-malformed"
)

// ErrRelayMethod is returned (wrapped in a network-failure) when a non-GET
// request is sent through a Relay.
var ErrRelayMethod = errors.New("fetch: relay only forwards GET requests")

// Error is the single error type returned by every Doer in this package.
type Error struct {
	Reason     Reason
	StatusCode int // set for ReasonHTTPStatus
	URL        string
	Err        error
}

// Kind renders the reason the way logs and metrics label it, e.g.
// "http-status:503".
func (e *Error) Kind() string {
	if e.Reason == ReasonHTTPStatus {
		return fmt.Sprintf("%s:%d", e.Reason, e.StatusCode)
	}
	return string(e.Reason)
}

func (e *Error) Error() string {
	msg := "fetch " + e.URL + ": " + e.Kind()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// ReasonOf returns the Reason carried by err, or "" when err is nil or not a
// fetch error.
func ReasonOf(err error) Reason {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ""
}

// KindOf is like ReasonOf but includes the status code for HTTP failures.
// Errors that are not fetch errors report "unknown".
func KindOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind()
	}
	if err == nil {
		return ""
	}
	return "unknown"
}
