package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// stubDoer returns a canned body and records the last request.
type stubDoer struct {
	body json.RawMessage
	err  error
	last Request
}

func (s *stubDoer) Do(_ context.Context, req Request) (json.RawMessage, error) {
	s.last = req
	return s.body, s.err
}

func TestRelay_Unwraps(t *testing.T) {
	stub := &stubDoer{body: json.RawMessage(`{"contents":"{\"totalResults\":7}","status":{"http_code":200}}`)}
	r := NewRelay(stub, "https://relay.test/get?url=")

	raw, err := r.Do(t.Context(), Request{URL: "https://services.nvd.nist.gov/rest/json/cves/2.0?a=b"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if string(raw) != `{"totalResults":7}` {
		t.Fatalf("got %s", raw)
	}
	want := "https://relay.test/get?url=https%3A%2F%2Fservices.nvd.nist.gov%2Frest%2Fjson%2Fcves%2F2.0%3Fa%3Db"
	if stub.last.URL != want {
		t.Fatalf("relay URL = %q, want %q", stub.last.URL, want)
	}
	if stub.last.Timeout != DefaultRelayTimeout {
		t.Fatalf("relay timeout = %s, want %s", stub.last.Timeout, DefaultRelayTimeout)
	}
}

func TestRelay_Classification(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Reason
	}{
		{"not an object", `["x"]`, ReasonEnvelopeMalformed},
		{"missing contents", `{"status":200}`, ReasonEnvelopeMalformed},
		{"null contents", `{"contents":null}`, ReasonEnvelopeMalformed},
		{"contents not a string", `{"contents":{"a":1}}`, ReasonEnvelopeMalformed},
		{"inner not json", `{"contents":"<html>"}`, ReasonDecode},
		{"numeric upstream error", `{"contents":"{}","status":502}`, ReasonHTTPStatus},
		{"object upstream error", `{"contents":"{}","status":{"http_code":404}}`, ReasonHTTPStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRelay(&stubDoer{body: json.RawMessage(tt.body)}, "")
			_, err := r.Do(t.Context(), Request{URL: "https://example.test"})
			if got := ReasonOf(err); got != tt.want {
				t.Fatalf("got %q (%v), want %q", got, err, tt.want)
			}
		})
	}
}

func TestRelay_PropagatesOuterFailure(t *testing.T) {
	outer := &Error{Reason: ReasonTimeout, URL: "relay"}
	r := NewRelay(&stubDoer{err: outer}, "")
	_, err := r.Do(t.Context(), Request{URL: "https://example.test"})
	if !errors.Is(err, outer) {
		t.Fatalf("got %v, want %v", err, outer)
	}
}

func TestRelay_OuterDecodeFailureIsEnvelopeMalformed(t *testing.T) {
	outer := &Error{Reason: ReasonDecode, URL: "relay", Err: errors.New("invalid character '<'")}
	r := NewRelay(&stubDoer{err: outer}, "")
	_, err := r.Do(t.Context(), Request{URL: "https://example.test"})
	if got := ReasonOf(err); got != ReasonEnvelopeMalformed {
		t.Fatalf("reason = %q (%v), want %q", got, err, ReasonEnvelopeMalformed)
	}
	if !errors.Is(err, outer) {
		t.Fatalf("outer error not wrapped: %v", err)
	}
}

func TestRelay_RejectsPost(t *testing.T) {
	stub := &stubDoer{}
	r := NewRelay(stub, "")
	_, err := r.Do(t.Context(), Request{Method: http.MethodPost, URL: "https://example.test"})
	if !errors.Is(err, ErrRelayMethod) {
		t.Fatalf("got %v, want ErrRelayMethod", err)
	}
	if ReasonOf(err) != ReasonNetwork {
		t.Fatalf("reason = %q, want %q", ReasonOf(err), ReasonNetwork)
	}
}

func TestRelay_OverHTTP_HTMLRelayPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html>relay rate limited</html>`))
	}))
	t.Cleanup(srv.Close)

	r := NewRelay(New(), srv.URL+"/get?url=")
	_, err := r.Do(t.Context(), Request{URL: "https://cisa.test/kev.json"})
	if got := ReasonOf(err); got != ReasonEnvelopeMalformed {
		t.Fatalf("reason = %q (%v), want %q", got, err, ReasonEnvelopeMalformed)
	}
}

func TestRelay_OverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("url") != "https://cisa.test/kev.json" {
			http.Error(w, "bad target", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"contents":"{\"vulnerabilities\":[]}","status":{"http_code":200}}`))
	}))
	t.Cleanup(srv.Close)

	r := NewRelay(New(), srv.URL+"/get?url=")
	raw, err := r.Do(t.Context(), Request{URL: "https://cisa.test/kev.json"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if string(raw) != `{"vulnerabilities":[]}` {
		t.Fatalf("got %s", raw)
	}
}
