package feeds

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Keksclan/minutodash/feed"
	"github.com/Keksclan/minutodash/fetch"
)

func TestMapIndicator(t *testing.T) {
	cases := []struct {
		indicator string
		health    Health
		severity  Severity
	}{
		{"none", HealthOnline, SeverityLow},
		{"minor", HealthDegraded, SeverityMedium},
		{"major", HealthCritical, SeverityHigh},
		{"critical", HealthCritical, SeverityHigh},
		{"maintenance", HealthOnline, SeverityLow},
	}
	for _, tc := range cases {
		h, s := MapIndicator(tc.indicator)
		if h != tc.health || s != tc.severity {
			t.Errorf("MapIndicator(%q) = %s/%s, want %s/%s", tc.indicator, h, s, tc.health, tc.severity)
		}
	}
}

func TestDecodeStatus(t *testing.T) {
	svc := Service{Name: "GitHub", PageURL: "https://www.githubstatus.com"}
	dec := decodeStatus(svc)

	batch, err := dec(json.RawMessage(`{"page":{"updated_at":"2025-01-01T00:00:00Z"},"status":{"indicator":"minor","description":"Partial outage"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := batch.Records[0]
	if got.Health != HealthDegraded || got.Description != "Partial outage" || got.Service != "GitHub" {
		t.Fatalf("unexpected status %+v", got)
	}

	batch, err = dec(json.RawMessage(`{"status":{}}`))
	if err != nil {
		t.Fatalf("decode empty indicator: %v", err)
	}
	if got := batch.Records[0].Indicator; got != "none" {
		t.Fatalf("indicator = %q, want %q", got, "none")
	}

	_, err = dec(json.RawMessage(`{"page":{}}`))
	if got := fetch.ReasonOf(err); got != fetch.ReasonDecode {
		t.Fatalf("missing status: reason %q, want %q", got, fetch.ReasonDecode)
	}
}

func TestServiceStatusURL(t *testing.T) {
	svc := Service{PageURL: "https://status.docker.com/"}
	if got, want := svc.StatusURL(), "https://status.docker.com/api/v2/status.json"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func statusServer(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestStatusBoard_Check(t *testing.T) {
	fast := statusServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":{"indicator":"none","description":"All Systems Operational"}}`))
	})
	slow := statusServer(t, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte(`{"status":{"indicator":"major","description":"Major outage"}}`))
	})
	failing := statusServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	services := []Service{
		{Name: "Slow", PageURL: slow},
		{Name: "Failing", PageURL: failing},
		{Name: "Fast", PageURL: fast},
	}
	board := NewStatusBoard(services, fetch.New(fetch.WithTimeout(2*time.Second)))

	got := board.Check(t.Context())
	if len(got.Services) != 3 {
		t.Fatalf("got %d services, want 3", len(got.Services))
	}
	for i, svc := range services {
		if got.Services[i].Status.Service != svc.Name {
			t.Fatalf("entry %d = %q, want %q", i, got.Services[i].Status.Service, svc.Name)
		}
	}
	if got.Services[0].Status.Health != HealthCritical {
		t.Fatalf("slow service health = %s, want %s", got.Services[0].Status.Health, HealthCritical)
	}
	failed := got.Services[1]
	if failed.Source != feed.SourceFallback || failed.Status.Health != HealthUnknown {
		t.Fatalf("failing service = %+v, want UNKNOWN fallback", failed)
	}
	if failed.Error != "http-status:502" {
		t.Fatalf("error = %q, want %q", failed.Error, "http-status:502")
	}

	want := BoardSummary{Online: 1, Critical: 1, Unknown: 1, Live: 2, Fallback: 1}
	if got.Summary != want {
		t.Fatalf("summary = %+v, want %+v", got.Summary, want)
	}
}

func TestStatusBoard_Cached(t *testing.T) {
	var calls atomic.Int32
	page := statusServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"status":{"indicator":"none"}}`))
	})
	board := NewStatusBoard([]Service{{Name: "One", PageURL: page}}, fetch.New())

	board.Check(t.Context())
	board.Check(t.Context())
	if n := calls.Load(); n != 1 {
		t.Fatalf("upstream calls = %d, want 1", n)
	}
	if n := len(board.Clients()); n != 1 {
		t.Fatalf("clients = %d, want 1", n)
	}
}
