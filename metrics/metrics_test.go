package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CacheHit("threatfox_ransomware")
	m.CacheHit("threatfox_ransomware")
	m.CacheMiss("threatfox_ransomware")
	m.FetchError("threatfox_ransomware", "http-status:500")
	m.FetchResult("threatfox_ransomware", "fallback")
	m.SchedulerSkip("threatfox_ransomware")
	m.HTTPRequest("/health", 200)
	m.ObserveFetch("threatfox_ransomware", 120*time.Millisecond)

	if got := testutil.ToFloat64(m.CacheHits.WithLabelValues("threatfox_ransomware")); got != 2 {
		t.Fatalf("cache hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.FeedErrors.WithLabelValues("threatfox_ransomware", "http-status:500")); got != 1 {
		t.Fatalf("errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.FeedFetches.WithLabelValues("threatfox_ransomware", "fallback")); got != 1 {
		t.Fatalf("fallback results = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/health", "200")); got != 1 {
		t.Fatalf("http requests = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.FetchDuration); n != 1 {
		t.Fatalf("histogram series = %d, want 1", n)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.CacheHit("x")
	m.CacheMiss("x")
	m.CacheEviction("x")
	m.FetchResult("x", "live")
	m.FetchError("x", "timeout")
	m.ObserveFetch("x", time.Second)
	m.SchedulerRun("x")
	m.SchedulerSkip("x")
	m.HTTPRequest("/", 200)
	m.RateLimited()
}

func TestStatusLabel(t *testing.T) {
	for code, want := range map[int]string{200: "200", 404: "404", 503: "503", 0: "unknown"} {
		if got := statusLabel(code); got != want {
			t.Fatalf("statusLabel(%d) = %q, want %q", code, got, want)
		}
	}
}
