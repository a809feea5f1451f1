package minutodash

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Keksclan/minutodash/feed"
	"github.com/Keksclan/minutodash/feeds"
	"github.com/Keksclan/minutodash/fetch"
	"github.com/Keksclan/minutodash/health"
	"github.com/Keksclan/minutodash/metrics"
)

var _ health.Source = (*Dashboard)(nil)

type route struct {
	body  string
	delay time.Duration
}

// routeDoer answers by URL prefix; unknown URLs fail with network-failure.
type routeDoer struct {
	mu     sync.Mutex
	routes map[string]route
	calls  map[string]int
}

func newRouteDoer(routes map[string]route) *routeDoer {
	return &routeDoer{routes: routes, calls: make(map[string]int)}
}

func (d *routeDoer) Do(ctx context.Context, req fetch.Request) (json.RawMessage, error) {
	d.mu.Lock()
	var match string
	for prefix := range d.routes {
		if strings.HasPrefix(req.URL, prefix) && len(prefix) > len(match) {
			match = prefix
		}
	}
	d.calls[match]++
	r, ok := d.routes[match]
	d.mu.Unlock()

	if !ok {
		return nil, &fetch.Error{Reason: fetch.ReasonNetwork, URL: req.URL, Err: errors.New("no route")}
	}
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, &fetch.Error{Reason: fetch.ReasonTimeout, URL: req.URL, Err: ctx.Err()}
		}
	}
	return json.RawMessage(r.body), nil
}

func (d *routeDoer) count(prefix string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[prefix]
}

const threatFoxBody = `{"query_status":"ok","data":[
	{"ioc":"1.2.3.4:443","malware_printable":"LockBit","tags":["ransomware"]},
	{"ioc":"evil.example","malware_printable":"AgentTesla","tags":["stealer"]}
]}`

func newTestDashboard(doer fetch.Doer, opts ...Option) *Dashboard {
	base := []Option{
		WithDoer(doer),
		WithServices([]feeds.Service{{Name: "GitHub", PageURL: "https://www.githubstatus.com"}}),
		WithOutageSource(rand.NewPCG(1, 1)),
	}
	return New(append(base, opts...)...)
}

func statusByFeed(statuses []feed.Status) map[string]feed.Status {
	m := make(map[string]feed.Status, len(statuses))
	for _, s := range statuses {
		m[s.Feed] = s
	}
	return m
}

func TestInitialize_AllUpstreamsDown(t *testing.T) {
	d := newTestDashboard(newRouteDoer(nil))
	defer d.Close()

	got := statusByFeed(d.Initialize(t.Context()))
	for _, name := range []string{feeds.NameThreatFox, feeds.NameMalwareBazaar, feeds.NameURLhaus, feeds.NameNVD, feeds.NameKEV, "status:GitHub"} {
		st, ok := got[name]
		if !ok {
			t.Fatalf("missing status for %s", name)
		}
		if st.Source != feed.SourceFallback {
			t.Fatalf("%s source = %s, want fallback", name, st.Source)
		}
		if st.Records == 0 {
			t.Fatalf("%s fallback has no records", name)
		}
		if st.Error != string(fetch.ReasonNetwork) {
			t.Fatalf("%s error = %q, want %q", name, st.Error, fetch.ReasonNetwork)
		}
	}
	if got[feeds.NameDownDetector].Source != feed.SourceSynthetic {
		t.Fatalf("downdetector source = %s, want synthetic", got[feeds.NameDownDetector].Source)
	}
	if d.CacheSize() != 0 {
		t.Fatalf("CacheSize() = %d after failures, want 0", d.CacheSize())
	}
}

func TestInitialize_LiveFeedIsCached(t *testing.T) {
	doer := newRouteDoer(map[string]route{feeds.ThreatFoxURL: {body: threatFoxBody}})
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	d := newTestDashboard(doer, WithMetrics(m))
	defer d.Close()

	got := statusByFeed(d.Initialize(t.Context()))
	if st := got[feeds.NameThreatFox]; st.Source != feed.SourceLive || st.Records != 1 {
		t.Fatalf("threatfox status = %+v, want 1 live record", st)
	}

	res := d.Ransomware(t.Context())
	if !res.Cached || res.Source != feed.SourceLive {
		t.Fatalf("second read = %+v, want cached live", res.Status())
	}
	if n := doer.count(feeds.ThreatFoxURL); n != 1 {
		t.Fatalf("upstream calls = %d, want 1", n)
	}
	if got := testutil.ToFloat64(m.CacheHits.WithLabelValues(feeds.NameThreatFox)); got != 1 {
		t.Fatalf("cache hits = %v, want 1", got)
	}
	if d.CacheSize() != 1 {
		t.Fatalf("CacheSize() = %d, want 1", d.CacheSize())
	}
	if _, ok := d.CacheSnapshot()[feeds.NameThreatFox]; !ok {
		t.Fatal("cache snapshot missing threatfox entry")
	}
}

func TestInitialize_WaitsForSlowest(t *testing.T) {
	doer := newRouteDoer(map[string]route{
		feeds.ThreatFoxURL: {body: threatFoxBody, delay: 150 * time.Millisecond},
		feeds.CISAKEVURL:   {body: `{"vulnerabilities":[{"cveID":"CVE-1","dateAdded":"2025-01-01"}]}`},
	})
	d := newTestDashboard(doer)
	defer d.Close()

	start := time.Now()
	got := statusByFeed(d.Initialize(t.Context()))
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Fatalf("Initialize returned after %v, before the slowest feed", elapsed)
	}
	if got[feeds.NameThreatFox].Source != feed.SourceLive || got[feeds.NameKEV].Source != feed.SourceLive {
		t.Fatalf("expected both slow and fast feeds live, got %+v / %+v", got[feeds.NameThreatFox], got[feeds.NameKEV])
	}
}

func TestNVDThroughRelay(t *testing.T) {
	const relay = "https://relay.test/get?url="
	inner := `{"totalResults":7,"vulnerabilities":[{"cve":{"id":"CVE-2025-9","metrics":{"cvssMetricV31":[{"cvssData":{"baseScore":9.9,"baseSeverity":"CRITICAL"}}]}}}]}`
	envelope, _ := json.Marshal(map[string]any{"contents": inner, "status": map[string]int{"http_code": 200}})

	doer := newRouteDoer(map[string]route{relay + url.QueryEscape(feeds.NVDCVEURL): {body: string(envelope)}})
	d := newTestDashboard(doer, WithRelayURL(relay), WithNVDViaRelay(true))
	defer d.Close()

	res := d.CriticalCVEs(t.Context())
	if res.Source != feed.SourceLive {
		t.Fatalf("source = %s (err %v), want live", res.Source, res.Err)
	}
	if res.Total != 7 || len(res.Records) != 1 {
		t.Fatalf("total %d records %d, want 7 and 1", res.Total, len(res.Records))
	}
}

func TestBackendFeedsOptional(t *testing.T) {
	d := newTestDashboard(newRouteDoer(nil))
	if d.Backend() != nil {
		t.Fatal("backend feeds built without a backend URL")
	}
	d.Close()

	d = newTestDashboard(newRouteDoer(nil), WithBackendURL("http://backend.test"))
	defer d.Close()
	if d.Backend() == nil {
		t.Fatal("backend feeds missing")
	}
	if _, _, ok := d.SchedulerStats("backend_threatfox"); !ok {
		t.Fatal("backend_threatfox is not scheduled")
	}
}

func TestStatusesSortedAndHealthReport(t *testing.T) {
	d := newTestDashboard(newRouteDoer(nil))
	defer d.Close()
	d.Initialize(t.Context())

	sts := d.Statuses()
	for i := 1; i < len(sts); i++ {
		if sts[i-1].Feed > sts[i].Feed {
			t.Fatalf("statuses not sorted: %q before %q", sts[i-1].Feed, sts[i].Feed)
		}
	}

	resp, err := health.NewHandler(d, "upstream", nil).Check(t.Context(), &health.CheckRequest{Feed: feeds.NameKEV})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Feeds) != 1 || resp.Feeds[0].Source != feed.SourceFallback {
		t.Fatalf("health feeds = %+v", resp.Feeds)
	}
}

func TestInfraBoardRecordsStatuses(t *testing.T) {
	doer := newRouteDoer(map[string]route{
		"https://www.githubstatus.com": {body: `{"status":{"indicator":"minor","description":"Degraded"}}`},
	})
	d := newTestDashboard(doer)
	defer d.Close()

	board := d.Infra(t.Context())
	if board.Summary.Degraded != 1 || board.Summary.Live != 1 {
		t.Fatalf("summary = %+v", board.Summary)
	}
	got := statusByFeed(d.Statuses())
	if got["status:GitHub"].Source != feed.SourceLive {
		t.Fatalf("status:GitHub = %+v", got["status:GitHub"])
	}
}

func TestStartAndClose(t *testing.T) {
	d := newTestDashboard(newRouteDoer(nil))
	if err := d.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Start(t.Context()); err == nil {
		t.Fatal("second Start succeeded")
	}
	d.Close()
	d.Close()

	for _, task := range []string{feeds.NameThreatFox, feeds.NameNVD, feeds.NameDownDetector, TaskStatusBoard} {
		if _, _, ok := d.SchedulerStats(task); !ok {
			t.Fatalf("task %s not registered", task)
		}
	}
}

func TestDefaultOptions(t *testing.T) {
	var cfg config
	for _, o := range DefaultOptions() {
		o(&cfg)
	}
	if !cfg.nvdViaRelay || cfg.relayURL != fetch.DefaultRelayURL {
		t.Fatalf("relay defaults = %v %q", cfg.nvdViaRelay, cfg.relayURL)
	}
	if len(cfg.services) != len(feeds.DefaultServices()) {
		t.Fatalf("services = %d", len(cfg.services))
	}
}
