// Package minutodash assembles the MinutoDash feed core: one cached,
// fallback-protected client per threat-intelligence feed, the status-page
// board, the synthetic outage source and the scheduler that keeps them warm.
//
// Nothing here is global. A Dashboard is built with functional options and
// owns everything it creates:
//
//	d := minutodash.New(minutodash.DefaultOptions()...)
//	d.Initialize(ctx)
//	d.Start(ctx)
//	defer d.Close()
package minutodash

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Keksclan/minutodash/cache"
	"github.com/Keksclan/minutodash/feed"
	"github.com/Keksclan/minutodash/feeds"
	"github.com/Keksclan/minutodash/fetch"
	"github.com/Keksclan/minutodash/logging"
	"github.com/Keksclan/minutodash/scheduler"
	"github.com/Keksclan/minutodash/tracing"
)

// TaskStatusBoard is the scheduler task that re-checks every status page.
const TaskStatusBoard = "status_board"

// BackendFeeds are the feeds read through the backend proxy.
type BackendFeeds struct {
	ThreatFox     *feed.Client[feeds.IOC]
	MalwareBazaar *feed.Client[feeds.Sample]
	URLhaus       *feed.Client[feeds.URLEntry]
	DockerStatus  *feed.Client[feeds.ServiceStatus]
}

// Dashboard owns every feed and the scheduler refreshing them.
type Dashboard struct {
	logger *zap.Logger
	now    func() time.Time

	ransomware *feed.Client[feeds.IOC]
	malware    *feed.Client[feeds.Sample]
	country    *feed.Client[feeds.URLEntry]
	cves       *feed.Client[feeds.CVE]
	kev        *feed.Client[feeds.KEVEntry]
	board      *feeds.StatusBoard
	outages    *feed.Synthetic[feeds.OutageReport]
	backend    *BackendFeeds

	sched *scheduler.Scheduler

	mu       sync.Mutex
	statuses map[string]feed.Status
}

// New builds a Dashboard. Without WithDoer, requests go through a fetch.Client
// (traced when WithTracing is set).
func New(opts ...Option) *Dashboard {
	cfg := config{now: time.Now}
	for _, o := range opts {
		o(&cfg)
	}
	logger := logging.OrNop(cfg.logger)

	direct := cfg.doer
	if direct == nil {
		direct = newFetcher(cfg)
	}
	nvdDoer := direct
	if cfg.nvdViaRelay {
		nvdDoer = fetch.NewRelay(direct, cfg.relayURL, fetch.WithRelayTimeout(cfg.relayTimeout))
	}

	settings := cfg.settings
	if settings.Now == nil {
		settings.Now = cfg.now
	}
	services := cfg.services
	if services == nil {
		services = feeds.DefaultServices()
	}

	feedOpts := []feed.Option{
		feed.WithLogger(logger.Named("feed")),
		feed.WithMetrics(cfg.metrics),
		feed.WithClock(cfg.now),
	}
	if cfg.maxEntries > 0 {
		feedOpts = append(feedOpts, feed.WithMaxEntries(cfg.maxEntries))
	}

	d := &Dashboard{
		logger:     logger,
		now:        cfg.now,
		ransomware: feed.NewClient(feeds.ThreatFoxRansomware(settings), direct, feedOpts...),
		malware:    feed.NewClient(feeds.MalwareBazaarHighRisk(settings), direct, feedOpts...),
		country:    feed.NewClient(feeds.URLhausCountry(settings), direct, feedOpts...),
		cves:       feed.NewClient(feeds.NVDCritical(settings), nvdDoer, feedOpts...),
		kev:        feed.NewClient(feeds.CISAKEV(settings), direct, feedOpts...),
		board:      feeds.NewStatusBoard(services, direct, feedOpts...),
		outages:    feeds.DownDetector(feeds.NewOutageGenerator(cfg.outageSrc), feedOpts...),
		statuses:   make(map[string]feed.Status),
	}
	if cfg.backendURL != "" {
		d.backend = &BackendFeeds{
			ThreatFox:     feed.NewClient(feeds.BackendThreatFox(cfg.backendURL), direct, feedOpts...),
			MalwareBazaar: feed.NewClient(feeds.BackendMalwareBazaar(cfg.backendURL), direct, feedOpts...),
			URLhaus:       feed.NewClient(feeds.BackendURLhaus(cfg.backendURL, settings.CountrySuffixes), direct, feedOpts...),
			DockerStatus:  feed.NewClient(feeds.BackendDockerStatus(cfg.backendURL), direct, feedOpts...),
		}
	}

	d.sched = scheduler.New(scheduler.WithLogger(logger), scheduler.WithMetrics(cfg.metrics))
	d.registerTasks()
	return d
}

func newFetcher(cfg config) *fetch.Client {
	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{}
	}
	if cfg.tracing != nil {
		traced := *hc
		traced.Transport = tracing.Transport(cfg.tracing, hc.Transport)
		hc = &traced
	}
	opts := []fetch.Option{fetch.WithHTTPClient(hc), fetch.WithTimeout(cfg.fetchTimeout)}
	if cfg.userAgent != "" {
		opts = append(opts, fetch.WithUserAgent(cfg.userAgent))
	}
	return fetch.New(opts...)
}

func (d *Dashboard) registerTasks() {
	register := func(r feed.Refresher, period time.Duration) {
		// Names are unique by construction.
		_ = d.sched.Register(r.Name(), period, func(ctx context.Context) {
			d.record(r.Refresh(ctx))
		})
	}
	register(d.ransomware, feeds.ThreatIntelPeriod)
	register(d.malware, feeds.ThreatIntelPeriod)
	register(d.country, feeds.ThreatIntelPeriod)
	register(d.cves, feeds.VulnPeriod)
	register(d.kev, feeds.VulnPeriod)
	register(d.outages, feeds.OutagePeriod)
	if d.backend != nil {
		register(d.backend.ThreatFox, feeds.ThreatIntelPeriod)
		register(d.backend.MalwareBazaar, feeds.ThreatIntelPeriod)
		register(d.backend.URLhaus, feeds.ThreatIntelPeriod)
		register(d.backend.DockerStatus, feeds.ThreatIntelPeriod)
	}
	_ = d.sched.Register(TaskStatusBoard, feeds.StatusPeriod, func(ctx context.Context) {
		d.Infra(ctx)
	})
}

// Refreshers lists every source in display order, status pages included.
func (d *Dashboard) Refreshers() []feed.Refresher {
	rs := []feed.Refresher{d.cves, d.ransomware, d.malware, d.country, d.kev}
	for _, c := range d.board.Clients() {
		rs = append(rs, c)
	}
	rs = append(rs, d.outages)
	if d.backend != nil {
		rs = append(rs, d.backend.ThreatFox, d.backend.MalwareBazaar, d.backend.URLhaus, d.backend.DockerStatus)
	}
	return rs
}

// Inspectors lists the cached sources.
func (d *Dashboard) Inspectors() []feed.Inspector {
	is := []feed.Inspector{d.cves, d.ransomware, d.malware, d.country, d.kev}
	for _, c := range d.board.Clients() {
		is = append(is, c)
	}
	if d.backend != nil {
		is = append(is, d.backend.ThreatFox, d.backend.MalwareBazaar, d.backend.URLhaus, d.backend.DockerStatus)
	}
	return is
}

// Initialize refreshes every source at once and returns when the slowest has
// answered or timed out. Statuses keep Refreshers order. A failing source
// never holds back the others; it reports a fallback status.
func (d *Dashboard) Initialize(ctx context.Context) []feed.Status {
	rs := d.Refreshers()
	out := make([]feed.Status, len(rs))

	start := d.now()
	var g errgroup.Group
	for i, r := range rs {
		g.Go(func() error {
			out[i] = r.Refresh(ctx)
			return nil
		})
	}
	_ = g.Wait()

	live := 0
	for _, st := range out {
		d.record(st)
		if st.Source == feed.SourceLive {
			live++
		}
	}
	d.logger.Info("dashboard initialized",
		zap.Int("sources", len(out)),
		zap.Int("live", live),
		zap.Duration("latency", d.now().Sub(start)),
	)
	return out
}

// Start begins the periodic refreshes.
func (d *Dashboard) Start(ctx context.Context) error {
	return d.sched.Start(ctx)
}

// Close stops the scheduler and waits for running refreshes.
func (d *Dashboard) Close() {
	d.sched.Stop()
}

// SchedulerStats reports runs and skipped ticks of a scheduler task.
func (d *Dashboard) SchedulerStats(task string) (runs, skipped uint64, ok bool) {
	return d.sched.Stats(task)
}

// Ransomware returns ransomware IOCs from ThreatFox.
func (d *Dashboard) Ransomware(ctx context.Context) feed.Result[feeds.IOC] {
	return fetchAndRecord(ctx, d, d.ransomware)
}

// HighRiskMalware returns high-risk MalwareBazaar samples.
func (d *Dashboard) HighRiskMalware(ctx context.Context) feed.Result[feeds.Sample] {
	return fetchAndRecord(ctx, d, d.malware)
}

// CountryDomains returns URLhaus entries hosted under the country suffixes.
func (d *Dashboard) CountryDomains(ctx context.Context) feed.Result[feeds.URLEntry] {
	return fetchAndRecord(ctx, d, d.country)
}

// CriticalCVEs returns NVD critical CVEs.
func (d *Dashboard) CriticalCVEs(ctx context.Context) feed.Result[feeds.CVE] {
	return fetchAndRecord(ctx, d, d.cves)
}

// KEV returns the newest CISA KEV entries.
func (d *Dashboard) KEV(ctx context.Context) feed.Result[feeds.KEVEntry] {
	return fetchAndRecord(ctx, d, d.kev)
}

// Outages returns synthetic outage reports.
func (d *Dashboard) Outages(ctx context.Context) feed.Result[feeds.OutageReport] {
	res := d.outages.Fetch(ctx, nil)
	d.record(res.Status())
	return res
}

// Infra checks every status page.
func (d *Dashboard) Infra(ctx context.Context) feeds.Board {
	board := d.board.Check(ctx)
	for _, st := range board.Statuses {
		d.record(st)
	}
	return board
}

// Backend returns the backend proxy feeds, or nil when no backend URL was
// configured.
func (d *Dashboard) Backend() *BackendFeeds {
	return d.backend
}

// CacheSize is the number of entries across every feed cache.
func (d *Dashboard) CacheSize() int {
	n := 0
	for _, in := range d.Inspectors() {
		n += len(in.CacheSnapshot())
	}
	return n
}

// CacheSnapshot lists each feed's cache entries by feed name.
func (d *Dashboard) CacheSnapshot() map[string][]cache.EntryInfo {
	out := make(map[string][]cache.EntryInfo)
	for _, in := range d.Inspectors() {
		if snap := in.CacheSnapshot(); len(snap) > 0 {
			out[in.Name()] = snap
		}
	}
	return out
}

// Statuses returns the latest status of every source, sorted by feed name.
func (d *Dashboard) Statuses() []feed.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]feed.Status, 0, len(d.statuses))
	for _, st := range d.statuses {
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b feed.Status) int {
		return strings.Compare(a.Feed, b.Feed)
	})
	return out
}

func (d *Dashboard) record(st feed.Status) {
	if st.Feed == "" {
		return
	}
	d.mu.Lock()
	d.statuses[st.Feed] = st
	d.mu.Unlock()
}

func fetchAndRecord[T any](ctx context.Context, d *Dashboard, c *feed.Client[T]) feed.Result[T] {
	res := c.Fetch(ctx, nil)
	d.record(res.Status())
	return res
}
