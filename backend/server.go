// Package backend is the HTTP proxy that sits between the dashboard and the
// abuse.ch and Docker Hub APIs. It serves simulated or upstream records,
// memoises whole response bodies for a few minutes and exposes /health,
// /cache and /metrics for operators.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Keksclan/minutodash/cache"
	"github.com/Keksclan/minutodash/feed"
	"github.com/Keksclan/minutodash/feeds"
	"github.com/Keksclan/minutodash/fetch"
	"github.com/Keksclan/minutodash/logging"
)

// Mode selects where the proxy takes its records from.
type Mode string

const (
	// ModeSimulate serves generated records; Docker status is still fetched
	// for real and simulated only when that fails.
	ModeSimulate Mode = "simulate"
	// ModeUpstream serves the dashboard feeds, fallbacks included.
	ModeUpstream Mode = "upstream"
)

const (
	// HeaderDataSource carries the provenance of a response body.
	HeaderDataSource = "X-Data-Source"

	DefaultResponseTTL = 5 * time.Minute
	DefaultMaxEntries  = 1 << 10

	DockerStatusURL = "https://status.docker.com/api/v2/status.json"
	DockerTimeout   = 5 * time.Second
	DockerUserAgent = "MinutoDash-Backend/1.0"

	threatFoxLimit     = 8
	malwareBazaarLimit = 10
)

// Response cache keys, as listed by /cache.
const (
	KeyThreatFox     = "threatfox_ransomware"
	KeyMalwareBazaar = "malwarebazaar_highrisk"
	KeyURLhaus       = "urlhaus_br_domains"
	KeyDockerStatus  = "docker_status"
)

// ErrNoFeeds is returned by New in ModeUpstream without WithFeeds.
var ErrNoFeeds = errors.New("backend: upstream mode needs feeds")

// Feeds is what the proxy reads in ModeUpstream. *minutodash.Dashboard
// satisfies it.
type Feeds interface {
	Ransomware(ctx context.Context) feed.Result[feeds.IOC]
	HighRiskMalware(ctx context.Context) feed.Result[feeds.Sample]
	CountryDomains(ctx context.Context) feed.Result[feeds.URLEntry]
	Statuses() []feed.Status
}

// rendered is what the response cache stores.
type rendered struct {
	Source feed.Source     `json:"source"`
	Body   json.RawMessage `json:"body"`
}

type responseMeta struct {
	DataSize int
	Entries  int
}

// unstored carries a body that must be served but not cached.
type unstored struct{ r rendered }

func (u *unstored) Error() string { return "backend: fallback response is not cached" }

type response struct {
	payload any
	entries int
	source  feed.Source
}

// Server is the backend HTTP proxy.
type Server struct {
	cfg       config
	logger    *zap.Logger
	sim       *Simulator
	responses cache.Cache
	meta      *cache.Store[responseMeta]
	router    *mux.Router
	handler   http.Handler
}

// New builds a Server. Without WithResponseCache it keeps responses in a
// private ristretto cache that Close releases.
func New(opts ...Option) (*Server, error) {
	cfg := config{
		now:        time.Now,
		mode:       ModeSimulate,
		ttl:        DefaultResponseTTL,
		maxEntries: DefaultMaxEntries,
		dockerURL:  DockerStatusURL,
	}
	for _, o := range opts {
		o(&cfg)
	}
	switch cfg.mode {
	case ModeSimulate:
	case ModeUpstream:
		if cfg.feeds == nil {
			return nil, ErrNoFeeds
		}
	default:
		return nil, fmt.Errorf("backend: unknown mode %q", cfg.mode)
	}
	if cfg.docker == nil {
		cfg.docker = fetch.New(fetch.WithTimeout(DockerTimeout), fetch.WithUserAgent(DockerUserAgent))
	}

	s := &Server{
		cfg:       cfg,
		logger:    logging.OrNop(cfg.logger),
		sim:       cfg.sim,
		responses: cfg.responses,
		meta:      cache.NewStore[responseMeta](cache.WithClock(cfg.now)),
		router:    mux.NewRouter(),
	}
	if s.sim == nil {
		s.sim = NewSimulator(nil, cfg.now)
	}
	if s.responses == nil {
		l1, err := cache.NewL1(cfg.maxEntries)
		if err != nil {
			return nil, err
		}
		s.responses = l1
	}

	s.routes()
	s.router.Use(s.middlewares()...)
	s.handler = s.router
	return s, nil
}

func (s *Server) routes() {
	r := s.router
	r.HandleFunc(feeds.RouteThreatFox, s.handleThreatFox).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc(feeds.RouteMalwareBazaar, s.handleMalwareBazaar).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc(feeds.RouteURLhaus, s.handleURLhaus).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc(feeds.RouteDockerStatus, s.handleDockerStatus).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/cache", s.handleCache).Methods(http.MethodGet)

	metricsHandler := promhttp.Handler()
	if s.cfg.gatherer != nil {
		metricsHandler = promhttp.HandlerFor(s.cfg.gatherer, promhttp.HandlerOpts{})
	}
	r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Close releases the response cache.
func (s *Server) Close() error { return s.responses.Close() }

func (s *Server) handleThreatFox(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, KeyThreatFox, func(ctx context.Context) response {
		if s.cfg.mode == ModeUpstream {
			res := s.cfg.feeds.Ransomware(ctx)
			recs := feed.Project(res.Records, nil, nil, threatFoxLimit)
			return response{payload: list(recs), entries: len(recs), source: res.Source}
		}
		recs := feed.Project(s.sim.ThreatFox(), feeds.IsRansomware, nil, threatFoxLimit)
		return response{payload: list(recs), entries: len(recs), source: feed.SourceSynthetic}
	})
}

func (s *Server) handleMalwareBazaar(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, KeyMalwareBazaar, func(ctx context.Context) response {
		if s.cfg.mode == ModeUpstream {
			res := s.cfg.feeds.HighRiskMalware(ctx)
			recs := feed.Project(res.Records, nil, nil, malwareBazaarLimit)
			return response{payload: list(recs), entries: len(recs), source: res.Source}
		}
		recs := feed.Project(s.sim.MalwareBazaar(), feeds.IsHighRisk, nil, malwareBazaarLimit)
		return response{payload: list(recs), entries: len(recs), source: feed.SourceSynthetic}
	})
}

func (s *Server) handleURLhaus(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, KeyURLhaus, func(ctx context.Context) response {
		if s.cfg.mode == ModeUpstream {
			res := s.cfg.feeds.CountryDomains(ctx)
			return response{payload: list(res.Records), entries: len(res.Records), source: res.Source}
		}
		// Unfiltered; the dashboard client applies the country filter.
		recs := s.sim.URLhaus()
		return response{payload: list(recs), entries: len(recs), source: feed.SourceSynthetic}
	})
}

func (s *Server) handleDockerStatus(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, KeyDockerStatus, func(ctx context.Context) response {
		raw, err := s.cfg.docker.Do(ctx, fetch.Request{
			URL:     s.cfg.dockerURL,
			Timeout: DockerTimeout,
			Header:  http.Header{"User-Agent": []string{DockerUserAgent}},
		})
		if err == nil {
			return response{payload: raw, entries: 1, source: feed.SourceLive}
		}
		logging.FromContext(ctx, s.logger).Warn("docker status unavailable, simulating",
			zap.String("reason", fetch.KindOf(err)),
			zap.Error(err),
		)
		return response{payload: s.sim.DockerStatus(), entries: 1, source: feed.SourceSynthetic}
	})
}

type healthReport struct {
	Status    string        `json:"status"`
	Timestamp string        `json:"timestamp"`
	CacheSize int           `json:"cache_size"`
	Mode      string        `json:"mode"`
	Note      string        `json:"note"`
	Feeds     []feed.Status `json:"feeds,omitempty"`
}

// ModeLabel is how /health names a mode.
func ModeLabel(m Mode) (label, note string) {
	if m == ModeUpstream {
		return "upstream_with_fallback", "Records come from the live feeds; curated fallbacks are served when an upstream fails"
	}
	return "simulation_with_real_fallback", "Threat intelligence is simulated; Docker Hub status is fetched live and simulated only on failure"
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	label, note := ModeLabel(s.cfg.mode)
	rep := healthReport{
		Status:    "ok",
		Timestamp: s.cfg.now().UTC().Format(time.RFC3339),
		CacheSize: s.cachedResponses(),
		Mode:      label,
		Note:      note,
	}
	if s.cfg.feeds != nil {
		rep.Feeds = s.cfg.feeds.Statuses()
	}
	writeJSON(w, http.StatusOK, rep)
}

// cachedResponses counts the unexpired entries that /cache lists.
func (s *Server) cachedResponses() int {
	n := 0
	for _, info := range s.meta.Snapshot() {
		if info.Valid {
			n++
		}
	}
	return n
}

type cacheEntry struct {
	Timestamp    string `json:"timestamp"`
	AgeMinutes   int    `json:"age_minutes"`
	DataSize     int    `json:"data_size"`
	EntriesCount int    `json:"entries_count"`
}

func (s *Server) handleCache(w http.ResponseWriter, _ *http.Request) {
	out := make(map[string]cacheEntry)
	for _, info := range s.meta.Snapshot() {
		if !info.Valid {
			continue
		}
		e, ok := s.meta.Lookup(info.Key)
		if !ok {
			continue
		}
		out[info.Key] = cacheEntry{
			Timestamp:    info.StoredAt.UTC().Format(time.RFC3339),
			AgeMinutes:   int(math.Round(info.Age.Minutes())),
			DataSize:     e.Value.DataSize,
			EntriesCount: e.Value.Entries,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// respond serves key from the response cache, rendering it with produce on a
// miss. Fallback bodies are served but never stored.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, key string, produce func(context.Context) response) {
	ctx := r.Context()
	raw, err := s.responses.GetOrSet(ctx, key, s.cfg.ttl, func(ctx context.Context) ([]byte, error) {
		resp := produce(ctx)
		body, err := json.Marshal(resp.payload)
		if err != nil {
			return nil, err
		}
		out := rendered{Source: resp.source, Body: body}
		if resp.source == feed.SourceFallback {
			return nil, &unstored{r: out}
		}
		s.meta.Set(key, responseMeta{DataSize: len(body), Entries: resp.entries}, s.cfg.ttl)
		return json.Marshal(out)
	})

	var out rendered
	var skip *unstored
	switch {
	case errors.As(err, &skip):
		out = skip.r
	case err != nil:
		s.fail(w, r, key, err)
		return
	default:
		if err := json.Unmarshal(raw, &out); err != nil {
			s.fail(w, r, key, err)
			return
		}
	}

	w.Header().Set(HeaderDataSource, string(out.Source))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Body)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, key string, err error) {
	logging.FromContext(r.Context(), s.logger).Error("render response", zap.String("key", key), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   "failed to render " + key,
		"details": err.Error(),
	})
}

// list renders records as a bare JSON array, never null.
func list[T any](records []T) []T {
	if records == nil {
		return []T{}
	}
	return records
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
