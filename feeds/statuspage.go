package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Keksclan/minutodash/feed"
	"github.com/Keksclan/minutodash/fetch"
)

// Service is a provider publishing an Atlassian Statuspage-compatible
// /api/v2/status.json document.
type Service struct {
	Name     string
	Category string
	PageURL  string
}

// StatusURL is the JSON endpoint of the service's status page.
func (s Service) StatusURL() string {
	return strings.TrimSuffix(s.PageURL, "/") + "/api/v2/status.json"
}

// DefaultServices are the infrastructure providers shown on the dashboard.
func DefaultServices() []Service {
	return []Service{
		{Name: "GitHub", Category: "Desenvolvimento", PageURL: "https://www.githubstatus.com"},
		{Name: "Cloudflare", Category: "CDN/Security", PageURL: "https://www.cloudflarestatus.com"},
		{Name: "Vercel", Category: "Hosting", PageURL: "https://www.vercel-status.com"},
		{Name: "NPM", Category: "Desenvolvimento", PageURL: "https://status.npmjs.org"},
		{Name: "Docker Hub", Category: "Containers", PageURL: "https://status.docker.com"},
		{Name: "Atlassian", Category: "Colaboração", PageURL: "https://status.atlassian.com"},
		{Name: "Discord", Category: "Comunicação", PageURL: "https://discordstatus.com"},
		{Name: "Twilio", Category: "Comunicação", PageURL: "https://status.twilio.com"},
	}
}

// MapIndicator converts a Statuspage indicator into dashboard health.
// Unrecognised indicators count as online.
func MapIndicator(indicator string) (Health, Severity) {
	switch indicator {
	case "minor":
		return HealthDegraded, SeverityMedium
	case "major", "critical":
		return HealthCritical, SeverityHigh
	default:
		return HealthOnline, SeverityLow
	}
}

type statusDocument struct {
	Page struct {
		UpdatedAt string `json:"updated_at"`
	} `json:"page"`
	Status *struct {
		Indicator   string `json:"indicator"`
		Description string `json:"description"`
	} `json:"status"`
}

func decodeStatus(svc Service) func(json.RawMessage) (feed.Batch[ServiceStatus], error) {
	return func(raw json.RawMessage) (feed.Batch[ServiceStatus], error) {
		doc, err := fetch.Decode[statusDocument](raw)
		if err != nil {
			return feed.Batch[ServiceStatus]{}, err
		}
		if doc.Status == nil {
			return feed.Batch[ServiceStatus]{}, &fetch.Error{Reason: fetch.ReasonDecode, Err: errors.New(`missing "status"`)}
		}
		indicator := doc.Status.Indicator
		if indicator == "" {
			indicator = "none"
		}
		health, sev := MapIndicator(indicator)
		return feed.Batch[ServiceStatus]{Records: []ServiceStatus{{
			Service:     svc.Name,
			URL:         svc.PageURL,
			Indicator:   indicator,
			Description: doc.Status.Description,
			Health:      health,
			Severity:    sev,
			UpdatedAt:   doc.Page.UpdatedAt,
		}}}, nil
	}
}

// StatusPage is the feed for one service's status page.
func StatusPage(svc Service) feed.Definition[ServiceStatus] {
	return feed.Definition[ServiceStatus]{
		Name: statusPagePrefix + svc.Name,
		TTL:  StatusTTL,
		Request: func(feed.Params) (fetch.Request, error) {
			return fetch.Request{URL: svc.StatusURL()}, nil
		},
		Decode: decodeStatus(svc),
		Fallback: func() []ServiceStatus {
			return []ServiceStatus{{
				Service:     svc.Name,
				URL:         svc.PageURL,
				Description: "Status page unavailable",
				Health:      HealthUnknown,
				Severity:    SeverityLow,
			}}
		},
	}
}

// BoardSummary aggregates a StatusBoard check.
type BoardSummary struct {
	Online   int `json:"online"`
	Degraded int `json:"degraded"`
	Critical int `json:"critical"`
	Unknown  int `json:"unknown"`
	Live     int `json:"live"`
	Fallback int `json:"fallback"`
}

// BoardEntry is one service's result within a board check.
type BoardEntry struct {
	Status ServiceStatus `json:"status"`
	Source feed.Source   `json:"source"`
	Error  string        `json:"error,omitempty"`
}

// Board is the outcome of checking every service.
type Board struct {
	Services []BoardEntry `json:"services"`
	Summary  BoardSummary `json:"summary"`

	// Statuses holds one feed status per service, in service order.
	Statuses []feed.Status `json:"-"`
}

// StatusBoard checks a set of status pages together.
type StatusBoard struct {
	clients []*feed.Client[ServiceStatus]
}

// NewStatusBoard builds one feed client per service, all fetching through
// doer.
func NewStatusBoard(services []Service, doer fetch.Doer, opts ...feed.Option) *StatusBoard {
	b := &StatusBoard{clients: make([]*feed.Client[ServiceStatus], 0, len(services))}
	for _, svc := range services {
		b.clients = append(b.clients, feed.NewClient(StatusPage(svc), doer, opts...))
	}
	return b
}

// Clients returns the per-service feed clients, in service order.
func (b *StatusBoard) Clients() []*feed.Client[ServiceStatus] {
	return b.clients
}

// Check fetches every status page concurrently and returns once all have
// answered or timed out. Entries keep service order.
func (b *StatusBoard) Check(ctx context.Context) Board {
	results := make([]feed.Result[ServiceStatus], len(b.clients))
	var g errgroup.Group
	for i, c := range b.clients {
		g.Go(func() error {
			results[i] = c.Fetch(ctx, nil)
			return nil
		})
	}
	_ = g.Wait()

	board := Board{
		Services: make([]BoardEntry, 0, len(results)),
		Statuses: make([]feed.Status, 0, len(results)),
	}
	for _, r := range results {
		board.Statuses = append(board.Statuses, r.Status())
		if len(r.Records) == 0 {
			continue
		}
		entry := BoardEntry{Status: r.Records[0], Source: r.Source}
		if r.Err != nil {
			entry.Error = fetch.KindOf(r.Err)
		}
		board.Services = append(board.Services, entry)

		switch entry.Status.Health {
		case HealthOnline:
			board.Summary.Online++
		case HealthDegraded:
			board.Summary.Degraded++
		case HealthCritical:
			board.Summary.Critical++
		default:
			board.Summary.Unknown++
		}
		if r.Source == feed.SourceLive {
			board.Summary.Live++
		} else {
			board.Summary.Fallback++
		}
	}
	return board
}
