package feeds

import (
	"math/rand/v2"
	"sync"

	"github.com/Keksclan/minutodash/feed"
)

// outageBaseline is the reference outage picture the generator varies.
var outageBaseline = []OutageReport{
	{Service: "Microsoft Azure", Status: "major_outage", Reports: 15420, Trend: "increasing", Locations: []string{"BR", "US"}},
	{Service: "Amazon AWS", Status: "minor_outage", Reports: 2340, Trend: "stable", Locations: []string{"US", "EU"}},
	{Service: "Google Cloud", Status: "normal", Reports: 450, Trend: "decreasing", Locations: []string{"BR"}},
	{Service: "Cloudflare", Status: "normal", Reports: 156, Trend: "stable", Locations: []string{"EU"}},
	{Service: "WhatsApp", Status: "minor_outage", Reports: 5890, Trend: "increasing", Locations: []string{"BR", "AR"}},
}

// OutageImpact grades a report count.
func OutageImpact(reports int) string {
	switch {
	case reports > 10000:
		return "Alto"
	case reports > 1000:
		return "Médio"
	default:
		return "Baixo"
	}
}

// OutageGenerator produces report counts within ±20% of the baseline.
type OutageGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewOutageGenerator uses src for randomness; nil selects a random seed.
func NewOutageGenerator(src rand.Source) *OutageGenerator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &OutageGenerator{rng: rand.New(src)}
}

// Generate returns a fresh set of reports.
func (g *OutageGenerator) Generate() []OutageReport {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]OutageReport, len(outageBaseline))
	for i, base := range outageBaseline {
		r := base
		r.Locations = append([]string(nil), base.Locations...)
		r.Reports = base.Reports * (80 + g.rng.IntN(41)) / 100
		r.Impact = OutageImpact(r.Reports)
		out[i] = r
	}
	return out
}

// DownDetector is the synthetic outage source, sorted by reports descending.
func DownDetector(gen *OutageGenerator, opts ...feed.Option) *feed.Synthetic[OutageReport] {
	return feed.NewSynthetic(NameDownDetector, gen.Generate, func(a, b OutageReport) int {
		return b.Reports - a.Reports
	}, opts...)
}
