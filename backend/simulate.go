package backend

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/Keksclan/minutodash/feeds"
)

var (
	simFamilies   = []string{"LockBit", "BlackCat", "Royal", "Play", "Clop", "BianLian", "Akira"}
	simIOCTypes   = []string{"url", "domain", "ip:port", "md5_hash", "sha256_hash"}
	simConfidence = []int{100, 75, 50}

	simSignatures = []string{
		"Trojan.Win32.Emotet", "Backdoor.Win32.Qakbot", "Trojan.Win32.IcedID",
		"Ransomware.Win32.LockBit", "Stealer.Win32.RedLine", "RAT.Win32.AsyncRAT",
		"Trojan.Win32.Dridex", "Backdoor.Win32.Cobalt", "Stealer.Win32.Vidar",
	}
	simFileTypes = []string{"exe", "dll", "doc", "pdf", "zip", "scr"}

	// Some of these only look Brazilian; the country filter must reject them.
	simDomains = []string{
		"banco-brasil-seguro.com.br", "caixa-economica.net.br", "correios-rastreio.org.br",
		"receita-federal.gov.br.fake.com", "detran-consulta.com.br", "inss-beneficios.net.br",
		"bradesco-internet.com.br.phishing.net", "itau-bankline.org.br",
	}
	simThreats  = []string{"phishing", "malware", "c2", "exploit"}
	simStatuses = []string{"online", "offline", "unknown"}
	simPaths    = []string{"/", "/login", "/portal", "/acesso", "/validacao", "/confirmacao"}
)

const (
	simThreatFoxCount     = 15
	simMalwareBazaarCount = 12
	simURLhausCount       = 10
)

// Simulator generates records shaped like the abuse.ch feeds. Everything it
// produces is served with the synthetic provenance.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewSimulator uses src for randomness (nil picks a random seed) and now for
// timestamps (nil means time.Now).
func NewSimulator(src rand.Source, now func() time.Time) *Simulator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	if now == nil {
		now = time.Now
	}
	return &Simulator{rng: rand.New(src), now: now}
}

func pick[T any](r *rand.Rand, xs []T) T { return xs[r.IntN(len(xs))] }

func (s *Simulator) hex(n int) string {
	const digits = "0123456789abcdef"
	var b strings.Builder
	b.Grow(n)
	for range n {
		b.WriteByte(digits[s.rng.IntN(16)])
	}
	return b.String()
}

func (s *Simulator) token(n int) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	var b strings.Builder
	b.Grow(n)
	for range n {
		b.WriteByte(alphabet[s.rng.IntN(len(alphabet))])
	}
	return b.String()
}

func (s *Simulator) within(d time.Duration) time.Time {
	return s.now().Add(-time.Duration(s.rng.Int64N(int64(d)))).UTC()
}

// ThreatFox returns a batch of ransomware-family IOCs.
func (s *Simulator) ThreatFox() []feeds.IOC {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := s.now().UnixMilli()
	out := make([]feeds.IOC, 0, simThreatFoxCount)
	for i := range simThreatFoxCount {
		family := pick(s.rng, simFamilies)
		iocType := pick(s.rng, simIOCTypes)
		lower := strings.ToLower(family)

		var value string
		switch iocType {
		case "url":
			value = fmt.Sprintf("hxxp://malicious-%s.onion/panel", s.token(6))
		case "domain":
			value = fmt.Sprintf("%s-%s.com", lower, s.token(6))
		case "ip:port":
			value = fmt.Sprintf("%d.%d.%d.%d:%d", s.rng.IntN(255), s.rng.IntN(255), s.rng.IntN(255), s.rng.IntN(255), 8000+s.rng.IntN(1000))
		case "md5_hash":
			value = s.hex(32)
		default:
			value = s.hex(64)
		}

		out = append(out, feeds.IOC{
			ID:               fmt.Sprintf("%d_%d", stamp, i),
			IOC:              value,
			IOCType:          iocType,
			ThreatType:       "botnet_cc",
			Malware:          family,
			MalwarePrintable: family,
			MalwareMalpedia:  "https://malpedia.caad.fkie.fraunhofer.de/details/" + lower,
			ConfidenceLevel:  pick(s.rng, simConfidence),
			FirstSeen:        s.within(7 * 24 * time.Hour).Format(time.RFC3339),
			Reference:        fmt.Sprintf("https://twitter.com/malware_traffic/status/%d", s.rng.Int64N(1e15)),
			Reporter:         fmt.Sprintf("researcher_%d", s.rng.IntN(100)),
			Tags:             []string{"ransomware", lower, "c2"},
		})
	}
	return out
}

// MalwareBazaar returns a batch of recent samples.
func (s *Simulator) MalwareBazaar() []feeds.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]feeds.Sample, 0, simMalwareBazaarCount)
	for i := range simMalwareBazaarCount {
		sig := pick(s.rng, simSignatures)
		ft := pick(s.rng, simFileTypes)
		mime := "application/" + ft
		if ft == "exe" {
			mime = "application/x-dosexec"
		}
		family := strings.ToLower(sig[strings.LastIndexByte(sig, '.')+1:])

		out = append(out, feeds.Sample{
			SHA256:    s.hex(64),
			SHA1:      s.hex(40),
			MD5:       s.hex(32),
			FirstSeen: s.within(3 * 24 * time.Hour).Format(time.DateTime),
			FileName:  fmt.Sprintf("malware_sample_%d.%s", i+1, ft),
			FileSize:  100_000 + s.rng.Int64N(5_000_000),
			FileType:  ft,
			MIMEType:  mime,
			Reporter:  fmt.Sprintf("analyst_%d", s.rng.IntN(50)),
			Signature: sig,
			Tags:      []string{family, "malware", "windows"},
		})
	}
	return out
}

// URLhaus returns a batch of URLs on Brazilian-looking domains.
func (s *Simulator) URLhaus() []feeds.URLEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := s.now().UnixMilli()
	out := make([]feeds.URLEntry, 0, simURLhausCount)
	for i := range simURLhausCount {
		domain := pick(s.rng, simDomains)
		threat := pick(s.rng, simThreats)
		out = append(out, feeds.URLEntry{
			ID:        base + int64(i),
			Reference: fmt.Sprintf("https://urlhaus.abuse.ch/url/%d/", s.rng.IntN(1_000_000)),
			URL:       "https://" + domain + pick(s.rng, simPaths),
			Status:    pick(s.rng, simStatuses),
			Host:      domain,
			DateAdded: s.within(7 * 24 * time.Hour).Format(time.DateOnly),
			Threat:    threat,
			Reporter:  fmt.Sprintf("security_researcher_%d", s.rng.IntN(100)),
			Tags:      []string{threat, "brazil", "phishing"},
		})
	}
	return out
}

type statusPage struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	TimeZone  string `json:"time_zone"`
	UpdatedAt string `json:"updated_at"`
}

type statusIndicator struct {
	Indicator   string `json:"indicator"`
	Description string `json:"description"`
}

// StatusDocument is a Statuspage /api/v2/status.json document.
type StatusDocument struct {
	Page   statusPage      `json:"page"`
	Status statusIndicator `json:"status"`
}

// DockerStatus returns a Docker Hub status document that is operational nine
// times out of ten.
func (s *Simulator) DockerStatus() StatusDocument {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := statusIndicator{Indicator: "none", Description: "All Systems Operational"}
	if s.rng.IntN(10) == 0 {
		st = statusIndicator{Indicator: "minor", Description: "Minor Service Outage"}
	}
	return StatusDocument{
		Page: statusPage{
			ID:        "docker",
			Name:      "Docker Hub",
			URL:       "https://status.docker.com",
			TimeZone:  "Etc/UTC",
			UpdatedAt: s.now().UTC().Format(time.RFC3339),
		},
		Status: st,
	}
}
