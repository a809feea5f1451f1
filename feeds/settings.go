package feeds

import (
	"time"
)

// Upstream endpoints.
const (
	ThreatFoxURL     = "https://threatfox-api.abuse.ch/api/v1/"
	MalwareBazaarURL = "https://mb-api.abuse.ch/api/v1/"
	URLhausRecentURL = "https://urlhaus-api.abuse.ch/v1/urls/recent/"
	NVDCVEURL        = "https://services.nvd.nist.gov/rest/json/cves/2.0"
	CISAKEVURL       = "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json"
)

// Feed names, also used as metric labels and cache key prefixes.
const (
	NameThreatFox         = "threatfox_ransomware"
	NameMalwareBazaar     = "malwarebazaar_high_risk"
	NameURLhaus           = "urlhaus_country"
	NameNVD               = "nvd_critical_cves"
	NameKEV               = "cisa_kev"
	NameDownDetector      = "downdetector"
	statusPagePrefix      = "status:"
	backendFeedPrefix     = "backend_"
	defaultTopN           = 10
	defaultThreatFoxLimit = 100
	defaultNVDMinScore    = 9.0
	defaultNVDWindow      = 30 * 24 * time.Hour
)

// Cache TTLs and refresh periods per feed.
const (
	ThreatIntelTTL    = 5 * time.Minute
	ThreatIntelPeriod = 10 * time.Minute
	VulnTTL           = 15 * time.Minute
	VulnPeriod        = 15 * time.Minute
	StatusTTL         = time.Minute
	StatusPeriod      = 2 * time.Minute
	OutagePeriod      = 2 * time.Minute
)

// Endpoints lets tests and mirrors point feeds elsewhere.
type Endpoints struct {
	ThreatFox     string
	MalwareBazaar string
	URLhaus       string
	NVD           string
	KEV           string
}

// DefaultEndpoints returns the public upstream URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		ThreatFox:     ThreatFoxURL,
		MalwareBazaar: MalwareBazaarURL,
		URLhaus:       URLhausRecentURL,
		NVD:           NVDCVEURL,
		KEV:           CISAKEVURL,
	}
}

// Settings parameterise the feed definitions.
type Settings struct {
	Endpoints Endpoints

	// AuthKey is sent as the abuse.ch Auth-Key header when set.
	AuthKey string

	// ThreatFoxLimit is how many IOCs to request.
	ThreatFoxLimit int

	// ThreatFoxDays is how many days of IOCs to request.
	ThreatFoxDays int

	// NVDMinScore is the lowest CVSS v3 base score kept.
	NVDMinScore float64

	// NVDWindow is how far back lastModStartDate reaches.
	NVDWindow time.Duration

	// CountrySuffixes are the host suffixes kept by the URLhaus feed.
	CountrySuffixes []string

	// Now is the clock used to compute NVD date ranges.
	Now func() time.Time
}

func (s Settings) withDefaults() Settings {
	def := DefaultEndpoints()
	if s.Endpoints.ThreatFox == "" {
		s.Endpoints.ThreatFox = def.ThreatFox
	}
	if s.Endpoints.MalwareBazaar == "" {
		s.Endpoints.MalwareBazaar = def.MalwareBazaar
	}
	if s.Endpoints.URLhaus == "" {
		s.Endpoints.URLhaus = def.URLhaus
	}
	if s.Endpoints.NVD == "" {
		s.Endpoints.NVD = def.NVD
	}
	if s.Endpoints.KEV == "" {
		s.Endpoints.KEV = def.KEV
	}
	if s.ThreatFoxLimit <= 0 {
		s.ThreatFoxLimit = defaultThreatFoxLimit
	}
	if s.ThreatFoxDays <= 0 {
		s.ThreatFoxDays = 1
	}
	if s.NVDMinScore <= 0 {
		s.NVDMinScore = defaultNVDMinScore
	}
	if s.NVDWindow <= 0 {
		s.NVDWindow = defaultNVDWindow
	}
	if len(s.CountrySuffixes) == 0 {
		s.CountrySuffixes = []string{".br"}
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return s
}
