// Package feeds defines the concrete MinutoDash data sources: the
// abuse.ch feeds (ThreatFox, MalwareBazaar, URLhaus), NVD critical CVEs, the
// CISA KEV catalogue, Statuspage-style service status pages, the same feeds
// through the MinutoDash backend proxy, and locally generated (synthetic)
// outage reports.
package feeds

// IOC is a ThreatFox indicator of compromise.
type IOC struct {
	ID               string   `json:"id"`
	IOC              string   `json:"ioc"`
	IOCType          string   `json:"ioc_type"`
	ThreatType       string   `json:"threat_type"`
	Malware          string   `json:"malware"`
	MalwarePrintable string   `json:"malware_printable"`
	MalwareMalpedia  string   `json:"malware_malpedia,omitempty"`
	ConfidenceLevel  int      `json:"confidence_level"`
	FirstSeen        string   `json:"first_seen"`
	LastSeen         *string  `json:"last_seen"`
	Reference        string   `json:"reference,omitempty"`
	Reporter         string   `json:"reporter"`
	Tags             []string `json:"tags"`
}

// Sample is a MalwareBazaar sample.
type Sample struct {
	SHA256    string   `json:"sha256_hash"`
	SHA1      string   `json:"sha1_hash"`
	MD5       string   `json:"md5_hash"`
	FirstSeen string   `json:"first_seen"`
	FileName  string   `json:"file_name"`
	FileSize  int64    `json:"file_size"`
	FileType  string   `json:"file_type"`
	MIMEType  string   `json:"file_type_mime"`
	Reporter  string   `json:"reporter"`
	Signature string   `json:"signature"`
	Tags      []string `json:"tags"`
}

// URLEntry is a URLhaus malicious URL.
type URLEntry struct {
	ID        int64    `json:"id"`
	Reference string   `json:"urlhaus_reference"`
	URL       string   `json:"url"`
	Status    string   `json:"url_status"`
	Host      string   `json:"host"`
	DateAdded string   `json:"date_added"`
	Threat    string   `json:"threat"`
	Reporter  string   `json:"reporter"`
	Tags      []string `json:"tags"`
}

// CVE is a vulnerability from the NVD CVE API, flattened to the fields the
// dashboard shows.
type CVE struct {
	ID           string  `json:"id"`
	Published    string  `json:"published"`
	LastModified string  `json:"last_modified"`
	Description  string  `json:"description"`
	Score        float64 `json:"score"`
	Severity     string  `json:"severity"`
}

// KEVEntry is an entry of CISA's Known Exploited Vulnerabilities catalogue.
type KEVEntry struct {
	CVEID                      string `json:"cveID"`
	VendorProject              string `json:"vendorProject"`
	Product                    string `json:"product"`
	VulnerabilityName          string `json:"vulnerabilityName"`
	DateAdded                  string `json:"dateAdded"`
	ShortDescription           string `json:"shortDescription"`
	RequiredAction             string `json:"requiredAction"`
	DueDate                    string `json:"dueDate"`
	KnownRansomwareCampaignUse string `json:"knownRansomwareCampaignUse"`
}

// Health is the dashboard's normalised service state.
type Health string

const (
	HealthOnline   Health = "ONLINE"
	HealthDegraded Health = "DEGRADED"
	HealthCritical Health = "CRITICAL"
	HealthUnknown  Health = "UNKNOWN"
)

// Severity accompanies a Health for colouring.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ServiceStatus is one service's state derived from its status page.
type ServiceStatus struct {
	Service     string   `json:"service"`
	URL         string   `json:"url"`
	Indicator   string   `json:"indicator"`
	Description string   `json:"description"`
	Health      Health   `json:"health"`
	Severity    Severity `json:"severity"`
	UpdatedAt   string   `json:"updated_at,omitempty"`
}

// OutageReport is a synthetic DownDetector-style report count.
type OutageReport struct {
	Service   string   `json:"service"`
	Status    string   `json:"status"` // normal, minor_outage, major_outage
	Reports   int      `json:"reports"`
	Trend     string   `json:"trend"`
	Locations []string `json:"locations"`
	Impact    string   `json:"impact"` // Alto, Médio, Baixo
}
