package feeds

import (
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/Keksclan/minutodash/feed"
	"github.com/Keksclan/minutodash/fetch"
)

// ransomwareFamilies are malware families treated as ransomware even when an
// IOC carries no ransomware tag.
var ransomwareFamilies = []string{"LockBit", "BlackCat", "Royal", "Play", "Clop"}

// highRiskMarkers are the signature substrings that make a sample high risk.
var highRiskMarkers = []string{"trojan", "ransomware", "backdoor", "stealer"}

// IsRansomware reports whether an IOC belongs to a ransomware campaign: a tag,
// the threat type or the malware name mentions ransomware, or the malware is
// a known ransomware family.
func IsRansomware(ioc IOC) bool {
	for _, tag := range ioc.Tags {
		if containsFold(tag, "ransomware") {
			return true
		}
	}
	if containsFold(ioc.ThreatType, "ransomware") ||
		containsFold(ioc.Malware, "ransomware") ||
		containsFold(ioc.MalwarePrintable, "ransomware") {
		return true
	}
	return slices.Contains(ransomwareFamilies, ioc.MalwarePrintable) ||
		slices.Contains(ransomwareFamilies, ioc.Malware)
}

// IsHighRisk reports whether a sample's signature names a trojan, ransomware,
// backdoor or stealer.
func IsHighRisk(s Sample) bool {
	for _, m := range highRiskMarkers {
		if containsFold(s.Signature, m) {
			return true
		}
	}
	return false
}

// HostInCountry returns a predicate that keeps URLs whose host ends with one
// of suffixes (".br" keeps "a.com.br" but not "gov.br.fake.com").
func HostInCountry(suffixes []string) func(URLEntry) bool {
	return func(e URLEntry) bool {
		host := e.Host
		if u, err := url.Parse(e.URL); err == nil && u.Hostname() != "" {
			host = u.Hostname()
		}
		host = strings.ToLower(strings.TrimSuffix(host, "."))
		for _, sfx := range suffixes {
			if strings.HasSuffix(host, strings.ToLower(sfx)) {
				return true
			}
		}
		return false
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}

// ThreatFoxRansomware is the ThreatFox feed narrowed to ransomware IOCs.
func ThreatFoxRansomware(s Settings) feed.Definition[IOC] {
	s = s.withDefaults()
	return feed.Definition[IOC]{
		Name: NameThreatFox,
		TTL:  ThreatIntelTTL,
		Request: func(feed.Params) (fetch.Request, error) {
			return fetch.Request{
				Method: http.MethodPost,
				URL:    s.Endpoints.ThreatFox,
				Body:   map[string]any{"query": "get_iocs", "limit": s.ThreatFoxLimit, "days": s.ThreatFoxDays},
				Header: authHeader(s.AuthKey),
			}, nil
		},
		Decode:   decodeList[IOC]("data"),
		Filter:   IsRansomware,
		Limit:    defaultTopN,
		Fallback: RansomwareFallback,
	}
}

// MalwareBazaarHighRisk is the MalwareBazaar recent-samples feed narrowed to
// high-risk signatures.
func MalwareBazaarHighRisk(s Settings) feed.Definition[Sample] {
	s = s.withDefaults()
	return feed.Definition[Sample]{
		Name: NameMalwareBazaar,
		TTL:  ThreatIntelTTL,
		Request: func(feed.Params) (fetch.Request, error) {
			return fetch.Request{
				Method: http.MethodPost,
				URL:    s.Endpoints.MalwareBazaar,
				Body:   map[string]any{"query": "get_recent", "selector": "time"},
				Header: authHeader(s.AuthKey),
			}, nil
		},
		Decode:   decodeList[Sample]("data"),
		Filter:   IsHighRisk,
		Limit:    defaultTopN,
		Fallback: MalwareFallback,
	}
}

// URLhausCountry is the URLhaus recent-URLs feed narrowed to hosts under the
// configured country suffixes.
func URLhausCountry(s Settings) feed.Definition[URLEntry] {
	s = s.withDefaults()
	return feed.Definition[URLEntry]{
		Name: NameURLhaus,
		TTL:  ThreatIntelTTL,
		Request: func(feed.Params) (fetch.Request, error) {
			return fetch.Request{
				URL:    s.Endpoints.URLhaus,
				Header: authHeader(s.AuthKey),
			}, nil
		},
		Decode:   decodeList[URLEntry]("urls"),
		Filter:   HostInCountry(s.CountrySuffixes),
		Limit:    defaultTopN,
		Fallback: CountryDomainFallback,
	}
}
