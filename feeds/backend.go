package feeds

import (
	"net"
	"net/http"
	"strings"

	"github.com/Keksclan/minutodash/feed"
	"github.com/Keksclan/minutodash/fetch"
)

// LocalBackendURL is where the backend proxy listens during development.
const LocalBackendURL = "http://localhost:3001"

// ResolveBackendURL picks the backend base URL for the given host name: a
// local host talks to LocalBackendURL, anything else to configured (or
// LocalBackendURL when nothing is configured).
func ResolveBackendURL(host, configured string) string {
	h := host
	if hh, _, err := net.SplitHostPort(host); err == nil {
		h = hh
	}
	switch strings.ToLower(h) {
	case "", "localhost", "127.0.0.1", "::1":
		return LocalBackendURL
	}
	if configured == "" {
		return LocalBackendURL
	}
	return strings.TrimSuffix(configured, "/")
}

// Backend routes.
const (
	RouteThreatFox     = "/api/threatfox"
	RouteMalwareBazaar = "/api/malwarebazaar"
	RouteURLhaus       = "/api/urlhaus"
	RouteDockerStatus  = "/api/docker-status"
)

// BackendThreatFox reads ransomware IOCs from the backend proxy.
func BackendThreatFox(base string) feed.Definition[IOC] {
	return feed.Definition[IOC]{
		Name:     backendFeedPrefix + "threatfox",
		TTL:      ThreatIntelTTL,
		Request:  backendRequest(http.MethodPost, base+RouteThreatFox),
		Decode:   decodeList[IOC]("data"),
		Filter:   IsRansomware,
		Limit:    defaultTopN,
		Fallback: RansomwareFallback,
	}
}

// BackendMalwareBazaar reads high-risk samples from the backend proxy.
func BackendMalwareBazaar(base string) feed.Definition[Sample] {
	return feed.Definition[Sample]{
		Name:     backendFeedPrefix + "malwarebazaar",
		TTL:      ThreatIntelTTL,
		Request:  backendRequest(http.MethodPost, base+RouteMalwareBazaar),
		Decode:   decodeList[Sample]("data"),
		Filter:   IsHighRisk,
		Limit:    defaultTopN,
		Fallback: MalwareFallback,
	}
}

// BackendURLhaus reads country-domain URLs from the backend proxy.
func BackendURLhaus(base string, suffixes []string) feed.Definition[URLEntry] {
	if len(suffixes) == 0 {
		suffixes = []string{".br"}
	}
	return feed.Definition[URLEntry]{
		Name:     backendFeedPrefix + "urlhaus",
		TTL:      ThreatIntelTTL,
		Request:  backendRequest(http.MethodGet, base+RouteURLhaus),
		Decode:   decodeList[URLEntry]("urls"),
		Filter:   HostInCountry(suffixes),
		Limit:    defaultTopN,
		Fallback: CountryDomainFallback,
	}
}

// BackendDockerStatus reads the Docker Hub status page through the backend.
func BackendDockerStatus(base string) feed.Definition[ServiceStatus] {
	docker := Service{Name: "Docker Hub", Category: "Containers", PageURL: "https://status.docker.com"}
	def := StatusPage(docker)
	def.Name = backendFeedPrefix + "docker_status"
	def.TTL = ThreatIntelTTL
	def.Request = backendRequest(http.MethodGet, base+RouteDockerStatus)
	return def
}

func backendRequest(method, url string) func(feed.Params) (fetch.Request, error) {
	return func(p feed.Params) (fetch.Request, error) {
		req := fetch.Request{Method: method, URL: url}
		if method == http.MethodPost {
			body := make(map[string]string, len(p))
			for k, v := range p {
				body[k] = v
			}
			req.Body = body
		}
		return req, nil
	}
}
