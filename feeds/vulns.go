package feeds

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/Keksclan/minutodash/feed"
	"github.com/Keksclan/minutodash/fetch"
)

// nvdTimeLayout is the ISO-8601 form the NVD API accepts for date ranges.
const nvdTimeLayout = "2006-01-02T15:04:05.000Z"

type nvdResponse struct {
	TotalResults    int `json:"totalResults"`
	Vulnerabilities []struct {
		CVE struct {
			ID           string `json:"id"`
			Published    string `json:"published"`
			LastModified string `json:"lastModified"`
			Descriptions []struct {
				Lang  string `json:"lang"`
				Value string `json:"value"`
			} `json:"descriptions"`
			Metrics struct {
				V31 []nvdMetric `json:"cvssMetricV31"`
				V30 []nvdMetric `json:"cvssMetricV30"`
			} `json:"metrics"`
		} `json:"cve"`
	} `json:"vulnerabilities"`
}

type nvdMetric struct {
	CVSSData struct {
		BaseScore    float64 `json:"baseScore"`
		BaseSeverity string  `json:"baseSeverity"`
	} `json:"cvssData"`
}

func decodeNVD(raw json.RawMessage) (feed.Batch[CVE], error) {
	doc, err := fetch.Decode[nvdResponse](raw)
	if err != nil {
		return feed.Batch[CVE]{}, err
	}
	out := make([]CVE, 0, len(doc.Vulnerabilities))
	for _, v := range doc.Vulnerabilities {
		c := CVE{
			ID:           v.CVE.ID,
			Published:    v.CVE.Published,
			LastModified: v.CVE.LastModified,
		}
		for _, d := range v.CVE.Descriptions {
			if d.Lang == "en" {
				c.Description = d.Value
				break
			}
		}
		metrics := v.CVE.Metrics.V31
		if len(metrics) == 0 {
			metrics = v.CVE.Metrics.V30
		}
		if len(metrics) > 0 {
			c.Score = metrics[0].CVSSData.BaseScore
			c.Severity = metrics[0].CVSSData.BaseSeverity
		}
		out = append(out, c)
	}
	return feed.Batch[CVE]{Records: out, Total: doc.TotalResults}, nil
}

// CVSSAtLeast keeps CVEs whose CVSS v3 base score is at least threshold.
func CVSSAtLeast(threshold float64) func(CVE) bool {
	return func(c CVE) bool { return c.Score >= threshold }
}

// NVDCritical lists CVEs of critical CVSS v3 severity modified within the
// configured window. The result's Total is NVD's totalResults.
func NVDCritical(s Settings) feed.Definition[CVE] {
	s = s.withDefaults()
	return feed.Definition[CVE]{
		Name: NameNVD,
		TTL:  VulnTTL,
		Request: func(feed.Params) (fetch.Request, error) {
			now := s.Now().UTC()
			q := url.Values{}
			q.Set("cvssV3Severity", "CRITICAL")
			q.Set("lastModStartDate", now.Add(-s.NVDWindow).Format(nvdTimeLayout))
			q.Set("lastModEndDate", now.Format(nvdTimeLayout))
			return fetch.Request{URL: s.Endpoints.NVD + "?" + q.Encode()}, nil
		},
		Decode:   decodeNVD,
		Filter:   CVSSAtLeast(s.NVDMinScore),
		Fallback: CVEFallback,
	}
}

// CISAKEV lists the most recently added known exploited vulnerabilities.
func CISAKEV(s Settings) feed.Definition[KEVEntry] {
	s = s.withDefaults()
	return feed.Definition[KEVEntry]{
		Name: NameKEV,
		TTL:  VulnTTL,
		Request: func(feed.Params) (fetch.Request, error) {
			return fetch.Request{URL: s.Endpoints.KEV}, nil
		},
		Decode: decodeList[KEVEntry]("vulnerabilities"),
		Sort: func(a, b KEVEntry) int {
			// ISO dates sort lexically; newest first.
			return strings.Compare(b.DateAdded, a.DateAdded)
		},
		Limit:    defaultTopN,
		Fallback: KEVFallback,
	}
}
