package feeds

import (
	"encoding/json"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Keksclan/minutodash/feed"
)

const nvdSample = `{
  "totalResults": 42,
  "vulnerabilities": [
    {"cve": {
      "id": "CVE-2025-0001",
      "published": "2025-01-02T10:00:00.000",
      "lastModified": "2025-01-03T10:00:00.000",
      "descriptions": [{"lang": "es", "value": "hola"}, {"lang": "en", "value": "remote code execution"}],
      "metrics": {"cvssMetricV31": [{"cvssData": {"baseScore": 9.8, "baseSeverity": "CRITICAL"}}]}
    }},
    {"cve": {
      "id": "CVE-2025-0002",
      "descriptions": [{"lang": "en", "value": "older metric"}],
      "metrics": {"cvssMetricV30": [{"cvssData": {"baseScore": 8.1, "baseSeverity": "HIGH"}}]}
    }}
  ]
}`

func TestDecodeNVD(t *testing.T) {
	batch, err := decodeNVD(json.RawMessage(nvdSample))
	if err != nil {
		t.Fatalf("decodeNVD: %v", err)
	}
	if batch.Total != 42 {
		t.Fatalf("Total = %d, want 42", batch.Total)
	}
	if len(batch.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(batch.Records))
	}
	first := batch.Records[0]
	if first.Description != "remote code execution" || first.Score != 9.8 || first.Severity != "CRITICAL" {
		t.Fatalf("unexpected first record %+v", first)
	}
	if got := batch.Records[1].Score; got != 8.1 {
		t.Fatalf("v3.0 fallback score = %v, want 8.1", got)
	}
}

func TestNVDCritical_RequestAndFilter(t *testing.T) {
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	def := NVDCritical(Settings{
		Now:       func() time.Time { return now },
		NVDWindow: 24 * time.Hour,
	})

	req, err := def.Request(nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	base, rawQuery, ok := strings.Cut(req.URL, "?")
	if !ok || base != NVDCVEURL {
		t.Fatalf("URL = %q", req.URL)
	}
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	if got := q.Get("cvssV3Severity"); got != "CRITICAL" {
		t.Fatalf("cvssV3Severity = %q", got)
	}
	if got, want := q.Get("lastModStartDate"), "2025-06-29T12:00:00.000Z"; got != want {
		t.Fatalf("lastModStartDate = %q, want %q", got, want)
	}
	if got, want := q.Get("lastModEndDate"), "2025-06-30T12:00:00.000Z"; got != want {
		t.Fatalf("lastModEndDate = %q, want %q", got, want)
	}

	batch, _ := decodeNVD(json.RawMessage(nvdSample))
	kept := feed.Project(batch.Records, def.Filter, def.Sort, def.Limit)
	if len(kept) != 1 || kept[0].ID != "CVE-2025-0001" {
		t.Fatalf("filter kept %+v, want only CVE-2025-0001", kept)
	}
}

func TestCISAKEV_NewestFirst(t *testing.T) {
	def := CISAKEV(Settings{})
	batch, err := def.Decode(json.RawMessage(`{"vulnerabilities":[
		{"cveID":"CVE-A","dateAdded":"2024-01-05"},
		{"cveID":"CVE-B","dateAdded":"2024-03-01"},
		{"cveID":"CVE-C","dateAdded":"2023-12-31"}
	]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := feed.Project(batch.Records, def.Filter, def.Sort, def.Limit)
	want := []string{"CVE-B", "CVE-A", "CVE-C"}
	for i, id := range want {
		if got[i].CVEID != id {
			t.Fatalf("position %d = %q, want %q", i, got[i].CVEID, id)
		}
	}
}
