package feeds

import (
	"encoding/json"
	"testing"

	"github.com/Keksclan/minutodash/fetch"
)

func TestIsRansomware(t *testing.T) {
	cases := []struct {
		name string
		ioc  IOC
		want bool
	}{
		{"tag", IOC{Tags: []string{"c2", "Ransomware"}}, true},
		{"threat type", IOC{ThreatType: "ransomware_payload"}, true},
		{"malware name", IOC{MalwarePrintable: "Conti Ransomware"}, true},
		{"known family", IOC{MalwarePrintable: "LockBit"}, true},
		{"known family id", IOC{Malware: "Clop"}, true},
		{"unrelated", IOC{MalwarePrintable: "AgentTesla", Tags: []string{"stealer"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRansomware(tc.ioc); got != tc.want {
				t.Fatalf("IsRansomware() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsHighRisk(t *testing.T) {
	for sig, want := range map[string]bool{
		"Trojan.Win32.Emotet":      true,
		"Ransomware.Win32.LockBit": true,
		"Backdoor.Win32.Qakbot":    true,
		"Stealer.Win32.RedLine":    true,
		"RAT.Win32.AsyncRAT":       false,
		"":                         false,
	} {
		if got := IsHighRisk(Sample{Signature: sig}); got != want {
			t.Errorf("IsHighRisk(%q) = %v, want %v", sig, got, want)
		}
	}
}

func TestHostInCountry(t *testing.T) {
	keep := HostInCountry([]string{".br"})
	cases := []struct {
		entry URLEntry
		want  bool
	}{
		{URLEntry{URL: "https://banco-brasil-seguro.com.br/login"}, true},
		{URLEntry{URL: "http://receita-federal.gov.br.fake.com/"}, false},
		{URLEntry{URL: "not a url", Host: "inss-beneficios.net.br"}, true},
		{URLEntry{URL: "https://EXAMPLE.COM.BR./x"}, true},
		{URLEntry{URL: "https://example.com/"}, false},
	}
	for _, tc := range cases {
		if got := keep(tc.entry); got != tc.want {
			t.Errorf("HostInCountry(%q) = %v, want %v", tc.entry.URL, got, tc.want)
		}
	}
}

func TestDecodeList_Shapes(t *testing.T) {
	dec := decodeList[IOC]("data")

	batch, err := dec(json.RawMessage(`[{"ioc":"a"},{"ioc":"b"}]`))
	if err != nil {
		t.Fatalf("bare array: %v", err)
	}
	if len(batch.Records) != 2 {
		t.Fatalf("bare array: got %d records, want 2", len(batch.Records))
	}

	batch, err = dec(json.RawMessage(`{"query_status":"ok","data":[{"ioc":"c"}]}`))
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if len(batch.Records) != 1 || batch.Records[0].IOC != "c" {
		t.Fatalf("envelope: got %+v", batch.Records)
	}

	batch, err = dec(json.RawMessage(`{"query_status":"no_result","data":"Your search did not yield any results"}`))
	if err != nil {
		t.Fatalf("no_result: %v", err)
	}
	if batch.Records == nil || len(batch.Records) != 0 {
		t.Fatalf("no_result: got %+v, want empty batch", batch.Records)
	}
}

func TestDecodeList_Failures(t *testing.T) {
	dec := decodeList[IOC]("data")
	for name, body := range map[string]string{
		"bad status":    `{"query_status":"unknown_auth_key"}`,
		"missing field": `{"query_status":"ok"}`,
		"wrong type":    `{"data":{"ioc":"x"}}`,
		"not json obj":  `"text"`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := dec(json.RawMessage(body))
			if got := fetch.ReasonOf(err); got != fetch.ReasonDecode {
				t.Fatalf("reason = %q, want %q (err %v)", got, fetch.ReasonDecode, err)
			}
		})
	}
}

func TestThreatFoxRansomware_Request(t *testing.T) {
	def := ThreatFoxRansomware(Settings{AuthKey: "secret", ThreatFoxDays: 3})
	req, err := def.Request(nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if req.Method != "POST" || req.URL != ThreatFoxURL {
		t.Fatalf("got %s %s", req.Method, req.URL)
	}
	if got := req.Header.Get("Auth-Key"); got != "secret" {
		t.Fatalf("Auth-Key = %q, want %q", got, "secret")
	}
	raw, _ := json.Marshal(req.Body)
	if got, want := string(raw), `{"days":3,"limit":100,"query":"get_iocs"}`; got != want {
		t.Fatalf("body = %s, want %s", got, want)
	}

	req, _ = ThreatFoxRansomware(Settings{ThreatFoxLimit: 25}).Request(nil)
	raw, _ = json.Marshal(req.Body)
	if got, want := string(raw), `{"days":1,"limit":25,"query":"get_iocs"}`; got != want {
		t.Fatalf("body = %s, want %s", got, want)
	}
	if def.Name != NameThreatFox || def.Limit != defaultTopN {
		t.Fatalf("unexpected definition %q limit %d", def.Name, def.Limit)
	}
}

func TestAuthHeader_Empty(t *testing.T) {
	if h := authHeader(""); h != nil {
		t.Fatalf("got %v, want nil", h)
	}
}

func TestFallbacksMatchFilters(t *testing.T) {
	for _, r := range RansomwareFallback() {
		if !IsRansomware(r) {
			t.Errorf("ransomware fallback %q rejected by filter", r.IOC)
		}
	}
	for _, s := range MalwareFallback() {
		if !IsHighRisk(s) {
			t.Errorf("malware fallback %q rejected by filter", s.Signature)
		}
	}
	keep := HostInCountry([]string{".br"})
	for _, u := range CountryDomainFallback() {
		if !keep(u) {
			t.Errorf("country fallback %q rejected by filter", u.URL)
		}
	}
}
