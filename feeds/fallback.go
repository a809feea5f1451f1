package feeds

// Static datasets served when an upstream cannot be used. They have the live
// record shape so renderers need no special case, and results built from them
// are always tagged feed.SourceFallback.

func RansomwareFallback() []IOC {
	return []IOC{
		{
			IOC:              "hxxp://lockbit3[.]onion/contact",
			IOCType:          "url",
			ThreatType:       "botnet_cc",
			Malware:          "win.lockbit",
			MalwarePrintable: "LockBit 3.0",
			ConfidenceLevel:  100,
			Tags:             []string{"ransomware", "lockbit"},
		},
		{
			IOC:              "hxxps://alphv[.]onion/blog",
			IOCType:          "url",
			ThreatType:       "botnet_cc",
			Malware:          "win.blackcat",
			MalwarePrintable: "BlackCat (ALPHV)",
			ConfidenceLevel:  100,
			Tags:             []string{"ransomware", "alphv"},
		},
	}
}

func MalwareFallback() []Sample {
	return []Sample{
		{SHA256: "a1b2c3d4e5f6...", Signature: "Trojan.Emotet", FileType: "exe"},
		{SHA256: "f6e5d4c3b2a1...", Signature: "Backdoor.Qakbot", FileType: "dll"},
	}
}

func CountryDomainFallback() []URLEntry {
	return []URLEntry{
		{URL: "https://bancodobrasil-seguro.com.br/login", Host: "bancodobrasil-seguro.com.br", Threat: "Phishing", Status: "Active"},
		{URL: "https://correios-entrega.net.br/rastreio", Host: "correios-entrega.net.br", Threat: "Malware", Status: "Blocked"},
	}
}

func CVEFallback() []CVE {
	return []CVE{
		{
			ID:          "CVE-2024-3400",
			Published:   "2024-04-12T08:15:06.230",
			Description: "Command injection in the GlobalProtect feature of PAN-OS.",
			Score:       10.0,
			Severity:    "CRITICAL",
		},
	}
}

func KEVFallback() []KEVEntry {
	return []KEVEntry{
		{
			CVEID:                      "CVE-2024-3400",
			VendorProject:              "Palo Alto Networks",
			Product:                    "PAN-OS",
			VulnerabilityName:          "Palo Alto Networks PAN-OS Command Injection Vulnerability",
			DateAdded:                  "2024-04-12",
			KnownRansomwareCampaignUse: "Unknown",
		},
	}
}
