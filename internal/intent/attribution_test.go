package intent

import "testing"

func TestClassifyReferrer(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		utmMedium  string
		wantDomain string
		wantType   string
	}{
		{"no referrer", "", "", "", ReferrerDirect},
		{"organic google", "https://www.google.com/search?q=agency", "", "google.com", ReferrerOrganic},
		{"organic bing", "https://bing.com/search", "", "bing.com", ReferrerOrganic},
		{"social facebook", "https://facebook.com/some/page", "", "facebook.com", ReferrerSocial},
		{"social shortener", "https://t.co/abc123", "", "t.co", ReferrerSocial},
		{"paid medium wins", "https://www.google.com/", "cpc", "google.com", ReferrerPaid},
		{"email medium", "", "email", "", ReferrerEmail},
		{"newsletter medium", "https://example.com", "newsletter", "example.com", ReferrerEmail},
		{"webmail domain", "https://webmail.example.net/inbox", "", "webmail.example.net", ReferrerEmail},
		{"plain referral", "https://partner-blog.example.org/post", "", "partner-blog.example.org", ReferrerReferral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			domain, refType := ClassifyReferrer(tt.url, tt.utmMedium)
			if domain != tt.wantDomain || refType != tt.wantType {
				t.Errorf("ClassifyReferrer(%q, %q) = (%q, %q), want (%q, %q)",
					tt.url, tt.utmMedium, domain, refType, tt.wantDomain, tt.wantType)
			}
		})
	}
}

func TestDeviceTypeFor(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36", "desktop"},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148", "mobile"},
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8) Mobile Safari/537.36", "mobile"},
		{"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X)", "tablet"},
		{"", "desktop"},
	}
	for _, tt := range tests {
		if got := DeviceTypeFor(tt.ua); got != tt.want {
			t.Errorf("DeviceTypeFor(%q) = %q, want %q", tt.ua, got, tt.want)
		}
	}
}
