package intent

import (
	"net/url"
	"strings"
)

// Referrer types feeding the conversion-signals component.
const (
	ReferrerDirect   = "direct"
	ReferrerPaid     = "paid"
	ReferrerEmail    = "email"
	ReferrerOrganic  = "organic"
	ReferrerSocial   = "social"
	ReferrerReferral = "referral"
)

var paidMediums = map[string]bool{
	"cpc": true, "ppc": true, "paid": true, "display": true, "banner": true,
}

var searchDomains = []string{
	"google.", "bing.", "yahoo.", "duckduckgo.", "baidu.", "yandex.", "ecosia.",
}

var socialDomains = []string{
	"facebook.", "fb.com", "instagram.", "twitter.", "x.com", "t.co",
	"linkedin.", "lnkd.in", "reddit.", "youtube.", "youtu.be", "tiktok.",
	"pinterest.", "threads.",
}

var mailDomains = []string{
	"mail.google.", "outlook.", "mail.yahoo.", "mail.", "webmail.",
}

// ClassifyReferrer derives (referrer_domain, referrer_type) from the raw
// referrer URL and the utm_medium hint. UTM wins over the domain heuristic
// because it is an explicit claim by the campaign link.
func ClassifyReferrer(rawURL, utmMedium string) (domain, refType string) {
	medium := strings.ToLower(strings.TrimSpace(utmMedium))
	if paidMediums[medium] {
		refType = ReferrerPaid
	} else if medium == "email" || medium == "newsletter" {
		refType = ReferrerEmail
	}

	if rawURL != "" {
		if u, err := url.Parse(rawURL); err == nil {
			domain = strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
		}
	}

	if refType != "" {
		return domain, refType
	}
	if domain == "" {
		return "", ReferrerDirect
	}

	// Mail first: mail.google.com must not fall through to the google.
	// search rule.
	for _, d := range mailDomains {
		if strings.HasPrefix(domain, d) {
			return domain, ReferrerEmail
		}
	}
	for _, d := range searchDomains {
		if strings.HasPrefix(domain, d) || strings.Contains(domain, "."+d) {
			return domain, ReferrerOrganic
		}
	}
	for _, d := range socialDomains {
		if strings.HasPrefix(domain, d) || strings.Contains(domain, "."+d) {
			return domain, ReferrerSocial
		}
	}
	return domain, ReferrerReferral
}

// DeviceTypeFor buckets a user agent into mobile, tablet or desktop.
func DeviceTypeFor(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return "tablet"
	case strings.Contains(ua, "mobi") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		return "mobile"
	default:
		return "desktop"
	}
}
