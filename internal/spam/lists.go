package spam

// Fixed signal lists. These are deliberately hardcoded: additions are a
// reviewed change, not runtime configuration.

// disposableEmailDomains are throwaway inboxes commonly used by bots.
var disposableEmailDomains = map[string]bool{
	"mailinator.com":    true,
	"guerrillamail.com": true,
	"10minutemail.com":  true,
	"tempmail.com":      true,
	"temp-mail.org":     true,
	"throwaway.email":   true,
	"yopmail.com":       true,
	"trashmail.com":     true,
	"getnada.com":       true,
	"sharklasers.com":   true,
	"dispostable.com":   true,
	"maildrop.cc":       true,
	"fakeinbox.com":     true,
	"mintemail.com":     true,
}

// spamKeywords are matched case-insensitively as substrings of the whole
// submission body. Each distinct keyword scores once regardless of repeats.
var spamKeywords = []string{
	"viagra",
	"cialis",
	"casino",
	"crypto",
	"bitcoin",
	"forex",
	"payday loan",
	"seo service",
	"backlink",
	"link building",
	"porn",
	"xxx",
	"weight loss",
	"make money",
	"work from home",
	"click here",
	"limited offer",
	"act now",
	"winner",
	"congratulations",
	"million dollar",
	"nigerian prince",
}

// botUserAgentMarkers flag automated clients. Empty user agents are flagged
// separately.
var botUserAgentMarkers = []string{
	"curl",
	"wget",
	"python",
	"java",
	"ruby",
	"perl",
	"php",
	"go-http",
	"okhttp",
	"httpclient",
	"postman",
	"bot",
	"spider",
	"crawler",
	"scrapy",
	"headless",
	"phantom",
	"selenium",
	"puppeteer",
	"playwright",
	"webdriver",
}
