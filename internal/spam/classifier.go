// Package spam scores funnel submissions with a deterministic, additive
// multi-signal heuristic. It is explicitly best-effort, not ML-trained:
// every matching signal contributes, nothing short-circuits, and the final
// score is capped at 100.
package spam

import (
	"context"
	"log"
	"regexp"
	"strings"
	"time"
)

// Reason strings attached to a classification, stable for the audit log.
const (
	ReasonHoneypot      = "honeypot_filled"
	ReasonExtremelyFast = "filled_extremely_fast"
	ReasonVeryFast      = "filled_very_fast"
	ReasonSuspiciousIP  = "suspicious_ip"
	ReasonTooMany       = "too_many_attempts"
	ReasonEmail         = "suspicious_email"
	ReasonContent       = "spam_content"
	ReasonUserAgent     = "suspicious_user_agent"
	ReasonHeaders       = "missing_headers"
)

const (
	// DefaultThreshold is the score at which a submission counts as spam.
	DefaultThreshold = 50

	attemptWindow    = 10 * time.Minute
	attemptSoftLimit = 20
	attemptHardLimit = 50
	autoBlockFor     = 60 * time.Minute
	reputationTTL    = time.Hour
)

// suspiciousLocalPart matches throwaway-looking address local parts like
// "ab12345".
var suspiciousLocalPart = regexp.MustCompile(`^[a-z]{1,2}\d{5,}$`)

// AttemptStats exposes the audit-log counters the classifier reads.
type AttemptStats interface {
	CountRecent(ip string, window time.Duration) (int, error)
	CountSpam(ip string) (int, error)
}

// Blocklist is the IP block store consulted and fed by the classifier.
type Blocklist interface {
	IsBlocked(ip string) bool
	Block(ip, reason string, d time.Duration) error
}

// ReputationCache caches per-IP reputation sub-scores (1h TTL).
type ReputationCache interface {
	Get(ctx context.Context, ip string) (int, bool)
	Set(ctx context.Context, ip string, score int, ttl time.Duration)
}

// Submission is one funnel API call as seen by the classifier.
type Submission struct {
	// Honeypot is the hidden form field; humans leave it empty.
	Honeypot string

	// FillTimeMs is the client-reported form fill time. Negative means the
	// client did not report it, which skips the timing signal.
	FillTimeMs int64

	Email string

	// Body is the raw submission JSON, scanned for spam content.
	Body string

	UserAgent      string
	AcceptLanguage string
	IP             string
}

// Result is the outcome of scoring a single submission.
type Result struct {
	Score   int
	IsSpam  bool
	Reasons []string
}

// Classifier scores submissions. It is stateless apart from its injected
// collaborators, so a single instance is shared across handlers.
type Classifier struct {
	Attempts   AttemptStats
	Blocklist  Blocklist
	Reputation ReputationCache
	Threshold  int
}

func NewClassifier(attempts AttemptStats, blocklist Blocklist, reputation ReputationCache, threshold int) *Classifier {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Classifier{
		Attempts:   attempts,
		Blocklist:  blocklist,
		Reputation: reputation,
		Threshold:  threshold,
	}
}

// Detect scores one submission. All matching signals apply; the score is
// capped at 100. A side effect: IPs hammering the funnel past the hard
// limit get auto-blocked for an hour.
func (c *Classifier) Detect(ctx context.Context, sub Submission) Result {
	score := 0
	var reasons []string

	if strings.TrimSpace(sub.Honeypot) != "" {
		score += 100
		reasons = append(reasons, ReasonHoneypot)
	}

	if sub.FillTimeMs >= 0 {
		if sub.FillTimeMs < 1000 {
			score += 80
			reasons = append(reasons, ReasonExtremelyFast)
		} else if sub.FillTimeMs < 3000 {
			score += 40
			reasons = append(reasons, ReasonVeryFast)
		}
	}

	if rep := c.reputationScore(ctx, sub.IP); rep > 0 {
		score += rep
		reasons = append(reasons, ReasonSuspiciousIP)
	}

	if attempts, err := c.Attempts.CountRecent(sub.IP, attemptWindow); err != nil {
		log.Printf("spam: attempt count unavailable for %s: %v", sub.IP, err)
	} else if attempts > attemptSoftLimit {
		score += 60
		reasons = append(reasons, ReasonTooMany)
		if attempts > attemptHardLimit {
			if err := c.Blocklist.Block(sub.IP, "excessive lead attempts", autoBlockFor); err != nil {
				log.Printf("spam: failed to auto-block %s: %v", sub.IP, err)
			}
		}
	}

	if pts := emailScore(sub.Email); pts > 0 {
		score += pts
		reasons = append(reasons, ReasonEmail)
	}

	if pts := contentScore(sub.Body); pts > 0 {
		score += pts
		reasons = append(reasons, ReasonContent)
	}

	if userAgentSuspicious(sub.UserAgent) {
		score += 30
		reasons = append(reasons, ReasonUserAgent)
	}

	if strings.TrimSpace(sub.AcceptLanguage) == "" {
		score += 10
		reasons = append(reasons, ReasonHeaders)
	}

	if score > 100 {
		score = 100
	}

	return Result{
		Score:   score,
		IsSpam:  score >= c.Threshold,
		Reasons: reasons,
	}
}

// reputationScore is 10 points per prior spam-flagged attempt from the IP
// (capped at 50) plus 100 if the IP is currently blocked, cached for an
// hour per IP.
func (c *Classifier) reputationScore(ctx context.Context, ip string) int {
	if ip == "" {
		return 0
	}
	if cached, ok := c.Reputation.Get(ctx, ip); ok {
		return cached
	}

	score := 0
	if n, err := c.Attempts.CountSpam(ip); err != nil {
		log.Printf("spam: reputation lookup unavailable for %s: %v", ip, err)
	} else {
		score = n * 10
		if score > 50 {
			score = 50
		}
	}
	if c.Blocklist.IsBlocked(ip) {
		score += 100
	}

	c.Reputation.Set(ctx, ip, score, reputationTTL)
	return score
}

func emailScore(email string) int {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return 0
	}

	score := 0
	if disposableEmailDomains[email[at+1:]] {
		score += 50
	}
	if suspiciousLocalPart.MatchString(email[:at]) {
		score += 30
	}
	return score
}

// contentScore awards 20 per distinct keyword found (capped at 60), plus 20
// when the body carries more than three links.
func contentScore(body string) int {
	if body == "" {
		return 0
	}
	lower := strings.ToLower(body)

	keywordScore := 0
	for _, kw := range spamKeywords {
		if strings.Contains(lower, kw) {
			keywordScore += 20
		}
	}
	if keywordScore > 60 {
		keywordScore = 60
	}

	links := strings.Count(lower, "http://") + strings.Count(lower, "https://")
	if links > 3 {
		keywordScore += 20
	}
	return keywordScore
}

func userAgentSuspicious(ua string) bool {
	ua = strings.ToLower(strings.TrimSpace(ua))
	if ua == "" {
		return true
	}
	for _, marker := range botUserAgentMarkers {
		if strings.Contains(ua, marker) {
			return true
		}
	}
	return false
}
