// Package intent computes a session's 0-100 intent score from its
// accumulated counters and flags. Scoring is a pure function of the session
// (and its linked lead): it is recomputed in full after every mutating
// event, never incrementally patched, so repeated calls on unchanged input
// yield identical output.
package intent

import (
	"time"

	"leadpulse/internal/db"
	"leadpulse/internal/funnel"
)

// Intent levels, inclusive lower bounds: <20 cold, 20-49 warm, 50-79 hot,
// >=80 qualified.
const (
	LevelCold      = "cold"
	LevelWarm      = "warm"
	LevelHot       = "hot"
	LevelQualified = "qualified"
)

// Component weights and raw caps. Each component is capped before
// weighting; the weighted sum is clamped to [0,100].
var componentWeights = map[string]float64{
	"page_views":         1.0,
	"time_on_site":       1.5,
	"engagement":         2.0,
	"form_interaction":   3.0,
	"conversion_signals": 4.0,
	"return_visitor":     1.5,
}

var componentCaps = map[string]float64{
	"page_views":         15,
	"time_on_site":       15,
	"engagement":         20,
	"form_interaction":   25,
	"conversion_signals": 15,
	"return_visitor":     10,
}

// referrerPoints is the conversion-signal lookup for referrer_type.
var referrerPoints = map[string]float64{
	"paid":     4,
	"email":    4,
	"organic":  3,
	"referral": 3,
	"social":   2,
	"direct":   2,
}

// Result is the composite score plus its per-component breakdown
// (raw, pre-weight subscores).
type Result struct {
	Total      float64
	Level      string
	Components map[string]float64
}

// Score computes the session's intent score as of now. lead may be nil when
// the session has no linked funnel attempt.
func Score(s *db.Session, lead *db.Lead) Result {
	return ScoreAt(s, lead, time.Now())
}

// ScoreAt is Score with an explicit evaluation time, which only influences
// the business-hours conversion signal.
func ScoreAt(s *db.Session, lead *db.Lead, now time.Time) Result {
	components := map[string]float64{
		"page_views":         pageViewsScore(s),
		"time_on_site":       timeOnSiteScore(s),
		"engagement":         engagementScore(s),
		"form_interaction":   formInteractionScore(s, lead),
		"conversion_signals": conversionSignalsScore(s, now),
		"return_visitor":     returnVisitorScore(s),
	}

	var total float64
	for name, raw := range components {
		if limit := componentCaps[name]; raw > limit {
			raw = limit
			components[name] = limit
		}
		total += raw * componentWeights[name]
	}
	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}

	return Result{
		Total:      total,
		Level:      LevelFor(total),
		Components: components,
	}
}

// LevelFor maps a total score to its intent level.
func LevelFor(total float64) string {
	switch {
	case total < 20:
		return LevelCold
	case total < 50:
		return LevelWarm
	case total < 80:
		return LevelHot
	default:
		return LevelQualified
	}
}

// stepPoints awards the points at each threshold the value has reached.
func stepPoints(value int, thresholds []int, points []float64) float64 {
	var sum float64
	for i, t := range thresholds {
		if value >= t {
			sum += points[i]
		}
	}
	return sum
}

func pageViewsScore(s *db.Session) float64 {
	score := stepPoints(s.PageViewsCount,
		[]int{1, 2, 3, 5, 8, 12},
		[]float64{2, 2, 2, 3, 3, 3})

	if s.VisitedPricing {
		score += 3
	}
	if s.VisitedServices {
		score += 2
	}
	if s.VisitedPortfolio {
		score += 2
	}
	if s.VisitedContact {
		score += 3
	}
	return score
}

func timeOnSiteScore(s *db.Session) float64 {
	score := stepPoints(s.TotalTimeSeconds,
		[]int{30, 60, 120, 180, 300, 600},
		[]float64{2, 2, 2, 2, 3, 4})

	if s.TotalTimeSeconds > 0 {
		ratio := float64(s.EngagedTimeSeconds) / float64(s.TotalTimeSeconds)
		if ratio >= 0.5 {
			score += 2
		}
		if ratio >= 0.7 {
			score += 2
		}
	}
	return score
}

func engagementScore(s *db.Session) float64 {
	score := stepPoints(s.ScrollDepthMax,
		[]int{25, 50, 75, 90},
		[]float64{2, 2, 2, 2})
	score += stepPoints(s.EventsCount,
		[]int{5, 10, 20, 50},
		[]float64{2, 2, 2, 2})

	if s.WatchedVideo {
		score += 3
	}
	if s.ClickedCTA {
		score += 3
	}
	return score
}

func formInteractionScore(s *db.Session, lead *db.Lead) float64 {
	var score float64
	if s.StartedForm {
		score += 10
	}
	if s.CompletedForm {
		score += 15
	}

	if lead != nil && funnel.TotalSteps > 0 {
		progress := float64(lead.CurrentStep) / float64(funnel.TotalSteps)
		if progress >= 0.25 {
			score += 2
		}
		if progress >= 0.5 {
			score += 3
		}
		if progress >= 0.75 {
			score += 5
		}
	}
	return score
}

func conversionSignalsScore(s *db.Session, now time.Time) float64 {
	score, ok := referrerPoints[s.ReferrerType]
	if !ok {
		score = 1
	}

	if s.UTMCampaign != "" {
		score += 3
	}
	if s.DeviceType == "desktop" {
		score += 2
	}

	// Business-hours bonus in the session's stored timezone. Most sessions
	// carry no timezone, so this is effectively UTC business hours.
	loc := time.UTC
	if s.Timezone != "" {
		if l, err := time.LoadLocation(s.Timezone); err == nil {
			loc = l
		}
	}
	hour := now.In(loc).Hour()
	if hour >= 9 && hour <= 18 {
		score += 2
	}

	return score
}

func returnVisitorScore(s *db.Session) float64 {
	var score float64
	if s.IsReturning {
		score += 3
	}
	score += stepPoints(s.PreviousSessionsCount,
		[]int{2, 3, 5},
		[]float64{2, 2, 3})
	return score
}

// Breakdown flattens a Result into the JSON snapshot persisted on the
// session record.
func Breakdown(r Result) map[string]interface{} {
	out := map[string]interface{}{
		"total": r.Total,
		"level": r.Level,
	}
	comps := map[string]interface{}{}
	for name, raw := range r.Components {
		comps[name] = map[string]interface{}{
			"raw":      raw,
			"weight":   componentWeights[name],
			"weighted": raw * componentWeights[name],
		}
	}
	out["components"] = comps
	return out
}
