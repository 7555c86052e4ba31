// Package tracker holds the fixed derivation tables for page views and
// interaction events: page-type classification, per-event intent points,
// category and conversion/engagement membership, and the session flag side
// effects each event type carries.
package tracker

import (
	"strings"

	"leadpulse/internal/db"
)

// Page types derived from the path. Four of them feed visited_* session
// flags; everything else is a plain page.
const (
	PagePricing   = "pricing"
	PageServices  = "services"
	PagePortfolio = "portfolio"
	PageContact   = "contact"
	PageGeneric   = "page"
)

// Event types accepted on the tracking API.
const (
	EventClick         = "click"
	EventScroll        = "scroll"
	EventFormStart     = "form_start"
	EventFormSubmit    = "form_submit"
	EventCTAClick      = "cta_click"
	EventVideoPlay     = "video_play"
	EventVideoProgress = "video_progress"
	EventVideoComplete = "video_complete"
	EventShare         = "share"
	EventPageView      = "page_view"
)

// pageTypePrefixes is ordered; first match wins.
var pageTypePrefixes = []struct {
	prefix   string
	pageType string
}{
	{"/pricing", PagePricing},
	{"/services", PageServices},
	{"/portfolio", PagePortfolio},
	{"/contact", PageContact},
}

// PageTypeFor classifies a path via the fixed prefix rules.
func PageTypeFor(path string) string {
	p := strings.ToLower(path)
	for _, rule := range pageTypePrefixes {
		if strings.HasPrefix(p, rule.prefix) {
			return rule.pageType
		}
	}
	return PageGeneric
}

// MarkVisited sets the session's visited_* flag when the page type is one
// of the four tracked categories.
func MarkVisited(s *db.Session, pageType string) {
	switch pageType {
	case PagePricing:
		s.VisitedPricing = true
	case PageServices:
		s.VisitedServices = true
	case PagePortfolio:
		s.VisitedPortfolio = true
	case PageContact:
		s.VisitedContact = true
	}
}

var eventPoints = map[string]int{
	EventClick:         1,
	EventScroll:        1,
	EventFormStart:     10,
	EventFormSubmit:    15,
	EventCTAClick:      5,
	EventVideoPlay:     3,
	EventVideoProgress: 2,
	EventVideoComplete: 5,
	EventShare:         4,
	EventPageView:      1,
}

// EventPoints returns the fixed intent points awarded for an event type.
func EventPoints(eventType string) int {
	return eventPoints[eventType]
}

// MetricEventType maps an event type to its metric label, bucketing anything
// outside the fixed table as "other" so client-supplied strings cannot grow
// label cardinality.
func MetricEventType(eventType string) string {
	if _, ok := eventPoints[eventType]; ok {
		return eventType
	}
	return "other"
}

var conversionEvents = map[string]bool{
	EventFormStart:  true,
	EventFormSubmit: true,
	EventCTAClick:   true,
}

var engagementEvents = map[string]bool{
	EventScroll:        true,
	EventVideoPlay:     true,
	EventVideoProgress: true,
	EventVideoComplete: true,
	EventShare:         true,
	EventClick:         true,
}

func IsConversionEvent(eventType string) bool { return conversionEvents[eventType] }
func IsEngagementEvent(eventType string) bool { return engagementEvents[eventType] }

var eventCategories = map[string]string{
	EventClick:         "interaction",
	EventScroll:        "engagement",
	EventFormStart:     "conversion",
	EventFormSubmit:    "conversion",
	EventCTAClick:      "conversion",
	EventVideoPlay:     "media",
	EventVideoProgress: "media",
	EventVideoComplete: "media",
	EventShare:         "social",
	EventPageView:      "navigation",
}

// CategoryFor derives the event category when the client did not supply one.
func CategoryFor(eventType string) string {
	if c, ok := eventCategories[eventType]; ok {
		return c
	}
	return "interaction"
}

// ApplyEventFlags applies the type-specific session flag side effects. Runs
// inside the same transaction as the event write.
func ApplyEventFlags(s *db.Session, eventType string) {
	switch eventType {
	case EventCTAClick:
		s.ClickedCTA = true
	case EventVideoPlay, EventVideoComplete:
		s.WatchedVideo = true
	case EventFormStart:
		s.StartedForm = true
	case EventFormSubmit:
		s.CompletedForm = true
	}
}

// RaiseScrollDepth raises the session's scroll-depth high-water mark. The
// maximum never decreases, even when a later engagement update reports a
// shallower depth.
func RaiseScrollDepth(s *db.Session, depth int) {
	if depth > s.ScrollDepthMax {
		s.ScrollDepthMax = depth
	}
}

// bounceScrollThreshold: below this scroll depth with no interaction the
// page view counts as bounced.
const bounceScrollThreshold = 20

// ClassifyEngagement reclassifies a page view after an engagement update.
func ClassifyEngagement(pv *db.PageView) {
	if pv.Interacted || pv.ScrollDepth >= bounceScrollThreshold {
		pv.Bounced = false
	} else {
		pv.Bounced = true
	}
}
