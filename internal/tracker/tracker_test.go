package tracker

import (
	"testing"

	"leadpulse/internal/db"
)

func TestPageTypeFor(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/pricing", PagePricing},
		{"/pricing/enterprise", PagePricing},
		{"/Services", PageServices},
		{"/services/web-design", PageServices},
		{"/portfolio", PagePortfolio},
		{"/contact", PageContact},
		{"/contact-us", PageContact},
		{"/", PageGeneric},
		{"/about", PageGeneric},
		{"/blog/pricing-strategies", PageGeneric},
	}
	for _, tt := range tests {
		if got := PageTypeFor(tt.path); got != tt.want {
			t.Errorf("PageTypeFor(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestMarkVisited(t *testing.T) {
	s := &db.Session{}

	MarkVisited(s, PagePricing)
	MarkVisited(s, PageContact)
	MarkVisited(s, PageGeneric)

	if !s.VisitedPricing || !s.VisitedContact {
		t.Error("tracked categories not flagged")
	}
	if s.VisitedServices || s.VisitedPortfolio {
		t.Error("unvisited categories flagged")
	}
}

func TestEventPoints(t *testing.T) {
	tests := []struct {
		eventType string
		want      int
	}{
		{EventFormSubmit, 15},
		{EventFormStart, 10},
		{EventCTAClick, 5},
		{EventClick, 1},
		{"unknown_type", 0},
	}
	for _, tt := range tests {
		if got := EventPoints(tt.eventType); got != tt.want {
			t.Errorf("EventPoints(%q) = %d, want %d", tt.eventType, got, tt.want)
		}
	}
}

func TestEventClassification(t *testing.T) {
	if !IsConversionEvent(EventFormSubmit) || !IsConversionEvent(EventCTAClick) {
		t.Error("form_submit and cta_click are conversion events")
	}
	if IsConversionEvent(EventScroll) {
		t.Error("scroll is not a conversion event")
	}
	if !IsEngagementEvent(EventVideoPlay) || !IsEngagementEvent(EventScroll) {
		t.Error("video_play and scroll are engagement events")
	}
	if IsEngagementEvent(EventFormSubmit) {
		t.Error("form_submit is not an engagement event")
	}
}

func TestMetricEventType(t *testing.T) {
	tests := []struct {
		eventType string
		want      string
	}{
		{EventClick, EventClick},
		{EventFormSubmit, EventFormSubmit},
		{"made_up_event", "other"},
		{"", "other"},
		{"click'; DROP TABLE events;--", "other"},
	}
	for _, tt := range tests {
		if got := MetricEventType(tt.eventType); got != tt.want {
			t.Errorf("MetricEventType(%q) = %q, want %q", tt.eventType, got, tt.want)
		}
	}
}

func TestCategoryFor(t *testing.T) {
	if got := CategoryFor(EventVideoPlay); got != "media" {
		t.Errorf("CategoryFor(video_play) = %q, want media", got)
	}
	if got := CategoryFor("something_new"); got != "interaction" {
		t.Errorf("CategoryFor(unknown) = %q, want interaction default", got)
	}
}

func TestApplyEventFlags(t *testing.T) {
	s := &db.Session{}

	ApplyEventFlags(s, EventCTAClick)
	ApplyEventFlags(s, EventVideoPlay)
	ApplyEventFlags(s, EventFormStart)
	ApplyEventFlags(s, EventFormSubmit)

	if !s.ClickedCTA || !s.WatchedVideo || !s.StartedForm || !s.CompletedForm {
		t.Errorf("flags not applied: %+v", s)
	}

	// Plain clicks carry no flag side effects.
	s2 := &db.Session{}
	ApplyEventFlags(s2, EventClick)
	if s2.ClickedCTA || s2.WatchedVideo || s2.StartedForm || s2.CompletedForm {
		t.Error("click must not set any flag")
	}
}

func TestRaiseScrollDepthNeverDecreases(t *testing.T) {
	s := &db.Session{}

	// Engagement updates arrive out of order; the high-water mark must
	// only ever rise.
	updates := []struct {
		depth int
		want  int
	}{
		{30, 30},
		{75, 75},
		{40, 75},
		{75, 75},
		{10, 75},
		{0, 75},
		{90, 90},
	}
	for _, u := range updates {
		RaiseScrollDepth(s, u.depth)
		if s.ScrollDepthMax != u.want {
			t.Errorf("after update %d: scroll_depth_max = %d, want %d", u.depth, s.ScrollDepthMax, u.want)
		}
	}
}

func TestClassifyEngagement(t *testing.T) {
	tests := []struct {
		name        string
		scroll      int
		interacted  bool
		wantBounced bool
	}{
		{"shallow and passive", 10, false, true},
		{"deep scroll", 40, false, false},
		{"interacted despite shallow scroll", 5, true, false},
		{"exactly at threshold", 20, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pv := &db.PageView{ScrollDepth: tt.scroll, Interacted: tt.interacted}
			ClassifyEngagement(pv)
			if pv.Bounced != tt.wantBounced {
				t.Errorf("bounced = %v, want %v", pv.Bounced, tt.wantBounced)
			}
		})
	}
}
