package intent

import (
	"reflect"
	"testing"
	"time"

	"leadpulse/internal/db"
)

// offHours is outside the 9-18 UTC business-hours window.
var offHours = time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC)

func TestLevelBoundaries(t *testing.T) {
	tests := []struct {
		total float64
		want  string
	}{
		{0, LevelCold},
		{19.99, LevelCold},
		{20.00, LevelWarm},
		{49.99, LevelWarm},
		{50.00, LevelHot},
		{79.99, LevelHot},
		{80.00, LevelQualified},
		{100, LevelQualified},
	}
	for _, tt := range tests {
		if got := LevelFor(tt.total); got != tt.want {
			t.Errorf("LevelFor(%v) = %q, want %q", tt.total, got, tt.want)
		}
	}
}

func TestScoreEmptySession(t *testing.T) {
	s := &db.Session{}
	res := ScoreAt(s, nil, offHours)

	if res.Total < 0 || res.Total > 100 {
		t.Fatalf("total %v out of [0,100]", res.Total)
	}
	if res.Level != LevelCold {
		t.Errorf("empty session level = %q, want cold", res.Level)
	}
	// Only the conversion-signals default referrer point applies (weight 4).
	if got := res.Components["conversion_signals"]; got != 1 {
		t.Errorf("conversion_signals = %v, want 1", got)
	}
}

func TestScoreIdempotent(t *testing.T) {
	s := &db.Session{
		PageViewsCount:     4,
		VisitedPricing:     true,
		TotalTimeSeconds:   200,
		EngagedTimeSeconds: 150,
		ScrollDepthMax:     70,
		EventsCount:        12,
		ClickedCTA:         true,
		ReferrerType:       ReferrerOrganic,
		DeviceType:         "desktop",
	}

	first := ScoreAt(s, nil, offHours)
	second := ScoreAt(s, nil, offHours)

	if first.Total != second.Total || first.Level != second.Level {
		t.Fatalf("score not idempotent: %v/%s vs %v/%s", first.Total, first.Level, second.Total, second.Level)
	}
	if !reflect.DeepEqual(first.Components, second.Components) {
		t.Fatalf("components differ across identical calls: %v vs %v", first.Components, second.Components)
	}
}

func TestScoreClampedAt100(t *testing.T) {
	s := &db.Session{
		PageViewsCount:        20,
		VisitedPricing:        true,
		VisitedServices:       true,
		VisitedPortfolio:      true,
		VisitedContact:        true,
		TotalTimeSeconds:      1000,
		EngagedTimeSeconds:    900,
		ScrollDepthMax:        100,
		EventsCount:           100,
		WatchedVideo:          true,
		ClickedCTA:            true,
		StartedForm:           true,
		CompletedForm:         true,
		ReferrerType:          ReferrerPaid,
		UTMCampaign:           "spring",
		DeviceType:            "desktop",
		IsReturning:           true,
		PreviousSessionsCount: 10,
	}
	lead := &db.Lead{CurrentStep: 9}

	res := ScoreAt(s, lead, offHours)
	if res.Total != 100 {
		t.Fatalf("maxed session total = %v, want 100", res.Total)
	}
	if res.Level != LevelQualified {
		t.Errorf("maxed session level = %q, want qualified", res.Level)
	}

	// Every component must respect its raw cap.
	for name, raw := range res.Components {
		if limit := componentCaps[name]; raw > limit {
			t.Errorf("component %s = %v exceeds cap %v", name, raw, limit)
		}
	}
}

// A single pricing visit with solid dwell time and a completed form should
// already max out the score through the heavily weighted form component.
func TestScorePricingFormScenario(t *testing.T) {
	s := &db.Session{
		PageViewsCount:     1,
		VisitedPricing:     true,
		TotalTimeSeconds:   65,
		EngagedTimeSeconds: 50,
		ScrollDepthMax:     80,
		StartedForm:        true,
		CompletedForm:      true,
		ReferrerType:       ReferrerDirect,
		DeviceType:         "desktop",
	}

	res := ScoreAt(s, nil, offHours)

	wantComponents := map[string]float64{
		"page_views":         5,  // 1 view (+2) + pricing bonus (+3)
		"time_on_site":       8,  // 30s and 60s thresholds (+4) + engaged ratio >=0.5 and >=0.7 (+4)
		"engagement":         6,  // scroll 80 crosses 25/50/75
		"form_interaction":   25, // started (+10) + completed (+15)
		"conversion_signals": 4,  // direct (+2) + desktop (+2), off hours
		"return_visitor":     0,
	}
	for name, want := range wantComponents {
		if got := res.Components[name]; got != want {
			t.Errorf("component %s = %v, want %v", name, got, want)
		}
	}

	// 5*1 + 8*1.5 + 6*2 + 25*3 + 4*4 + 0*1.5 = 120, clamped to 100.
	if res.Total != 100 {
		t.Errorf("total = %v, want 100", res.Total)
	}
	if res.Level != LevelQualified {
		t.Errorf("level = %q, want qualified", res.Level)
	}
}

func TestBusinessHoursBonus(t *testing.T) {
	s := &db.Session{ReferrerType: ReferrerDirect}

	during := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	if got := ScoreAt(s, nil, during).Components["conversion_signals"]; got != 4 {
		t.Errorf("business hours conversion_signals = %v, want 4", got)
	}
	if got := ScoreAt(s, nil, offHours).Components["conversion_signals"]; got != 2 {
		t.Errorf("off hours conversion_signals = %v, want 2", got)
	}
}

func TestFormProgressBonus(t *testing.T) {
	s := &db.Session{}
	tests := []struct {
		step int
		want float64
	}{
		{0, 0},
		{2, 0},  // 2/9 < 25%
		{3, 2},  // 33%
		{5, 5},  // 55% -> +2 +3
		{7, 10}, // 77% -> +2 +3 +5
		{9, 10},
	}
	for _, tt := range tests {
		lead := &db.Lead{CurrentStep: tt.step}
		if got := ScoreAt(s, lead, offHours).Components["form_interaction"]; got != tt.want {
			t.Errorf("form_interaction at step %d = %v, want %v", tt.step, got, tt.want)
		}
	}
}

func TestReturnVisitorComponent(t *testing.T) {
	tests := []struct {
		returning bool
		previous  int
		want      float64
	}{
		{false, 0, 0},
		{true, 1, 3},
		{true, 2, 5},
		{true, 3, 7},
		{true, 5, 10},
		{true, 50, 10}, // capped
	}
	for _, tt := range tests {
		s := &db.Session{IsReturning: tt.returning, PreviousSessionsCount: tt.previous}
		if got := ScoreAt(s, nil, offHours).Components["return_visitor"]; got != tt.want {
			t.Errorf("return_visitor(returning=%v, prev=%d) = %v, want %v",
				tt.returning, tt.previous, got, tt.want)
		}
	}
}

func TestTimeOnSiteSteps(t *testing.T) {
	tests := []struct {
		seconds int
		want    float64
	}{
		{0, 0},
		{29, 0},
		{30, 2},
		{60, 4},
		{120, 6},
		{180, 8},
		{300, 11},
		{600, 15},
		{9999, 15}, // capped
	}
	for _, tt := range tests {
		s := &db.Session{TotalTimeSeconds: tt.seconds}
		if got := ScoreAt(s, nil, offHours).Components["time_on_site"]; got != tt.want {
			t.Errorf("time_on_site(%ds) = %v, want %v", tt.seconds, got, tt.want)
		}
	}
}
