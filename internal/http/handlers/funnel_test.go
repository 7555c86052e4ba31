package handlers

import (
	"testing"
	"time"

	dbpkg "leadpulse/internal/db"
	"leadpulse/internal/spam"
)

func TestApplyScreenedStepSpamLeavesFieldsUntouched(t *testing.T) {
	l := &dbpkg.Lead{Name: "Jane", Email: "jane@example.com", CurrentStep: 3}

	res := spam.Result{Score: 80, IsSpam: true, Reasons: []string{spam.ReasonHoneypot}}
	applyScreenedStep(l, res, "company", map[string]any{"company": "Acme"})

	if l.Company != "" {
		t.Errorf("company = %q, spam submission must not mutate funnel fields", l.Company)
	}
	if l.Name != "Jane" || l.Email != "jane@example.com" {
		t.Errorf("earlier clean fields changed: name=%q email=%q", l.Name, l.Email)
	}
	if l.CurrentStep != 3 {
		t.Errorf("current_step = %d, want unchanged 3", l.CurrentStep)
	}
	if !l.IsSpam || l.SpamScore != 80 {
		t.Errorf("verdict not persisted: is_spam=%v spam_score=%d", l.IsSpam, l.SpamScore)
	}
}

func TestApplyScreenedStepCleanAppliesStep(t *testing.T) {
	l := &dbpkg.Lead{CurrentStep: 1}

	applyScreenedStep(l, spam.Result{Score: 10}, "company", map[string]any{"company": "Acme"})

	if l.Company != "Acme" {
		t.Errorf("company = %q, want Acme", l.Company)
	}
	if l.CurrentStep != 4 {
		t.Errorf("current_step = %d, want 4", l.CurrentStep)
	}
	if l.IsSpam || l.SpamScore != 0 {
		t.Errorf("clean submission flagged: is_spam=%v spam_score=%d", l.IsSpam, l.SpamScore)
	}
}

func TestCompleteLeadTransitionsOnce(t *testing.T) {
	l := &dbpkg.Lead{Status: dbpkg.LeadInProgress}

	first := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	if !completeLead(l, first) {
		t.Fatal("first complete call must report the transition")
	}
	if l.Status != dbpkg.LeadCompleted || l.CompletedAt == nil || !l.CompletedAt.Equal(first) {
		t.Fatalf("lead not completed: status=%q completed_at=%v", l.Status, l.CompletedAt)
	}

	// Repeat calls are no-ops: no second transition, original timestamp kept.
	later := first.Add(time.Hour)
	if completeLead(l, later) {
		t.Error("repeat complete call must not report a transition")
	}
	if !l.CompletedAt.Equal(first) {
		t.Errorf("completed_at = %v, want original %v", l.CompletedAt, first)
	}
}

func TestApplyScreenedStepSpamFlagSticks(t *testing.T) {
	l := &dbpkg.Lead{IsSpam: true, SpamScore: 90, CurrentStep: 2}

	// A later clean-looking submission still applies its step, but the
	// earlier spam verdict is never cleared.
	applyScreenedStep(l, spam.Result{Score: 0}, "name", map[string]any{"name": "Totally Real"})

	if !l.IsSpam || l.SpamScore != 90 {
		t.Errorf("spam verdict cleared: is_spam=%v spam_score=%d", l.IsSpam, l.SpamScore)
	}
	if l.Name != "Totally Real" || l.CurrentStep != 2 {
		t.Errorf("step not applied: name=%q step=%d", l.Name, l.CurrentStep)
	}
}
