// Package funnel applies lead-capture step submissions to a lead record.
// The step-to-field mapping is a deliberate, reviewable finite table; new
// step types are added here, never via reflection.
package funnel

import (
	"strings"

	"gorm.io/datatypes"

	"leadpulse/internal/db"
)

// Funnel step identifiers in submission order.
const (
	StepWelcome   = "welcome"
	StepName      = "name"
	StepEmail     = "email"
	StepCompany   = "company"
	StepWebsite   = "website"
	StepIndustry  = "industry"
	StepServices  = "services"
	StepMessage   = "message"
	StepDiscovery = "discovery"
)

// TotalSteps is the number of steps in the funnel, used for the
// form-progress intent bonus.
const TotalSteps = 9

var stepNumbers = map[string]int{
	StepWelcome:   1,
	StepName:      2,
	StepEmail:     3,
	StepCompany:   4,
	StepWebsite:   5,
	StepIndustry:  6,
	StepServices:  7,
	StepMessage:   8,
	StepDiscovery: 9,
}

// StepNumber returns the 1-based position of a step, or 0 for unknown steps.
func StepNumber(stepID string) int {
	return stepNumbers[stepID]
}

var stepAppliers = map[string]func(l *db.Lead, payload map[string]any){
	StepWelcome: func(l *db.Lead, p map[string]any) {
		if v, ok := boolField(p, "terms_accepted"); ok {
			l.TermsAccepted = v
		}
	},
	StepName: func(l *db.Lead, p map[string]any) {
		if v, ok := strField(p, "name"); ok {
			l.Name = v
		}
	},
	StepEmail: func(l *db.Lead, p map[string]any) {
		if v, ok := strField(p, "email"); ok {
			l.Email = strings.ToLower(strings.TrimSpace(v))
		}
	},
	StepCompany: func(l *db.Lead, p map[string]any) {
		if v, ok := strField(p, "company"); ok {
			l.Company = v
		}
	},
	StepWebsite: func(l *db.Lead, p map[string]any) {
		if v, ok := boolField(p, "has_website"); ok {
			l.HasWebsite = &v
		}
		if v, ok := strField(p, "website_url"); ok {
			l.WebsiteURL = v
		}
	},
	StepIndustry: func(l *db.Lead, p map[string]any) {
		if v, ok := strField(p, "industry"); ok {
			l.Industry = v
		}
		if v, ok := strField(p, "other_industry"); ok {
			l.OtherIndustry = v
		}
	},
	StepServices: func(l *db.Lead, p map[string]any) {
		if raw, ok := p["services"].([]any); ok {
			services := make([]string, 0, len(raw))
			for _, item := range raw {
				if s, ok := item.(string); ok {
					services = append(services, s)
				}
			}
			l.Services = services
		}
	},
	StepMessage: func(l *db.Lead, p map[string]any) {
		if v, ok := strField(p, "message"); ok {
			l.Message = v
		}
	},
	StepDiscovery: func(l *db.Lead, p map[string]any) {
		answers, ok := p["answers"].(map[string]any)
		if !ok {
			answers = p
		}
		if l.DiscoveryAnswers == nil {
			l.DiscoveryAnswers = datatypes.JSONMap{}
		}
		// Shallow merge, last write wins per key.
		for k, v := range answers {
			l.DiscoveryAnswers[k] = v
		}
	},
}

// ApplyStep applies a step submission to the lead. Unknown step IDs are a
// no-op so newer clients stay compatible with older servers. The current
// step pointer only ever moves forward, even when a user navigates back and
// resubmits an earlier step.
func ApplyStep(l *db.Lead, stepID string, payload map[string]any) {
	apply, ok := stepAppliers[stepID]
	if !ok {
		return
	}
	apply(l, payload)

	if n := stepNumbers[stepID]; n > l.CurrentStep {
		l.CurrentStep = n
	}
}

func strField(p map[string]any, key string) (string, bool) {
	v, ok := p[key].(string)
	return v, ok
}

func boolField(p map[string]any, key string) (bool, bool) {
	v, ok := p[key].(bool)
	return v, ok
}
