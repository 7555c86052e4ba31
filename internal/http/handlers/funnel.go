package handlers

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	dbpkg "leadpulse/internal/db"
	"leadpulse/internal/funnel"
	httpctx "leadpulse/internal/http/ctx"
	"leadpulse/internal/intent"
	"leadpulse/internal/spam"
)

// Funnel rate limits, per identifier (IP for start, lead UUID otherwise).
const (
	funnelStartLimit     = 10
	funnelStartWindow    = time.Hour
	funnelStepLimit      = 60
	funnelStepWindow     = time.Minute
	funnelCompleteLimit  = 10
	funnelCompleteWindow = time.Minute
	funnelStatusLimit    = 30
	funnelStatusWindow   = time.Minute
)

// auditAttempt appends the audit row for one funnel API call. Every call is
// logged, including rate-limited ones.
func auditAttempt(d Deps, ctx *fasthttp.RequestCtx, leadUUID, action, stepID string, success, rateLimited bool, spamRes *spam.Result, payload map[string]any) {
	a := &dbpkg.LeadAttempt{
		LeadUUID:    leadUUID,
		Action:      action,
		StepID:      stepID,
		IP:          httpctx.ClientIPFromCtx(ctx),
		UserAgent:   string(ctx.Request.Header.Peek("User-Agent")),
		Success:     success,
		RateLimited: rateLimited,
		Payload:     dbpkg.SanitizeAttemptPayload(payload),
	}
	if spamRes != nil {
		a.IsSpam = spamRes.IsSpam
		a.SpamScore = spamRes.Score
		reasons := datatypes.JSONMap{}
		for _, r := range spamRes.Reasons {
			reasons[r] = true
		}
		a.SpamReasons = reasons
	}
	dbpkg.RecordAttempt(d.DB, a)
}

// classify builds the spam submission from the request and runs detection.
func classify(d Deps, ctx *fasthttp.RequestCtx, honeypot string, fillTimeMs *int64, email string) spam.Result {
	fill := int64(-1)
	if fillTimeMs != nil {
		fill = *fillTimeMs
	}
	res := d.Spam.Detect(ctx, spam.Submission{
		Honeypot:       honeypot,
		FillTimeMs:     fill,
		Email:          email,
		Body:           string(ctx.PostBody()),
		UserAgent:      string(ctx.Request.Header.Peek("User-Agent")),
		AcceptLanguage: string(ctx.Request.Header.Peek("Accept-Language")),
		IP:             httpctx.ClientIPFromCtx(ctx),
	})
	verdict := "clean"
	if res.IsSpam {
		verdict = "spam"
	}
	spamChecksTotal.WithLabelValues(verdict).Inc()
	return res
}

// applyScreenedStep applies one screened step submission to the lead. A
// spam-classified submission persists only the verdict and leaves every
// funnel field (including the step pointer) untouched; a clean one applies
// the step normally.
func applyScreenedStep(l *dbpkg.Lead, res spam.Result, stepID string, data map[string]any) {
	if res.IsSpam {
		l.IsSpam = true
		l.SpamScore = res.Score
		return
	}
	funnel.ApplyStep(l, stepID, data)
}

// completeLead marks the lead completed and reports whether this call made
// the transition. Completing twice is a no-op and keeps the original
// completion time.
func completeLead(l *dbpkg.Lead, now time.Time) bool {
	if l.Status == dbpkg.LeadCompleted {
		return false
	}
	l.Status = dbpkg.LeadCompleted
	l.CompletedAt = &now
	return true
}

// refreshLinkedSession rescores the session attached to a lead after funnel
// progress. Best effort: a failure here never fails the funnel call.
func refreshLinkedSession(d Deps, leadID uint) {
	s, err := dbpkg.SessionForLead(d.DB, leadID)
	if err != nil || s == nil {
		return
	}
	err = dbpkg.WithSession(d.DB, s.Token, func(tx *gorm.DB, s *dbpkg.Session) error {
		recomputeIntent(tx, s)
		return nil
	})
	if err != nil {
		log.Printf("failed to refresh intent for session %d: %v", s.ID, err)
	}
}

type funnelStartRequest struct {
	SourceSite   string `json:"source_site"`
	SessionToken string `json:"session_token"`
	Referrer     string `json:"referrer"`
	UTMSource    string `json:"utm_source"`
	UTMMedium    string `json:"utm_medium"`
	UTMCampaign  string `json:"utm_campaign"`
	UTMTerm      string `json:"utm_term"`
	UTMContent   string `json:"utm_content"`
}

// FunnelStart creates a lead for a new funnel attempt and links it to the
// visitor's session when a token is supplied.
func FunnelStart(d Deps) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req funnelStartRequest
		if err := decodeBody(ctx, &req); err != nil {
			writeFailure(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.SourceSite == "" {
			writeFieldErrors(ctx, map[string]string{"source_site": "required"})
			return
		}

		ip := httpctx.ClientIPFromCtx(ctx)
		if allowed, retry := d.Limiter.Allow(ctx, "funnel_start", ip, funnelStartLimit, funnelStartWindow); !allowed {
			rateLimitedTotal.WithLabelValues("funnel_start").Inc()
			auditAttempt(d, ctx, "", "start", "", false, true, nil, nil)
			writeRateLimited(ctx, retry)
			return
		}

		_, refType := intent.ClassifyReferrer(req.Referrer, req.UTMMedium)
		lead := dbpkg.Lead{
			UUID:         uuid.New(),
			Status:       dbpkg.LeadInProgress,
			CurrentStep:  1,
			SourceSite:   req.SourceSite,
			ReferrerURL:  req.Referrer,
			ReferrerType: refType,
			UTMSource:    req.UTMSource,
			UTMMedium:    req.UTMMedium,
			UTMCampaign:  req.UTMCampaign,
			UTMTerm:      req.UTMTerm,
			UTMContent:   req.UTMContent,
		}

		if loc, err := d.Geo.Lookup(ctx, ip); err != nil {
			log.Printf("geoip lookup failed for %s: %v", ip, err)
		} else {
			lead.Country = loc.Country
			lead.City = loc.City
		}

		if err := d.DB.Create(&lead).Error; err != nil {
			writeFailure(ctx, fasthttp.StatusInternalServerError, "failed to create lead")
			return
		}

		if req.SessionToken != "" {
			err := dbpkg.WithSession(d.DB, req.SessionToken, func(tx *gorm.DB, s *dbpkg.Session) error {
				s.LeadID = &lead.ID
				s.LastActivityAt = time.Now()
				recomputeIntent(tx, s)
				return nil
			})
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("failed to link lead %s to session: %v", lead.UUID, err)
			}
		}

		auditAttempt(d, ctx, lead.UUID.String(), "start", "", true, false, nil, map[string]any{"source_site": req.SourceSite})
		funnelLeadsTotal.WithLabelValues(req.SourceSite, dbpkg.LeadInProgress).Inc()
		writeSuccess(ctx, map[string]any{
			"lead_id":      lead.UUID.String(),
			"current_step": lead.CurrentStep,
			"total_steps":  funnel.TotalSteps,
		})
	}
}

type funnelStepRequest struct {
	Step       string         `json:"step"`
	Data       map[string]any `json:"data"`
	Honeypot   string         `json:"website_url_confirm"`
	FillTimeMs *int64         `json:"fill_time_ms"`
}

// FunnelStep applies one step submission after spam screening. A
// spam-classified submission still returns success, so detection is never
// revealed, but leaves the lead's funnel fields untouched; only the spam
// verdict is persisted.
func FunnelStep(d Deps) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		leadUUID, ok := leadUUIDFromPath(ctx)
		if !ok {
			return
		}

		var req funnelStepRequest
		if err := decodeBody(ctx, &req); err != nil {
			writeFailure(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Step == "" {
			writeFieldErrors(ctx, map[string]string{"step": "required"})
			return
		}

		if allowed, retry := d.Limiter.Allow(ctx, "funnel_step", leadUUID.String(), funnelStepLimit, funnelStepWindow); !allowed {
			rateLimitedTotal.WithLabelValues("funnel_step").Inc()
			auditAttempt(d, ctx, leadUUID.String(), "step", req.Step, false, true, nil, req.Data)
			writeRateLimited(ctx, retry)
			return
		}

		email, _ := req.Data["email"].(string)
		spamRes := classify(d, ctx, req.Honeypot, req.FillTimeMs, email)

		var lead *dbpkg.Lead
		err := dbpkg.WithLead(d.DB, leadUUID, func(tx *gorm.DB, l *dbpkg.Lead) error {
			applyScreenedStep(l, spamRes, req.Step, req.Data)
			lead = l
			return nil
		})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				auditAttempt(d, ctx, leadUUID.String(), "step", req.Step, false, false, &spamRes, req.Data)
				notFound(ctx, "lead")
				return
			}
			writeFailure(ctx, fasthttp.StatusInternalServerError, "failed to apply step")
			return
		}

		auditAttempt(d, ctx, leadUUID.String(), "step", req.Step, true, false, &spamRes, req.Data)
		if !spamRes.IsSpam {
			refreshLinkedSession(d, lead.ID)
		}

		writeSuccess(ctx, map[string]any{"lead_id": leadUUID.String()})
	}
}

type funnelCompleteRequest struct {
	Honeypot   string `json:"website_url_confirm"`
	FillTimeMs *int64 `json:"fill_time_ms"`
}

// FunnelComplete marks the lead completed. Spam-classified completions are
// still marked completed (no terminal rejected state exists) but the
// outbound notification is suppressed.
func FunnelComplete(d Deps) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		leadUUID, ok := leadUUIDFromPath(ctx)
		if !ok {
			return
		}

		var req funnelCompleteRequest
		if err := decodeBody(ctx, &req); err != nil {
			writeFailure(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}

		if allowed, retry := d.Limiter.Allow(ctx, "funnel_complete", leadUUID.String(), funnelCompleteLimit, funnelCompleteWindow); !allowed {
			rateLimitedTotal.WithLabelValues("funnel_complete").Inc()
			auditAttempt(d, ctx, leadUUID.String(), "complete", "", false, true, nil, nil)
			writeRateLimited(ctx, retry)
			return
		}

		spamRes := classify(d, ctx, req.Honeypot, req.FillTimeMs, "")

		var lead *dbpkg.Lead
		var transitioned bool
		err := dbpkg.WithLead(d.DB, leadUUID, func(tx *gorm.DB, l *dbpkg.Lead) error {
			if spamRes.IsSpam {
				l.IsSpam = true
				l.SpamScore = spamRes.Score
			}
			transitioned = completeLead(l, time.Now())
			lead = l
			return nil
		})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				auditAttempt(d, ctx, leadUUID.String(), "complete", "", false, false, &spamRes, nil)
				notFound(ctx, "lead")
				return
			}
			writeFailure(ctx, fasthttp.StatusInternalServerError, "failed to complete lead")
			return
		}

		auditAttempt(d, ctx, leadUUID.String(), "complete", "", true, false, &spamRes, nil)
		if transitioned {
			funnelLeadsTotal.WithLabelValues(lead.SourceSite, dbpkg.LeadCompleted).Inc()
		}
		refreshLinkedSession(d, lead.ID)

		// Notification only for trustworthy leads; failures never surface.
		if !lead.IsSpam {
			if err := d.Notify.NotifyNewLead(lead); err != nil {
				log.Printf("lead notification failed for %s: %v", lead.UUID, err)
			}
		}

		writeSuccess(ctx, map[string]any{"lead_id": leadUUID.String(), "status": lead.Status})
	}
}

// FunnelStatus reports funnel progress. The spam verdict is internal and
// never included.
func FunnelStatus(d Deps) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		leadUUID, ok := leadUUIDFromPath(ctx)
		if !ok {
			return
		}

		if allowed, retry := d.Limiter.Allow(ctx, "funnel_status", leadUUID.String(), funnelStatusLimit, funnelStatusWindow); !allowed {
			rateLimitedTotal.WithLabelValues("funnel_status").Inc()
			auditAttempt(d, ctx, leadUUID.String(), "status", "", false, true, nil, nil)
			writeRateLimited(ctx, retry)
			return
		}

		lead, err := dbpkg.FindLeadByUUID(d.DB, leadUUID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				notFound(ctx, "lead")
				return
			}
			writeFailure(ctx, fasthttp.StatusInternalServerError, "database error")
			return
		}

		auditAttempt(d, ctx, leadUUID.String(), "status", "", true, false, nil, nil)
		writeSuccess(ctx, map[string]any{
			"lead_id":      lead.UUID.String(),
			"status":       lead.Status,
			"current_step": lead.CurrentStep,
			"total_steps":  funnel.TotalSteps,
		})
	}
}

func leadUUIDFromPath(ctx *fasthttp.RequestCtx) (uuid.UUID, bool) {
	raw, _ := ctx.UserValue("uuid").(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		writeFailure(ctx, fasthttp.StatusNotFound, "lead not found")
		return uuid.UUID{}, false
	}
	return id, true
}
