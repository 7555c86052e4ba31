package handlers

import (
	"errors"
	"log"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	dbpkg "leadpulse/internal/db"
	httpctx "leadpulse/internal/http/ctx"
	"leadpulse/internal/intent"
	"leadpulse/internal/tracker"
)

// Tracking rate limits. Session creation is tighter than the per-event
// calls, which only exist as defense in depth and must stay generous.
const (
	sessionInitLimit  = 60
	sessionInitWindow = time.Hour
	trackCallLimit    = 300
	trackCallWindow   = time.Minute
)

// recomputeIntent rescores the session from its current counters and
// persists the snapshot fields. Runs inside the caller's transaction so the
// score is never stale relative to the mutation that triggered it.
func recomputeIntent(tx *gorm.DB, s *dbpkg.Session) {
	var lead *dbpkg.Lead
	if s.LeadID != nil {
		var l dbpkg.Lead
		if err := tx.First(&l, *s.LeadID).Error; err == nil {
			lead = &l
		}
	}

	res := intent.Score(s, lead)
	s.IntentScore = res.Total
	s.IntentLevel = res.Level
	s.IntentBreakdown = datatypes.JSONMap(intent.Breakdown(res))
	intentScores.WithLabelValues(res.Level).Observe(res.Total)
}

type sessionInitRequest struct {
	VisitorID    string `json:"visitor_id"`
	SessionToken string `json:"session_token"`
	LandingPage  string `json:"landing_page"`
	Referrer     string `json:"referrer"`
	UTMSource    string `json:"utm_source"`
	UTMMedium    string `json:"utm_medium"`
	UTMCampaign  string `json:"utm_campaign"`
	UTMTerm      string `json:"utm_term"`
	UTMContent   string `json:"utm_content"`
	Locale       string `json:"locale"`
	Timezone     string `json:"timezone"`
}

// SessionInit creates a session, or resumes one when a valid non-expired
// token is presented.
func SessionInit(d Deps) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req sessionInitRequest
		if err := decodeBody(ctx, &req); err != nil {
			writeFailure(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.LandingPage == "" {
			writeFieldErrors(ctx, map[string]string{"landing_page": "required"})
			return
		}

		ip := httpctx.ClientIPFromCtx(ctx)
		if allowed, retry := d.Limiter.Allow(ctx, "session_init", ip, sessionInitLimit, sessionInitWindow); !allowed {
			rateLimitedTotal.WithLabelValues("session_init").Inc()
			writeRateLimited(ctx, retry)
			return
		}

		// Resume when the token still points at a live session.
		existing, err := dbpkg.FindResumableSession(d.DB, req.SessionToken, d.SessionWindow())
		if err != nil {
			writeFailure(ctx, fasthttp.StatusInternalServerError, "database error")
			return
		}
		if existing != nil {
			if err := d.DB.Model(existing).Update("last_activity_at", time.Now()).Error; err != nil {
				writeFailure(ctx, fasthttp.StatusInternalServerError, "database error")
				return
			}
			trackRequestsTotal.WithLabelValues("session_init", "resumed").Inc()
			writeSuccess(ctx, map[string]any{
				"session_token": existing.Token,
				"session_id":    existing.ID,
				"resumed":       true,
				"is_returning":  existing.IsReturning,
			})
			return
		}

		visitorID := req.VisitorID
		if visitorID == "" {
			visitorID = uuid.NewString()
		}

		prior, err := dbpkg.CountVisitorSessions(d.DB, visitorID)
		if err != nil {
			writeFailure(ctx, fasthttp.StatusInternalServerError, "database error")
			return
		}

		userAgent := string(ctx.Request.Header.Peek("User-Agent"))
		refDomain, refType := intent.ClassifyReferrer(req.Referrer, req.UTMMedium)

		now := time.Now()
		s := dbpkg.Session{
			Token:                 dbpkg.NewSessionToken(),
			VisitorID:             visitorID,
			Status:                dbpkg.SessionActive,
			FirstSeenAt:           now,
			StartedAt:             now,
			LastActivityAt:        now,
			IsReturning:           prior > 0,
			PreviousSessionsCount: int(prior),
			LandingPage:           req.LandingPage,
			ReferrerURL:           req.Referrer,
			ReferrerDomain:        refDomain,
			ReferrerType:          refType,
			UTMSource:             req.UTMSource,
			UTMMedium:             req.UTMMedium,
			UTMCampaign:           req.UTMCampaign,
			UTMTerm:               req.UTMTerm,
			UTMContent:            req.UTMContent,
			DeviceType:            intent.DeviceTypeFor(userAgent),
			UserAgent:             userAgent,
			Locale:                req.Locale,
			Timezone:              req.Timezone,
		}

		// Geolocation is best-effort: partial or empty results are fine.
		if loc, err := d.Geo.Lookup(ctx, ip); err != nil {
			log.Printf("geoip lookup failed for %s: %v", ip, err)
		} else {
			s.Country = loc.Country
			s.CountryName = loc.CountryName
			s.City = loc.City
			s.Region = loc.Region
			if s.Timezone == "" {
				s.Timezone = loc.Timezone
			}
		}

		recomputeIntent(d.DB, &s)

		if err := d.DB.Create(&s).Error; err != nil {
			writeFailure(ctx, fasthttp.StatusInternalServerError, "failed to create session")
			return
		}

		trackRequestsTotal.WithLabelValues("session_init", "created").Inc()
		writeSuccess(ctx, map[string]any{
			"session_token": s.Token,
			"session_id":    s.ID,
			"resumed":       false,
			"is_returning":  s.IsReturning,
		})
	}
}

type pageViewRequest struct {
	SessionToken   string `json:"session_token"`
	URL            string `json:"url"`
	Path           string `json:"path"`
	Title          string `json:"title"`
	PreviousURL    string `json:"previous_url"`
	ViewportWidth  int    `json:"viewport_width"`
	ViewportHeight int    `json:"viewport_height"`
	LoadTimeMs     int    `json:"load_time_ms"`
}

// PageView closes the session's open page view and records the new one,
// updating the session's counters, visited flags and intent score in the
// same transaction.
func PageView(d Deps) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req pageViewRequest
		if err := decodeBody(ctx, &req); err != nil {
			writeFailure(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.URL == "" {
			writeFieldErrors(ctx, map[string]string{"url": "required"})
			return
		}

		ip := httpctx.ClientIPFromCtx(ctx)
		if allowed, retry := d.Limiter.Allow(ctx, "track", ip, trackCallLimit, trackCallWindow); !allowed {
			rateLimitedTotal.WithLabelValues("track").Inc()
			writeRateLimited(ctx, retry)
			return
		}

		path := req.Path
		if path == "" {
			if u, err := url.Parse(req.URL); err == nil {
				path = u.Path
			}
		}

		var created dbpkg.PageView
		err := dbpkg.WithSession(d.DB, req.SessionToken, func(tx *gorm.DB, s *dbpkg.Session) error {
			now := time.Now()

			// Close the previous page view; its duration and scroll metrics
			// arrive later via the engagement-update call.
			if open, err := dbpkg.OpenPageView(tx, s.ID); err != nil {
				return err
			} else if open != nil {
				if err := tx.Model(open).Update("exited_at", now).Error; err != nil {
					return err
				}
			}

			pageType := tracker.PageTypeFor(path)
			created = dbpkg.PageView{
				SessionID:      s.ID,
				URL:            req.URL,
				Path:           path,
				PageType:       pageType,
				Title:          req.Title,
				PreviousURL:    req.PreviousURL,
				ViewportWidth:  req.ViewportWidth,
				ViewportHeight: req.ViewportHeight,
				LoadTimeMs:     req.LoadTimeMs,
				EnteredAt:      now,
			}
			if err := tx.Create(&created).Error; err != nil {
				return err
			}

			s.PageViewsCount++
			s.LastActivityAt = now
			tracker.MarkVisited(s, pageType)
			recomputeIntent(tx, s)
			return nil
		})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				trackRequestsTotal.WithLabelValues("page_view", "not_found").Inc()
				notFound(ctx, "session")
				return
			}
			writeFailure(ctx, fasthttp.StatusInternalServerError, "failed to record page view")
			return
		}

		trackRequestsTotal.WithLabelValues("page_view", "ok").Inc()
		eventsTotal.WithLabelValues(tracker.EventPageView).Inc()
		writeSuccess(ctx, map[string]any{"page_view_id": created.ID})
	}
}

type eventRequest struct {
	SessionToken    string `json:"session_token"`
	EventType       string `json:"event_type"`
	Category        string `json:"category"`
	PageViewID      *uint  `json:"page_view_id"`
	ElementID       string `json:"element_id"`
	ElementText     string `json:"element_text"`
	ClickX          int    `json:"click_x"`
	ClickY          int    `json:"click_y"`
	ScrollPercent   int    `json:"scroll_percent"`
	MsSincePageLoad int64  `json:"ms_since_page_load"`
}

// TrackEvent appends an interaction event and applies its type-specific
// session side effects atomically with the write.
func TrackEvent(d Deps) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req eventRequest
		if err := decodeBody(ctx, &req); err != nil {
			writeFailure(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.EventType == "" {
			writeFieldErrors(ctx, map[string]string{"event_type": "required"})
			return
		}

		ip := httpctx.ClientIPFromCtx(ctx)
		if allowed, retry := d.Limiter.Allow(ctx, "track", ip, trackCallLimit, trackCallWindow); !allowed {
			rateLimitedTotal.WithLabelValues("track").Inc()
			writeRateLimited(ctx, retry)
			return
		}

		var created dbpkg.Event
		err := dbpkg.WithSession(d.DB, req.SessionToken, func(tx *gorm.DB, s *dbpkg.Session) error {
			now := time.Now()

			category := req.Category
			if category == "" {
				category = tracker.CategoryFor(req.EventType)
			}

			created = dbpkg.Event{
				SessionID:                s.ID,
				PageViewID:               req.PageViewID,
				Type:                     req.EventType,
				Category:                 category,
				ElementID:                req.ElementID,
				ElementText:              req.ElementText,
				ClickX:                   req.ClickX,
				ClickY:                   req.ClickY,
				ScrollPercent:            req.ScrollPercent,
				IntentPoints:             tracker.EventPoints(req.EventType),
				IsConversionEvent:        tracker.IsConversionEvent(req.EventType),
				IsEngagementEvent:        tracker.IsEngagementEvent(req.EventType),
				OccurredAt:               now,
				MsSincePageLoad:          req.MsSincePageLoad,
				SecondsSinceSessionStart: int64(now.Sub(s.StartedAt).Seconds()),
			}
			if err := tx.Create(&created).Error; err != nil {
				return err
			}

			s.EventsCount++
			s.LastActivityAt = now
			tracker.ApplyEventFlags(s, req.EventType)
			recomputeIntent(tx, s)
			return nil
		})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				trackRequestsTotal.WithLabelValues("event", "not_found").Inc()
				notFound(ctx, "session")
				return
			}
			writeFailure(ctx, fasthttp.StatusInternalServerError, "failed to record event")
			return
		}

		trackRequestsTotal.WithLabelValues("event", "ok").Inc()
		eventsTotal.WithLabelValues(tracker.MetricEventType(req.EventType)).Inc()
		writeSuccess(ctx, map[string]any{"event_id": created.ID})
	}
}

type engagementRequest struct {
	SessionToken       string `json:"session_token"`
	PageViewID         uint   `json:"page_view_id"`
	TimeOnPageSeconds  int    `json:"time_on_page_seconds"`
	EngagedTimeSeconds int    `json:"engaged_time_seconds"`
	ScrollDepth        int    `json:"scroll_depth"`
	Interacted         bool   `json:"interacted"`
}

// Engagement fills in a page view's dwell metrics, reclassifies it as
// bounced or interacted, and refreshes the session's running totals. The
// session's scroll depth maximum only ever rises.
func Engagement(d Deps) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req engagementRequest
		if err := decodeBody(ctx, &req); err != nil {
			writeFailure(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.PageViewID == 0 {
			writeFieldErrors(ctx, map[string]string{"page_view_id": "required"})
			return
		}

		ip := httpctx.ClientIPFromCtx(ctx)
		if allowed, retry := d.Limiter.Allow(ctx, "track", ip, trackCallLimit, trackCallWindow); !allowed {
			rateLimitedTotal.WithLabelValues("track").Inc()
			writeRateLimited(ctx, retry)
			return
		}

		err := dbpkg.WithSession(d.DB, req.SessionToken, func(tx *gorm.DB, s *dbpkg.Session) error {
			var pv dbpkg.PageView
			if err := tx.Where("id = ? AND session_id = ?", req.PageViewID, s.ID).First(&pv).Error; err != nil {
				return err
			}

			pv.TimeOnPageSeconds = req.TimeOnPageSeconds
			pv.EngagedTimeSeconds = req.EngagedTimeSeconds
			pv.ScrollDepth = req.ScrollDepth
			if req.Interacted {
				pv.Interacted = true
			}
			tracker.ClassifyEngagement(&pv)
			if err := tx.Save(&pv).Error; err != nil {
				return err
			}

			if err := dbpkg.RecalcSessionTimes(tx, s); err != nil {
				return err
			}
			tracker.RaiseScrollDepth(s, req.ScrollDepth)
			s.LastActivityAt = time.Now()
			recomputeIntent(tx, s)
			return nil
		})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				trackRequestsTotal.WithLabelValues("engagement", "not_found").Inc()
				notFound(ctx, "session")
				return
			}
			writeFailure(ctx, fasthttp.StatusInternalServerError, "failed to update engagement")
			return
		}

		trackRequestsTotal.WithLabelValues("engagement", "ok").Inc()
		writeSuccess(ctx, nil)
	}
}

type leadLinkRequest struct {
	SessionToken string `json:"session_token"`
	LeadID       string `json:"lead_id"`
}

// LeadLink attaches a funnel lead to the session so funnel progress feeds
// the form-interaction intent component.
func LeadLink(d Deps) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req leadLinkRequest
		if err := decodeBody(ctx, &req); err != nil {
			writeFailure(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}

		leadUUID, err := uuid.Parse(req.LeadID)
		if err != nil {
			writeFieldErrors(ctx, map[string]string{"lead_id": "must be a UUID"})
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

		err = dbpkg.WithSession(d.DB, req.SessionToken, func(tx *gorm.DB, s *dbpkg.Session) error {
			s.LeadID = &lead.ID
			s.LastActivityAt = time.Now()
			recomputeIntent(tx, s)
			return nil
		})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				notFound(ctx, "session")
				return
			}
			writeFailure(ctx, fasthttp.StatusInternalServerError, "failed to link lead")
			return
		}

		trackRequestsTotal.WithLabelValues("lead_link", "ok").Inc()
		writeSuccess(ctx, nil)
	}
}

type endSessionRequest struct {
	SessionToken string `json:"session_token"`
}

// EndSession explicitly ends a session. Ending twice is a no-op; a session
// never transitions back to active.
func EndSession(d Deps) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req endSessionRequest
		if err := decodeBody(ctx, &req); err != nil {
			writeFailure(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}

		err := dbpkg.WithSession(d.DB, req.SessionToken, func(tx *gorm.DB, s *dbpkg.Session) error {
			if s.Status == dbpkg.SessionEnded {
				return nil
			}
			now := time.Now()
			s.Status = dbpkg.SessionEnded
			s.EndedAt = &now
			if err := dbpkg.RecalcSessionTimes(tx, s); err != nil {
				return err
			}
			recomputeIntent(tx, s)
			return nil
		})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				notFound(ctx, "session")
				return
			}
			writeFailure(ctx, fasthttp.StatusInternalServerError, "failed to end session")
			return
		}

		trackRequestsTotal.WithLabelValues("end_session", "ok").Inc()
		writeSuccess(ctx, nil)
	}
}
