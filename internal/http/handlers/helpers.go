package handlers

import (
	"encoding/json"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"leadpulse/internal/config"
	"leadpulse/internal/geoip"
	"leadpulse/internal/notify"
	"leadpulse/internal/ratelimit"
	"leadpulse/internal/spam"
)

// Deps bundles the injected collaborators every handler closure receives.
type Deps struct {
	DB      *gorm.DB
	Cfg     *config.Config
	Limiter *ratelimit.Limiter
	Geo     geoip.Lookuper
	Notify  notify.Service
	Spam    *spam.Classifier
}

// SessionWindow is the freshness window used for session resumption.
func (d Deps) SessionWindow() time.Duration {
	return time.Duration(d.Cfg.SessionWindowMinutes) * time.Minute
}

// RequestLogger returns fasthttp middleware that logs method, path, status, duration.
func RequestLogger(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		log.Printf("%s %s -> %d (%s) ip=%s", ctx.Method(), ctx.Path(), ctx.Response.StatusCode(), time.Since(start), ctx.RemoteAddr())
	}
}

func decodeBody(ctx *fasthttp.RequestCtx, v any) error {
	return json.Unmarshal(ctx.PostBody(), v)
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, data map[string]any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(data)
	ctx.SetBody(body)
}

// writeSuccess sends a 200 success envelope, merging extra fields in.
func writeSuccess(ctx *fasthttp.RequestCtx, extra map[string]any) {
	data := map[string]any{"success": true}
	for k, v := range extra {
		data[k] = v
	}
	writeJSON(ctx, fasthttp.StatusOK, data)
}

// writeFailure sends {"success":false,"error":...} with the given status.
func writeFailure(ctx *fasthttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]any{"success": false, "error": msg})
}

// writeFieldErrors reports validation failures per field; no partial
// mutation has been applied when this is sent.
func writeFieldErrors(ctx *fasthttp.RequestCtx, errs map[string]string) {
	writeJSON(ctx, fasthttp.StatusBadRequest, map[string]any{"success": false, "errors": errs})
}

// writeRateLimited sends the retry-after hint for an exceeded window.
func writeRateLimited(ctx *fasthttp.RequestCtx, retryAfter int) {
	writeJSON(ctx, fasthttp.StatusTooManyRequests, map[string]any{
		"success":     false,
		"error":       "rate limit exceeded",
		"retry_after": retryAfter,
	})
}

func notFound(ctx *fasthttp.RequestCtx, what string) {
	writeFailure(ctx, fasthttp.StatusNotFound, what+" not found")
}
