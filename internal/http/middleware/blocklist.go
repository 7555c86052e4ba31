package middleware

import (
	"github.com/valyala/fasthttp"

	httpctx "leadpulse/internal/http/ctx"
)

// BlockGuard denies requests from blocked IPs before any state mutation.
// The response is a uniform "access denied", indistinguishable from other
// denials, so automated abuse cannot tell it has been detected. isBlocked
// is injected so tests can substitute an in-memory check.
func BlockGuard(isBlocked func(ip string) bool, onBlocked func()) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			ip := httpctx.ResolveClientIP(ctx)
			httpctx.SetClientIP(ctx, ip)

			if isBlocked(ip) {
				if onBlocked != nil {
					onBlocked()
				}
				ctx.SetStatusCode(fasthttp.StatusForbidden)
				ctx.SetBodyString("access denied")
				return
			}
			next(ctx)
		}
	}
}
