package ctx

import (
	"strings"

	"github.com/valyala/fasthttp"
)

const (
	ClientIPKey = "clientIP"
)

// SetClientIP stores the resolved client IP on the request.
func SetClientIP(ctx *fasthttp.RequestCtx, ip string) {
	ctx.SetUserValue(ClientIPKey, ip)
}

// ClientIPFromCtx returns the client IP resolved by the block-guard
// middleware, falling back to resolving it directly.
func ClientIPFromCtx(ctx *fasthttp.RequestCtx) string {
	if v := ctx.UserValue(ClientIPKey); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ResolveClientIP(ctx)
}

// ResolveClientIP extracts the originating client IP, preferring the first
// X-Forwarded-For hop set by the edge proxy over the socket peer address.
func ResolveClientIP(ctx *fasthttp.RequestCtx) string {
	if fwd := string(ctx.Request.Header.Peek("X-Forwarded-For")); fwd != "" {
		first := strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
		if first != "" {
			return first
		}
	}
	if rip := string(ctx.Request.Header.Peek("X-Real-IP")); rip != "" {
		return strings.TrimSpace(rip)
	}
	addr := ctx.RemoteAddr().String()
	if i := strings.LastIndex(addr, ":"); i > 0 {
		return strings.Trim(addr[:i], "[]")
	}
	return addr
}
