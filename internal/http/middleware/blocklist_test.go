package middleware

import (
	"testing"

	"github.com/valyala/fasthttp"

	httpctx "leadpulse/internal/http/ctx"
)

func newRequestCtx(forwardedFor string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(fasthttp.MethodPost)
	ctx.Request.SetRequestURI("/v1/funnel/start")
	if forwardedFor != "" {
		ctx.Request.Header.Set("X-Forwarded-For", forwardedFor)
	}
	return ctx
}

func TestBlockGuardDeniesBlockedIP(t *testing.T) {
	blockedCalls := 0
	nextCalled := false
	guard := BlockGuard(
		func(ip string) bool { return ip == "198.51.100.7" },
		func() { blockedCalls++ },
	)
	handler := guard(func(ctx *fasthttp.RequestCtx) { nextCalled = true })

	ctx := newRequestCtx("198.51.100.7")
	handler(ctx)

	if nextCalled {
		t.Error("next handler called for blocked IP")
	}
	if blockedCalls != 1 {
		t.Errorf("onBlocked called %d times, want 1", blockedCalls)
	}
	if got := ctx.Response.StatusCode(); got != fasthttp.StatusForbidden {
		t.Errorf("status = %d, want %d", got, fasthttp.StatusForbidden)
	}
	if got := string(ctx.Response.Body()); got != "access denied" {
		t.Errorf("body = %q, want uniform denial message", got)
	}
}

func TestBlockGuardPassesCleanIP(t *testing.T) {
	guard := BlockGuard(func(string) bool { return false }, nil)

	nextCalled := false
	var seenIP string
	handler := guard(func(ctx *fasthttp.RequestCtx) {
		nextCalled = true
		seenIP = httpctx.ClientIPFromCtx(ctx)
	})

	ctx := newRequestCtx("203.0.113.9, 10.0.0.1")
	handler(ctx)

	if !nextCalled {
		t.Fatal("next handler not called for clean IP")
	}
	if seenIP != "203.0.113.9" {
		t.Errorf("resolved IP = %q, want first X-Forwarded-For hop", seenIP)
	}
}

func TestResolveClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded single", map[string]string{"X-Forwarded-For": "192.0.2.1"}, "192.0.2.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "192.0.2.1, 10.0.0.2"}, "192.0.2.1"},
		{"forwarded padded", map[string]string{"X-Forwarded-For": "  192.0.2.1 , 10.0.0.2"}, "192.0.2.1"},
		{"real ip fallback", map[string]string{"X-Real-IP": "192.0.2.8"}, "192.0.2.8"},
		{"forwarded wins over real ip", map[string]string{"X-Forwarded-For": "192.0.2.1", "X-Real-IP": "192.0.2.8"}, "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &fasthttp.RequestCtx{}
			for k, v := range tt.headers {
				ctx.Request.Header.Set(k, v)
			}
			if got := httpctx.ResolveClientIP(ctx); got != tt.want {
				t.Errorf("ResolveClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
