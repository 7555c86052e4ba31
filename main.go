package main

import (
	"context"
	"log"
	"time"

	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"

	"leadpulse/internal/config"
	"leadpulse/internal/db"
	"leadpulse/internal/geoip"
	"leadpulse/internal/http/handlers"
	appmw "leadpulse/internal/http/middleware"
	"leadpulse/internal/notify"
	"leadpulse/internal/ratelimit"
	"leadpulse/internal/spam"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	sqlDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	sessionWindow := time.Duration(cfg.SessionWindowMinutes) * time.Minute
	db.StartBlockCleanupWorker(sqlDB)
	db.StartRetentionWorker(sqlDB, cfg.AttemptRetentionDays)
	db.StartSessionSweepWorker(sqlDB, sessionWindow)

	// Rate-limit counters and the IP reputation cache live in Redis when
	// configured, so limits hold across instances. Without Redis both
	// degrade to in-process stores.
	var limitStore ratelimit.Store = ratelimit.NewMemoryStore()
	var repCache spam.ReputationCache = spam.NewMemoryReputationCache()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Printf("redis unavailable (%s), using in-process stores: %v", cfg.RedisAddr, err)
		} else {
			limitStore = ratelimit.NewRedisStore(rdb)
			repCache = spam.NewRedisReputationCache(rdb)
		}
	}
	limiter := ratelimit.New(limitStore)

	var geo geoip.Lookuper = geoip.Noop{}
	if cfg.GeoIPURL != "" {
		geo = geoip.NewClient(cfg.GeoIPURL)
	}

	var notifier notify.Service = notify.Noop{}
	if cfg.ResendAPIKey != "" && cfg.LeadEmailTo != "" {
		notifier = notify.NewResendClient(cfg.ResendAPIKey, cfg.LeadEmailFrom, cfg.LeadEmailTo)
	} else {
		log.Printf("lead notification disabled (RESEND_API_KEY or APP_LEAD_EMAIL_TO unset)")
	}

	handlers.InitPrometheusMetrics()

	deps := handlers.Deps{
		DB:      sqlDB,
		Cfg:     cfg,
		Limiter: limiter,
		Geo:     geo,
		Notify:  notifier,
		Spam: spam.NewClassifier(
			spam.GormAttemptStats{DB: sqlDB},
			spam.GormBlocklist{DB: sqlDB},
			repCache,
			cfg.SpamThreshold,
		),
	}

	r := router.New()

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})

	r.POST("/v1/track/session", handlers.SessionInit(deps))
	r.POST("/v1/track/page-view", handlers.PageView(deps))
	r.POST("/v1/track/event", handlers.TrackEvent(deps))
	r.POST("/v1/track/engagement", handlers.Engagement(deps))
	r.POST("/v1/track/lead-link", handlers.LeadLink(deps))
	r.POST("/v1/track/end", handlers.EndSession(deps))

	r.POST("/v1/funnel/start", handlers.FunnelStart(deps))
	r.POST("/v1/funnel/{uuid}/step", handlers.FunnelStep(deps))
	r.POST("/v1/funnel/{uuid}/complete", handlers.FunnelComplete(deps))
	r.GET("/v1/funnel/{uuid}/status", handlers.FunnelStatus(deps))

	r.GET("/metrics/site", handlers.SiteMetricsHandler(cfg))

	// Global middleware chain: request logger, then the IP block guard,
	// then the router. Blocked IPs get a uniform denial on every endpoint
	// before any state mutation.
	blockGuard := appmw.BlockGuard(
		func(ip string) bool { return db.IsBlocked(sqlDB, ip) },
		func() { handlers.BlockedRequests.Inc() },
	)
	handler := handlers.RequestLogger(blockGuard(r.Handler))

	log.Printf("leadpulse listening on %s", cfg.ListenAddr)
	if err := fasthttp.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
