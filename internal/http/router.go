// Package httpapi wires the HTTP transport (Gin) to the contest services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, compression, security headers, idempotency, and rate limiting.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/meme-daily-backend/docs"
	"github.com/tbourn/meme-daily-backend/internal/config"
	"github.com/tbourn/meme-daily-backend/internal/http/handlers"
	"github.com/tbourn/meme-daily-backend/internal/http/middleware"
)

const (
	healthPath  = "/health"
	metricsPath = "/metrics"
)

var (
	corsMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", "If-None-Match", middleware.HeaderIdempotencyKey}
	corsExpose  = []string{"X-Request-ID", "Content-Length", "ETag", middleware.HeaderIdempotencyReplayed}
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the contest API under cfg.APIBasePath. lookup reports
// whether an Idempotency-Key was already answered; it may be nil.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: access log with PII and capability scrubbing
//  4. ContextLogger: request-scoped logger for handlers and services
//  5. Recovery: capture panics after the loggers
//  6. Body size limiter
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP; votes have their own bucket; the settlement
//     trigger and ops routes are exempt)
//  10. CORS, gzip and security headers
func RegisterRoutes(r *gin.Engine, cfg config.Config, deps handlers.Deps, lookup middleware.IdempotencyLookup) {
	r.HandleMethodNotAllowed = true
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	route := func(p string) string {
		if apiBase == "/" {
			return p
		}
		return apiBase + p
	}

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders:     []string{"X-API-Key"},
		MaskQueryParams: []string{"p256dh", "auth"},
	}))
	r.Use(middleware.ContextLogger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(64 << 10))

	r.Use(middleware.Metrics(metricsPath, healthPath))
	r.GET(metricsPath, gin.WrapH(promhttp.Handler()))

	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, lookup))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).
		Exempt(healthPath, metricsPath, route("/settlement/run"))
	if cfg.VoteRateBurst > 0 {
		rl.Route(cfg.VoteRateRPS, cfg.VoteRateBurst, route("/votes"), route("/submissions/:id/vote"))
	}
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{metricsPath})))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:       cfg.Security.EnableHSTS,
		HSTSMaxAge:       cfg.Security.HSTSMaxAge,
		NoStore:          true,
		EnablePolicy:     true,
		RevalidateRoutes: []string{route("/rounds/:id/submissions")},
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET(healthPath, func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = apiBase
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(deps)
	api := groupWithPrefix(r, apiBase)
	{
		// Settlement
		api.GET("/settlement/run", h.RunSettlement)
		api.GET("/settlement/runs", h.ListSettlementRuns)

		// Rounds
		api.GET("/rounds/current", h.GetCurrentRound)
		api.GET("/rounds/archive", h.ListArchivedRounds)
		api.GET("/rounds/:id", h.GetRound)
		api.GET("/rounds/:id/submissions", h.ListSubmissions)
		api.POST("/rounds/current/submissions", h.CreateSubmission)
		api.POST("/rounds/current/suggestions", h.SuggestCaption)

		// Submissions and votes
		api.PUT("/submissions/:id", h.EditSubmission)
		api.PUT("/submissions/:id/vote", h.SetVote)
		api.DELETE("/submissions/:id/vote", h.UnsetVote)
		api.POST("/votes", h.ToggleVote)

		// Profile, store, leaderboard
		api.GET("/profile", h.GetProfile)
		api.POST("/profile/rank/ack", h.AcknowledgeRank)
		api.POST("/profile/spin", h.DailySpin)
		api.POST("/store/edit-token", h.BuyEditToken)
		api.GET("/leaderboard", h.GetLeaderboard)

		// Push
		api.POST("/push/subscriptions", h.Subscribe)
		api.DELETE("/push/subscriptions", h.Unsubscribe)
	}
}

// corsMiddleware returns the CORS posture: allow all origins when none are
// configured, otherwise echo allow-listed origins.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// Force ACAO: * even for requests without an Origin header.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     corsMethods,
				AllowHeaders:     corsHeaders,
				ExposeHeaders:    corsExpose,
				AllowCredentials: false, // must remain false with AllowAllOrigins
				MaxAge:           12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     corsMethods,
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    corsExpose,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
