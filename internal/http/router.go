// Package httpapi wires the HTTP transport (Gin) to the gateway services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, redacted logging, panic recovery, metrics,
// idempotency, rate limiting, CORS, and security headers.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic router setup; all dependencies injected
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/card-terminal-gateway/internal/config"
	"github.com/tbourn/card-terminal-gateway/internal/events"
	"github.com/tbourn/card-terminal-gateway/internal/http/handlers"
	"github.com/tbourn/card-terminal-gateway/internal/http/middleware"
	"github.com/tbourn/card-terminal-gateway/internal/repo"
	"github.com/tbourn/card-terminal-gateway/internal/services"
)

// maxBodyBytes caps every request body, callbacks included.
const maxBodyBytes = 1 << 20

var corsAllowHeaders = []string{
	"Origin", "Content-Type", "Accept", "Authorization",
	middleware.HeaderActor, middleware.HeaderIdempotencyKey, services.SignatureHeader,
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the gateway API under cfg.APIBasePath. A nil publisher
// disables ledger events.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PAN and secret scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per session token, actor or IP; bypass on replay)
//  9. CORS, security headers and gzip
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config, publisher events.Publisher) {
	r.HandleMethodNotAllowed = true
	if publisher == nil {
		publisher = events.Nop{}
	}

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	r.Use(limitBody(maxBodyBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting), only on the routes
	// that take a key. Only capture results are stored, so only captures
	// look up replays.
	base := strings.TrimRight(cfg.APIBasePath, "/")
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			Scope:  services.CaptureIdempotencyScope,
			MaxLen: 200,
			Routes: []string{base + "/captures"},
		},
		func(ctx context.Context, actor, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, actor, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200, Routes: []string{base + "/sessions"}},
		nil,
	))

	// 8) Token-bucket rate limiter
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByRequester())
	r.Use(rl.Handler())

	// 9) CORS posture (allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     corsAllowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     corsAllowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← db/config/publisher
	ledger := &services.LedgerService{
		DB:              db,
		Events:          publisher,
		DefaultCurrency: cfg.DefaultCurrency,
	}
	capture := &services.CaptureService{
		DB:              db,
		Ledger:          ledger,
		DefaultCurrency: cfg.DefaultCurrency,
		DriverTimeout:   cfg.DriverTimeout,
		CallbackBaseURL: cfg.Callback.BaseURL,
		IdempotencyTTL:  cfg.IdempotencyTTL,
	}
	callbacks := &services.CallbackService{
		DB:               db,
		Ledger:           ledger,
		RequireSignature: cfg.Callback.RequireSignature,
	}
	h := handlers.New(
		capture,
		callbacks,
		ledger,
		&services.ApprovalService{DB: db},
		&services.AdminService{DB: db},
	)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Capture
		api.POST("/captures", h.StartCapture)
		api.POST("/sessions", h.CreateSession)
		api.GET("/sessions/:token", h.GetSession)
		api.POST("/callbacks/:token", h.Callback)

		// Ledger
		api.POST("/transactions", h.LogTransaction)
		api.GET("/transactions", h.ListTransactions)
		api.POST("/invoices/:name/approval-check", h.ApprovalCheck)

		// Administration
		api.GET("/drivers", h.ListDrivers)
		api.PUT("/drivers/:code", h.UpsertDriver)
		api.PUT("/settings/:name", h.PutSettings)
		api.GET("/settings/:name", h.GetSettings)
		api.POST("/settings/:name/test", h.TestConnection)
		api.GET("/settings/:name/client-config", h.ClientConfig)
		api.PUT("/modes-of-payment/:name", h.PutModeOfPayment)
	}
}

// limitBody caps the request body at maxBytes using http.MaxBytesReader.
// Requests exceeding the cap fail on the downstream read.
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
