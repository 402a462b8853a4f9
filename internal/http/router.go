// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Push addresses (endpoints, device tokens) never reach the logs
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-push/internal/config"
	"github.com/tbourn/go-chat-push/internal/domain"
	"github.com/tbourn/go-chat-push/internal/http/handlers"
	"github.com/tbourn/go-chat-push/internal/http/middleware"
	"github.com/tbourn/go-chat-push/internal/repo"
	"github.com/tbourn/go-chat-push/internal/services"
)

// subscriptionRepoShim adapts the repository free functions to the
// services.SubscriptionRepo interface expected by the SubscriptionService.
type subscriptionRepoShim struct{}

// Upsert proxies repo.UpsertSubscription.
func (subscriptionRepoShim) Upsert(ctx context.Context, db *gorm.DB, s *domain.WebPushSubscription) (*domain.WebPushSubscription, error) {
	return repo.UpsertSubscription(ctx, db, s)
}

// Count proxies repo.CountSubscriptions (pagination support).
func (subscriptionRepoShim) Count(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountSubscriptions(ctx, db, userID)
}

// ListPage proxies repo.ListSubscriptionsPage (pagination support).
func (subscriptionRepoShim) ListPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.WebPushSubscription, error) {
	return repo.ListSubscriptionsPage(ctx, db, userID, offset, limit)
}

// SetActive proxies repo.SetSubscriptionActive.
func (subscriptionRepoShim) SetActive(ctx context.Context, db *gorm.DB, id, userID string, active bool) error {
	return repo.SetSubscriptionActive(ctx, db, id, userID, active)
}

// DeleteByEndpoint proxies repo.DeleteUserSubscription.
func (subscriptionRepoShim) DeleteByEndpoint(ctx context.Context, db *gorm.DB, userID, endpoint string) error {
	return repo.DeleteUserSubscription(ctx, db, userID, endpoint)
}

// Stats proxies repo.SubscriptionsStats (ETag support).
func (subscriptionRepoShim) Stats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error) {
	return repo.SubscriptionsStats(ctx, db, userID)
}

// deviceRepoShim adapts the repository free functions to services.DeviceRepo.
type deviceRepoShim struct{}

// UpsertUser proxies repo.UpsertUser.
func (deviceRepoShim) UpsertUser(ctx context.Context, db *gorm.DB, id, fullname, pic string) (*domain.User, error) {
	return repo.UpsertUser(ctx, db, id, fullname, pic)
}

// RegisterToken proxies repo.RegisterDeviceToken.
func (deviceRepoShim) RegisterToken(ctx context.Context, db *gorm.DB, userID, token string, p domain.Platform) (*domain.DeviceToken, error) {
	return repo.RegisterDeviceToken(ctx, db, userID, token, p)
}

// UnregisterToken proxies repo.UnregisterDeviceToken.
func (deviceRepoShim) UnregisterToken(ctx context.Context, db *gorm.DB, userID, token string) error {
	return repo.UnregisterDeviceToken(ctx, db, userID, token)
}

// Deps carries the delivery components built by the caller from provider
// credentials. Zero values are valid: a nil Notifier gets a service with both
// channels unconfigured, and a nil Breaker makes /push/breaker answer 503.
type Deps struct {
	Notifier handlers.NotificationService
	Breaker  handlers.BreakerStats
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with push address scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per user/IP, bypass on replay)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config, deps Deps) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key",
			"X-Device-Token",
			"X-Push-Endpoint",
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (256 KiB; push payloads are small)
	r.Use(limitBody(256 << 10))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, callerID, scope, key string, now time.Time) (bool, error) {
			_, err := repo.FindReplay(ctx, db, callerID, scope, key, now)
			if errors.Is(err, repo.ErrNotFound) {
				return false, nil
			}
			return err == nil, err
		},
	))

	// 8) Token-bucket rate limiter per user/IP; delivery calls get their own budget
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP(),
		middleware.RateRule{
			Name:       "delivery",
			PathPrefix: strings.TrimSuffix(apiBase, "/") + "/notifications/",
			RPS:        cfg.DeliveryRateRPS,
			Burst:      cfg.DeliveryRateBurst,
		},
	)
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", "If-None-Match", middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
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
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	base := strings.TrimSuffix(apiBase, "/")
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		NoStorePrefixes: []string{base + "/push/", base + "/devices/", base + "/users/", base + "/notifications/"},
		PublicCache:     map[string]time.Duration{base + "/push/vapid-public-key": time.Hour},
		EnablePolicy:    true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db
	subSvc := services.NewSubscriptionService(db, subscriptionRepoShim{})
	subSvc.AllowInsecure = cfg.Push.Web.AllowInsecure
	deviceSvc := services.NewDeviceService(db, deviceRepoShim{})

	notifier := deps.Notifier
	if notifier == nil {
		svc := services.NewNotificationService(nil, nil, repo.UserDirectory{DB: db}, nil, db)
		if cfg.IdempotencyTTL > 0 {
			svc.IdempotencyTTL = cfg.IdempotencyTTL
		}
		notifier = svc
	}

	h := handlers.New(subSvc, deviceSvc, notifier, handlers.Options{
		VAPIDPublicKey: cfg.Push.Web.PublicKey,
		Breaker:        deps.Breaker,
	})

	// Public API
	api := groupWithPrefix(r, apiBase)
	{
		// Web Push registry
		api.GET("/push/vapid-public-key", h.VAPIDPublicKey)
		api.POST("/push/subscriptions", h.Subscribe)
		api.GET("/push/subscriptions", h.ListSubscriptions)
		api.DELETE("/push/subscriptions", h.Unsubscribe)
		api.PUT("/push/subscriptions/:id/active", h.SetSubscriptionActive)
		api.GET("/push/breaker", h.BreakerStatus)

		// Users and devices
		api.PUT("/users/:id", h.UpsertUser)
		api.POST("/devices/tokens", h.RegisterDeviceToken)
		api.DELETE("/devices/tokens", h.UnregisterDeviceToken)

		// Delivery
		api.POST("/notifications/send", h.SendNotification)
		api.POST("/notifications/events/:kind", h.PostEvent)
		api.GET("/notifications/logs", h.ListDeliveryLogs)
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
