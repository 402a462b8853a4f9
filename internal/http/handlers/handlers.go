// Package handlers provides HTTP handler implementations for the public API.
//
// This file declares the service contracts the handlers consume, the Handlers
// wiring type, and helpers shared by the registry and delivery endpoints.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-push/internal/domain"
	"github.com/tbourn/go-chat-push/internal/push"
	"github.com/tbourn/go-chat-push/internal/services"
	"github.com/tbourn/go-chat-push/internal/utils"
)

//
// Service contracts (context-aware)
//

// SubscriptionService manages browser Web Push subscriptions.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type SubscriptionService interface {
	// Subscribe validates and upserts a subscription by endpoint.
	Subscribe(ctx context.Context, userID string, sub domain.WebPushSubscription) (*domain.WebPushSubscription, error)
	// ListPage returns a page of the user's subscriptions and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.WebPushSubscription, int64, error)
	// SetActive flips the soft on/off switch of one subscription.
	SetActive(ctx context.Context, userID, id string, active bool) error
	// Unsubscribe hard-deletes the user's subscription for endpoint.
	Unsubscribe(ctx context.Context, userID, endpoint string) error
	// Stats returns the count and latest UpdatedAt of the user's subscriptions.
	Stats(ctx context.Context, userID string) (int64, *time.Time, error)
}

// DeviceService manages the user directory projection and device tokens.
type DeviceService interface {
	// UpsertUser records the display identity of a user.
	UpsertUser(ctx context.Context, userID, fullname, profilePic string) (*domain.User, error)
	// RegisterToken attaches an FCM token to userID.
	RegisterToken(ctx context.Context, userID, token string, platform domain.Platform) (*domain.DeviceToken, error)
	// UnregisterToken detaches an FCM token from userID.
	UnregisterToken(ctx context.Context, userID, token string) error
}

// NotificationService fans notifications out to every channel.
type NotificationService interface {
	Send(ctx context.Context, userID string, p push.Payload) services.FanOutResult
	NotifyDirectMessage(ctx context.Context, receiverID string, msg push.MessageEvent) services.FanOutResult
	NotifyGroupMessage(ctx context.Context, receiverID string, msg push.MessageEvent, group push.GroupInfo) services.FanOutResult
	NotifyCall(ctx context.Context, receiverID string, call push.CallEvent) services.FanOutResult
	NotifyMissedCall(ctx context.Context, receiverID string, call push.CallEvent) services.FanOutResult
	// Idempotent replays a stored result for (callerID, scope, key) or runs fn.
	Idempotent(ctx context.Context, callerID, scope, key string, fn func(context.Context) services.FanOutResult) services.FanOutResult
	// ListLogs returns a page of delivery logs and the total count.
	ListLogs(ctx context.Context, userID string, page, pageSize int) ([]domain.DeliveryLog, int64, error)
	// LogStats returns the count and latest UpdatedAt of the user's logs.
	LogStats(ctx context.Context, userID string) (int64, *time.Time, error)
}

// BreakerStats exposes the mobile circuit breaker for monitoring.
type BreakerStats interface {
	Stats() push.CircuitStats
}

//
// Handler wiring
//

// Options carries optional handler dependencies.
type Options struct {
	// VAPIDPublicKey is served to browsers; empty means Web Push is off.
	VAPIDPublicKey string
	// Breaker is the mobile breaker; nil when FCM is not configured.
	Breaker BreakerStats
}

// Handlers groups HTTP endpoints for the endpoint registry and delivery.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	subSvc    SubscriptionService
	deviceSvc DeviceService
	notifySvc NotificationService
	opts      Options
}

// New constructs and returns a Handlers instance bound to the given services.
func New(subSvc SubscriptionService, deviceSvc DeviceService, notifySvc NotificationService, opts Options) *Handlers {
	return &Handlers{subSvc: subSvc, deviceSvc: deviceSvc, notifySvc: notifySvc, opts: opts}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = max(utils.AtoiDefault(c.Query("page"), defaultPage), 1)
	pageSize = utils.Clamp(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

// notModified sets a weak ETag derived from (scope, count, latest update) and
// answers 304 when the client already holds it.
func notModified(c *gin.Context, scope string, count int64, maxTS *time.Time) bool {
	var ts int64
	if maxTS != nil {
		ts = maxTS.UnixNano()
	}
	etag := fmt.Sprintf(`W/"%s:%d:%d"`, scope, count, ts)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}
