// Notification delivery HTTP handlers.
//
// This file exposes the endpoints upstream collaborators (message and call
// services) use to trigger pushes, plus delivery diagnostics:
//   - POST /notifications/send            (generic payload, both channels)
//   - POST /notifications/events/{kind}   (message|group-message|call|missed-call)
//   - GET  /notifications/logs            (delivery history, paginated, ETag)
//   - GET  /push/breaker                  (mobile circuit breaker snapshot)
//
// Delivery never fails the HTTP request: per-channel failures travel in the
// FanOutResult body. Only malformed input is rejected with 4xx.
//
// Idempotency:
// If the caller supplies an Idempotency-Key header and a previous result exists
// for (caller, scope, key), the stored result is returned with
// `Idempotency-Replayed: true` and nothing is pushed again.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-push/internal/domain"
	"github.com/tbourn/go-chat-push/internal/http/middleware"
	"github.com/tbourn/go-chat-push/internal/push"
	"github.com/tbourn/go-chat-push/internal/services"
)

// Event kinds accepted on /notifications/events/{kind}.
const (
	EventMessage      = "message"
	EventGroupMessage = "group-message"
	EventCall         = "call"
	EventMissedCall   = "missed-call"
)

//
// DTOs
//

// SendRequest is a generic notification for one user.
type SendRequest struct {
	UserID             string            `json:"user_id" binding:"required" example:"user123"`
	Title              string            `json:"title"   binding:"required" example:"Backup finished"`
	Body               string            `json:"body"    example:"Your chat history is ready to download"`
	Icon               string            `json:"icon,omitempty"`
	Image              string            `json:"image,omitempty"`
	Tag                string            `json:"tag,omitempty" example:"backup"`
	Data               map[string]string `json:"data,omitempty"`
	RequireInteraction bool              `json:"require_interaction,omitempty"`
	Silent             bool              `json:"silent,omitempty"`
}

// EventRequest carries a chat event for one receiver. Message is required for
// message kinds, Group additionally for group-message, Call for call kinds.
type EventRequest struct {
	ReceiverID string             `json:"receiver_id" binding:"required" example:"user456"`
	Message    *push.MessageEvent `json:"message,omitempty"`
	Group      *push.GroupInfo    `json:"group,omitempty"`
	Call       *push.CallEvent    `json:"call,omitempty"`
}

// ListLogsResponse wraps a page of delivery logs and pagination information.
type ListLogsResponse struct {
	Logs       []domain.DeliveryLog `json:"logs"`
	Pagination Pagination           `json:"pagination"`
}

//
// Handlers
//

// SendNotification godoc
// @ID          sendNotification
// @Summary     Push a generic notification
// @Description Delivers the payload to every Web Push subscription and device token of user_id. Supports Idempotency-Key.
// @Tags        Notifications
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "Caller ID (demo header)"  example(chat-api)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       body             body    handlers.SendRequest  true  "Notification"
//
// @Success     200  {object}  services.FanOutResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /notifications/send [post]
func (h *Handlers) SendNotification(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Title) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id and title required")
		return
	}
	p := push.Payload{
		Title:              req.Title,
		Body:               req.Body,
		Icon:               req.Icon,
		Image:              req.Image,
		Tag:                req.Tag,
		Data:               req.Data,
		RequireInteraction: req.RequireInteraction,
		Silent:             req.Silent,
	}
	h.deliver(c, func(ctx context.Context) services.FanOutResult {
		return h.notifySvc.Send(ctx, req.UserID, p)
	})
}

// PostEvent godoc
// @ID          postNotificationEvent
// @Summary     Notify a user about a chat event
// @Description Builds the notification for a direct message, group message, incoming call or missed call and fans it out. Supports Idempotency-Key.
// @Tags        Notifications
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "Caller ID (demo header)"  example(chat-api)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       kind             path    string  true  "Event kind"  Enums(message, group-message, call, missed-call)
// @Param       body             body    handlers.EventRequest  true  "Event"
//
// @Success     200  {object}  services.FanOutResult
// @Header      200  {string}  Idempotency-Replayed  "true when served from a stored result"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown event kind"
// @Router      /notifications/events/{kind} [post]
func (h *Handlers) PostEvent(c *gin.Context) {
	kind := c.Param("kind")
	switch kind {
	case EventMessage, EventGroupMessage, EventCall, EventMissedCall:
	default:
		fail(c, http.StatusNotFound, ErrCodeUnknownEvent, fmt.Sprintf("unknown event kind %q", kind))
		return
	}

	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ReceiverID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "receiver_id required")
		return
	}

	var run func(context.Context) services.FanOutResult
	switch kind {
	case EventMessage:
		if req.Message == nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message required")
			return
		}
		run = func(ctx context.Context) services.FanOutResult {
			return h.notifySvc.NotifyDirectMessage(ctx, req.ReceiverID, *req.Message)
		}
	case EventGroupMessage:
		if req.Message == nil || req.Group == nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message and group required")
			return
		}
		run = func(ctx context.Context) services.FanOutResult {
			return h.notifySvc.NotifyGroupMessage(ctx, req.ReceiverID, *req.Message, *req.Group)
		}
	case EventCall:
		if req.Call == nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "call required")
			return
		}
		run = func(ctx context.Context) services.FanOutResult {
			return h.notifySvc.NotifyCall(ctx, req.ReceiverID, *req.Call)
		}
	case EventMissedCall:
		if req.Call == nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "call required")
			return
		}
		run = func(ctx context.Context) services.FanOutResult {
			return h.notifySvc.NotifyMissedCall(ctx, req.ReceiverID, *req.Call)
		}
	}
	h.deliver(c, run)
}

// deliver runs fn behind the idempotency guard and writes the result.
func (h *Handlers) deliver(c *gin.Context, fn func(context.Context) services.FanOutResult) {
	key, _ := middleware.GetIdempotencyKey(c)
	res := h.notifySvc.Idempotent(c.Request.Context(), userID(c), middleware.IdempotencyScope(c), key, fn)
	if res.Replayed {
		c.Header("Idempotency-Replayed", "true")
	}
	ok(c, http.StatusOK, res)
}

// ListDeliveryLogs godoc
// @ID          listDeliveryLogs
// @Summary     List delivery logs (paginated)
// @Description Returns the notification history of the current user, newest first. Supports weak ETag via If-None-Match.
// @Tags        Notifications
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListLogsResponse
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /notifications/logs [get]
func (h *Handlers) ListDeliveryLogs(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	if count, maxTS, err := h.notifySvc.LogStats(ctx, uid); err == nil && notModified(c, fmt.Sprintf("logs:%s", uid), count, maxTS) {
		return
	}

	items, total, err := h.notifySvc.ListLogs(ctx, uid, page, pageSize)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListLogsResponse{
		Logs:       items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// BreakerStatus godoc
// @ID          breakerStatus
// @Summary     Mobile circuit breaker snapshot
// @Description Reports the FCM circuit breaker state, failure count and last failure time.
// @Tags        Push
// @Produce     json
// @Success     200  {object}  push.CircuitStats
// @Failure     503  {object}  handlers.ErrorResponse  "FCM not configured"
// @Router      /push/breaker [get]
func (h *Handlers) BreakerStatus(c *gin.Context) {
	if h.opts.Breaker == nil {
		failErr(c, push.ErrFCMNotConfigured, ErrCodeNotConfigured)
		return
	}
	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, h.opts.Breaker.Stats())
}
