// Web Push registry HTTP handlers.
//
// This file exposes REST endpoints for browser subscriptions:
//   - GET    /push/vapid-public-key           (application server key)
//   - POST   /push/subscriptions              (subscribe / refresh)
//   - GET    /push/subscriptions              (list, paginated, ETag support)
//   - PUT    /push/subscriptions/{id}/active  (soft on/off switch)
//   - DELETE /push/subscriptions              (hard unsubscribe by endpoint)
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-push/internal/domain"
	"github.com/tbourn/go-chat-push/internal/push"
)

//
// DTOs
//

// SubscriptionKeys holds the client encryption material from
// PushSubscription.toJSON().
type SubscriptionKeys struct {
	P256dh string `json:"p256dh" example:"BNcRdreALRFXTkOOUHK1EtK2wtaz5Ry4YfYCA_0QTpQtUbVlUls0VJXg7A8u-Ts1XbjhazAkj7I99e8QcYP7DkM"`
	Auth   string `json:"auth"   example:"tBHItJI5svbpez7KI4CCXg"`
}

// SubscribeRequest is the JSON payload the service worker posts after
// pushManager.subscribe().
type SubscribeRequest struct {
	Endpoint   string           `json:"endpoint" binding:"required" example:"https://fcm.googleapis.com/fcm/send/c1KrmpTuRm"`
	Keys       SubscriptionKeys `json:"keys"`
	UserAgent  string           `json:"user_agent,omitempty"  example:"Mozilla/5.0"`
	DeviceInfo string           `json:"device_info,omitempty" example:"Chrome on macOS"`
}

// SetActiveRequest toggles delivery to one subscription.
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required" example:"false"`
}

// UnsubscribeRequest identifies the subscription to forget.
type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint" example:"https://fcm.googleapis.com/fcm/send/c1KrmpTuRm"`
}

// VAPIDKeyResponse carries the application server key for pushManager.subscribe().
type VAPIDKeyResponse struct {
	PublicKey string `json:"public_key" example:"BEl62iUYgUivxIkv69yViEuiBIa-Ib9-SkvMeAtA3LFgDzkrxZJjSgSnfckjBJuBkr3qBUYIHBQFLXYp5Nksh8U"`
}

// ListSubscriptionsResponse wraps a page of subscriptions and pagination information.
type ListSubscriptionsResponse struct {
	Subscriptions []domain.WebPushSubscription `json:"subscriptions"`
	Pagination    Pagination                   `json:"pagination"`
}

//
// Handlers
//

// VAPIDPublicKey godoc
// @ID          getVAPIDPublicKey
// @Summary     Get the VAPID public key
// @Description Returns the application server key browsers pass to pushManager.subscribe().
// @Tags        Push
// @Produce     json
// @Success     200  {object}  handlers.VAPIDKeyResponse
// @Failure     503  {object}  handlers.ErrorResponse  "Web Push not configured"
// @Router      /push/vapid-public-key [get]
func (h *Handlers) VAPIDPublicKey(c *gin.Context) {
	if h.opts.VAPIDPublicKey == "" {
		failErr(c, push.ErrVAPIDNotConfigured, ErrCodeNotConfigured)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	ok(c, http.StatusOK, VAPIDKeyResponse{PublicKey: h.opts.VAPIDPublicKey})
}

// Subscribe godoc
// @ID          subscribe
// @Summary     Register a Web Push subscription
// @Description Stores the browser subscription for the current user. Posting a known endpoint refreshes its keys and reactivates it.
// @Tags        Push
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.SubscribeRequest  true  "PushSubscription JSON"
//
// @Success     201  {object}  domain.WebPushSubscription
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /push/subscriptions [post]
func (h *Handlers) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "endpoint and keys required")
		return
	}
	ua := req.UserAgent
	if strings.TrimSpace(ua) == "" {
		ua = c.GetHeader("User-Agent")
	}

	sub, err := h.subSvc.Subscribe(c.Request.Context(), userID(c), domain.WebPushSubscription{
		Endpoint:   req.Endpoint,
		P256dh:     req.Keys.P256dh,
		Auth:       req.Keys.Auth,
		UserAgent:  ua,
		DeviceInfo: req.DeviceInfo,
	})
	if err != nil {
		failErr(c, err, ErrCodeSubscribeFailed)
		return
	}
	ok(c, http.StatusCreated, sub)
}

// ListSubscriptions godoc
// @ID          listSubscriptions
// @Summary     List Web Push subscriptions (paginated)
// @Description Returns a page of the user's subscriptions, active or not. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Push
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListSubscriptionsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /push/subscriptions [get]
func (h *Handlers) ListSubscriptions(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.subSvc.Stats(ctx, uid); err == nil && notModified(c, fmt.Sprintf("subs:%s", uid), count, maxTS) {
		return
	}

	items, total, err := h.subSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListSubscriptionsResponse{
		Subscriptions: items,
		Pagination:    newPagination(page, pageSize, total),
	})
}

// SetSubscriptionActive godoc
// @ID          setSubscriptionActive
// @Summary     Pause or resume a subscription
// @Description Turns delivery to one subscription on or off without forgetting it.
// @Tags        Push
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Subscription ID (UUID)" format(uuid)
// @Param       body       body    handlers.SetActiveRequest  true  "Desired state"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Subscription not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /push/subscriptions/{id}/active [put]
func (h *Handlers) SetSubscriptionActive(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil || id == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "active (bool) required")
		return
	}
	if err := h.subSvc.SetActive(c.Request.Context(), userID(c), id, *req.Active); err != nil {
		failErr(c, err, ErrCodeUpdateFailed)
		return
	}
	noContent(c)
}

// Unsubscribe godoc
// @ID          unsubscribe
// @Summary     Remove a Web Push subscription
// @Description Deletes the user's subscription for the endpoint given in the body or the endpoint query param.
// @Tags        Push
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       endpoint   query   string  false "Subscription endpoint"
// @Param       body       body    handlers.UnsubscribeRequest  false  "Subscription endpoint"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Subscription not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /push/subscriptions [delete]
func (h *Handlers) Unsubscribe(c *gin.Context) {
	endpoint := strings.TrimSpace(c.Query("endpoint"))
	if endpoint == "" {
		var req UnsubscribeRequest
		_ = c.ShouldBindJSON(&req)
		endpoint = strings.TrimSpace(req.Endpoint)
	}
	if endpoint == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "endpoint required")
		return
	}
	if err := h.subSvc.Unsubscribe(c.Request.Context(), userID(c), endpoint); err != nil {
		failErr(c, err, ErrCodeUpdateFailed)
		return
	}
	noContent(c)
}
