// Device and user directory HTTP handlers.
//
// This file exposes REST endpoints used by the mobile apps and the user
// service:
//   - PUT    /users/{id}       (display identity used to render notifications)
//   - POST   /devices/tokens   (register an FCM token for the current user)
//   - DELETE /devices/tokens   (unregister on logout)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-push/internal/domain"
)

// UpsertUserRequest is the JSON payload for a user directory update.
type UpsertUserRequest struct {
	Fullname   string `json:"fullname"    binding:"required" example:"Ada Lovelace"`
	ProfilePic string `json:"profile_pic" example:"https://cdn.example.com/u/ada.png"`
}

// RegisterTokenRequest is the JSON payload for registering a device token.
type RegisterTokenRequest struct {
	Token    string          `json:"token"    binding:"required" example:"dQw4w9WgXcQ:APA91bH..."`
	Platform domain.Platform `json:"platform" binding:"required" example:"android"`
}

// UnregisterTokenRequest is the JSON payload for removing a device token.
type UnregisterTokenRequest struct {
	Token string `json:"token" binding:"required" example:"dQw4w9WgXcQ:APA91bH..."`
}

// UpsertUser godoc
// @ID          upsertUser
// @Summary     Create or update a user's display identity
// @Description Stores the name and avatar shown when this user triggers a notification.
// @Tags        Devices
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "User ID"
// @Param       body  body  handlers.UpsertUserRequest  true  "Display identity"
//
// @Success     200  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users/{id} [put]
func (h *Handlers) UpsertUser(c *gin.Context) {
	var req UpsertUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "fullname required")
		return
	}
	u, err := h.deviceSvc.UpsertUser(c.Request.Context(), c.Param("id"), req.Fullname, req.ProfilePic)
	if err != nil {
		failErr(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, u)
}

// RegisterDeviceToken godoc
// @ID          registerDeviceToken
// @Summary     Register an FCM device token
// @Description Attaches a token to the current user. A token already held by another user moves to this one.
// @Tags        Devices
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.RegisterTokenRequest  true  "Device token"
//
// @Success     201  {object}  domain.DeviceToken
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /devices/tokens [post]
func (h *Handlers) RegisterDeviceToken(c *gin.Context) {
	var req RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "token and platform required")
		return
	}
	tok, err := h.deviceSvc.RegisterToken(c.Request.Context(), userID(c), req.Token, req.Platform)
	if err != nil {
		failErr(c, err, ErrCodeRegisterFailed)
		return
	}
	ok(c, http.StatusCreated, tok)
}

// UnregisterDeviceToken godoc
// @ID          unregisterDeviceToken
// @Summary     Unregister an FCM device token
// @Description Removes a token from the current user, typically on logout.
// @Tags        Devices
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.UnregisterTokenRequest  true  "Device token"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Token not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /devices/tokens [delete]
func (h *Handlers) UnregisterDeviceToken(c *gin.Context) {
	var req UnregisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "token required")
		return
	}
	if err := h.deviceSvc.UnregisterToken(c.Request.Context(), userID(c), req.Token); err != nil {
		failErr(c, err, ErrCodeUpdateFailed)
		return
	}
	noContent(c)
}
