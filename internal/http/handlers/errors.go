package handlers

import (
	"errors"
	"net/http"

	"github.com/tbourn/go-chat-push/internal/push"
	"github.com/tbourn/go-chat-push/internal/services"
)

// Error codes returned in ErrorResponse.Code. Clients branch on these, so
// they only ever get added.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	ErrCodeSubscribeFailed = "subscribe_failed"
	ErrCodeRegisterFailed  = "register_failed"
	ErrCodeUpdateFailed    = "update_failed"
	ErrCodeListFailed      = "list_failed"
	ErrCodeNotConfigured   = "push_not_configured"
	ErrCodeUnknownEvent    = "unknown_event"
)

// errMapping is how a service error surfaces over HTTP. An empty message
// means the error text itself is safe to show.
type errMapping struct {
	target  error
	status  int
	code    string
	message string
}

var serviceErrors = []errMapping{
	{services.ErrInvalidEndpoint, http.StatusBadRequest, ErrCodeBadRequest, ""},
	{services.ErrInvalidKeys, http.StatusBadRequest, ErrCodeBadRequest, ""},
	{services.ErrInvalidToken, http.StatusBadRequest, ErrCodeBadRequest, ""},
	{services.ErrInvalidPlatform, http.StatusBadRequest, ErrCodeBadRequest, ""},
	{services.ErrInvalidUser, http.StatusBadRequest, ErrCodeBadRequest, ""},
	{services.ErrSubscriptionNotFound, http.StatusNotFound, ErrCodeNotFound, "subscription not found"},
	{services.ErrTokenNotFound, http.StatusNotFound, ErrCodeNotFound, "device token not found"},
	{push.ErrVAPIDNotConfigured, http.StatusServiceUnavailable, ErrCodeNotConfigured, ""},
	{push.ErrFCMNotConfigured, http.StatusServiceUnavailable, ErrCodeNotConfigured, ""},
}

// classify maps err to a status, code and client-safe message. Unknown errors
// become a 500 with fallbackCode and a generic message; the cause only goes
// to the logs.
func classify(err error, fallbackCode string) (int, string, string) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = m.target.Error()
			}
			return m.status, m.code, msg
		}
	}
	return http.StatusInternalServerError, fallbackCode, "internal server error"
}
