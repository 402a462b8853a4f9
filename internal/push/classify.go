package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// FailureClass tells the engine what to do with an endpoint after a failed send.
type FailureClass int

const (
	// Transient failures keep the endpoint. The mobile channel may retry them
	// and they count against the breaker.
	Transient FailureClass = iota
	// Permanent failures mean the endpoint is dead and must be pruned.
	// They are never retried and never counted against the breaker.
	Permanent
)

func (c FailureClass) String() string {
	switch c {
	case Permanent:
		return "permanent"
	default:
		return "transient"
	}
}

// FCM error codes recognised by ClassifyMobile.
const (
	CodeInvalidRegistrationToken = "invalid-registration-token"
	CodeTokenNotRegistered       = "registration-token-not-registered"
	CodeInvalidArgument          = "invalid-argument"
	CodeUnknown                  = "unknown"
)

// ProviderError is the normalized error returned by WebProvider and
// MobileProvider implementations.
type ProviderError struct {
	// StatusCode is the HTTP status reported by the push service (web), 0 if none.
	StatusCode int
	// Code is the provider error code (mobile), empty if none.
	Code string
	// Err is the underlying transport or SDK error, if any.
	Err error
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("push provider: status %d: %v", e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("push provider: status %d", e.StatusCode)
	case e.Code != "" && e.Err != nil:
		return fmt.Sprintf("push provider: %s: %v", e.Code, e.Err)
	case e.Code != "":
		return "push provider: " + e.Code
	case e.Err != nil:
		return "push provider: " + e.Err.Error()
	default:
		return "push provider: unknown error"
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

// statusOf extracts the HTTP status carried by err, or 0.
func statusOf(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode
	}
	return 0
}

// codeOf extracts the provider code carried by err, or "".
func codeOf(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// ClassifyWeb maps a Web Push failure to a FailureClass.
// Only 404 and 410 mean the subscription is gone.
func ClassifyWeb(err error) FailureClass {
	switch statusOf(err) {
	case http.StatusGone, http.StatusNotFound:
		return Permanent
	default:
		return Transient
	}
}

// webFailureReason returns a short log message describing a web failure.
func webFailureReason(status int) string {
	switch status {
	case http.StatusGone, http.StatusNotFound:
		return "subscription expired or unsubscribed"
	case http.StatusForbidden:
		return "forbidden, VAPID credentials may not match the subscription"
	case http.StatusRequestEntityTooLarge:
		return "payload too large"
	case http.StatusBadRequest:
		return "bad request, subscription keys or endpoint may be malformed"
	case 0:
		return "push service unreachable"
	default:
		return "unexpected push service response"
	}
}

// webRetryable reports whether a web failure is worth another attempt.
func webRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	s := statusOf(err)
	return s == 0 || s == http.StatusTooManyRequests || s >= http.StatusInternalServerError
}

// ClassifyMobile maps an FCM failure to a FailureClass. Token-class errors are
// Permanent; everything else, including timeouts, is Transient.
func ClassifyMobile(err error) FailureClass {
	switch codeOf(err) {
	case CodeInvalidRegistrationToken, CodeTokenNotRegistered, CodeInvalidArgument:
		return Permanent
	default:
		return Transient
	}
}

// IsTokenError reports whether err condemns the device token itself.
func IsTokenError(err error) bool { return ClassifyMobile(err) == Permanent }
