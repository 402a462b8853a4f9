// Package push implements multi-channel push delivery: Web Push to browser
// subscriptions and FCM to mobile device tokens.
//
// This file centralizes the sentinel errors of the engine. Their messages are
// part of the public contract because they surface verbatim in the Error
// field of a DeliveryResult.
package push

import "errors"

// Configuration errors: the channel is disabled, callers receive a result.
var (
	// ErrVAPIDNotConfigured is returned when the VAPID key pair is absent.
	ErrVAPIDNotConfigured = errors.New("VAPID keys not configured")

	// ErrFCMNotConfigured is returned when no usable FCM service account is set.
	ErrFCMNotConfigured = errors.New("FCM credentials not configured")
)

// Validation errors are rejected before any I/O.
var (
	ErrUserIDRequired = errors.New("User ID is required")
	ErrTitleRequired  = errors.New("Notification title is required")
)

// Delivery outcomes that short-circuit a channel call.
var (
	// ErrCircuitOpen is returned while the mobile breaker is open.
	ErrCircuitOpen = errors.New("Circuit breaker open")

	// ErrSenderNotFound aborts a notification whose sender cannot be resolved.
	ErrSenderNotFound = errors.New("Sender not found")

	ErrNoActiveSubscriptions = errors.New("No active subscriptions")
	ErrNoDeviceTokens        = errors.New("No device tokens")
	ErrNoValidTokens         = errors.New("No valid device tokens")

	ErrLoadSubscriptions = errors.New("Failed to load subscriptions")
	ErrLoadTokens        = errors.New("Failed to load device tokens")

	// ErrSendTimeout marks a token whose delivery outlived the send deadline.
	ErrSendTimeout = errors.New("push send timed out")
)
