// Package services defines the business logic for push registration and
// notification delivery. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Registry errors.
var (
	// ErrSubscriptionNotFound indicates that the subscription does not exist
	// or is not owned by the current user.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrInvalidEndpoint is returned when a subscription endpoint is not an
	// absolute http(s) URL.
	ErrInvalidEndpoint = errors.New("endpoint must be an absolute https URL")

	// ErrInvalidKeys is returned when p256dh or auth are missing or malformed.
	ErrInvalidKeys = errors.New("subscription keys are missing or malformed")

	// ErrInvalidToken is returned when a device token has an implausible length.
	ErrInvalidToken = errors.New("device token must be 50 to 500 characters")

	// ErrInvalidPlatform is returned when a device platform is not ios or android.
	ErrInvalidPlatform = errors.New("platform must be ios or android")

	// ErrTokenNotFound indicates the user has no such device token.
	ErrTokenNotFound = errors.New("device token not found")

	// ErrInvalidUser is returned when a user directory update is malformed.
	ErrInvalidUser = errors.New("user id and fullname are required")
)
