package push

import (
	"context"
	"time"

	"github.com/tbourn/go-chat-push/internal/domain"
)

// DeliveryID is the opaque identifier a provider returns for an accepted message.
type DeliveryID string

// SubscriptionStore is the slice of the endpoint registry the web channel needs.
type SubscriptionStore interface {
	// ListActive returns the user's subscriptions with IsActive set.
	ListActive(ctx context.Context, userID string) ([]domain.WebPushSubscription, error)
	// DeleteByID hard-deletes a subscription.
	DeleteByID(ctx context.Context, id string) error
	// DeleteByEndpoint hard-deletes a subscription by its endpoint URL.
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

// TokenStore is the slice of the user directory the mobile channel needs.
type TokenStore interface {
	// GetTokens returns the user's registered device tokens.
	GetTokens(ctx context.Context, userID string) ([]domain.DeviceToken, error)
	// SaveTokens deletes removeIDs and sets LastUsed to usedAt on usedIDs, in
	// a single write. Tokens named in neither list must be left untouched.
	SaveTokens(ctx context.Context, userID string, removeIDs, usedIDs []string, usedAt time.Time) error
}

// WebMessage is one encrypted Web Push delivery.
type WebMessage struct {
	Endpoint string
	P256dh   string
	Auth     string
	// Payload is the JSON-encoded Payload.
	Payload []byte
	// Topic lets the push service collapse superseded messages.
	Topic string
}

// WebProvider delivers a message to a browser push service.
// Non-2xx responses must be reported as *ProviderError with StatusCode set.
type WebProvider interface {
	Send(ctx context.Context, msg WebMessage) (DeliveryID, error)
}

// AndroidOptions is the Android-specific block of a MobileMessage.
type AndroidOptions struct {
	Priority  string
	Sound     string
	ChannelID string
	Tag       string
}

// APNSOptions is the iOS-specific block of a MobileMessage.
type APNSOptions struct {
	Sound            string
	Badge            int
	ContentAvailable bool
	Category         string
	ThreadID         string
}

// MobileMessage is one FCM delivery to a single device token.
type MobileMessage struct {
	Token    string
	Platform domain.Platform
	Title    string
	Body     string
	ImageURL string
	Data     map[string]string
	Android  *AndroidOptions
	APNS     *APNSOptions
}

// MobileProvider delivers a message to FCM.
// Failures must be reported as *ProviderError with Code set when known.
type MobileProvider interface {
	Send(ctx context.Context, msg MobileMessage) (DeliveryID, error)
}
