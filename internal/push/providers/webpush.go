// Package providers adapts vendor push SDKs to the push.WebProvider and
// push.MobileProvider ports. Each adapter normalizes vendor failures into
// *push.ProviderError so the engine can classify them.
package providers

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/tbourn/go-chat-push/internal/push"
)

// VAPIDConfig holds the application server identity used to sign Web Push
// requests.
type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	// Subject is a contact URI, "mailto:ops@example.com" or "https://...".
	Subject string
	// TTL is how long the push service keeps an undelivered message.
	TTL time.Duration
	// Urgency is one of very-low, low, normal, high. Empty means normal.
	Urgency string
}

// Configured reports whether both halves of the key pair are present.
func (c VAPIDConfig) Configured() bool {
	return strings.TrimSpace(c.PublicKey) != "" && strings.TrimSpace(c.PrivateKey) != ""
}

// WebPush sends notifications through github.com/SherClockHolmes/webpush-go.
type WebPush struct {
	cfg    VAPIDConfig
	client webpush.HTTPClient
}

// NewWebPush returns a Web Push provider. It fails with
// push.ErrVAPIDNotConfigured when either key is missing.
func NewWebPush(cfg VAPIDConfig, client *http.Client) (*WebPush, error) {
	if !cfg.Configured() {
		return nil, push.ErrVAPIDNotConfigured
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebPush{cfg: cfg, client: client}, nil
}

// GenerateVAPIDKeys creates a fresh P-256 key pair, base64url encoded.
func GenerateVAPIDKeys() (privateKey, publicKey string, err error) {
	return webpush.GenerateVAPIDKeys()
}

// Send encrypts and posts msg to the subscription endpoint. Any non-2xx status
// is returned as *push.ProviderError carrying the status code.
func (w *WebPush) Send(ctx context.Context, msg push.WebMessage) (push.DeliveryID, error) {
	sub := &webpush.Subscription{
		Endpoint: msg.Endpoint,
		Keys: webpush.Keys{
			P256dh: msg.P256dh,
			Auth:   msg.Auth,
		},
	}
	resp, err := webpush.SendNotificationWithContext(ctx, msg.Payload, sub, &webpush.Options{
		HTTPClient:      w.client,
		Subscriber:      subscriber(w.cfg.Subject),
		VAPIDPublicKey:  w.cfg.PublicKey,
		VAPIDPrivateKey: w.cfg.PrivateKey,
		TTL:             ttlSeconds(w.cfg.TTL),
		Urgency:         urgency(w.cfg.Urgency),
		Topic:           Topic(msg.Topic),
	})
	if err != nil {
		return "", &push.ProviderError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		perr := &push.ProviderError{StatusCode: resp.StatusCode}
		if reason := strings.TrimSpace(string(b)); reason != "" {
			perr.Err = errors.New(reason)
		}
		return "", perr
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return push.DeliveryID(resp.Header.Get("Location")), nil
}

// subscriber strips a mailto: prefix; the library adds it back for anything
// that is not an https: URL.
func subscriber(subject string) string {
	subject = strings.TrimSpace(subject)
	if strings.HasPrefix(strings.ToLower(subject), "mailto:") {
		return subject[len("mailto:"):]
	}
	return subject
}

func ttlSeconds(d time.Duration) int {
	if d <= 0 {
		return 24 * 60 * 60
	}
	return int(d / time.Second)
}

func urgency(s string) webpush.Urgency {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "very-low":
		return webpush.UrgencyVeryLow
	case "low":
		return webpush.UrgencyLow
	case "high":
		return webpush.UrgencyHigh
	default:
		return webpush.UrgencyNormal
	}
}

var topicRE = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// Topic maps a notification tag to a valid Web Push Topic header: at most 32
// characters from the URL-safe base64 alphabet. Longer or non-conforming tags
// are hashed so that equal tags still collapse onto the same topic.
func Topic(tag string) string {
	if tag == "" || topicRE.MatchString(tag) {
		return tag
	}
	sum := sha256.Sum256([]byte(tag))
	return base64.RawURLEncoding.EncodeToString(sum[:24])
}
