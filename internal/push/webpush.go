package push

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-chat-push/internal/domain"
)

const channelWeb = "web"

// DefaultLookupTimeout bounds every registry read made by a channel.
const DefaultLookupTimeout = 5 * time.Second

// WebChannel delivers a Payload to every active browser subscription of a user.
type WebChannel struct {
	Store    SubscriptionStore
	Provider WebProvider

	// Retry applies to each endpoint. The zero value means a single attempt.
	Retry RetryPolicy
	// LookupTimeout bounds ListActive. <= 0 uses DefaultLookupTimeout.
	LookupTimeout time.Duration

	Log zerolog.Logger
}

// NewWebChannel wires a web channel. A nil provider means VAPID keys are not
// configured and every Send short-circuits.
func NewWebChannel(store SubscriptionStore, provider WebProvider) *WebChannel {
	return &WebChannel{
		Store:         store,
		Provider:      provider,
		Retry:         NoRetry,
		LookupTimeout: DefaultLookupTimeout,
		Log:           log.With().Str("component", "push.web").Logger(),
	}
}

// Configured reports whether the channel can send at all.
func (c *WebChannel) Configured() bool { return c != nil && c.Provider != nil }

// Send pushes p to all of userID's active subscriptions concurrently.
// Subscriptions rejected with 404 or 410 are deleted. Send never returns an
// error; failures are reported in the DeliveryResult.
func (c *WebChannel) Send(ctx context.Context, userID string, p Payload) DeliveryResult {
	ctx, span := otel.Tracer("push/WebChannel").Start(ctx, "Send",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	start := time.Now()
	defer func() { dispatchDur.WithLabelValues(channelWeb).Observe(time.Since(start).Seconds()) }()

	if !c.Configured() {
		deliveries.WithLabelValues(channelWeb, outcomeDisabled).Inc()
		c.Log.Warn().Str("user_id", userID).Msg("web push skipped: VAPID keys not configured")
		return failure(ErrVAPIDNotConfigured)
	}

	subs, err := c.lookup(ctx, userID)
	if err != nil {
		c.Log.Error().Err(err).Str("user_id", userID).Msg("load subscriptions failed")
		return failure(ErrLoadSubscriptions)
	}
	if len(subs) == 0 {
		c.Log.Debug().Str("user_id", userID).Msg("no active subscriptions")
		return failure(ErrNoActiveSubscriptions)
	}

	body, err := json.Marshal(p)
	if err != nil {
		// Payload only holds strings, bools and ints.
		c.Log.Error().Err(err).Msg("encode payload")
		return DeliveryResult{Success: false, Failed: len(subs), Total: len(subs), Error: err.Error()}
	}

	policy := c.Retry
	if policy.IsRetryable == nil {
		policy.IsRetryable = webRetryable
	}

	var (
		mu sync.Mutex
		t  tally
	)
	var g errgroup.Group
	for i := range subs {
		sub := subs[i]
		g.Go(func() error {
			msg := WebMessage{
				Endpoint: sub.Endpoint,
				P256dh:   sub.P256dh,
				Auth:     sub.Auth,
				Payload:  body,
				Topic:    p.Tag,
			}
			_, attempts, err := Retry(ctx, policy, func(ctx context.Context, _ int) (DeliveryID, error) {
				return c.Provider.Send(ctx, msg)
			})
			if err == nil {
				deliveries.WithLabelValues(channelWeb, outcomeSent).Inc()
				mu.Lock()
				t.sent++
				mu.Unlock()
				return nil
			}

			removed := c.handleFailure(ctx, sub.ID, sub.Endpoint, attempts, err)
			mu.Lock()
			t.failed++
			if removed {
				t.removed++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	res := t.result(start, false)
	span.SetAttributes(
		attribute.Int("push.total", res.Total),
		attribute.Int("push.sent", res.Sent),
		attribute.Int("push.removed", res.InvalidRemoved),
	)
	c.Log.Info().
		Str("user_id", userID).
		Int("sent", res.Sent).
		Int("failed", res.Failed).
		Int("total", res.Total).
		Int("removed", res.InvalidRemoved).
		Msg("web push dispatched")
	return res
}

// handleFailure classifies a failed send and prunes dead subscriptions.
// It reports whether the subscription was deleted.
func (c *WebChannel) handleFailure(ctx context.Context, id, endpoint string, attempts int, err error) bool {
	status := statusOf(err)
	ev := c.Log.Warn().
		Err(err).
		Int("status", status).
		Int("attempts", attempts).
		Str("endpoint", shortEndpoint(endpoint))

	if ClassifyWeb(err) != Permanent {
		deliveries.WithLabelValues(channelWeb, outcomeFailed).Inc()
		ev.Msg(webFailureReason(status))
		return false
	}

	ev.Msg(webFailureReason(status) + ", removing")
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.lookupTimeout())
	defer cancel()
	if derr := c.Store.DeleteByID(dctx, id); derr != nil {
		deliveries.WithLabelValues(channelWeb, outcomeFailed).Inc()
		c.Log.Error().Err(derr).Str("subscription_id", id).Msg("delete expired subscription failed")
		return false
	}
	deliveries.WithLabelValues(channelWeb, outcomePruned).Inc()
	pruned.WithLabelValues(channelWeb).Inc()
	return true
}

func (c *WebChannel) lookup(ctx context.Context, userID string) ([]domain.WebPushSubscription, error) {
	lctx, cancel := context.WithTimeout(ctx, c.lookupTimeout())
	defer cancel()
	return c.Store.ListActive(lctx, userID)
}

func (c *WebChannel) lookupTimeout() time.Duration {
	if c.LookupTimeout > 0 {
		return c.LookupTimeout
	}
	return DefaultLookupTimeout
}

// shortEndpoint keeps endpoint logs readable; push URLs end in a long opaque id.
func shortEndpoint(endpoint string) string {
	const keep = 48
	if len(endpoint) <= keep {
		return endpoint
	}
	return endpoint[:keep] + "..."
}
