package push

import (
	"context"
	"maps"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-chat-push/internal/domain"
)

const channelMobile = "mobile"

// Mobile channel defaults.
const (
	DefaultMobileConcurrency = 4
	DefaultMobileSendTimeout = 10 * time.Second

	MinTokenLength = 50
	MaxTokenLength = 500
)

// MobileChannel delivers a Payload to every FCM device token of a user. It is
// guarded by a CircuitBreaker that trips on consecutive provider failures.
type MobileChannel struct {
	Tokens   TokenStore
	Provider MobileProvider
	Breaker  *CircuitBreaker

	// Retry applies per token. Token errors are never retried.
	Retry RetryPolicy
	// Concurrency caps in-flight tokens. 1 sends strictly one after another.
	Concurrency int
	// SendTimeout bounds one token including all of its retries.
	SendTimeout time.Duration
	// LookupTimeout bounds GetTokens and SaveTokens.
	LookupTimeout time.Duration

	AndroidChannelID string
	IOSCategory      string

	Now func() time.Time
	Log zerolog.Logger
}

// NewMobileChannel wires a mobile channel with default retry, timeout and
// concurrency settings. A nil provider means FCM is not configured.
func NewMobileChannel(tokens TokenStore, provider MobileProvider, breaker *CircuitBreaker) *MobileChannel {
	if breaker == nil {
		breaker = NewCircuitBreaker(DefaultBreakerThreshold, DefaultBreakerTimeout)
	}
	return &MobileChannel{
		Tokens:   tokens,
		Provider: provider,
		Breaker:  breaker,
		Retry: RetryPolicy{
			MaxAttempts: DefaultMobileAttempts,
			Backoff:     ExponentialBackoff(DefaultMobileBaseDelay),
		},
		Concurrency:   DefaultMobileConcurrency,
		SendTimeout:   DefaultMobileSendTimeout,
		LookupTimeout: DefaultLookupTimeout,
		Log:           log.With().Str("component", "push.mobile").Logger(),
	}
}

// Configured reports whether the channel can send at all.
func (c *MobileChannel) Configured() bool { return c != nil && c.Provider != nil }

// ValidToken reports whether tok has a plausible FCM registration token length.
func ValidToken(tok string) bool {
	n := len(tok)
	return n >= MinTokenLength && n <= MaxTokenLength
}

type tokenOutcome int

const (
	tokenSent tokenOutcome = iota
	tokenFailed
	tokenInvalid
)

// Send pushes p to all of userID's device tokens. Tokens rejected as invalid
// or unregistered are removed and successful ones get LastUsed refreshed, both
// in a single SaveTokens call. Send never returns an error.
func (c *MobileChannel) Send(ctx context.Context, userID string, p Payload) DeliveryResult {
	ctx, span := otel.Tracer("push/MobileChannel").Start(ctx, "Send",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	start := time.Now()
	defer func() { dispatchDur.WithLabelValues(channelMobile).Observe(time.Since(start).Seconds()) }()

	if !c.Configured() {
		deliveries.WithLabelValues(channelMobile, outcomeDisabled).Inc()
		c.Log.Warn().Str("user_id", userID).Msg("mobile push skipped: FCM credentials not configured")
		return failure(ErrFCMNotConfigured)
	}

	if c.Breaker.IsOpen() {
		observeBreaker(c.Breaker)
		deliveries.WithLabelValues(channelMobile, outcomeShortCirc).Inc()
		c.Log.Warn().Str("user_id", userID).Msg("mobile push skipped: circuit breaker open")
		return failure(ErrCircuitOpen)
	}

	lctx, cancel := context.WithTimeout(ctx, c.lookupTimeout())
	tokens, err := c.Tokens.GetTokens(lctx, userID)
	cancel()
	if err != nil {
		c.Log.Error().Err(err).Str("user_id", userID).Msg("load device tokens failed")
		return failure(ErrLoadTokens)
	}
	if len(tokens) == 0 {
		c.Log.Debug().Str("user_id", userID).Msg("no device tokens")
		return failure(ErrNoDeviceTokens)
	}

	valid := make([]int, 0, len(tokens))
	for i, t := range tokens {
		if ValidToken(t.Token) {
			valid = append(valid, i)
		}
	}
	if len(valid) == 0 {
		c.Log.Debug().Str("user_id", userID).Int("tokens", len(tokens)).Msg("no valid device tokens")
		return failure(ErrNoValidTokens)
	}

	outcomes := make([]tokenOutcome, len(tokens))
	var g errgroup.Group
	g.SetLimit(c.concurrency())
	for _, i := range valid {
		g.Go(func() error {
			outcomes[i] = c.sendOne(ctx, tokens[i], p)
			return nil
		})
	}
	_ = g.Wait()
	observeBreaker(c.Breaker)

	var t tally
	for _, i := range valid {
		switch outcomes[i] {
		case tokenSent:
			t.sent++
		case tokenInvalid:
			t.failed++
			t.removed++
		default:
			t.failed++
		}
	}

	if t.sent > 0 || t.removed > 0 {
		if err := c.save(ctx, userID, tokens, valid, outcomes); err != nil {
			// Pruned tokens are still reported; the next call will retry the removal.
			c.Log.Error().Err(err).Str("user_id", userID).Msg("save device tokens failed")
		} else if t.removed > 0 {
			pruned.WithLabelValues(channelMobile).Add(float64(t.removed))
		}
	}

	res := t.result(start, true)
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
		Int64("duration_ms", res.DurationMS).
		Msg("mobile push dispatched")
	return res
}

// sendOne delivers to a single token. The retry loop races SendTimeout; when
// the timeout wins, whatever the abandoned attempt does afterwards is ignored.
//
// The breaker sees one event per token, from its final outcome: success
// resets it, a non-token failure or a timeout counts once, token errors and
// caller cancellation leave it alone.
func (c *MobileChannel) sendOne(ctx context.Context, tok domain.DeviceToken, p Payload) tokenOutcome {
	tctx, cancel := context.WithTimeout(ctx, c.sendTimeout())
	defer cancel()

	msg := c.message(tok, p)
	policy := c.Retry
	policy.IsRetryable = func(err error) bool { return !IsTokenError(err) }

	type outcome struct {
		attempts int
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		_, attempts, err := Retry(tctx, policy, func(ctx context.Context, _ int) (DeliveryID, error) {
			return c.Provider.Send(ctx, msg)
		})
		done <- outcome{attempts: attempts, err: err}
	}()

	select {
	case o := <-done:
		switch {
		case o.err == nil:
			c.Breaker.RecordSuccess()
			deliveries.WithLabelValues(channelMobile, outcomeSent).Inc()
			return tokenSent
		case IsTokenError(o.err):
			deliveries.WithLabelValues(channelMobile, outcomePruned).Inc()
			c.Log.Warn().Err(o.err).Str("token", maskToken(tok.Token)).Msg("invalid device token, removing")
			return tokenInvalid
		case ctx.Err() != nil:
			return c.cancelled()
		case tctx.Err() != nil:
			return c.timedOut(tok)
		}
		c.Breaker.RecordFailure()
		deliveries.WithLabelValues(channelMobile, outcomeFailed).Inc()
		c.Log.Warn().Err(o.err).Int("attempts", o.attempts).Str("token", maskToken(tok.Token)).Msg("mobile push failed")
		return tokenFailed
	case <-tctx.Done():
		if ctx.Err() != nil {
			return c.cancelled()
		}
		return c.timedOut(tok)
	}
}

func (c *MobileChannel) timedOut(tok domain.DeviceToken) tokenOutcome {
	c.Breaker.RecordFailure()
	deliveries.WithLabelValues(channelMobile, outcomeTimeout).Inc()
	c.Log.Warn().Err(ErrSendTimeout).Str("token", maskToken(tok.Token)).Dur("timeout", c.sendTimeout()).Msg("mobile push timed out")
	return tokenFailed
}

func (c *MobileChannel) cancelled() tokenOutcome {
	deliveries.WithLabelValues(channelMobile, outcomeFailed).Inc()
	return tokenFailed
}

// save applies the call's outcome: invalid tokens are deleted and sent ones
// get LastUsed. Only tokens this call classified are named, so tokens
// registered meanwhile, or skipped by the length filter, are left alone.
func (c *MobileChannel) save(ctx context.Context, userID string, tokens []domain.DeviceToken, valid []int, outcomes []tokenOutcome) error {
	var remove, used []string
	for _, i := range valid {
		switch outcomes[i] {
		case tokenInvalid:
			remove = append(remove, tokens[i].ID)
		case tokenSent:
			used = append(used, tokens[i].ID)
		}
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.lookupTimeout())
	defer cancel()
	return c.Tokens.SaveTokens(sctx, userID, remove, used, c.now())
}

// message builds the platform-specific FCM message for one token.
func (c *MobileChannel) message(tok domain.DeviceToken, p Payload) MobileMessage {
	data := make(map[string]string, len(p.Data)+1)
	maps.Copy(data, p.Data)
	if p.Tag != "" {
		data["tag"] = p.Tag
	}

	m := MobileMessage{
		Token:    tok.Token,
		Platform: tok.Platform,
		Title:    p.Title,
		Body:     p.Body,
		ImageURL: p.Image,
		Data:     data,
	}
	switch tok.Platform {
	case domain.PlatformIOS:
		m.APNS = &APNSOptions{
			Sound:            "default",
			Badge:            1,
			ContentAvailable: true,
			Category:         c.IOSCategory,
			ThreadID:         p.Data["senderId"],
		}
	default:
		m.Android = &AndroidOptions{
			Priority:  "high",
			Sound:     "default",
			ChannelID: c.AndroidChannelID,
			Tag:       p.Tag,
		}
	}
	return m
}

func (c *MobileChannel) concurrency() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	return DefaultMobileConcurrency
}

func (c *MobileChannel) sendTimeout() time.Duration {
	if c.SendTimeout > 0 {
		return c.SendTimeout
	}
	return DefaultMobileSendTimeout
}

func (c *MobileChannel) lookupTimeout() time.Duration {
	if c.LookupTimeout > 0 {
		return c.LookupTimeout
	}
	return DefaultLookupTimeout
}

func (c *MobileChannel) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// maskToken keeps enough of a device token to correlate log lines.
func maskToken(tok string) string {
	if len(tok) <= 12 {
		return "***"
	}
	return tok[:8] + "***"
}
