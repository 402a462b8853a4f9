// Package services – NotificationService
//
// This file implements the fan-out orchestrator. Upstream collaborators (the
// message and call services) hand over an already-resolved receiver and event;
// the orchestrator resolves the sender through the user directory, builds the
// payload once, dispatches it to the web and mobile channels concurrently and
// records the aggregated outcome as a DeliveryLog.
//
// Nothing here returns an error to the caller. Validation failures, missing
// senders, channel failures and even panics inside a channel end up in the
// returned results.
//
// Observability: every public method is OpenTelemetry-instrumented and each
// fan-out is logged with its per-channel counts.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-push/internal/domain"
	"github.com/tbourn/go-chat-push/internal/observability"
	"github.com/tbourn/go-chat-push/internal/push"
	"github.com/tbourn/go-chat-push/internal/repo"
	"github.com/tbourn/go-chat-push/internal/sysutil"
	"github.com/tbourn/go-chat-push/internal/utils"
)

// Channel is a single delivery channel (push.WebChannel, push.MobileChannel).
type Channel interface {
	Send(ctx context.Context, userID string, p push.Payload) push.DeliveryResult
}

// UserDirectory resolves the display identity of a user.
type UserDirectory interface {
	// FindUser returns the user or an error when it does not exist.
	FindUser(ctx context.Context, id string) (*domain.User, error)
}

// errInternal is reported when a channel panics.
var errInternal = errors.New("internal error")

// Default lookup and bookkeeping bounds.
const (
	defaultLookupTimeout  = 5 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
)

// ChannelNotifier exposes the event-level operations for a single channel.
type ChannelNotifier struct {
	Channel Channel
	Users   UserDirectory
	Builder *push.Builder

	// Unconfigured is reported when Channel is nil.
	Unconfigured error

	Log zerolog.Logger
}

// NewChannelNotifier wires a notifier. A nil channel makes every call report
// unconfigured.
func NewChannelNotifier(name string, ch Channel, users UserDirectory, b *push.Builder, unconfigured error) *ChannelNotifier {
	if b == nil {
		b = push.NewBuilder("")
	}
	return &ChannelNotifier{
		Channel:      ch,
		Users:        users,
		Builder:      b,
		Unconfigured: unconfigured,
		Log:          log.With().Str("component", "notifier."+name).Logger(),
	}
}

// Send validates and delivers a generic payload to userID.
func (n *ChannelNotifier) Send(ctx context.Context, userID string, p push.Payload) (res push.DeliveryResult) {
	defer recoverResult(n.Log, &res)

	if err := validate(userID, p); err != nil {
		return failed(err)
	}
	if n.Channel == nil {
		return failed(n.unconfigured())
	}
	return n.Channel.Send(ctx, userID, p)
}

// NotifyDirectMessage notifies receiverID about a one-to-one message.
func (n *ChannelNotifier) NotifyDirectMessage(ctx context.Context, receiverID string, msg push.MessageEvent) push.DeliveryResult {
	return n.notify(ctx, receiverID, msg.SenderID, func(s push.Sender) push.Payload {
		return n.Builder.DirectMessage(s, msg)
	})
}

// NotifyGroupMessage notifies receiverID about a message posted to a group.
func (n *ChannelNotifier) NotifyGroupMessage(ctx context.Context, receiverID string, msg push.MessageEvent, group push.GroupInfo) push.DeliveryResult {
	return n.notify(ctx, receiverID, msg.SenderID, func(s push.Sender) push.Payload {
		return n.Builder.GroupMessage(s, msg, group)
	})
}

// NotifyCall notifies receiverID about an incoming call.
func (n *ChannelNotifier) NotifyCall(ctx context.Context, receiverID string, call push.CallEvent) push.DeliveryResult {
	return n.notify(ctx, receiverID, call.CallerID, func(s push.Sender) push.Payload {
		return n.Builder.Call(s, call)
	})
}

// NotifyMissedCall notifies receiverID about a call nobody answered.
func (n *ChannelNotifier) NotifyMissedCall(ctx context.Context, receiverID string, call push.CallEvent) push.DeliveryResult {
	return n.notify(ctx, receiverID, call.CallerID, func(s push.Sender) push.Payload {
		return n.Builder.MissedCall(s, call)
	})
}

func (n *ChannelNotifier) notify(ctx context.Context, receiverID, senderID string, build func(push.Sender) push.Payload) (res push.DeliveryResult) {
	defer recoverResult(n.Log, &res)

	if strings.TrimSpace(receiverID) == "" {
		return failed(push.ErrUserIDRequired)
	}
	sender, err := resolveSender(ctx, n.Users, senderID)
	if err != nil {
		n.Log.Warn().Err(err).Str("sender_id", senderID).Msg("sender lookup failed")
		return failed(push.ErrSenderNotFound)
	}
	return n.Send(ctx, receiverID, build(sender))
}

func (n *ChannelNotifier) unconfigured() error {
	if n.Unconfigured != nil {
		return n.Unconfigured
	}
	return errInternal
}

// FanOutResult aggregates both channels for one notification.
// Success is true when at least one channel delivered.
type FanOutResult struct {
	LogID    string              `json:"log_id,omitempty"`
	Web      push.DeliveryResult `json:"web"`
	Mobile   push.DeliveryResult `json:"mobile"`
	Success  bool                `json:"success"`
	Replayed bool                `json:"replayed,omitempty"`
}

// NotificationService fans one notification out to every channel.
type NotificationService struct {
	Web     *ChannelNotifier
	Mobile  *ChannelNotifier
	Users   UserDirectory
	Builder *push.Builder

	// DB stores delivery logs and idempotency records. Nil disables both.
	DB *gorm.DB
	// IdempotencyTTL bounds how long a replay is served. <= 0 means 24h.
	IdempotencyTTL time.Duration

	Log zerolog.Logger
}

// NewNotificationService wires the orchestrator over a web and a mobile channel.
// Either channel may be nil when it is not configured.
func NewNotificationService(web, mobile Channel, users UserDirectory, b *push.Builder, db *gorm.DB) *NotificationService {
	if b == nil {
		b = push.NewBuilder("")
	}
	return &NotificationService{
		Web:            NewChannelNotifier("web", web, users, b, push.ErrVAPIDNotConfigured),
		Mobile:         NewChannelNotifier("mobile", mobile, users, b, push.ErrFCMNotConfigured),
		Users:          users,
		Builder:        b,
		DB:             db,
		IdempotencyTTL: defaultIdempotencyTTL,
		Log:            log.With().Str("component", "notifications").Logger(),
	}
}

// Send delivers a generic payload to userID on every channel.
func (s *NotificationService) Send(ctx context.Context, userID string, p push.Payload) FanOutResult {
	ctx, span := s.start(ctx, "Send", userID, "")
	defer span.End()

	if err := validate(userID, p); err != nil {
		return rejected(err)
	}
	eventID := ""
	if p.Data != nil {
		eventID = p.Data["id"]
	}
	return s.dispatch(ctx, userID, "custom", eventID, p)
}

// NotifyDirectMessage notifies receiverID about a one-to-one message.
func (s *NotificationService) NotifyDirectMessage(ctx context.Context, receiverID string, msg push.MessageEvent) FanOutResult {
	ctx, span := s.start(ctx, "NotifyDirectMessage", receiverID, msg.ID)
	defer span.End()
	return s.event(ctx, receiverID, push.KindMessage, msg.ID, msg.SenderID, func(snd push.Sender) push.Payload {
		return s.Builder.DirectMessage(snd, msg)
	})
}

// NotifyGroupMessage notifies receiverID about a message posted to a group.
func (s *NotificationService) NotifyGroupMessage(ctx context.Context, receiverID string, msg push.MessageEvent, group push.GroupInfo) FanOutResult {
	ctx, span := s.start(ctx, "NotifyGroupMessage", receiverID, msg.ID)
	defer span.End()
	return s.event(ctx, receiverID, push.KindGroupMessage, msg.ID, msg.SenderID, func(snd push.Sender) push.Payload {
		return s.Builder.GroupMessage(snd, msg, group)
	})
}

// NotifyCall notifies receiverID about an incoming call.
func (s *NotificationService) NotifyCall(ctx context.Context, receiverID string, call push.CallEvent) FanOutResult {
	ctx, span := s.start(ctx, "NotifyCall", receiverID, call.ID)
	defer span.End()
	return s.event(ctx, receiverID, push.KindCall, call.ID, call.CallerID, func(snd push.Sender) push.Payload {
		return s.Builder.Call(snd, call)
	})
}

// NotifyMissedCall notifies receiverID about a call nobody answered.
func (s *NotificationService) NotifyMissedCall(ctx context.Context, receiverID string, call push.CallEvent) FanOutResult {
	ctx, span := s.start(ctx, "NotifyMissedCall", receiverID, call.ID)
	defer span.End()
	return s.event(ctx, receiverID, push.KindMissedCall, call.ID, call.CallerID, func(snd push.Sender) push.Payload {
		return s.Builder.MissedCall(snd, call)
	})
}

// Idempotent runs fn unless a result for (callerID, scope, key) was already
// recorded, in which case the stored delivery log is replayed. callerID is
// whoever asked for the notification, not the receiver. A blank key always
// runs fn.
func (s *NotificationService) Idempotent(ctx context.Context, callerID, scope, key string, fn func(context.Context) FanOutResult) FanOutResult {
	key = strings.TrimSpace(key)
	if key == "" || s.DB == nil {
		return fn(ctx)
	}

	if rec, err := repo.FindReplay(ctx, s.DB, callerID, scope, key, time.Now().UTC()); err == nil {
		if l, err := repo.FindDeliveryLog(ctx, s.DB, rec.LogID); err == nil {
			res := resultFromLog(l)
			res.Replayed = true
			return res
		}
	}

	res := fn(ctx)
	if res.LogID != "" {
		if _, err := repo.RememberReplay(ctx, s.DB, callerID, scope, key, res.LogID, s.idempotencyTTL()); err != nil {
			s.Log.Warn().Err(err).Str("caller_id", callerID).Str("scope", scope).Msg("store idempotency record failed")
		}
	}
	return res
}

// ListLogs returns a page of delivery logs for userID, newest first.
func (s *NotificationService) ListLogs(ctx context.Context, userID string, page, pageSize int) ([]domain.DeliveryLog, int64, error) {
	ctx, span := otel.Tracer("services/NotificationService").Start(ctx, "ListLogs",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if s.DB == nil {
		return []domain.DeliveryLog{}, 0, nil
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := repo.CountDeliveryLogs(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.DeliveryLog{}, 0, nil
	}
	items, err := repo.ListDeliveryLogsPage(ctx, s.DB, userID, utils.Offset(page, pageSize), pageSize)
	return items, total, err
}

// LogStats reports how many delivery logs userID has and the latest
// UpdatedAt among them. Without a DB both are zero.
func (s *NotificationService) LogStats(ctx context.Context, userID string) (int64, *time.Time, error) {
	if s.DB == nil {
		return 0, nil, nil
	}
	return repo.DeliveryLogsStats(ctx, s.DB, userID)
}

func (s *NotificationService) event(ctx context.Context, receiverID string, kind push.EventKind, eventID, senderID string, build func(push.Sender) push.Payload) FanOutResult {
	if strings.TrimSpace(receiverID) == "" {
		return rejected(push.ErrUserIDRequired)
	}
	sender, err := resolveSender(ctx, s.Users, senderID)
	if err != nil {
		s.Log.Warn().Err(err).Str("sender_id", senderID).Str("event", string(kind)).Msg("sender lookup failed")
		return rejected(push.ErrSenderNotFound)
	}
	return s.dispatch(ctx, receiverID, string(kind), eventID, build(sender))
}

func outcome(channel string, r push.DeliveryResult) observability.ChannelOutcome {
	return observability.ChannelOutcome{Channel: channel, Sent: r.Sent, Failed: r.Failed, Total: r.Total, Error: r.Error}
}

// dispatch runs both channels concurrently and records the outcome.
func (s *NotificationService) dispatch(ctx context.Context, userID, kind, eventID string, p push.Payload) FanOutResult {
	var res FanOutResult
	var g errgroup.Group
	g.Go(func() error {
		res.Web = s.Web.Send(ctx, userID, p)
		return nil
	})
	g.Go(func() error {
		res.Mobile = s.Mobile.Send(ctx, userID, p)
		return nil
	})
	_ = g.Wait()
	res.Success = res.Web.Success || res.Mobile.Success
	observability.RecordDelivery(trace.SpanFromContext(ctx), res.Success,
		outcome("web", res.Web), outcome("mobile", res.Mobile))

	res.LogID = s.record(ctx, userID, kind, eventID, p.Title, res)

	s.Log.Info().
		Str("user_id", userID).
		Str("event", kind).
		Str("event_id", eventID).
		Bool("success", res.Success).
		Int("web_sent", res.Web.Sent).
		Int("web_total", res.Web.Total).
		Int("mobile_sent", res.Mobile.Sent).
		Int("mobile_total", res.Mobile.Total).
		Msg("notification dispatched")
	return res
}

// record persists a DeliveryLog, returning its ID or "" when logging is off
// or failed.
func (s *NotificationService) record(ctx context.Context, userID, kind, eventID, title string, res FanOutResult) string {
	if s.DB == nil {
		return ""
	}
	l := &domain.DeliveryLog{
		UserID:       userID,
		EventType:    kind,
		EventID:      eventID,
		Title:        title,
		Success:      res.Success,
		WebSent:      res.Web.Sent,
		WebFailed:    res.Web.Failed,
		WebTotal:     res.Web.Total,
		WebPruned:    res.Web.InvalidRemoved,
		WebError:     res.Web.Error,
		MobileSent:   res.Mobile.Sent,
		MobileFailed: res.Mobile.Failed,
		MobileTotal:  res.Mobile.Total,
		MobilePruned: res.Mobile.InvalidRemoved,
		MobileError:  res.Mobile.Error,
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultLookupTimeout)
	defer cancel()
	if err := repo.CreateDeliveryLog(wctx, s.DB, l); err != nil {
		s.Log.Warn().Err(err).Str("user_id", userID).Msg("store delivery log failed")
		return ""
	}
	return l.ID
}

func (s *NotificationService) start(ctx context.Context, op, userID, eventID string) (context.Context, trace.Span) {
	return otel.Tracer("services/NotificationService").Start(ctx, op,
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("event.id", eventID),
		),
	)
}

func (s *NotificationService) idempotencyTTL() time.Duration {
	if s.IdempotencyTTL > 0 {
		return s.IdempotencyTTL
	}
	return defaultIdempotencyTTL
}

// resultFromLog rebuilds a FanOutResult from a stored log.
func resultFromLog(l *domain.DeliveryLog) FanOutResult {
	return FanOutResult{
		LogID:   l.ID,
		Success: l.Success,
		Web: push.DeliveryResult{
			Success:        l.WebSent > 0,
			Sent:           l.WebSent,
			Failed:         l.WebFailed,
			Total:          l.WebTotal,
			InvalidRemoved: l.WebPruned,
			Error:          l.WebError,
		},
		Mobile: push.DeliveryResult{
			Success:        l.MobileSent > 0,
			Sent:           l.MobileSent,
			Failed:         l.MobileFailed,
			Total:          l.MobileTotal,
			InvalidRemoved: l.MobilePruned,
			Error:          l.MobileError,
		},
	}
}

// resolveSender looks up senderID with a bounded timeout.
func resolveSender(ctx context.Context, users UserDirectory, senderID string) (push.Sender, error) {
	if users == nil {
		return push.Sender{}, errors.New("no user directory")
	}
	if strings.TrimSpace(senderID) == "" {
		return push.Sender{}, errors.New("empty sender id")
	}
	lctx, cancel := context.WithTimeout(ctx, defaultLookupTimeout)
	defer cancel()
	u, err := users.FindUser(lctx, senderID)
	if err != nil {
		return push.Sender{}, err
	}
	if u == nil {
		return push.Sender{}, errors.New("sender not found")
	}
	return push.Sender{ID: u.ID, Name: sysutil.FirstNonEmpty(u.Fullname, "Someone"), Avatar: u.ProfilePic}, nil
}

func validate(userID string, p push.Payload) error {
	if strings.TrimSpace(userID) == "" {
		return push.ErrUserIDRequired
	}
	if strings.TrimSpace(p.Title) == "" {
		return push.ErrTitleRequired
	}
	return nil
}

func failed(err error) push.DeliveryResult {
	return push.DeliveryResult{Success: false, Error: err.Error()}
}

func rejected(err error) FanOutResult {
	return FanOutResult{Web: failed(err), Mobile: failed(err)}
}

// recoverResult turns a panic in a channel into an unsuccessful result.
func recoverResult(lg zerolog.Logger, res *push.DeliveryResult) {
	if r := recover(); r != nil {
		lg.Error().Str("panic", fmt.Sprint(r)).Msg("push channel panicked")
		*res = failed(errInternal)
	}
}
