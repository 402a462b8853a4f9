// Package services – SubscriptionService
//
// This file implements SubscriptionService, which manages the browser side of
// the endpoint registry. It validates Web Push subscriptions sent by the
// service worker, upserts them by endpoint, lists them with pagination, and
// handles the explicit user actions (soft toggle, hard unsubscribe).
package services

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-push/internal/domain"
	"github.com/tbourn/go-chat-push/internal/utils"
)

// SubscriptionRepo defines the repository contract required by
// SubscriptionService.
type SubscriptionRepo interface {
	// Upsert inserts or refreshes a subscription by endpoint.
	Upsert(ctx context.Context, db *gorm.DB, s *domain.WebPushSubscription) (*domain.WebPushSubscription, error)

	// Count returns the number of subscriptions owned by userID.
	Count(ctx context.Context, db *gorm.DB, userID string) (int64, error)

	// ListPage returns a page of subscriptions owned by userID.
	ListPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.WebPushSubscription, error)

	// SetActive flips the soft on/off switch of a subscription.
	SetActive(ctx context.Context, db *gorm.DB, id, userID string, active bool) error

	// DeleteByEndpoint hard-deletes the user's subscription for endpoint.
	DeleteByEndpoint(ctx context.Context, db *gorm.DB, userID, endpoint string) error

	// Stats returns the subscription count and latest UpdatedAt for userID.
	Stats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error)
}

// SubscriptionService provides registry operations for Web Push endpoints.
type SubscriptionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the subscription repository used by this service.
	Repo SubscriptionRepo

	// AllowInsecure accepts http:// endpoints (local push service emulators).
	AllowInsecure bool
}

// NewSubscriptionService constructs a SubscriptionService.
func NewSubscriptionService(db *gorm.DB, r SubscriptionRepo) *SubscriptionService {
	return &SubscriptionService{DB: db, Repo: r}
}

// Subscribe validates and stores a subscription for userID. Subscribing an
// endpoint that is already known refreshes it and reactivates it.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID string, sub domain.WebPushSubscription) (*domain.WebPushSubscription, error) {
	ctx, span := otel.Tracer("services/SubscriptionService").Start(ctx, "Subscribe",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	sub.Endpoint = strings.TrimSpace(sub.Endpoint)
	if err := s.validateEndpoint(sub.Endpoint); err != nil {
		return nil, err
	}
	sub.P256dh = strings.TrimSpace(sub.P256dh)
	sub.Auth = strings.TrimSpace(sub.Auth)
	if !validKey(sub.P256dh, 65) || !validKey(sub.Auth, 16) {
		return nil, ErrInvalidKeys
	}
	sub.UserID = userID
	sub.UserAgent = clip(strings.TrimSpace(sub.UserAgent), 512)
	sub.DeviceInfo = clip(strings.TrimSpace(sub.DeviceInfo), 512)
	return s.Repo.Upsert(ctx, s.DB, &sub)
}

// ListPage returns a page of subscriptions for a user (paginated).
// It applies defaults for invalid page/pageSize and returns total count.
func (s *SubscriptionService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.WebPushSubscription, int64, error) {
	ctx, span := otel.Tracer("services/SubscriptionService").Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := utils.Offset(page, pageSize)

	total, err := s.Repo.Count(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.WebPushSubscription{}, 0, nil
	}

	items, err := s.Repo.ListPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// Stats reports how many subscriptions userID has and when the newest change
// happened, for conditional list responses.
func (s *SubscriptionService) Stats(ctx context.Context, userID string) (int64, *time.Time, error) {
	return s.Repo.Stats(ctx, s.DB, userID)
}

// SetActive turns delivery to one of the user's subscriptions on or off
// without forgetting it.
func (s *SubscriptionService) SetActive(ctx context.Context, userID, id string, active bool) error {
	if err := s.Repo.SetActive(ctx, s.DB, id, userID, active); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubscriptionNotFound
		}
		return err
	}
	return nil
}

// Unsubscribe removes the user's subscription for endpoint.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	if err := s.Repo.DeleteByEndpoint(ctx, s.DB, userID, strings.TrimSpace(endpoint)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubscriptionNotFound
		}
		return err
	}
	return nil
}

func (s *SubscriptionService) validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return ErrInvalidEndpoint
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if s.AllowInsecure {
			return nil
		}
	}
	return ErrInvalidEndpoint
}

// validKey reports whether k is base64 (URL or standard alphabet, padding
// optional) decoding to exactly n bytes.
func validKey(k string, n int) bool {
	if k == "" {
		return false
	}
	k = strings.TrimRight(k, "=")
	b, err := base64.RawURLEncoding.DecodeString(k)
	if err != nil {
		b, err = base64.RawStdEncoding.DecodeString(k)
	}
	return err == nil && len(b) == n
}

// clip truncates s to at most n bytes on a rune boundary.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
