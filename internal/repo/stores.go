// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file adapts the free repository functions to the
// interfaces the push engine and the notification service consume.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-push/internal/domain"
)

// SubscriptionStore implements push.SubscriptionStore on top of GORM.
type SubscriptionStore struct{ DB *gorm.DB }

func (s SubscriptionStore) ListActive(ctx context.Context, userID string) ([]domain.WebPushSubscription, error) {
	return ListActiveSubscriptions(ctx, s.DB, userID)
}

func (s SubscriptionStore) DeleteByID(ctx context.Context, id string) error {
	return DeleteSubscription(ctx, s.DB, id)
}

func (s SubscriptionStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	return DeleteSubscriptionByEndpoint(ctx, s.DB, endpoint)
}

// TokenStore implements push.TokenStore on top of GORM.
type TokenStore struct{ DB *gorm.DB }

func (s TokenStore) GetTokens(ctx context.Context, userID string) ([]domain.DeviceToken, error) {
	return ListDeviceTokens(ctx, s.DB, userID)
}

func (s TokenStore) SaveTokens(ctx context.Context, userID string, removeIDs, usedIDs []string, usedAt time.Time) error {
	return UpdateDeviceTokens(ctx, s.DB, userID, removeIDs, usedIDs, usedAt)
}

// UserDirectory resolves users from the local users table.
type UserDirectory struct{ DB *gorm.DB }

// FindUser returns the user or ErrNotFound.
func (d UserDirectory) FindUser(ctx context.Context, id string) (*domain.User, error) {
	return GetUser(ctx, d.DB, id)
}
