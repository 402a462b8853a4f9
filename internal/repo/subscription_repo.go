// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for Web Push
// subscriptions.
//
// Subscriptions are keyed naturally by their endpoint URL: subscribing twice
// from the same browser refreshes the keys and owner of the existing row and
// reactivates it. Rows are hard-deleted when the push service reports the
// endpoint gone, and soft-toggled through IsActive on explicit user request.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-chat-push/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// UpsertSubscription inserts s or, when its endpoint is already registered,
// overwrites owner, keys and metadata and reactivates it. The stored row is
// returned.
func UpsertSubscription(ctx context.Context, db *gorm.DB, s *domain.WebPushSubscription) (*domain.WebPushSubscription, error) {
	now := time.Now().UTC()
	row := &domain.WebPushSubscription{
		ID:         uuid.NewString(),
		UserID:     s.UserID,
		Endpoint:   s.Endpoint,
		P256dh:     s.P256dh,
		Auth:       s.Auth,
		UserAgent:  s.UserAgent,
		DeviceInfo: s.DeviceInfo,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.Assignments(map[string]any{
			"user_id":     row.UserID,
			"p256dh":      row.P256dh,
			"auth":        row.Auth,
			"user_agent":  row.UserAgent,
			"device_info": row.DeviceInfo,
			"is_active":   true,
			"updated_at":  now,
		}),
	}).Create(row).Error
	if err != nil {
		return nil, err
	}

	var out domain.WebPushSubscription
	if err := db.WithContext(ctx).Where("endpoint = ?", s.Endpoint).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// ListActiveSubscriptions returns the user's subscriptions with IsActive set,
// oldest first.
func ListActiveSubscriptions(ctx context.Context, db *gorm.DB, userID string) ([]domain.WebPushSubscription, error) {
	var out []domain.WebPushSubscription
	err := db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// CountSubscriptions returns the number of subscriptions owned by userID,
// active or not.
func CountSubscriptions(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.WebPushSubscription{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListSubscriptionsPage returns a page of the user's subscriptions, newest first.
func ListSubscriptionsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.WebPushSubscription, error) {
	var out []domain.WebPushSubscription
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetSubscription fetches a subscription by ID and owner.
func GetSubscription(ctx context.Context, db *gorm.DB, id, userID string) (*domain.WebPushSubscription, error) {
	var s domain.WebPushSubscription
	if err := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// SetSubscriptionActive flips the soft on/off switch of a subscription owned
// by userID. It returns ErrNotFound if no row matched.
func SetSubscriptionActive(ctx context.Context, db *gorm.DB, id, userID string, active bool) error {
	res := db.WithContext(ctx).
		Model(&domain.WebPushSubscription{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"is_active": active, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSubscription hard-deletes a subscription by ID. Deleting a missing
// row is not an error.
func DeleteSubscription(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.WebPushSubscription{}).Error
}

// DeleteSubscriptionByEndpoint hard-deletes the subscription for endpoint,
// whoever owns it.
func DeleteSubscriptionByEndpoint(ctx context.Context, db *gorm.DB, endpoint string) error {
	return db.WithContext(ctx).Where("endpoint = ?", endpoint).Delete(&domain.WebPushSubscription{}).Error
}

// DeleteUserSubscription hard-deletes the user's subscription for endpoint.
// It returns ErrNotFound if the user has no such subscription.
func DeleteUserSubscription(ctx context.Context, db *gorm.DB, userID, endpoint string) error {
	res := db.WithContext(ctx).
		Where("user_id = ? AND endpoint = ?", userID, endpoint).
		Delete(&domain.WebPushSubscription{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
