// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-push/internal/domain"
)

// SubscriptionsStats returns the number of subscriptions owned by userID and
// the greatest UpdatedAt among them (nil when there are none).
func SubscriptionsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	return statsFor(db.WithContext(ctx).Model(&domain.WebPushSubscription{}).Where("user_id = ?", userID))
}

// DeliveryLogsStats returns the number of delivery logs for userID and the
// greatest UpdatedAt among them (nil when there are none).
func DeliveryLogsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	return statsFor(db.WithContext(ctx).Model(&domain.DeliveryLog{}).Where("user_id = ?", userID))
}

func statsFor(q *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	if err = q.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Session(&gorm.Session{}).Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
