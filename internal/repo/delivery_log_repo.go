// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for delivery logs,
// the per-notification history written by the fan-out orchestrator.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-push/internal/domain"
)

// CreateDeliveryLog inserts l, assigning an ID and timestamps when unset.
func CreateDeliveryLog(ctx context.Context, db *gorm.DB, l *domain.DeliveryLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	return db.WithContext(ctx).Create(l).Error
}

// GetDeliveryLog fetches a log by ID and owner.
func GetDeliveryLog(ctx context.Context, db *gorm.DB, id, userID string) (*domain.DeliveryLog, error) {
	var l domain.DeliveryLog
	if err := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// FindDeliveryLog fetches a log by ID regardless of owner. Idempotent replays
// use it because the replaying caller is not the notified user.
func FindDeliveryLog(ctx context.Context, db *gorm.DB, id string) (*domain.DeliveryLog, error) {
	var l domain.DeliveryLog
	if err := db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// CountDeliveryLogs returns the number of logs recorded for userID.
func CountDeliveryLogs(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.DeliveryLog{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListDeliveryLogsPage returns a page of the user's logs, newest first.
func ListDeliveryLogsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.DeliveryLog, error) {
	var out []domain.DeliveryLog
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
