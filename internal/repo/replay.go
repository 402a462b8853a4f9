package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-chat-push/internal/domain"
)

// FindReplay returns the live record for (callerID, scope, key) or
// ErrNotFound. A blank key never matches.
func FindReplay(ctx context.Context, db *gorm.DB, callerID, scope, key string, now time.Time) (*domain.ReplayRecord, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.ReplayRecord
	err := db.WithContext(ctx).
		Where("caller_id = ? AND scope = ? AND key = ? AND expires_at > ?", callerID, scope, key, now).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// RememberReplay stores logID as the answer for (callerID, scope, key) for
// ttl. A live record for the same triple wins and stored is false; an
// expired one that was not purged yet is overwritten.
func RememberReplay(ctx context.Context, db *gorm.DB, callerID, scope, key, logID string, ttl time.Duration) (stored bool, err error) {
	now := time.Now().UTC()
	rec := domain.ReplayRecord{
		ID:        uuid.NewString(),
		CallerID:  callerID,
		Scope:     scope,
		Key:       key,
		LogID:     logID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "caller_id"}, {Name: "scope"}, {Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"id":         rec.ID,
			"log_id":     logID,
			"created_at": rec.CreatedAt,
			"expires_at": rec.ExpiresAt,
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "replay_records.expires_at <= ?", Vars: []any{now}},
		}},
	}).Create(&rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// PurgeExpiredReplays deletes records that expired at or before now.
func PurgeExpiredReplays(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.ReplayRecord{})
	return res.RowsAffected, res.Error
}
