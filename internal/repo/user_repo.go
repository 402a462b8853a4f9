// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the user
// directory projection and its device tokens.
//
// Device tokens belong to the User aggregate. After a fan-out the push engine
// names the tokens it pruned and the ones it reached, and both changes land in
// one transaction (UpdateDeviceTokens).
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-chat-push/internal/domain"
)

// UpsertUser inserts or updates the display identity of a user.
func UpsertUser(ctx context.Context, db *gorm.DB, id, fullname, profilePic string) (*domain.User, error) {
	now := time.Now().UTC()
	u := &domain.User{
		ID:         id,
		Fullname:   fullname,
		ProfilePic: profilePic,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"fullname":    fullname,
			"profile_pic": profilePic,
			"updated_at":  now,
		}),
	}).Create(u).Error
	if err != nil {
		return nil, err
	}
	return GetUser(ctx, db, id)
}

// GetUser fetches a user by ID without its tokens.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// ListDeviceTokens returns every token registered for userID, oldest first.
func ListDeviceTokens(ctx context.Context, db *gorm.DB, userID string) ([]domain.DeviceToken, error) {
	var out []domain.DeviceToken
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// UpdateDeviceTokens records one delivery round for userID in a single
// transaction: tokens in removeIDs are deleted and tokens in usedIDs get
// last_used = usedAt. Rows named in neither list are not touched, so a token
// registered while the round was in flight survives it.
func UpdateDeviceTokens(ctx context.Context, db *gorm.DB, userID string, removeIDs, usedIDs []string, usedAt time.Time) error {
	if len(removeIDs) == 0 && len(usedIDs) == 0 {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(removeIDs) > 0 {
			if err := tx.Where("user_id = ? AND id IN ?", userID, removeIDs).
				Delete(&domain.DeviceToken{}).Error; err != nil {
				return err
			}
		}
		if len(usedIDs) > 0 {
			return tx.Model(&domain.DeviceToken{}).
				Where("user_id = ? AND id IN ?", userID, usedIDs).
				Update("last_used", usedAt.UTC()).Error
		}
		return nil
	})
}

// RegisterDeviceToken attaches token to userID. The user row is created if
// missing. A token already registered to another user moves to this one, and
// re-registering refreshes the platform.
func RegisterDeviceToken(ctx context.Context, db *gorm.DB, userID, token string, platform domain.Platform) (*domain.DeviceToken, error) {
	var out domain.DeviceToken
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		user := domain.User{ID: userID, CreatedAt: now, UpdatedAt: now}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&user).Error; err != nil {
			return err
		}

		if err := tx.Where("token = ? AND user_id <> ?", token, userID).
			Delete(&domain.DeviceToken{}).Error; err != nil {
			return err
		}

		row := domain.DeviceToken{
			ID:        uuid.NewString(),
			UserID:    userID,
			Token:     token,
			Platform:  platform,
			CreatedAt: now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "token"}},
			DoUpdates: clause.Assignments(map[string]any{"platform": platform}),
		}).Create(&row).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ? AND token = ?", userID, token).First(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UnregisterDeviceToken removes token from userID. It returns ErrNotFound if
// the user had no such token.
func UnregisterDeviceToken(ctx context.Context, db *gorm.DB, userID, token string) error {
	res := db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&domain.DeviceToken{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
