// Package services – DeviceService
//
// This file implements DeviceService, which owns the mobile side of the
// endpoint registry and the local user directory projection: display name
// and avatar used to render notifications, and the FCM tokens of the user's
// devices.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-push/internal/domain"
	"github.com/tbourn/go-chat-push/internal/push"
)

// DeviceRepo defines the repository contract required by DeviceService.
type DeviceRepo interface {
	// UpsertUser inserts or updates a user's display identity.
	UpsertUser(ctx context.Context, db *gorm.DB, id, fullname, profilePic string) (*domain.User, error)

	// RegisterToken attaches a device token to a user.
	RegisterToken(ctx context.Context, db *gorm.DB, userID, token string, platform domain.Platform) (*domain.DeviceToken, error)

	// UnregisterToken detaches a device token from a user.
	UnregisterToken(ctx context.Context, db *gorm.DB, userID, token string) error
}

// DeviceService manages users and their device tokens.
type DeviceService struct {
	DB   *gorm.DB
	Repo DeviceRepo

	// NameMaxLen caps stored display names by rune length.
	NameMaxLen int
}

// NewDeviceService constructs a DeviceService with default limits.
func NewDeviceService(db *gorm.DB, r DeviceRepo) *DeviceService {
	return &DeviceService{DB: db, Repo: r, NameMaxLen: 255}
}

// UpsertUser records the display identity used when userID triggers a
// notification.
func (s *DeviceService) UpsertUser(ctx context.Context, userID, fullname, profilePic string) (*domain.User, error) {
	userID = strings.TrimSpace(userID)
	fullname = normalizeName(fullname)
	if userID == "" || fullname == "" {
		return nil, ErrInvalidUser
	}
	if s.NameMaxLen > 0 {
		if r := []rune(fullname); len(r) > s.NameMaxLen {
			fullname = string(r[:s.NameMaxLen])
		}
	}
	return s.Repo.UpsertUser(ctx, s.DB, userID, fullname, strings.TrimSpace(profilePic))
}

// RegisterToken validates and attaches a device token to userID.
func (s *DeviceService) RegisterToken(ctx context.Context, userID, token string, platform domain.Platform) (*domain.DeviceToken, error) {
	token = strings.TrimSpace(token)
	if !push.ValidToken(token) {
		return nil, ErrInvalidToken
	}
	platform = domain.Platform(strings.ToLower(strings.TrimSpace(string(platform))))
	if !platform.Valid() {
		return nil, ErrInvalidPlatform
	}
	return s.Repo.RegisterToken(ctx, s.DB, userID, token, platform)
}

// UnregisterToken removes a device token from userID, typically on logout.
func (s *DeviceService) UnregisterToken(ctx context.Context, userID, token string) error {
	if err := s.Repo.UnregisterToken(ctx, s.DB, userID, strings.TrimSpace(token)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTokenNotFound
		}
		return err
	}
	return nil
}

// normalizeName trims whitespace and collapses multiple spaces to one.
func normalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
