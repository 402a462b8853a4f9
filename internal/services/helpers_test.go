package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-push/internal/domain"
	"github.com/tbourn/go-chat-push/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// subsRepo adapts the repo functions to SubscriptionRepo.
type subsRepo struct{}

func (subsRepo) Upsert(ctx context.Context, db *gorm.DB, s *domain.WebPushSubscription) (*domain.WebPushSubscription, error) {
	return repo.UpsertSubscription(ctx, db, s)
}
func (subsRepo) Count(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountSubscriptions(ctx, db, userID)
}
func (subsRepo) ListPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.WebPushSubscription, error) {
	return repo.ListSubscriptionsPage(ctx, db, userID, offset, limit)
}
func (subsRepo) SetActive(ctx context.Context, db *gorm.DB, id, userID string, active bool) error {
	return repo.SetSubscriptionActive(ctx, db, id, userID, active)
}
func (subsRepo) DeleteByEndpoint(ctx context.Context, db *gorm.DB, userID, endpoint string) error {
	return repo.DeleteUserSubscription(ctx, db, userID, endpoint)
}
func (subsRepo) Stats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error) {
	return repo.SubscriptionsStats(ctx, db, userID)
}

// devRepo adapts the repo functions to DeviceRepo.
type devRepo struct{}

func (devRepo) UpsertUser(ctx context.Context, db *gorm.DB, id, fullname, pic string) (*domain.User, error) {
	return repo.UpsertUser(ctx, db, id, fullname, pic)
}
func (devRepo) RegisterToken(ctx context.Context, db *gorm.DB, userID, token string, p domain.Platform) (*domain.DeviceToken, error) {
	return repo.RegisterDeviceToken(ctx, db, userID, token, p)
}
func (devRepo) UnregisterToken(ctx context.Context, db *gorm.DB, userID, token string) error {
	return repo.UnregisterDeviceToken(ctx, db, userID, token)
}
