package handlers

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-push/internal/domain"
	"github.com/tbourn/go-chat-push/internal/push"
	"github.com/tbourn/go-chat-push/internal/repo"
	"github.com/tbourn/go-chat-push/internal/services"
)

// ---------- test DB + repo shims ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:push_handlers_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Minimal shims implementing the service repo contracts (like router.go).
type testSubsRepo struct{}

func (testSubsRepo) Upsert(ctx context.Context, db *gorm.DB, s *domain.WebPushSubscription) (*domain.WebPushSubscription, error) {
	return repo.UpsertSubscription(ctx, db, s)
}

func (testSubsRepo) Count(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountSubscriptions(ctx, db, userID)
}

func (testSubsRepo) ListPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.WebPushSubscription, error) {
	return repo.ListSubscriptionsPage(ctx, db, userID, offset, limit)
}

func (testSubsRepo) SetActive(ctx context.Context, db *gorm.DB, id, userID string, active bool) error {
	return repo.SetSubscriptionActive(ctx, db, id, userID, active)
}

func (testSubsRepo) Stats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error) {
	return repo.SubscriptionsStats(ctx, db, userID)
}

func (testSubsRepo) DeleteByEndpoint(ctx context.Context, db *gorm.DB, userID, endpoint string) error {
	return repo.DeleteUserSubscription(ctx, db, userID, endpoint)
}

type testDeviceRepo struct{}

func (testDeviceRepo) UpsertUser(ctx context.Context, db *gorm.DB, id, fullname, pic string) (*domain.User, error) {
	return repo.UpsertUser(ctx, db, id, fullname, pic)
}

func (testDeviceRepo) RegisterToken(ctx context.Context, db *gorm.DB, userID, token string, p domain.Platform) (*domain.DeviceToken, error) {
	return repo.RegisterDeviceToken(ctx, db, userID, token, p)
}

func (testDeviceRepo) UnregisterToken(ctx context.Context, db *gorm.DB, userID, token string) error {
	return repo.UnregisterDeviceToken(ctx, db, userID, token)
}

// ---------- stubs ----------

// stubNotify records which entry point was called.
type stubNotify struct {
	called   string
	receiver string
	payload  push.Payload
	res      services.FanOutResult
	logs     []domain.DeliveryLog
	logsAt   *time.Time
}

func (s *stubNotify) Send(_ context.Context, userID string, p push.Payload) services.FanOutResult {
	s.called, s.receiver, s.payload = "send", userID, p
	return s.res
}

func (s *stubNotify) NotifyDirectMessage(_ context.Context, r string, _ push.MessageEvent) services.FanOutResult {
	s.called, s.receiver = "message", r
	return s.res
}

func (s *stubNotify) NotifyGroupMessage(_ context.Context, r string, _ push.MessageEvent, _ push.GroupInfo) services.FanOutResult {
	s.called, s.receiver = "group", r
	return s.res
}

func (s *stubNotify) NotifyCall(_ context.Context, r string, _ push.CallEvent) services.FanOutResult {
	s.called, s.receiver = "call", r
	return s.res
}

func (s *stubNotify) NotifyMissedCall(_ context.Context, r string, _ push.CallEvent) services.FanOutResult {
	s.called, s.receiver = "missed", r
	return s.res
}

func (s *stubNotify) Idempotent(ctx context.Context, _, _, _ string, fn func(context.Context) services.FanOutResult) services.FanOutResult {
	return fn(ctx)
}

func (s *stubNotify) ListLogs(context.Context, string, int, int) ([]domain.DeliveryLog, int64, error) {
	return s.logs, int64(len(s.logs)), nil
}

func (s *stubNotify) LogStats(context.Context, string) (int64, *time.Time, error) {
	return int64(len(s.logs)), s.logsAt, nil
}

type stubBreaker struct{ stats push.CircuitStats }

func (s stubBreaker) Stats() push.CircuitStats { return s.stats }

// ---------- helpers-only tests ----------

func Test_userID_and_clampPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rc := gin.CreateTestContextOnly(httptest.NewRecorder(), gin.New())
	if got := userID(rc); got != "demo-user" {
		t.Fatalf("fallback userID = %q", got)
	}
	rc.Set("userID", "u1")
	if got := userID(rc); got != "u1" {
		t.Fatalf("ctx userID = %q", got)
	}
	rc.Set("userID", 123) // wrong type → fallback
	if got := userID(rc); got != "demo-user" {
		t.Fatalf("wrong-type fallback userID = %q", got)
	}

	cH, _ := gin.CreateTestContext(httptest.NewRecorder())
	reqH := httptest.NewRequest("GET", "/", nil)
	reqH.Header.Set("X-User-ID", "u-123")
	cH.Request = reqH
	if got := userID(cH); got != "u-123" {
		t.Fatalf("header fallback userID = %q", got)
	}

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?page=-5&page_size=9999", nil)
	p, ps := clampPagination(c)
	if p != 1 || ps != 100 {
		t.Fatalf("clamp bounds got p=%d ps=%d", p, ps)
	}
	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?page=&page_size=0", nil)
	p, ps = clampPagination(c)
	if p != 1 || ps != 1 {
		t.Fatalf("clamp defaults got p=%d ps=%d", p, ps)
	}
}

func Test_newPagination(t *testing.T) {
	p := newPagination(2, 2, 5)
	if p.TotalPages != 3 || !p.HasNext {
		t.Fatalf("unexpected pagination: %+v", p)
	}
	p = newPagination(1, 20, 0)
	if p.TotalPages != 0 || p.HasNext {
		t.Fatalf("empty pagination: %+v", p)
	}
}
