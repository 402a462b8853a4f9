package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(WebPushSubscription{}).TableName(): "web_push_subscriptions",
		(User{}).TableName():                "users",
		(DeviceToken{}).TableName():         "device_tokens",
		(DeliveryLog{}).TableName():         "delivery_logs",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestPlatform_Valid(t *testing.T) {
	if !PlatformIOS.Valid() || !PlatformAndroid.Valid() {
		t.Fatalf("ios and android must be valid")
	}
	for _, p := range []Platform{"", "web", "IOS"} {
		if p.Valid() {
			t.Fatalf("platform %q should be invalid", p)
		}
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&User{}, &DeviceToken{}, &WebPushSubscription{}, &DeliveryLog{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	for _, tbl := range []any{&User{}, &DeviceToken{}, &WebPushSubscription{}, &DeliveryLog{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}
	if !m.HasIndex(&WebPushSubscription{}, "ux_subs_endpoint") {
		t.Fatalf("expected unique index ux_subs_endpoint")
	}
	if !m.HasIndex(&WebPushSubscription{}, "idx_subs_user_active") {
		t.Fatalf("expected index idx_subs_user_active")
	}
	if !m.HasIndex(&DeviceToken{}, "ux_tokens_user_token") {
		t.Fatalf("expected unique index ux_tokens_user_token")
	}
	if !m.HasIndex(&DeliveryLog{}, "idx_logs_user_created") {
		t.Fatalf("expected index idx_logs_user_created")
	}

	now := time.Now().UTC()
	u := User{ID: "u1", Fullname: "Ada", CreatedAt: now}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	tok := DeviceToken{ID: "t1", UserID: "u1", Token: "tok", Platform: PlatformAndroid, CreatedAt: now}
	if err := db.Create(&tok).Error; err != nil {
		t.Fatalf("create token: %v", err)
	}

	// Unknown platform violates the CHECK constraint.
	bad := DeviceToken{ID: "t2", UserID: "u1", Token: "tok2", Platform: "web", CreatedAt: now}
	if err := db.Create(&bad).Error; err == nil {
		t.Fatalf("expected CHECK violation for platform")
	}

	// Endpoint uniqueness.
	s1 := WebPushSubscription{ID: "s1", UserID: "u1", Endpoint: "https://push/x", P256dh: "p", Auth: "a", IsActive: true}
	if err := db.Create(&s1).Error; err != nil {
		t.Fatalf("create sub: %v", err)
	}
	s2 := WebPushSubscription{ID: "s2", UserID: "u2", Endpoint: "https://push/x", P256dh: "p", Auth: "a", IsActive: true}
	if err := db.Create(&s2).Error; err == nil {
		t.Fatalf("expected UNIQUE violation on endpoint")
	}

	// Deleting the user cascades to tokens.
	if err := db.Delete(&User{}, "id = ?", "u1").Error; err != nil {
		t.Fatalf("delete user: %v", err)
	}
	var n int64
	db.Model(&DeviceToken{}).Where("user_id = ?", "u1").Count(&n)
	if n != 0 {
		t.Fatalf("expected tokens to cascade, found %d", n)
	}
}
