package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestReplayRecord_Live(t *testing.T) {
	exp := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := ReplayRecord{ExpiresAt: exp}
	if !r.Live(exp.Add(-time.Nanosecond)) {
		t.Fatal("record should be live before expiry")
	}
	if r.Live(exp) || r.Live(exp.Add(time.Minute)) {
		t.Fatal("record should be dead at and after expiry")
	}
}

func TestReplayRecord_UniquePerCallerScopeKey(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&ReplayRecord{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if got := (ReplayRecord{}).TableName(); !db.Migrator().HasTable(got) {
		t.Fatalf("table %q missing", got)
	}
	if !db.Migrator().HasIndex(&ReplayRecord{}, "ux_replay_caller_scope_key") {
		t.Fatal("expected composite unique index")
	}

	now := time.Now().UTC()
	base := ReplayRecord{CallerID: "alice", Scope: "message", Key: "k1", LogID: "log-1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}

	rows := []struct {
		id, caller, scope string
		wantErr           bool
	}{
		{"r1", "alice", "message", false},
		{"r2", "alice", "message", true}, // same caller, scope, key
		{"r3", "alice", "call", false},   // other scope
		{"r4", "bob", "message", false},  // other caller
	}
	for _, row := range rows {
		rec := base
		rec.ID, rec.CallerID, rec.Scope = row.id, row.caller, row.scope
		err := db.Create(&rec).Error
		if (err != nil) != row.wantErr {
			t.Fatalf("%s: err = %v, wantErr %v", row.id, err, row.wantErr)
		}
	}
}
