// Package storetest provides in-memory document stores for tests.
package storetest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/store"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var databaseSequence atomic.Int64

// OpenDatabase returns an isolated in-memory SQLite database with the document table migrated.
func OpenDatabase(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:cinetrack_test_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), databaseSequence.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&store.DocumentRow{}); err != nil {
		t.Fatalf("failed to migrate document table: %v", err)
	}
	return db
}

// NewSQLiteStore returns a GormStore over a fresh in-memory database.
func NewSQLiteStore(t testing.TB, clock func() time.Time) *store.GormStore {
	t.Helper()
	documentStore, err := store.NewGormStore(store.GormStoreConfig{
		Database: OpenDatabase(t),
		Clock:    clock,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return documentStore
}

// SequenceClock returns a clock that advances by one millisecond on every call.
func SequenceClock(start time.Time) func() time.Time {
	var ticks atomic.Int64
	return func() time.Time {
		return start.Add(time.Duration(ticks.Add(1)) * time.Millisecond)
	}
}
