// Package testutil provides test helpers for setting up in-memory databases,
// creating fixtures, and making assertions.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"centavo/internal/config"
	"centavo/internal/models"
	"centavo/internal/store"
)

// allModels is the list of all GORM models to auto-migrate in tests.
var allModels = []interface{}{
	&models.Account{},
	&models.Category{},
	&models.Transaction{},
	&models.CategoryBudget{},
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

// SetupTestDB creates an isolated in-memory SQLite database with all models
// migrated.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// SQLite allows one writer at a time; a single connection avoids
	// lock errors under concurrent tests.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get underlying DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// TeardownTestDB closes the underlying database connection.
func TeardownTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()

	sqlDB, err := db.DB()
	if err != nil {
		t.Errorf("failed to get underlying DB for teardown: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		t.Errorf("failed to close test database: %v", err)
	}
}

// SetupTestStore wraps a fresh test database in a store adapter.
func SetupTestStore(t *testing.T) (*store.Store, *gorm.DB) {
	t.Helper()

	db := SetupTestDB(t)
	return store.New(db, 5*time.Second), db
}

// TestConfig returns ledger configuration suitable for tests.
func TestConfig() *config.Config {
	return &config.Config{
		EpochMonth:      "2020-01",
		PlanningHorizon: 1,
		MaxChainDepth:   600,
		StoreTimeout:    5 * time.Second,
		CacheSize:       256,
		CacheTTL:        time.Minute,
	}
}
