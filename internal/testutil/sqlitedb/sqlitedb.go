// Package sqlitedb opens migrated in-memory SQLite databases for tests.
package sqlitedb

import (
	"testing"

	"cygnus-loan-engine/internal/adapter/repository/mysql"
	infradb "cygnus-loan-engine/internal/infrastructure/db"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a fresh engine schema that lives until the test ends.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := infradb.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Logger = logger.Discard
	if err := mysql.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}
