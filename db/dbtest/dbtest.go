// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"library_backend/config"
	"library_backend/db"

	"gorm.io/gorm"
)

// Open returns a migrated SQLite database living in t.TempDir().
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	cfg := config.Config{DBDriver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "library.db")}
	conn, err := db.Open(cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(conn) })
	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}
