package db

import (
	"context"
	"fmt"
	"time"

	"library_backend/config"
	"library_backend/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the configured store and sizes the connection pool.
// Every repository call borrows a connection from this pool and hands it back when done.
func Open(cfg config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres", "":
		dialector = postgres.Open(cfg.DatabaseURL)
	case "sqlite":
		dialector = sqlite.Open(sqliteDSN(cfg.SQLitePath))
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if conn.Dialector.Name() == "sqlite" {
		// SQLite 只有一个写者：单连接让事务天然串行
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.DBDriver, err)
	}
	return conn, nil
}

func sqliteDSN(path string) string {
	return path + "?_busy_timeout=5000&_foreign_keys=on"
}

// Close releases the pool.
func Close(conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that a pooled connection is still usable.
func Ping(ctx context.Context, conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Migrate creates the three tables if absent plus the partial indexes that back the loan invariants.
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(&models.User{}, &models.Book{}, &models.IssuedBook{}); err != nil {
		return err
	}

	stmts := []string{
		// 未删除的书 ISBN 唯一
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_isbn_live
		  ON %s (isbn)
		  WHERE deleted_at IS NULL`, models.BookTable, models.BookTable),

		// 同一用户同一本书最多一条 ISSUED
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_one_open_per_user_book
		  ON %s (user_id, book_id)
		  WHERE status = 'ISSUED'`, models.IssuedBookTable, models.IssuedBookTable),

		// 逾期查询
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_open_due
		  ON %s (due_date)
		  WHERE status = 'ISSUED'`, models.IssuedBookTable, models.IssuedBookTable),
	}
	for _, s := range stmts {
		if err := conn.Exec(s).Error; err != nil {
			return err
		}
	}

	if conn.Dialector.Name() == "postgres" {
		return addForeignKeys(conn)
	}
	return nil
}

// SQLite cannot add constraints to an existing table, so foreign keys are postgres only.
func addForeignKeys(conn *gorm.DB) error {
	fks := []struct{ name, column, ref, refCol string }{
		{"fk_issued_books_book", "book_id", models.BookTable, "book_id"},
		{"fk_issued_books_user", "user_id", models.UserTable, "user_id"},
	}
	for _, fk := range fks {
		err := conn.Exec(fmt.Sprintf(`
		DO $$ BEGIN
		  ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s);
		EXCEPTION WHEN duplicate_object THEN NULL;
		END $$;`, models.IssuedBookTable, fk.name, fk.column, fk.ref, fk.refCol)).Error
		if err != nil {
			return err
		}
	}
	return nil
}
