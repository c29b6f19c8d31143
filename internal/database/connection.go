package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jnsite/internal/config"
	"jnsite/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
	connMaxIdleTime = 10 * time.Minute
	pingTimeout     = 5 * time.Second
)

// Open connects to the configured database, creating the directory of a
// SQLite file when needed, and migrates every model.
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	var sqlDB *sql.DB

	if cfg.IsPostgres() {
		log.Println("[DB] Connecting to PostgreSQL database...")
		dialector = postgres.Open(cfg.GetPostgresDSN())
	} else {
		log.Println("[DB] Connecting to SQLite database...")
		if err := ensureDataDir(cfg.GetSQLitePath()); err != nil {
			return nil, err
		}
		var err error
		sqlDB, err = sql.Open("sqlite", cfg.GetSQLiteDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
		// A single connection serialises writers so concurrent requests never see SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
		dialector = sqlite.Dialector{
			DriverName: "sqlite",
			DSN:        cfg.GetSQLiteDSN(),
			Conn:       sqlDB,
		}
	}

	// Never log SQL queries; errors are returned to callers instead
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.IsPostgres() {
		pool, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		pool.SetMaxOpenConns(maxOpenConns)
		pool.SetMaxIdleConns(maxIdleConns)
		pool.SetConnMaxLifetime(connMaxLifetime)
		pool.SetConnMaxIdleTime(connMaxIdleTime)
		log.Printf("[DB] Connection pool configured: maxOpen=%d, maxIdle=%d", maxOpenConns, maxIdleConns)
	}

	if err := Ping(context.Background(), db); err != nil {
		_ = Close(db)
		return nil, fmt.Errorf("database connection test failed: %w", err)
	}

	if err := registerMetricsCallbacks(db); err != nil {
		_ = Close(db)
		return nil, err
	}

	log.Println("[DB] Running database migrations...")
	if err := Migrate(db); err != nil {
		_ = Close(db)
		return nil, err
	}

	log.Println("[DB] Database connected and migrated successfully")
	return db, nil
}

// Migrate creates or updates the tables for every model.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.Submission{},
		&domain.Visit{},
		&domain.AdminCredential{},
		&domain.Session{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Ping tests the database connection
func Ping(ctx context.Context, db *gorm.DB) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	return nil
}

// Stats returns database connection statistics
func Stats(db *gorm.DB) (*sql.DBStats, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	stats := sqlDB.Stats()
	return &stats, nil
}

// Close releases the underlying connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ensureDataDir(path string) error {
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	return nil
}
