// Package database opens and manages the controller's SQLite store.
package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite" // Pure Go SQLite driver (no CGO required)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Pool defaults when the config leaves the sizes at zero. SQLite does
// not pool in any meaningful way, but GORM still wants bounds.
const (
	defaultMaxIdleConns = 5
	defaultMaxOpenConns = 10
)

// DB is the global database connection.
var DB *gorm.DB

// Config holds database configuration.
type Config struct {
	URL         string
	MaxIdleConn int
	MaxOpenConn int
	Debug       bool
}

// Connect opens the database at cfg.URL ("file:./path" or a bare
// path), creating the parent directory if needed, and stores the
// handle in DB.
func Connect(cfg Config) (*gorm.DB, error) {
	dbPath := strings.TrimPrefix(cfg.URL, "file:")

	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
		},
	)

	// WAL keeps the poller's writes from blocking API reads. The 5
	// second busy timeout is the lock wait the controller has always
	// relied on as its only write serialization.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("access sql.DB: %w", err)
	}

	maxIdle := cfg.MaxIdleConn
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	maxOpen := cfg.MaxOpenConn
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetConnMaxLifetime(time.Hour)

	DB = db

	log.Printf("Database connected: %s", dbPath)
	return db, nil
}

// Close closes the database connection.
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
