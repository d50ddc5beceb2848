package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/glebarez/go-sqlite" // Pure Go SQLite driver
	"github.com/gmsas95/doclens/internal/config"
	apperrors "github.com/gmsas95/doclens/internal/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// Store is the audit log of processing runs
type Store struct {
	db    *gorm.DB
	sqlDB *sql.DB
	now   func() time.Time
}

// New creates a Store from the storage configuration
func New(cfg *config.Config) (*Store, error) {
	sqlitePath := cfg.Storage.SQLitePath
	if sqlitePath == "" {
		sqlitePath = filepath.Join(cfg.Storage.DataDir, "history.db")
	}
	return Open(sqlitePath)
}

// Open opens (and migrates) the SQLite database at path
func Open(path string) (*Store, error) {
	dsn := path
	if path != MemoryPath {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	}

	sqliteDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if path == MemoryPath {
		// every pooled connection would otherwise see its own empty database
		sqliteDB.SetMaxOpenConns(1)
	} else {
		sqliteDB.SetMaxOpenConns(10)
		sqliteDB.SetMaxIdleConns(5)
		sqliteDB.SetConnMaxLifetime(time.Hour)
	}

	db, err := gorm.Open(sqlite.Dialector{Conn: sqliteDB}, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		sqliteDB.Close()
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	s := &Store{
		db:    db,
		sqlDB: sqliteDB,
		now:   func() time.Time { return time.Now().UTC() },
	}

	if err := s.migrate(); err != nil {
		sqliteDB.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate() error {
	if err := s.db.AutoMigrate(&schemaMeta{}, &ProcessingRun{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	var meta schemaMeta
	err := s.db.FirstOrCreate(&meta, schemaMeta{ID: 1}).Error
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if meta.Version > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", meta.Version, SchemaVersion)
	}
	if meta.Version != SchemaVersion {
		return s.db.Model(&meta).Update("version", SchemaVersion).Error
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// DB returns the GORM database instance
func (s *Store) DB() *gorm.DB {
	return s.db
}

// SchemaVersion returns the version recorded in the database
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var meta schemaMeta
	if err := s.db.WithContext(ctx).First(&meta, 1).Error; err != nil {
		return 0, apperrors.ErrStore.WithCause(err)
	}
	return meta.Version, nil
}

// Record appends one processing run stamped with the current UTC time
func (s *Store) Record(ctx context.Context, filename string, hasTables bool, format string) error {
	run := &ProcessingRun{
		Filename: filename,
		Result:   ResultKindFor(hasTables),
		Format:   format,
		TS:       s.now(),
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return apperrors.ErrStore.WithCause(err)
	}
	return nil
}

// Recent returns the newest runs first
func (s *Store) Recent(ctx context.Context, limit int) ([]ProcessingRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []ProcessingRun
	err := s.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, apperrors.ErrStore.WithCause(err)
	}
	return runs, nil
}

// Count returns the number of recorded runs
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&ProcessingRun{}).Count(&count).Error; err != nil {
		return 0, apperrors.ErrStore.WithCause(err)
	}
	return count, nil
}
