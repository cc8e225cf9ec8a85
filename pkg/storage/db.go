// Package storage is mcpmuxd's persistence layer: a single-writer SQLite
// database opened with golang-migrate-managed schema migrations, and one
// repository implementation per pkg/domain capability interface.
//
// Grounded on the teacher's pkg/db/db.go: same sqlx + modernc.org/sqlite +
// golang-migrate/v4 + gofrs/flock stack, same embed.FS migration source,
// same cross-process migration lock via a sibling lockfile, same
// single-connection pool (SQLite serializes writes anyway, and a single
// *sql.DB connection avoids "database is locked" errors entirely).
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/golang-migrate/migrate/v4"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	// registers the "sqlite" database/sql driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// DB wraps the underlying sqlx handle every repository implementation is
// built on top of.
type DB struct {
	SQL *sqlx.DB
	log *zap.SugaredLogger
}

type options struct {
	dbFile         string
	migrationsFS   fs.FS
	migrationsPath string
	log            *zap.SugaredLogger
}

// Option configures Open.
type Option func(*options)

// WithDatabaseFile overrides the sqlite file path.
func WithDatabaseFile(dbFile string) Option {
	return func(o *options) { o.dbFile = dbFile }
}

// WithMigrations overrides the migration source, used by tests that want to
// exercise a subset of the schema.
func WithMigrations(filesystem fs.FS, path string) Option {
	return func(o *options) { o.migrationsFS, o.migrationsPath = filesystem, path }
}

// WithLogger attaches a logger; Open falls back to a no-op logger otherwise.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(o *options) { o.log = log }
}

// Open opens (creating if necessary) the sqlite database at the configured
// path and brings its schema up to date.
func Open(opts ...Option) (*DB, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop().Sugar()
	}
	if o.dbFile == "" {
		return nil, fmt.Errorf("storage: database file is required")
	}

	ensureDirectoryExists(o.dbFile)

	sqlDB, err := sql.Open("sqlite", "file:"+o.dbFile+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	migrationsFS := o.migrationsFS
	if migrationsFS == nil {
		migrationsFS = &migrationFiles
	}
	migrationsPath := o.migrationsPath
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}

	if err := runMigrations(o.dbFile, sqlDB, migrationsFS, migrationsPath, o.log); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return &DB{SQL: sqlx.NewDb(sqlDB, "sqlite"), log: o.log}, nil
}

// Close releases the underlying connection.
func (d *DB) Close() error { return d.SQL.Close() }

func ensureDirectoryExists(path string) {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		_ = os.MkdirAll(dir, 0o755)
	}
}

// txClose rolls back tx if *err is non-nil; callers defer this immediately
// after BeginTxx.
func txClose(tx *sqlx.Tx, err *error, log *zap.SugaredLogger) {
	if err == nil || *err == nil {
		return
	}
	if rbErr := tx.Rollback(); rbErr != nil && log != nil {
		log.Warnw("failed to rollback transaction", "error", rbErr)
	}
}

// runMigrations brings the database schema up to date, guarded by a
// cross-process file lock so two mcpmuxd processes starting at once don't
// race each other into a dirty migration state (same guarantee
// the teacher's db.go provides).
func runMigrations(dbFile string, sqlDB *sql.DB, migrationsFS fs.FS, migrationsPath string, log *zap.SugaredLogger) error {
	migDriver, err := iofs.New(migrationsFS, migrationsPath)
	if err != nil {
		return fmt.Errorf("storage: open migration source: %w", err)
	}
	defer migDriver.Close()

	driver, err := msqlite.WithInstance(sqlDB, &msqlite.Config{})
	if err != nil {
		return fmt.Errorf("storage: create migration driver: %w", err)
	}

	mig, err := migrate.NewWithInstance("iofs", migDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("storage: create migrator: %w", err)
	}

	lockFile := filepath.Join(filepath.Dir(dbFile), ".mcpmux-migration.lock")
	fileLock := flock.New(lockFile)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	locked, err := fileLock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("storage: acquire migration lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("storage: timed out waiting for migration lock")
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			log.Warnw("failed to release migration lock", "error", err)
		}
	}()

	version, dirty, err := mig.Version()
	isFresh := errors.Is(err, migrate.ErrNilVersion)
	if err != nil && !isFresh {
		return fmt.Errorf("storage: read migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("storage: database is dirty at version %d, manual intervention required", version)
	}

	if !isFresh {
		if _, _, err := migDriver.ReadUp(version); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("storage: database version %d is ahead of this build's known migrations", version)
		} else if err != nil {
			return fmt.Errorf("storage: read migration file for version %d: %w", version, err)
		}
	}

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("storage: run migrations: %w", err)
	}
	return nil
}
