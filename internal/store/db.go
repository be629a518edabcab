// Package store is the relational Store of spec §3/§9: the single source of
// truth for catalog entities, jobs, credentials, settings, and sync
// cursors. It wraps gorm.io/gorm (the teacher's ORM) over either
// modernc.org/sqlite (the default, CGO-free embedded backend matching
// spec §9's "SQLite specifics") or gorm.io/driver/postgres (for the
// concurrent-write deployment spec §9 allows raising download worker
// count under).
package store

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens the relational store for the given driver ("sqlite" or
// "postgres") and DSN, applying schema migrations from migrationsDir.
func Open(driver, dsn, migrationsDir string) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	switch driver {
	case "postgres":
		db, err = gorm.Open(gormpostgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	case "sqlite", "":
		db, err = openSQLite(dsn)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driver, err)
	}

	if migrationsDir != "" {
		if err := runMigrations(db, driver, migrationsDir); err != nil {
			return nil, fmt.Errorf("store: migrate: %w", err)
		}
	}

	return db, nil
}

// openSQLite opens the embedded (CGO-free) backend, pinning a busy timeout
// and foreign key enforcement.
func openSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite allows exactly one writer; cap the pool so gorm never opens a
	// second concurrent write connection under us (spec §9 "SQLite
	// specifics").
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func runMigrations(db *gorm.DB, driver, migrationsDir string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	var dbDriver migrate.Database
	switch driver {
	case "postgres":
		dbDriver, err = migratepostgres.WithInstance(sqlDB, &migratepostgres.Config{})
	default:
		dbDriver, err = migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{})
	}
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsDir, driver, dbDriver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// AutoMigrateModels is a fallback for local/dev use when no SQL migrations
// directory is configured: gorm's AutoMigrate over every entity.
func AutoMigrateModels(db *gorm.DB, models ...any) error {
	return db.AutoMigrate(models...)
}
