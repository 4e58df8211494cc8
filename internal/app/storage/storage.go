// Package storage contains the logic for storing application data into a local SQLite database.
package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/migrate"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Storage provides access to the database.
// Reads use the read-only pool. Writes use the read-write pool.
type Storage struct {
	dbRO *sqlx.DB
	dbRW *sqlx.DB
}

// New returns a new storage object.
func New(dbRW *sqlx.DB, dbRO *sqlx.DB) *Storage {
	st := &Storage{dbRO: dbRO, dbRW: dbRW}
	return st
}

// InitDB initializes the database and returns a pool for writing and a pool for reading.
// It also applies any new migrations.
func InitDB(dataSourceName string) (dbRW *sqlx.DB, dbRO *sqlx.DB, err error) {
	v := url.Values{}
	v.Add("_fk", "on")
	v.Add("_journal_mode", "WAL")
	v.Add("_synchronous", "normal")
	v.Add("_busy_timeout", "5000")
	dsnRW := fmt.Sprintf("%s?%s", dataSourceName, v.Encode())
	dbRW, err = sqlx.Connect("sqlite3", dsnRW)
	if err != nil {
		return nil, nil, fmt.Errorf("open DB for writing: %w", err)
	}
	dbRW.SetMaxOpenConns(1)
	slog.Debug("Connected to database for writing", "DSN", dsnRW)
	if err := ApplyMigrations(dbRW.DB); err != nil {
		dbRW.Close()
		return nil, nil, err
	}
	v.Add("mode", "ro")
	dsnRO := fmt.Sprintf("%s?%s", dataSourceName, v.Encode())
	dbRO, err = sqlx.Connect("sqlite3", dsnRO)
	if err != nil {
		dbRW.Close()
		return nil, nil, fmt.Errorf("open DB for reading: %w", err)
	}
	slog.Debug("Connected to database for reading", "DSN", dsnRO)
	return dbRW, dbRO, nil
}

// ApplyMigrations applies all new migrations to a database.
func ApplyMigrations(db *sql.DB) error {
	applied, err := migrate.Run(db, migrations)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		slog.Info("Database migrated", "migrations", applied)
	}
	return nil
}

// convertGetError converts errors from get queries into app errors.
func convertGetError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return app.ErrNotFound
	}
	return err
}

// now returns the current time as stored in the database.
func now() time.Time {
	return time.Now().UTC()
}
