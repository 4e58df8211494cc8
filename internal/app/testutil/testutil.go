// Package testutil contains utilities for writing tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ErikKalkoken/go-set"
	"github.com/jmoiron/sqlx"

	"github.com/ErikKalkoken/evesync/internal/app/storage"
)

// NewDBInMemory creates and returns a database in memory for tests.
// Important: This variant is not suitable for DB code that runs in goroutines.
func NewDBInMemory() (*sqlx.DB, *storage.Storage, Factory) {
	db, err := sqlx.Open("sqlite3", ":memory:?_fk=on")
	if err != nil {
		panic(err)
	}
	// each connection would otherwise get its own in-memory database
	db.SetMaxOpenConns(1)
	if err := storage.ApplyMigrations(db.DB); err != nil {
		panic(err)
	}
	st := storage.New(db, db)
	factory := NewFactory(st, db)
	return db, st, factory
}

// NewDBOnDisk creates and returns a new temporary database on disk for tests.
// The database is automatically removed once the tests have concluded.
func NewDBOnDisk(t testing.TB) (*sqlx.DB, *storage.Storage, Factory) {
	p := filepath.Join(t.TempDir(), "evesync_test.sqlite")
	dbRW, dbRO, err := storage.InitDB("file:" + p)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		dbRO.Close()
		dbRW.Close()
	})
	st := storage.New(dbRW, dbRO)
	factory := NewFactory(st, dbRW)
	return dbRW, st, factory
}

// MustTruncateTables is like [TruncateTables] but will panic on any error.
func MustTruncateTables(dbRW *sqlx.DB) {
	err := TruncateTables(dbRW)
	if err != nil {
		panic(err)
	}
}

// TruncateTables will purge data from all data tables. This is meant for tests.
func TruncateTables(dbRW *sqlx.DB) error {
	if _, err := dbRW.Exec("PRAGMA foreign_keys = 0"); err != nil {
		return err
	}
	var names []string
	err := dbRW.Select(&names, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT IN ('migrations', 'sqlite_sequence');`)
	if err != nil {
		return err
	}
	tables := set.Of(names...)
	for n := range tables.All() {
		if _, err := dbRW.Exec(fmt.Sprintf("DELETE FROM %s;", n)); err != nil {
			return err
		}
		if _, err := dbRW.Exec("DELETE FROM sqlite_sequence WHERE name = ?;", n); err != nil {
			return err
		}
	}
	_, err = dbRW.Exec("PRAGMA foreign_keys = 1")
	return err
}
