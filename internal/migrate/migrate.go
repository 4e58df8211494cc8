// Package migrate applies SQL migrations to a SQLite database.
package migrate

import (
	"cmp"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/ErikKalkoken/go-set"
)

// MigrateFS is a filesystem with the SQL files in a folder called "migrations".
type MigrateFS interface {
	fs.ReadDirFS
	fs.ReadFileFS
}

// Run applies all unapplied migrations in alphabetical order
// and returns the names of the applied migrations.
//
// Each migration is applied in its own transaction together with its tracking record.
func Run(db *sql.DB, migrations MigrateFS) ([]string, error) {
	if err := createMigrationTracking(db); err != nil {
		return nil, fmt.Errorf("migrate: create tracking: %w", err)
	}
	applied, err := applyNewMigrations(db, migrations)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return applied, nil
}

const createMigrationTrackingSQL = `
CREATE TABLE IF NOT EXISTS migrations(
	id INTEGER PRIMARY KEY NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	name TEXT NOT NULL,
	UNIQUE (name)
);`

func createMigrationTracking(db *sql.DB) error {
	_, err := db.Exec(createMigrationTrackingSQL)
	return err
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func recordMigration(db execer, name string) error {
	_, err := db.Exec(`INSERT INTO migrations(name) VALUES(?);`, name)
	return err
}

func listMigrationNames(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT name FROM migrations ORDER BY name;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

type migration struct {
	name     string
	filename string
}

func applyNewMigrations(db *sql.DB, migrations MigrateFS) ([]string, error) {
	names, err := listMigrationNames(db)
	if err != nil {
		return nil, err
	}
	applied := set.Of(names...)
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return nil, err
	}
	var unapplied []migration
	for _, entry := range entries {
		fn := entry.Name()
		ext := path.Ext(fn)
		if ext != ".sql" {
			continue
		}
		name := strings.TrimSuffix(fn, ext)
		if applied.Contains(name) {
			continue
		}
		unapplied = append(unapplied, migration{name: name, filename: fn})
	}
	if len(unapplied) == 0 {
		slog.Debug("No new migrations to apply")
		return nil, nil
	}
	slog.Info("Applying new migrations", "count", len(unapplied))
	slices.SortFunc(unapplied, func(a, b migration) int {
		return cmp.Compare(a.name, b.name)
	})
	var done []string
	for _, m := range unapplied {
		data, err := migrations.ReadFile(path.Join("migrations", m.filename)) // FS uses slashes on all platforms
		if err != nil {
			return done, err
		}
		if err := applyMigration(db, m.name, string(data)); err != nil {
			return done, fmt.Errorf("%s: %w", m.name, err)
		}
		done = append(done, m.name)
		slog.Info("Applied migration", "name", m.name)
	}
	return done, nil
}

func applyMigration(db *sql.DB, name, query string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(query); err != nil {
		return err
	}
	if err := recordMigration(tx, name); err != nil {
		return err
	}
	return tx.Commit()
}
