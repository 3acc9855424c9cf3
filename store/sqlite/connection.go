// Package sqlite is the reference Store implementation, backed by
// mattn/go-sqlite3 with WAL journaling and embedded migrations.
package sqlite

import (
	"database/sql"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/nodius/graphsync/errors"
)

// Options configures the underlying connection.
type Options struct {
	Path          string
	JournalMode   string // "WAL" by default
	BusyTimeoutMS int
}

// DefaultOptions returns the options used when none are supplied.
func DefaultOptions(path string) Options {
	return Options{
		Path:          path,
		JournalMode:   "WAL",
		BusyTimeoutMS: 5000,
	}
}

// open opens the database file, applying journal mode, foreign keys, and
// busy timeout pragmas, then runs pending migrations.
func open(opts Options, log *zap.SugaredLogger) (*sql.DB, error) {
	if dir := filepath.Dir(opts.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "creating database directory %s", dir)
		}
	}

	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening database at %s", opts.Path)
	}

	journalMode := opts.JournalMode
	if journalMode == "" {
		journalMode = "WAL"
	}
	if _, err := db.Exec("PRAGMA journal_mode = " + journalMode); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "setting journal mode %s", journalMode)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enabling foreign keys")
	}
	busyTimeout := opts.BusyTimeoutMS
	if busyTimeout == 0 {
		busyTimeout = 5000
	}
	if _, err := db.Exec("PRAGMA busy_timeout = " + strconv.Itoa(busyTimeout)); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "setting busy timeout")
	}

	log.Infow("database opened", "path", opts.Path, "journal_mode", journalMode)

	if err := migrate(db, log); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "running migrations")
	}

	return db, nil
}
