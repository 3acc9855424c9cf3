package sqlite

import (
	"database/sql"
	"embed"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/nodius/graphsync/errors"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrate applies every pending migration under migrations/, in filename
// order, recording each in schema_migrations so reruns are no-ops.
func migrate(db *sql.DB, log *zap.SugaredLogger) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return errors.Wrap(err, "reading embedded migrations")
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		version := strings.SplitN(name, "_", 2)[0]

		var exists bool
		err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", version).Scan(&exists)
		if err != nil {
			if version != "000" {
				return errors.Newf("schema_migrations missing but migration %s is not 000", name)
			}
		} else if exists {
			continue
		}

		body, err := migrationFS.ReadFile(filepath.Join("migrations", name))
		if err != nil {
			return errors.Wrapf(err, "reading migration %s", name)
		}

		tx, err := db.Begin()
		if err != nil {
			return errors.Wrapf(err, "starting tx for %s", name)
		}
		if _, err := tx.Exec(string(body)); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "applying migration %s", name)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "recording migration %s", name)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "committing migration %s", name)
		}
		log.Debugw("applied migration", "name", name, "version", version)
	}

	log.Infow("migrations complete", "total", len(names))
	return nil
}
