package sqlite

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/nodius/graphsync/errors"
	"github.com/nodius/graphsync/store"
)

// Store is the mattn/go-sqlite3-backed implementation of store.Store.
type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// Open opens (and migrates) a sqlite-backed Store.
func Open(opts Options, log *zap.SugaredLogger) (*Store, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	db, err := open(opts, log)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, log: log}, nil
}

// Close satisfies store.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

func compositeKey(graphKey, localKey string) string {
	return graphKey + "-" + localKey
}

var _ store.Store = (*Store)(nil)

func wrapNoRows(err error, msg string) error {
	if err == sql.ErrNoRows {
		return errors.Wrap(errors.ErrNotFound, msg)
	}
	return errors.Wrap(err, msg)
}
