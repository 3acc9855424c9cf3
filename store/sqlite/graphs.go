package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/nodius/graphsync/errors"
	"github.com/nodius/graphsync/store"
)

func (s *Store) GetGraph(ctx context.Context, graphKey string) (*store.Graph, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, description, workspace, sheet_list, metadata, created_at, updated_at
		 FROM graphs WHERE key = ?`, graphKey)

	var g store.Graph
	g.Key = graphKey
	var sheetListJSON, metadataJSON string
	err := row.Scan(&g.Name, &g.Description, &g.Workspace, &sheetListJSON, &metadataJSON, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "graph %s", graphKey)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading graph %s", graphKey)
	}
	if err := json.Unmarshal([]byte(sheetListJSON), &g.SheetList); err != nil {
		return nil, errors.Wrapf(err, "decoding sheet list for graph %s", graphKey)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &g.Metadata); err != nil {
		return nil, errors.Wrapf(err, "decoding metadata for graph %s", graphKey)
	}
	return &g, nil
}

func (s *Store) PutGraph(ctx context.Context, g *store.Graph) error {
	sheetListJSON, err := json.Marshal(g.SheetList)
	if err != nil {
		return errors.Wrap(err, "encoding sheet list")
	}
	metadataJSON, err := json.Marshal(g.Metadata)
	if err != nil {
		return errors.Wrap(err, "encoding metadata")
	}
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO graphs (key, name, description, workspace, sheet_list, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			workspace = excluded.workspace,
			sheet_list = excluded.sheet_list,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		g.Key, g.Name, g.Description, g.Workspace, string(sheetListJSON), string(metadataJSON), g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "writing graph %s", g.Key)
	}
	return nil
}

func (s *Store) DeleteGraph(ctx context.Context, graphKey string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM graphs WHERE key = ?`, graphKey)
	if err != nil {
		return errors.Wrapf(err, "deleting graph %s", graphKey)
	}
	return nil
}
