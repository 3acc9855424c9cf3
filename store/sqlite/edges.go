package sqlite

import (
	"context"
	"encoding/json"

	"github.com/nodius/graphsync/errors"
	"github.com/nodius/graphsync/store"
)

func (s *Store) ListEdges(ctx context.Context, graphKey, sheetID string) ([]store.Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM edges WHERE graph_key = ? AND sheet_id = ?`, graphKey, sheetID)
	if err != nil {
		return nil, errors.Wrapf(err, "listing edges for graph %s sheet %s", graphKey, sheetID)
	}
	defer rows.Close()

	var out []store.Edge
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, errors.Wrap(err, "scanning edge row")
		}
		var e store.Edge
		if err := json.Unmarshal([]byte(body), &e); err != nil {
			return nil, errors.Wrap(err, "decoding edge body")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) PutEdge(ctx context.Context, e *store.Edge) error {
	body, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "encoding edge")
	}
	ck := compositeKey(e.GraphKey, e.LocalKey)
	sourceKey := compositeKey(e.GraphKey, e.Source)
	targetKey := compositeKey(e.GraphKey, e.Target)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO edges (composite_key, graph_key, local_key, sheet_id, source_key, target_key, body)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(composite_key) DO UPDATE SET
			sheet_id = excluded.sheet_id,
			source_key = excluded.source_key,
			target_key = excluded.target_key,
			body = excluded.body`,
		ck, e.GraphKey, e.LocalKey, e.SheetID, sourceKey, targetKey, string(body))
	if err != nil {
		return errors.Wrapf(err, "writing edge %s", ck)
	}
	return nil
}

func (s *Store) DeleteEdge(ctx context.Context, graphKey, localKey string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM edges WHERE composite_key = ?`, compositeKey(graphKey, localKey))
	if err != nil {
		return errors.Wrapf(err, "deleting edge %s", compositeKey(graphKey, localKey))
	}
	return nil
}

func (s *Store) EdgesByEndpoint(ctx context.Context, graphKey, nodeLocalKey string) ([]store.Edge, error) {
	nodeKey := compositeKey(graphKey, nodeLocalKey)
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM edges WHERE graph_key = ? AND (source_key = ? OR target_key = ?)`,
		graphKey, nodeKey, nodeKey)
	if err != nil {
		return nil, errors.Wrapf(err, "listing edges incident to %s", nodeKey)
	}
	defer rows.Close()

	var out []store.Edge
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, errors.Wrap(err, "scanning edge row")
		}
		var e store.Edge
		if err := json.Unmarshal([]byte(body), &e); err != nil {
			return nil, errors.Wrap(err, "decoding edge body")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
