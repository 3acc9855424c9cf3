package sqlite

import (
	"context"
	"encoding/json"

	"github.com/nodius/graphsync/errors"
	"github.com/nodius/graphsync/store"
)

func (s *Store) ListNodes(ctx context.Context, graphKey, sheetID string) ([]store.Node, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM nodes WHERE graph_key = ? AND sheet_id = ?`, graphKey, sheetID)
	if err != nil {
		return nil, errors.Wrapf(err, "listing nodes for graph %s sheet %s", graphKey, sheetID)
	}
	defer rows.Close()

	var out []store.Node
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, errors.Wrap(err, "scanning node row")
		}
		var n store.Node
		if err := json.Unmarshal([]byte(body), &n); err != nil {
			return nil, errors.Wrap(err, "decoding node body")
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) PutNode(ctx context.Context, n *store.Node) error {
	body, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "encoding node")
	}
	ck := compositeKey(n.GraphKey, n.LocalKey)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO nodes (composite_key, graph_key, local_key, sheet_id, body)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(composite_key) DO UPDATE SET
			sheet_id = excluded.sheet_id,
			body = excluded.body`,
		ck, n.GraphKey, n.LocalKey, n.SheetID, string(body))
	if err != nil {
		return errors.Wrapf(err, "writing node %s", ck)
	}
	return nil
}

func (s *Store) DeleteNode(ctx context.Context, graphKey, localKey string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM nodes WHERE composite_key = ?`, compositeKey(graphKey, localKey))
	if err != nil {
		return errors.Wrapf(err, "deleting node %s", compositeKey(graphKey, localKey))
	}
	return nil
}
