package sqlite

import (
	"context"

	"github.com/nodius/graphsync/errors"
	"github.com/nodius/graphsync/store"
)

func (s *Store) AppendHistory(ctx context.Context, b *store.HistoryBatch) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO graph_history (key, graph_key, sheet_id, ts, entries) VALUES (?, ?, ?, ?, ?)`,
		b.Key, b.GraphKey, b.SheetID, b.Timestamp.UnixNano(), b.Entries)
	if err != nil {
		return errors.Wrapf(err, "appending history batch %s", b.Key)
	}
	return nil
}

func (s *Store) PruneHistory(ctx context.Context, graphKey, sheetID string, cutoff int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM graph_history WHERE graph_key = ? AND sheet_id = ? AND ts < ?`,
		graphKey, sheetID, cutoff)
	if err != nil {
		return errors.Wrapf(err, "pruning history for graph %s sheet %s", graphKey, sheetID)
	}
	return nil
}

func (s *Store) HistorySince(ctx context.Context, graphKey, sheetID string, since int64) ([]store.HistoryBatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, ts, entries FROM graph_history
		WHERE graph_key = ? AND sheet_id = ? AND ts >= ?
		ORDER BY ts ASC`, graphKey, sheetID, since)
	if err != nil {
		return nil, errors.Wrapf(err, "querying history for graph %s sheet %s", graphKey, sheetID)
	}
	defer rows.Close()

	var out []store.HistoryBatch
	for rows.Next() {
		var b store.HistoryBatch
		var tsNano int64
		if err := rows.Scan(&b.Key, &tsNano, &b.Entries); err != nil {
			return nil, errors.Wrap(err, "scanning history row")
		}
		b.GraphKey = graphKey
		b.SheetID = sheetID
		b.Timestamp = timeFromUnixNano(tsNano)
		out = append(out, b)
	}
	return out, rows.Err()
}
