package sqlite

import (
	"context"

	"github.com/nodius/graphsync/errors"
	"github.com/nodius/graphsync/store"
)

func (s *Store) UpsertRegistryRow(ctx context.Context, r *store.RegistryRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cluster_registry (peer_id, host, port, status, last_refresh)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(peer_id) DO UPDATE SET
			host = excluded.host,
			port = excluded.port,
			status = excluded.status,
			last_refresh = excluded.last_refresh`,
		r.PeerID, r.Host, r.Port, r.Status, r.LastRefresh.UnixNano())
	if err != nil {
		return errors.Wrapf(err, "upserting registry row %s", r.PeerID)
	}
	return nil
}

func (s *Store) LivePeers(ctx context.Context, cutoffUnixNano int64, excludePeerID string) ([]store.RegistryRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT peer_id, host, port, status, last_refresh FROM cluster_registry
		WHERE status = 'online' AND last_refresh > ? AND peer_id != ?`,
		cutoffUnixNano, excludePeerID)
	if err != nil {
		return nil, errors.Wrap(err, "querying live peers")
	}
	defer rows.Close()

	var out []store.RegistryRow
	for rows.Next() {
		var r store.RegistryRow
		var lastRefreshNano int64
		if err := rows.Scan(&r.PeerID, &r.Host, &r.Port, &r.Status, &lastRefreshNano); err != nil {
			return nil, errors.Wrap(err, "scanning registry row")
		}
		r.LastRefresh = timeFromUnixNano(lastRefreshNano)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) MarkOffline(ctx context.Context, peerID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE cluster_registry SET status = 'offline' WHERE peer_id = ?`, peerID)
	if err != nil {
		return errors.Wrapf(err, "marking peer %s offline", peerID)
	}
	return nil
}
