package sqlite

import (
	"context"
	"encoding/json"

	"github.com/nodius/graphsync/errors"
	"github.com/nodius/graphsync/store"
)

func (s *Store) GetNodeConfig(ctx context.Context, key string) (*store.NodeConfig, error) {
	var workspace, body string
	err := s.db.QueryRowContext(ctx, `SELECT workspace, body FROM node_configs WHERE key = ?`, key).
		Scan(&workspace, &body)
	if err != nil {
		return nil, wrapNoRows(err, "loading node config "+key)
	}
	var c store.NodeConfig
	if err := json.Unmarshal([]byte(body), &c); err != nil {
		return nil, errors.Wrapf(err, "decoding node config %s", key)
	}
	return &c, nil
}

func (s *Store) PutNodeConfig(ctx context.Context, c *store.NodeConfig) error {
	body, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encoding node config")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO node_configs (key, workspace, body)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET workspace = excluded.workspace, body = excluded.body`,
		c.Key, c.Workspace, string(body))
	if err != nil {
		return errors.Wrapf(err, "writing node config %s", c.Key)
	}
	return nil
}

func (s *Store) DeleteNodeConfig(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM node_configs WHERE key = ?`, key)
	if err != nil {
		return errors.Wrapf(err, "deleting node config %s", key)
	}
	return nil
}
