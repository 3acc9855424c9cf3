package session

import (
	"context"
	"sync"

	"github.com/nodius/graphsync/errors"
	"github.com/nodius/graphsync/store"
)

// memStore is an in-memory store.Store for session-package tests; the
// sqlite-backed adapter is exercised separately in store/sqlite.
type memStore struct {
	mu          sync.Mutex
	graphs      map[string]*store.Graph
	nodes       map[string]map[string]*store.Node
	edges       map[string]map[string]*store.Edge
	nodeConfigs map[string]*store.NodeConfig
	history     []store.HistoryBatch
	registry    map[string]store.RegistryRow

	putNodeCalls   int
	deleteNodeCalls int
	putEdgeCalls   int
	deleteEdgeCalls int
}

func newMemStore() *memStore {
	return &memStore{
		graphs:      make(map[string]*store.Graph),
		nodes:       make(map[string]map[string]*store.Node),
		edges:       make(map[string]map[string]*store.Edge),
		nodeConfigs: make(map[string]*store.NodeConfig),
		registry:    make(map[string]store.RegistryRow),
	}
}

func (m *memStore) GetGraph(ctx context.Context, graphKey string) (*store.Graph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.graphs[graphKey]
	if !ok {
		return nil, errors.ErrNotFound
	}
	clone := *g
	return &clone, nil
}

func (m *memStore) PutGraph(ctx context.Context, g *store.Graph) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *g
	m.graphs[g.Key] = &clone
	return nil
}

func (m *memStore) DeleteGraph(ctx context.Context, graphKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.graphs, graphKey)
	return nil
}

func (m *memStore) ListNodes(ctx context.Context, graphKey, sheetID string) ([]store.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Node
	for _, n := range m.nodes[graphKey] {
		if n.SheetID == sheetID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (m *memStore) PutNode(ctx context.Context, n *store.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putNodeCalls++
	if m.nodes[n.GraphKey] == nil {
		m.nodes[n.GraphKey] = make(map[string]*store.Node)
	}
	clone := *n
	m.nodes[n.GraphKey][n.LocalKey] = &clone
	return nil
}

func (m *memStore) DeleteNode(ctx context.Context, graphKey, localKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteNodeCalls++
	delete(m.nodes[graphKey], localKey)
	return nil
}

func (m *memStore) ListEdges(ctx context.Context, graphKey, sheetID string) ([]store.Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Edge
	for _, e := range m.edges[graphKey] {
		if e.SheetID == sheetID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memStore) PutEdge(ctx context.Context, e *store.Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putEdgeCalls++
	if m.edges[e.GraphKey] == nil {
		m.edges[e.GraphKey] = make(map[string]*store.Edge)
	}
	clone := *e
	m.edges[e.GraphKey][e.LocalKey] = &clone
	return nil
}

func (m *memStore) DeleteEdge(ctx context.Context, graphKey, localKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteEdgeCalls++
	delete(m.edges[graphKey], localKey)
	return nil
}

func (m *memStore) EdgesByEndpoint(ctx context.Context, graphKey, nodeLocalKey string) ([]store.Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Edge
	for _, e := range m.edges[graphKey] {
		if e.Source == nodeLocalKey || e.Target == nodeLocalKey {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memStore) GetNodeConfig(ctx context.Context, key string) (*store.NodeConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.nodeConfigs[key]
	if !ok {
		return nil, errors.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (m *memStore) PutNodeConfig(ctx context.Context, c *store.NodeConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *c
	m.nodeConfigs[c.Key] = &clone
	return nil
}

func (m *memStore) DeleteNodeConfig(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodeConfigs, key)
	return nil
}

func (m *memStore) AppendHistory(ctx context.Context, b *store.HistoryBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, *b)
	return nil
}

func (m *memStore) PruneHistory(ctx context.Context, graphKey, sheetID string, cutoff int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.history[:0]
	for _, b := range m.history {
		if b.GraphKey == graphKey && b.SheetID == sheetID && b.Timestamp.UnixNano() < cutoff {
			continue
		}
		kept = append(kept, b)
	}
	m.history = kept
	return nil
}

func (m *memStore) HistorySince(ctx context.Context, graphKey, sheetID string, since int64) ([]store.HistoryBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.HistoryBatch
	for _, b := range m.history {
		if b.GraphKey == graphKey && b.SheetID == sheetID && b.Timestamp.UnixNano() >= since {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) UpsertRegistryRow(ctx context.Context, r *store.RegistryRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry[r.PeerID] = *r
	return nil
}

func (m *memStore) LivePeers(ctx context.Context, cutoffUnixNano int64, excludePeerID string) ([]store.RegistryRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.RegistryRow
	for id, r := range m.registry {
		if id == excludePeerID {
			continue
		}
		if r.Status == "online" && r.LastRefresh.UnixNano() >= cutoffUnixNano {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) MarkOffline(ctx context.Context, peerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.registry[peerID]
	r.Status = "offline"
	m.registry[peerID] = r
	return nil
}

func (m *memStore) Close() error { return nil }

var _ store.Store = (*memStore)(nil)
