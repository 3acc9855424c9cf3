package store

import "context"

// Store is the durable-storage boundary. Implementations perform the
// localKey <-> composite-key ("{graphKey}-{localKey}") translation; every
// other package in this module addresses nodes and edges by localKey alone.
type Store interface {
	// GraphStore loads and persists graph metadata and sheet lists.
	GraphStore

	// NodeStore loads and persists the nodes of a graph/sheet.
	NodeStore

	// EdgeStore loads and persists the edges of a graph/sheet.
	EdgeStore

	// NodeConfigStore loads and persists node-type configs.
	NodeConfigStore

	// HistoryStore appends and queries the undo/redo log.
	HistoryStore

	// RegistryStore maintains the cluster peer registry.
	RegistryStore

	// Close releases any underlying connection.
	Close() error
}

// GraphStore covers the graphs collection.
type GraphStore interface {
	GetGraph(ctx context.Context, graphKey string) (*Graph, error)
	PutGraph(ctx context.Context, g *Graph) error
	DeleteGraph(ctx context.Context, graphKey string) error
}

// NodeStore covers the nodes collection, keyed by graphKey+sheetId for bulk
// load and by localKey for single-entity writes.
type NodeStore interface {
	ListNodes(ctx context.Context, graphKey, sheetID string) ([]Node, error)
	PutNode(ctx context.Context, n *Node) error
	DeleteNode(ctx context.Context, graphKey, localKey string) error
}

// EdgeStore covers the edges collection, indexed two ways so cascade
// deletes of a node's incident edges are O(degree).
type EdgeStore interface {
	ListEdges(ctx context.Context, graphKey, sheetID string) ([]Edge, error)
	PutEdge(ctx context.Context, e *Edge) error
	DeleteEdge(ctx context.Context, graphKey, localKey string) error
	// EdgesByEndpoint returns every edge with the given node as source or
	// target, for cascade delete when a node is removed.
	EdgesByEndpoint(ctx context.Context, graphKey, nodeLocalKey string) ([]Edge, error)
}

// NodeConfigStore covers node_configs.
type NodeConfigStore interface {
	GetNodeConfig(ctx context.Context, key string) (*NodeConfig, error)
	PutNodeConfig(ctx context.Context, c *NodeConfig) error
	DeleteNodeConfig(ctx context.Context, key string) error
}

// HistoryStore covers graph_history, an append-only log.
type HistoryStore interface {
	AppendHistory(ctx context.Context, b *HistoryBatch) error
	// HistorySince returns batches for (graphKey, sheetID) with timestamp
	// at or after since, in ascending order, for catch-up binary search.
	HistorySince(ctx context.Context, graphKey, sheetID string, since int64) ([]HistoryBatch, error)
	// PruneHistory deletes batches for (graphKey, sheetID) with timestamp
	// strictly before cutoff, for CompactHistory's retention sweep.
	PruneHistory(ctx context.Context, graphKey, sheetID string, cutoff int64) error
}

// RegistryStore covers cluster_registry.
type RegistryStore interface {
	UpsertRegistryRow(ctx context.Context, r *RegistryRow) error
	// LivePeers returns rows with status "online" and lastRefresh newer
	// than the given unix-nano cutoff, excluding excludePeerID.
	LivePeers(ctx context.Context, cutoffUnixNano int64, excludePeerID string) ([]RegistryRow, error)
	MarkOffline(ctx context.Context, peerID string) error
}
