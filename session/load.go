package session

import (
	"context"

	"github.com/nodius/graphsync/errors"
	"github.com/nodius/graphsync/instruction"
	"github.com/nodius/graphsync/store"
)

// loadGraphInstance fetches every sheet's nodes and edges for graphKey,
// drops edges whose endpoint is missing (marking the sheet dirty so the
// next flush purges them — spec.md §4.2.1 and testable scenario 5), and
// seeds the instance's ID allocator from every localKey and nested
// "identifier" field observed.
func loadGraphInstance(ctx context.Context, st store.Store, graphKey string) (*ManagedInstance, error) {
	g, err := st.GetGraph(ctx, graphKey)
	if err != nil {
		return nil, errors.Wrapf(err, "loading graph %s", graphKey)
	}

	mi := newManagedInstance(graphKey)
	mi.graph = g

	var usedIDs []string

	for sheetID := range g.SheetList {
		s := mi.sheet(sheetID)

		nodes, err := st.ListNodes(ctx, graphKey, sheetID)
		if err != nil {
			return nil, errors.Wrapf(err, "loading nodes for %s/%s", graphKey, sheetID)
		}
		for i := range nodes {
			n := nodes[i]
			s.nodes[n.LocalKey] = &n
			clone := n
			s.originalNodes[n.LocalKey] = &clone
			usedIDs = append(usedIDs, n.LocalKey)
			instruction.ScanIdentifiers(n.Data, &usedIDs)
		}

		edges, err := st.ListEdges(ctx, graphKey, sheetID)
		if err != nil {
			return nil, errors.Wrapf(err, "loading edges for %s/%s", graphKey, sheetID)
		}
		for i := range edges {
			e := edges[i]
			if _, ok := s.nodes[e.Source]; !ok {
				s.originalEdges[e.LocalKey] = &e
				s.dirty = true
				continue
			}
			if _, ok := s.nodes[e.Target]; !ok {
				s.originalEdges[e.LocalKey] = &e
				s.dirty = true
				continue
			}
			s.edges[e.LocalKey] = &e
			clone := e
			s.originalEdges[e.LocalKey] = &clone
			s.indexEdge(&e)
			usedIDs = append(usedIDs, e.LocalKey)
		}
	}

	mi.idAlloc = instruction.NewIDAllocatorFromUsed(usedIDs)
	return mi, nil
}

// loadNodeConfigInstance fetches a single node-config document. Node-config
// instances have exactly one implicit "sheet" (the config's own content
// tree) and no node/edge maps.
func loadNodeConfigInstance(ctx context.Context, st store.Store, key string) (*ManagedInstance, error) {
	cfg, err := st.GetNodeConfig(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "loading node config %s", key)
	}

	mi := newManagedInstance(nodeConfigInstanceKey(key))
	mi.IsNodeConfig = true
	mi.nodeConfig = cfg

	var usedIDs []string
	instruction.ScanIdentifiers(cfg.Content, &usedIDs)
	instruction.ScanIdentifiers(cfg.Template, &usedIDs)
	mi.idAlloc = instruction.NewIDAllocatorFromUsed(usedIDs)

	return mi, nil
}

// nodeConfigInstanceKey namespaces node-config instance keys so they can't
// collide with a graphKey in the manager's instance map.
func nodeConfigInstanceKey(key string) string {
	return "nodeconfig:" + key
}
