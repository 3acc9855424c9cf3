package session

import (
	"github.com/nodius/graphsync/errors"
	"github.com/nodius/graphsync/store"
)

// batchCreateResult carries the affected sheet set for fan-out/dirty
// bookkeeping by the caller, which runs this from inside mi.submit.
type batchCreateResult struct {
	affectedSheets map[string]struct{}
	err            error
}

// batchCreateElements implements spec.md §4.2.3: every new node/edge must
// land on a sheet of this instance, every key must be globally unique
// (not already present, not already used historically, not duplicated
// within the batch), and every edge must reference a node that exists
// either in the current state or elsewhere in the same batch
// (self-consistent batches). All-or-nothing.
func batchCreateElements(mi *ManagedInstance, sheetID string, nodes []store.Node, edges []store.Edge) batchCreateResult {
	s := mi.sheet(sheetID)

	seenKeys := make(map[string]struct{})
	nodeKeysInBatch := make(map[string]struct{}, len(nodes))

	for _, n := range nodes {
		if n.SheetID != sheetID {
			return batchCreateResult{err: errors.Wrapf(errors.ErrInvalidInstruction, "node %q targets sheet %q, not %q", n.LocalKey, n.SheetID, sheetID)}
		}
		if _, exists := s.nodes[n.LocalKey]; exists {
			return batchCreateResult{err: errors.Wrapf(errors.ErrDuplicateKey, "node key %q already exists", n.LocalKey)}
		}
		if mi.idAlloc.Contains(n.LocalKey) {
			return batchCreateResult{err: errors.Wrapf(errors.ErrDuplicateKey, "node key %q was previously used", n.LocalKey)}
		}
		if _, dup := seenKeys[n.LocalKey]; dup {
			return batchCreateResult{err: errors.Wrapf(errors.ErrDuplicateKey, "node key %q duplicated in batch", n.LocalKey)}
		}
		seenKeys[n.LocalKey] = struct{}{}
		nodeKeysInBatch[n.LocalKey] = struct{}{}
	}

	for _, e := range edges {
		if e.SheetID != sheetID {
			return batchCreateResult{err: errors.Wrapf(errors.ErrInvalidInstruction, "edge %q targets sheet %q, not %q", e.LocalKey, e.SheetID, sheetID)}
		}
		if _, exists := s.edges[e.LocalKey]; exists {
			return batchCreateResult{err: errors.Wrapf(errors.ErrDuplicateKey, "edge key %q already exists", e.LocalKey)}
		}
		if mi.idAlloc.Contains(e.LocalKey) {
			return batchCreateResult{err: errors.Wrapf(errors.ErrDuplicateKey, "edge key %q was previously used", e.LocalKey)}
		}
		if _, dup := seenKeys[e.LocalKey]; dup {
			return batchCreateResult{err: errors.Wrapf(errors.ErrDuplicateKey, "edge key %q duplicated in batch", e.LocalKey)}
		}
		seenKeys[e.LocalKey] = struct{}{}

		if _, ok := s.nodes[e.Source]; !ok {
			if _, ok := nodeKeysInBatch[e.Source]; !ok {
				return batchCreateResult{err: errors.Wrapf(errors.ErrNotFound, "edge %q source %q not in graph or batch", e.LocalKey, e.Source)}
			}
		}
		if _, ok := s.nodes[e.Target]; !ok {
			if _, ok := nodeKeysInBatch[e.Target]; !ok {
				return batchCreateResult{err: errors.Wrapf(errors.ErrNotFound, "edge %q target %q not in graph or batch", e.LocalKey, e.Target)}
			}
		}
	}

	// Validation passed: commit.
	for i := range nodes {
		n := nodes[i]
		s.nodes[n.LocalKey] = &n
		mi.idAlloc.Mark(n.LocalKey)
	}
	for i := range edges {
		e := edges[i]
		s.edges[e.LocalKey] = &e
		s.indexEdge(&e)
		mi.idAlloc.Mark(e.LocalKey)
	}
	s.dirty = true

	return batchCreateResult{affectedSheets: map[string]struct{}{sheetID: {}}}
}

// batchDeleteElements implements spec.md §4.2.3's delete half: edges first
// (clearing both index slots), then nodes; the sheet's dirty flag carries
// the deletion through to the next flush, which issues the actual
// Store.DeleteNode/DeleteEdge calls. Deletes never remove a key from the
// ID allocator's used set (IDs are never reused, even after deletion —
// spec.md §8 invariant 3 / scenario 3).
func batchDeleteElements(mi *ManagedInstance, sheetID string, nodeKeys, edgeKeys []string) batchCreateResult {
	s := mi.sheet(sheetID)

	for _, k := range edgeKeys {
		if _, ok := s.edges[k]; !ok {
			return batchCreateResult{err: errors.Wrapf(errors.ErrNotFound, "edge %q", k)}
		}
	}
	for _, k := range nodeKeys {
		if _, ok := s.nodes[k]; !ok {
			return batchCreateResult{err: errors.Wrapf(errors.ErrNotFound, "node %q", k)}
		}
	}

	for _, k := range edgeKeys {
		e := s.edges[k]
		s.deindexEdge(e)
		delete(s.edges, k)
	}
	for _, k := range nodeKeys {
		for _, incident := range s.incidentEdges(k) {
			if e, ok := s.edges[incident]; ok {
				s.deindexEdge(e)
				delete(s.edges, incident)
			}
		}
		delete(s.nodes, k)
	}
	s.dirty = true

	return batchCreateResult{affectedSheets: map[string]struct{}{sheetID: {}}}
}
