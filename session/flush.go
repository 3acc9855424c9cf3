package session

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	"github.com/nodius/graphsync/store"
)

// flushInstance implements spec.md §4.2.5's diff-based auto-save. It runs
// as a single closure submitted to mi's own goroutine, so concurrent edits
// to the same instance are queued behind the flush rather than racing a
// concurrently-read snapshot — the "(a)" choice spec.md §5 offers for the
// suspension point inside a Store write.
func flushInstance(ctx context.Context, st store.Store, mi *ManagedInstance) error {
	var flushErr error

	mi.submit(func() {
		for sheetID, s := range mi.sheets {
			if !s.dirty {
				continue
			}

			for key, n := range s.nodes {
				old, existed := s.originalNodes[key]
				if !existed || !nodeEqual(old, n) {
					if err := st.PutNode(ctx, n); err != nil {
						flushErr = err
						return
					}
				}
			}
			for key := range s.originalNodes {
				if _, stillPresent := s.nodes[key]; !stillPresent {
					if err := st.DeleteNode(ctx, mi.InstanceKey, key); err != nil {
						flushErr = err
						return
					}
				}
			}

			for key, e := range s.edges {
				old, existed := s.originalEdges[key]
				if !existed || !edgeEqual(old, e) {
					if err := st.PutEdge(ctx, e); err != nil {
						flushErr = err
						return
					}
				}
			}
			for key := range s.originalEdges {
				if _, stillPresent := s.edges[key]; !stillPresent {
					if err := st.DeleteEdge(ctx, mi.InstanceKey, key); err != nil {
						flushErr = err
						return
					}
				}
			}

			if pending := s.history[s.flushedUpTo:]; len(pending) > 0 {
				entries, _ := json.Marshal(pending)
				batch := &store.HistoryBatch{
					Key:       mi.InstanceKey + "-" + sheetID + "-" + time.Now().Format(time.RFC3339Nano),
					GraphKey:  mi.InstanceKey,
					SheetID:   sheetID,
					Timestamp: time.Now(),
					Entries:   entries,
				}
				if err := st.AppendHistory(ctx, batch); err != nil {
					flushErr = err
					return
				}
				s.flushedUpTo = len(s.history)
			}

			s.originalNodes = cloneNodeMap(s.nodes)
			s.originalEdges = cloneEdgeMap(s.edges)
			s.dirty = false
		}

		if mi.graph != nil {
			mi.graph.UpdatedAt = time.Now()
			if err := st.PutGraph(ctx, mi.graph); err != nil {
				flushErr = err
				return
			}
		}
		if mi.nodeConfig != nil {
			if err := st.PutNodeConfig(ctx, mi.nodeConfig); err != nil {
				flushErr = err
				return
			}
		}

		mi.lastSaveTime = time.Now()
	})

	return flushErr
}

func nodeEqual(a, b *store.Node) bool {
	return reflect.DeepEqual(a, b)
}

func edgeEqual(a, b *store.Edge) bool {
	return reflect.DeepEqual(a, b)
}

func cloneNodeMap(m map[string]*store.Node) map[string]*store.Node {
	out := make(map[string]*store.Node, len(m))
	for k, v := range m {
		clone := *v
		out[k] = &clone
	}
	return out
}

func cloneEdgeMap(m map[string]*store.Edge) map[string]*store.Edge {
	out := make(map[string]*store.Edge, len(m))
	for k, v := range m {
		clone := *v
		out[k] = &clone
	}
	return out
}

// runAutoSave is the ~30s periodic task across every hosted instance with
// auto-save enabled (spec.md §4.2.5); disabled instances are skipped and
// only flushed by forceSave.
func (m *Manager) runAutoSave(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.AutoSaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.flushAllDirty(ctx)
		}
	}
}

func (m *Manager) flushAllDirty(ctx context.Context) {
	m.mu.Lock()
	instances := make([]*ManagedInstance, 0, len(m.instances))
	for _, inst := range m.instances {
		instances = append(instances, inst)
	}
	m.mu.Unlock()

	for _, inst := range instances {
		var autoSave, dirty bool
		inst.submit(func() {
			autoSave = inst.autoSaveEnabled
			dirty = inst.isDirty()
		})
		if !autoSave || !dirty {
			continue
		}
		if err := flushInstance(ctx, m.store, inst); err != nil {
			m.log.Warnw("auto-save flush failed, will retry next tick", "instance", inst.InstanceKey, "error", err)
			continue
		}
		m.broadcastSaveStatus(inst)
	}
}

// forceSave triggers an immediate flush regardless of autoSaveEnabled and
// blocks until it completes.
func (m *Manager) forceSave(ctx context.Context, inst *ManagedInstance) error {
	if err := flushInstance(ctx, m.store, inst); err != nil {
		return err
	}
	m.broadcastSaveStatus(inst)
	return nil
}

func (m *Manager) toggleAutoSave(inst *ManagedInstance, enabled bool) {
	inst.submit(func() {
		inst.autoSaveEnabled = enabled
	})
}

func (m *Manager) broadcastSaveStatus(inst *ManagedInstance) {
	var hasUnsaved bool
	var autoSave bool
	var lastSave time.Time
	inst.submit(func() {
		hasUnsaved = inst.isDirty()
		autoSave = inst.autoSaveEnabled
		lastSave = inst.lastSaveTime
	})
	msg := map[string]any{
		"type":              "saveStatus",
		"lastSaveTime":      lastSave,
		"hasUnsavedChanges": hasUnsaved,
		"autoSaveEnabled":   autoSave,
	}
	for _, c := range inst.allUsers() {
		c.sendJSON(msg)
	}
}
