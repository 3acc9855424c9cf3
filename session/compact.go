package session

import (
	"context"
	"sort"
	"time"
)

// CompactHistory implements the undo/redo retention sweep: history entries
// older than retention are dropped from both the in-memory catch-up buffer
// and the persisted graph_history rows. Only entries already covered by a
// flush (index < flushedUpTo) are eligible — an unflushed entry is still
// the only durable record of a pending change and must survive compaction
// regardless of age.
func CompactHistory(ctx context.Context, st historyPruner, mi *ManagedInstance, retention time.Duration) error {
	cutoff := time.Now().Add(-retention)
	var pruneErr error

	mi.submit(func() {
		for sheetID, s := range mi.sheets {
			flushed := s.history[:s.flushedUpTo]
			keepFrom := sort.Search(len(flushed), func(i int) bool {
				return !flushed[i].Timestamp.Before(cutoff)
			})
			if keepFrom == 0 {
				continue
			}

			if err := st.PruneHistory(ctx, mi.InstanceKey, sheetID, cutoff.UnixNano()); err != nil {
				pruneErr = err
				return
			}

			s.history = append([]historyEntry{}, s.history[keepFrom:]...)
			s.flushedUpTo -= keepFrom
		}
	})

	return pruneErr
}

// historyPruner is the narrow slice of store.Store CompactHistory needs,
// so session doesn't have to import store just for this one method.
type historyPruner interface {
	PruneHistory(ctx context.Context, graphKey, sheetID string, cutoff int64) error
}

// runCompaction is the periodic retention sweep across every hosted
// instance, active only when cfg.HistoryRetention is positive.
func (m *Manager) runCompaction(ctx context.Context) {
	if m.cfg.HistoryRetention <= 0 {
		return
	}
	ticker := time.NewTicker(m.cfg.CompactionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.compactAllDirty(ctx)
		}
	}
}

func (m *Manager) compactAllDirty(ctx context.Context) {
	m.mu.Lock()
	instances := make([]*ManagedInstance, 0, len(m.instances))
	for _, inst := range m.instances {
		instances = append(instances, inst)
	}
	m.mu.Unlock()

	for _, inst := range instances {
		if err := CompactHistory(ctx, m.store, inst, m.cfg.HistoryRetention); err != nil {
			m.log.Warnw("history compaction failed", "instance", inst.InstanceKey, "error", err)
		}
	}
}
