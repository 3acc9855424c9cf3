package session

import (
	"context"
	"time"
)

// runEviction is the ~10s sweep of spec.md §4.2.6: drop closed sockets,
// and once an instance's user set empties, force-flush, drop it from
// memory, and release cluster ownership.
func (m *Manager) runEviction(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.EvictionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepOnce(ctx)
		}
	}
}

func (m *Manager) sweepOnce(ctx context.Context) {
	m.mu.Lock()
	keys := make([]string, 0, len(m.instances))
	for k := range m.instances {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	for _, key := range keys {
		inst, ok := m.instanceByKey(key)
		if !ok {
			continue
		}
		var remaining int
		inst.submit(func() {
			for _, c := range inst.allUsers() {
				if c.IsClosed() {
					inst.removeUser(c)
				}
			}
			remaining = inst.userCount()
		})
		if remaining == 0 {
			m.evictInstance(ctx, key)
		}
	}
}

// evictInstance flushes, releases ownership, and removes instanceKey from
// memory. Per the flush-before-release decision (DESIGN.md), release only
// happens once the flush has completed, so a peer that observes the
// IReleaseInstance broadcast and loads fresh state never misses data this
// process hadn't yet persisted.
func (m *Manager) evictInstance(ctx context.Context, instanceKey string) {
	inst, ok := m.instanceByKey(instanceKey)
	if !ok {
		return
	}
	if err := flushInstance(ctx, m.store, inst); err != nil {
		m.log.Warnw("force-flush on eviction failed, keeping instance resident", "instance", instanceKey, "error", err)
		return
	}
	m.dropInstance(instanceKey)
	inst.Close()
	if m.coord != nil {
		m.coord.ReleaseOwnership(instanceKey)
	}
}
