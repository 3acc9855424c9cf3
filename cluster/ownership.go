package cluster

import (
	"sync"

	"github.com/nodius/graphsync/errors"
)

// ownershipMap is the process-local, eventually-consistent instanceKey ->
// peerId mirror. Reads and writes are cheap; no I/O happens under its lock.
type ownershipMap struct {
	mu     sync.RWMutex
	self   string
	owners map[string]string // instanceKey -> peerId
}

func newOwnershipMap(self string) *ownershipMap {
	return &ownershipMap{self: self, owners: make(map[string]string)}
}

// getOwnerOf returns the peerId that owns instanceKey, "" if nobody does.
// The caller compares the result against Self() to recognize local
// ownership.
func (m *ownershipMap) getOwnerOf(instanceKey string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.owners[instanceKey]
}

// claimOwnership sets the local map to self. If another peer is already
// recorded as owner it leaves the map unchanged and returns
// ErrOwnedElsewhere.
func (m *ownershipMap) claimOwnership(instanceKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if owner, ok := m.owners[instanceKey]; ok && owner != m.self {
		return errors.Wrapf(errors.ErrOwnedElsewhere, "instance %s owned by %s", instanceKey, owner)
	}
	m.owners[instanceKey] = m.self
	return nil
}

func (m *ownershipMap) releaseOwnership(instanceKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.owners, instanceKey)
}

// observeManage applies a remote IManageInstance announcement.
func (m *ownershipMap) observeManage(instanceKey, senderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[instanceKey] = senderID
}

// observeRelease applies a remote IReleaseInstance announcement.
func (m *ownershipMap) observeRelease(instanceKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.owners, instanceKey)
}

// pruneOwnedBy removes every entry owned by a peer that has vanished from
// the registry, so stale ownership left by a crashed peer is eventually
// forgotten.
func (m *ownershipMap) pruneOwnedBy(peerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.owners {
		if v == peerID {
			delete(m.owners, k)
		}
	}
}

func (m *ownershipMap) Self() string {
	return m.self
}

// size returns the number of instanceKeys currently tracked, owned locally
// or remotely, for the coordinator's Stats() metrics hook.
func (m *ownershipMap) size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.owners)
}
