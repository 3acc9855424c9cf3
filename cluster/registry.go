package cluster

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nodius/graphsync/errors"
	"github.com/nodius/graphsync/store"
)

// registry manages this process's cluster_registry row and the periodic
// discovery sweep that finds/loses peers.
type registry struct {
	peerID           string
	host             string
	port             int
	rs               store.RegistryStore
	log              *zap.SugaredLogger
	heartbeatEvery   time.Duration
	discoverEvery    time.Duration
	staleAfter       time.Duration

	onPeerSeen  func(peerID, host string, port int)
	onPeerGone  func(peerID string)

	knownMu sync.Mutex
	known   map[string]store.RegistryRow
}

// register inserts this process's row with status "online".
func (r *registry) register(ctx context.Context) error {
	return r.rs.UpsertRegistryRow(ctx, &store.RegistryRow{
		PeerID:      r.peerID,
		Host:        r.host,
		Port:        r.port,
		Status:      "online",
		LastRefresh: time.Now(),
	})
}

// runHeartbeat refreshes lastRefresh every heartbeatEvery until ctx is done.
func (r *registry) runHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.register(ctx); err != nil {
				r.log.Warnw("registry heartbeat failed", "error", err)
			}
		}
	}
}

// runDiscovery polls every discoverEvery for live peers, reconciling against
// the last-known set and invoking onPeerSeen/onPeerGone for the delta.
func (r *registry) runDiscovery(ctx context.Context) {
	ticker := time.NewTicker(r.discoverEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.discoverOnce(ctx)
		}
	}
}

func (r *registry) discoverOnce(ctx context.Context) {
	cutoff := time.Now().Add(-r.staleAfter).UnixNano()
	live, err := r.rs.LivePeers(ctx, cutoff, r.peerID)
	if err != nil {
		r.log.Warnw("peer discovery failed", "error", err)
		return
	}

	r.knownMu.Lock()
	seen := make(map[string]struct{}, len(live))
	for _, row := range live {
		seen[row.PeerID] = struct{}{}
		if _, already := r.known[row.PeerID]; !already {
			r.known[row.PeerID] = row
			if r.onPeerSeen != nil {
				r.onPeerSeen(row.PeerID, row.Host, row.Port)
			}
		}
	}
	for peerID := range r.known {
		if _, stillLive := seen[peerID]; !stillLive {
			delete(r.known, peerID)
			if r.onPeerGone != nil {
				r.onPeerGone(peerID)
			}
		}
	}
	r.knownMu.Unlock()
}

// addressOf returns the last-known host/port for peerID, for building a
// register redirect.
func (r *registry) addressOf(peerID string) (string, int, bool) {
	r.knownMu.Lock()
	defer r.knownMu.Unlock()
	row, ok := r.known[peerID]
	return row.Host, row.Port, ok
}

// peerCount returns the number of live peers currently known, excluding
// self, for the coordinator's Stats() metrics hook.
func (r *registry) peerCount() int {
	r.knownMu.Lock()
	defer r.knownMu.Unlock()
	return len(r.known)
}

// shutdown marks this process's row offline.
func (r *registry) shutdown(ctx context.Context) error {
	if err := r.rs.MarkOffline(ctx, r.peerID); err != nil {
		return errors.Wrapf(err, "marking peer %s offline", r.peerID)
	}
	return nil
}
