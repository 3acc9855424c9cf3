package session

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nodius/graphsync/cluster"
	"github.com/nodius/graphsync/store"
)

// Config tunes the manager's background tasks and protocol limits.
type Config struct {
	AutoSaveInterval    time.Duration // ~30s per spec.md §4.2.5
	EvictionInterval    time.Duration // ~10s per spec.md §4.2.6
	MaxInstructionBatch int           // 20 per spec.md §4.2.2 step 1
	AllowedOrigins      []string

	// HistoryRetention is how long a flushed history entry is kept before
	// CompactHistory prunes it; zero disables compaction entirely.
	HistoryRetention   time.Duration
	CompactionInterval time.Duration
}

// DefaultConfig matches the spec's default cadences.
func DefaultConfig() Config {
	return Config{
		AutoSaveInterval:    30 * time.Second,
		EvictionInterval:    10 * time.Second,
		MaxInstructionBatch: 20,
		CompactionInterval:  time.Hour,
	}
}

// Manager is the Session Manager hub: it owns every ManagedInstance hosted
// on this process, the WebSocket upgrader, and the auto-save/eviction
// background loops. Unlike the teacher's single global broadcast channel,
// fan-out here is per-instance (see ManagedInstance.run) since instances
// are independent units of ownership and concurrency.
type Manager struct {
	cfg   Config
	store store.Store
	coord *cluster.Coordinator
	log   *zap.SugaredLogger

	mu        sync.Mutex
	instances map[string]*ManagedInstance

	upgrader websocket.Upgrader

	cancel context.CancelFunc
}

// New constructs a Manager. coord may be nil for a single-process
// deployment with no cluster coordination.
func New(cfg Config, st store.Store, coord *cluster.Coordinator, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	m := &Manager{
		cfg:       cfg,
		store:     st,
		coord:     coord,
		log:       log,
		instances: make(map[string]*ManagedInstance),
	}
	m.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     m.checkOrigin,
	}
	return m
}

func (m *Manager) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(m.cfg.AllowedOrigins) == 0 {
		return strings.HasPrefix(origin, "http://localhost") || strings.HasPrefix(origin, "https://localhost")
	}
	for _, allowed := range m.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Start launches the auto-save and eviction background loops.
func (m *Manager) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go m.runAutoSave(ctx)
	go m.runEviction(ctx)
	go m.runCompaction(ctx)
}

// Stop force-flushes and releases every hosted instance, per spec.md §5's
// shutdown ordering (flush, then release, then the caller closes cluster
// sockets via Coordinator.Stop).
func (m *Manager) Stop(ctx context.Context) {
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Lock()
	keys := make([]string, 0, len(m.instances))
	for k := range m.instances {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	for _, key := range keys {
		m.evictInstance(ctx, key)
	}
}

// ServeWS upgrades an HTTP request to a WebSocket and runs the resulting
// client's pumps in the caller's goroutine (callers should invoke this from
// their own per-connection goroutine, e.g. an http.HandlerFunc).
func (m *Manager) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Warnw("websocket upgrade failed", "error", err)
		return
	}
	c := newClient(m, conn, m.log)
	c.Serve()
}

func (m *Manager) unregisterClient(c *Client) {
	if c.InstanceKey == "" {
		return
	}
	m.mu.Lock()
	inst, ok := m.instances[c.InstanceKey]
	m.mu.Unlock()
	if !ok {
		return
	}
	inst.removeUser(c)
	m.fanOutDisconnect(inst, c)
}

func (m *Manager) fanOutDisconnect(inst *ManagedInstance, leaving *Client) {
	msgType := "disconnectedUserOnGraph"
	if inst.IsNodeConfig {
		msgType = "disconnectedUserOnNodeConfig"
	}
	for _, peer := range inst.allUsers() {
		peer.sendJSON(map[string]any{"type": msgType, "userId": leaving.UserID})
	}
}

// instanceByKey returns the currently hosted instance, if any, without
// loading it from the Store.
func (m *Manager) instanceByKey(key string) (*ManagedInstance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[key]
	return inst, ok
}

func (m *Manager) putInstance(key string, inst *ManagedInstance) {
	m.mu.Lock()
	m.instances[key] = inst
	m.mu.Unlock()
}

func (m *Manager) dropInstance(key string) {
	m.mu.Lock()
	delete(m.instances, key)
	m.mu.Unlock()
}

// HostedInstanceKeys lists every instance currently resident in memory, for
// the /api/instances operability endpoint.
func (m *Manager) HostedInstanceKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.instances))
	for k := range m.instances {
		out = append(out, k)
	}
	return out
}
