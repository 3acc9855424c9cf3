// Package session is the Session Manager: per-instance in-memory state,
// instruction application, fan-out, history, and diff-based auto-save. It
// is the WebSocket-facing half of the core; cluster ownership and durable
// storage are both injected collaborators.
package session

import (
	"sync"
	"time"

	"github.com/nodius/graphsync/instruction"
	"github.com/nodius/graphsync/store"
)

// historyEntry is one applied message recorded for catch-up and undo/redo.
// entries are kept per sheet and are strictly non-decreasing in Timestamp.
type historyEntry struct {
	Timestamp time.Time
	Message   []byte // the applyInstructionToGraph (or similar) message, as sent to clients
}

// sheetState holds one sheet's live nodes/edges, their two-way edge index,
// and the last-persisted snapshot used to compute the next auto-save diff.
type sheetState struct {
	nodes map[string]*store.Node
	edges map[string]*store.Edge

	// sourceIndex/targetIndex map a node's localKey to the localKeys of
	// edges where it is the source/target, for O(degree) cascade deletes.
	sourceIndex map[string][]string
	targetIndex map[string][]string

	originalNodes map[string]*store.Node
	originalEdges map[string]*store.Edge

	history     []historyEntry
	flushedUpTo int
	dirty       bool
}

func newSheetState() *sheetState {
	return &sheetState{
		nodes:         make(map[string]*store.Node),
		edges:         make(map[string]*store.Edge),
		sourceIndex:   make(map[string][]string),
		targetIndex:   make(map[string][]string),
		originalNodes: make(map[string]*store.Node),
		originalEdges: make(map[string]*store.Edge),
	}
}

func (s *sheetState) indexEdge(e *store.Edge) {
	s.sourceIndex[e.Source] = append(s.sourceIndex[e.Source], e.LocalKey)
	s.targetIndex[e.Target] = append(s.targetIndex[e.Target], e.LocalKey)
}

func (s *sheetState) deindexEdge(e *store.Edge) {
	s.sourceIndex[e.Source] = removeString(s.sourceIndex[e.Source], e.LocalKey)
	s.targetIndex[e.Target] = removeString(s.targetIndex[e.Target], e.LocalKey)
}

func removeString(list []string, target string) []string {
	out := list[:0]
	for _, v := range list {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}

// incidentEdges returns every edge localKey where nodeKey is source or
// target, for cascade delete.
func (s *sheetState) incidentEdges(nodeKey string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, k := range s.sourceIndex[nodeKey] {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	for _, k := range s.targetIndex[nodeKey] {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}

// ManagedInstance is the single authoritative in-memory copy of one graph
// (or one node-config) while at least one user is connected. All mutation
// to its maps, history, and dirty flags happens on the instance's own
// goroutine (run), so concurrent edits from different users are serialized
// in FIFO arrival order without an explicit lock on the hot path; Users and
// read-mostly accessors still take mu since the manager's hub goroutine
// reads them for eviction/fan-out bookkeeping from outside.
type ManagedInstance struct {
	InstanceKey string // graphKey, or "nodeconfig:"+key for a node-config instance
	IsNodeConfig bool

	graph      *store.Graph // nil for node-config instances
	nodeConfig *store.NodeConfig

	sheets  map[string]*sheetState
	idAlloc *instruction.IDAllocator

	mu sync.Mutex
	// users is keyed by socket identity, not UserID: the same user may hold
	// more than one live socket on this instance (e.g. two browser tabs on
	// different sheets), and keying by UserID would let the second
	// registration silently evict the first socket's roster entry.
	users           map[*Client]struct{}
	autoSaveEnabled bool
	lastSaveTime    time.Time

	ops  chan func()
	stop chan struct{}
}

func newManagedInstance(instanceKey string) *ManagedInstance {
	mi := &ManagedInstance{
		InstanceKey:     instanceKey,
		sheets:          make(map[string]*sheetState),
		users:           make(map[*Client]struct{}),
		autoSaveEnabled: true,
		ops:             make(chan func(), 64),
		stop:            make(chan struct{}),
	}
	go mi.run()
	return mi
}

// run is the instance's single-threaded cooperative reactor: every
// mutating operation is submitted as a closure and executed here, in
// arrival order, so instructions from all users are totally ordered per
// spec.md's concurrency model (§5, option "serialize per-instance work on a
// per-instance goroutine").
func (mi *ManagedInstance) run() {
	for {
		select {
		case fn := <-mi.ops:
			fn()
		case <-mi.stop:
			return
		}
	}
}

// submit enqueues fn and blocks until it has run, returning whatever fn
// sends back through the closure's own captured variables. Callers that
// need a result close over a local variable and read it after submit
// returns.
func (mi *ManagedInstance) submit(fn func()) {
	done := make(chan struct{})
	mi.ops <- func() {
		fn()
		close(done)
	}
	<-done
}

func (mi *ManagedInstance) Close() {
	close(mi.stop)
}

func (mi *ManagedInstance) sheet(sheetID string) *sheetState {
	s, ok := mi.sheets[sheetID]
	if !ok {
		s = newSheetState()
		mi.sheets[sheetID] = s
	}
	return s
}

func (mi *ManagedInstance) addUser(c *Client) {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	mi.users[c] = struct{}{}
}

// removeUser drops exactly the given socket from the roster. It must take
// the *Client itself rather than a bare UserID: the same user may have a
// second socket still registered (a different browser tab on a different
// sheet), and that second socket's entry must survive this one's removal.
func (mi *ManagedInstance) removeUser(c *Client) {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	delete(mi.users, c)
}

func (mi *ManagedInstance) userCount() int {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return len(mi.users)
}

// usersOnSheets returns the deduplicated set of clients present on any of
// the given sheets, so a user bound to multiple affected sheets (multiple
// sockets, same UserID) is still fanned out to only once, per the "one
// copy per user" decision — the dedup happens here, over the roster, not
// by how the roster itself is keyed.
func (mi *ManagedInstance) usersOnSheets(sheetIDs map[string]struct{}) []*Client {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	seen := make(map[string]*Client)
	for c := range mi.users {
		if _, ok := sheetIDs[c.BoundSheetID]; ok {
			if _, already := seen[c.UserID]; !already {
				seen[c.UserID] = c
			}
		}
	}
	out := make([]*Client, 0, len(seen))
	for _, c := range seen {
		out = append(out, c)
	}
	return out
}

func (mi *ManagedInstance) allUsers() []*Client {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	out := make([]*Client, 0, len(mi.users))
	for c := range mi.users {
		out = append(out, c)
	}
	return out
}

func (mi *ManagedInstance) markDirty(sheetID string) {
	mi.sheet(sheetID).dirty = true
}

func (mi *ManagedInstance) isDirty() bool {
	for _, s := range mi.sheets {
		if s.dirty {
			return true
		}
	}
	return false
}
