package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodius/graphsync/store"
)

func TestSheetStateIndexAndIncidentEdges(t *testing.T) {
	s := newSheetState()
	s.nodes["a"] = &store.Node{LocalKey: "a"}
	s.nodes["b"] = &store.Node{LocalKey: "b"}
	s.nodes["c"] = &store.Node{LocalKey: "c"}

	ab := &store.Edge{LocalKey: "ab", Source: "a", Target: "b"}
	bc := &store.Edge{LocalKey: "bc", Source: "b", Target: "c"}
	s.edges["ab"] = ab
	s.edges["bc"] = bc
	s.indexEdge(ab)
	s.indexEdge(bc)

	incident := s.incidentEdges("b")
	assert.ElementsMatch(t, []string{"ab", "bc"}, incident)

	s.deindexEdge(ab)
	assert.ElementsMatch(t, []string{"bc"}, s.incidentEdges("b"))
	assert.Empty(t, s.incidentEdges("a"))
}

func TestManagedInstanceSubmitRunsSerially(t *testing.T) {
	mi := newManagedInstance("g1")
	defer mi.Close()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		mi.submit(func() { order = append(order, i) })
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestManagedInstanceUserBookkeeping(t *testing.T) {
	mi := newManagedInstance("g1")
	defer mi.Close()

	c1 := &Client{UserID: "u1", BoundSheetID: "s1"}
	c2 := &Client{UserID: "u2", BoundSheetID: "s2"}
	mi.addUser(c1)
	mi.addUser(c2)

	require.Equal(t, 2, mi.userCount())
	assert.Len(t, mi.allUsers(), 2)

	onS1 := mi.usersOnSheets(map[string]struct{}{"s1": {}})
	require.Len(t, onS1, 1)
	assert.Equal(t, "u1", onS1[0].UserID)

	mi.removeUser(c1)
	assert.Equal(t, 1, mi.userCount())
}

// TestManagedInstanceMultiSocketSameUser covers the scenario where one
// UserID holds two live sockets bound to different sheets (two browser
// tabs): both must stay on the roster independently, fan-out must still
// dedup to one message per UserID, and closing one socket must not evict
// the other still-connected socket's roster entry.
func TestManagedInstanceMultiSocketSameUser(t *testing.T) {
	mi := newManagedInstance("g1")
	defer mi.Close()

	tab1 := &Client{UserID: "u1", BoundSheetID: "s1"}
	tab2 := &Client{UserID: "u1", BoundSheetID: "s2"}
	mi.addUser(tab1)
	mi.addUser(tab2)

	require.Equal(t, 2, mi.userCount(), "both sockets for the same user must occupy independent roster entries")
	assert.Len(t, mi.allUsers(), 2)

	both := mi.usersOnSheets(map[string]struct{}{"s1": {}, "s2": {}})
	require.Len(t, both, 1, "a user bound to multiple affected sheets is fanned out to only once")
	assert.Equal(t, "u1", both[0].UserID)

	mi.removeUser(tab1)
	assert.Equal(t, 1, mi.userCount(), "removing one socket must not evict the other socket still belonging to the same user")
	remaining := mi.allUsers()
	require.Len(t, remaining, 1)
	assert.Same(t, tab2, remaining[0])
}

func TestManagedInstanceDirtyTracking(t *testing.T) {
	mi := newManagedInstance("g1")
	defer mi.Close()

	assert.False(t, mi.isDirty())
	mi.markDirty("sheetA")
	assert.True(t, mi.isDirty())
}
