package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodius/graphsync/errors"
	"github.com/nodius/graphsync/instruction"
	"github.com/nodius/graphsync/store"
)

func newTestInstance() *ManagedInstance {
	mi := newManagedInstance("g1")
	mi.idAlloc = instruction.NewIDAllocatorFromUsed(nil)
	return mi
}

func TestBatchCreateElementsSelfConsistentBatch(t *testing.T) {
	mi := newTestInstance()
	defer mi.Close()

	var result batchCreateResult
	mi.submit(func() {
		result = batchCreateElements(mi, "s1",
			[]store.Node{{LocalKey: "a", SheetID: "s1"}, {LocalKey: "b", SheetID: "s1"}},
			[]store.Edge{{LocalKey: "ab", SheetID: "s1", Source: "a", Target: "b"}},
		)
	})

	require.NoError(t, result.err)
	s := mi.sheet("s1")
	assert.Contains(t, s.nodes, "a")
	assert.Contains(t, s.edges, "ab")
	assert.True(t, mi.idAlloc.Contains("a"))
	assert.True(t, mi.idAlloc.Contains("ab"))
}

func TestBatchCreateElementsRejectsDuplicateKey(t *testing.T) {
	mi := newTestInstance()
	defer mi.Close()

	mi.submit(func() {
		mi.sheet("s1").nodes["a"] = &store.Node{LocalKey: "a", SheetID: "s1"}
	})

	var result batchCreateResult
	mi.submit(func() {
		result = batchCreateElements(mi, "s1", []store.Node{{LocalKey: "a", SheetID: "s1"}}, nil)
	})

	require.Error(t, result.err)
	assert.ErrorIs(t, result.err, errors.ErrDuplicateKey)
}

func TestBatchCreateElementsRejectsEdgeWithUnknownEndpoint(t *testing.T) {
	mi := newTestInstance()
	defer mi.Close()

	var result batchCreateResult
	mi.submit(func() {
		result = batchCreateElements(mi, "s1",
			[]store.Node{{LocalKey: "a", SheetID: "s1"}},
			[]store.Edge{{LocalKey: "ab", SheetID: "s1", Source: "a", Target: "ghost"}},
		)
	})

	require.Error(t, result.err)
	assert.ErrorIs(t, result.err, errors.ErrNotFound)
}

// TestBatchDeleteElementsCascadesIncidentEdges is scenario 3: deleting node
// "b" must remove both its incident edges, and the ID allocator must still
// remember all three keys so none of them is ever reissued.
func TestBatchDeleteElementsCascadesIncidentEdgesAndNeverReusesID(t *testing.T) {
	mi := newTestInstance()
	defer mi.Close()

	mi.submit(func() {
		result := batchCreateElements(mi, "s1",
			[]store.Node{{LocalKey: "a", SheetID: "s1"}, {LocalKey: "b", SheetID: "s1"}, {LocalKey: "c", SheetID: "s1"}},
			[]store.Edge{
				{LocalKey: "ab", SheetID: "s1", Source: "a", Target: "b"},
				{LocalKey: "bc", SheetID: "s1", Source: "b", Target: "c"},
			},
		)
		require.NoError(t, result.err)
	})

	var result batchCreateResult
	mi.submit(func() {
		result = batchDeleteElements(mi, "s1", []string{"b"}, nil)
	})
	require.NoError(t, result.err)

	s := mi.sheet("s1")
	assert.NotContains(t, s.nodes, "b")
	assert.NotContains(t, s.edges, "ab")
	assert.NotContains(t, s.edges, "bc")
	assert.Contains(t, s.nodes, "a")
	assert.Contains(t, s.nodes, "c")

	assert.True(t, mi.idAlloc.Contains("b"), "a deleted key must remain in the used-ID set so it is never reissued")
	assert.True(t, mi.idAlloc.Contains("ab"))
}

func TestBatchDeleteElementsUnknownKeyFails(t *testing.T) {
	mi := newTestInstance()
	defer mi.Close()

	var result batchCreateResult
	mi.submit(func() {
		result = batchDeleteElements(mi, "s1", []string{"ghost"}, nil)
	})
	assert.Error(t, result.err)
}
