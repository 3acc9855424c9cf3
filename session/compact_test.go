package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodius/graphsync/logger"
	"github.com/nodius/graphsync/store"
)

// TestCompactHistoryPrunesOnlyFlushedEntriesOlderThanRetention covers the
// undo/redo retention sweep: entries past the retention window and already
// covered by a flush are dropped from both the in-memory buffer and the
// store; anything newer, regardless of flush state, survives.
func TestCompactHistoryPrunesOnlyFlushedEntriesOlderThanRetention(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	seedGraph(t, st, "g1", "s1")
	m := newTestManager(st)

	c := &Client{log: logger.Nop(), send: make(chan any, 32)}
	m.registerUserOnGraph(ctx, c, &InMessage{GraphKey: "g1", SheetID: "s1", UserID: "u1"})
	inst, ok := m.instanceByKey("g1")
	require.True(t, ok)

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now().Add(-time.Minute)

	require.NoError(t, st.AppendHistory(ctx, &store.HistoryBatch{
		Key: "g1-s1-old", GraphKey: "g1", SheetID: "s1", Timestamp: old, Entries: []byte(`{}`),
	}))
	require.NoError(t, st.AppendHistory(ctx, &store.HistoryBatch{
		Key: "g1-s1-recent", GraphKey: "g1", SheetID: "s1", Timestamp: recent, Entries: []byte(`{}`),
	}))

	inst.submit(func() {
		s := inst.sheet("s1")
		s.history = append(s.history,
			historyEntry{Timestamp: old, Message: []byte(`{"type":"old"}`)},
			historyEntry{Timestamp: recent, Message: []byte(`{"type":"recent"}`)},
		)
		s.flushedUpTo = len(s.history) // both entries already persisted
	})

	require.NoError(t, CompactHistory(ctx, st, inst, 24*time.Hour))

	var remaining []historyEntry
	inst.submit(func() {
		remaining = append(remaining, inst.sheet("s1").history...)
	})
	require.Len(t, remaining, 1)
	assert.Contains(t, string(remaining[0].Message), "recent")

	storeHistory, err := st.HistorySince(ctx, "g1", "s1", 0)
	require.NoError(t, err)
	require.Len(t, storeHistory, 1)
	assert.Equal(t, "g1-s1-recent", storeHistory[0].Key)
}

// TestCompactHistoryKeepsUnflushedEntriesRegardlessOfAge ensures a pending
// (not-yet-flushed) entry is never pruned even if it's older than the
// retention window: it's the only durable record of that change until a
// flush has a chance to persist it.
func TestCompactHistoryKeepsUnflushedEntriesRegardlessOfAge(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	seedGraph(t, st, "g1", "s1")
	m := newTestManager(st)

	c := &Client{log: logger.Nop(), send: make(chan any, 32)}
	m.registerUserOnGraph(ctx, c, &InMessage{GraphKey: "g1", SheetID: "s1", UserID: "u1"})
	inst, ok := m.instanceByKey("g1")
	require.True(t, ok)

	old := time.Now().Add(-48 * time.Hour)
	inst.submit(func() {
		s := inst.sheet("s1")
		s.history = append(s.history, historyEntry{Timestamp: old, Message: []byte(`{"type":"old"}`)})
		s.flushedUpTo = 0 // not yet flushed
	})

	require.NoError(t, CompactHistory(ctx, st, inst, 24*time.Hour))

	var remaining int
	inst.submit(func() {
		remaining = len(inst.sheet("s1").history)
	})
	assert.Equal(t, 1, remaining)
}
