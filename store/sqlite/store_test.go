package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nodius/graphsync/errors"
	"github.com/nodius/graphsync/logger"
	"github.com/nodius/graphsync/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(DefaultOptions(path), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGraphRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	g := &store.Graph{
		Key:       "g1",
		Name:      "demo",
		Workspace: "ws1",
		SheetList: map[string]string{"s1": "Main"},
		Metadata:  map[string]bool{"noMultipleSheet": false},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, s.PutGraph(ctx, g))

	got, err := s.GetGraph(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, "demo", got.Name)
	require.Equal(t, "Main", got.SheetList["s1"])

	require.NoError(t, s.DeleteGraph(ctx, "g1"))
	_, err = s.GetGraph(ctx, "g1")
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestNodeEdgeCascadeLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n1 := &store.Node{LocalKey: "n1", GraphKey: "g1", SheetID: "s1", Type: "start"}
	n2 := &store.Node{LocalKey: "n2", GraphKey: "g1", SheetID: "s1", Type: "end"}
	require.NoError(t, s.PutNode(ctx, n1))
	require.NoError(t, s.PutNode(ctx, n2))

	e1 := &store.Edge{LocalKey: "e1", GraphKey: "g1", SheetID: "s1", Source: "n1", Target: "n2"}
	require.NoError(t, s.PutEdge(ctx, e1))

	incident, err := s.EdgesByEndpoint(ctx, "g1", "n1")
	require.NoError(t, err)
	require.Len(t, incident, 1)
	require.Equal(t, "e1", incident[0].LocalKey)

	nodes, err := s.ListNodes(ctx, "g1", "s1")
	require.NoError(t, err)
	require.Len(t, nodes, 2)
}

func TestHistoryOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, s.AppendHistory(ctx, &store.HistoryBatch{
		Key: "h1", GraphKey: "g1", SheetID: "s1", Timestamp: base, Entries: []byte("a"),
	}))
	require.NoError(t, s.AppendHistory(ctx, &store.HistoryBatch{
		Key: "h2", GraphKey: "g1", SheetID: "s1", Timestamp: base.Add(time.Second), Entries: []byte("b"),
	}))

	batches, err := s.HistorySince(ctx, "g1", "s1", base.UnixNano())
	require.NoError(t, err)
	require.Len(t, batches, 2)
	require.Equal(t, "h1", batches[0].Key)
	require.Equal(t, "h2", batches[1].Key)
}

func TestRegistryLivePeers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, s.UpsertRegistryRow(ctx, &store.RegistryRow{
		PeerID: "peer-a", Host: "10.0.0.1", Port: 9770, Status: "online", LastRefresh: now,
	}))
	require.NoError(t, s.UpsertRegistryRow(ctx, &store.RegistryRow{
		PeerID: "peer-b", Host: "10.0.0.2", Port: 9770, Status: "online", LastRefresh: now.Add(-time.Hour),
	}))

	cutoff := now.Add(-time.Minute).UnixNano()
	live, err := s.LivePeers(ctx, cutoff, "peer-self")
	require.NoError(t, err)
	require.Len(t, live, 1)
	require.Equal(t, "peer-a", live[0].PeerID)

	require.NoError(t, s.MarkOffline(ctx, "peer-a"))
	live, err = s.LivePeers(ctx, cutoff, "peer-self")
	require.NoError(t, err)
	require.Len(t, live, 0)
}
