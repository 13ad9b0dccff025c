package graph

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestStore() *Store {
	return FromEdges([]Edge{
		{1, 2}, {1, 3}, {2, 3}, {3, 1}, {4, 3}, {1, 2},
	})
}

func TestBuilder(t *testing.T) {
	t.Run("forward_and_reverse_in_insertion_order", func(t *testing.T) {
		s := buildTestStore()

		assert.Equal(t, []NodeID{2, 3}, s.Following(1))
		assert.Equal(t, []NodeID{1, 2, 4}, s.Followers(3))
		assert.Equal(t, []NodeID{1}, s.Followers(2))
	})

	t.Run("duplicates_ignored", func(t *testing.T) {
		s := buildTestStore()
		assert.Equal(t, 5, s.EdgeCount())
	})

	t.Run("unknown_node_has_empty_sets", func(t *testing.T) {
		s := buildTestStore()
		assert.Empty(t, s.Following(99))
		assert.NotNil(t, s.FollowingSet(99))
		assert.Equal(t, 0, s.FollowerSet(99).Size())
	})

	t.Run("add_after_build_panics", func(t *testing.T) {
		b := NewBuilder()
		b.Add(Edge{1, 2})
		b.Build()
		assert.Panics(t, func() { b.Add(Edge{2, 3}) })
	})
}

func TestStoreViews(t *testing.T) {
	s := buildTestStore()

	t.Run("sources_sorted_with_outgoing_edges", func(t *testing.T) {
		assert.Equal(t, []NodeID{1, 2, 3, 4}, s.Sources())
	})

	t.Run("node_universe", func(t *testing.T) {
		b := NewBuilder()
		b.Add(Edge{10, 20})
		b.Add(Edge{30, 20})
		st := b.Build()
		assert.Equal(t, []NodeID{10, 20, 30}, st.Nodes())
		assert.Equal(t, []NodeID{10, 30}, st.Sources())
		assert.Equal(t, 3, st.NodeCount())
	})

	t.Run("has_edge_is_directed", func(t *testing.T) {
		assert.True(t, s.HasEdge(1, 2))
		assert.False(t, s.HasEdge(2, 1))
		assert.True(t, s.HasEdge(3, 1))
	})

	t.Run("degrees", func(t *testing.T) {
		assert.Equal(t, 2, s.OutDegree(1))
		assert.Equal(t, 3, s.InDegree(3))
		assert.Equal(t, 0, s.InDegree(4))
	})
}

func TestTransposeInvariant(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	b := NewBuilder()
	for i := 0; i < 2000; i++ {
		b.Add(Edge{NodeID(rng.IntN(200)), NodeID(rng.IntN(200))})
	}
	s := b.Build()

	for _, src := range s.Nodes() {
		for _, k := range s.Following(src) {
			require.True(t, s.FollowerSet(k).Contains(src), "%d->%d missing from reverse", src, k)
		}
		for _, f := range s.Followers(src) {
			require.True(t, s.FollowingSet(f).Contains(src), "%d->%d missing from forward", f, src)
		}
	}
}

func TestFingerprint(t *testing.T) {
	t.Run("order_independent", func(t *testing.T) {
		a := FromEdges([]Edge{{1, 2}, {2, 3}, {3, 4}})
		b := FromEdges([]Edge{{3, 4}, {1, 2}, {2, 3}})
		assert.Equal(t, a.Fingerprint(), b.Fingerprint())
		assert.Len(t, a.Fingerprint(), 64)
	})

	t.Run("direction_matters", func(t *testing.T) {
		a := FromEdges([]Edge{{1, 2}})
		b := FromEdges([]Edge{{2, 1}})
		assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	})
}

func TestNodeSet(t *testing.T) {
	s := NewNodeSet(5, 1, 3, 1)
	assert.Equal(t, 3, s.Size())
	assert.True(t, s.Contains(3))
	assert.False(t, s.Contains(2))
	assert.Equal(t, []NodeID{1, 3, 5}, s.Sorted())
}

func TestEdge(t *testing.T) {
	e := Edge{Source: 1, Sink: 2}
	assert.Equal(t, "1->2", e.String())
	assert.Equal(t, Edge{Source: 2, Sink: 1}, e.Reverse())
}
