package linkpredict

import (
	"context"
	"math/rand/v2"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/edgepredict/pkg/graph"
)

// neighbourGraph:
//
//	1 -> 10, 11, 12
//	2 -> 10, 11, 20
//	3 -> 10, 30
//	4 -> 40
func neighbourGraph() *graph.Store {
	return graph.FromEdges([]graph.Edge{
		{Source: 1, Sink: 10}, {Source: 1, Sink: 11}, {Source: 1, Sink: 12},
		{Source: 2, Sink: 10}, {Source: 2, Sink: 11}, {Source: 2, Sink: 20},
		{Source: 3, Sink: 10}, {Source: 3, Sink: 30},
		{Source: 4, Sink: 40},
	})
}

// steppingClock advances by step on every call.
type steppingClock struct {
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func TestTopK(t *testing.T) {
	t.Run("bounded_and_sorted", func(t *testing.T) {
		rng := rand.New(rand.NewPCG(1, 2))
		top := NewTopK(10)
		for i := 0; i < 1000; i++ {
			top.Insert(Neighbour{ID: graph.NodeID(i), Similarity: rng.Float64()})
			require.LessOrEqual(t, top.Len(), 10)
			items := top.Items()
			require.True(t, sort.SliceIsSorted(items, func(a, b int) bool {
				return items[a].Similarity > items[b].Similarity
			}))
		}
		assert.Equal(t, 10, top.Len())
	})

	t.Run("keeps_the_largest", func(t *testing.T) {
		top := NewTopK(3)
		for i, s := range []float64{0.1, 0.9, 0.3, 0.7, 0.2, 0.8} {
			top.Insert(Neighbour{ID: graph.NodeID(i), Similarity: s})
		}
		assert.Equal(t, []Neighbour{{1, 0.9}, {5, 0.8}, {3, 0.7}}, top.Items())
	})

	t.Run("ties_keep_first_seen", func(t *testing.T) {
		top := NewTopK(2)
		assert.True(t, top.Insert(Neighbour{ID: 7, Similarity: 0.5}))
		assert.True(t, top.Insert(Neighbour{ID: 3, Similarity: 0.5}))
		assert.False(t, top.Insert(Neighbour{ID: 1, Similarity: 0.5}))
		assert.Equal(t, []Neighbour{{7, 0.5}, {3, 0.5}}, top.Items())
	})

	t.Run("zero_capacity", func(t *testing.T) {
		top := NewTopK(0)
		assert.False(t, top.Insert(Neighbour{ID: 1, Similarity: 1}))
		assert.Equal(t, 0, top.Len())
	})
}

func TestNeighbours(t *testing.T) {
	store := neighbourGraph()
	ctx := context.Background()

	t.Run("ranked_by_jaccard", func(t *testing.T) {
		c := NewNeighbourClassifier(store, NeighbourOptions{})
		got, ok := c.Neighbours(ctx, 1, 20)
		require.True(t, ok)
		// {10,11,12} vs {10,11,20} = 2/4, vs {10,30} = 1/4, vs {40} = 0
		assert.Equal(t, []Neighbour{{2, 0.5}, {3, 0.25}}, got)
	})

	t.Run("candidate_sink_hidden", func(t *testing.T) {
		c := NewNeighbourClassifier(store, NeighbourOptions{})
		got, ok := c.Neighbours(ctx, 1, 12)
		require.True(t, ok)
		// {10,11} vs {10,11,20} = 2/3, vs {10,30} = 1/3
		require.Len(t, got, 2)
		assert.InDelta(t, 2.0/3, got[0].Similarity, 1e-12)
		assert.InDelta(t, 1.0/3, got[1].Similarity, 1e-12)
	})

	t.Run("k_limits_result", func(t *testing.T) {
		c := NewNeighbourClassifier(store, NeighbourOptions{K: 1})
		got, ok := c.Neighbours(ctx, 1, 20)
		require.True(t, ok)
		assert.Equal(t, []Neighbour{{2, 0.5}}, got)
	})

	t.Run("unknown_source_has_none", func(t *testing.T) {
		c := NewNeighbourClassifier(store, NeighbourOptions{})
		got, ok := c.Neighbours(ctx, 99, 10)
		assert.True(t, ok)
		assert.Empty(t, got)
	})
}

func TestNeighbourPredict(t *testing.T) {
	store := neighbourGraph()
	ctx := context.Background()
	c := NewNeighbourClassifier(store, NeighbourOptions{})

	tests := []struct {
		name string
		edge graph.Edge
		raw  float64
		want float64
	}{
		{"half_the_neighbours_follow", graph.Edge{Source: 1, Sink: 20}, 0.5, 0.99},
		{"other_half_follow", graph.Edge{Source: 1, Sink: 30}, 0.5, 0.99},
		{"no_neighbour_follows", graph.Edge{Source: 1, Sink: 40}, 0, 0.01},
		{"present_edge_does_not_vote_for_itself", graph.Edge{Source: 1, Sink: 12}, 0, 0.01},
		{"no_neighbours_falls_back", graph.Edge{Source: 99, Sink: 10}, 0.5, 0.99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, ok := c.Score(ctx, tt.edge)
			assert.True(t, ok)
			assert.InDelta(t, tt.raw, raw, 1e-12)
			assert.Equal(t, tt.want, c.Predict(ctx, tt.edge))
		})
	}
}

func TestNeighbourSnapThreshold(t *testing.T) {
	store := neighbourGraph()
	// With a threshold above 0.5 the neutral fallback snaps low.
	c := NewNeighbourClassifier(store, NeighbourOptions{SnapThreshold: 0.6, Low: 0.1, High: 0.9})
	assert.Equal(t, 0.1, c.Predict(context.Background(), graph.Edge{Source: 99, Sink: 10}))
	assert.Equal(t, 0.1, c.Predict(context.Background(), graph.Edge{Source: 1, Sink: 20}))
}

func TestNeighbourTimeBudget(t *testing.T) {
	edges := make([]graph.Edge, 0, 200)
	for i := 0; i < 100; i++ {
		edges = append(edges,
			graph.Edge{Source: graph.NodeID(i), Sink: 1000},
			graph.Edge{Source: graph.NodeID(i), Sink: graph.NodeID(2000 + i)})
	}
	store := graph.FromEdges(edges)
	e := graph.Edge{Source: 0, Sink: 2001}

	t.Run("overrun_returns_empty_and_fallback", func(t *testing.T) {
		clock := &steppingClock{now: time.Unix(0, 0), step: time.Second}
		c := NewNeighbourClassifier(store, NeighbourOptions{TimeLimit: 5 * time.Second, Now: clock.Now})

		got, ok := c.Neighbours(context.Background(), e.Source, e.Sink)
		assert.False(t, ok)
		assert.Empty(t, got)

		raw, ok := c.Score(context.Background(), e)
		assert.False(t, ok)
		assert.Equal(t, 0.5, raw)
		assert.Equal(t, 0.99, c.Predict(context.Background(), e))
	})

	t.Run("within_budget_completes", func(t *testing.T) {
		clock := &steppingClock{now: time.Unix(0, 0), step: time.Millisecond}
		c := NewNeighbourClassifier(store, NeighbourOptions{TimeLimit: time.Hour, Now: clock.Now})

		got, ok := c.Neighbours(context.Background(), e.Source, e.Sink)
		assert.True(t, ok)
		assert.Len(t, got, 10)
	})

	t.Run("cancelled_context_is_degraded", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		c := NewNeighbourClassifier(store, NeighbourOptions{})
		got, ok := c.Neighbours(ctx, e.Source, e.Sink)
		assert.False(t, ok)
		assert.Empty(t, got)
	})

	t.Run("predict_all_counts_degraded", func(t *testing.T) {
		clock := &steppingClock{now: time.Unix(0, 0), step: time.Second}
		c := NewNeighbourClassifier(store, NeighbourOptions{TimeLimit: 5 * time.Second, Now: clock.Now})

		preds, stats := c.PredictAll(context.Background(), []graph.Edge{e, {Source: 1, Sink: 2000}})
		assert.Equal(t, []float64{0.99, 0.99}, preds)
		assert.Equal(t, 2, stats.Predicted)
		assert.Equal(t, 2, stats.Degraded)
	})
}
