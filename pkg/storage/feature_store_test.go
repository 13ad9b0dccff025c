package storage

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/edgepredict/pkg/graph"
	"github.com/orneryd/edgepredict/pkg/linkpredict"
)

func newTestStore(t *testing.T) *FeatureStore {
	t.Helper()
	store, err := OpenFeatureStoreInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestFeatureStore(t *testing.T) {
	store := newTestStore(t)
	e := graph.Edge{Source: 1, Sink: 2}
	vec := []float64{0, 1.5, math.Inf(1), -3.25, 1e-300}

	t.Run("miss", func(t *testing.T) {
		_, ok, err := store.Get("ns", e)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("put_get", func(t *testing.T) {
		require.NoError(t, store.Put("ns", e, vec))
		got, ok, err := store.Get("ns", e)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, vec, got)
	})

	t.Run("namespaces_isolated", func(t *testing.T) {
		_, ok, err := store.Get("other", e)
		require.NoError(t, err)
		assert.False(t, ok)

		// A namespace that is a string prefix of another must not see its keys.
		require.NoError(t, store.Put("n", graph.Edge{Source: 9, Sink: 9}, []float64{1}))
		edges, err := store.Edges("n")
		require.NoError(t, err)
		assert.Equal(t, []graph.Edge{{Source: 9, Sink: 9}}, edges)
	})

	t.Run("reversed_edge_is_distinct", func(t *testing.T) {
		_, ok, err := store.Get("ns", e.Reverse())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("edges_in_key_order", func(t *testing.T) {
		require.NoError(t, store.Put("order", graph.Edge{Source: 5, Sink: 1}, nil))
		require.NoError(t, store.Put("order", graph.Edge{Source: 2, Sink: 7}, nil))
		edges, err := store.Edges("order")
		require.NoError(t, err)
		assert.Equal(t, []graph.Edge{{Source: 2, Sink: 7}, {Source: 5, Sink: 1}}, edges)
	})

	t.Run("drop", func(t *testing.T) {
		require.NoError(t, store.Drop("order"))
		edges, err := store.Edges("order")
		require.NoError(t, err)
		assert.Empty(t, edges)

		_, ok, err := store.Get("ns", e)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("empty_namespace", func(t *testing.T) {
		assert.ErrorIs(t, store.Put("", e, vec), ErrEmptyNamespace)
		assert.ErrorIs(t, store.Drop(""), ErrEmptyNamespace)
	})
}

func TestFeatureStoreClosed(t *testing.T) {
	store, err := OpenFeatureStoreInMemory()
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, _, err = store.Get("ns", graph.Edge{})
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.Put("ns", graph.Edge{}, nil), ErrStoreClosed)
	_, err = store.Edges("ns")
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestDecodeVector(t *testing.T) {
	_, err := decodeVector([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCorruptVector)

	vec, err := decodeVector(nil)
	require.NoError(t, err)
	assert.Empty(t, vec)
}

func TestFeatureStorePersists(t *testing.T) {
	dir := t.TempDir()
	e := graph.Edge{Source: 3, Sink: 4}

	store, err := OpenFeatureStore(FeatureStoreOptions{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, store.Put("ns", e, []float64{0.25}))
	require.NoError(t, store.Close())

	store, err = OpenFeatureStore(FeatureStoreOptions{Dir: dir})
	require.NoError(t, err)
	defer store.Close()

	got, ok, err := store.Get("ns", e)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{0.25}, got)
}

func TestScopeAsExtractorCache(t *testing.T) {
	store := newTestStore(t)
	g := graph.FromEdges([]graph.Edge{{Source: 1, Sink: 2}, {Source: 1, Sink: 3}, {Source: 2, Sink: 3}, {Source: 3, Sink: 1}, {Source: 4, Sink: 3}})
	edges := []graph.Edge{{Source: 1, Sink: 2}, {Source: 4, Sink: 1}, {Source: 2, Sink: 1}}

	scope := store.Scope(Namespace(g.Fingerprint(), string(linkpredict.FeatureSetFull)))
	var _ linkpredict.VectorCache = scope

	cached, err := linkpredict.NewExtractor(g, linkpredict.ExtractorOptions{Cache: scope, Workers: 2})
	require.NoError(t, err)
	first, err := cached.ExtractAll(context.Background(), edges)
	require.NoError(t, err)

	stored, err := store.Edges(scope.Namespace())
	require.NoError(t, err)
	assert.Len(t, stored, len(edges))

	second, err := cached.ExtractAll(context.Background(), edges)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	plain, err := linkpredict.NewExtractor(g, linkpredict.ExtractorOptions{})
	require.NoError(t, err)
	want, err := plain.ExtractAll(context.Background(), edges)
	require.NoError(t, err)
	assert.Equal(t, want, first)
}
