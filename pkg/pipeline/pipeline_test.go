package pipeline

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/edgepredict/pkg/blobstore"
	"github.com/orneryd/edgepredict/pkg/config"
	"github.com/orneryd/edgepredict/pkg/dataio"
	"github.com/orneryd/edgepredict/pkg/dataset"
	"github.com/orneryd/edgepredict/pkg/graph"
	"github.com/orneryd/edgepredict/pkg/linkpredict"
	"github.com/orneryd/edgepredict/pkg/storage"
)

type sliceSource []graph.Edge

func (s sliceSource) Name() string { return "memory" }

func (s sliceSource) Edges(context.Context) ([]graph.Edge, error) { return s, nil }

type failingSource struct{}

func (failingSource) Name() string { return "broken" }

func (failingSource) Edges(context.Context) ([]graph.Edge, error) {
	return nil, errors.New("disk on fire")
}

// communityEdges builds two dense groups of 20 nodes joined by a few
// bridges, so neighbour votes carry signal.
func communityEdges() []graph.Edge {
	var edges []graph.Edge
	for _, base := range []graph.NodeID{0, 100} {
		for i := graph.NodeID(0); i < 20; i++ {
			for d := graph.NodeID(1); d <= 6; d++ {
				edges = append(edges, graph.Edge{Source: base + i, Sink: base + (i+d)%20})
			}
		}
	}
	edges = append(edges, graph.Edge{Source: 0, Sink: 100}, graph.Edge{Source: 105, Sink: 5})
	return edges
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Dataset.TrainingLimit = 150
	cfg.Dataset.DevLimit = 40
	cfg.Dataset.Seed = 11
	cfg.Features.Workers = 2
	cfg.Neighbours.TimeLimit = 0
	cfg.Eval.Resolution = 100
	return cfg
}

func newTestPipeline(t *testing.T, cfg *config.Config, opts Options) *Pipeline {
	t.Helper()
	p, err := New(cfg, opts)
	require.NoError(t, err)
	return p
}

func TestNew(t *testing.T) {
	t.Run("run_ids_differ", func(t *testing.T) {
		a := newTestPipeline(t, testConfig(), Options{})
		b := newTestPipeline(t, testConfig(), Options{})
		assert.NotEqual(t, a.RunID(), b.RunID())
		assert.Len(t, a.RunID(), 36)
	})

	t.Run("invalid_config", func(t *testing.T) {
		cfg := testConfig()
		cfg.Neighbours.K = 0
		_, err := New(cfg, Options{})
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("unknown_set", func(t *testing.T) {
		cfg := testConfig()
		cfg.Features.Set = "fancy"
		_, err := New(cfg, Options{})
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("count_mismatch", func(t *testing.T) {
		cfg := testConfig()
		cfg.Features.Count = 8
		_, err := New(cfg, Options{})
		assert.ErrorIs(t, err, ErrFeatureCount)

		cfg.Features.Count = 28
		_, err = New(cfg, Options{})
		assert.NoError(t, err)
	})
}

func TestPrepare(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, testConfig(), Options{})

	prep, err := p.Prepare(ctx, sliceSource(communityEdges()))
	require.NoError(t, err)

	ds := prep.Dataset
	assert.Equal(t, 150, ds.Train.Count(dataset.Real))
	assert.Equal(t, 150, ds.Train.Count(dataset.Fake))
	assert.Equal(t, 40, ds.Dev.Count(dataset.Real))
	assert.Equal(t, 40, ds.Dev.Count(dataset.Fake))
	assert.Equal(t, ds.Store.Fingerprint(), prep.Fingerprint)
	assert.Equal(t, len(communityEdges()), prep.RawEdges)

	n, err := testutil.GatherAndCount(p.Metrics().Registry(), "edgepredict_edges_loaded_total", "edgepredict_fake_edges_sampled_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	t.Run("same_seed_same_split", func(t *testing.T) {
		again, err := newTestPipeline(t, testConfig(), Options{}).Prepare(ctx, sliceSource(communityEdges()))
		require.NoError(t, err)
		assert.Equal(t, ds.Train, again.Dataset.Train)
		assert.Equal(t, ds.Dev, again.Dataset.Dev)
	})

	t.Run("source_error", func(t *testing.T) {
		_, err := p.Prepare(ctx, failingSource{})
		assert.ErrorContains(t, err, "disk on fire")
	})

	t.Run("insufficient_data", func(t *testing.T) {
		_, err := p.Prepare(ctx, sliceSource(communityEdges()[:10]))
		assert.ErrorIs(t, err, dataset.ErrInsufficientData)
	})
}

func TestWriteFeatureFiles(t *testing.T) {
	ctx := context.Background()
	out := blobstore.NewLocalStore(t.TempDir())
	p := newTestPipeline(t, testConfig(), Options{})

	prep, err := p.Prepare(ctx, sliceSource(communityEdges()))
	require.NoError(t, err)

	queries := []graph.Edge{{Source: 1, Sink: 2}, {Source: 3, Sink: 104}}
	keys, err := p.WriteFeatureFiles(ctx, out, prep, queries)
	require.NoError(t, err)
	assert.Equal(t, []string{TrainFeaturesKey, DevFeaturesKey, TestFeaturesKey}, keys)

	data, err := out.Get(ctx, TrainFeaturesKey)
	require.NoError(t, err)
	x, y, err := dataio.ReadFeatures(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, x, 300)
	assert.Len(t, x[0], 28)
	assert.Equal(t, prep.Dataset.Train.Labels(), y)

	data, err = out.Get(ctx, TestFeaturesKey)
	require.NoError(t, err)
	x, y, err = dataio.ReadFeatures(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, x, 2)
	assert.Nil(t, y)
}

func TestFeaturesUseCache(t *testing.T) {
	ctx := context.Background()
	cache, err := storage.OpenFeatureStoreInMemory()
	require.NoError(t, err)
	defer cache.Close()

	p := newTestPipeline(t, testConfig(), Options{Cache: cache})
	prep, err := p.Prepare(ctx, sliceSource(communityEdges()))
	require.NoError(t, err)

	edges := prep.Dataset.Dev.Edges()
	x, err := p.Features(ctx, prep, edges)
	require.NoError(t, err)

	cached, err := cache.Edges(storage.Namespace(prep.Fingerprint, string(linkpredict.FeatureSetFull)))
	require.NoError(t, err)
	assert.Len(t, cached, len(edges))

	again, err := p.Features(ctx, prep, edges)
	require.NoError(t, err)
	assert.Equal(t, x, again)
}

func TestNeighboursAndEvaluate(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, testConfig(), Options{})

	prep, err := p.Prepare(ctx, sliceSource(communityEdges()))
	require.NoError(t, err)

	scores, err := p.Neighbours(ctx, prep, prep.Dataset.Dev.Edges())
	require.NoError(t, err)
	require.Len(t, scores, len(prep.Dataset.Dev))
	for _, s := range scores {
		assert.Contains(t, []float64{0.01, 0.99}, s)
	}

	result, err := p.Evaluate("dev", prep.Dataset.Dev.Labels(), scores)
	require.NoError(t, err)
	assert.Equal(t, "dev", result.Name)
	assert.Greater(t, result.AUC, 0.5)
	assert.Len(t, result.ROC, 100)

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := p.Neighbours(cctx, prep, prep.Dataset.Dev.Edges())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNeighboursTimeBudget(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Neighbours.TimeLimit = time.Second

	// Every clock read advances a minute, so each scan overruns at once.
	clock := time.Unix(0, 0)
	now := func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	p := newTestPipeline(t, cfg, Options{Now: now})

	prep, err := p.Prepare(ctx, sliceSource(communityEdges()))
	require.NoError(t, err)

	scores, err := p.Neighbours(ctx, prep, prep.Dataset.Dev.Edges()[:5])
	require.NoError(t, err)
	for _, s := range scores {
		assert.Equal(t, 0.99, s, "0.5 fallback snaps high")
	}
}

func TestClassifyAndSave(t *testing.T) {
	ctx := context.Background()
	out := blobstore.NewLocalStore(t.TempDir())
	p := newTestPipeline(t, testConfig(), Options{})

	trainX := [][]float64{{0, 0}, {1, 1}, {3, 3}, {4, 4}}
	trainY := []float64{0, 0, 1, 1}
	preds, err := p.Classify(ctx, linkpredict.NewSplitClassifier(), trainX, trainY, [][]float64{{0, 1}, {5, 5}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{linkpredict.MoveIn(0.01), linkpredict.MoveIn(0.99)}, preds, 1e-12)

	key, err := p.SavePredictions(ctx, out, preds)
	require.NoError(t, err)
	assert.Equal(t, "predictions-0.csv", key)

	key, err = p.SavePredictions(ctx, out, preds)
	require.NoError(t, err)
	assert.Equal(t, "predictions-1.csv", key)

	t.Run("fit_error", func(t *testing.T) {
		_, err := p.Classify(ctx, linkpredict.NewSplitClassifier(), nil, nil, trainX)
		assert.Error(t, err)
	})
}

func TestPushMetricsDisabled(t *testing.T) {
	p := newTestPipeline(t, testConfig(), Options{})
	assert.NoError(t, p.PushMetrics(context.Background()))
}
