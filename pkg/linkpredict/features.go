package linkpredict

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/orneryd/edgepredict/pkg/graph"
	"github.com/orneryd/edgepredict/pkg/pool"
)

// FeatureSet selects the layout of extracted vectors.
type FeatureSet string

const (
	// FeatureSetFull is mean and max of all seven formulas for the source
	// side then the sink side: 28 features.
	FeatureSetFull FeatureSet = "full"
	// FeatureSetJaccard keeps only the Jaccard formula: source mean, source
	// max, sink mean, sink max.
	FeatureSetJaccard FeatureSet = "jaccard"
	// FeatureSetExtended is the full set followed by the normalized
	// PairScores.
	FeatureSetExtended FeatureSet = "extended"
)

// SideWidth is the number of features per side in the full set.
const SideWidth = 2 * FormulaCount

// Width returns the vector length for the set, or 0 if unknown.
func (fs FeatureSet) Width() int {
	switch fs {
	case FeatureSetFull:
		return 2 * SideWidth
	case FeatureSetJaccard:
		return 4
	case FeatureSetExtended:
		return 2*SideWidth + PairScoreCount
	}
	return 0
}

// Valid reports whether fs names a known feature set.
func (fs FeatureSet) Valid() bool {
	return fs.Width() > 0
}

// VectorCache stores extracted vectors between runs. Implementations must
// be safe for concurrent use.
type VectorCache interface {
	Get(e graph.Edge) ([]float64, bool, error)
	Put(e graph.Edge, vec []float64) error
}

// ExtractorOptions configures an Extractor.
type ExtractorOptions struct {
	Set FeatureSet
	// Workers bounds ExtractAll parallelism. Values below 2 run serially.
	Workers int
	Cache   VectorCache
	Logger  *slog.Logger
}

// Extractor computes feature vectors against a read-only Store.
type Extractor struct {
	store   *graph.Store
	set     FeatureSet
	workers int
	cache   VectorCache
	logger  *slog.Logger
}

// NewExtractor validates opts and returns an Extractor. An empty Set means
// FeatureSetFull.
func NewExtractor(store *graph.Store, opts ExtractorOptions) (*Extractor, error) {
	if opts.Set == "" {
		opts.Set = FeatureSetFull
	}
	if !opts.Set.Valid() {
		return nil, fmt.Errorf("unknown feature set %q", opts.Set)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{
		store:   store,
		set:     opts.Set,
		workers: opts.Workers,
		cache:   opts.Cache,
		logger:  opts.Logger,
	}, nil
}

// Width is the length of every vector this extractor produces.
func (x *Extractor) Width() int {
	return x.set.Width()
}

// Set returns the configured feature set.
func (x *Extractor) Set() FeatureSet {
	return x.set
}

// Extract computes the vector for e as if e were absent from the store.
//
// Source side: each follower F of sink (other than source) is compared by
// its following set against source's following set minus sink.
// Sink side: each node N that source follows (other than sink) is compared by
// its follower set against sink's follower set minus source.
// A side with nothing to compare yields zeros.
func (x *Extractor) Extract(e graph.Edge) []float64 {
	src := x.sourceSide(e)
	snk := x.sinkSide(e)

	if x.set == FeatureSetJaccard {
		const j = 2 * 2 // mean/max offset of s3
		return []float64{src[j], src[j+1], snk[j], snk[j+1]}
	}

	vec := make([]float64, 0, x.Width())
	vec = append(vec, src[:]...)
	vec = append(vec, snk[:]...)
	if x.set == FeatureSetExtended {
		pair := ScorePair(x.store, e).Normalized()
		vec = append(vec, pair[:]...)
	}
	return vec
}

func (x *Extractor) sourceSide(e graph.Edge) [SideWidth]float64 {
	target := without(x.store.FollowingSet(e.Source), e.Sink)
	followers := x.store.Followers(e.Sink)

	return aggregate(func(visit func(setView)) {
		for _, f := range followers {
			if f == e.Source {
				continue
			}
			visit(setView{set: x.store.FollowingSet(f)})
		}
	}, target)
}

func (x *Extractor) sinkSide(e graph.Edge) [SideWidth]float64 {
	target := without(x.store.FollowerSet(e.Sink), e.Source)
	following := x.store.Following(e.Source)

	return aggregate(func(visit func(setView)) {
		for _, n := range following {
			if n == e.Sink {
				continue
			}
			visit(setView{set: x.store.FollowerSet(n)})
		}
	}, target)
}

// aggregate scores every neighbourhood produced by walk against target and
// returns [mean(s1), max(s1), ..., mean(s7), max(s7)].
func aggregate(walk func(func(setView)), target setView) [SideWidth]float64 {
	var out [SideWidth]float64

	var columns [FormulaCount][]float64
	for f := range columns {
		columns[f] = pool.GetScoreSlice()
	}
	defer func() {
		for f := range columns {
			pool.PutScoreSlice(columns[f])
		}
	}()

	walk(func(v setView) {
		s := similarity(v, target)
		for f := range s {
			columns[f] = append(columns[f], s[f])
		}
	})

	if len(columns[0]) == 0 {
		return out
	}
	for f := range columns {
		out[2*f] = stat.Mean(columns[f], nil)
		out[2*f+1] = floats.Max(columns[f])
	}
	return out
}

// extractChunk is the number of edges handed to one worker at a time.
const extractChunk = 256

// ExtractAll computes vectors for edges, in order. Cached vectors of the
// right width are reused and fresh ones are written back to the cache.
func (x *Extractor) ExtractAll(ctx context.Context, edges []graph.Edge) ([][]float64, error) {
	start := time.Now()
	out := make([][]float64, len(edges))

	g, gctx := errgroup.WithContext(ctx)
	if x.workers > 1 {
		g.SetLimit(x.workers)
	} else {
		g.SetLimit(1)
	}

	for lo := 0; lo < len(edges); lo += extractChunk {
		hi := min(lo+extractChunk, len(edges))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				vec, err := x.extractCached(edges[i])
				if err != nil {
					return fmt.Errorf("edge %s: %w", edges[i], err)
				}
				out[i] = vec
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	x.logger.Debug("features extracted",
		slog.Int("edges", len(edges)),
		slog.String("set", string(x.set)),
		slog.Duration("elapsed", time.Since(start)))
	return out, nil
}

func (x *Extractor) extractCached(e graph.Edge) ([]float64, error) {
	if x.cache != nil {
		vec, ok, err := x.cache.Get(e)
		if err != nil {
			return nil, err
		}
		if ok && len(vec) == x.Width() {
			return vec, nil
		}
	}
	vec := x.Extract(e)
	if x.cache != nil {
		if err := x.cache.Put(e, vec); err != nil {
			return nil, err
		}
	}
	return vec, nil
}
