package linkpredict

import (
	"context"
	"log/slog"
	"time"

	"github.com/orneryd/edgepredict/pkg/graph"
)

// Neighbour is a candidate neighbour and its Jaccard similarity to the
// query node's following set.
type Neighbour struct {
	ID         graph.NodeID
	Similarity float64
}

// TopK is a bounded list kept in descending similarity order. Equal
// similarities keep first-seen order.
type TopK struct {
	k     int
	items []Neighbour
}

// NewTopK returns an empty list holding at most k items.
func NewTopK(k int) *TopK {
	if k < 0 {
		k = 0
	}
	return &TopK{k: k, items: make([]Neighbour, 0, k+1)}
}

// Insert places n after every item with similarity >= n.Similarity and
// evicts the smallest item if the list grows past k. It reports whether n
// was kept.
func (t *TopK) Insert(n Neighbour) bool {
	if t.k == 0 {
		return false
	}
	if len(t.items) == t.k && n.Similarity <= t.items[len(t.items)-1].Similarity {
		return false
	}

	pos := len(t.items)
	for pos > 0 && t.items[pos-1].Similarity < n.Similarity {
		pos--
	}
	t.items = append(t.items, Neighbour{})
	copy(t.items[pos+1:], t.items[pos:])
	t.items[pos] = n

	if len(t.items) > t.k {
		t.items = t.items[:t.k]
	}
	return true
}

// Items returns the current list, best first.
func (t *TopK) Items() []Neighbour {
	return t.items
}

// Len returns the number of items held.
func (t *TopK) Len() int {
	return len(t.items)
}

// NeighbourOptions configures a NeighbourClassifier.
type NeighbourOptions struct {
	// K is the neighbourhood size. Default 10.
	K int
	// TimeLimit bounds one neighbour scan. Zero disables the budget.
	TimeLimit time.Duration
	// Scores at or below SnapThreshold become Low, others High.
	// Defaults 0.2, 0.01, 0.99.
	SnapThreshold float64
	Low           float64
	High          float64
	// Now is the clock used for the budget. Defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// DefaultNeighbourOptions returns the stock configuration.
func DefaultNeighbourOptions() NeighbourOptions {
	return NeighbourOptions{
		K:             10,
		TimeLimit:     200 * time.Second,
		SnapThreshold: 0.2,
		Low:           0.01,
		High:          0.99,
	}
}

// NeighbourClassifier predicts an edge by asking the source's most similar
// nodes whether they follow the sink. It needs no training.
//
// Algorithm:
//  1. Take source's following set, minus the candidate sink.
//  2. Scan every other node with outgoing edges, in ascending ID order, and
//     keep the K with the highest positive Jaccard similarity.
//  3. Score = fraction of those neighbours that follow sink, or 0.5 if
//     there are none.
//  4. Snap the score to Low or High.
//
// The scan checks the time budget and the context on every node. An overrun
// discards the partial list and yields the 0.5 fallback; it is never an error.
type NeighbourClassifier struct {
	store *graph.Store
	opts  NeighbourOptions
}

// NewNeighbourClassifier fills zero options from DefaultNeighbourOptions,
// except TimeLimit where zero means unbounded.
func NewNeighbourClassifier(store *graph.Store, opts NeighbourOptions) *NeighbourClassifier {
	def := DefaultNeighbourOptions()
	if opts.K <= 0 {
		opts.K = def.K
	}
	if opts.SnapThreshold == 0 {
		opts.SnapThreshold = def.SnapThreshold
	}
	if opts.Low == 0 {
		opts.Low = def.Low
	}
	if opts.High == 0 {
		opts.High = def.High
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &NeighbourClassifier{store: store, opts: opts}
}

// Neighbours returns up to K nodes most similar to source, best first. The
// node exclude is hidden from source's following set so a candidate edge
// does not vote for itself. ok is false when the scan was aborted by the
// time budget or ctx; the list is then empty.
func (c *NeighbourClassifier) Neighbours(ctx context.Context, source, exclude graph.NodeID) (neighbours []Neighbour, ok bool) {
	sinks := without(c.store.FollowingSet(source), exclude)
	top := NewTopK(c.opts.K)

	start := c.opts.Now()
	for _, key := range c.store.Sources() {
		if key == source {
			continue
		}

		sim := similarity(sinks, setView{set: c.store.FollowingSet(key)})[2]
		if sim > 0 {
			top.Insert(Neighbour{ID: key, Similarity: sim})
		}

		if ctx.Err() != nil {
			return nil, false
		}
		if c.opts.TimeLimit > 0 && c.opts.Now().Sub(start) > c.opts.TimeLimit {
			c.opts.Logger.Debug("neighbour scan exceeded time budget",
				slog.Int64("source", int64(source)),
				slog.Duration("limit", c.opts.TimeLimit))
			return nil, false
		}
	}
	return top.Items(), true
}

// Score is the raw vote fraction for e before snapping, and whether the
// scan completed.
func (c *NeighbourClassifier) Score(ctx context.Context, e graph.Edge) (float64, bool) {
	neighbours, ok := c.Neighbours(ctx, e.Source, e.Sink)
	if len(neighbours) == 0 {
		return 0.5, ok
	}
	votes := 0
	for _, n := range neighbours {
		if c.store.HasEdge(n.ID, e.Sink) {
			votes++
		}
	}
	return float64(votes) / float64(len(neighbours)), ok
}

// Predict returns the snapped prediction for e.
func (c *NeighbourClassifier) Predict(ctx context.Context, e graph.Edge) float64 {
	score, _ := c.Score(ctx, e)
	return c.snap(score)
}

func (c *NeighbourClassifier) snap(score float64) float64 {
	if score <= c.opts.SnapThreshold {
		return c.opts.Low
	}
	return c.opts.High
}

// NeighbourStats summarizes a PredictAll run.
type NeighbourStats struct {
	Predicted int
	// Degraded counts edges whose scan hit the time budget or cancellation.
	Degraded int
	Elapsed  time.Duration
}

// PredictAll predicts every edge in order.
func (c *NeighbourClassifier) PredictAll(ctx context.Context, edges []graph.Edge) ([]float64, NeighbourStats) {
	start := time.Now()
	out := make([]float64, len(edges))
	var stats NeighbourStats
	for i, e := range edges {
		score, ok := c.Score(ctx, e)
		if !ok {
			stats.Degraded++
		}
		out[i] = c.snap(score)
		stats.Predicted++
	}
	stats.Elapsed = time.Since(start)
	c.opts.Logger.Debug("neighbour predictions complete",
		slog.Int("edges", stats.Predicted),
		slog.Int("degraded", stats.Degraded),
		slog.Duration("elapsed", stats.Elapsed))
	return out, stats
}
