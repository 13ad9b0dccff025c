package dataset

import (
	"fmt"
	"math/rand/v2"

	"github.com/orneryd/edgepredict/pkg/graph"
)

// SourcePool selects which nodes fake-edge sources are drawn from.
type SourcePool string

const (
	// PoolSources draws sources from nodes with at least one outgoing edge.
	PoolSources SourcePool = "sources"
	// PoolAll draws sources from the whole node universe.
	PoolAll SourcePool = "all"
)

// DefaultMaxAttempts bounds rejection sampling when no budget is configured.
const DefaultMaxAttempts = 1_000_000

// SamplerOptions configures a Sampler.
type SamplerOptions struct {
	Pool SourcePool
	// MaxAttempts is the total number of draws allowed per Sample call.
	MaxAttempts int
	// Exclude lists edges that must never be emitted even though they are
	// absent from the store, typically held-out real edges.
	Exclude []graph.Edge
	Rand    *rand.Rand
}

// Sampler generates fake edges by rejection sampling against a Store.
//
// A draw is accepted when source != sink, sink is not already followed by
// source, the pair is not excluded and it has not been emitted before in
// the same call. Sparse graphs accept almost every draw; near-complete
// graphs exhaust MaxAttempts and fail with ErrSamplingExhausted.
type Sampler struct {
	store   *graph.Store
	sources []graph.NodeID
	sinks   []graph.NodeID
	exclude map[graph.Edge]struct{}
	max     int
	rng     *rand.Rand
}

// NewSampler creates a sampler over store.
func NewSampler(store *graph.Store, opts SamplerOptions) *Sampler {
	s := &Sampler{
		store:   store,
		sinks:   store.Nodes(),
		sources: store.Sources(),
		exclude: make(map[graph.Edge]struct{}, len(opts.Exclude)),
		max:     opts.MaxAttempts,
		rng:     opts.Rand,
	}
	if opts.Pool == PoolAll {
		s.sources = store.Nodes()
	}
	if s.max <= 0 {
		s.max = DefaultMaxAttempts
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(0, 0))
	}
	for _, e := range opts.Exclude {
		s.exclude[e] = struct{}{}
	}
	return s
}

// Sample returns n distinct fake edges in the order they were accepted.
func (s *Sampler) Sample(n int) ([]graph.Edge, error) {
	if n <= 0 {
		return nil, nil
	}
	out := make([]graph.Edge, 0, n)
	if len(s.sources) == 0 || len(s.sinks) < 2 {
		return out, fmt.Errorf("%w: node pool too small (%d sources, %d nodes)",
			ErrSamplingExhausted, len(s.sources), len(s.sinks))
	}

	seen := make(map[graph.Edge]struct{}, n)
	attempts := 0
	for len(out) < n {
		if attempts >= s.max {
			return out, fmt.Errorf("%w: accepted %d of %d after %d attempts",
				ErrSamplingExhausted, len(out), n, attempts)
		}
		attempts++

		e := graph.Edge{
			Source: s.sources[s.rng.IntN(len(s.sources))],
			Sink:   s.sinks[s.rng.IntN(len(s.sinks))],
		}
		if !s.accept(e) {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out, nil
}

func (s *Sampler) accept(e graph.Edge) bool {
	if e.Source == e.Sink {
		return false
	}
	if s.store.HasEdge(e.Source, e.Sink) {
		return false
	}
	_, excluded := s.exclude[e]
	return !excluded
}
