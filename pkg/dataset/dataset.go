package dataset

import (
	"math/rand/v2"

	"github.com/orneryd/edgepredict/pkg/graph"
)

// Options configures Build.
type Options struct {
	TrainingLimit int
	DevLimit      int
	Pool          SourcePool
	MaxAttempts   int
	Rand          *rand.Rand
}

// Dataset is the complete labelled split for one pipeline run.
type Dataset struct {
	Store *graph.Store
	// Train is TrainingLimit real edges followed by TrainingLimit fake edges.
	Train LabeledEdgeSet
	// Dev is DevLimit real edges followed by DevLimit fake edges.
	Dev LabeledEdgeSet
}

// Build splits the real edges, samples TrainingLimit+DevLimit fake edges in
// one pass and hands the first TrainingLimit fakes to training and the last
// DevLimit to validation. Fakes never coincide with any input edge.
func Build(edges []graph.Edge, opts Options) (*Dataset, error) {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(0, 0))
	}

	split, err := SplitEdges(edges, SplitOptions{
		TrainingLimit: opts.TrainingLimit,
		DevLimit:      opts.DevLimit,
		Rand:          rng,
	})
	if err != nil {
		return nil, err
	}

	sampler := NewSampler(split.Store, SamplerOptions{
		Pool:        opts.Pool,
		MaxAttempts: opts.MaxAttempts,
		Exclude:     split.Known,
		Rand:        rng,
	})
	fakes, err := sampler.Sample(opts.TrainingLimit + opts.DevLimit)
	if err != nil {
		return nil, err
	}

	train := labelled(split.TrainReal, Real)
	train = append(train, labelled(fakes[:opts.TrainingLimit], Fake)...)

	dev := labelled(split.DevReal, Real)
	dev = append(dev, labelled(fakes[len(fakes)-opts.DevLimit:], Fake)...)

	return &Dataset{Store: split.Store, Train: train, Dev: dev}, nil
}
