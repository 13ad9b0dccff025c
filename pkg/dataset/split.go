// Package dataset turns a raw edge list into leakage-free labelled training
// and validation sets.
//
// Real edges are shuffled with an explicit random source, the tail is held
// out for validation and the head becomes the training graph. Fake edges are
// drawn by rejection sampling from the training graph's node universe so both
// classes are balanced in each split.
package dataset

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/orneryd/edgepredict/pkg/graph"
)

// Errors returned by this package.
var (
	ErrInsufficientData  = errors.New("insufficient edges for requested split")
	ErrSamplingExhausted = errors.New("negative sampling exhausted attempt budget")
	ErrInvalidLimits     = errors.New("split limits must not be negative")
)

// Label is the class of an edge.
type Label int

const (
	Fake Label = 0
	Real Label = 1
)

func (l Label) String() string {
	if l == Real {
		return "REAL"
	}
	return "FAKE"
}

// LabeledEdge pairs an edge with its class.
type LabeledEdge struct {
	graph.Edge
	Label Label
}

// LabeledEdgeSet is an ordered sequence of labelled edges.
type LabeledEdgeSet []LabeledEdge

// Edges returns the edges without labels.
func (s LabeledEdgeSet) Edges() []graph.Edge {
	out := make([]graph.Edge, len(s))
	for i, le := range s {
		out[i] = le.Edge
	}
	return out
}

// Labels returns the labels as 0/1 floats, the form the evaluator consumes.
func (s LabeledEdgeSet) Labels() []float64 {
	out := make([]float64, len(s))
	for i, le := range s {
		out[i] = float64(le.Label)
	}
	return out
}

// Count returns how many edges carry label l.
func (s LabeledEdgeSet) Count(l Label) int {
	n := 0
	for _, le := range s {
		if le.Label == l {
			n++
		}
	}
	return n
}

func labelled(edges []graph.Edge, l Label) LabeledEdgeSet {
	out := make(LabeledEdgeSet, len(edges))
	for i, e := range edges {
		out[i] = LabeledEdge{Edge: e, Label: l}
	}
	return out
}

// SplitOptions configures SplitEdges.
type SplitOptions struct {
	TrainingLimit int
	DevLimit      int
	// Rand drives the shuffle. A nil Rand uses a fixed zero seed.
	Rand *rand.Rand
}

// Split is the real-edge partition plus the training graph.
type Split struct {
	// Store is built from TrainReal only.
	Store     *graph.Store
	TrainReal []graph.Edge
	DevReal   []graph.Edge
	// Known holds every distinct input edge, including those in neither split.
	Known []graph.Edge
}

// Dedupe removes repeated edges, keeping the first occurrence.
func Dedupe(edges []graph.Edge) []graph.Edge {
	seen := make(map[graph.Edge]struct{}, len(edges))
	out := make([]graph.Edge, 0, len(edges))
	for _, e := range edges {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

// SplitEdges shuffles edges, reserves the last DevLimit as validation-real
// edges and takes the first TrainingLimit as training-real edges. Only the
// training edges are inserted into the returned Store.
//
// The input slice is not modified.
func SplitEdges(edges []graph.Edge, opts SplitOptions) (*Split, error) {
	if opts.TrainingLimit < 0 || opts.DevLimit < 0 {
		return nil, ErrInvalidLimits
	}
	distinct := Dedupe(edges)
	need := opts.TrainingLimit + opts.DevLimit
	if len(distinct) < need {
		return nil, fmt.Errorf("%w: have %d distinct edges, need %d",
			ErrInsufficientData, len(distinct), need)
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(0, 0))
	}
	shuffled := make([]graph.Edge, len(distinct))
	copy(shuffled, distinct)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	dev := shuffled[len(shuffled)-opts.DevLimit:]
	train := shuffled[:opts.TrainingLimit]

	return &Split{
		Store:     graph.FromEdges(train),
		TrainReal: train,
		DevReal:   dev,
		Known:     distinct,
	}, nil
}
