// Package linkpredict computes topological evidence for directed edges.
//
// Three families of scoring live here:
//
//   - Pair features (features.go): a fixed-width vector per candidate edge,
//     built from seven set-similarity formulas over the endpoints'
//     neighbourhoods, for consumption by any classifier.
//   - Pair heuristics (this file): single scores for one (source, sink) pair
//     such as reciprocity, transitivity, Adamic-Adar and resource
//     allocation, used as extra features and for ranking suggestions.
//   - Nearest-neighbour voting (neighbours.go): a model-free predictor.
//
// Every computation treats the candidate edge as absent from the store, so
// a true edge never scores itself. The store is never mutated.
//
// Usage Example:
//
//	store := graph.FromEdges(trainingEdges)
//	x, _ := linkpredict.NewExtractor(store, linkpredict.ExtractorOptions{})
//	vec := x.Extract(graph.Edge{Source: 17, Sink: 42}) // 28 features
//
//	// Who should 17 follow next?
//	for _, p := range linkpredict.Suggest(store, 17, linkpredict.AlgorithmAdamicAdar, 5) {
//		fmt.Printf("suggest %d (score %.3f)\n", p.TargetID, p.Score)
//	}
//
// ELI12 (Explain Like I'm 12):
//
// Imagine guessing whether Sam follows Alex online:
//
// **Transitivity**: "Sam follows 10 people and 4 of them follow Alex.
// Sam probably follows Alex too."
//
// **Adamic-Adar**: "One of those 4 only follows 3 accounts (picky!).
// Their follow of Alex says more than a bot that follows everyone."
//
// **Preferential Attachment**: "Sam follows lots of people and Alex has lots
// of followers. Busy accounts meet busy accounts."
package linkpredict

import (
	"math"
	"sort"

	"github.com/orneryd/edgepredict/pkg/graph"
)

// Algorithm names accepted by Suggest and used for score normalization.
const (
	AlgorithmCommonNeighbors        = "common_neighbors"
	AlgorithmJaccard                = "jaccard"
	AlgorithmAdamicAdar             = "adamic_adar"
	AlgorithmResourceAllocation     = "resource_allocation"
	AlgorithmPreferentialAttachment = "preferential_attachment"
)

// Prediction is a suggested edge from a fixed source.
//
// Score is normalized to [0, 1] per algorithm; raw scores are not comparable
// across algorithms.
type Prediction struct {
	TargetID  graph.NodeID `json:"target_id"`
	Score     float64      `json:"score"`
	Algorithm string       `json:"algorithm"`
}

// PairScores are single-number heuristics for one candidate edge.
type PairScores struct {
	// Reciprocal is 1 when sink already follows source.
	Reciprocal float64
	// Transitivity is the fraction of source's following that follow sink.
	// 0 when source follows nobody else.
	Transitivity float64
	// Intermediaries counts z with source->z->sink.
	Intermediaries int
	// AdamicAdar sums 1/log(deg(z)) over intermediaries.
	AdamicAdar float64
	// ResourceAllocation sums 1/deg(z) over intermediaries.
	ResourceAllocation float64
	// PreferentialAttachment is outdeg(source) * indeg(sink).
	PreferentialAttachment float64
}

// PairScoreCount is the width of PairScores.Normalized.
const PairScoreCount = 5

// Normalized maps the scores to [0, 1] in a fixed order: reciprocal,
// transitivity, Adamic-Adar, resource allocation, preferential attachment.
func (p PairScores) Normalized() [PairScoreCount]float64 {
	return [PairScoreCount]float64{
		p.Reciprocal,
		p.Transitivity,
		normalizeAlgorithmScore(p.AdamicAdar, AlgorithmAdamicAdar),
		normalizeAlgorithmScore(p.ResourceAllocation, AlgorithmResourceAllocation),
		normalizeAlgorithmScore(p.PreferentialAttachment, AlgorithmPreferentialAttachment),
	}
}

// degree is total (in + out) degree.
func degree(store *graph.Store, n graph.NodeID) int {
	return store.InDegree(n) + store.OutDegree(n)
}

// ScorePair computes PairScores for e as if e were absent from store.
//
// Degrees of intermediaries are unaffected by the exclusion because an
// intermediary is never an endpoint of e.
func ScorePair(store *graph.Store, e graph.Edge) PairScores {
	var p PairScores
	if store.HasEdge(e.Sink, e.Source) {
		p.Reciprocal = 1
	}

	following := without(store.FollowingSet(e.Source), e.Sink)
	followers := without(store.FollowerSet(e.Sink), e.Source)

	following.each(func(z graph.NodeID) {
		if !followers.contains(z) {
			return
		}
		p.Intermediaries++
		d := degree(store, z)
		if d > 1 {
			p.AdamicAdar += 1.0 / math.Log(float64(d))
		}
		if d > 0 {
			p.ResourceAllocation += 1.0 / float64(d)
		}
	})

	if n := following.size(); n > 0 {
		p.Transitivity = float64(p.Intermediaries) / float64(n)
	}
	p.PreferentialAttachment = float64(following.size()) * float64(followers.size())
	return p
}

// Suggest ranks nodes that source does not yet follow but can reach in two
// hops (source->z->candidate), best first, truncated to topK (0 = all).
func Suggest(store *graph.Store, source graph.NodeID, algorithm string, topK int) []Prediction {
	following := store.FollowingSet(source)
	if following.Size() == 0 {
		return nil
	}

	candidates := make(map[graph.NodeID]struct{})
	for z := range following {
		for _, c := range store.Following(z) {
			if c == source || following.Contains(c) {
				continue
			}
			candidates[c] = struct{}{}
		}
	}

	scores := make(map[graph.NodeID]float64, len(candidates))
	for c := range candidates {
		var score float64
		switch algorithm {
		case AlgorithmJaccard:
			score = CalculateSimilarity(following, store.FollowerSet(c))[2]
		case AlgorithmPreferentialAttachment:
			score = float64(following.Size()) * float64(store.InDegree(c))
		default:
			p := ScorePair(store, graph.Edge{Source: source, Sink: c})
			switch algorithm {
			case AlgorithmAdamicAdar:
				score = p.AdamicAdar
			case AlgorithmResourceAllocation:
				score = p.ResourceAllocation
			default:
				score = float64(p.Intermediaries)
			}
		}
		if score > 0 {
			scores[c] = score
		}
	}

	return topKPredictions(scores, topK, algorithm)
}

// topKPredictions normalizes, sorts by score descending (ties by ascending
// ID) and truncates to k.
func topKPredictions(scores map[graph.NodeID]float64, k int, algorithm string) []Prediction {
	predictions := make([]Prediction, 0, len(scores))

	for nodeID, score := range scores {
		predictions = append(predictions, Prediction{
			TargetID:  nodeID,
			Score:     normalizeAlgorithmScore(score, algorithm),
			Algorithm: algorithm,
		})
	}

	sort.Slice(predictions, func(i, j int) bool {
		if predictions[i].Score != predictions[j].Score {
			return predictions[i].Score > predictions[j].Score
		}
		return predictions[i].TargetID < predictions[j].TargetID
	})

	if k > 0 && len(predictions) > k {
		predictions = predictions[:k]
	}

	return predictions
}

// normalizeAlgorithmScore maps algorithm-specific scores to [0, 1].
func normalizeAlgorithmScore(score float64, algorithm string) float64 {
	switch algorithm {
	case AlgorithmJaccard:
		// Already in [0, 1], just clamp for safety
		return math.Min(1.0, math.Max(0.0, score))

	case AlgorithmCommonNeighbors:
		// 1 neighbor → 0.33, 3 → 0.6, 5 → 0.71, 10 → 0.83
		return 1.0 - (1.0 / (1.0 + score/2.0))

	case AlgorithmAdamicAdar, AlgorithmResourceAllocation:
		// tanh(1) ≈ 0.76, tanh(2) ≈ 0.96, tanh(3) ≈ 0.995
		return math.Tanh(score / 5.0)

	case AlgorithmPreferentialAttachment:
		// Typical range is 1-10000, log10 brings to 0-4
		if score <= 1.0 {
			return 0.0
		}
		return math.Min(1.0, math.Log10(score)/4.0)

	default:
		return math.Min(1.0, math.Max(0.0, score))
	}
}
