package linkpredict

import (
	"math"

	"github.com/orneryd/edgepredict/pkg/graph"
)

// FormulaCount is the number of set-similarity formulas in a Similarity.
const FormulaCount = 7

// Similarity holds the seven set-similarity scores for a pair of
// neighbourhoods x, y with i = |x ∩ y| and u = |x ∪ y|:
//
//	[0] s1 = i                      (common neighbours)
//	[1] s2 = i / sqrt(|x|·|y|)      (cosine / Salton)
//	[2] s3 = i / u                  (Jaccard)
//	[3] s4 = 2i / (|x|+|y|)         (Sørensen-Dice)
//	[4] s5 = i / min(|x|,|y|)       (hub promoted)
//	[5] s6 = i / max(|x|,|y|)       (hub depressed)
//	[6] s7 = i / (|x|·|y|)          (Leicht-Holme-Newman)
//
// If either set is empty every score is 0.
type Similarity [FormulaCount]float64

// FormulaNames are the short names of the formulas, in Similarity order.
var FormulaNames = [FormulaCount]string{
	"common", "cosine", "jaccard", "dice", "hub_promoted", "hub_depressed", "lhn",
}

// CalculateSimilarity computes all seven formulas for x and y.
//
// Example:
//
//	x := graph.NewNodeSet(1, 2, 3)
//	y := graph.NewNodeSet(2, 3, 4)
//	s := linkpredict.CalculateSimilarity(x, y)
//	// s[0] = 2, s[2] = 0.5, s[3] = 0.667, s[6] = 0.222
func CalculateSimilarity(x, y graph.NodeSet) Similarity {
	return similarity(setView{set: x}, setView{set: y})
}

// setView is a NodeSet with at most one member hidden. It lets the
// extractor behave as if the candidate edge were absent without copying or
// mutating the shared store.
type setView struct {
	set  graph.NodeSet
	skip graph.NodeID
	hide bool
}

func without(set graph.NodeSet, id graph.NodeID) setView {
	return setView{set: set, skip: id, hide: set.Contains(id)}
}

func (v setView) size() int {
	if v.hide {
		return len(v.set) - 1
	}
	return len(v.set)
}

func (v setView) contains(id graph.NodeID) bool {
	if v.hide && id == v.skip {
		return false
	}
	return v.set.Contains(id)
}

func (v setView) each(fn func(graph.NodeID)) {
	for id := range v.set {
		if v.hide && id == v.skip {
			continue
		}
		fn(id)
	}
}

// intersection counts common members, iterating the smaller view.
func intersection(x, y setView) int {
	if x.size() > y.size() {
		x, y = y, x
	}
	n := 0
	x.each(func(id graph.NodeID) {
		if y.contains(id) {
			n++
		}
	})
	return n
}

func similarity(x, y setView) Similarity {
	var s Similarity
	a, b := x.size(), y.size()
	if a == 0 || b == 0 {
		return s
	}

	i := float64(intersection(x, y))
	fa, fb := float64(a), float64(b)
	u := fa + fb - i

	s[0] = i
	s[1] = i / math.Sqrt(fa*fb)
	s[2] = i / u
	s[3] = 2 * i / (fa + fb)
	s[4] = i / math.Min(fa, fb)
	s[5] = i / math.Max(fa, fb)
	s[6] = i / (fa * fb)
	return s
}
