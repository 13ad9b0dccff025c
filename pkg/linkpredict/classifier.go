package linkpredict

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Classifier is any model that consumes fixed-width feature vectors and
// binary labels. Trained models live outside this package; the baselines
// below implement it so the pipeline can run end to end.
type Classifier interface {
	Fit(x [][]float64, y []float64) error
	Predict(x [][]float64) ([]float64, error)
}

// ErrNotFitted is returned by Predict before a successful Fit.
var ErrNotFitted = errors.New("classifier not fitted")

// SplitClassifier makes confident predictions by splitting instances in
// half on the sum of selected feature columns. Labels are ignored.
type SplitClassifier struct {
	// Columns summed per instance. Default {0, 1}.
	Columns []int
	Low     float64
	High    float64

	split  float64
	fitted bool
}

// NewSplitClassifier returns a classifier over columns 0 and 1 that emits
// 0.01 / 0.99.
func NewSplitClassifier() *SplitClassifier {
	return &SplitClassifier{Columns: []int{0, 1}, Low: 0.01, High: 0.99}
}

func (c *SplitClassifier) sum(row []float64) (float64, error) {
	var s float64
	for _, col := range c.Columns {
		if col < 0 || col >= len(row) {
			return 0, fmt.Errorf("column %d out of range for %d features", col, len(row))
		}
		s += row[col]
	}
	return s, nil
}

// Fit sets the split to the median column sum of x.
func (c *SplitClassifier) Fit(x [][]float64, _ []float64) error {
	if len(x) == 0 {
		return errors.New("split classifier: no instances")
	}
	sums := make([]float64, len(x))
	for i, row := range x {
		s, err := c.sum(row)
		if err != nil {
			return fmt.Errorf("split classifier: row %d: %w", i, err)
		}
		sums[i] = s
	}
	sort.Float64s(sums)
	c.split = stat.Quantile(0.5, stat.Empirical, sums, nil)
	c.fitted = true
	return nil
}

// Split returns the fitted threshold.
func (c *SplitClassifier) Split() float64 {
	return c.split
}

// Predict emits High for sums above the split and Low otherwise.
func (c *SplitClassifier) Predict(x [][]float64) ([]float64, error) {
	if !c.fitted {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(x))
	for i, row := range x {
		s, err := c.sum(row)
		if err != nil {
			return nil, fmt.Errorf("split classifier: row %d: %w", i, err)
		}
		if s > c.split {
			out[i] = c.High
		} else {
			out[i] = c.Low
		}
	}
	return out, nil
}

// RandomClassifier predicts uniform noise. It is the AUC ≈ 0.5 baseline.
type RandomClassifier struct {
	Rand *rand.Rand
}

// Fit is a no-op.
func (c *RandomClassifier) Fit([][]float64, []float64) error { return nil }

// Predict returns one uniform [0, 1) value per instance.
func (c *RandomClassifier) Predict(x [][]float64) ([]float64, error) {
	rng := c.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(0, 0))
		c.Rand = rng
	}
	out := make([]float64, len(x))
	for i := range out {
		out[i] = rng.Float64()
	}
	return out, nil
}

// MoveIn pulls a prediction away from 0 and 1 into [0.01, 0.99], limiting
// the cost of a confident mistake under log loss.
func MoveIn(p float64) float64 {
	return 0.98*p + 0.01
}

// MoveInAll applies MoveIn to every prediction in place and returns it.
func MoveInAll(ps []float64) []float64 {
	for i, p := range ps {
		ps[i] = MoveIn(p)
	}
	return ps
}
