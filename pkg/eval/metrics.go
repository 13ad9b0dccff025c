package eval

import (
	"errors"
	"fmt"
	"math"
)

// Errors returned by the metric functions.
var (
	ErrLengthMismatch      = errors.New("labels and scores differ in length")
	ErrEmptyInput          = errors.New("no instances to evaluate")
	ErrConfusionDegenerate = errors.New("confusion matrix has an empty class")
)

// DefaultResolution is the number of ROC thresholds swept by default.
const DefaultResolution = 1000

// DecisionThreshold separates REAL from FAKE for accuracy.
const DecisionThreshold = 0.5

// ConfusionMatrix counts binary outcomes. A label >= 0.5 is REAL.
type ConfusionMatrix struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TN int `json:"tn"`
}

// FPR is FP / (FP + TN). It fails when no negatives exist.
func (m ConfusionMatrix) FPR() (float64, error) {
	if m.FP+m.TN == 0 {
		return 0, fmt.Errorf("%w: FP+TN = 0", ErrConfusionDegenerate)
	}
	return float64(m.FP) / float64(m.FP+m.TN), nil
}

// TPR is TP / (TP + FN). It fails when no positives exist.
func (m ConfusionMatrix) TPR() (float64, error) {
	if m.TP+m.FN == 0 {
		return 0, fmt.Errorf("%w: TP+FN = 0", ErrConfusionDegenerate)
	}
	return float64(m.TP) / float64(m.TP+m.FN), nil
}

// Total returns the number of instances counted.
func (m ConfusionMatrix) Total() int {
	return m.TP + m.FP + m.FN + m.TN
}

func checkInputs(labels, scores []float64) error {
	if len(labels) != len(scores) {
		return fmt.Errorf("%w: %d labels, %d scores", ErrLengthMismatch, len(labels), len(scores))
	}
	if len(labels) == 0 {
		return ErrEmptyInput
	}
	return nil
}

func isReal(label float64) bool {
	return label >= DecisionThreshold
}

// Confusion counts outcomes with predicted = REAL iff score > threshold.
func Confusion(labels, scores []float64, threshold float64) (ConfusionMatrix, error) {
	var m ConfusionMatrix
	if err := checkInputs(labels, scores); err != nil {
		return m, err
	}
	for i, label := range labels {
		predicted := scores[i] > threshold
		switch {
		case isReal(label) && predicted:
			m.TP++
		case !isReal(label) && predicted:
			m.FP++
		case isReal(label):
			m.FN++
		default:
			m.TN++
		}
	}
	return m, nil
}

// Accuracy is the fraction of instances with |label - predicted| < 0.5.
func Accuracy(labels, predicted []float64) (float64, error) {
	if err := checkInputs(labels, predicted); err != nil {
		return 0, err
	}
	correct := 0
	for i := range labels {
		if math.Abs(labels[i]-predicted[i]) < DecisionThreshold {
			correct++
		}
	}
	return float64(correct) / float64(len(labels)), nil
}

// ROCPoint is one threshold of the sweep.
type ROCPoint struct {
	Threshold float64 `json:"threshold"`
	FPR       float64 `json:"fpr"`
	TPR       float64 `json:"tpr"`
}

// ROC sweeps n thresholds i/n for i in [0, n). n <= 0 uses
// DefaultResolution. It fails with ErrConfusionDegenerate if either class
// is absent from labels.
func ROC(labels, scores []float64, n int) ([]ROCPoint, error) {
	if err := checkInputs(labels, scores); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = DefaultResolution
	}

	step := 1.0 / float64(n)
	points := make([]ROCPoint, n)
	for i := range points {
		threshold := float64(i) * step
		m, err := Confusion(labels, scores, threshold)
		if err != nil {
			return nil, err
		}
		fpr, err := m.FPR()
		if err != nil {
			return nil, fmt.Errorf("threshold %.4f: %w", threshold, err)
		}
		tpr, err := m.TPR()
		if err != nil {
			return nil, fmt.Errorf("threshold %.4f: %w", threshold, err)
		}
		points[i] = ROCPoint{Threshold: threshold, FPR: fpr, TPR: tpr}
	}
	return points, nil
}

// AreaUnder integrates a ROC sweep as a step function over FPR.
//
// Walking thresholds upwards, the TPR of the last change point is carried
// until TPR changes; each change adds TPR_last · (FPR_last − FPR_i). The
// final segment adds TPR_last · (1 − FPR_last).
func AreaUnder(points []ROCPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	auc := 0.0
	last := 0
	for i := range points {
		if points[i].TPR != points[last].TPR {
			auc += points[last].TPR * (points[last].FPR - points[i].FPR)
			last = i
		}
	}
	auc += points[last].TPR * (1.0 - points[last].FPR)
	return auc
}

// AUC is AreaUnder(ROC(labels, scores, n)).
func AUC(labels, scores []float64, n int) (float64, error) {
	points, err := ROC(labels, scores, n)
	if err != nil {
		return 0, err
	}
	return AreaUnder(points), nil
}
