// Package eval scores binary edge predictions against ground truth.
//
// Metrics computed:
//   - Accuracy: fraction of predictions within 0.5 of the label
//   - Confusion matrix at the 0.5 decision threshold
//   - ROC curve: FPR/TPR over an evenly spaced threshold sweep
//   - AUC: step-function area under that curve
//
// Example usage:
//
//	result, err := eval.Evaluate(labels, scores, eval.Options{})
//	if err != nil {
//	    return err
//	}
//	eval.NewReporter(os.Stdout).PrintSummary(result)
//
// ELI12 (Explain Like I'm 12):
//
// Think of it like grading guesses about who follows whom:
//   - Accuracy asks "how many did you get right if you must say yes or no?"
//   - AUC asks "if I pick one real and one fake edge, how often did you
//     score the real one higher?" 1.0 is perfect, 0.5 is coin-flipping.
package eval

import (
	"time"
)

// Thresholds define minimum acceptable metric values.
type Thresholds struct {
	AUC      float64 `json:"auc"`
	Accuracy float64 `json:"accuracy"`
}

// DefaultThresholds returns the stock pass/fail bar.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AUC:      0.7, // Clearly better than chance
		Accuracy: 0.6,
	}
}

// Options configures Evaluate.
type Options struct {
	// Resolution is the ROC sweep size. Default 1000.
	Resolution int
	// Thresholds for Passed. nil uses DefaultThresholds.
	Thresholds *Thresholds
	// Name labels the result in reports.
	Name string
}

// Result contains the complete evaluation.
type Result struct {
	Name      string        `json:"name"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`

	Instances int `json:"instances"`
	Positives int `json:"positives"`
	Negatives int `json:"negatives"`

	Accuracy  float64         `json:"accuracy"`
	AUC       float64         `json:"auc"`
	Confusion ConfusionMatrix `json:"confusion"`
	ROC       []ROCPoint      `json:"roc,omitempty"`

	Thresholds Thresholds `json:"thresholds"`
	Passed     bool       `json:"passed"`
}

// Evaluate computes every metric for 0/1 labels and predicted scores.
// Errors from the metric functions are returned unchanged, so
// errors.Is(err, ErrConfusionDegenerate) reports a single-class input.
func Evaluate(labels, scores []float64, opts Options) (*Result, error) {
	start := time.Now()

	thresholds := DefaultThresholds()
	if opts.Thresholds != nil {
		thresholds = *opts.Thresholds
	}
	name := opts.Name
	if name == "" {
		name = "default"
	}

	accuracy, err := Accuracy(labels, scores)
	if err != nil {
		return nil, err
	}
	confusion, err := Confusion(labels, scores, DecisionThreshold)
	if err != nil {
		return nil, err
	}
	roc, err := ROC(labels, scores, opts.Resolution)
	if err != nil {
		return nil, err
	}
	auc := AreaUnder(roc)

	return &Result{
		Name:       name,
		Timestamp:  start,
		Duration:   time.Since(start),
		Instances:  len(labels),
		Positives:  confusion.TP + confusion.FN,
		Negatives:  confusion.FP + confusion.TN,
		Accuracy:   accuracy,
		AUC:        auc,
		Confusion:  confusion,
		ROC:        roc,
		Thresholds: thresholds,
		Passed:     auc >= thresholds.AUC && accuracy >= thresholds.Accuracy,
	}, nil
}
