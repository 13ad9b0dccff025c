package eval

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Reporter formats and outputs evaluation results.
type Reporter struct {
	writer io.Writer
}

// NewReporter creates a new reporter that writes to the given writer.
func NewReporter(w io.Writer) *Reporter {
	if w == nil {
		w = os.Stdout
	}
	return &Reporter{writer: w}
}

// PrintSummary prints a human-readable summary of results.
func (r *Reporter) PrintSummary(result *Result) {
	w := r.writer

	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔════════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║              Edge Prediction Evaluation Results                ║")
	fmt.Fprintln(w, "╚════════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)

	fmt.Fprintf(w, "📊 Run:   %s\n", result.Name)
	fmt.Fprintf(w, "📅 Time:  %s\n", result.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "⏱️  Duration: %v\n", result.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "🔢 Instances: %d (%d real, %d fake)\n", result.Instances, result.Positives, result.Negatives)
	fmt.Fprintln(w)

	statusIcon := "✅"
	if !result.Passed {
		statusIcon = "❌"
	}
	fmt.Fprintf(w, "%s %s\n", statusIcon, passLabel(result.Passed))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "┌─────────────────────────────────────────────────────────────────┐")
	fmt.Fprintln(w, "│                         Metrics                                 │")
	fmt.Fprintln(w, "├─────────────────────────────────────────────────────────────────┤")
	r.printMetricRow(w, "AUC", result.AUC, result.Thresholds.AUC)
	r.printMetricRow(w, "Accuracy", result.Accuracy, result.Thresholds.Accuracy)
	fmt.Fprintln(w, "├─────────────────────────────────────────────────────────────────┤")
	c := result.Confusion
	fmt.Fprintf(w, "│   TP %-8d FP %-8d FN %-8d TN %-8d\n", c.TP, c.FP, c.FN, c.TN)
	fmt.Fprintln(w, "└─────────────────────────────────────────────────────────────────┘")
	fmt.Fprintln(w)
}

func passLabel(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}

// printMetricRow prints a single metric row with optional threshold comparison.
func (r *Reporter) printMetricRow(w io.Writer, name string, value float64, threshold float64) {
	bar := r.progressBar(value, 20)
	status := " "
	if threshold >= 0 {
		if value >= threshold {
			status = "✓"
		} else {
			status = "✗"
		}
	}

	threshStr := ""
	if threshold >= 0 {
		threshStr = fmt.Sprintf(" (target: %.2f)", threshold)
	}

	fmt.Fprintf(w, "│ %s %-14s %s %.3f%s\n", status, name, bar, value, threshStr)
}

// progressBar creates a visual progress bar.
func (r *Reporter) progressBar(value float64, width int) string {
	filled := int(value * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("[%s]", bar)
}

// PrintROC prints every step-th point of the ROC sweep.
func (r *Reporter) PrintROC(result *Result, step int) {
	w := r.writer
	if step <= 0 {
		step = 100
	}

	fmt.Fprintln(w, "threshold    fpr      tpr")
	for i := 0; i < len(result.ROC); i += step {
		p := result.ROC[i]
		fmt.Fprintf(w, "%9.3f  %7.4f  %7.4f\n", p.Threshold, p.FPR, p.TPR)
	}
}

// PrintJSON outputs results as JSON.
func (r *Reporter) PrintJSON(result *Result) error {
	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// SaveJSON saves results to a JSON file.
func (r *Reporter) SaveJSON(result *Result, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// PrintCompact prints a one-line summary.
func (r *Reporter) PrintCompact(result *Result) {
	fmt.Fprintf(r.writer, "[%s] %s | n=%d AUC=%.4f Accuracy=%.4f | TP=%d FP=%d FN=%d TN=%d | %v\n",
		passLabel(result.Passed),
		result.Name,
		result.Instances,
		result.AUC,
		result.Accuracy,
		result.Confusion.TP, result.Confusion.FP, result.Confusion.FN, result.Confusion.TN,
		result.Duration.Round(time.Millisecond),
	)
}
