// Package metrics records pipeline run metrics in a private Prometheus
// registry and optionally pushes them to a Pushgateway when the run ends.
//
// A batch job has no scrape endpoint, so the registry is pushed rather than
// served.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "edgepredict"

// Recorder holds every collector for one run.
type Recorder struct {
	registry *prometheus.Registry

	stageDuration     *prometheus.HistogramVec
	edgesLoaded       prometheus.Counter
	fakesSampled      prometheus.Counter
	featuresExtracted *prometheus.CounterVec
	neighbourScores   *prometheus.CounterVec
	auc               *prometheus.GaugeVec
	accuracy          *prometheus.GaugeVec
}

// NewRecorder registers the collectors on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 200, 600, 1800},
		}, []string{"stage"}),
		edgesLoaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_loaded_total",
			Help:      "Raw edges read from the edge source.",
		}),
		fakesSampled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fake_edges_sampled_total",
			Help:      "Fake edges produced by negative sampling.",
		}),
		featuresExtracted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feature_vectors_total",
			Help:      "Feature vectors extracted, by feature set.",
		}, []string{"set"}),
		neighbourScores: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "neighbour_scores_total",
			Help:      "Neighbour classifier scores, by outcome (scored or degraded).",
		}, []string{"outcome"}),
		auc: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "auc",
			Help:      "Area under the ROC curve of the last evaluation.",
		}, []string{"run"}),
		accuracy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "accuracy",
			Help:      "Accuracy of the last evaluation.",
		}, []string{"run"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveStage records how long stage took.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// StageTimer returns a func that observes the time since StageTimer was
// called. Use as: defer rec.StageTimer("split")().
func (r *Recorder) StageTimer(stage string) func() {
	start := time.Now()
	return func() { r.ObserveStage(stage, time.Since(start)) }
}

func (r *Recorder) EdgesLoaded(n int) {
	r.edgesLoaded.Add(float64(n))
}

func (r *Recorder) FakesSampled(n int) {
	r.fakesSampled.Add(float64(n))
}

func (r *Recorder) FeaturesExtracted(set string, n int) {
	r.featuresExtracted.WithLabelValues(set).Add(float64(n))
}

// NeighbourScores records how many scores came from a completed scan and
// how many fell back because the time budget ran out.
func (r *Recorder) NeighbourScores(scored, degraded int) {
	r.neighbourScores.WithLabelValues("scored").Add(float64(scored))
	r.neighbourScores.WithLabelValues("degraded").Add(float64(degraded))
}

// Evaluation sets the AUC and accuracy gauges for run.
func (r *Recorder) Evaluation(run string, auc, accuracy float64) {
	r.auc.WithLabelValues(run).Set(auc)
	r.accuracy.WithLabelValues(run).Set(accuracy)
}

// Push sends the registry to a Pushgateway under job, grouped by run id.
func (r *Recorder) Push(ctx context.Context, url, job, runID string) error {
	pusher := push.New(url, job).Gatherer(r.registry)
	if runID != "" {
		pusher = pusher.Grouping("run_id", runID)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
