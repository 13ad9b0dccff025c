// Package pipeline wires configuration, data sources, feature extraction,
// classifiers and evaluation into the runs the CLI exposes.
//
// A typical run:
//
//	p, _ := pipeline.New(cfg, pipeline.Options{Logger: logger})
//	prep, _ := p.Prepare(ctx, dataio.FileSource{Path: "train.txt"})
//	keys, _ := p.WriteFeatureFiles(ctx, out, prep, queries)
//	scores, _ := p.Neighbours(ctx, prep, prep.Dataset.Dev.Edges())
//	result, _ := p.Evaluate("dev", prep.Dataset.Dev.Labels(), scores)
//
// Every stage opens an OpenTelemetry span, logs through slog and records
// Prometheus metrics; all three are optional and default to no-ops.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/orneryd/edgepredict/pkg/blobstore"
	"github.com/orneryd/edgepredict/pkg/config"
	"github.com/orneryd/edgepredict/pkg/dataio"
	"github.com/orneryd/edgepredict/pkg/dataset"
	"github.com/orneryd/edgepredict/pkg/eval"
	"github.com/orneryd/edgepredict/pkg/graph"
	"github.com/orneryd/edgepredict/pkg/linkpredict"
	"github.com/orneryd/edgepredict/pkg/metrics"
	"github.com/orneryd/edgepredict/pkg/storage"
)

// ErrFeatureCount is returned when a configured feature count disagrees
// with the feature set.
var ErrFeatureCount = errors.New("feature count does not match feature set")

// Feature file names written by WriteFeatureFiles.
const (
	TrainFeaturesKey = "train-features.csv"
	DevFeaturesKey   = "dev-features.csv"
	TestFeaturesKey  = "test-features.csv"
)

// Options carries the optional collaborators of a Pipeline.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Recorder
	Tracer  trace.Tracer
	// Cache, when set, backs feature extraction.
	Cache *storage.FeatureStore
	// Now drives the neighbour time budget. Defaults to time.Now.
	Now func() time.Time
}

// Pipeline runs the stages of one edge-prediction job.
type Pipeline struct {
	cfg     *config.Config
	set     linkpredict.FeatureSet
	logger  *slog.Logger
	metrics *metrics.Recorder
	tracer  trace.Tracer
	cache   *storage.FeatureStore
	now     func() time.Time
	runID   string
}

// New validates cfg and returns a Pipeline with a fresh run id.
func New(cfg *config.Config, opts Options) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	set := linkpredict.FeatureSet(cfg.Features.Set)
	if !set.Valid() {
		return nil, fmt.Errorf("%w: unknown feature set %q", config.ErrInvalidConfig, cfg.Features.Set)
	}
	if cfg.Features.Count != 0 && cfg.Features.Count != set.Width() {
		return nil, fmt.Errorf("%w: set %s has %d features, count is %d", ErrFeatureCount, set, set.Width(), cfg.Features.Count)
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewRecorder()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("edgepredict/pipeline")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	runID := uuid.NewString()
	return &Pipeline{
		cfg:     cfg,
		set:     set,
		logger:  opts.Logger.With(slog.String("run_id", runID)),
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
		cache:   opts.Cache,
		now:     opts.Now,
		runID:   runID,
	}, nil
}

// RunID identifies this run in logs, metrics and reports.
func (p *Pipeline) RunID() string { return p.runID }

// Metrics returns the recorder used by the pipeline.
func (p *Pipeline) Metrics() *metrics.Recorder { return p.metrics }

// FeatureSet returns the configured feature set.
func (p *Pipeline) FeatureSet() linkpredict.FeatureSet { return p.set }

func (p *Pipeline) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("run.id", p.runID))
	return p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Prepared is the output of Prepare: the training graph plus labelled
// training and validation edges.
type Prepared struct {
	Dataset     *dataset.Dataset
	Fingerprint string
	RawEdges    int
}

// Prepare loads edges from src, splits them and samples fake edges.
func (p *Pipeline) Prepare(ctx context.Context, src dataio.EdgeSource) (prep *Prepared, err error) {
	ctx, span := p.startSpan(ctx, "Pipeline.Prepare", attribute.String("source", src.Name()))
	defer func() { endSpan(span, err) }()
	defer p.metrics.StageTimer("prepare")()

	edges, err := src.Edges(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading edges from %s: %w", src.Name(), err)
	}
	p.metrics.EdgesLoaded(len(edges))

	ds, err := dataset.Build(edges, dataset.Options{
		TrainingLimit: p.cfg.Dataset.TrainingLimit,
		DevLimit:      p.cfg.Dataset.DevLimit,
		Pool:          dataset.SourcePool(p.cfg.Dataset.Pool),
		MaxAttempts:   p.cfg.Dataset.MaxAttempts,
		Rand:          rand.New(rand.NewPCG(p.cfg.Dataset.Seed, p.cfg.Dataset.Seed)),
	})
	if err != nil {
		return nil, err
	}
	p.metrics.FakesSampled(ds.Train.Count(dataset.Fake) + ds.Dev.Count(dataset.Fake))

	prep = &Prepared{
		Dataset:     ds,
		Fingerprint: ds.Store.Fingerprint(),
		RawEdges:    len(edges),
	}
	span.SetAttributes(
		attribute.Int("edges.raw", len(edges)),
		attribute.Int("graph.nodes", ds.Store.NodeCount()),
		attribute.Int("graph.edges", ds.Store.EdgeCount()),
	)
	p.logger.Info("dataset prepared",
		slog.String("source", src.Name()),
		slog.Int("raw_edges", len(edges)),
		slog.Int("nodes", ds.Store.NodeCount()),
		slog.Int("train", len(ds.Train)),
		slog.Int("dev", len(ds.Dev)),
		slog.String("fingerprint", prep.Fingerprint[:12]))
	return prep, nil
}

// Extractor builds a feature extractor over the training graph, backed by
// the feature cache when one is configured.
func (p *Pipeline) Extractor(prep *Prepared) (*linkpredict.Extractor, error) {
	opts := linkpredict.ExtractorOptions{
		Set:     p.set,
		Workers: p.cfg.Features.Workers,
		Logger:  p.logger,
	}
	if p.cache != nil {
		opts.Cache = p.cache.Scope(storage.Namespace(prep.Fingerprint, string(p.set)))
	}
	return linkpredict.NewExtractor(prep.Dataset.Store, opts)
}

// Features extracts one vector per edge, in order.
func (p *Pipeline) Features(ctx context.Context, prep *Prepared, edges []graph.Edge) (x [][]float64, err error) {
	ctx, span := p.startSpan(ctx, "Pipeline.Features",
		attribute.String("feature.set", string(p.set)),
		attribute.Int("edges", len(edges)))
	defer func() { endSpan(span, err) }()
	defer p.metrics.StageTimer("features")()

	extractor, err := p.Extractor(prep)
	if err != nil {
		return nil, err
	}
	x, err = extractor.ExtractAll(ctx, edges)
	if err != nil {
		return nil, err
	}
	p.metrics.FeaturesExtracted(string(p.set), len(x))
	return x, nil
}

// WriteFeatureFiles extracts and stores labelled training and validation
// feature files plus, when queries is non-empty, an unlabelled test file.
// It returns the keys written.
func (p *Pipeline) WriteFeatureFiles(ctx context.Context, out blobstore.BlobStore, prep *Prepared, queries []graph.Edge) ([]string, error) {
	type file struct {
		key    string
		edges  []graph.Edge
		labels []float64
	}
	files := []file{
		{TrainFeaturesKey, prep.Dataset.Train.Edges(), prep.Dataset.Train.Labels()},
		{DevFeaturesKey, prep.Dataset.Dev.Edges(), prep.Dataset.Dev.Labels()},
	}
	if len(queries) > 0 {
		files = append(files, file{TestFeaturesKey, queries, nil})
	}

	var keys []string
	for _, f := range files {
		x, err := p.Features(ctx, prep, f.edges)
		if err != nil {
			return keys, fmt.Errorf("%s: %w", f.key, err)
		}
		var buf bytes.Buffer
		if err := dataio.WriteFeatures(&buf, x, f.labels); err != nil {
			return keys, fmt.Errorf("%s: %w", f.key, err)
		}
		if err := out.Put(ctx, f.key, buf.Bytes()); err != nil {
			return keys, fmt.Errorf("%s: %w", f.key, err)
		}
		keys = append(keys, f.key)
		p.logger.Info("feature file written", slog.String("key", f.key), slog.Int("rows", len(x)))
	}
	return keys, nil
}

// NeighbourClassifier returns the top-k classifier over the training graph.
func (p *Pipeline) NeighbourClassifier(prep *Prepared) *linkpredict.NeighbourClassifier {
	opts := linkpredict.DefaultNeighbourOptions()
	opts.K = p.cfg.Neighbours.K
	opts.TimeLimit = p.cfg.Neighbours.TimeLimit
	opts.SnapThreshold = p.cfg.Neighbours.SnapThreshold
	opts.Now = p.now
	opts.Logger = p.logger
	return linkpredict.NewNeighbourClassifier(prep.Dataset.Store, opts)
}

// Neighbours scores edges with the neighbour classifier.
func (p *Pipeline) Neighbours(ctx context.Context, prep *Prepared, edges []graph.Edge) ([]float64, error) {
	ctx, span := p.startSpan(ctx, "Pipeline.Neighbours", attribute.Int("edges", len(edges)))
	defer p.metrics.StageTimer("neighbours")()

	scores, stats := p.NeighbourClassifier(prep).PredictAll(ctx, edges)
	p.metrics.NeighbourScores(stats.Predicted-stats.Degraded, stats.Degraded)
	span.SetAttributes(attribute.Int("neighbours.degraded", stats.Degraded))

	// Cancellation degrades individual scores; surface it once here.
	err := ctx.Err()
	endSpan(span, err)
	if err != nil {
		return nil, err
	}
	if stats.Degraded > 0 {
		p.logger.Warn("neighbour scans exceeded time budget",
			slog.Int("degraded", stats.Degraded),
			slog.Duration("time_limit", p.cfg.Neighbours.TimeLimit))
	}
	return scores, nil
}

// Classify fits c on labelled training vectors and predicts x, pulling each
// prediction in from the extremes with MoveIn.
func (p *Pipeline) Classify(ctx context.Context, c linkpredict.Classifier, trainX [][]float64, trainY []float64, x [][]float64) (preds []float64, err error) {
	_, span := p.startSpan(ctx, "Pipeline.Classify", attribute.Int("rows", len(x)))
	defer func() { endSpan(span, err) }()
	defer p.metrics.StageTimer("classify")()

	if err := c.Fit(trainX, trainY); err != nil {
		return nil, fmt.Errorf("fitting classifier: %w", err)
	}
	preds, err = c.Predict(x)
	if err != nil {
		return nil, fmt.Errorf("predicting: %w", err)
	}
	return linkpredict.MoveInAll(preds), nil
}

// Evaluate scores predictions against labels and records the result.
func (p *Pipeline) Evaluate(name string, labels, scores []float64) (*eval.Result, error) {
	defer p.metrics.StageTimer("evaluate")()

	result, err := eval.Evaluate(labels, scores, eval.Options{
		Resolution: p.cfg.Eval.Resolution,
		Thresholds: &eval.Thresholds{AUC: p.cfg.Eval.MinAUC, Accuracy: p.cfg.Eval.MinAccuracy},
		Name:       name,
	})
	if err != nil {
		return nil, err
	}
	p.metrics.Evaluation(name, result.AUC, result.Accuracy)
	p.logger.Info("evaluation complete",
		slog.String("name", name),
		slog.Float64("auc", result.AUC),
		slog.Float64("accuracy", result.Accuracy),
		slog.Bool("passed", result.Passed))
	return result, nil
}

// SavePredictions writes preds to the first free prediction slot in out.
func (p *Pipeline) SavePredictions(ctx context.Context, out blobstore.BlobStore, preds []float64) (string, error) {
	key, err := dataio.SavePredictions(ctx, out, p.cfg.Output.Prefix, p.cfg.Output.MaxFiles, preds)
	if err != nil {
		return "", err
	}
	p.logger.Info("predictions saved", slog.String("key", key), slog.Int("rows", len(preds)))
	return key, nil
}

// PushMetrics pushes the run's metrics when a Pushgateway is configured.
func (p *Pipeline) PushMetrics(ctx context.Context) error {
	url := p.cfg.Metrics.PushgatewayURL
	if url == "" {
		return nil
	}
	return p.metrics.Push(ctx, url, p.cfg.Metrics.Job, p.runID)
}
