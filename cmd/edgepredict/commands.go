package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/spf13/cobra"

	"github.com/orneryd/edgepredict/pkg/config"
	"github.com/orneryd/edgepredict/pkg/dataio"
	"github.com/orneryd/edgepredict/pkg/eval"
	"github.com/orneryd/edgepredict/pkg/graph"
	"github.com/orneryd/edgepredict/pkg/linkpredict"
	"github.com/orneryd/edgepredict/pkg/logging"
	"github.com/orneryd/edgepredict/pkg/pipeline"
	"github.com/orneryd/edgepredict/pkg/pool"
)

// app carries state shared between the persistent pre-run and commands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

// setup loads configuration in precedence order: defaults, YAML file,
// environment (optionally seeded from --env-file), then flags.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	if envFile, _ := flags.GetString("env-file"); envFile != "" {
		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}
	}

	path, _ := flags.GetString("config")
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}

	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := flags.GetString("log-format"); v != "" {
		cfg.Logging.Format = v
	}
	if v, _ := flags.GetString("pushgateway"); v != "" {
		cfg.Metrics.PushgatewayURL = v
	}
	applyCommandFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	cfg.Memory.ApplyRuntimeMemory()
	pool.Configure(pool.PoolConfig{
		Enabled: cfg.Memory.PoolEnabled,
		MaxSize: cfg.Memory.PoolMaxSize,
	})

	a.cfg = cfg
	a.logger = logger
	logger.Debug("configuration loaded", slog.String("config", cfg.String()))
	return nil
}

// applyCommandFlags copies explicitly set command flags over cfg.
func applyCommandFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.Output.Dir, _ = flags.GetString("out")
	}
	if flags.Changed("training-limit") {
		cfg.Dataset.TrainingLimit, _ = flags.GetInt("training-limit")
	}
	if flags.Changed("dev-limit") {
		cfg.Dataset.DevLimit, _ = flags.GetInt("dev-limit")
	}
	if flags.Changed("seed") {
		cfg.Dataset.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("feature-set") {
		cfg.Features.Set, _ = flags.GetString("feature-set")
	}
	if flags.Changed("workers") {
		cfg.Features.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("k") {
		cfg.Neighbours.K, _ = flags.GetInt("k")
	}
	if flags.Changed("time-limit") {
		cfg.Neighbours.TimeLimit, _ = flags.GetDuration("time-limit")
	}
}

// newPipeline builds a pipeline with the feature cache when configured. The
// returned close func is never nil.
func (a *app) newPipeline() (*pipeline.Pipeline, func(), error) {
	cache, err := pipeline.OpenCache(a.cfg.Features, a.logger)
	if err != nil {
		return nil, func() {}, err
	}
	closeCache := func() {
		if cache != nil {
			cache.Close()
		}
	}

	p, err := pipeline.New(a.cfg, pipeline.Options{Logger: a.logger, Cache: cache})
	if err != nil {
		closeCache()
		return nil, func() {}, err
	}
	return p, closeCache, nil
}

func (a *app) prepare(ctx context.Context, p *pipeline.Pipeline, args []string) (*pipeline.Prepared, error) {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" && a.cfg.Source.EdgeFile == "" && a.cfg.Source.Neo4jURI == "" {
		return nil, errors.New("no edge source: pass an edge file or configure source.edge_file or source.neo4j_uri")
	}

	src, closeSrc, err := pipeline.OpenSource(ctx, a.cfg.Source, path)
	if err != nil {
		return nil, err
	}
	defer closeSrc()
	return p.Prepare(ctx, src)
}

func (a *app) readQueries(cmd *cobra.Command) ([]graph.Edge, error) {
	path, _ := cmd.Flags().GetString("queries")
	if path == "" {
		path = a.cfg.Source.QueryFile
	}
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return dataio.ReadQueries(f)
}

func (a *app) finish(ctx context.Context, p *pipeline.Pipeline) {
	if err := p.PushMetrics(ctx); err != nil {
		a.logger.Warn("metrics push failed", slog.Any("error", err))
	}
}

func (a *app) runInit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("path")
	force, _ := cmd.Flags().GetBool("force")

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.DefaultConfig().WriteFile(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Wrote default configuration to %s\n", path)
	return nil
}

func (a *app) runFeatures(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p, closeP, err := a.newPipeline()
	if err != nil {
		return err
	}
	defer closeP()

	queries, err := a.readQueries(cmd)
	if err != nil {
		return err
	}
	prep, err := a.prepare(ctx, p, args)
	if err != nil {
		return err
	}

	out, err := pipeline.OpenOutput(ctx, a.cfg.Output)
	if err != nil {
		return err
	}
	keys, err := p.WriteFeatureFiles(ctx, out, prep, queries)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "📊 Run:      %s\n", p.RunID())
	fmt.Fprintf(w, "   Graph:    %d nodes, %d edges\n", prep.Dataset.Store.NodeCount(), prep.Dataset.Store.EdgeCount())
	fmt.Fprintf(w, "   Features: %s (%d per edge)\n", p.FeatureSet(), p.FeatureSet().Width())
	for _, key := range keys {
		fmt.Fprintf(w, "   ✅ %s\n", key)
	}
	a.finish(ctx, p)
	return nil
}

func (a *app) runNeighbours(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p, closeP, err := a.newPipeline()
	if err != nil {
		return err
	}
	defer closeP()

	queries, err := a.readQueries(cmd)
	if err != nil {
		return err
	}
	prep, err := a.prepare(ctx, p, args)
	if err != nil {
		return err
	}

	dev := prep.Dataset.Dev
	scores, err := p.Neighbours(ctx, prep, dev.Edges())
	if err != nil {
		return err
	}
	result, err := p.Evaluate("neighbours-dev", dev.Labels(), scores)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("output")
	if err := report(cmd.OutOrStdout(), result, format); err != nil {
		return err
	}

	if len(queries) > 0 {
		preds, err := p.Neighbours(ctx, prep, queries)
		if err != nil {
			return err
		}
		out, err := pipeline.OpenOutput(ctx, a.cfg.Output)
		if err != nil {
			return err
		}
		key, err := p.SavePredictions(ctx, out, preds)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Predictions saved to %s\n", key)
	}

	a.finish(ctx, p)
	return nil
}

func readFeatureFile(path string) ([][]float64, []float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	x, y, err := dataio.ReadFeatures(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return x, y, nil
}

func (a *app) newClassifier(cmd *cobra.Command) (linkpredict.Classifier, error) {
	name, _ := cmd.Flags().GetString("classifier")
	switch name {
	case "split":
		c := linkpredict.NewSplitClassifier()
		c.Columns, _ = cmd.Flags().GetIntSlice("columns")
		return c, nil
	case "random":
		seed := a.cfg.Dataset.Seed
		return &linkpredict.RandomClassifier{Rand: rand.New(rand.NewPCG(seed, seed))}, nil
	}
	return nil, fmt.Errorf("unknown classifier %q", name)
}

func (a *app) runTrain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p, closeP, err := a.newPipeline()
	if err != nil {
		return err
	}
	defer closeP()

	trainPath, _ := cmd.Flags().GetString("train")
	devPath, _ := cmd.Flags().GetString("dev")
	testPath, _ := cmd.Flags().GetString("test")

	trainX, trainY, err := readFeatureFile(trainPath)
	if err != nil {
		return err
	}
	if trainY == nil {
		return fmt.Errorf("%s: %w: training file has no label column", trainPath, dataio.ErrMalformedFeatures)
	}

	if devPath != "" {
		devX, devY, err := readFeatureFile(devPath)
		if err != nil {
			return err
		}
		if devY == nil {
			return fmt.Errorf("%s: %w: validation file has no label column", devPath, dataio.ErrMalformedFeatures)
		}
		c, err := a.newClassifier(cmd)
		if err != nil {
			return err
		}
		preds, err := p.Classify(ctx, c, trainX, trainY, devX)
		if err != nil {
			return err
		}
		result, err := p.Evaluate("classifier-dev", devY, preds)
		if err != nil {
			return err
		}
		eval.NewReporter(cmd.OutOrStdout()).PrintCompact(result)
	}

	if testPath != "" {
		testX, _, err := readFeatureFile(testPath)
		if err != nil {
			return err
		}
		c, err := a.newClassifier(cmd)
		if err != nil {
			return err
		}
		preds, err := p.Classify(ctx, c, trainX, trainY, testX)
		if err != nil {
			return err
		}
		out, err := pipeline.OpenOutput(ctx, a.cfg.Output)
		if err != nil {
			return err
		}
		key, err := p.SavePredictions(ctx, out, preds)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Predictions saved to %s\n", key)
	}

	a.finish(ctx, p)
	return nil
}

func (a *app) runEvaluate(cmd *cobra.Command, args []string) error {
	featuresPath, _ := cmd.Flags().GetString("features")
	predictionsPath, _ := cmd.Flags().GetString("predictions")
	format, _ := cmd.Flags().GetString("output")
	rocStep, _ := cmd.Flags().GetInt("roc-step")
	savePath, _ := cmd.Flags().GetString("save")

	_, labels, err := readFeatureFile(featuresPath)
	if err != nil {
		return err
	}
	if labels == nil {
		return fmt.Errorf("%s: %w: no label column", featuresPath, dataio.ErrMalformedFeatures)
	}

	data, err := os.ReadFile(predictionsPath)
	if err != nil {
		return err
	}
	preds, err := dataio.ReadPredictions(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s: %w", predictionsPath, err)
	}

	p, closeP, err := a.newPipeline()
	if err != nil {
		return err
	}
	defer closeP()

	result, err := p.Evaluate(predictionsPath, labels, preds)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if err := report(w, result, format); err != nil {
		return err
	}
	if rocStep > 0 {
		eval.NewReporter(w).PrintROC(result, rocStep)
	}
	if savePath != "" {
		if err := eval.NewReporter(w).SaveJSON(result, savePath); err != nil {
			return err
		}
	}

	a.finish(cmd.Context(), p)
	if !result.Passed {
		a.logger.Warn("evaluation below thresholds",
			slog.Float64("auc", result.AUC),
			slog.Float64("min_auc", a.cfg.Eval.MinAUC))
	}
	return nil
}

func report(w io.Writer, result *eval.Result, format string) error {
	r := eval.NewReporter(w)
	switch format {
	case "", "summary":
		r.PrintSummary(result)
	case "json":
		return r.PrintJSON(result)
	case "compact":
		r.PrintCompact(result)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	return nil
}
