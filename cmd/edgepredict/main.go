// Package main provides the edgepredict CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "edgepredict",
		Short: "edgepredict - directed link prediction for follower graphs",
		Long: `edgepredict predicts whether a directed "follows" edge exists between
two nodes of a social graph.

Pipeline:
  • Split real edges into a training graph and a held-out validation set
  • Sample balanced fake edges by rejection sampling
  • Extract neighbourhood similarity features (28 by default)
  • Score edges with the top-k neighbour classifier or a baseline
  • Evaluate with accuracy, ROC and AUC`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "YAML config file")
	flags.String("env-file", "", "Load environment variables from a .env file")
	flags.String("log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	flags.String("log-format", "", "Log format (text, json)")
	flags.String("pushgateway", "", "Prometheus Pushgateway URL")

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "edgepredict v%s (%s)\n", version, commit)
		},
	})

	// Init command
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE:  a.runInit,
	}
	initCmd.Flags().String("path", "edgepredict.yaml", "Where to write the config")
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")
	rootCmd.AddCommand(initCmd)

	// Features command
	featuresCmd := &cobra.Command{
		Use:   "features [edge-file]",
		Short: "Build labelled train/dev feature files (and test features for a query file)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.runFeatures,
	}
	addDatasetFlags(featuresCmd)
	featuresCmd.Flags().String("feature-set", "", "Feature set: full, jaccard or extended")
	featuresCmd.Flags().Int("workers", 0, "Parallel extraction workers")
	rootCmd.AddCommand(featuresCmd)

	// Neighbours command
	neighboursCmd := &cobra.Command{
		Use:   "neighbours [edge-file]",
		Short: "Validate the top-k neighbour classifier and predict query edges",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.runNeighbours,
	}
	addDatasetFlags(neighboursCmd)
	neighboursCmd.Flags().Int("k", 0, "Neighbourhood size")
	neighboursCmd.Flags().Duration("time-limit", 0, "Time budget per neighbour scan (e.g. 200s)")
	neighboursCmd.Flags().String("output", "summary", "Report format: summary, json, compact")
	rootCmd.AddCommand(neighboursCmd)

	// Train command
	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "Fit the split baseline on a feature file and predict another",
		RunE:  a.runTrain,
	}
	trainCmd.Flags().String("train", "", "Labelled training feature file")
	trainCmd.Flags().String("dev", "", "Labelled validation feature file to score")
	trainCmd.Flags().String("test", "", "Unlabelled feature file to predict")
	trainCmd.Flags().String("classifier", "split", "Classifier: split or random")
	trainCmd.Flags().IntSlice("columns", []int{0, 1}, "Feature columns summed by the split classifier")
	trainCmd.Flags().String("out", "", "Output directory (overrides config)")
	trainCmd.MarkFlagRequired("train")
	rootCmd.AddCommand(trainCmd)

	// Evaluate command
	evaluateCmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a prediction file against a labelled feature file",
		RunE:  a.runEvaluate,
	}
	evaluateCmd.Flags().String("features", "", "Labelled feature file (ground truth)")
	evaluateCmd.Flags().String("predictions", "", "Prediction file")
	evaluateCmd.Flags().String("output", "summary", "Report format: summary, json, compact")
	evaluateCmd.Flags().Int("roc-step", 0, "Also print every n-th ROC point")
	evaluateCmd.Flags().String("save", "", "Save the result as JSON")
	evaluateCmd.MarkFlagRequired("features")
	evaluateCmd.MarkFlagRequired("predictions")
	rootCmd.AddCommand(evaluateCmd)

	return rootCmd
}

func addDatasetFlags(cmd *cobra.Command) {
	cmd.Flags().String("queries", "", "Query file of edges to predict")
	cmd.Flags().String("out", "", "Output directory (overrides config)")
	cmd.Flags().Int("training-limit", 0, "Real edges in the training graph")
	cmd.Flags().Int("dev-limit", 0, "Real edges held out for validation")
	cmd.Flags().Uint64("seed", 0, "Random seed for shuffling and sampling")
}
