package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"horse.fit/storychain/internal/cli"
	"horse.fit/storychain/internal/globaltime"
	"horse.fit/storychain/internal/pipeline"
)

func runCompare(args []string) int {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	input := fs.String("input", "", "Article table (.json or .csv, required)")
	baselineThreshold := fs.Float64("baseline-threshold", pipeline.DefaultBaselineThreshold, "Similarity threshold of the greedy baseline")
	format := fs.String("format", outputFormatTable, "Output format: table or json")
	flags := addChainFlags(fs)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "compare does not accept positional arguments")
		return 2
	}
	inputPath := strings.TrimSpace(*input)
	if inputPath == "" {
		fmt.Fprintln(os.Stderr, "--input is required")
		return 2
	}
	if *baselineThreshold < 0 || *baselineThreshold > 1 {
		fmt.Fprintln(os.Stderr, "--baseline-threshold must be within [0,1]")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable, outputFormatTable, outputFormatJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	inputs, code := loadArticleTable(inputPath)
	if code != 0 {
		return code
	}

	ctx, stop := signalContext()
	defer stop()

	session, code := openChainSession(ctx, fs, envLoader, flags)
	if code != 0 {
		return code
	}
	defer session.closeFn()

	result, err := session.service.ChainStories(ctx, inputs, session.options)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chaining failed: %v\n", err)
		if errors.Is(err, pipeline.ErrInvalidOptions) {
			return 2
		}
		return 1
	}

	baselineStart := globaltime.UTC()
	baseline := pipeline.BaselineChains(result.Articles, session.settings.MaxFeatures, *baselineThreshold)
	comparison := pipeline.Compare(baseline, result.Chains)
	comparison.BaselineElapsed = globaltime.Since(baselineStart)
	comparison.ChainedElapsed = result.Elapsed
	comparison.JudgeCalls = result.JudgeCalls

	session.logger.Info().
		Int("baseline_chains", comparison.Baseline.Chains).
		Int("chains", comparison.Chained.Chains).
		Int("split", comparison.Split).
		Msg("comparison completed")

	if outputFormat == outputFormatJSON {
		if err := printJSON(os.Stdout, comparison); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	if err := writeComparisonTable(comparison); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render comparison: %v\n", err)
		return 1
	}
	return 0
}

func writeComparisonTable(c pipeline.Comparison) error {
	rows := [][]string{
		{"chains", fmt.Sprintf("%d", c.Baseline.Chains), fmt.Sprintf("%d", c.Chained.Chains), fmt.Sprintf("%+d", c.ChainDelta)},
		{"average_size", fmt.Sprintf("%.2f", c.Baseline.AverageSize), fmt.Sprintf("%.2f", c.Chained.AverageSize), fmt.Sprintf("%+.2f", c.AverageDelta)},
		{"max_size", fmt.Sprintf("%d", c.Baseline.MaxSize), fmt.Sprintf("%d", c.Chained.MaxSize), fmt.Sprintf("%+d", c.MaxDelta)},
		{"singletons", fmt.Sprintf("%d", c.Baseline.Singletons), fmt.Sprintf("%d", c.Chained.Singletons), fmt.Sprintf("%+d", c.SingletonDelta)},
		{"elapsed", c.BaselineElapsed.String(), c.ChainedElapsed.String(), ""},
	}
	if err := writeTable(os.Stdout, []string{"metric", "baseline", "chained", "delta"}, rows); err != nil {
		return err
	}
	fmt.Printf("\njudge_calls=%d split_baseline_groups=%d\n", c.JudgeCalls, c.Split)
	return nil
}
