package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/storychain/internal/cli"
	"horse.fit/storychain/internal/db"
)

func runRuns(args []string) int {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	limit := fs.Int("limit", 20, "Number of recent runs to list")
	runUUID := fs.String("run", "", "Show one run by UUID instead of listing")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "runs does not accept positional arguments")
		return 2
	}
	if *limit <= 0 || *limit > 200 {
		fmt.Fprintln(os.Stderr, "--limit must be between 1 and 200")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable, outputFormatTable, outputFormatJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if !cfg.HasDatabase() {
		fmt.Fprintln(os.Stderr, "runs requires DATABASE_URL")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	if target := strings.TrimSpace(*runUUID); target != "" {
		return showRun(ctx, pool, target, outputFormat)
	}

	runs, err := pool.ListChainRuns(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list chain runs: %v\n", err)
		return 1
	}
	if outputFormat == outputFormatJSON {
		if err := printJSON(os.Stdout, runs); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.RunUUID,
			formatUTCTimestamp(run.StartedAt),
			run.Mode,
			fmt.Sprintf("%d", run.Articles),
			fmt.Sprintf("%d", run.Chains),
			fmt.Sprintf("%d", run.JudgeCalls),
			fmt.Sprintf("%t", run.Interrupted),
			truncateForTable(run.Source, 40),
		})
	}
	if err := writeTable(os.Stdout, []string{"run_uuid", "started_at", "mode", "articles", "chains", "judge_calls", "interrupted", "source"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render runs table: %v\n", err)
		return 1
	}
	return 0
}

func showRun(ctx context.Context, pool *db.Pool, runUUID, outputFormat string) int {
	detail, err := pool.GetChainRun(ctx, runUUID)
	if err != nil {
		if db.IsNoRows(err) {
			fmt.Fprintf(os.Stderr, "Chain run %s not found\n", runUUID)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Failed to load chain run: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(os.Stdout, detail); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Printf("run: %s\n", detail.RunUUID)
	fmt.Printf("source: %s\n", detail.Source)
	fmt.Printf("mode: %s  articles: %d  candidates: %d  accepted: %d  judge_calls: %d\n\n",
		detail.Mode, detail.Articles, detail.ChainRunSummary.Candidates, detail.Accepted, detail.JudgeCalls)

	rows := make([][]string, 0, detail.Articles)
	for idx, chain := range detail.Chains {
		for _, member := range chain {
			rows = append(rows, []string{
				fmt.Sprintf("%d", idx+1),
				fmt.Sprintf("%d", member.ArticleIndex),
				member.Date,
				truncateForTable(member.Headline, 70),
			})
		}
	}
	if err := writeTable(os.Stdout, []string{"story", "article", "date", "headline"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render chain table: %v\n", err)
		return 1
	}
	return 0
}
