package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/storychain/internal/articles"
	"horse.fit/storychain/internal/cli"
	"horse.fit/storychain/internal/config"
	"horse.fit/storychain/internal/db"
	"horse.fit/storychain/internal/pipeline"
)

// chainFlags are the per-run overrides shared by chain and compare. Only
// flags the user actually set are layered over the config and profile.
type chainFlags struct {
	profilePath         *string
	similarityThreshold *float64
	confidenceThreshold *float64
	decayWindowDays     *float64
	maxValidations      *int
	fallbackTopN        *int
	keywordCount        *int
	maxFeatures         *int
	excerptChars        *int
	concurrency         *int
	noJudge             *bool
	allowCrossLanguage  *bool
}

func addChainFlags(fs *flag.FlagSet) *chainFlags {
	return &chainFlags{
		profilePath:         fs.String("options", "", "YAML file of chain option overrides"),
		similarityThreshold: fs.Float64("similarity-threshold", pipeline.DefaultSimilarityThreshold, "Minimum cosine similarity for candidate pairs"),
		confidenceThreshold: fs.Float64("confidence-threshold", pipeline.DefaultConfidenceThreshold, "Minimum judge confidence to accept a pair"),
		decayWindowDays:     fs.Float64("decay-window", pipeline.DefaultDecayWindowDays, "Days over which the temporal weight decays to zero"),
		maxValidations:      fs.Int("max-validations", 0, "Judge call budget (0 = every candidate)"),
		fallbackTopN:        fs.Int("fallback-top-n", pipeline.DefaultFallbackTopN, "Candidates accepted in similarity-only mode (0 = all)"),
		keywordCount:        fs.Int("keywords", pipeline.DefaultKeywordCount, "Keywords extracted per article"),
		maxFeatures:         fs.Int("max-features", pipeline.DefaultMaxFeatures, "TF-IDF vocabulary cap"),
		excerptChars:        fs.Int("excerpt-chars", pipeline.DefaultExcerptChars, "Content characters sent to the judge per article"),
		concurrency:         fs.Int("concurrency", 0, "Concurrent judge calls (0 = JUDGE_CONCURRENCY)"),
		noJudge:             fs.Bool("no-judge", false, "Skip the judge and accept top candidates by similarity"),
		allowCrossLanguage:  fs.Bool("allow-cross-language", false, "Pair articles detected in different languages"),
	}
}

// resolveSettings layers env defaults, the optional profile file, then the
// flags set on the command line.
func (f *chainFlags) resolveSettings(fs *flag.FlagSet, base config.ChainSettings) (config.ChainSettings, error) {
	profile, err := config.LoadChainProfile(*f.profilePath)
	if err != nil {
		return base, err
	}
	settings, err := profile.Apply(base)
	if err != nil {
		return base, err
	}

	overrides := &config.ChainProfile{}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "similarity-threshold":
			overrides.SimilarityThreshold = f.similarityThreshold
		case "confidence-threshold":
			overrides.ConfidenceThreshold = f.confidenceThreshold
		case "decay-window":
			overrides.DecayWindowDays = f.decayWindowDays
		case "max-validations":
			overrides.MaxValidations = f.maxValidations
		case "fallback-top-n":
			overrides.FallbackTopN = f.fallbackTopN
		case "keywords":
			overrides.KeywordCount = f.keywordCount
		case "max-features":
			overrides.MaxFeatures = f.maxFeatures
		case "excerpt-chars":
			overrides.ExcerptChars = f.excerptChars
		case "no-judge":
			enabled := !*f.noJudge
			overrides.AdjudicationEnabled = &enabled
		case "allow-cross-language":
			skip := !*f.allowCrossLanguage
			overrides.SkipCrossLanguage = &skip
		}
	})
	return overrides.Apply(settings)
}

func (f *chainFlags) chainOptions(settings config.ChainSettings, cfg *config.Config, logger zerolog.Logger) pipeline.ChainOptions {
	opts := pipeline.OptionsFromSettings(settings)
	opts.Concurrency = cfg.JudgeConcurrency
	if *f.concurrency > 0 {
		opts.Concurrency = *f.concurrency
	}
	opts.Progress = progressLogger(logger)
	return opts
}

// progressLogger logs stage boundaries at info and adjudication ticks at debug.
func progressLogger(logger zerolog.Logger) pipeline.ProgressFunc {
	return func(p pipeline.Progress) {
		event := logger.Info()
		if p.Stage == pipeline.StageValidation {
			event = logger.Debug()
		}
		event.
			Str("stage", string(p.Stage)).
			Int("current", p.Current).
			Int("total", p.Total).
			Msg("chain progress")
	}
}

type chainSession struct {
	cfg      *config.Config
	logger   zerolog.Logger
	settings config.ChainSettings
	options  pipeline.ChainOptions
	service  *pipeline.Service
	closeFn  func()
}

// openChainSession loads config and builds the chaining service. A non-zero
// exit code means the command should stop.
func openChainSession(ctx context.Context, fs *flag.FlagSet, envLoader *cli.EnvLoader, flags *chainFlags) (*chainSession, int) {
	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, 1
	}

	settings, err := flags.resolveSettings(fs, cfg.ChainSettings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid chain options: %v\n", err)
		return nil, 2
	}

	var (
		adjudicator pipeline.Adjudicator
		closeFn     = func() {}
	)
	if settings.AdjudicationEnabled {
		adjudicator, closeFn, err = buildAdjudicator(ctx, cfg, settings.ExcerptChars, logger)
		if err != nil {
			logger.Error().Err(err).Msg("judge setup failed")
			fmt.Fprintf(os.Stderr, "Judge setup failed: %v\n", err)
			return nil, 1
		}
	}

	return &chainSession{
		cfg:      cfg,
		logger:   logger,
		settings: settings,
		options:  flags.chainOptions(settings, cfg, logger),
		service:  pipeline.NewService(adjudicator, logger),
		closeFn:  closeFn,
	}, 0
}

// loadArticleTable reads the input and maps schema errors to exit code 2.
func loadArticleTable(path string) ([]pipeline.ArticleInput, int) {
	inputs, err := articles.LoadFile(path)
	if err != nil {
		if articles.IsSchemaError(err) {
			fmt.Fprintf(os.Stderr, "Schema error: %v\n", err)
			return nil, 2
		}
		fmt.Fprintf(os.Stderr, "Failed to load articles: %v\n", err)
		return nil, 1
	}
	return inputs, 0
}

func runChain(args []string) int {
	fs := flag.NewFlagSet("chain", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	input := fs.String("input", "", "Article table (.json or .csv, required)")
	output := fs.String("output", "-", "Output path (- for stdout)")
	format := fs.String("format", outputFormatJSON, "Output format: json or csv")
	persist := fs.Bool("persist", false, "Store the run in the database (requires DATABASE_URL)")
	flags := addChainFlags(fs)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "chain does not accept positional arguments")
		return 2
	}
	inputPath := strings.TrimSpace(*input)
	if inputPath == "" {
		fmt.Fprintln(os.Stderr, "--input is required")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatJSON, outputFormatJSON, outputFormatCSV)
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

	var pool *db.Pool
	if *persist {
		if !session.cfg.HasDatabase() {
			fmt.Fprintln(os.Stderr, "--persist requires DATABASE_URL")
			return 2
		}
		dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err = db.NewPool(dbCtx, session.cfg, session.logger)
		dbCancel()
		if err != nil {
			session.logger.Error().Err(err).Msg("chain failed to connect to database")
			fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
			return 1
		}
		defer pool.Close()
	}

	result, err := session.service.ChainStories(ctx, inputs, session.options)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chaining failed: %v\n", err)
		if errors.Is(err, pipeline.ErrInvalidOptions) {
			return 2
		}
		return 1
	}
	if result.Interrupted {
		fmt.Fprintln(os.Stderr, "Interrupted: unvalidated candidates were left unlinked")
	}

	out := articles.BuildOutput(result)
	if err := writeChainOutput(*output, outputFormat, out); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		return 1
	}

	if pool != nil {
		record, err := db.BuildChainRunRecord(result, inputPath, session.settings)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to build run record: %v\n", err)
			return 1
		}
		saveCtx, saveCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer saveCancel()
		runUUID, err := pool.SaveChainRun(saveCtx, record)
		if err != nil {
			session.logger.Error().Err(err).Msg("save chain run failed")
			fmt.Fprintf(os.Stderr, "Failed to store chain run: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "stored run %s\n", runUUID)
	}

	fmt.Fprintf(
		os.Stderr,
		"chain mode=%s articles=%d candidates=%d accepted=%d chains=%d singletons=%d judge_calls=%d\n",
		result.Mode,
		len(result.Articles),
		len(result.Candidates),
		len(result.Accepted),
		result.Stats.Chains,
		result.Stats.Singletons,
		result.JudgeCalls,
	)
	return 0
}

func writeChainOutput(path, format string, out articles.ChainOutput) error {
	var w io.Writer = os.Stdout
	trimmed := strings.TrimSpace(path)
	if trimmed != "" && trimmed != "-" {
		file, err := os.Create(trimmed)
		if err != nil {
			return fmt.Errorf("create %s: %w", trimmed, err)
		}
		defer file.Close()
		w = file
	}

	if format == outputFormatCSV {
		return articles.WriteCSV(w, out)
	}
	return articles.WriteJSON(w, out)
}
