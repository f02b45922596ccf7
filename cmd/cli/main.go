package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/trend-agent/internal/agent/pipeline"
	"github.com/trend-agent/internal/ai"
	"github.com/trend-agent/internal/app"
	"github.com/trend-agent/internal/config"
	"github.com/trend-agent/internal/credentials"
	"github.com/trend-agent/internal/formatter"
	"github.com/trend-agent/internal/models"
	"github.com/trend-agent/internal/source"
	"github.com/trend-agent/internal/storage"
	"github.com/trend-agent/internal/tracker"
	"github.com/trend-agent/internal/twitter"
	"github.com/trend-agent/pkg/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "trend-agent",
		Short: "Trend-driven posting agent",
		Long: `Picks a currently trending topic, asks a text generation backend for a
short post about it, cleans the text up and publishes it to Twitter/X.`,
		PersistentPreRunE:  initializeApp,
		PersistentPostRunE: closeApp,
		SilenceUsage:       true,
		SilenceErrors:      true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(trendsCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(formatCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(credentialsCmd())
	rootCmd.AddCommand(trackerCmd())

	if err := rootCmd.Execute(); err != nil {
		if log != nil {
			log.Error().Err(err).Msg("Command failed")
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log = logger.New(cfg.Logging.LoggerConfig())

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func closeApp(cmd *cobra.Command, args []string) error {
	if log != nil {
		return log.Close()
	}
	return nil
}

// signalContext ends on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// checkCredentials runs the gate and logs what is missing at critical level
func checkCredentials(cfg *config.Config, log *logger.Logger) error {
	err := credentials.NewGate().Check(credentials.MapLookup(cfg.Credentials()))

	var missing *credentials.MissingError
	if errors.As(err, &missing) {
		log.Critical().Strs("missing", missing.Names).Msg("Missing required credentials")
	}
	return err
}

// ============ RUN COMMAND ============

func runCmd() *cobra.Command {
	var opts pipeline.RunOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one trend-to-post cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			return executeRun(ctx, cfg, log, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "format the post but do not publish it")
	cmd.Flags().StringVar(&opts.Region, "region", "", "trend region (overrides config)")
	cmd.Flags().StringVar(&opts.Trend, "trend", "", "use this trend instead of fetching candidates")
	return cmd
}

// executeRun performs one cycle. Missing credentials fail the command,
// an interrupted run does not.
func executeRun(ctx context.Context, cfg *config.Config, log *logger.Logger, opts pipeline.RunOptions) error {
	if err := checkCredentials(cfg, log); err != nil {
		return err
	}

	if cfg.Publishing.DryRun {
		opts.DryRun = true
	}

	a, err := app.New(cfg, log, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.Pipeline.Run(ctx, opts)
	if err != nil {
		if ctx.Err() != nil {
			log.Info().Msg("interrupted")
			return nil
		}
		return err
	}

	printRunResult(result)
	return nil
}

func printRunResult(r *pipeline.RunResult) {
	fmt.Printf("\n=== Run Result ===\n")
	fmt.Printf("Trend:    %s (%s)\n", r.Trend.Name, r.Trend.Source)
	fmt.Printf("Origin:   %s\n", r.Origin)
	if r.Backend != "" {
		fmt.Printf("Backend:  %s\n", r.Backend)
	}
	fmt.Printf("Outcome:  %s\n", r.Post.Outcome)
	fmt.Printf("Attempts: %d\n", r.Post.Attempts)
	if r.Post.PostID != "" {
		fmt.Printf("Post:     %s\n", tracker.PostURL(r.Post.PostID))
	}
	if r.Post.Reason != "" {
		fmt.Printf("Reason:   %s\n", r.Post.Reason)
	}
	fmt.Printf("Duration: %s\n", r.Duration.Round(time.Millisecond))
	fmt.Printf("\n--- Post ---\n%s\n", r.Content)
}

// ============ TRENDS COMMAND ============

func trendsCmd() *cobra.Command {
	var region string

	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Show the current trend candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			src, err := app.NewTrendSource(cfg, log)
			if err != nil {
				return err
			}
			fetcher := source.NewFetcher(src, cfg.Trends.Filter(), nil, log)

			if region == "" {
				region = cfg.Trends.Region
			}
			trends := fetcher.FetchTrends(ctx, region)

			fmt.Printf("\n=== Trends (%s, %d) ===\n\n", region, len(trends))
			for i, t := range trends {
				fmt.Printf("  [%d] %s (%s)\n", i+1, t.Name, t.Source)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "trend region (overrides config)")
	return cmd
}

// ============ GENERATE COMMAND ============

func generateCmd() *cobra.Command {
	var trend string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate and format a post without publishing",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			backends := app.NewBackends(cfg, cfg.RateLimit.Limiter(), log)
			if len(backends) == 0 {
				return fmt.Errorf("no generation backend has credentials")
			}
			gen := ai.NewGenerator(backends, nil, log)

			prompt := ai.BuildPrompt(cfg.Generation.PromptTemplate, trend)
			result, ok := gen.GenerateDetailed(ctx, prompt)
			if !ok {
				if ctx.Err() != nil {
					log.Info().Msg("interrupted")
					return nil
				}
				return fmt.Errorf("all %d backends failed", len(backends))
			}

			f := formatter.New(cfg.Content.Policy(), nil)
			fmt.Printf("\n=== Generation (%s) ===\n", result.Backend)
			fmt.Printf("\n--- Raw ---\n%s\n", result.Text)
			fmt.Printf("\n--- Formatted ---\n%s\n", f.Format(result.Text, trend))
			return nil
		},
	}

	cmd.Flags().StringVar(&trend, "trend", "", "trend to write about")
	_ = cmd.MarkFlagRequired("trend")
	return cmd
}

// ============ FORMAT COMMAND ============

func formatCmd() *cobra.Command {
	var trend string

	cmd := &cobra.Command{
		Use:   "format [text]",
		Short: "Format text as a post (reads stdin when no text is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw string
			if len(args) == 1 {
				raw = args[0]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				raw = string(data)
			}

			f := formatter.New(cfg.Content.Policy(), nil)
			fmt.Fprintln(cmd.OutOrStdout(), f.Format(raw, trend))
			return nil
		},
	}

	cmd.Flags().StringVar(&trend, "trend", "", "trend used for the hashtags")
	return cmd
}

// ============ HISTORY COMMAND ============

func historyCmd() *cobra.Command {
	var (
		limit   int
		outcome string
		trend   string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if !cfg.Database.Enabled {
				return fmt.Errorf("run history is not enabled in config (database.enabled)")
			}

			repo, err := app.OpenRepository(cfg.Database)
			if err != nil {
				return err
			}
			defer repo.Close()

			filter := storage.DefaultRunFilter()
			filter.Limit = limit
			filter.Trend = trend
			if outcome != "" {
				o := models.PostOutcome(outcome)
				filter.Outcome = &o
			}

			runs, err := repo.ListRuns(ctx, filter)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Runs (%d) ===\n\n", len(runs))
			for _, r := range runs {
				fmt.Printf("[%d] %s | %s | %s | attempts %d\n",
					r.ID, r.CreatedAt.Format(time.RFC1123), r.Outcome, r.ContentOrigin, r.Attempts)
				fmt.Printf("    Trend: %s (%s)\n", r.Trend, r.TrendSource)
				fmt.Printf("    Post: %s\n", logger.Truncate(r.Content, 100))
				if r.PostID != "" {
					fmt.Printf("    URL: %s\n", tracker.PostURL(r.PostID))
				}
				if r.Reason != "" {
					fmt.Printf("    Reason: %s\n", r.Reason)
				}
			}

			counts, err := repo.CountByOutcome(ctx, time.Now().AddDate(0, 0, -7))
			if err != nil {
				return err
			}
			fmt.Printf("\nLast 7 days:")
			for _, o := range []models.PostOutcome{
				models.PostOutcomePublished,
				models.PostOutcomeRateLimited,
				models.PostOutcomeRejected,
				models.PostOutcomeFailed,
				models.PostOutcomeSkipped,
			} {
				fmt.Printf(" %s=%d", o, counts[o])
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	cmd.Flags().StringVar(&outcome, "outcome", "", "filter by outcome")
	cmd.Flags().StringVar(&trend, "trend", "", "filter by trend")
	return cmd
}

// ============ CREDENTIALS COMMANDS ============

func credentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Credential commands",
	}

	cmd.AddCommand(credentialsCheckCmd())
	return cmd
}

func credentialsCheckCmd() *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that every required credential is set",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkCredentials(cfg, log); err != nil {
				return err
			}
			fmt.Println("All required credentials are set")

			if !verify {
				return nil
			}

			ctx, stop := signalContext()
			defer stop()

			client := twitter.NewClient(cfg.Twitter, cfg.RateLimit.Limiter(), log)
			user, err := client.GetMe(ctx)
			if err != nil {
				return fmt.Errorf("twitter credentials rejected: %w", err)
			}
			fmt.Printf("Authenticated as @%s (%s)\n", user.Username, user.Name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "also call the API with the posting credentials")
	return cmd
}

// ============ TRACKER COMMANDS ============

func trackerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tracker",
		Short: "Google Sheets tracker commands",
	}

	cmd.AddCommand(trackerInitCmd())
	cmd.AddCommand(trackerListCmd())
	return cmd
}

func newTracker() (*tracker.SheetsTracker, error) {
	if !cfg.Tracker.Enabled {
		return nil, fmt.Errorf("tracker is not enabled in config")
	}
	t, err := tracker.NewSheetsTracker(cfg.Tracker, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracker: %w", err)
	}
	return t, nil
}

func trackerInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the tracking sheet and its headers",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := newTracker()
			if err != nil {
				return err
			}
			if err := t.InitializeSheet(context.Background()); err != nil {
				return err
			}

			fmt.Printf("Tracker ready: https://docs.google.com/spreadsheets/d/%s\n", cfg.Tracker.SpreadsheetID)
			return nil
		},
	}
}

func trackerListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the latest tracked runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := newTracker()
			if err != nil {
				return err
			}

			runs, err := t.RecentRuns(context.Background(), limit)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Tracked Runs (%d) ===\n\n", len(runs))
			for _, r := range runs {
				fmt.Printf("%s | %-12s | %s\n", r.RecordedAt.Format(time.RFC1123), r.Outcome, r.Trend)
				if r.PostURL != "" {
					fmt.Printf("    %s\n", r.PostURL)
				}
				fmt.Printf("    %s\n", strings.TrimSpace(logger.Truncate(r.Content, 100)))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to show")
	return cmd
}
