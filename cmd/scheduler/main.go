package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/trend-agent/internal/agent/pipeline"
	"github.com/trend-agent/internal/app"
	"github.com/trend-agent/internal/config"
	"github.com/trend-agent/internal/credentials"
	"github.com/trend-agent/pkg/logger"
	"github.com/trend-agent/pkg/metrics"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "trend-scheduler",
		Short: "Background scheduler for the trend agent",
		Long: `Runs one trend-to-post cycle per cron tick. Ticks that fire while a run
is still in progress are skipped. This daemon should be run as a service.`,
		RunE:         runScheduler,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScheduler(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log = logger.New(cfg.Logging.LoggerConfig())
	defer log.Close()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log.Info().Msg("Starting trend agent scheduler")

	err = credentials.NewGate().Check(credentials.MapLookup(cfg.Credentials()))
	var missing *credentials.MissingError
	if errors.As(err, &missing) {
		log.Critical().Strs("missing", missing.Names).Msg("Missing required credentials")
		return err
	}

	m := metrics.New()
	a, err := app.New(cfg, log, m)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start health check and metrics server
	srv := newHTTPServer(cfg.Scheduler.Port, m)
	go func() {
		log.Info().Str("port", cfg.Scheduler.Port).Msg("Health check server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Health server failed")
		}
	}()

	cl := cronLogger{log.WithComponent("cron")}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	_, err = c.AddFunc(cfg.Scheduler.RunCron, func() {
		runOnce(ctx, a.Pipeline, cfg.Publishing.DryRun)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule run job: %w", err)
	}
	log.Info().Str("cron", cfg.Scheduler.RunCron).Msg("Run job scheduled")

	// Start scheduler
	c.Start()
	log.Info().Msg("Scheduler started")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info().Msg("Shutting down scheduler")
	<-c.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runOnce(ctx context.Context, p *pipeline.Agent, dryRun bool) {
	log.Info().Msg("Running scheduled cycle")

	result, err := p.Run(ctx, pipeline.RunOptions{DryRun: dryRun})
	if err != nil {
		if ctx.Err() != nil {
			log.Info().Msg("interrupted")
			return
		}
		log.Error().Err(err).Msg("Scheduled run failed")
		return
	}

	log.Info().
		Str("trend", result.Trend.Name).
		Str("outcome", string(result.Post.Outcome)).
		Msg("Scheduled run completed")
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// newHTTPServer serves /health and /metrics
func newHTTPServer(port string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Trend Agent Scheduler"))
	})

	return &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
