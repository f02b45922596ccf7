package app

import (
	"errors"
	"fmt"

	"github.com/trend-agent/internal/agent/pipeline"
	"github.com/trend-agent/internal/agent/publisher"
	"github.com/trend-agent/internal/ai"
	"github.com/trend-agent/internal/config"
	"github.com/trend-agent/internal/formatter"
	"github.com/trend-agent/internal/source"
	"github.com/trend-agent/internal/source/rss"
	"github.com/trend-agent/internal/source/static"
	trendstwitter "github.com/trend-agent/internal/source/twitter"
	"github.com/trend-agent/internal/storage"
	"github.com/trend-agent/internal/storage/sqlite"
	"github.com/trend-agent/internal/tracker"
	"github.com/trend-agent/internal/twitter"
	"github.com/trend-agent/pkg/logger"
	"github.com/trend-agent/pkg/metrics"
	"github.com/trend-agent/pkg/ratelimit"
)

// App holds every component both binaries wire together
type App struct {
	Config    *config.Config
	Log       *logger.Logger
	Limiter   *ratelimit.MultiLimiter
	Fetcher   *source.Fetcher
	Generator *ai.Generator
	Formatter *formatter.Formatter
	Twitter   *twitter.Client
	Publisher *publisher.Agent
	Pipeline  *pipeline.Agent
	Repo      storage.Repository
	Tracker   *tracker.SheetsTracker
	Metrics   *metrics.Metrics
}

// New builds the application from configuration. m may be nil.
func New(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (*App, error) {
	a := &App{
		Config:  cfg,
		Log:     log,
		Limiter: cfg.RateLimit.Limiter(),
		Metrics: m,
	}

	src, err := NewTrendSource(cfg, log)
	if err != nil {
		return nil, err
	}
	a.Fetcher = source.NewFetcher(src, cfg.Trends.Filter(), a.Limiter, log).WithMetrics(m)
	a.Generator = ai.NewGenerator(NewBackends(cfg, a.Limiter, log), nil, log)
	a.Formatter = formatter.New(cfg.Content.Policy(), nil)
	a.Twitter = twitter.NewClient(cfg.Twitter, a.Limiter, log)
	a.Publisher = publisher.NewAgent(a.Twitter, cfg.Publishing.RetryPolicy(), log)

	opts := []pipeline.Option{pipeline.WithMetrics(m)}

	if cfg.Database.Enabled {
		repo, err := OpenRepository(cfg.Database)
		if err != nil {
			return nil, err
		}
		a.Repo = repo
		opts = append(opts, pipeline.WithRepository(repo))
	}

	if cfg.Tracker.Enabled {
		t, err := tracker.NewSheetsTracker(cfg.Tracker, log)
		if err != nil {
			log.Warn().Err(err).Msg("Tracker disabled")
		} else if t != nil {
			a.Tracker = t
			opts = append(opts, pipeline.WithTracker(t))
		}
	}

	a.Pipeline = pipeline.NewAgent(
		a.Fetcher,
		a.Generator,
		a.Formatter,
		a.Publisher,
		cfg.Generation,
		cfg.Trends.Region,
		log,
		opts...,
	)

	return a, nil
}

// Close releases the history store
func (a *App) Close() error {
	if a.Repo == nil {
		return nil
	}
	return a.Repo.Close()
}

// NewTrendSource returns the configured trend provider
func NewTrendSource(cfg *config.Config, log *logger.Logger) (source.TrendSource, error) {
	switch cfg.Trends.Provider {
	case "google":
		return rss.New(cfg.Trends, log), nil
	case "twitter":
		return trendstwitter.New(cfg.Twitter, cfg.Trends, log), nil
	case "static":
		return static.New(cfg.Trends, log), nil
	default:
		return nil, fmt.Errorf("unknown trends provider %q", cfg.Trends.Provider)
	}
}

// NewBackends returns every generation backend that has credentials
func NewBackends(cfg *config.Config, limiter *ratelimit.MultiLimiter, log *logger.Logger) []ai.Backend {
	var backends []ai.Backend
	if cfg.HuggingFace.APIToken != "" {
		backends = append(backends, ai.NewHuggingFaceBackends(cfg.HuggingFace, limiter, log)...)
	}
	if cfg.Anthropic.APIKey != "" {
		backends = append(backends, ai.NewAnthropic(cfg.Anthropic, limiter, log))
	}
	if cfg.OpenAI.APIKey != "" {
		backends = append(backends, ai.NewOpenAI(cfg.OpenAI, limiter, log))
	}
	return backends
}

// OpenRepository opens and migrates the history store
func OpenRepository(cfg config.DatabaseConfig) (storage.Repository, error) {
	if cfg.Driver != "sqlite" {
		return nil, fmt.Errorf("database driver %q is not supported", cfg.Driver)
	}

	repo, err := sqlite.New(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := repo.Migrate(); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to run migrations: %w", err), repo.Close())
	}
	return repo, nil
}
