package pipeline

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/trend-agent/internal/ai"
	"github.com/trend-agent/internal/config"
	"github.com/trend-agent/internal/formatter"
	"github.com/trend-agent/internal/models"
	"github.com/trend-agent/internal/storage"
	"github.com/trend-agent/pkg/logger"
	"github.com/trend-agent/pkg/metrics"
)

// SourceManual marks a trend given on the command line
const SourceManual = "manual"

// TrendFetcher returns candidate trends and never fails
type TrendFetcher interface {
	FetchTrends(ctx context.Context, region string) []models.Trend
}

// TextGenerator produces raw text for a prompt
type TextGenerator interface {
	GenerateDetailed(ctx context.Context, prompt string) (ai.Generation, bool)
}

// Publisher submits the final post
type Publisher interface {
	Publish(ctx context.Context, text string) (*models.PostResult, error)
}

// RunTracker mirrors finished runs somewhere humans look
type RunTracker interface {
	AppendRun(ctx context.Context, run *models.RunRecord) error
}

// Agent runs one trend-to-post cycle
type Agent struct {
	trends    TrendFetcher
	generator TextGenerator
	formatter *formatter.Formatter
	publisher Publisher
	config    config.GenerationConfig
	region    string

	repository storage.Repository
	tracker    RunTracker
	metrics    *metrics.Metrics
	rng        *rand.Rand
	now        func() time.Time
	log        *logger.Logger
}

// Option configures an Agent
type Option func(*Agent)

// WithRepository records every run into the history store
func WithRepository(repo storage.Repository) Option {
	return func(a *Agent) { a.repository = repo }
}

// WithTracker mirrors every run into a tracker
func WithTracker(t RunTracker) Option {
	return func(a *Agent) { a.tracker = t }
}

// WithMetrics records run metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

// WithRand sets the random source for trend and template picks
func WithRand(rng *rand.Rand) Option {
	return func(a *Agent) { a.rng = rng }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// NewAgent creates a new pipeline agent
func NewAgent(
	trends TrendFetcher,
	generator TextGenerator,
	postFormatter *formatter.Formatter,
	publisher Publisher,
	genConfig config.GenerationConfig,
	region string,
	log *logger.Logger,
	opts ...Option,
) *Agent {
	a := &Agent{
		trends:    trends,
		generator: generator,
		formatter: postFormatter,
		publisher: publisher,
		config:    genConfig,
		region:    region,
		now:       time.Now,
		log:       log.WithComponent("pipeline"),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.rng == nil {
		a.rng = rand.New(rand.NewSource(a.now().UnixNano()))
	}
	return a
}

// RunOptions tunes a single run
type RunOptions struct {
	DryRun bool
	Region string // overrides the configured region
	Trend  string // skips discovery when set
}

// RunResult contains the result of one run
type RunResult struct {
	Trend      models.Trend
	Candidates []models.Trend
	Prompt     string
	Content    string
	Origin     models.ContentOrigin
	Backend    string
	Post       *models.PostResult
	Duration   time.Duration
}

// Run executes one cycle. Only context cancellation is reported as an error;
// every other failure degrades to the fallback path or shows up in the result.
func (a *Agent) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	start := a.now()
	result := &RunResult{}

	region := a.region
	if opts.Region != "" {
		region = opts.Region
	}

	a.log.Info().
		Str("region", region).
		Bool("dry_run", opts.DryRun).
		Msg("Starting run")

	// Step 1: trends
	if opts.Trend != "" {
		result.Candidates = []models.Trend{{Name: opts.Trend, Source: SourceManual}}
	} else {
		result.Candidates = a.trends.FetchTrends(ctx, region)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if len(result.Candidates) == 0 {
		return result, errors.New("no trend candidates")
	}

	result.Trend = result.Candidates[a.rng.Intn(len(result.Candidates))]
	log := a.log.WithTrend(result.Trend.Name)
	log.Info().
		Str("source", result.Trend.Source).
		Int("candidates", len(result.Candidates)).
		Msg("Trend selected")

	// Step 2: generate
	result.Prompt = ai.BuildPrompt(a.config.PromptTemplate, result.Trend.Name)
	gen, ok := a.generator.GenerateDetailed(ctx, result.Prompt)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	// Step 3: format or fall back
	if ok {
		result.Content = a.formatter.Format(gen.Text, result.Trend.Name)
		result.Origin = models.ContentGenerated
		result.Backend = gen.Backend
	}
	if result.Content == "" {
		if ok {
			log.Warn().Str("backend", gen.Backend).Msg("Formatted post is empty, using fallback template")
		} else {
			log.Warn().Msg("All generation backends failed, using fallback template")
		}
		result.Content = a.fallbackPost(result.Trend.Name)
		result.Origin = models.ContentFallback
		result.Backend = ""
	}
	if a.metrics != nil {
		a.metrics.ObserveGeneration(result.Backend, result.Origin == models.ContentGenerated)
	}

	log.Info().
		Str("origin", string(result.Origin)).
		Str("content", result.Content).
		Msg("Post ready")

	// Step 4: publish
	if opts.DryRun {
		result.Post = &models.PostResult{
			Outcome: models.PostOutcomeSkipped,
			Reason:  "dry run",
		}
		log.Info().Msg("Dry run, not publishing")
	} else {
		post, err := a.publisher.Publish(ctx, result.Content)
		result.Post = post
		if err != nil {
			return result, err
		}
	}

	result.Duration = a.now().Sub(start)

	// Step 5: record
	a.record(ctx, result, opts.DryRun)

	log.Info().
		Str("outcome", string(result.Post.Outcome)).
		Str("post_id", result.Post.PostID).
		Int("attempts", result.Post.Attempts).
		Dur("duration", result.Duration).
		Msg("Run completed")

	return result, nil
}

// fallbackPost renders a random fallback template for trend
func (a *Agent) fallbackPost(trend string) string {
	templates := a.config.FallbackTemplates
	if len(templates) == 0 {
		return ""
	}
	tmpl := templates[a.rng.Intn(len(templates))]
	return RenderFallback(tmpl, trend, a.formatter.Policy())
}

// RenderFallback fills {trend} and {trend_clean} and applies the length
// limit. Fallback posts skip the rest of the formatter.
func RenderFallback(template, trend string, policy formatter.Policy) string {
	text := strings.NewReplacer(
		"{trend_clean}", formatter.Compact(trend),
		"{trend}", trend,
	).Replace(template)
	return formatter.Truncate(text, policy.MaxLength, policy.TruncateLength, policy.Ellipsis)
}

func (a *Agent) record(ctx context.Context, result *RunResult, dryRun bool) {
	run := &models.RunRecord{
		Trend:           result.Trend.Name,
		TrendSource:     result.Trend.Source,
		CandidateTrends: models.StringSlice(models.TrendNames(result.Candidates)),
		Prompt:          result.Prompt,
		Content:         result.Content,
		ContentOrigin:   result.Origin,
		Backend:         result.Backend,
		Outcome:         result.Post.Outcome,
		PostID:          result.Post.PostID,
		Attempts:        result.Post.Attempts,
		Reason:          result.Post.Reason,
		DryRun:          dryRun,
		DurationMs:      result.Duration.Milliseconds(),
		CreatedAt:       a.now(),
	}

	if a.repository != nil {
		if err := a.repository.RecordRun(ctx, run); err != nil {
			a.log.Warn().Err(err).Msg("Failed to record run history")
		}
	}

	if a.tracker != nil {
		if err := a.tracker.AppendRun(ctx, run); err != nil {
			a.log.Warn().Err(err).Msg("Failed to update tracker")
		}
	}

	if a.metrics != nil {
		a.metrics.ObserveRun(string(run.Outcome), string(run.ContentOrigin), run.Attempts, result.Duration, run.CreatedAt)
	}
}
