package pipeline

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trend-agent/internal/ai"
	"github.com/trend-agent/internal/config"
	"github.com/trend-agent/internal/formatter"
	"github.com/trend-agent/internal/models"
	"github.com/trend-agent/internal/storage"
	"github.com/trend-agent/pkg/logger"
	"github.com/trend-agent/pkg/metrics"
)

var testNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

type staticTrends []models.Trend

func (s staticTrends) FetchTrends(ctx context.Context, region string) []models.Trend {
	return s
}

type fakeGenerator struct {
	text    string
	backend string
	ok      bool
	prompts []string
}

func (g *fakeGenerator) GenerateDetailed(ctx context.Context, prompt string) (ai.Generation, bool) {
	g.prompts = append(g.prompts, prompt)
	if !g.ok {
		return ai.Generation{}, false
	}
	return ai.Generation{Text: g.text, Backend: g.backend, Tried: 1}, true
}

type fakePublisher struct {
	texts  []string
	result *models.PostResult
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, text string) (*models.PostResult, error) {
	p.texts = append(p.texts, text)
	if p.result == nil {
		return &models.PostResult{Outcome: models.PostOutcomePublished, PostID: "1", Attempts: 1}, p.err
	}
	return p.result, p.err
}

type memoryRepo struct {
	runs []*models.RunRecord
	err  error
}

func (r *memoryRepo) RecordRun(ctx context.Context, run *models.RunRecord) error {
	if r.err != nil {
		return r.err
	}
	r.runs = append(r.runs, run)
	return nil
}

func (r *memoryRepo) ListRuns(ctx context.Context, filter storage.RunFilter) ([]*models.RunRecord, error) {
	return r.runs, nil
}

func (r *memoryRepo) CountByOutcome(ctx context.Context, since time.Time) (map[models.PostOutcome]int64, error) {
	return nil, nil
}

func (r *memoryRepo) Close() error   { return nil }
func (r *memoryRepo) Migrate() error { return nil }

type failingTracker struct{ calls int }

func (t *failingTracker) AppendRun(ctx context.Context, run *models.RunRecord) error {
	t.calls++
	return errors.New("sheets unavailable")
}

func genConfig(templates ...string) config.GenerationConfig {
	if len(templates) == 0 {
		templates = []string{"🌍 {trend} matters! Join the discussion. #{trend_clean}"}
	}
	return config.GenerationConfig{
		PromptTemplate:    "Write a tweet about {trend}.",
		FallbackTemplates: templates,
	}
}

func newTestAgent(trends TrendFetcher, gen TextGenerator, pub Publisher, cfg config.GenerationConfig, opts ...Option) *Agent {
	f := formatter.New(formatter.DefaultPolicy(), func() time.Time { return testNow })
	opts = append([]Option{
		WithRand(rand.New(rand.NewSource(1))),
		WithClock(func() time.Time { return testNow }),
	}, opts...)
	return NewAgent(trends, gen, f, pub, cfg, "US", logger.Nop(), opts...)
}

func TestRun_FallbackWhenGenerationFails(t *testing.T) {
	pub := &fakePublisher{}
	repo := &memoryRepo{}
	a := newTestAgent(
		staticTrends{{Name: "Space", Source: "google"}},
		&fakeGenerator{ok: false},
		pub,
		genConfig(),
		WithRepository(repo),
	)

	res, err := a.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, "🌍 Space matters! Join the discussion. #Space", res.Content)
	assert.Equal(t, models.ContentFallback, res.Origin)
	assert.Equal(t, []string{"🌍 Space matters! Join the discussion. #Space"}, pub.texts)
	assert.True(t, res.Post.Published())

	require.Len(t, repo.runs, 1)
	assert.Equal(t, "Space", repo.runs[0].Trend)
	assert.Equal(t, models.ContentFallback, repo.runs[0].ContentOrigin)
	assert.Equal(t, models.StringSlice{"Space"}, repo.runs[0].CandidateTrends)
}

func TestRun_GeneratedTextIsFormatted(t *testing.T) {
	gen := &fakeGenerator{
		ok:      true,
		backend: "anthropic:claude",
		text:    "Breaking news: AI is changing everything! https://t.co/xyz 2023",
	}
	pub := &fakePublisher{}
	a := newTestAgent(staticTrends{{Name: "AI", Source: "google"}}, gen, pub, genConfig())

	res, err := a.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, "AI is changing everything 2026 #AI #AI2026", res.Content)
	assert.Equal(t, models.ContentGenerated, res.Origin)
	assert.Equal(t, "anthropic:claude", res.Backend)
	assert.Equal(t, []string{"Write a tweet about AI."}, gen.prompts)
}

func TestRun_EmptyFormattedTextFallsBack(t *testing.T) {
	gen := &fakeGenerator{ok: true, backend: "hf", text: "https://t.co/abc"}
	a := newTestAgent(staticTrends{{Name: "Rocket Lab"}}, gen, &fakePublisher{}, genConfig("Talk {trend} #{trend_clean}"))
	// no trend hashtags so nothing survives formatting
	a.formatter = formatter.New(func() formatter.Policy {
		p := formatter.DefaultPolicy()
		p.MaxHashtags = 0
		return p
	}(), nil)

	res, err := a.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, "Talk Rocket Lab #RocketLab", res.Content)
	assert.Equal(t, models.ContentFallback, res.Origin)
	assert.Empty(t, res.Backend)
}

func TestRun_DryRunNeverPublishes(t *testing.T) {
	pub := &fakePublisher{}
	repo := &memoryRepo{}
	m := metrics.New()
	a := newTestAgent(staticTrends{{Name: "Space"}}, &fakeGenerator{}, pub, genConfig(),
		WithRepository(repo), WithMetrics(m))

	res, err := a.Run(context.Background(), RunOptions{DryRun: true})
	require.NoError(t, err)

	assert.Empty(t, pub.texts)
	assert.Equal(t, models.PostOutcomeSkipped, res.Post.Outcome)
	require.Len(t, repo.runs, 1)
	assert.True(t, repo.runs[0].DryRun)
}

func TestRun_ManualTrendSkipsDiscovery(t *testing.T) {
	a := newTestAgent(staticTrends{{Name: "ignored"}}, &fakeGenerator{}, &fakePublisher{}, genConfig())

	res, err := a.Run(context.Background(), RunOptions{Trend: "Mars", DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, models.Trend{Name: "Mars", Source: SourceManual}, res.Trend)
}

func TestRun_RecordingFailuresAreWarnings(t *testing.T) {
	tracker := &failingTracker{}
	a := newTestAgent(staticTrends{{Name: "Space"}}, &fakeGenerator{}, &fakePublisher{}, genConfig(),
		WithRepository(&memoryRepo{err: errors.New("disk full")}),
		WithTracker(tracker),
	)

	res, err := a.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.True(t, res.Post.Published())
	assert.Equal(t, 1, tracker.calls)
}

func TestRun_PublisherOutcomePassesThrough(t *testing.T) {
	pub := &fakePublisher{result: &models.PostResult{
		Outcome:  models.PostOutcomeRejected,
		Attempts: 1,
		Reason:   "duplicate content",
	}}
	repo := &memoryRepo{}
	a := newTestAgent(staticTrends{{Name: "Space"}}, &fakeGenerator{}, pub, genConfig(), WithRepository(repo))

	res, err := a.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.PostOutcomeRejected, res.Post.Outcome)
	require.Len(t, repo.runs, 1)
	assert.Equal(t, "duplicate content", repo.runs[0].Reason)
}

func TestRun_CancelledDuringPublish(t *testing.T) {
	repo := &memoryRepo{}
	pub := &fakePublisher{
		result: &models.PostResult{Attempts: 1},
		err:    context.Canceled,
	}
	a := newTestAgent(staticTrends{{Name: "Space"}}, &fakeGenerator{}, pub, genConfig(), WithRepository(repo))

	_, err := a.Run(context.Background(), RunOptions{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, repo.runs)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pub := &fakePublisher{}
	a := newTestAgent(staticTrends{{Name: "Space"}}, &fakeGenerator{}, pub, genConfig())

	_, err := a.Run(ctx, RunOptions{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, pub.texts)
}

func TestRun_PicksAmongCandidates(t *testing.T) {
	candidates := staticTrends{{Name: "Alpha"}, {Name: "Bravo"}, {Name: "Charlie"}}
	seen := map[string]bool{}

	a := newTestAgent(candidates, &fakeGenerator{}, &fakePublisher{}, genConfig())
	for i := 0; i < 50; i++ {
		res, err := a.Run(context.Background(), RunOptions{DryRun: true})
		require.NoError(t, err)
		seen[res.Trend.Name] = true
	}

	assert.Len(t, seen, 3)
}

func TestRenderFallback(t *testing.T) {
	p := formatter.DefaultPolicy()

	assert.Equal(t, "💡 Share your thoughts on Rocket Lab. #RocketLab",
		RenderFallback("💡 Share your thoughts on {trend}. #{trend_clean}", "Rocket Lab", p))

	long := RenderFallback("{trend}", strings.Repeat("word ", 80), p)
	assert.Equal(t, 250, utf8.RuneCountInString(long))
	assert.True(t, strings.HasSuffix(long, "…"))
}
