package source

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/trend-agent/internal/models"
	"github.com/trend-agent/pkg/logger"
	"github.com/trend-agent/pkg/metrics"
	"github.com/trend-agent/pkg/ratelimit"
)

// SourceFallback marks trends that came from the static fallback list
const SourceFallback = "fallback"

// TrendSource defines the interface for trend discovery providers
type TrendSource interface {
	// Name returns the unique name of this source
	Name() string

	// Fetch returns raw trend names for a region, most relevant first
	Fetch(ctx context.Context, region string) ([]string, error)
}

// FilterConfig controls which raw trends become candidates
type FilterConfig struct {
	MinLength     int      // in runes, shorter entries are dropped
	MaxCandidates int
	Strict        bool     // letters and spaces only
	Fallback      []string // used on any error or empty result
}

// DefaultFilterConfig returns the production filter
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MinLength:     5,
		MaxCandidates: 5,
		Fallback:      []string{"AI", "Climate", "Healthcare"},
	}
}

// Filter cleans raw names and keeps at most MaxCandidates, in source order
func Filter(raw []string, cfg FilterConfig) []string {
	seen := make(map[string]bool, len(raw))
	var out []string

	for _, name := range raw {
		if cfg.MaxCandidates > 0 && len(out) >= cfg.MaxCandidates {
			break
		}

		name = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), "#"))
		if utf8.RuneCountInString(name) < cfg.MinLength || name == "" {
			continue
		}
		if isNumeric(name) {
			continue
		}
		if cfg.Strict && !lettersAndSpaces(name) {
			continue
		}

		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func lettersAndSpaces(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && r != ' ' {
			return false
		}
	}
	return true
}

// Fetcher wraps one provider with filtering and the static fallback
type Fetcher struct {
	source  TrendSource
	filter  FilterConfig
	limiter *ratelimit.MultiLimiter
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewFetcher creates a fetcher. A nil limiter disables pacing.
func NewFetcher(src TrendSource, filter FilterConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Fetcher {
	return &Fetcher{
		source:  src,
		filter:  filter,
		limiter: limiter,
		log:     log.WithComponent("trends"),
	}
}

// WithMetrics counts every retrieval, labelled with the provider name
func (f *Fetcher) WithMetrics(m *metrics.Metrics) *Fetcher {
	f.metrics = m
	return f
}

// FetchTrends never fails: any provider error or an empty filtered list
// yields the fallback trends.
func (f *Fetcher) FetchTrends(ctx context.Context, region string) []models.Trend {
	names, err := f.fetch(ctx, region)
	if err != nil {
		f.log.Error().Err(err).Str("region", region).Msg("Trend retrieval failed")
		f.metrics.ObserveTrendFetch(f.source.Name(), true)
		return f.fallback()
	}

	names = Filter(names, f.filter)
	if len(names) == 0 {
		f.log.Warn().Str("region", region).Msg("No usable trends, using fallback list")
		f.metrics.ObserveTrendFetch(f.source.Name(), true)
		return f.fallback()
	}

	trends := make([]models.Trend, 0, len(names))
	for _, name := range names {
		trends = append(trends, models.Trend{Name: name, Source: f.source.Name()})
	}

	f.log.Info().
		Int("count", len(trends)).
		Str("source", f.source.Name()).
		Strs("trends", names).
		Msg("Fetched trends")
	f.metrics.ObserveTrendFetch(f.source.Name(), false)

	return trends
}

func (f *Fetcher) fetch(ctx context.Context, region string) ([]string, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, ratelimit.LimiterTrends); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}
	return f.source.Fetch(ctx, region)
}

func (f *Fetcher) fallback() []models.Trend {
	trends := make([]models.Trend, 0, len(f.filter.Fallback))
	for _, name := range f.filter.Fallback {
		trends = append(trends, models.Trend{Name: name, Source: SourceFallback})
	}
	return trends
}
