package static

import (
	"context"

	"github.com/trend-agent/internal/config"
	"github.com/trend-agent/internal/source"
	"github.com/trend-agent/pkg/logger"
)

// Source implements TrendSource for a configured keyword list
type Source struct {
	keywords []string
	log      *logger.Logger
}

// New creates a new static source
func New(cfg config.TrendsConfig, log *logger.Logger) *Source {
	return &Source{
		keywords: cfg.Keywords,
		log:      log.WithSource("static", "keywords"),
	}
}

// Name returns "static"
func (s *Source) Name() string {
	return "static"
}

// Fetch returns the configured keywords, whatever the region
func (s *Source) Fetch(ctx context.Context, region string) ([]string, error) {
	s.log.Debug().Int("count", len(s.keywords)).Msg("Returning static keywords as trends")
	return append([]string(nil), s.keywords...), nil
}

// Ensure Source implements source.TrendSource
var _ source.TrendSource = (*Source)(nil)
