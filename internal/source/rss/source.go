package rss

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/trend-agent/internal/config"
	"github.com/trend-agent/internal/source"
	"github.com/trend-agent/pkg/logger"
)

// Source implements TrendSource for the Google Trends daily RSS feed
type Source struct {
	urlTemplate string
	parser      *gofeed.Parser
	log         *logger.Logger
}

// New creates a Google Trends source. The URL template takes a {region}
// placeholder.
func New(cfg config.TrendsConfig, log *logger.Logger) *Source {
	parser := gofeed.NewParser()
	parser.UserAgent = "trend-agent/1.0"
	parser.Client = &http.Client{Timeout: cfg.Timeout}

	return &Source{
		urlTemplate: cfg.GoogleURL,
		parser:      parser,
		log:         log.WithSource("rss", "google-trends"),
	}
}

// Name returns "google"
func (s *Source) Name() string {
	return "google"
}

// Fetch returns item titles in feed order
func (s *Source) Fetch(ctx context.Context, region string) ([]string, error) {
	feedURL := strings.ReplaceAll(s.urlTemplate, "{region}", url.QueryEscape(region))
	s.log.Debug().Str("url", feedURL).Msg("Fetching trends feed")

	feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trends feed for %s: %w", region, err)
	}

	titles := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		if title := cleanText(item.Title); title != "" {
			titles = append(titles, title)
		}
	}

	s.log.Info().
		Int("count", len(titles)).
		Str("region", region).
		Msg("Fetched trends feed")

	return titles, nil
}

// cleanText removes HTML tags and extra whitespace
func cleanText(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
		} else if r == '>' {
			inTag = false
		} else if !inTag {
			result.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(result.String()), " ")
}

// Ensure Source implements source.TrendSource
var _ source.TrendSource = (*Source)(nil)
