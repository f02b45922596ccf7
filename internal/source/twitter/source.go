package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/trend-agent/internal/config"
	"github.com/trend-agent/internal/source"
	"github.com/trend-agent/pkg/logger"
)

// DefaultWOEIDs maps region codes to Yahoo "where on earth" ids
var DefaultWOEIDs = map[string]int64{
	"WORLDWIDE": 1,
	"US":        23424977,
	"GB":        23424975,
	"CA":        23424775,
	"IN":        23424848,
	"AU":        23424748,
}

// Source implements TrendSource for the v1.1 trends/place endpoint
type Source struct {
	baseURL  string
	client   *http.Client
	executor failsafe.Executor[*http.Response]
	woeids   map[string]int64
	log      *logger.Logger
}

type placeTrends struct {
	Trends []struct {
		Name string `json:"name"`
	} `json:"trends"`
}

// New creates a trends source authenticated with an app-only bearer token
// obtained from the API key and secret
func New(tw config.TwitterConfig, cfg config.TrendsConfig, log *logger.Logger) *Source {
	base := &http.Client{Timeout: cfg.Timeout}

	cc := &clientcredentials.Config{
		ClientID:     tw.APIKey,
		ClientSecret: tw.APISecret,
		TokenURL:     tw.TokenURL,
	}
	client := cc.Client(context.WithValue(context.Background(), oauth2.HTTPClient, base))
	client.Timeout = cfg.Timeout

	woeids := make(map[string]int64, len(DefaultWOEIDs)+len(cfg.WOEIDOverrides))
	for region, id := range DefaultWOEIDs {
		woeids[region] = id
	}
	for region, id := range cfg.WOEIDOverrides {
		woeids[strings.ToUpper(region)] = id
	}

	return &Source{
		baseURL:  strings.TrimRight(tw.BaseURL, "/"),
		client:   client,
		executor: failsafe.With(newRetryPolicy(cfg.Retries, 500*time.Millisecond)),
		woeids:   woeids,
		log:      log.WithSource("twitter", "trends-place"),
	}
}

// shouldRetry retries network errors, rate limits and server errors
func shouldRetry(resp *http.Response, err error) bool {
	if err != nil || resp == nil {
		return true
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
}

func newRetryPolicy(retries int, delay time.Duration) retrypolicy.RetryPolicy[*http.Response] {
	if retries < 0 {
		retries = 0
	}
	return retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(delay, 10*delay).
		WithMaxRetries(retries).
		WithJitterFactor(0.1).
		HandleIf(shouldRetry).
		Build()
}

// Name returns "twitter"
func (s *Source) Name() string {
	return "twitter"
}

// WOEID resolves a region code, falling back to worldwide
func (s *Source) WOEID(region string) int64 {
	if id, ok := s.woeids[strings.ToUpper(strings.TrimSpace(region))]; ok {
		return id
	}
	return DefaultWOEIDs["WORLDWIDE"]
}

// Fetch returns trend names in the order the API ranks them
func (s *Source) Fetch(ctx context.Context, region string) ([]string, error) {
	woeid := s.WOEID(region)
	endpoint := fmt.Sprintf("%s/1.1/trends/place.json?id=%d", s.baseURL, woeid)

	resp, err := s.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		resp, err := s.client.Do(req)
		if shouldRetry(resp, err) && resp != nil {
			_ = resp.Body.Close()
		}
		return resp, err
	})
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return nil, fmt.Errorf("failed to fetch trends for woeid %d: %w", woeid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trends API returned status %d", resp.StatusCode)
	}

	var places []placeTrends
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("failed to decode trends response: %w", err)
	}

	var names []string
	for _, place := range places {
		for _, t := range place.Trends {
			names = append(names, t.Name)
		}
	}

	s.log.Info().
		Int("count", len(names)).
		Int64("woeid", woeid).
		Msg("Fetched platform trends")

	return names, nil
}

// Ensure Source implements source.TrendSource
var _ source.TrendSource = (*Source)(nil)
