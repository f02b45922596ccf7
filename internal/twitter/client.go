package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/trend-agent/internal/config"
	"github.com/trend-agent/pkg/logger"
	"github.com/trend-agent/pkg/ratelimit"
)

// Client handles the v2 posting API with OAuth 1.0a user context
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// NewClient creates a new posting client that signs every request
func NewClient(cfg config.TwitterConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Client {
	base := &http.Client{Timeout: cfg.Timeout}
	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, base)

	oauthConfig := oauth1.NewConfig(cfg.APIKey, cfg.APISecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessSecret)

	httpClient := oauthConfig.Client(ctx, token)
	httpClient.Timeout = cfg.Timeout

	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		rateLimiter: limiter,
		log:         log.WithComponent("twitter"),
	}
}

// do performs a signed request
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	if err := c.rateLimiter.Wait(ctx, ratelimit.LimiterTwitter); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Msg("Making Twitter API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	c.log.Debug().
		Int("status", resp.StatusCode).
		Msg("Twitter API response")

	return resp, nil
}

// User is the authenticated account
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// GetMe verifies the user-context credentials
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	resp, err := c.do(ctx, http.MethodGet, "/2/users/me", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, classify(resp, body)
	}

	var out struct {
		Data User `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &out.Data, nil
}

type tweetRequest struct {
	Text string `json:"text"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

// CreateTweet publishes text and returns the platform-assigned id
func (c *Client) CreateTweet(ctx context.Context, text string) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/2/tweets", tweetRequest{Text: text})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", classify(resp, body)
	}

	var out tweetResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to decode tweet response: %w", err)
	}
	if out.Data.ID == "" {
		return "", &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	return out.Data.ID, nil
}

// classify maps an error response onto the typed errors
func classify(resp *http.Response, body []byte) error {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &RateLimitError{Reset: parseReset(resp.Header.Get("x-rate-limit-reset"))}
	case http.StatusForbidden:
		var problem struct {
			Detail string `json:"detail"`
			Errors []struct {
				Message string `json:"message"`
			} `json:"errors"`
		}
		_ = json.Unmarshal(body, &problem)

		perr := &PolicyError{Detail: problem.Detail}
		for _, e := range problem.Errors {
			if e.Message != "" {
				perr.Messages = append(perr.Messages, e.Message)
			}
		}
		return perr
	default:
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}
}

func parseReset(v string) time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}
