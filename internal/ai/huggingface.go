package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/trend-agent/internal/config"
	"github.com/trend-agent/pkg/logger"
	"github.com/trend-agent/pkg/ratelimit"
)

// HuggingFace calls the hosted inference API for one model
type HuggingFace struct {
	httpClient  *http.Client
	baseURL     string
	model       string
	token       string
	userAgent   string
	params      hfParameters
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

type hfParameters struct {
	MaxNewTokens      int     `json:"max_new_tokens"`
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"top_p"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
	ReturnFullText    bool    `json:"return_full_text"`
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfResult struct {
	GeneratedText *string `json:"generated_text"`
}

// NewHuggingFace creates a backend for a single model id
func NewHuggingFace(cfg config.HuggingFaceConfig, model string, limiter *ratelimit.MultiLimiter, log *logger.Logger) *HuggingFace {
	return &HuggingFace{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      model,
		token:      cfg.APIToken,
		userAgent:  cfg.UserAgent,
		params: hfParameters{
			MaxNewTokens:      cfg.MaxNewTokens,
			Temperature:       cfg.Temperature,
			TopP:              cfg.TopP,
			RepetitionPenalty: cfg.RepetitionPenalty,
			ReturnFullText:    false,
		},
		rateLimiter: limiter,
		log:         log.WithComponent("ai").WithBackend("huggingface"),
	}
}

// NewHuggingFaceBackends creates one backend per configured model
func NewHuggingFaceBackends(cfg config.HuggingFaceConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) []Backend {
	backends := make([]Backend, 0, len(cfg.Models))
	for _, model := range cfg.Models {
		backends = append(backends, NewHuggingFace(cfg, model, limiter, log))
	}
	return backends
}

// Name returns "huggingface:<model>"
func (c *HuggingFace) Name() string {
	return "huggingface:" + c.model
}

// Generate posts the prompt and returns generated_text of the first result
func (c *HuggingFace) Generate(ctx context.Context, prompt string) (string, error) {
	if err := c.rateLimiter.Wait(ctx, ratelimit.LimiterHuggingFace); err != nil {
		return "", fmt.Errorf("rate limit error: %w", err)
	}

	body, err := json.Marshal(hfRequest{Inputs: prompt, Parameters: c.params})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.log.Debug().Str("model", c.model).Msg("Sending inference request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request error for %s: %w", c.model, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("%w: %s", ErrAccessDenied, c.model)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("inference API error (status %d) for %s: %s", resp.StatusCode, c.model, string(respBody))
	}

	var results []hfResult
	if err := json.Unmarshal(respBody, &results); err != nil {
		return "", fmt.Errorf("invalid model response: %w", err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("invalid model response: empty result list")
	}
	if results[0].GeneratedText == nil {
		return "", fmt.Errorf("invalid model response: missing generated_text")
	}

	return *results[0].GeneratedText, nil
}

var _ Backend = (*HuggingFace)(nil)
