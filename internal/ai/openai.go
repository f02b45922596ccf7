package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/trend-agent/internal/config"
	"github.com/trend-agent/pkg/logger"
	"github.com/trend-agent/pkg/ratelimit"
)

// OpenAI is a chat-completions Backend
type OpenAI struct {
	client      openai.Client
	model       string
	maxTokens   int
	temperature float64
	topP        float64
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// NewOpenAI creates a chat completion backend
func NewOpenAI(cfg config.OpenAIConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger, opts ...option.RequestOption) *OpenAI {
	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		base = append(base, option.WithRequestTimeout(cfg.Timeout))
	}

	return &OpenAI{
		client:      openai.NewClient(append(base, opts...)...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		rateLimiter: limiter,
		log:         log.WithComponent("ai").WithBackend("openai"),
	}
}

// Name returns "openai:<model>"
func (c *OpenAI) Name() string {
	return "openai:" + c.model
}

// Generate asks for a single chat completion
func (c *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	if err := c.rateLimiter.Wait(ctx, ratelimit.LimiterOpenAI); err != nil {
		return "", fmt.Errorf("rate limit error: %w", err)
	}

	c.log.Debug().Str("model", c.model).Msg("Sending chat completion request")

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(int64(c.maxTokens)),
		Temperature: openai.Float(c.temperature),
		TopP:        openai.Float(c.topP),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden {
			return "", fmt.Errorf("%w: %s", ErrAccessDenied, c.Name())
		}
		return "", fmt.Errorf("openai API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

var _ Backend = (*OpenAI)(nil)
