package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trend-agent/internal/models"
	"github.com/trend-agent/internal/twitter"
	"github.com/trend-agent/pkg/logger"
	"github.com/trend-agent/pkg/retry"
)

// Poster submits one post and returns the platform id
type Poster interface {
	CreateTweet(ctx context.Context, text string) (string, error)
}

// Agent publishes formatted posts under a retry policy
type Agent struct {
	poster  Poster
	policy  retry.Policy
	sleeper retry.Sleeper
	now     func() time.Time
	log     *logger.Logger
}

// Option configures an Agent
type Option func(*Agent)

// WithSleeper replaces the real timer, tests use it to observe waits
func WithSleeper(s retry.Sleeper) Option {
	return func(a *Agent) { a.sleeper = s }
}

// WithClock replaces time.Now for rate-limit wait computation
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// NewAgent creates a new publisher agent
func NewAgent(poster Poster, policy retry.Policy, log *logger.Logger, opts ...Option) *Agent {
	a := &Agent{
		poster:  poster,
		policy:  policy,
		sleeper: retry.TimerSleeper{},
		now:     time.Now,
		log:     log.WithComponent("publisher"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Publish submits text. The returned error is non-nil only when ctx ends;
// every platform failure is reported through the result outcome.
func (a *Agent) Publish(ctx context.Context, text string) (*models.PostResult, error) {
	result := &models.PostResult{}
	maxAttempts := a.policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		result.Attempts = attempt + 1
		log := a.log.WithAttempt(result.Attempts)

		id, err := a.poster.CreateTweet(ctx, text)
		if err == nil {
			result.Outcome = models.PostOutcomePublished
			result.PostID = id
			log.Info().Str("post_id", id).Msg("Post published successfully")
			return result, nil
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		last := attempt == maxAttempts-1

		var (
			rateErr   *twitter.RateLimitError
			policyErr *twitter.PolicyError
		)
		switch {
		case errors.As(err, &policyErr):
			log.Critical().Err(err).Msg("Post rejected by content policy")
			result.Outcome = models.PostOutcomeRejected
			result.Reason = err.Error()
			return result, nil

		case errors.As(err, &rateErr):
			wait, werr := a.policy.RateLimitWait(rateErr.Reset, a.now())
			if werr != nil {
				log.Error().Dur("wait", wait).Msg("Rate limit reset too far away, giving up")
				result.Outcome = models.PostOutcomeRateLimited
				result.Reason = werr.Error()
				return result, nil
			}
			if last {
				break
			}
			log.Warn().Dur("wait", wait).Msg("Rate limited, waiting for reset")
			if err := a.sleeper.Sleep(ctx, wait); err != nil {
				return result, err
			}

		default:
			log.Error().Str("error", logger.Truncate(err.Error(), 100)).Msg("Failed to publish post")
			if a.policy.GenericErrors == retry.GenericAbort {
				result.Outcome = models.PostOutcomeFailed
				result.Reason = err.Error()
				return result, nil
			}
			if last {
				break
			}
			delay := a.policy.BackoffDelay(attempt)
			log.Debug().Dur("delay", delay).Msg("Backing off before retry")
			if err := a.sleeper.Sleep(ctx, delay); err != nil {
				return result, err
			}
		}
	}

	result.Outcome = models.PostOutcomeFailed
	result.Reason = fmt.Sprintf("attempts exhausted after %d tries", result.Attempts)
	a.log.Error().Int("attempts", result.Attempts).Msg("Publishing gave up")
	return result, nil
}
