package twitter

import (
	"fmt"
	"strings"
	"time"
)

// RateLimitError is returned on HTTP 429. Reset is zero when the response
// carried no x-rate-limit-reset header.
type RateLimitError struct {
	Reset time.Time
}

func (e *RateLimitError) Error() string {
	if e.Reset.IsZero() {
		return "rate limited"
	}
	return fmt.Sprintf("rate limited until %s", e.Reset.UTC().Format(time.RFC3339))
}

// PolicyError is returned on HTTP 403: the platform rejected the content
type PolicyError struct {
	Detail   string
	Messages []string
}

func (e *PolicyError) Error() string {
	parts := make([]string, 0, len(e.Messages)+1)
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	parts = append(parts, e.Messages...)
	if len(parts) == 0 {
		return "content policy violation"
	}
	return "content policy violation: " + strings.Join(parts, "; ")
}

// APIError is any other non-success response
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter API error (status %d): %s", e.Status, e.Body)
}
