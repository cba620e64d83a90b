package classifier

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy reuses the teacher's GeminiRetryConfig shape (max attempts,
// exponential backoff with a rate-limit-aware base delay) for both
// providers, since Claude and Gemini both return a similar "retry after Ns"
// hint on 429s.
type RetryPolicy struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

func NewDefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:        3,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// IsRateLimitError checks if an error is a provider rate-limit error.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "429") || strings.Contains(s, "RESOURCE_EXHAUSTED") || strings.Contains(s, "rate_limit")
}

var retryDelayRegex = regexp.MustCompile(`(?i)(?:please retry in |retrydelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay parses an API-suggested retry delay from an error
// message, returning 0 if none is present.
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	m := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(m) < 2 {
		return 0
	}
	seconds, parseErr := strconv.ParseFloat(m[1], 64)
	if parseErr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// CalculateBackoff computes the backoff for attempt, preferring an
// API-provided delay over the configured initial backoff.
func (p *RetryPolicy) CalculateBackoff(attempt int, apiDelay time.Duration) time.Duration {
	base := p.InitialBackoff
	if apiDelay > 0 {
		base = apiDelay + time.Second
	}
	multiplier := 1.0
	for i := 0; i < attempt; i++ {
		multiplier *= p.BackoffMultiplier
	}
	backoff := time.Duration(float64(base) * multiplier)
	if backoff > p.MaxBackoff {
		backoff = p.MaxBackoff
	}
	return backoff
}
