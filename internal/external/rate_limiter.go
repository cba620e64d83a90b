package external

import (
	"context"
	"net/url"
	"sync"
	"time"
)

// hostRateLimiter enforces a minimum delay between requests to the same
// host, adapted from the teacher's crawler.RateLimiter (there keyed by
// scrape-target domain; here keyed by scraper/link-tracker endpoint host).
type hostRateLimiter struct {
	mu           sync.Mutex
	lastRequest  map[string]time.Time
	defaultDelay time.Duration
}

func newHostRateLimiter(defaultDelay time.Duration) *hostRateLimiter {
	return &hostRateLimiter{
		lastRequest:  make(map[string]time.Time),
		defaultDelay: defaultDelay,
	}
}

func (rl *hostRateLimiter) wait(ctx context.Context, rawURL string) error {
	if rl.defaultDelay <= 0 {
		return nil
	}
	host := hostOf(rawURL)

	rl.mu.Lock()
	last, ok := rl.lastRequest[host]
	rl.mu.Unlock()

	if ok {
		if wait := last.Add(rl.defaultDelay).Sub(time.Now()); wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	rl.mu.Lock()
	rl.lastRequest[host] = time.Now()
	rl.mu.Unlock()
	return nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
