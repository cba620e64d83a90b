package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ternarybob/arbor"
)

// OutscraperClient fetches Indeed-sourced postings via the Outscraper job
// search API. It is the reference ScraperClient implementation for the
// "indeed" source.
type OutscraperClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	retry      *RetryPolicy
	limiter    *hostRateLimiter
	logger     arbor.ILogger
}

// NewOutscraperClient builds a client against baseURL, authenticating with
// apiKey. Each HTTP call is bounded only by httpClient's own timeout, and the
// per-host rate limiter is built with a zero minimum delay.
func NewOutscraperClient(httpClient *http.Client, baseURL, apiKey string, logger arbor.ILogger) *OutscraperClient {
	return &OutscraperClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		retry:      NewRetryPolicy(),
		limiter:    newHostRateLimiter(0),
		logger:     logger,
	}
}

func (c *OutscraperClient) Fetch(ctx context.Context, params ScrapeParams) (ScrapeResult, error) {
	if c.baseURL == "" {
		return ScrapeResult{}, fmt.Errorf("outscraper base url is not configured")
	}

	q := url.Values{}
	q.Set("query", params.Terms)
	q.Set("location", params.Location)
	q.Set("radius", strconv.Itoa(params.RadiusMiles))
	q.Set("limit", strconv.Itoa(params.Limit))
	if params.NoExperience {
		q.Set("no_experience", "true")
	}
	if params.ExperienceYears > 0 {
		q.Set("experience_years", strconv.Itoa(params.ExperienceYears))
	}

	reqURL := c.baseURL + "?" + q.Encode()

	var payload struct {
		Jobs []map[string]any `json:"jobs"`
	}

	_, err := c.retry.Execute(ctx, c.logger, func() (int, error) {
		if err := c.limiter.wait(ctx, reqURL); err != nil {
			return 0, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return 0, err
		}
		if c.apiKey != "" {
			req.Header.Set("X-API-Key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, fmt.Errorf("outscraper request failed with status %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode outscraper response: %w", err)
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		return ScrapeResult{}, fmt.Errorf("outscraper fetch failed: %w", err)
	}

	return ScrapeResult{
		Postings:   payload.Jobs,
		Cost:       0, // Indeed-sourced scraping is not billed per query in this adapter
		QueryCount: 1,
	}, nil
}
