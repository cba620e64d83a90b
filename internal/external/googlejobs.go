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

// GoogleJobsClient fetches Google-for-Jobs postings. Unlike Outscraper this
// adapter is billed per query, so Fetch reports a non-zero Cost, matching
// §6.2's "cost figure (for the Google-like adapter)".
type GoogleJobsClient struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	costPerQuery float64
	retry        *RetryPolicy
	limiter      *hostRateLimiter
	logger       arbor.ILogger
}

func NewGoogleJobsClient(httpClient *http.Client, baseURL, apiKey string, logger arbor.ILogger) *GoogleJobsClient {
	return &GoogleJobsClient{
		httpClient:   httpClient,
		baseURL:      baseURL,
		apiKey:       apiKey,
		costPerQuery: 0.001,
		retry:        NewRetryPolicy(),
		limiter:      newHostRateLimiter(0),
		logger:       logger,
	}
}

func (c *GoogleJobsClient) Fetch(ctx context.Context, params ScrapeParams) (ScrapeResult, error) {
	if c.baseURL == "" {
		return ScrapeResult{}, fmt.Errorf("google jobs base url is not configured")
	}

	q := url.Values{}
	q.Set("q", params.Terms)
	q.Set("location", params.Location)
	q.Set("radius", strconv.Itoa(params.RadiusMiles))
	q.Set("num", strconv.Itoa(params.Limit))
	if params.NoExperience {
		q.Set("no_experience", "true")
	}

	reqURL := c.baseURL + "?" + q.Encode()

	var payload struct {
		Jobs []map[string]any `json:"jobs_results"`
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
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, fmt.Errorf("google jobs request failed with status %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode google jobs response: %w", err)
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		return ScrapeResult{}, fmt.Errorf("google jobs fetch failed: %w", err)
	}

	return ScrapeResult{
		Postings:   payload.Jobs,
		Cost:       c.costPerQuery,
		QueryCount: 1,
	}, nil
}
