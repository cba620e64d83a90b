package external

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
)

// HTTPLinkTracker is the reference LinkTracker implementation: a POST to a
// URL-shortening endpoint carrying the target URL and attribution tags.
// Per §6.3 it must never throw into the pipeline — every failure path
// returns the original URL with a nil error.
type HTTPLinkTracker struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	enabled    bool
	retry      *RetryPolicy
	logger     arbor.ILogger
}

func NewHTTPLinkTracker(httpClient *http.Client, baseURL, apiKey string, enabled bool, logger arbor.ILogger) *HTTPLinkTracker {
	return &HTTPLinkTracker{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		enabled:    enabled,
		retry:      NewRetryPolicy(),
		logger:     logger,
	}
}

type shortenRequest struct {
	TargetURL  string `json:"target_url"`
	Coach      string `json:"coach,omitempty"`
	Candidate  string `json:"candidate,omitempty"`
	Market     string `json:"market,omitempty"`
	Route      string `json:"route,omitempty"`
	Match      string `json:"match,omitempty"`
	FairChance bool   `json:"fair_chance"`
}

type shortenResponse struct {
	ShortURL string `json:"short_url"`
}

func (t *HTTPLinkTracker) Shorten(ctx context.Context, targetURL string, attrs LinkAttribution) (string, error) {
	if !t.enabled || t.baseURL == "" {
		return targetURL, nil
	}

	body, err := json.Marshal(shortenRequest{
		TargetURL:  targetURL,
		Coach:      attrs.Coach,
		Candidate:  attrs.Candidate,
		Market:     attrs.Market,
		Route:      attrs.Route,
		Match:      attrs.Match,
		FairChance: attrs.FairChance,
	})
	if err != nil {
		t.logger.Warn().Err(err).Msg("failed to marshal link tracker request, returning original url")
		return targetURL, nil
	}

	var result shortenResponse
	_, err = t.retry.Execute(ctx, t.logger, func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(body))
		if err != nil {
			return 0, err
		}
		req.Header.Set("Content-Type", "application/json")
		if t.apiKey != "" {
			req.Header.Set("X-API-Key", t.apiKey)
		}

		resp, err := t.httpClient.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, nil
		}
		return resp.StatusCode, json.NewDecoder(resp.Body).Decode(&result)
	})
	if err != nil || result.ShortURL == "" {
		t.logger.Warn().Err(err).Str("target_url", targetURL).Msg("link tracker call failed, falling back to original url")
		return targetURL, nil
	}

	return result.ShortURL, nil
}
