package sources

import (
	"context"
	"fmt"

	"github.com/freeworld-coach/jobpipeline/internal/external"
	"github.com/freeworld-coach/jobpipeline/internal/frame"
	"github.com/freeworld-coach/jobpipeline/internal/schema"
)

// GoogleJobs ingests Google-Jobs-like postings via an external.ScraperClient.
type GoogleJobs struct {
	client external.ScraperClient
}

func NewGoogleJobs(client external.ScraperClient) *GoogleJobs {
	return &GoogleJobs{client: client}
}

// Ingest fetches raw postings and maps them to canonical rows, preferring
// apply_options[].link then apply_urls[] for source.url, per §4.2.
func (g *GoogleJobs) Ingest(ctx context.Context, params external.ScrapeParams) (*frame.Frame, external.ScrapeResult, error) {
	result, err := g.client.Fetch(ctx, params)
	if err != nil {
		return nil, external.ScrapeResult{}, fmt.Errorf("google jobs ingestion failed: %w", err)
	}

	fr := frame.Empty()
	for _, posting := range result.Postings {
		title := toString(posting["title"])
		company := toString(posting["company_name"])
		location := toString(posting["location"])
		description := toString(posting["description"])
		postedDate := toString(posting["detected_extensions.posted_at"])
		salary := toString(posting["detected_extensions.salary"])
		url := applyURL(posting)

		row, ok := newSourceRow(schema.SourceGoogle, title, company, location, description, url, postedDate, salary, true)
		if !ok {
			continue
		}
		fr.Append(row)
	}

	return fr, result, nil
}

func applyURL(posting map[string]any) string {
	if opts, ok := posting["apply_options"].([]any); ok {
		for _, opt := range opts {
			if m, ok := opt.(map[string]any); ok {
				if link := toString(m["link"]); link != "" {
					return link
				}
			}
		}
	}
	if urls, ok := posting["apply_urls"].([]any); ok {
		for _, u := range urls {
			if link := toString(u); link != "" {
				return link
			}
		}
	}
	return ""
}
