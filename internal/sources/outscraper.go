package sources

import (
	"context"
	"fmt"

	"github.com/freeworld-coach/jobpipeline/internal/external"
	"github.com/freeworld-coach/jobpipeline/internal/frame"
	"github.com/freeworld-coach/jobpipeline/internal/schema"
)

// Outscraper ingests Indeed-like postings via an external.ScraperClient.
type Outscraper struct {
	client external.ScraperClient
}

func NewOutscraper(client external.ScraperClient) *Outscraper {
	return &Outscraper{client: client}
}

// Ingest fetches raw postings and maps them to canonical rows, assigning
// id.source = "indeed" per §4.2.
func (o *Outscraper) Ingest(ctx context.Context, params external.ScrapeParams) (*frame.Frame, external.ScrapeResult, error) {
	result, err := o.client.Fetch(ctx, params)
	if err != nil {
		return nil, external.ScrapeResult{}, fmt.Errorf("outscraper ingestion failed: %w", err)
	}

	fr := frame.Empty()
	for _, posting := range result.Postings {
		title := toString(posting["title"])
		company := toString(posting["company"])
		location := toString(posting["formattedLocation"])
		if location == "" {
			location = toString(posting["location"])
		}
		description := toString(posting["snippet"])
		if description == "" {
			description = toString(posting["description"])
		}
		url := toString(posting["viewJobLink"])
		if url == "" {
			url = toString(posting["url"])
		}
		postedDate := toString(posting["postedDate"])
		salary := toString(posting["salary"])
		if salary == "" {
			salary = toString(posting["salarySnippet"])
		}

		row, ok := newSourceRow(schema.SourceIndeed, title, company, location, description, url, postedDate, salary, true)
		if !ok {
			continue
		}
		fr.Append(row)
	}

	return fr, result, nil
}
