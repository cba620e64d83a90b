package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/freeworld-coach/jobpipeline/internal/frame"
	"github.com/freeworld-coach/jobpipeline/internal/schema"
	"github.com/freeworld-coach/jobpipeline/internal/storage"
)

// Memory ingests rows already present in the persistent store, already
// carrying AI fields, per §4.2's "Memory" adapter.
type Memory struct {
	store storage.JobStore
}

func NewMemory(store storage.JobStore) *Memory {
	return &Memory{store: store}
}

// Search loads rows matching filter and maps them to canonical rows. Source
// URL preference order is apply_url, then indeed_job_url, then
// google_job_url, per §4.2.
func (m *Memory) Search(ctx context.Context, filter storage.SearchFilter) (*frame.Frame, error) {
	records, err := m.store.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("memory ingestion failed: %w", err)
	}
	return fromRecords(records), nil
}

// GetByIDs loads specific rows by job_id within hoursWindow, used by the
// classifier's memory-reuse pre-pass and the bypass controller.
func (m *Memory) GetByIDs(ctx context.Context, ids []string, hoursWindow time.Duration) ([]storage.Record, error) {
	return m.store.GetByIDs(ctx, ids, hoursWindow)
}

func fromRecords(records []storage.Record) *frame.Frame {
	fr := frame.Empty()
	for _, rec := range records {
		fr.Append(RowFromRecord(rec))
	}
	return fr
}

// RowFromRecord maps one persisted record back to a canonical row, used both
// by Search's bulk load and by the orchestrator when replaying bypassed
// memory rows straight into a fresh run's frame.
func RowFromRecord(rec storage.Record) *frame.Row {
	r := frame.NewRow()

	url := firstNonEmpty(
		func() string { return rec.ApplyURL },
		func() string { return rec.IndeedJobURL },
		func() string { return rec.GoogleJobURL },
	)
	source := ""
	switch {
	case rec.IndeedJobURL != "":
		source = schema.SourceIndeed
	case rec.GoogleJobURL != "":
		source = schema.SourceGoogle
	}

	r.Set("id.job", rec.JobID)
	r.Set("id.source", source)
	r.Set("source.title", rec.JobTitle)
	r.Set("source.company", rec.Company)
	r.Set("source.location_raw", rec.Location)
	r.Set("source.description_raw", rec.JobDescription)
	r.Set("source.url", url)
	r.Set("source.salary_raw", rec.Salary)

	r.Set("ai.match", rec.MatchLevel)
	r.Set("ai.reason", rec.MatchReason)
	r.Set("ai.summary", rec.Summary)
	r.Set("ai.fair_chance", rec.FairChance)
	r.Set("ai.endorsements", rec.Endorsements)
	r.Set("ai.route_type", rec.RouteType)

	r.Set("rules.duplicate_r1", rec.RulesDuplicateR1)
	r.Set("rules.duplicate_r2", rec.RulesDuplicateR2)
	r.Set("rules.clean_apply_url", rec.CleanApplyURL)

	r.Set("meta.market", rec.Market)
	r.Set("meta.query", rec.SearchQuery)
	r.Set("meta.tracked_url", rec.TrackedURL)

	r.Set("sys.is_fresh_job", false)
	r.Set("sys.classification_source", schema.ClassificationSourceMemory)
	if !rec.ClassifiedAt.IsZero() {
		r.Set("sys.classified_at", rec.ClassifiedAt.Format("2006-01-02T15:04:05Z07:00"))
	}

	return r
}
