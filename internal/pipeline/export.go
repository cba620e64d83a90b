package pipeline

import (
	"context"
	"time"

	"github.com/freeworld-coach/jobpipeline/internal/external"
	"github.com/freeworld-coach/jobpipeline/internal/frame"
	"github.com/freeworld-coach/jobpipeline/internal/schema"
	"github.com/freeworld-coach/jobpipeline/internal/storage"
)

// generateTrackedURLs fills meta.tracked_url for every about-to-be-exported
// row that doesn't already carry one (i.e. wasn't reused from memory), per
// §4.10 step 7: best-effort, degrading to the original URL on failure rather
// than blocking export. Rows are shortened one Shorten call at a time; calls
// are not batched.
func (o *Orchestrator) generateTrackedURLs(ctx context.Context, fr *frame.Frame, exportView []int, req Request) {
	if o.LinkTracker == nil {
		return
	}
	for _, idx := range exportView {
		r := fr.Rows[idx]
		if r.GetString("meta.tracked_url") != "" {
			continue
		}

		target := r.GetString("rules.clean_apply_url")
		if target == "" {
			target = r.GetString("source.url")
		}
		if target == "" {
			continue
		}

		attrs := external.LinkAttribution{
			Coach:      req.Agent.CoachUsername,
			Candidate:  req.Agent.CandidateID,
			Market:     r.GetString("meta.market"),
			Route:      r.GetString("ai.route_type"),
			Match:      r.GetString("ai.match"),
			FairChance: r.GetBool("ai.fair_chance"),
		}

		tracked, err := o.LinkTracker.Shorten(ctx, target, attrs)
		if err != nil {
			o.Logger.Warn().Err(err).Str("job_id", r.GetString("id.job")).Msg("link tracker failed, using original url")
			tracked = target
		}
		r.Set("meta.tracked_url", tracked)
	}
}

// persist writes the exported rows to the store, per §4.10 step 8: fresh
// rows not sourced from memory are fully upserted, rows reused from memory
// only have their updated_at timestamp refreshed.
func (o *Orchestrator) persist(ctx context.Context, fr *frame.Frame, exportView []int) error {
	if o.Store == nil {
		return nil
	}

	var toUpsert []storage.Record
	var toRefresh []string

	for _, idx := range exportView {
		r := fr.Rows[idx]
		if r.GetBool("sys.is_fresh_job") {
			toUpsert = append(toUpsert, rowToRecord(r))
		} else {
			toRefresh = append(toRefresh, r.GetString("id.job"))
		}
	}

	if len(toUpsert) > 0 {
		if err := o.Store.Upsert(ctx, toUpsert); err != nil {
			return err
		}
	}
	if len(toRefresh) > 0 {
		if err := o.Store.RefreshTimestamps(ctx, toRefresh); err != nil {
			return err
		}
	}
	return nil
}

func rowToRecord(r *frame.Row) storage.Record {
	now := time.Now().UTC()
	jobID := r.GetString("id.job")

	rec := storage.Record{
		JobID:                jobID,
		JobTitle:             r.GetString("norm.title"),
		Company:              r.GetString("norm.company"),
		Location:             r.GetString("norm.location"),
		JobDescription:       r.GetString("norm.description"),
		ApplyURL:             r.GetString("source.url"),
		Salary:               r.GetString("norm.salary_display"),
		MatchLevel:           r.GetString("ai.match"),
		MatchReason:          r.GetString("ai.reason"),
		Summary:              r.GetString("ai.summary"),
		FairChance:           r.GetBool("ai.fair_chance"),
		Endorsements:         r.GetStringSlice("ai.endorsements"),
		RouteType:            r.GetString("ai.route_type"),
		Market:               r.GetString("meta.market"),
		SearchQuery:          r.GetString("meta.query"),
		ClassificationSource: r.GetString("sys.classification_source"),
		CleanApplyURL:        r.GetString("rules.clean_apply_url"),
		TrackedURL:           r.GetString("meta.tracked_url"),
		RulesDuplicateR1:     r.GetString("rules.duplicate_r1"),
		RulesDuplicateR2:     r.GetString("rules.duplicate_r2"),
		JobIDHash:            jobID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	switch r.GetString("id.source") {
	case schema.SourceIndeed:
		rec.IndeedJobURL = r.GetString("source.url")
	case schema.SourceGoogle:
		rec.GoogleJobURL = r.GetString("source.url")
	}

	if classifiedAt := r.GetString("sys.classified_at"); classifiedAt != "" {
		if t, err := time.Parse(time.RFC3339, classifiedAt); err == nil {
			rec.ClassifiedAt = t
		}
	}

	return rec
}

// finalizeCounts fills the by-match, by-route, and by-final-status count
// maps and the export totals, per §4.10's cost/stats block.
func finalizeCounts(result *Result, fr *frame.Frame, exportView []int) {
	result.TotalJobs = fr.Len()
	result.IncludedJobs = len(exportView)

	for _, r := range fr.Rows {
		match := r.GetString("ai.match")
		if match != "" {
			result.CountsByMatch[match]++
		}
		if route := r.GetString("ai.route_type"); route != "" {
			result.CountsByRoute[route]++
		}
		if status := r.GetString("route.final_status"); status != "" {
			result.CountsByFinalStatus[status]++
		}
		if schema.IsQuality(match) {
			result.QualityJobs++
		}
	}

	memoryRows := 0
	for _, r := range fr.Rows {
		if !r.GetBool("sys.is_fresh_job") {
			memoryRows++
		}
	}
	if fr.Len() > 0 {
		result.Cost.MemoryEfficiency = float64(memoryRows) / float64(fr.Len()) * 100
		result.Cost.FreshShare = 100 - result.Cost.MemoryEfficiency
	}
}

// finalizeCost fills the cost block's total/per-quality-job figures, per
// §4.10: classification cost is approximated as costPerJob per freshly
// classified row, since the classifier providers don't surface a per-call
// token cost.
func finalizeCost(result *Result, fr *frame.Frame, costPerJob float64) {
	freshlyClassified := 0
	for _, r := range fr.Rows {
		if r.GetString("sys.classification_source") == schema.ClassificationSourceFreshAI {
			freshlyClassified++
		}
	}
	result.Cost.ClassificationCost = float64(freshlyClassified) * costPerJob

	for _, cost := range result.Cost.ScrapeCostBySource {
		result.Cost.TotalCost += cost
	}
	result.Cost.TotalCost += result.Cost.ClassificationCost

	if result.QualityJobs > 0 {
		result.Cost.CostPerQualityJob = result.Cost.TotalCost / float64(result.QualityJobs)
	}
}
