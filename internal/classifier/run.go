package classifier

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/freeworld-coach/jobpipeline/internal/common"
	"github.com/freeworld-coach/jobpipeline/internal/frame"
	"github.com/freeworld-coach/jobpipeline/internal/schema"
	"github.com/freeworld-coach/jobpipeline/internal/storage"
)

// Options tunes the batching and concurrency of a classification run.
type Options struct {
	Type                 Type
	BatchSize            int
	MaxConcurrentBatches int
	RateLimit            time.Duration // minimum delay between calls, per provider
	MemoryReuseWindow    time.Duration
}

// MemoryLookup is the subset of the persistent store the reuse pre-pass
// needs: a bulk lookup by job id within a recency window.
type MemoryLookup interface {
	GetByIDs(ctx context.Context, ids []string, hoursWindow time.Duration) ([]storage.Record, error)
}

// Run classifies every row awaiting classification in fr, per §4.6: first a
// memory-reuse pre-pass against store fills in rows already classified
// recently, then the remainder is batched to provider across bounded
// concurrent goroutines.
func Run(ctx context.Context, fr *frame.Frame, store MemoryLookup, provider Provider, opts Options, logger arbor.ILogger) error {
	pending := frame.ReadyForAI(fr)
	if len(pending) == 0 {
		return nil
	}

	pending = reuseFromMemory(ctx, fr, pending, store, opts.MemoryReuseWindow, logger)
	if len(pending) == 0 {
		return nil
	}

	return classifyRemaining(ctx, fr, pending, provider, opts, logger)
}

// reuseFromMemory looks up every pending row's id.job in the store and, for
// hits within the reuse window, copies ai.* across and marks the row
// sys.classification_source=supabase_memory instead of spending an LLM call
// on it. It returns the indices that still need fresh classification.
func reuseFromMemory(ctx context.Context, fr *frame.Frame, pending []int, store MemoryLookup, window time.Duration, logger arbor.ILogger) []int {
	if store == nil || window <= 0 {
		return pending
	}

	ids := make([]string, len(pending))
	for i, idx := range pending {
		ids[i] = fr.Rows[idx].GetString("id.job")
	}

	records, err := store.GetByIDs(ctx, ids, window)
	if err != nil {
		logger.Warn().Err(err).Msg("memory reuse lookup failed, classifying all rows fresh")
		return pending
	}
	if len(records) == 0 {
		return pending
	}

	byID := make(map[string]storage.Record, len(records))
	for _, rec := range records {
		byID[rec.JobID] = rec
	}

	var remaining []int
	for _, idx := range pending {
		row := fr.Rows[idx]
		rec, ok := byID[row.GetString("id.job")]
		if !ok || rec.MatchLevel == "" {
			remaining = append(remaining, idx)
			continue
		}
		applyRecordToRow(row, rec)
	}
	return remaining
}

func applyRecordToRow(row *frame.Row, rec storage.Record) {
	row.Set("ai.match", rec.MatchLevel)
	row.Set("ai.reason", rec.MatchReason)
	row.Set("ai.summary", rec.Summary)
	row.Set("ai.fair_chance", rec.FairChance)
	row.Set("ai.endorsements", rec.Endorsements)
	if rec.RouteType != "" {
		row.Set("ai.route_type", rec.RouteType)
	}
	row.Set("sys.classification_source", schema.ClassificationSourceMemory)
	row.Set("sys.classified_at", rec.ClassifiedAt.UTC().Format(time.RFC3339))
}

// classifyRemaining batches pending rows to provider, bounding concurrency
// with an errgroup. When opts.RateLimit is set, calls are paced by a per-run
// rate limiter; when it is zero, batches are not paced at all.
func classifyRemaining(ctx context.Context, fr *frame.Frame, pending []int, provider Provider, opts Options, logger arbor.ILogger) error {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 25
	}
	concurrency := opts.MaxConcurrentBatches
	if concurrency <= 0 {
		concurrency = 10
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.RateLimit), 1)
	}

	batches := make([][]int, 0, len(pending)/batchSize+1)
	for i := 0; i < len(pending); i += batchSize {
		end := i + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batches = append(batches, pending[i:end])
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	for _, batchIdx := range batches {
		batchIdx := batchIdx
		group.Go(func() error {
			return common.SafeGoroutineFunc(logger, "classify:batch", func() error {
				if limiter != nil {
					if err := limiter.Wait(gctx); err != nil {
						return err
					}
				}

				reqs := make([]Request, len(batchIdx))
				for i, idx := range batchIdx {
					row := fr.Rows[idx]
					reqs[i] = Request{
						JobID:       row.GetString("id.job"),
						JobTitle:    row.GetString("norm.title"),
						Company:     row.GetString("norm.company"),
						Location:    row.GetString("norm.location"),
						Description: row.GetString("norm.description"),
					}
				}

				results, err := provider.Classify(gctx, opts.Type, reqs)
				if err != nil {
					logger.Error().Err(err).Int("batch_size", len(reqs)).Msg("classification batch failed")
					results = fallbackResults(reqs, err.Error())
				}

				applyBatchResults(fr, batchIdx, results)
				return nil
			}, func(recovered any) {
				reqs := make([]Request, len(batchIdx))
				for i, idx := range batchIdx {
					reqs[i] = Request{JobID: fr.Rows[idx].GetString("id.job")}
				}
				applyBatchResults(fr, batchIdx, fallbackResults(reqs, fmt.Sprintf("panic: %v", recovered)))
			})
		})
	}

	return group.Wait()
}

// applyBatchResults writes one batch's classification results (or fallback
// error results) back onto the rows they came from, keyed by id.job.
func applyBatchResults(fr *frame.Frame, batchIdx []int, results []Result) {
	byJobID := make(map[string]Result, len(results))
	for _, res := range results {
		byJobID[res.JobID] = res
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, idx := range batchIdx {
		row := fr.Rows[idx]
		res, ok := byJobID[row.GetString("id.job")]
		if !ok {
			res = errorResult(row.GetString("id.job"), "provider returned no result for this job")
		}
		row.Set("ai.match", res.Match)
		row.Set("ai.reason", res.Reason)
		row.Set("ai.summary", res.Summary)
		row.Set("ai.fair_chance", res.FairChance)
		row.Set("ai.endorsements", res.Endorsements)
		if res.CareerPathway != "" {
			row.Set("ai.career_pathway", res.CareerPathway)
		}
		row.Set("ai.training_provided", res.TrainingProvided)
		row.Set("sys.classification_source", schema.ClassificationSourceFreshAI)
		row.Set("sys.classified_at", now)
	}
}
