package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/freeworld-coach/jobpipeline/internal/bypass"
	"github.com/freeworld-coach/jobpipeline/internal/classifier"
	"github.com/freeworld-coach/jobpipeline/internal/common"
	"github.com/freeworld-coach/jobpipeline/internal/dedupe"
	"github.com/freeworld-coach/jobpipeline/internal/external"
	"github.com/freeworld-coach/jobpipeline/internal/frame"
	"github.com/freeworld-coach/jobpipeline/internal/routetype"
	"github.com/freeworld-coach/jobpipeline/internal/routing"
	"github.com/freeworld-coach/jobpipeline/internal/rules"
	"github.com/freeworld-coach/jobpipeline/internal/schema"
	"github.com/freeworld-coach/jobpipeline/internal/sources"
	"github.com/freeworld-coach/jobpipeline/internal/storage"
	"github.com/freeworld-coach/jobpipeline/internal/transform"
)

// RunCompletePipeline executes the full flow described in §4.10: bypass
// consultation, concurrent ingestion, the ordered stage sequence,
// export-view computation, tracked-URL generation, and persistence.
func (o *Orchestrator) RunCompletePipeline(ctx context.Context, req Request) (result *Result, err error) {
	ctx = ctxOrBackground(ctx)
	start := time.Now()
	runID := common.NewRunID()
	result = newResult(runID)

	// PipelineFatal (§7): a panic anywhere in the stage sequence below is
	// recovered here rather than crashing the process. The run is reported
	// as a checkpointed error instead of a bare process exit.
	var fr *frame.Frame
	defer func() {
		if r := recover(); r != nil {
			stackTrace := common.GetStackTrace()
			common.WriteCrashFile(r, stackTrace)
			o.Logger.Error().Interface("panic", r).Str("stack", stackTrace).Str("run_id", runID).
				Msg("pipeline run aborted: recovered from panic")
			if fr != nil {
				o.checkpoint(runID, "error", fr)
			}
			result.Status = "error"
			result.ProcessingTimeSeconds = elapsedSeconds(start)
			err = fmt.Errorf("pipeline run %s aborted by panic: %v", runID, r)
		}
	}()

	routeFilter := toRouteFilter(req.RouteFilter)
	settings := toRulesSettings(req.FilterSettings)
	target := TargetFor(req.Mode)

	decision, err := o.consultBypass(ctx, req, routeFilter, target)
	if err != nil {
		o.Logger.Warn().Err(err).Msg("bypass controller unavailable, proceeding as full scrape")
		decision = bypass.Decision{Type: bypass.FullScrape, Reason: "bypass controller error: " + err.Error(), ScrapeTarget: target}
		result.Warnings = append(result.Warnings, "bypass controller unavailable: "+err.Error())
	}
	result.BypassDecision = decision

	fr, scrapeCost, err := o.ingest(ctx, req, decision)
	if err != nil {
		result.Status = "error"
		result.ProcessingTimeSeconds = elapsedSeconds(start)
		return result, err
	}
	result.Cost.ScrapeCostBySource = scrapeCost

	applySearchAndAgentContext(fr, req, runID)
	o.checkpoint(runID, "ingest", fr)

	transform.Normalize(fr)
	o.checkpoint(runID, "normalize", fr)

	rules.Apply(fr, req.Location, settings)
	o.checkpoint(runID, "business_rules", fr)

	fr = dedupe.Run(fr, settings)
	o.checkpoint(runID, "dedupe", fr)

	classifyOpts := o.ClassifierOpts
	classifyOpts.Type = req.ClassifierType
	if req.ForceFreshClassification {
		resetClassification(fr)
		classifyOpts.MemoryReuseWindow = 0
	}
	if o.ClassifierProv != nil {
		if err := classifier.Run(ctx, fr, o.memoryLookup(), o.ClassifierProv, classifyOpts, o.Logger); err != nil {
			o.Logger.Warn().Err(err).Msg("classification stage returned an error, rows left degraded")
			result.Warnings = append(result.Warnings, "classification: "+err.Error())
		}
	}
	markErroredRows(fr)
	o.checkpoint(runID, "classification", fr)

	routetype.Apply(fr)
	o.checkpoint(runID, "route_type", fr)

	routing.Apply(fr, routeFilter)
	o.checkpoint(runID, "routing", fr)

	exportView := frame.Exportable(fr)
	routing.MarkExported(fr, exportView)

	o.generateTrackedURLs(ctx, fr, exportView, req)
	o.checkpoint(runID, "export", fr)

	if err := o.persist(ctx, fr, exportView); err != nil {
		o.Logger.Warn().Err(err).Msg("persistence stage failed, continuing with degraded completion")
		result.Warnings = append(result.Warnings, "persistence: "+err.Error())
	}

	result.Frame = fr
	result.Status = "completed"
	finalizeCounts(result, fr, exportView)
	finalizeCost(result, fr, o.BypassConfig.CostPerJob)
	result.ProcessingTimeSeconds = elapsedSeconds(start)
	return result, nil
}

// RunMemoryOnlySearch serves a search entirely from the persistent store,
// per §4.10's second entry point: no scraping, no LLM calls.
func (o *Orchestrator) RunMemoryOnlySearch(ctx context.Context, req MemorySearchRequest) (*Result, error) {
	ctx = ctxOrBackground(ctx)
	start := time.Now()
	runID := common.NewRunID()
	result := newResult(runID)

	if o.Store == nil {
		result.Status = "error"
		result.ProcessingTimeSeconds = elapsedSeconds(start)
		return result, errMemoryUnavailable
	}

	matchLevels := req.MatchLevels
	if len(matchLevels) == 0 {
		matchLevels = []string{schema.MatchGood, schema.MatchSoSo}
	}

	mem := sources.NewMemory(o.Store)
	fr, err := mem.Search(ctx, storage.SearchFilter{
		Market:         req.Location,
		MatchLevels:    matchLevels,
		RouteFilter:    string(toRouteFilter(req.RouteFilter)),
		FairChanceOnly: req.FairChanceOnly,
		Limit:          req.Limit,
	})
	if err != nil {
		result.Status = "error"
		result.ProcessingTimeSeconds = elapsedSeconds(start)
		return result, err
	}

	for _, r := range fr.Rows {
		r.Set("search.location", req.Location)
		r.Set("search.mode", "")
		r.Set("search.limit", req.Limit)
		r.Set("search.route_filter", string(req.RouteFilter))
		r.Set("agent.coach_username", req.Agent.CoachUsername)
		r.Set("agent.candidate_id", req.Agent.CandidateID)
		r.Set("agent.fair_chance_only", req.Agent.FairChanceOnly)
		r.Set("meta.query", req.SearchTerms)
		r.Set("sys.run_id", runID)
		r.Set("route.final_status", "included_from_memory")
		r.Set("route.ready_for_export", true)
		r.Set("route.stage", "exported")
	}

	result.Frame = fr
	result.Status = "completed"
	exportView := make([]int, fr.Len())
	for i := range exportView {
		exportView[i] = i
	}
	finalizeCounts(result, fr, exportView)
	result.Cost = CostBlock{ScrapeCostBySource: map[string]float64{}, MemoryEfficiency: 100, FreshShare: 0}
	result.ProcessingTimeSeconds = elapsedSeconds(start)
	return result, nil
}

func (o *Orchestrator) checkpoint(runID, stage string, fr *frame.Frame) {
	if !o.CheckpointOn {
		return
	}
	writeCheckpoint(o.CheckpointDir, runID, stage, fr, o.Logger)
}

func (o *Orchestrator) memoryLookup() classifier.MemoryLookup {
	if o.Store == nil {
		return nil
	}
	return o.Store
}

func (o *Orchestrator) consultBypass(ctx context.Context, req Request, routeFilter routing.RouteFilter, target int) (bypass.Decision, error) {
	if o.Store == nil {
		return bypass.Decision{Type: bypass.FullScrape, Reason: "no persistent store configured", ScrapeTarget: target}, nil
	}
	if req.ForceMemoryOnly {
		return bypass.ForceMemoryOnly(ctx, o.Store, o.BypassConfig, req.Location, routeFilter)
	}
	if req.ForceFresh {
		return bypass.Decision{Type: bypass.FullScrape, Reason: "force_fresh requested", ScrapeTarget: target}, nil
	}
	return bypass.Evaluate(ctx, o.Store, o.BypassConfig, req.Location, target, routeFilter)
}

// ingest runs the enabled source adapters concurrently (one goroutine per
// source per §5) plus the memory adapter, merging fresh rows after memory
// rows so exact-id dedup's keep-last semantics prefer the fresh copy.
func (o *Orchestrator) ingest(ctx context.Context, req Request, decision bypass.Decision) (*frame.Frame, map[string]float64, error) {
	merged := frame.Empty()
	costBySource := make(map[string]float64)
	var mu sync.Mutex

	if decision.Type == bypass.FullBypass {
		for _, rec := range decision.MemoryRows {
			merged.Append(sources.RowFromRecord(rec))
		}
		return merged, costBySource, nil
	}

	if decision.Type == bypass.SmartCredit {
		for _, rec := range decision.MemoryRows {
			merged.Append(sources.RowFromRecord(rec))
		}
	}

	scrapeTarget := decision.ScrapeTarget
	if scrapeTarget <= 0 {
		scrapeTarget = TargetFor(req.Mode)
	}

	group, gctx := errgroup.WithContext(ctx)
	for _, src := range req.SearchSources {
		src := src
		client, ok := o.Scrapers[src]
		if !ok || client == nil {
			continue
		}
		group.Go(func() error {
			return common.SafeGoroutineFunc(o.Logger, "ingest:"+src, func() error {
				fr, scrapeResult, err := ingestSource(gctx, src, client, req, scrapeTarget)
				if err != nil {
					o.Logger.Warn().Err(err).Str("source", src).Msg("source ingestion failed, contributing zero rows")
					mu.Lock()
					costBySource[src] = 0
					mu.Unlock()
					return nil
				}
				mu.Lock()
				defer mu.Unlock()
				for _, r := range fr.Rows {
					merged.Append(r)
				}
				costBySource[src] = scrapeResult.Cost
				return nil
			}, func(recovered any) {
				o.Logger.Error().Str("source", src).Interface("panic", recovered).Msg("source ingestion panicked, contributing zero rows")
				mu.Lock()
				costBySource[src] = 0
				mu.Unlock()
			})
		})
	}

	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	return merged, costBySource, nil
}

func ingestSource(ctx context.Context, src string, client external.ScraperClient, req Request, target int) (*frame.Frame, external.ScrapeResult, error) {
	params := external.ScrapeParams{
		Terms:    req.SearchTerms,
		Location: req.Location,
		Limit:    target,
	}
	switch src {
	case schema.SourceIndeed:
		return sources.NewOutscraper(client).Ingest(ctx, params)
	case schema.SourceGoogle:
		return sources.NewGoogleJobs(client).Ingest(ctx, params)
	default:
		adapter := sources.NewOutscraper(client)
		return adapter.Ingest(ctx, params)
	}
}

func toRulesSettings(in FilterSettingsInput) rules.FilterSettings {
	return rules.FilterSettings{
		OwnerOp:          in.OwnerOp,
		SchoolBus:        in.SchoolBus,
		SpamFilter:       in.SpamFilter,
		ExperienceFilter: in.ExperienceFilter,
		R1Dedup:          in.R1Dedup,
		R2Dedup:          in.R2Dedup,
		URLDedup:         in.URLDedup,
	}
}

func resetClassification(fr *frame.Frame) {
	for _, r := range fr.Rows {
		r.Set("ai.match", "")
		r.Set("ai.reason", "")
		r.Set("ai.summary", "")
		r.Set("ai.fair_chance", false)
		r.Set("ai.endorsements", []string{})
		r.Set("ai.route_type", "")
		r.Set("ai.career_pathway", "")
		r.Set("ai.training_provided", false)
		r.Set("sys.classification_source", "")
		r.Set("sys.classified_at", "")
	}
}

// markErroredRows closes §7's timeout gap: rows that are still awaiting
// classification after the stage completed (timed out or skipped) are
// classified error rather than left with an empty ai.match.
func markErroredRows(fr *frame.Frame) {
	for _, idx := range frame.ReadyForAI(fr) {
		r := fr.Rows[idx]
		r.Set("ai.match", schema.MatchError)
		r.Set("ai.reason", "Classification failed: no result produced")
		r.Set("ai.summary", "Job classification encountered an error")
	}
}

var errMemoryUnavailable = errors.New("persistent job store is not configured")
