package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/freeworld-coach/jobpipeline/internal/bypass"
	"github.com/freeworld-coach/jobpipeline/internal/classifier"
	"github.com/freeworld-coach/jobpipeline/internal/common"
	"github.com/freeworld-coach/jobpipeline/internal/external"
	"github.com/freeworld-coach/jobpipeline/internal/frame"
	"github.com/freeworld-coach/jobpipeline/internal/routing"
	"github.com/freeworld-coach/jobpipeline/internal/schema"
	"github.com/freeworld-coach/jobpipeline/internal/storage"
)

func testLogger() arbor.ILogger { return arbor.NewLogger() }

// fakeStore is an in-memory storage.JobStore covering every call the
// orchestrator makes against it: search (bypass + memory adapter), bulk
// lookup (classifier reuse pre-pass), and the two persistence writes.
type fakeStore struct {
	searchResult  []storage.Record
	searchErr     error
	byIDsResult   []storage.Record
	byIDsErr      error
	upserted      []storage.Record
	refreshed     []string
	upsertErr     error
	refreshErr    error
	lastFilter    storage.SearchFilter
}

func (f *fakeStore) Search(ctx context.Context, filter storage.SearchFilter) ([]storage.Record, error) {
	f.lastFilter = filter
	return f.searchResult, f.searchErr
}
func (f *fakeStore) GetByIDs(ctx context.Context, ids []string, hoursWindow time.Duration) ([]storage.Record, error) {
	return f.byIDsResult, f.byIDsErr
}
func (f *fakeStore) Upsert(ctx context.Context, rows []storage.Record) error {
	f.upserted = append(f.upserted, rows...)
	return f.upsertErr
}
func (f *fakeStore) RefreshTimestamps(ctx context.Context, ids []string) error {
	f.refreshed = append(f.refreshed, ids...)
	return f.refreshErr
}
func (f *fakeStore) Close() error { return nil }

type fakeScraper struct {
	result external.ScrapeResult
	err    error
}

func (f *fakeScraper) Fetch(ctx context.Context, params external.ScrapeParams) (external.ScrapeResult, error) {
	return f.result, f.err
}

type fakeLinkTracker struct {
	shortURL string
	err      error
	calls    int
}

func (f *fakeLinkTracker) Shorten(ctx context.Context, targetURL string, attrs external.LinkAttribution) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.shortURL, nil
}

type fakeProvider struct {
	result []classifier.Result
	err    error
}

func (f *fakeProvider) Classify(ctx context.Context, classifierType classifier.Type, batch []classifier.Request) ([]classifier.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	out := make([]classifier.Result, len(batch))
	for i, req := range batch {
		out[i] = classifier.Result{JobID: req.JobID, Match: schema.MatchGood, Reason: "fits", Summary: "ok"}
	}
	return out, nil
}
func (f *fakeProvider) Name() common.LLMProvider { return common.LLMProvider("fake") }
func (f *fakeProvider) Close() error              { return nil }

func outscraperPosting(title, company, location string) map[string]any {
	return map[string]any{
		"title":             title,
		"company":           company,
		"formattedLocation": location,
		"snippet":           "Home daily, no experience required",
		"viewJobLink":       "https://indeed.com/job/" + title,
		"salary":             "$60,000 a year",
	}
}

// --- consultBypass ---

func TestConsultBypassNoStoreReturnsFullScrape(t *testing.T) {
	o := &Orchestrator{Logger: testLogger()}
	decision, err := o.consultBypass(context.Background(), Request{}, routing.RouteFilterBoth, 100)
	require.NoError(t, err)
	assert.Equal(t, bypass.FullScrape, decision.Type)
	assert.Equal(t, 100, decision.ScrapeTarget)
}

func TestConsultBypassForceMemoryOnly(t *testing.T) {
	store := &fakeStore{searchResult: []storage.Record{{JobID: "job-1", MatchLevel: schema.MatchGood}}}
	o := &Orchestrator{Store: store, BypassConfig: bypass.DefaultConfig(), Logger: testLogger()}
	decision, err := o.consultBypass(context.Background(), Request{ForceMemoryOnly: true}, routing.RouteFilterBoth, 100)
	require.NoError(t, err)
	assert.Equal(t, bypass.FullBypass, decision.Type)
	assert.Len(t, decision.MemoryRows, 1)
}

func TestConsultBypassForceFresh(t *testing.T) {
	store := &fakeStore{searchResult: []storage.Record{{JobID: "job-1", MatchLevel: schema.MatchGood}}}
	o := &Orchestrator{Store: store, BypassConfig: bypass.DefaultConfig(), Logger: testLogger()}
	decision, err := o.consultBypass(context.Background(), Request{ForceFresh: true}, routing.RouteFilterBoth, 100)
	require.NoError(t, err)
	assert.Equal(t, bypass.FullScrape, decision.Type)
	assert.Contains(t, decision.Reason, "force_fresh")
}

func TestConsultBypassDefaultEvaluates(t *testing.T) {
	store := &fakeStore{}
	o := &Orchestrator{Store: store, BypassConfig: bypass.DefaultConfig(), Logger: testLogger()}
	decision, err := o.consultBypass(context.Background(), Request{}, routing.RouteFilterBoth, 100)
	require.NoError(t, err)
	assert.Equal(t, bypass.FullScrape, decision.Type, "no memory rows available, so the default path should fall back to a full scrape")
}

// --- ingest ---

func TestIngestFullBypassSkipsScraping(t *testing.T) {
	scraper := &fakeScraper{result: external.ScrapeResult{Postings: []map[string]any{outscraperPosting("CDL Driver", "Acme", "Dallas, TX")}}}
	o := &Orchestrator{Scrapers: map[string]external.ScraperClient{schema.SourceIndeed: scraper}, Logger: testLogger()}
	decision := bypass.Decision{Type: bypass.FullBypass, MemoryRows: []storage.Record{{JobID: "job-1", MatchLevel: schema.MatchGood}}}

	fr, cost, err := o.ingest(context.Background(), Request{SearchSources: []string{schema.SourceIndeed}}, decision)
	require.NoError(t, err)
	assert.Equal(t, 1, fr.Len())
	assert.Equal(t, "job-1", fr.Rows[0].GetString("id.job"))
	assert.Empty(t, cost)
}

func TestIngestSmartCreditMergesMemoryAndScrapes(t *testing.T) {
	scraper := &fakeScraper{result: external.ScrapeResult{
		Postings: []map[string]any{outscraperPosting("CDL Driver", "Acme", "Dallas, TX")},
		Cost:     2.5,
	}}
	o := &Orchestrator{Scrapers: map[string]external.ScraperClient{schema.SourceIndeed: scraper}, Logger: testLogger()}
	decision := bypass.Decision{Type: bypass.SmartCredit, ScrapeTarget: 10, MemoryRows: []storage.Record{{JobID: "job-mem"}}}

	fr, cost, err := o.ingest(context.Background(), Request{SearchSources: []string{schema.SourceIndeed}}, decision)
	require.NoError(t, err)
	assert.Equal(t, 2, fr.Len(), "smart credit should merge memory rows with freshly scraped rows")
	assert.Equal(t, 2.5, cost[schema.SourceIndeed])
}

func TestIngestDegradesSourceFailureToZeroCost(t *testing.T) {
	failing := &fakeScraper{err: errors.New("upstream timeout")}
	o := &Orchestrator{Scrapers: map[string]external.ScraperClient{schema.SourceIndeed: failing}, Logger: testLogger()}
	decision := bypass.Decision{Type: bypass.FullScrape, ScrapeTarget: 10}

	fr, cost, err := o.ingest(context.Background(), Request{SearchSources: []string{schema.SourceIndeed}}, decision)
	require.NoError(t, err, "a failing source should degrade, not abort the run")
	assert.Equal(t, 0, fr.Len())
	assert.Equal(t, 0.0, cost[schema.SourceIndeed])
}

func TestIngestSkipsSourcesWithoutAConfiguredScraper(t *testing.T) {
	o := &Orchestrator{Scrapers: map[string]external.ScraperClient{}, Logger: testLogger()}
	decision := bypass.Decision{Type: bypass.FullScrape, ScrapeTarget: 10}

	fr, cost, err := o.ingest(context.Background(), Request{SearchSources: []string{schema.SourceGoogle}}, decision)
	require.NoError(t, err)
	assert.Equal(t, 0, fr.Len())
	assert.Empty(t, cost)
}

// --- classification reset / error marking ---

func TestResetClassificationClearsAIFields(t *testing.T) {
	fr := frame.Empty()
	r := frame.NewRow()
	r.Set("ai.match", schema.MatchGood)
	r.Set("ai.reason", "previously classified")
	r.Set("sys.classification_source", schema.ClassificationSourceFreshAI)
	r.Set("sys.classified_at", "2026-01-01T00:00:00Z")
	fr.Append(r)

	resetClassification(fr)

	assert.Empty(t, fr.Rows[0].GetString("ai.match"))
	assert.Empty(t, fr.Rows[0].GetString("sys.classification_source"))
	assert.Empty(t, fr.Rows[0].GetString("sys.classified_at"))
}

func TestMarkErroredRowsSetsErrorOnStillPendingRows(t *testing.T) {
	fr := frame.Empty()
	pending := frame.NewRow()
	pending.Set("ai.match", "")
	fr.Append(pending)
	classified := frame.NewRow()
	classified.Set("ai.match", schema.MatchGood)
	fr.Append(classified)

	markErroredRows(fr)

	assert.Equal(t, schema.MatchError, fr.Rows[0].GetString("ai.match"))
	assert.Equal(t, schema.MatchGood, fr.Rows[1].GetString("ai.match"))
}

// --- export ---

func TestGenerateTrackedURLsSkipsRowsThatAlreadyHaveOne(t *testing.T) {
	tracker := &fakeLinkTracker{shortURL: "https://trk.example.com/x"}
	o := &Orchestrator{LinkTracker: tracker, Logger: testLogger()}

	r := frame.NewRow()
	r.Set("meta.tracked_url", "https://already-tracked.example.com")
	fr := frame.Empty()
	fr.Append(r)

	o.generateTrackedURLs(context.Background(), fr, []int{0}, Request{})

	assert.Equal(t, "https://already-tracked.example.com", fr.Rows[0].GetString("meta.tracked_url"))
	assert.Equal(t, 0, tracker.calls)
}

func TestGenerateTrackedURLsPrefersCleanApplyURLOverSourceURL(t *testing.T) {
	tracker := &fakeLinkTracker{shortURL: "https://trk.example.com/x"}
	o := &Orchestrator{LinkTracker: tracker, Logger: testLogger()}

	r := frame.NewRow()
	r.Set("rules.clean_apply_url", "https://clean.example.com/apply")
	r.Set("source.url", "https://raw.example.com/apply")
	fr := frame.Empty()
	fr.Append(r)

	o.generateTrackedURLs(context.Background(), fr, []int{0}, Request{})

	assert.Equal(t, "https://trk.example.com/x", fr.Rows[0].GetString("meta.tracked_url"))
}

func TestGenerateTrackedURLsFallsBackToOriginalURLOnError(t *testing.T) {
	tracker := &fakeLinkTracker{err: errors.New("shortener down")}
	o := &Orchestrator{LinkTracker: tracker, Logger: testLogger()}

	r := frame.NewRow()
	r.Set("source.url", "https://raw.example.com/apply")
	fr := frame.Empty()
	fr.Append(r)

	o.generateTrackedURLs(context.Background(), fr, []int{0}, Request{})

	assert.Equal(t, "https://raw.example.com/apply", fr.Rows[0].GetString("meta.tracked_url"))
}

func TestGenerateTrackedURLsSkipsRowsWithNoURLAtAll(t *testing.T) {
	tracker := &fakeLinkTracker{shortURL: "https://trk.example.com/x"}
	o := &Orchestrator{LinkTracker: tracker, Logger: testLogger()}

	fr := frame.Empty()
	fr.Append(frame.NewRow())

	o.generateTrackedURLs(context.Background(), fr, []int{0}, Request{})

	assert.Equal(t, 0, tracker.calls)
	assert.Empty(t, fr.Rows[0].GetString("meta.tracked_url"))
}

// --- persist ---

func TestPersistUpsertsFreshRowsAndRefreshesMemoryRows(t *testing.T) {
	store := &fakeStore{}
	o := &Orchestrator{Store: store, Logger: testLogger()}

	fresh := frame.NewRow()
	fresh.Set("id.job", "job-fresh")
	fresh.Set("sys.is_fresh_job", true)

	reused := frame.NewRow()
	reused.Set("id.job", "job-memory")
	reused.Set("sys.is_fresh_job", false)

	fr := frame.Empty()
	fr.Append(fresh)
	fr.Append(reused)

	err := o.persist(context.Background(), fr, []int{0, 1})
	require.NoError(t, err)

	require.Len(t, store.upserted, 1)
	assert.Equal(t, "job-fresh", store.upserted[0].JobID)
	assert.Equal(t, []string{"job-memory"}, store.refreshed)
}

func TestPersistNoOpWithoutAStore(t *testing.T) {
	o := &Orchestrator{Logger: testLogger()}
	fr := frame.Empty()
	fr.Append(frame.NewRow())
	err := o.persist(context.Background(), fr, []int{0})
	require.NoError(t, err)
}

// --- finalize ---

func TestFinalizeCountsAndCost(t *testing.T) {
	fr := frame.Empty()

	good := frame.NewRow()
	good.Set("ai.match", schema.MatchGood)
	good.Set("ai.route_type", "Local")
	good.Set("route.final_status", "included")
	good.Set("sys.is_fresh_job", true)
	good.Set("sys.classification_source", schema.ClassificationSourceFreshAI)
	fr.Append(good)

	memoryRow := frame.NewRow()
	memoryRow.Set("ai.match", schema.MatchSoSo)
	memoryRow.Set("ai.route_type", "OTR")
	memoryRow.Set("route.final_status", "included_from_memory")
	memoryRow.Set("sys.is_fresh_job", false)
	memoryRow.Set("sys.classification_source", schema.ClassificationSourceMemory)
	fr.Append(memoryRow)

	result := newResult("run-1")
	finalizeCounts(result, fr, []int{0, 1})
	finalizeCost(result, fr, 0.001)

	assert.Equal(t, 2, result.TotalJobs)
	assert.Equal(t, 2, result.IncludedJobs)
	assert.Equal(t, 2, result.QualityJobs)
	assert.Equal(t, 1, result.CountsByMatch[schema.MatchGood])
	assert.Equal(t, 1, result.CountsByRoute["OTR"])
	assert.Equal(t, 1, result.CountsByFinalStatus["included_from_memory"])
	assert.Equal(t, 50.0, result.Cost.MemoryEfficiency)
	assert.Equal(t, 50.0, result.Cost.FreshShare)
	assert.Equal(t, 0.001, result.Cost.ClassificationCost, "only the freshly-classified row should contribute classification cost")
	assert.Equal(t, 0.001, result.Cost.TotalCost)
	assert.Equal(t, 0.0005, result.Cost.CostPerQualityJob)
}

// --- RunMemoryOnlySearch ---

func TestRunMemoryOnlySearchErrorsWithoutStore(t *testing.T) {
	o := &Orchestrator{Logger: testLogger()}
	_, err := o.RunMemoryOnlySearch(context.Background(), MemorySearchRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errMemoryUnavailable))
}

func TestRunMemoryOnlySearchDefaultsMatchLevelsAndStampsRows(t *testing.T) {
	store := &fakeStore{searchResult: []storage.Record{
		{JobID: "job-1", JobTitle: "CDL Driver", MatchLevel: schema.MatchGood},
	}}
	o := &Orchestrator{Store: store, Logger: testLogger()}

	result, err := o.RunMemoryOnlySearch(context.Background(), MemorySearchRequest{
		Location:    "Dallas, TX",
		SearchTerms: "cdl driver",
		Agent:       AgentContext{CoachUsername: "coach1", CandidateID: "cand1"},
	})
	require.NoError(t, err)
	require.Equal(t, "completed", result.Status)
	require.Equal(t, 1, result.Frame.Len())
	assert.Equal(t, []string{schema.MatchGood, schema.MatchSoSo}, store.lastFilter.MatchLevels)

	row := result.Frame.Rows[0]
	assert.Equal(t, "Dallas, TX", row.GetString("search.location"))
	assert.Equal(t, "cdl driver", row.GetString("meta.query"))
	assert.Equal(t, "coach1", row.GetString("agent.coach_username"))
	assert.Equal(t, "included_from_memory", row.GetString("route.final_status"))
	assert.True(t, row.GetBool("route.ready_for_export"))
	assert.Equal(t, 100.0, result.Cost.MemoryEfficiency)
	assert.Equal(t, 0.0, result.Cost.FreshShare)
}

// --- RunCompletePipeline end-to-end ---

func TestRunCompletePipelineEndToEndFullScrape(t *testing.T) {
	scraper := &fakeScraper{result: external.ScrapeResult{
		Postings: []map[string]any{outscraperPosting("CDL Driver", "Acme Logistics", "Dallas, TX")},
		Cost:     1.0,
	}}
	store := &fakeStore{}
	tracker := &fakeLinkTracker{shortURL: "https://trk.example.com/1"}
	provider := &fakeProvider{}

	o := &Orchestrator{
		Store:          store,
		Scrapers:       map[string]external.ScraperClient{schema.SourceIndeed: scraper},
		LinkTracker:    tracker,
		ClassifierProv: provider,
		BypassConfig:   bypass.DefaultConfig(),
		ClassifierOpts: classifier.Options{Type: classifier.TypeCDL, BatchSize: 10, MaxConcurrentBatches: 1},
		Logger:         testLogger(),
	}

	req := Request{
		Location:      "Dallas, TX",
		Mode:          ModeSample,
		SearchTerms:   "cdl driver",
		RouteFilter:   routing.RouteFilterBoth,
		SearchSources: []string{schema.SourceIndeed},
	}

	result, err := o.RunCompletePipeline(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, 1, result.TotalJobs)
	require.Len(t, store.upserted, 1)
	assert.Equal(t, 1, tracker.calls)
	assert.Equal(t, bypass.FullScrape, result.BypassDecision.Type, "no store rows exist yet, so this run should fall back to a full scrape")
}

func TestRunCompletePipelineContinuesWhenClassifierErrors(t *testing.T) {
	scraper := &fakeScraper{result: external.ScrapeResult{
		Postings: []map[string]any{outscraperPosting("CDL Driver", "Acme Logistics", "Dallas, TX")},
	}}
	provider := &fakeProvider{err: errors.New("provider unavailable")}

	o := &Orchestrator{
		Scrapers:       map[string]external.ScraperClient{schema.SourceIndeed: scraper},
		ClassifierProv: provider,
		BypassConfig:   bypass.DefaultConfig(),
		ClassifierOpts: classifier.Options{Type: classifier.TypeCDL, BatchSize: 10, MaxConcurrentBatches: 1},
		Logger:         testLogger(),
	}

	req := Request{
		Mode:          ModeTest,
		SearchSources: []string{schema.SourceIndeed},
	}

	result, err := o.RunCompletePipeline(context.Background(), req)
	require.NoError(t, err, "a classifier failure should degrade the run, not abort it")
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, schema.MatchError, result.Frame.Rows[0].GetString("ai.match"),
		"a provider error is absorbed into a per-row error result rather than aborting the batch")
}
