package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/freeworld-coach/jobpipeline/internal/bypass"
	"github.com/freeworld-coach/jobpipeline/internal/classifier"
	"github.com/freeworld-coach/jobpipeline/internal/common"
	"github.com/freeworld-coach/jobpipeline/internal/external"
	"github.com/freeworld-coach/jobpipeline/internal/httpclient"
	"github.com/freeworld-coach/jobpipeline/internal/pipeline"
	"github.com/freeworld-coach/jobpipeline/internal/routing"
	"github.com/freeworld-coach/jobpipeline/internal/schema"
	"github.com/freeworld-coach/jobpipeline/internal/storage/factory"
)

func main() {
	var (
		configPath       = flag.String("config", "", "path to pipeline.toml")
		envConfigPath    = flag.String("env-config", "", "path to an environment-specific overlay config")
		location         = flag.String("location", "", "search location, e.g. \"Dallas, TX\"")
		terms            = flag.String("terms", "CDL driver", "search terms")
		mode             = flag.String("mode", string(pipeline.ModeSample), "scrape target tier: test|mini|sample|medium|large|full")
		sources          = flag.String("sources", "indeed,google", "comma-separated source list")
		routeFilter      = flag.String("route", string(routing.RouteFilterBoth), "local|otr|both")
		classifierType   = flag.String("classifier", "cdl", "cdl|pathway")
		forceFresh       = flag.Bool("force-fresh", false, "bypass the credit controller and scrape fresh")
		forceFreshClass  = flag.Bool("force-fresh-classification", false, "re-classify every row instead of reusing ai.* fields")
		memoryOnly       = flag.Bool("memory-only", false, "serve the run entirely from the persistent store")
		coach            = flag.String("coach", "", "coach username, stamped on agent.coach_username")
		candidate        = flag.String("candidate", "", "candidate id, stamped on agent.candidate_id")
		fairChanceOnly   = flag.Bool("fair-chance-only", false, "restrict results to fair-chance-friendly postings")
		ownerOpFilter    = flag.Bool("filter-owner-op", true, "flag and route-filter owner-operator postings")
		schoolBusFilter  = flag.Bool("filter-school-bus", true, "flag and route-filter school bus postings")
		spamFilter       = flag.Bool("filter-spam", true, "flag and route-filter spam postings")
		experienceFilter = flag.Bool("filter-experience", true, "flag postings requiring significant prior experience")
		r1Dedup          = flag.Bool("dedup-r1", true, "collapse duplicate postings by company/title/market")
		r2Dedup          = flag.Bool("dedup-r2", true, "collapse duplicate postings by normalized company/location")
		urlDedup         = flag.Bool("dedup-url", true, "collapse duplicate postings by apply url, preferring indeed over google")
	)
	flag.Parse()

	cfg, err := common.LoadFromFiles(*configPath, *envConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := common.SetupLogger(cfg)
	common.PrintBanner(cfg, logger)
	defer common.Stop()

	crashDir := cfg.Checkpoint.Dir
	if crashDir == "" {
		crashDir = "./logs"
	}
	common.InstallCrashHandler(crashDir)
	defer common.RecoverWithCrashFile()

	ctx := context.Background()

	store, err := factory.New(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize persistent job store")
		os.Exit(1)
	}
	defer store.Close()

	scraperTimeout := cfg.Scraper.RequestTimeout
	if scraperTimeout <= 0 {
		scraperTimeout = 2 * time.Minute
	}
	scraperHTTP := httpclient.NewDefaultHTTPClient(scraperTimeout)

	scrapers := map[string]external.ScraperClient{
		schema.SourceIndeed: external.NewOutscraperClient(scraperHTTP, cfg.Scraper.OutscraperURL, cfg.Scraper.OutscraperKey, logger),
		schema.SourceGoogle: external.NewGoogleJobsClient(scraperHTTP, cfg.Scraper.GoogleJobsURL, cfg.Scraper.GoogleJobsKey, logger),
	}

	linkHTTP := httpclient.NewDefaultHTTPClient(cfg.LinkTracker.RequestTimeout)
	linkTracker := external.NewHTTPLinkTracker(linkHTTP, cfg.LinkTracker.BaseURL, cfg.LinkTracker.APIKey, cfg.LinkTracker.Enabled, logger)

	provider, err := classifier.NewProvider(ctx, cfg, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("classifier provider unavailable, rows will be left unclassified")
		provider = nil
	}
	if provider != nil {
		defer provider.Close()
	}

	memoryReuseWindow, err := time.ParseDuration(cfg.Classifier.MemoryReuseWindow)
	if err != nil {
		memoryReuseWindow = 720 * time.Hour
	}

	orch := &pipeline.Orchestrator{
		Store:          store,
		Scrapers:       scrapers,
		LinkTracker:    linkTracker,
		ClassifierProv: provider,
		BypassConfig: bypass.Config{
			CostPerJob:    cfg.Bypass.CostPerJob,
			QualityRate:   cfg.Bypass.QualityYieldRate,
			LookbackHours: parseHours(cfg.Bypass.LookbackWindow, 96),
			LargeModeCap:  cfg.Bypass.LargeModeCap,
			LargeModeAt:   cfg.Bypass.LargeModeThreshold,
		},
		ClassifierOpts: classifier.Options{
			BatchSize:            cfg.Classifier.BatchSize,
			MaxConcurrentBatches: cfg.Classifier.MaxConcurrentBatches,
			MemoryReuseWindow:    memoryReuseWindow,
		},
		CheckpointDir: cfg.Checkpoint.Dir,
		CheckpointOn:  cfg.Checkpoint.Enabled,
		Logger:        logger,
	}

	agent := pipeline.AgentContext{
		CoachUsername:  *coach,
		CandidateID:    *candidate,
		FairChanceOnly: *fairChanceOnly,
	}

	var result *pipeline.Result
	if *memoryOnly {
		result, err = orch.RunMemoryOnlySearch(ctx, pipeline.MemorySearchRequest{
			Location:       *location,
			SearchTerms:    *terms,
			RouteFilter:    routing.RouteFilter(*routeFilter),
			FairChanceOnly: *fairChanceOnly,
			Agent:          agent,
		})
	} else {
		result, err = orch.RunCompletePipeline(ctx, pipeline.Request{
			Location:                 *location,
			Mode:                     pipeline.Mode(*mode),
			SearchTerms:              *terms,
			RouteFilter:              routing.RouteFilter(*routeFilter),
			SearchSources:            splitSources(*sources),
			ForceFresh:               *forceFresh,
			ForceFreshClassification: *forceFreshClass,
			ForceMemoryOnly:          false,
			FilterSettings: pipeline.FilterSettingsInput{
				OwnerOp:          *ownerOpFilter,
				SchoolBus:        *schoolBusFilter,
				SpamFilter:       *spamFilter,
				ExperienceFilter: *experienceFilter,
				R1Dedup:          *r1Dedup,
				R2Dedup:          *r2Dedup,
				URLDedup:         *urlDedup,
			},
			ClassifierType: classifier.Type(*classifierType),
			Agent:          agent,
		})
	}

	if err != nil {
		logger.Error().Err(err).Msg("pipeline run failed")
		os.Exit(1)
	}

	logger.Info().
		Str("run_id", result.RunID).
		Str("status", result.Status).
		Int("total_jobs", result.TotalJobs).
		Int("included_jobs", result.IncludedJobs).
		Int("quality_jobs", result.QualityJobs).
		Float64("total_cost", result.Cost.TotalCost).
		Float64("cost_per_quality_job", result.Cost.CostPerQualityJob).
		Float64("memory_efficiency_pct", result.Cost.MemoryEfficiency).
		Float64("processing_time_seconds", result.ProcessingTimeSeconds).
		Msg("pipeline run finished")

	for _, w := range result.Warnings {
		logger.Warn().Msg(w)
	}

	common.PrintShutdownBanner(logger)
}

func splitSources(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseHours(raw string, fallback int) int {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return int(d.Hours())
}
