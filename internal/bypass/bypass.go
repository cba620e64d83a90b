// Package bypass implements §4.9's credit/bypass controller, ported from
// the original SimpleBypassSystem.execute_bypass: decides how much fresh
// (paid) scraping to request versus how much to serve from the persistent
// store (free).
package bypass

import (
	"context"
	"math"
	"time"

	"github.com/freeworld-coach/jobpipeline/internal/routing"
	"github.com/freeworld-coach/jobpipeline/internal/storage"
)

// Type is the controller's decision.
type Type string

const (
	FullBypass  Type = "FULL_BYPASS"
	SmartCredit Type = "SMART_CREDIT"
	FullScrape  Type = "FULL_SCRAPE"
)

// Decision is the advisory structure the orchestrator logs and surfaces in
// the statistics block.
type Decision struct {
	Type             Type
	Reason           string
	AvailableQuality int
	ScrapeTarget     int
	CostSaved        float64
	MemoryRows       []storage.Record
}

// Config tunes the controller's thresholds, defaulting to the original's
// constants (cost_per_job=0.001, quality_rate=0.15, hours_back=96).
type Config struct {
	CostPerJob      float64
	QualityRate     float64
	LookbackHours   int
	LargeModeCap    int
	LargeModeAt     int
}

func DefaultConfig() Config {
	return Config{
		CostPerJob:    0.001,
		QualityRate:   0.15,
		LookbackHours: 96,
		LargeModeCap:  100,
		LargeModeAt:   1000,
	}
}

// Searcher is the subset of the memory adapter the controller needs: a
// filtered lookup of quality rows within a recency window.
type Searcher interface {
	Search(ctx context.Context, filter storage.SearchFilter) ([]storage.Record, error)
}

// Evaluate decides FULL_BYPASS / SMART_CREDIT / FULL_SCRAPE for a target
// scrape count of targetJobs in market, honoring routeFilter, per §4.9's
// four-step procedure.
func Evaluate(ctx context.Context, store Searcher, cfg Config, market string, targetJobs int, routeFilter routing.RouteFilter) (Decision, error) {
	available, rows, err := availableQuality(ctx, store, cfg, market, routeFilter)
	if err != nil {
		return Decision{}, err
	}
	return decide(cfg, targetJobs, available, rows), nil
}

// ForceMemoryOnly forces FULL_BYPASS with whatever is available, including
// an empty set, per §4.9's force_memory_only input.
func ForceMemoryOnly(ctx context.Context, store Searcher, cfg Config, market string, routeFilter routing.RouteFilter) (Decision, error) {
	available, rows, err := availableQuality(ctx, store, cfg, market, routeFilter)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Type:             FullBypass,
		Reason:           "forced memory-only search",
		AvailableQuality: available,
		ScrapeTarget:     0,
		CostSaved:        1.0,
		MemoryRows:       rows,
	}, nil
}

func availableQuality(ctx context.Context, store Searcher, cfg Config, market string, routeFilter routing.RouteFilter) (int, []storage.Record, error) {
	since := time.Now().Add(-time.Duration(cfg.LookbackHours) * time.Hour)
	rows, err := store.Search(ctx, storage.SearchFilter{
		Market:      market,
		MatchLevels: []string{"good", "so-so"},
		Since:       since,
		RouteFilter: string(routeFilter),
		Limit:       100,
	})
	if err != nil {
		return 0, nil, err
	}
	return len(rows), rows, nil
}

func decide(cfg Config, targetJobs, available int, rows []storage.Record) Decision {
	expectedQuality := int(float64(targetJobs) * cfg.QualityRate)

	minBypassJobs := expectedQuality
	if targetJobs >= cfg.LargeModeAt {
		minBypassJobs = cfg.LargeModeCap
	}

	switch {
	case available >= minBypassJobs-1:
		costSaved := float64(targetJobs) * cfg.CostPerJob
		return Decision{
			Type:             FullBypass,
			Reason:           "sufficient recent quality jobs found",
			AvailableQuality: available,
			ScrapeTarget:     0,
			CostSaved:        costSaved,
			MemoryRows:       rows,
		}
	case available >= 3:
		qualityNeeded := expectedQuality - available
		if qualityNeeded < 0 {
			qualityNeeded = 0
		}
		scrapeNeeded := 0
		if qualityNeeded > 0 {
			scrapeNeeded = int(math.Ceil(float64(qualityNeeded) / cfg.QualityRate))
		}
		if scrapeNeeded > targetJobs {
			scrapeNeeded = targetJobs
		}
		originalCost := float64(targetJobs) * cfg.CostPerJob
		reducedCost := float64(scrapeNeeded) * cfg.CostPerJob
		return Decision{
			Type:             SmartCredit,
			Reason:           "using memory jobs plus reduced scraping",
			AvailableQuality: available,
			ScrapeTarget:     scrapeNeeded,
			CostSaved:        originalCost - reducedCost,
			MemoryRows:       rows,
		}
	default:
		return Decision{
			Type:             FullScrape,
			Reason:           "insufficient memory jobs, scraping full target",
			AvailableQuality: available,
			ScrapeTarget:     targetJobs,
			CostSaved:        0,
			MemoryRows:       nil,
		}
	}
}
