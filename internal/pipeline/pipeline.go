// Package pipeline implements §4.10's orchestrator: it runs the ordered
// stages over one frame, consults the credit/bypass controller, checkpoints
// between stages, and returns a statistics block alongside the final frame.
package pipeline

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/freeworld-coach/jobpipeline/internal/bypass"
	"github.com/freeworld-coach/jobpipeline/internal/classifier"
	"github.com/freeworld-coach/jobpipeline/internal/external"
	"github.com/freeworld-coach/jobpipeline/internal/frame"
	"github.com/freeworld-coach/jobpipeline/internal/routing"
	"github.com/freeworld-coach/jobpipeline/internal/sources"
	"github.com/freeworld-coach/jobpipeline/internal/storage"
)

// Mode selects the scrape target per §6.5.
type Mode string

const (
	ModeTest   Mode = "test"
	ModeMini   Mode = "mini"
	ModeSample Mode = "sample"
	ModeMedium Mode = "medium"
	ModeLarge  Mode = "large"
	ModeFull   Mode = "full"
)

// modeTargets maps a mode to its scrape target job count, per §6.5.
var modeTargets = map[Mode]int{
	ModeTest:   10,
	ModeMini:   50,
	ModeSample: 100,
	ModeMedium: 250,
	ModeLarge:  500,
	ModeFull:   1000,
}

// TargetFor returns the scrape target job count for mode, defaulting to the
// sample tier for an unrecognized mode.
func TargetFor(mode Mode) int {
	if n, ok := modeTargets[mode]; ok {
		return n
	}
	return modeTargets[ModeSample]
}

// Strategy is a scheduling hint for concurrent source calls; both adapters
// still run concurrently regardless, per §6.5.
type Strategy string

const (
	StrategyBalanced    Strategy = "balanced"
	StrategyIndeedFirst Strategy = "indeed_first"
	StrategyGoogleFirst Strategy = "google_first"
)

// AgentContext carries per-request attribution fields set on every row
// (agent.* namespace) and used by the link tracker's attribution tags.
type AgentContext struct {
	CoachUsername   string
	CandidateID     string
	FairChanceOnly  bool
}

// Request is the input to RunCompletePipeline, mirroring spec.md §4.10's
// run_complete_pipeline signature.
type Request struct {
	Location                 string
	Mode                     Mode
	SearchTerms              string
	RouteFilter              routing.RouteFilter
	SearchSources            []string // subset of {"indeed", "google"}
	Strategy                 Strategy
	ForceFresh               bool
	ForceFreshClassification bool
	ForceMemoryOnly          bool
	FilterSettings           FilterSettingsInput
	ClassifierType           classifier.Type
	Agent                    AgentContext
}

// FilterSettingsInput mirrors rules.FilterSettings; kept as a separate type
// here so request decoding (e.g. from a config file or CLI flags) doesn't
// need to import internal/rules directly.
type FilterSettingsInput struct {
	OwnerOp          bool
	SchoolBus        bool
	SpamFilter       bool
	ExperienceFilter bool
	R1Dedup          bool
	R2Dedup          bool
	URLDedup         bool
}

// MemorySearchRequest is the input to RunMemoryOnlySearch, per §4.10's
// run_memory_only_search signature.
type MemorySearchRequest struct {
	Location       string
	SearchTerms    string
	Limit          int
	MatchLevels    []string
	RouteFilter    routing.RouteFilter
	FairChanceOnly bool
	Agent          AgentContext
}

// CostBlock is the cost/efficiency reporting mandated by §4.10, always
// present in the result.
type CostBlock struct {
	ScrapeCostBySource map[string]float64
	ClassificationCost float64
	TotalCost          float64
	CostPerQualityJob  float64
	MemoryEfficiency   float64 // memory_rows / total_rows * 100
	FreshShare         float64 // 100 - MemoryEfficiency, invariant 8
}

// Result is the orchestrator's return value, per §6.4's result schema.
type Result struct {
	RunID                 string
	Status                string // "completed" | "error"
	Frame                 *frame.Frame
	TotalJobs             int
	IncludedJobs          int
	QualityJobs           int
	CountsByMatch         map[string]int
	CountsByRoute         map[string]int
	CountsByFinalStatus   map[string]int
	Cost                  CostBlock
	ProcessingTimeSeconds float64
	BypassDecision        bypass.Decision
	Warnings              []string
}

// Orchestrator wires the concrete collaborators one pipeline run needs:
// source adapters, the persistent store, the classifier provider, the
// link tracker, and the bypass controller's tunables.
type Orchestrator struct {
	Store           storage.JobStore
	Scrapers        map[string]external.ScraperClient // keyed by schema.SourceIndeed / schema.SourceGoogle
	LinkTracker     external.LinkTracker
	ClassifierProv  classifier.Provider
	BypassConfig    bypass.Config
	ClassifierOpts  classifier.Options
	CheckpointDir   string
	CheckpointOn    bool
	Logger          arbor.ILogger
}

func (o *Orchestrator) memory() *sources.Memory {
	if o.Store == nil {
		return nil
	}
	return sources.NewMemory(o.Store)
}

// newResult seeds a Result with zeroed count maps so callers never index a
// nil map.
func newResult(runID string) *Result {
	return &Result{
		RunID:               runID,
		CountsByMatch:       make(map[string]int),
		CountsByRoute:       make(map[string]int),
		CountsByFinalStatus: make(map[string]int),
		Cost:                CostBlock{ScrapeCostBySource: make(map[string]float64)},
	}
}

func elapsedSeconds(start time.Time) float64 {
	return time.Since(start).Seconds()
}

// ctxOrBackground returns ctx unchanged, or context.Background() if ctx is
// nil — a defensive guard for callers (e.g. scheduled CLI invocations) that
// don't thread a context through.
func ctxOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
