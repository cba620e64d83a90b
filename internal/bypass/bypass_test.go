package bypass

import (
	"context"
	"testing"

	"github.com/freeworld-coach/jobpipeline/internal/routing"
	"github.com/freeworld-coach/jobpipeline/internal/storage"
)

// fakeSearcher returns a fixed set of records regardless of filter, standing
// in for the persistent store in these controller-logic tests.
type fakeSearcher struct {
	records []storage.Record
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, filter storage.SearchFilter) ([]storage.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func recordsN(n int) []storage.Record {
	out := make([]storage.Record, n)
	for i := range out {
		out[i] = storage.Record{JobID: "job", MatchLevel: "good"}
	}
	return out
}

func TestEvaluateFullBypassWhenSufficientMemory(t *testing.T) {
	store := &fakeSearcher{records: recordsN(20)}
	cfg := DefaultConfig()

	decision, err := Evaluate(context.Background(), store, cfg, "Dallas, TX", 100, routing.RouteFilterBoth)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if decision.Type != FullBypass {
		t.Errorf("Type = %q, want %q", decision.Type, FullBypass)
	}
	if decision.ScrapeTarget != 0 {
		t.Errorf("ScrapeTarget = %d, want 0", decision.ScrapeTarget)
	}
	if len(decision.MemoryRows) != 20 {
		t.Errorf("MemoryRows = %d, want 20", len(decision.MemoryRows))
	}
}

func TestEvaluateSmartCreditWhenPartialMemory(t *testing.T) {
	store := &fakeSearcher{records: recordsN(5)}
	cfg := DefaultConfig()

	decision, err := Evaluate(context.Background(), store, cfg, "Dallas, TX", 100, routing.RouteFilterBoth)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if decision.Type != SmartCredit {
		t.Errorf("Type = %q, want %q", decision.Type, SmartCredit)
	}
	if decision.ScrapeTarget <= 0 || decision.ScrapeTarget >= 100 {
		t.Errorf("ScrapeTarget = %d, want a reduced but positive target", decision.ScrapeTarget)
	}
}

func TestEvaluateFullScrapeWhenNoMemory(t *testing.T) {
	store := &fakeSearcher{records: nil}
	cfg := DefaultConfig()

	decision, err := Evaluate(context.Background(), store, cfg, "Dallas, TX", 100, routing.RouteFilterBoth)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if decision.Type != FullScrape {
		t.Errorf("Type = %q, want %q", decision.Type, FullScrape)
	}
	if decision.ScrapeTarget != 100 {
		t.Errorf("ScrapeTarget = %d, want 100", decision.ScrapeTarget)
	}
	if decision.CostSaved != 0 {
		t.Errorf("CostSaved = %v, want 0", decision.CostSaved)
	}
}

func TestEvaluateLargeModeCapsBypassThreshold(t *testing.T) {
	// At targetJobs=1000 (large-mode threshold), minBypassJobs is the
	// large-mode cap (100), not 15% of target (150 under the normal rule) --
	// so 98 available rows should fall short of full bypass here.
	store := &fakeSearcher{records: recordsN(98)}
	cfg := DefaultConfig()

	decision, err := Evaluate(context.Background(), store, cfg, "Dallas, TX", 1000, routing.RouteFilterBoth)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if decision.Type == FullBypass {
		t.Error("98 available rows should not satisfy the large-mode bypass cap of 100")
	}
}

func TestEvaluatePropagatesSearchError(t *testing.T) {
	store := &fakeSearcher{err: context.DeadlineExceeded}

	_, err := Evaluate(context.Background(), store, DefaultConfig(), "Dallas, TX", 100, routing.RouteFilterBoth)
	if err == nil {
		t.Error("Evaluate() should propagate a search error")
	}
}

func TestForceMemoryOnlyAlwaysFullBypass(t *testing.T) {
	store := &fakeSearcher{records: nil}

	decision, err := ForceMemoryOnly(context.Background(), store, DefaultConfig(), "Dallas, TX", routing.RouteFilterBoth)
	if err != nil {
		t.Fatalf("ForceMemoryOnly() error = %v", err)
	}
	if decision.Type != FullBypass {
		t.Errorf("Type = %q, want %q even with zero available rows", decision.Type, FullBypass)
	}
	if decision.ScrapeTarget != 0 {
		t.Errorf("ScrapeTarget = %d, want 0", decision.ScrapeTarget)
	}
}
