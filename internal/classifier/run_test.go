package classifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/freeworld-coach/jobpipeline/internal/common"
	"github.com/freeworld-coach/jobpipeline/internal/frame"
	"github.com/freeworld-coach/jobpipeline/internal/schema"
	"github.com/freeworld-coach/jobpipeline/internal/storage"
)

type fakeProvider struct {
	results []Result
	err     error
	calls   int
}

func (f *fakeProvider) Classify(ctx context.Context, classifierType Type, batch []Request) ([]Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Result, len(batch))
	for i, req := range batch {
		out[i] = Result{JobID: req.JobID, Match: schema.MatchGood, Reason: "looks good", Summary: "ok"}
	}
	return out, nil
}
func (f *fakeProvider) Name() common.LLMProvider { return common.LLMProvider("fake") }
func (f *fakeProvider) Close() error              { return nil }

type fakeMemoryLookup struct {
	records map[string]storage.Record
}

func (f *fakeMemoryLookup) GetByIDs(ctx context.Context, ids []string, hoursWindow time.Duration) ([]storage.Record, error) {
	out := make([]storage.Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := f.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func rowWithJobID(id string) *frame.Row {
	r := frame.NewRow()
	r.Set("id.job", id)
	return r
}

func TestRunReusesMemoryWithoutCallingProvider(t *testing.T) {
	fr := frame.Empty()
	fr.Append(rowWithJobID("job-1"))

	mem := &fakeMemoryLookup{records: map[string]storage.Record{
		"job-1": {JobID: "job-1", MatchLevel: schema.MatchGood, MatchReason: "cached", Summary: "cached summary"},
	}}
	provider := &fakeProvider{}

	err := Run(context.Background(), fr, mem, provider, Options{MemoryReuseWindow: 720 * time.Hour}, testLogger())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("provider.calls = %d, want 0 (row should be served from memory)", provider.calls)
	}
	if got := fr.Rows[0].GetString("ai.match"); got != schema.MatchGood {
		t.Errorf("ai.match = %q, want %q", got, schema.MatchGood)
	}
	if got := fr.Rows[0].GetString("sys.classification_source"); got != schema.ClassificationSourceMemory {
		t.Errorf("sys.classification_source = %q, want %q", got, schema.ClassificationSourceMemory)
	}
}

func TestRunFallsBackToProviderOnMemoryMiss(t *testing.T) {
	fr := frame.Empty()
	fr.Append(rowWithJobID("job-1"))

	mem := &fakeMemoryLookup{records: map[string]storage.Record{}}
	provider := &fakeProvider{}

	err := Run(context.Background(), fr, mem, provider, Options{MemoryReuseWindow: 720 * time.Hour, BatchSize: 10}, testLogger())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if provider.calls != 1 {
		t.Errorf("provider.calls = %d, want 1", provider.calls)
	}
	if got := fr.Rows[0].GetString("sys.classification_source"); got != schema.ClassificationSourceFreshAI {
		t.Errorf("sys.classification_source = %q, want %q", got, schema.ClassificationSourceFreshAI)
	}
}

func TestRunSkipsAlreadyClassifiedRows(t *testing.T) {
	fr := frame.Empty()
	classified := rowWithJobID("job-1")
	classified.Set("ai.match", schema.MatchBad)
	fr.Append(classified)

	provider := &fakeProvider{}
	err := Run(context.Background(), fr, nil, provider, Options{}, testLogger())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("provider.calls = %d, want 0 for an already-classified row", provider.calls)
	}
}

func TestRunDegradesToErrorResultOnProviderFailure(t *testing.T) {
	fr := frame.Empty()
	fr.Append(rowWithJobID("job-1"))

	provider := &fakeProvider{err: errors.New("provider unavailable")}
	err := Run(context.Background(), fr, nil, provider, Options{BatchSize: 10}, testLogger())
	if err != nil {
		t.Fatalf("Run() should not return an error on provider failure, got %v", err)
	}
	if got := fr.Rows[0].GetString("ai.match"); got != schema.MatchError {
		t.Errorf("ai.match = %q, want %q (degraded completion)", got, schema.MatchError)
	}
}

func TestRunBatchesAcrossMultipleGroups(t *testing.T) {
	fr := frame.Empty()
	for i := 0; i < 5; i++ {
		fr.Append(rowWithJobID("job"))
	}
	// give each row a distinct job id so batch-to-row mapping is unambiguous
	for i, r := range fr.Rows {
		r.Set("id.job", string(rune('a'+i)))
	}

	provider := &fakeProvider{}
	err := Run(context.Background(), fr, nil, provider, Options{BatchSize: 2, MaxConcurrentBatches: 2}, testLogger())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if provider.calls != 3 {
		t.Errorf("provider.calls = %d, want 3 batches of size <=2 for 5 rows", provider.calls)
	}
	for _, r := range fr.Rows {
		if r.GetString("ai.match") != schema.MatchGood {
			t.Errorf("row %s left unclassified", r.GetString("id.job"))
		}
	}
}
