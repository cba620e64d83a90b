// Package classifier implements §4.6's AI classification: dual-provider LLM
// calls with strict JSON output, batched and rate-limited, plus a
// memory-reuse pre-pass over the persistent store.
package classifier

import (
	"context"

	"github.com/freeworld-coach/jobpipeline/internal/common"
)

// Type selects the prompt variant, per §6.5's classifier_type input.
type Type string

const (
	TypeCDL     Type = "cdl"
	TypePathway Type = "pathway"
)

// Request is one posting sent to the LLM for classification.
type Request struct {
	JobID       string
	JobTitle    string
	Company     string
	Location    string
	Description string
}

// Result is the strict-JSON classification the LLM returns for one job,
// per §4.6's ai.* field list.
type Result struct {
	JobID             string   `json:"job_id"`
	Match             string   `json:"match"`
	Reason            string   `json:"reason"`
	Summary           string   `json:"summary"`
	FairChance        bool     `json:"fair_chance"`
	Endorsements      []string `json:"endorsements"`
	CareerPathway     string   `json:"career_pathway,omitempty"`
	TrainingProvided  bool     `json:"training_provided,omitempty"`
}

// Provider is a single LLM backend, adapted from the teacher's llm.Provider
// interface but narrowed to the classifier's one structured-output call.
type Provider interface {
	Classify(ctx context.Context, classifierType Type, batch []Request) ([]Result, error)
	Name() common.LLMProvider
	Close() error
}

// errorResult builds the degraded result §4.6 mandates on parse/transport
// failure for a row: ai.match="error" with a short cause in ai.reason.
func errorResult(jobID, cause string) Result {
	return Result{
		JobID:   jobID,
		Match:   "error",
		Reason:  "Classification failed: " + cause,
		Summary: "Job classification encountered an error",
	}
}
