// Package storage declares the persistent job store interface (§6.1) and its
// row shape. Backend selection from configuration lives in storage/factory.
package storage

import (
	"context"
	"time"
)

// Record is the persistent-store row shape, matching §6.1's indicative
// column list. It is the projection produced by pipeline's rowToRecord, kept
// here (rather than in package schema) since it is this package's wire
// format to whichever backend is selected.
type Record struct {
	JobID                string    `json:"job_id"`
	JobTitle             string    `json:"job_title"`
	Company              string    `json:"company"`
	Location             string    `json:"location"`
	JobDescription       string    `json:"job_description"`
	ApplyURL             string    `json:"apply_url"`
	IndeedJobURL         string    `json:"indeed_job_url"`
	GoogleJobURL         string    `json:"google_job_url"`
	Salary               string    `json:"salary"`
	MatchLevel           string    `json:"match_level"`
	MatchReason          string    `json:"match_reason"`
	Summary              string    `json:"summary"`
	FairChance           bool      `json:"fair_chance"`
	Endorsements         []string  `json:"endorsements"`
	RouteType            string    `json:"route_type"`
	Market               string    `json:"market"`
	SearchQuery          string    `json:"search_query"`
	ClassificationSource string    `json:"classification_source"`
	CleanApplyURL        string    `json:"clean_apply_url"`
	TrackedURL           string    `json:"tracked_url"`
	RulesDuplicateR1     string    `json:"rules_duplicate_r1"`
	RulesDuplicateR2     string    `json:"rules_duplicate_r2"`
	JobIDHash            string    `json:"job_id_hash"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
	ClassifiedAt         time.Time `json:"classified_at"`
}

// SearchFilter narrows a memory-store search per §6.1/§4.9.
type SearchFilter struct {
	Market         string
	MatchLevels    []string // e.g. {"good", "so-so"}
	Since          time.Time
	RouteFilter    string // "both" | "local" | "otr"
	FairChanceOnly bool
	Limit          int
}

// JobStore is the persistent job store interface. Every backend (badger,
// postgres) implements this identically; the pipeline is backend-agnostic.
type JobStore interface {
	GetByIDs(ctx context.Context, ids []string, hoursWindow time.Duration) ([]Record, error)
	Search(ctx context.Context, filter SearchFilter) ([]Record, error)
	Upsert(ctx context.Context, rows []Record) error
	RefreshTimestamps(ctx context.Context, ids []string) error
	Close() error
}
