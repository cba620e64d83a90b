package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/freeworld-coach/jobpipeline/internal/storage"
)

// badgerRecord is the badgerhold-indexed projection of storage.Record. A
// thin wrapper struct (rather than storing storage.Record directly) gives
// badgerhold an indexed field to query on without exporting index tags into
// the wire type other backends also serialize.
type badgerRecord struct {
	JobID      string `badgerholdKey:"JobID"`
	Record     storage.Record
	Market     string `badgerholdIndex:"Market"`
	MatchLevel string `badgerholdIndex:"MatchLevel"`
}

// JobStore implements storage.JobStore for an embedded BadgerDB, adapted
// line-for-line from the teacher's badgerhold Upsert/Get/Find idiom.
type JobStore struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStore creates a new JobStore instance over an open BadgerDB.
func NewJobStore(db *BadgerDB, logger arbor.ILogger) *JobStore {
	return &JobStore{db: db, logger: logger}
}

func (s *JobStore) GetByIDs(ctx context.Context, ids []string, hoursWindow time.Duration) ([]storage.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cutoff := time.Now().Add(-hoursWindow)
	keys := make([]interface{}, len(ids))
	for i, id := range ids {
		keys[i] = id
	}

	var rows []badgerRecord
	query := badgerhold.Where("JobID").In(keys...).And("Record.UpdatedAt").Ge(cutoff)
	if err := s.db.Store().Find(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to get jobs by id: %w", err)
	}

	out := make([]storage.Record, len(rows))
	for i := range rows {
		out[i] = rows[i].Record
	}
	return out, nil
}

func (s *JobStore) Search(ctx context.Context, filter storage.SearchFilter) ([]storage.Record, error) {
	query := badgerhold.Where("JobID").Ne("")

	if filter.Market != "" {
		query = query.And("Market").Eq(filter.Market)
	}
	if !filter.Since.IsZero() {
		query = query.And("Record.UpdatedAt").Ge(filter.Since)
	}
	query = query.SortBy("Record.UpdatedAt").Reverse()
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []badgerRecord
	if err := s.db.Store().Find(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to search jobs: %w", err)
	}

	matchSet := make(map[string]bool, len(filter.MatchLevels))
	for _, m := range filter.MatchLevels {
		matchSet[m] = true
	}

	out := make([]storage.Record, 0, len(rows))
	for _, r := range rows {
		if len(matchSet) > 0 && !matchSet[r.Record.MatchLevel] {
			continue
		}
		if filter.RouteFilter != "" && filter.RouteFilter != "both" {
			want := ""
			switch filter.RouteFilter {
			case "local":
				want = "Local"
			case "otr":
				want = "OTR"
			}
			if want != "" && r.Record.RouteType != want {
				continue
			}
		}
		if filter.FairChanceOnly && !r.Record.FairChance {
			continue
		}
		out = append(out, r.Record)
	}
	return out, nil
}

func (s *JobStore) Upsert(ctx context.Context, rows []storage.Record) error {
	for _, row := range rows {
		if row.JobID == "" {
			return fmt.Errorf("job_id is required for upsert")
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = time.Now()
		}
		row.UpdatedAt = time.Now()

		rec := badgerRecord{
			JobID:      row.JobID,
			Record:     row,
			Market:     row.Market,
			MatchLevel: row.MatchLevel,
		}
		if err := s.db.Store().Upsert(row.JobID, &rec); err != nil {
			return fmt.Errorf("failed to upsert job %s: %w", row.JobID, err)
		}
	}
	return nil
}

func (s *JobStore) RefreshTimestamps(ctx context.Context, ids []string) error {
	now := time.Now()
	for _, id := range ids {
		var rec badgerRecord
		if err := s.db.Store().Get(id, &rec); err != nil {
			if err == badgerhold.ErrNotFound {
				continue
			}
			return fmt.Errorf("failed to load job %s for timestamp refresh: %w", id, err)
		}
		rec.Record.UpdatedAt = now
		if err := s.db.Store().Upsert(id, &rec); err != nil {
			return fmt.Errorf("failed to refresh timestamp for job %s: %w", id, err)
		}
	}
	return nil
}

func (s *JobStore) Close() error {
	return s.db.Close()
}
