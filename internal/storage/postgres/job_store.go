// Package postgres implements the persistent job store on top of Postgres,
// using github.com/jackc/pgx/v5/pgxpool for connection pooling and
// parameterized upserts. This backend is grounded in ncecere-raito's use of
// pgx for an upsert-heavy row store, since the original system's persistent
// store (a Supabase/Postgres table) maps more directly onto SQL than onto
// the teacher's embedded BadgerDB.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"

	"github.com/freeworld-coach/jobpipeline/internal/common"
	"github.com/freeworld-coach/jobpipeline/internal/storage"
)

// JobStore implements storage.JobStore over a pgxpool connection pool.
type JobStore struct {
	pool      *pgxpool.Pool
	logger    arbor.ILogger
	tableName string
}

// NewJobStore opens a connection pool and returns a ready JobStore. It does
// not create the table; schema migration is the deployment's responsibility.
func NewJobStore(ctx context.Context, cfg *common.PostgresConfig, logger arbor.ILogger) (*JobStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	table := cfg.TableName
	if table == "" {
		table = "jobs"
	}

	logger.Debug().Str("table", table).Msg("Postgres job store connected")

	return &JobStore{pool: pool, logger: logger, tableName: table}, nil
}

func (s *JobStore) GetByIDs(ctx context.Context, ids []string, hoursWindow time.Duration) ([]storage.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cutoff := time.Now().Add(-hoursWindow)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE job_id = ANY($1) AND updated_at >= $2`, recordColumns, s.tableName)

	rows, err := s.pool.Query(ctx, query, ids, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs by id: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (s *JobStore) Search(ctx context.Context, filter storage.SearchFilter) ([]storage.Record, error) {
	var conditions []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Market != "" {
		conditions = append(conditions, "market = "+arg(filter.Market))
	}
	if len(filter.MatchLevels) > 0 {
		conditions = append(conditions, "match_level = ANY("+arg(filter.MatchLevels)+")")
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "updated_at >= "+arg(filter.Since))
	}
	switch filter.RouteFilter {
	case "local":
		conditions = append(conditions, "route_type = "+arg("Local"))
	case "otr":
		conditions = append(conditions, "route_type = "+arg("OTR"))
	}
	if filter.FairChanceOnly {
		conditions = append(conditions, "fair_chance = true")
	}

	query := fmt.Sprintf(`SELECT %s FROM %s`, recordColumns, s.tableName)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY updated_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search jobs: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

const recordColumns = `job_id, job_title, company, location, job_description, apply_url,
	indeed_job_url, google_job_url, salary, match_level, match_reason, summary,
	fair_chance, endorsements, route_type, market, search_query,
	classification_source, clean_apply_url, tracked_url,
	rules_duplicate_r1, rules_duplicate_r2, job_id_hash,
	created_at, updated_at, classified_at`

func scanRecords(rows pgx.Rows) ([]storage.Record, error) {
	var out []storage.Record
	for rows.Next() {
		var r storage.Record
		if err := rows.Scan(
			&r.JobID, &r.JobTitle, &r.Company, &r.Location, &r.JobDescription, &r.ApplyURL,
			&r.IndeedJobURL, &r.GoogleJobURL, &r.Salary, &r.MatchLevel, &r.MatchReason, &r.Summary,
			&r.FairChance, &r.Endorsements, &r.RouteType, &r.Market, &r.SearchQuery,
			&r.ClassificationSource, &r.CleanApplyURL, &r.TrackedURL,
			&r.RulesDuplicateR1, &r.RulesDuplicateR2, &r.JobIDHash,
			&r.CreatedAt, &r.UpdatedAt, &r.ClassifiedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Upsert writes rows keyed on job_id, updating every column on conflict.
func (s *JobStore) Upsert(ctx context.Context, rows []storage.Record) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	now := time.Now()
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)
		ON CONFLICT (job_id) DO UPDATE SET
			job_title = EXCLUDED.job_title, company = EXCLUDED.company, location = EXCLUDED.location,
			job_description = EXCLUDED.job_description, apply_url = EXCLUDED.apply_url,
			indeed_job_url = EXCLUDED.indeed_job_url, google_job_url = EXCLUDED.google_job_url,
			salary = EXCLUDED.salary, match_level = EXCLUDED.match_level, match_reason = EXCLUDED.match_reason,
			summary = EXCLUDED.summary, fair_chance = EXCLUDED.fair_chance, endorsements = EXCLUDED.endorsements,
			route_type = EXCLUDED.route_type, market = EXCLUDED.market, search_query = EXCLUDED.search_query,
			classification_source = EXCLUDED.classification_source, clean_apply_url = EXCLUDED.clean_apply_url,
			tracked_url = EXCLUDED.tracked_url, rules_duplicate_r1 = EXCLUDED.rules_duplicate_r1,
			rules_duplicate_r2 = EXCLUDED.rules_duplicate_r2, job_id_hash = EXCLUDED.job_id_hash,
			updated_at = EXCLUDED.updated_at, classified_at = EXCLUDED.classified_at
	`, s.tableName, recordColumns)

	for _, r := range rows {
		if r.JobID == "" {
			return fmt.Errorf("job_id is required for upsert")
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		r.UpdatedAt = now

		batch.Queue(query,
			r.JobID, r.JobTitle, r.Company, r.Location, r.JobDescription, r.ApplyURL,
			r.IndeedJobURL, r.GoogleJobURL, r.Salary, r.MatchLevel, r.MatchReason, r.Summary,
			r.FairChance, r.Endorsements, r.RouteType, r.Market, r.SearchQuery,
			r.ClassificationSource, r.CleanApplyURL, r.TrackedURL,
			r.RulesDuplicateR1, r.RulesDuplicateR2, r.JobIDHash,
			r.CreatedAt, r.UpdatedAt, r.ClassifiedAt,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert job batch: %w", err)
		}
	}
	return nil
}

func (s *JobStore) RefreshTimestamps(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`UPDATE %s SET updated_at = $1 WHERE job_id = ANY($2)`, s.tableName)
	_, err := s.pool.Exec(ctx, query, time.Now(), ids)
	if err != nil {
		return fmt.Errorf("failed to refresh timestamps: %w", err)
	}
	return nil
}

func (s *JobStore) Close() error {
	s.pool.Close()
	return nil
}
