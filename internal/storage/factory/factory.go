// Package factory selects and constructs the configured JobStore backend.
// It is kept separate from package storage (which only declares the
// interface) so that the badger and postgres implementations can depend on
// the interface package without a build cycle back through this factory.
package factory

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/freeworld-coach/jobpipeline/internal/common"
	"github.com/freeworld-coach/jobpipeline/internal/storage"
	"github.com/freeworld-coach/jobpipeline/internal/storage/badger"
	"github.com/freeworld-coach/jobpipeline/internal/storage/postgres"
)

// New constructs the job store backend selected by cfg.Storage.Backend,
// mirroring the teacher's own config-selected storage factory.
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (storage.JobStore, error) {
	switch cfg.Storage.Backend {
	case "", "badger":
		db, err := badger.NewBadgerDB(logger, &cfg.Storage.Badger)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger job store: %w", err)
		}
		return badger.NewJobStore(db, logger), nil
	case "postgres":
		store, err := postgres.NewJobStore(ctx, &cfg.Storage.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres job store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
