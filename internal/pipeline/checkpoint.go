package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/freeworld-coach/jobpipeline/internal/frame"
	"github.com/freeworld-coach/jobpipeline/internal/schema"
)

// checkpointSnapshot is the JSON-serializable projection of a frame written
// to a checkpoint file; each row carries every registered column (keys are
// written in encoding/json's sorted map-key order).
type checkpointSnapshot struct {
	RunID string           `json:"run_id"`
	Stage string           `json:"stage"`
	Rows  []map[string]any `json:"rows"`
}

// writeCheckpoint persists fr as an immutable snapshot tagged with runID and
// stage, per §4.10: "<run_id>_<stage>.parquet or equivalent columnar
// snapshot". A parquet writer has no home anywhere in the corpus, so this
// uses a JSON snapshot instead (see DESIGN.md), written atomically via the
// standard write-temp-then-rename idiom. Checkpoint failures are logged and
// swallowed — they must never abort the run.
func writeCheckpoint(dir, runID, stage string, fr *frame.Frame, logger arbor.ILogger) {
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("failed to create checkpoint directory")
		return
	}

	snapshot := checkpointSnapshot{RunID: runID, Stage: stage}
	for _, r := range fr.Rows {
		row := make(map[string]any)
		for _, name := range schema.Names() {
			row[name] = r.Get(name)
		}
		snapshot.Rows = append(snapshot.Rows, row)
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		logger.Warn().Err(err).Str("stage", stage).Msg("failed to marshal checkpoint snapshot")
		return
	}

	finalPath := filepath.Join(dir, fmt.Sprintf("%s_%s.json", runID, stage))
	tmpPath := finalPath + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		logger.Warn().Err(err).Str("path", tmpPath).Msg("failed to write checkpoint temp file")
		return
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		logger.Warn().Err(err).Str("path", finalPath).Msg("failed to rename checkpoint into place")
		_ = os.Remove(tmpPath)
	}
}
