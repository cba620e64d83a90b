package common

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewRunID generates a unique pipeline run identifier: pipeline_<UTC
// timestamp>_<random>, so checkpoint filenames sort chronologically and
// still disambiguate two runs started in the same second.
func NewRunID() string {
	ts := time.Now().UTC().Format("20060102T150405")
	rand := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return "pipeline_" + ts + "_" + rand
}

// NewJobID generates a unique synthetic job identifier with the "job_" prefix,
// used only when a source record has no stable external identifier.
// Format: job_<uuid>
func NewJobID() string {
	return "job_" + uuid.New().String()
}
