// Package dedupe implements §4.5's four-stage deduplication: exact-id, R1
// (company+title+market), R2 (company+location), and URL-canonical, each
// preserving the best representative and physically dropping the rest.
package dedupe

import (
	"github.com/freeworld-coach/jobpipeline/internal/frame"
	"github.com/freeworld-coach/jobpipeline/internal/rules"
	"github.com/freeworld-coach/jobpipeline/internal/schema"
)

// Run applies all four dedup steps in order and returns a new frame with
// every row still marked route.filtered=true physically removed, per §4.5.
func Run(fr *frame.Frame, settings rules.FilterSettings) *frame.Frame {
	exactID(fr)

	if settings.R1Dedup {
		collapseBy(fr, "rules.duplicate_r1", "filtered: R1 collapse", nil)
	}
	if settings.R2Dedup {
		collapseBy(fr, "rules.duplicate_r2", "filtered: R2 collapse", nil)
	}
	if settings.URLDedup {
		collapseBy(fr, "rules.clean_apply_url", "filtered: URL duplicate", urlPreference)
	}

	return fr.Keep(func(r *frame.Row) bool {
		return !r.GetBool("route.filtered")
	})
}

// exactID groups by id.job and keeps the last occurrence, so a fresh row
// (appended after memory rows during ingestion merge) wins over its memory
// counterpart, per §4.5 step 1.
func exactID(fr *frame.Frame) {
	lastIndex := make(map[string]int, fr.Len())
	for i, r := range fr.Rows {
		id := r.GetString("id.job")
		if id == "" {
			continue
		}
		lastIndex[id] = i
	}

	for i, r := range fr.Rows {
		id := r.GetString("id.job")
		if id == "" {
			continue
		}
		if lastIndex[id] != i {
			markFiltered(r, "filtered: exact-id collapse")
		}
	}
}

// urlPreference ranks indeed over google when both candidates have equal
// standing (both unfiltered so far), per §4.5 step 4.
func urlPreference(candidate, current *frame.Row) bool {
	if current == nil {
		return true
	}
	if candidate.GetString("id.source") == schema.SourceIndeed && current.GetString("id.source") != schema.SourceIndeed {
		return true
	}
	return false
}

// collapseBy groups not-yet-filtered rows with a non-empty key value and
// keeps the first (or the preference winner, if prefer is set), filtering
// the rest with reason.
func collapseBy(fr *frame.Frame, field, reason string, prefer func(candidate, current *frame.Row) bool) {
	kept := make(map[string]*frame.Row)

	for _, r := range fr.Rows {
		if r.GetBool("route.filtered") {
			continue
		}
		key := r.GetString(field)
		if key == "" {
			continue
		}
		if existing, ok := kept[key]; ok {
			if prefer != nil && prefer(r, existing) {
				markFiltered(existing, reason)
				kept[key] = r
			} else {
				markFiltered(r, reason)
			}
			continue
		}
		kept[key] = r
	}
}

func markFiltered(r *frame.Row, reason string) {
	r.Set("route.filtered", true)
	r.Set("route.filter_reason", reason)
	r.Set("route.final_status", reason)
	r.Set("route.ready_for_ai", false)
}
