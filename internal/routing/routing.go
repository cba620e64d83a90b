// Package routing implements §4.8's final row-level disposition, computed
// after route-type derivation and before export.
package routing

import (
	"github.com/freeworld-coach/jobpipeline/internal/frame"
	"github.com/freeworld-coach/jobpipeline/internal/schema"
)

// RouteFilter selects which route types are exportable for a run.
type RouteFilter string

const (
	RouteFilterBoth  RouteFilter = "both"
	RouteFilterLocal RouteFilter = "local"
	RouteFilterOTR   RouteFilter = "otr"
)

// Apply sets route.final_status and route.ready_for_export on every
// not-already-filtered row, in the rule order from §4.8.
func Apply(fr *frame.Frame, routeFilter RouteFilter) {
	for _, r := range fr.Rows {
		applyRow(r, routeFilter)
	}
}

func applyRow(r *frame.Row, routeFilter RouteFilter) {
	if r.GetBool("route.filtered") {
		r.Set("route.ready_for_export", false)
		return
	}

	switch {
	case r.GetBool("rules.is_owner_op"):
		filter(r, "filtered: owner operator")
	case r.GetBool("rules.is_school_bus"):
		filter(r, "filtered: school bus")
	case r.GetBool("rules.is_spam_source"):
		filter(r, "filtered: spam source")
	case r.GetString("ai.match") == schema.MatchBad:
		filter(r, "filtered: AI classified as bad")
	case routeFilter == RouteFilterLocal && r.GetString("ai.route_type") != schema.RouteLocal:
		filter(r, "filtered: route filter")
	case routeFilter == RouteFilterOTR && r.GetString("ai.route_type") != schema.RouteOTR:
		filter(r, "filtered: route filter")
	case schema.IsQuality(r.GetString("ai.match")):
		r.Set("route.final_status", "included: "+r.GetString("ai.match")+" match")
	default:
		r.Set("route.final_status", "passed_all_filters")
	}

	r.Set("route.ready_for_export", schema.IsQuality(r.GetString("ai.match")) && !r.GetBool("route.filtered"))
}

func filter(r *frame.Row, reason string) {
	r.Set("route.filtered", true)
	r.Set("route.filter_reason", reason)
	r.Set("route.final_status", reason)
}

// MarkExported advances route.stage to "exported" for every row in view and
// sets route.final_status to reflect whether it is fresh or memory-reused,
// per §4.10 step 6.
func MarkExported(fr *frame.Frame, view []int) {
	for _, i := range view {
		r := fr.Rows[i]
		r.Set("route.stage", "exported")
		if r.GetBool("sys.is_fresh_job") {
			r.Set("route.final_status", "included")
		} else {
			r.Set("route.final_status", "included_from_memory")
		}
	}
}
