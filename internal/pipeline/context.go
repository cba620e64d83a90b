package pipeline

import (
	"github.com/freeworld-coach/jobpipeline/internal/frame"
	"github.com/freeworld-coach/jobpipeline/internal/routing"
)

// applySearchAndAgentContext stamps search.*, agent.*, meta.market, and
// meta.query on every row, per §4.10 step 4. It runs once, immediately
// after fresh and memory rows are merged, so every later stage sees a
// fully-populated context regardless of which adapter produced the row.
func applySearchAndAgentContext(fr *frame.Frame, req Request, runID string) {
	for _, r := range fr.Rows {
		r.Set("search.location", req.Location)
		r.Set("search.mode", string(req.Mode))
		r.Set("search.limit", TargetFor(req.Mode))
		r.Set("search.route_filter", string(req.RouteFilter))

		r.Set("agent.coach_username", req.Agent.CoachUsername)
		r.Set("agent.candidate_id", req.Agent.CandidateID)
		r.Set("agent.fair_chance_only", req.Agent.FairChanceOnly)

		r.Set("meta.market", req.Location)
		r.Set("meta.query", req.SearchTerms)

		r.Set("sys.run_id", runID)
	}
}

func toRouteFilter(rf routing.RouteFilter) routing.RouteFilter {
	switch rf {
	case routing.RouteFilterLocal, routing.RouteFilterOTR:
		return rf
	default:
		return routing.RouteFilterBoth
	}
}
