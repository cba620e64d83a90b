package routing

import (
	"testing"

	"github.com/freeworld-coach/jobpipeline/internal/frame"
	"github.com/freeworld-coach/jobpipeline/internal/schema"
)

func TestApplyFiltersOwnerOpBeforeAIMatch(t *testing.T) {
	fr := frame.Empty()
	r := frame.NewRow()
	r.Set("rules.is_owner_op", true)
	r.Set("ai.match", schema.MatchGood)
	fr.Append(r)

	Apply(fr, RouteFilterBoth)

	if !r.GetBool("route.filtered") {
		t.Error("owner-op should be filtered regardless of AI match")
	}
	if r.GetBool("route.ready_for_export") {
		t.Error("filtered row should not be ready_for_export")
	}
}

func TestApplyAlreadyFilteredRowSkipsRuleCascade(t *testing.T) {
	fr := frame.Empty()
	r := frame.NewRow()
	r.Set("route.filtered", true)
	r.Set("route.filter_reason", "filtered: exact-id collapse")
	fr.Append(r)

	Apply(fr, RouteFilterBoth)

	if r.GetString("route.filter_reason") != "filtered: exact-id collapse" {
		t.Error("an already-filtered row's reason should not be overwritten")
	}
	if r.GetBool("route.ready_for_export") {
		t.Error("already-filtered row should not become ready_for_export")
	}
}

func TestApplyRouteFilterLocalExcludesOTR(t *testing.T) {
	fr := frame.Empty()
	r := frame.NewRow()
	r.Set("ai.match", schema.MatchGood)
	r.Set("ai.route_type", schema.RouteOTR)
	fr.Append(r)

	Apply(fr, RouteFilterLocal)

	if !r.GetBool("route.filtered") {
		t.Error("OTR row should be filtered out under a local-only route filter")
	}
}

func TestApplyQualityMatchIncluded(t *testing.T) {
	fr := frame.Empty()
	r := frame.NewRow()
	r.Set("ai.match", schema.MatchSoSo)
	r.Set("ai.route_type", schema.RouteLocal)
	fr.Append(r)

	Apply(fr, RouteFilterBoth)

	if r.GetBool("route.filtered") {
		t.Error("a quality match within the route filter should not be filtered")
	}
	if !r.GetBool("route.ready_for_export") {
		t.Error("a quality match within the route filter should be ready_for_export")
	}
}

func TestApplyBadMatchFiltered(t *testing.T) {
	fr := frame.Empty()
	r := frame.NewRow()
	r.Set("ai.match", schema.MatchBad)
	fr.Append(r)

	Apply(fr, RouteFilterBoth)

	if !r.GetBool("route.filtered") {
		t.Error("a bad AI match should be filtered")
	}
}

func TestMarkExportedDistinguishesFreshFromMemory(t *testing.T) {
	fr := frame.Empty()
	fresh := frame.NewRow()
	fresh.Set("sys.is_fresh_job", true)
	fr.Append(fresh)
	memory := frame.NewRow()
	memory.Set("sys.is_fresh_job", false)
	fr.Append(memory)

	MarkExported(fr, []int{0, 1})

	if fresh.GetString("route.final_status") != "included" {
		t.Errorf("fresh row final_status = %q, want included", fresh.GetString("route.final_status"))
	}
	if memory.GetString("route.final_status") != "included_from_memory" {
		t.Errorf("memory row final_status = %q, want included_from_memory", memory.GetString("route.final_status"))
	}
	if fresh.GetString("route.stage") != "exported" || memory.GetString("route.stage") != "exported" {
		t.Error("both rows should advance to stage=exported")
	}
}
