// Package schema declares the canonical field registry for job posting rows
// that flow through the pipeline. Every stage reads and writes fields through
// this registry rather than touching a bare map, so a column can never be
// introduced outside its declared namespace.
package schema

import "strings"

// Namespace identifies which pipeline stage owns a field.
type Namespace string

const (
	NamespaceID     Namespace = "id"
	NamespaceSource Namespace = "source"
	NamespaceNorm   Namespace = "norm"
	NamespaceRules  Namespace = "rules"
	NamespaceAI     Namespace = "ai"
	NamespaceRoute  Namespace = "route"
	NamespaceMeta   Namespace = "meta"
	NamespaceSearch Namespace = "search"
	NamespaceAgent  Namespace = "agent"
	NamespaceQA     Namespace = "qa"
	NamespaceSys    Namespace = "sys"
)

// Kind is the typed default a field falls back to when unset.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindStringSlice
)

// Field describes one column of the canonical frame.
type Field struct {
	Name      string // e.g. "source.title"
	Namespace Namespace
	Kind      Kind
}

// Default returns the typed zero-value for the field's kind.
func (f Field) Default() any {
	switch f.Kind {
	case KindInt:
		return 0
	case KindFloat:
		return 0.0
	case KindBool:
		return false
	case KindStringSlice:
		return []string{}
	default:
		return ""
	}
}

func field(name string, kind Kind) Field {
	ns := name
	if i := strings.IndexByte(name, '.'); i >= 0 {
		ns = name[:i]
	}
	return Field{Name: name, Namespace: Namespace(ns), Kind: kind}
}

// Registry is the closed, ordered set of every canonical column. New columns
// are added here only; nothing outside this file may introduce a field name.
var Registry = []Field{
	// id.*
	field("id.job", KindString),
	field("id.source", KindString),

	// source.*
	field("source.title", KindString),
	field("source.company", KindString),
	field("source.location_raw", KindString),
	field("source.description_raw", KindString),
	field("source.url", KindString),
	field("source.posted_date", KindString),
	field("source.salary_raw", KindString),

	// norm.*
	field("norm.title", KindString),
	field("norm.company", KindString),
	field("norm.city", KindString),
	field("norm.state", KindString),
	field("norm.location", KindString),
	field("norm.description", KindString),
	field("norm.salary_min", KindFloat),
	field("norm.salary_max", KindFloat),
	field("norm.salary_unit", KindString),
	field("norm.salary_currency", KindString),
	field("norm.salary_display", KindString),

	// rules.*
	field("rules.is_owner_op", KindBool),
	field("rules.is_school_bus", KindBool),
	field("rules.is_spam_source", KindBool),
	field("rules.has_experience_req", KindBool),
	field("rules.experience_years_min", KindInt),
	field("rules.duplicate_r1", KindString),
	field("rules.duplicate_r2", KindString),
	field("rules.clean_apply_url", KindString),

	// ai.*
	field("ai.match", KindString),
	field("ai.reason", KindString),
	field("ai.summary", KindString),
	field("ai.fair_chance", KindBool),
	field("ai.endorsements", KindStringSlice),
	field("ai.route_type", KindString),
	field("ai.career_pathway", KindString),
	field("ai.training_provided", KindBool),

	// route.*
	field("route.filtered", KindBool),
	field("route.filter_reason", KindString),
	field("route.final_status", KindString),
	field("route.ready_for_ai", KindBool),
	field("route.ready_for_export", KindBool),
	field("route.stage", KindString),

	// meta.*
	field("meta.market", KindString),
	field("meta.query", KindString),
	field("meta.tracked_url", KindString),

	// search.*
	field("search.location", KindString),
	field("search.mode", KindString),
	field("search.limit", KindInt),
	field("search.route_filter", KindString),

	// agent.*
	field("agent.coach_username", KindString),
	field("agent.candidate_id", KindString),
	field("agent.fair_chance_only", KindBool),

	// qa.*
	field("qa.valid", KindBool),
	field("qa.validation_notes", KindString),

	// sys.*
	field("sys.run_id", KindString),
	field("sys.is_fresh_job", KindBool),
	field("sys.classification_source", KindString),
	field("sys.created_at", KindString),
	field("sys.updated_at", KindString),
	field("sys.classified_at", KindString),
}

var byName = func() map[string]Field {
	m := make(map[string]Field, len(Registry))
	for _, f := range Registry {
		m[f.Name] = f
	}
	return m
}()

// Lookup returns the field descriptor for a canonical name.
func Lookup(name string) (Field, bool) {
	f, ok := byName[name]
	return f, ok
}

// Known reports whether name is a declared column.
func Known(name string) bool {
	_, ok := byName[name]
	return ok
}

// Names returns every declared column name in registration order.
func Names() []string {
	names := make([]string, len(Registry))
	for i, f := range Registry {
		names[i] = f.Name
	}
	return names
}

// Quality tiers for ai.match.
const (
	MatchGood  = "good"
	MatchSoSo  = "so-so"
	MatchBad   = "bad"
	MatchError = "error"
)

// IsQuality reports whether a match tier is exportable.
func IsQuality(match string) bool {
	return match == MatchGood || match == MatchSoSo
}

// Route types for ai.route_type.
const (
	RouteLocal   = "Local"
	RouteOTR     = "OTR"
	RouteUnknown = "Unknown"
)

// Classification provenance values for sys.classification_source.
const (
	ClassificationSourceFreshAI = "fresh_ai"
	ClassificationSourceMemory  = "supabase_memory"
)

// Source identifiers for id.source.
const (
	SourceIndeed = "indeed"
	SourceGoogle = "google"
)
