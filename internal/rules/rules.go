// Package rules implements §4.4 business-rule flags and dedup key
// derivation over the canonical frame.
package rules

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/freeworld-coach/jobpipeline/internal/frame"
)

// FilterSettings toggles each independently-disableable rule/dedup step,
// per §6.5's filter_settings map.
type FilterSettings struct {
	OwnerOp         bool
	SchoolBus       bool
	SpamFilter      bool
	ExperienceFilter bool
	R1Dedup         bool
	R2Dedup         bool
	URLDedup        bool
}

// DefaultFilterSettings enables every rule and dedup step.
func DefaultFilterSettings() FilterSettings {
	return FilterSettings{
		OwnerOp:          true,
		SchoolBus:        true,
		SpamFilter:       true,
		ExperienceFilter: true,
		R1Dedup:          true,
		R2Dedup:          true,
		URLDedup:         true,
	}
}

// Precompiled filter patterns, evaluated once at package init and applied
// per row, mirroring the teacher's crawler.filters pattern of precompiled
// regexes evaluated per document.
var (
	ownerOpPattern = regexp.MustCompile(
		`(?i)owner[\s-]?operator|lease[\s-]?purchase|own(?:\s+your)?\s+truck|1099\s+hot\s?shot|hotshot`)
	schoolBusPattern = regexp.MustCompile(
		`(?i)school\s?bus|pupil\s+transport(?:ation)?|\bisd\b|school\s+district\s+driver`)
	spamMarkerPattern = regexp.MustCompile(
		`(?i)click\s+here\s+to\s+apply\s+now!!!|guaranteed\s+income\*|no\s+experience\s+needed!!!`)
	spamHostPattern = regexp.MustCompile(`(?i)linkclick|trackmyad|adclick`)
	experienceYearsPattern = regexp.MustCompile(`(?i)(\d+)\+?\s*years?\s+(?:of\s+)?experience`)
)

// Apply sets rules.* flags and dedup keys on every row in fr, honoring
// settings. No rows are removed here.
func Apply(fr *frame.Frame, market string, settings FilterSettings) {
	for _, r := range fr.Rows {
		applyRow(r, market, settings)
	}
}

func applyRow(r *frame.Row, market string, settings FilterSettings) {
	haystack := r.GetString("norm.title") + " " + r.GetString("norm.description") + " " + r.GetString("norm.company")

	if settings.OwnerOp {
		r.Set("rules.is_owner_op", ownerOpPattern.MatchString(haystack))
	}
	if settings.SchoolBus {
		r.Set("rules.is_school_bus", schoolBusPattern.MatchString(haystack))
	}
	if settings.SpamFilter {
		isSpam := spamMarkerPattern.MatchString(haystack) || spamHostPattern.MatchString(r.GetString("source.url"))
		r.Set("rules.is_spam_source", isSpam)
	}
	if settings.ExperienceFilter {
		if m := experienceYearsPattern.FindStringSubmatch(haystack); m != nil {
			years, err := strconv.Atoi(m[1])
			if err == nil {
				r.Set("rules.has_experience_req", true)
				r.Set("rules.experience_years_min", years)
			}
		}
	}

	r.Set("meta.market", market)

	r1 := strings.ToLower(r.GetString("norm.company")) + "|" + strings.ToLower(r.GetString("norm.title")) + "|" + market
	r2 := strings.ToLower(r.GetString("norm.company")) + "|" + strings.ToLower(r.GetString("norm.location"))
	r.Set("rules.duplicate_r1", r1)
	r.Set("rules.duplicate_r2", r2)
	r.Set("rules.clean_apply_url", CanonicalizeURL(r.GetString("source.url")))
}

// keptQueryParams are the only query parameters CanonicalizeURL preserves
// when dropping the rest, per §4.4.
var keptQueryParams = map[string]bool{
	"jk": true, "jobid": true, "id": true, "job_id": true,
}

// CanonicalizeURL implements §4.4's URL canonicalization used by URL dedup
// and clean_apply_url: indeed view-job links collapse to "indeed_<id>";
// everything else keeps host+path and only whitelisted query parameters.
func CanonicalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	q := u.Query()
	if strings.Contains(strings.ToLower(u.Host), "indeed") {
		if jk := q.Get("jk"); jk != "" {
			return "indeed_" + jk
		}
	}

	kept := url.Values{}
	for k, v := range q {
		if keptQueryParams[strings.ToLower(k)] && len(v) > 0 {
			kept.Set(k, v[0])
		}
	}

	path := u.Host + u.Path
	if len(kept) > 0 {
		return fmt.Sprintf("%s?%s", path, kept.Encode())
	}
	return path
}
