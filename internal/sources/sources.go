// Package sources implements the §4.2 ingestion adapters. Each adapter turns
// a raw provider payload (or a persistent-store row) into canonical
// frame.Row values, tolerating partial/odd JSON shapes the way the teacher's
// connector loaders tolerate partial TOML. Scraper adapters populate only
// id.*, source.*, and sys.*; the Memory adapter also carries the stored ai.*,
// rules.*, and meta.* values.
package sources

import (
	"fmt"

	"github.com/freeworld-coach/jobpipeline/internal/frame"
	"github.com/freeworld-coach/jobpipeline/internal/schema"
)

// toString coerces a raw JSON value to a string, returning "" for nil;
// numbers are formatted plainly, bools become "true"/"false", and everything
// else falls back to "".
func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// firstNonEmpty returns the first non-empty string among candidates,
// extracted lazily via the supplied lookups.
func firstNonEmpty(lookups ...func() string) string {
	for _, lookup := range lookups {
		if v := lookup(); v != "" {
			return v
		}
	}
	return ""
}

// newSourceRow builds a fresh row with id.job computed and sys.is_fresh_job
// set, per §4.2's "every returned row satisfies ensure_schema and has a
// non-empty id.job" guarantee.
func newSourceRow(source, title, company, locationRaw, descriptionRaw, url, postedDate, salaryRaw string, isFresh bool) (*frame.Row, bool) {
	if title == "" && company == "" {
		return nil, false
	}

	r := frame.NewRow()
	r.Set("id.source", source)
	r.Set("id.job", schema.JobID(company, locationRaw, title))
	r.Set("source.title", title)
	r.Set("source.company", company)
	r.Set("source.location_raw", locationRaw)
	r.Set("source.description_raw", descriptionRaw)
	r.Set("source.url", url)
	r.Set("source.posted_date", postedDate)
	r.Set("source.salary_raw", salaryRaw)
	r.Set("sys.is_fresh_job", isFresh)
	return r, true
}
