// Package frame implements the canonical in-memory table of job postings
// that flows through the pipeline's ordered stages. It is grounded in the
// schema registry: every read and write goes through Row.Get/Set, which is
// the only path by which a column can be touched, keeping the column set
// closed the way the field registry declares it.
package frame

import (
	"fmt"

	"github.com/freeworld-coach/jobpipeline/internal/schema"
)

// Row is one job posting. Values are keyed by canonical field name and typed
// per the schema registry; it is never read or written as a bare map outside
// this package's accessors.
type Row struct {
	values map[string]any
}

// NewRow returns a row with every declared column set to its typed default.
func NewRow() *Row {
	r := &Row{values: make(map[string]any, len(schema.Registry))}
	for _, f := range schema.Registry {
		r.values[f.Name] = f.Default()
	}
	return r
}

// Set assigns a value to a declared column. Setting an unregistered column
// name panics — this is the enforcement point for the closed column set.
func (r *Row) Set(name string, value any) {
	if !schema.Known(name) {
		panic(fmt.Sprintf("frame: unregistered column %q", name))
	}
	r.values[name] = value
}

// Get returns a column's value, or its typed default if unset.
func (r *Row) Get(name string) any {
	if v, ok := r.values[name]; ok {
		return v
	}
	if f, ok := schema.Lookup(name); ok {
		return f.Default()
	}
	return nil
}

func (r *Row) GetString(name string) string {
	v, _ := r.Get(name).(string)
	return v
}

func (r *Row) GetBool(name string) bool {
	v, _ := r.Get(name).(bool)
	return v
}

func (r *Row) GetInt(name string) int {
	v, _ := r.Get(name).(int)
	return v
}

func (r *Row) GetFloat(name string) float64 {
	v, _ := r.Get(name).(float64)
	return v
}

func (r *Row) GetStringSlice(name string) []string {
	v, _ := r.Get(name).([]string)
	return v
}

// Clone returns a deep-enough copy of the row (string slices copied, scalars
// copy by value) so that a later stage's Set never mutates an earlier view.
func (r *Row) Clone() *Row {
	out := &Row{values: make(map[string]any, len(r.values))}
	for k, v := range r.values {
		if s, ok := v.([]string); ok {
			cp := make([]string, len(s))
			copy(cp, s)
			out.values[k] = cp
			continue
		}
		out.values[k] = v
	}
	return out
}

// EnsureSchema returns a row with every declared column present, adding any
// missing ones at their typed default and never dropping a column the row
// already carries (including columns added to the registry after the row was
// built). It is idempotent: EnsureSchema(EnsureSchema(r)) == EnsureSchema(r).
func EnsureSchema(r *Row) *Row {
	out := r.Clone()
	for _, f := range schema.Registry {
		if _, ok := out.values[f.Name]; !ok {
			out.values[f.Name] = f.Default()
		}
	}
	return out
}

// Frame is an ordered collection of rows.
type Frame struct {
	Rows []*Row
}

// Empty returns a frame with zero rows; use NewRow per appended row so
// every row carries the full declared column set from the start.
func Empty() *Frame {
	return &Frame{Rows: make([]*Row, 0)}
}

// Append adds a row to the end of the frame, preserving insertion order.
func (fr *Frame) Append(r *Row) {
	fr.Rows = append(fr.Rows, r)
}

// Len returns the number of rows.
func (fr *Frame) Len() int {
	return len(fr.Rows)
}

// Keep returns a new frame containing only rows for which keep(row) is true,
// preserving relative order. Used by dedup and routing to drop filtered rows.
func (fr *Frame) Keep(keep func(*Row) bool) *Frame {
	out := Empty()
	for _, r := range fr.Rows {
		if keep(r) {
			out.Append(r)
		}
	}
	return out
}

// ReadyForAI is a selector (not a copy) returning the index of every row
// still awaiting classification: `ai.match` empty and not filtered. The
// dedup stage sets `route.ready_for_ai=false` only in lockstep with
// `route.filtered=true`, so filtering on `route.filtered` alone is sufficient.
func ReadyForAI(fr *Frame) []int {
	var idx []int
	for i, r := range fr.Rows {
		if r.GetString("ai.match") != "" {
			continue
		}
		if r.GetBool("route.filtered") {
			continue
		}
		idx = append(idx, i)
	}
	return idx
}

// Exportable is a selector returning the index of every row whose quality
// tier and routing disposition make it eligible for export.
func Exportable(fr *Frame) []int {
	var idx []int
	for i, r := range fr.Rows {
		match := r.GetString("ai.match")
		if !schema.IsQuality(match) {
			continue
		}
		if r.GetBool("route.filtered") {
			continue
		}
		idx = append(idx, i)
	}
	return idx
}
