package transform

import (
	"testing"

	"github.com/freeworld-coach/jobpipeline/internal/frame"
)

func TestNormalizeDerivesNormFields(t *testing.T) {
	fr := frame.Empty()
	r := frame.NewRow()
	r.Set("source.title", "  CDL   Driver!! ")
	r.Set("source.company", "Acme Trucking & Co.")
	r.Set("source.location_raw", "Dallas, TX")
	r.Set("source.description_raw", "<p>Home <b>daily</b>.</p><script>evil()</script>")
	r.Set("source.salary_raw", "$60,000 - $75,000 per year")
	fr.Append(r)

	Normalize(fr)

	if got := r.GetString("norm.title"); got != "CDL Driver" {
		t.Errorf("norm.title = %q, want %q", got, "CDL Driver")
	}
	if got := r.GetString("norm.company"); got != "Acme Trucking & Co." {
		t.Errorf("norm.company = %q, want %q", got, "Acme Trucking & Co.")
	}
	if got := r.GetString("norm.city"); got != "Dallas" {
		t.Errorf("norm.city = %q, want Dallas", got)
	}
	if got := r.GetString("norm.state"); got != "TX" {
		t.Errorf("norm.state = %q, want TX", got)
	}
	if got := r.GetString("norm.description"); got != "Home daily." {
		t.Errorf("norm.description = %q, want %q (script should be stripped)", got, "Home daily.")
	}
	if got := r.GetFloat("norm.salary_min"); got != 60000 {
		t.Errorf("norm.salary_min = %v, want 60000", got)
	}
	if got := r.GetFloat("norm.salary_max"); got != 75000 {
		t.Errorf("norm.salary_max = %v, want 75000", got)
	}
	if got := r.GetString("norm.salary_unit"); got != "year" {
		t.Errorf("norm.salary_unit = %q, want year", got)
	}
}

func TestNormalizeSingleValueSalary(t *testing.T) {
	fr := frame.Empty()
	r := frame.NewRow()
	r.Set("source.salary_raw", "$25 per hour")
	fr.Append(r)

	Normalize(fr)

	if got := r.GetFloat("norm.salary_min"); got != 25 {
		t.Errorf("norm.salary_min = %v, want 25", got)
	}
	if got := r.GetFloat("norm.salary_max"); got != 25 {
		t.Errorf("norm.salary_max = %v, want 25", got)
	}
	if got := r.GetString("norm.salary_unit"); got != "hour" {
		t.Errorf("norm.salary_unit = %q, want hour", got)
	}
}

func TestNormalizeEmptySalaryLeavesDefaults(t *testing.T) {
	fr := frame.Empty()
	r := frame.NewRow()
	fr.Append(r)

	Normalize(fr)

	if got := r.GetFloat("norm.salary_min"); got != 0 {
		t.Errorf("norm.salary_min = %v, want 0", got)
	}
	if got := r.GetString("norm.salary_unit"); got != "" {
		t.Errorf("norm.salary_unit = %q, want empty", got)
	}
}

func TestNormalizeLocationWithoutState(t *testing.T) {
	fr := frame.Empty()
	r := frame.NewRow()
	r.Set("source.location_raw", "Remote")
	fr.Append(r)

	Normalize(fr)

	if got := r.GetString("norm.city"); got != "Remote" {
		t.Errorf("norm.city = %q, want Remote", got)
	}
	if got := r.GetString("norm.state"); got != "" {
		t.Errorf("norm.state = %q, want empty", got)
	}
}
