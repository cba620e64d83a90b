package frame

import "testing"

func TestRowSetGetRoundTrip(t *testing.T) {
	r := NewRow()
	r.Set("source.title", "CDL Driver")
	r.Set("ai.fair_chance", true)
	r.Set("rules.experience_years_min", 2)

	if got := r.GetString("source.title"); got != "CDL Driver" {
		t.Errorf("GetString = %q, want %q", got, "CDL Driver")
	}
	if got := r.GetBool("ai.fair_chance"); !got {
		t.Error("GetBool = false, want true")
	}
	if got := r.GetInt("rules.experience_years_min"); got != 2 {
		t.Errorf("GetInt = %d, want 2", got)
	}
}

func TestRowSetUnregisteredColumnPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Set on an unregistered column should panic")
		}
	}()
	r := NewRow()
	r.Set("bogus.field", "x")
}

func TestRowGetUnsetReturnsTypedDefault(t *testing.T) {
	r := NewRow()
	if got := r.GetBool("ai.fair_chance"); got {
		t.Error("unset bool field should default to false")
	}
	if got := r.GetStringSlice("ai.endorsements"); len(got) != 0 {
		t.Errorf("unset slice field should default to empty, got %v", got)
	}
}

func TestRowCloneIsIndependent(t *testing.T) {
	r := NewRow()
	r.Set("ai.endorsements", []string{"hazmat"})

	clone := r.Clone()
	clone.Set("ai.endorsements", append(clone.GetStringSlice("ai.endorsements"), "tanker"))

	if got := r.GetStringSlice("ai.endorsements"); len(got) != 1 {
		t.Errorf("mutating a clone's slice field leaked into the original: %v", got)
	}
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	r := NewRow()
	r.Set("source.title", "Dock Worker")

	once := EnsureSchema(r)
	twice := EnsureSchema(once)

	if once.GetString("source.title") != twice.GetString("source.title") {
		t.Error("EnsureSchema should be idempotent")
	}
	if len(twice.values) != len(once.values) {
		t.Error("EnsureSchema should not add duplicate columns on a second pass")
	}
}

func TestFrameKeep(t *testing.T) {
	fr := Empty()
	r1 := NewRow()
	r1.Set("id.job", "1")
	r2 := NewRow()
	r2.Set("id.job", "2")
	fr.Append(r1)
	fr.Append(r2)

	kept := fr.Keep(func(r *Row) bool { return r.GetString("id.job") == "1" })
	if kept.Len() != 1 {
		t.Fatalf("Keep() = %d rows, want 1", kept.Len())
	}
	if kept.Rows[0].GetString("id.job") != "1" {
		t.Error("Keep() kept the wrong row")
	}
}

func TestReadyForAISkipsClassifiedAndFilteredRows(t *testing.T) {
	fr := Empty()

	pending := NewRow()
	fr.Append(pending)

	classified := NewRow()
	classified.Set("ai.match", "good")
	fr.Append(classified)

	filtered := NewRow()
	filtered.Set("route.filtered", true)
	fr.Append(filtered)

	idx := ReadyForAI(fr)
	if len(idx) != 1 || idx[0] != 0 {
		t.Errorf("ReadyForAI() = %v, want [0]", idx)
	}
}

func TestExportableRequiresQualityAndUnfiltered(t *testing.T) {
	fr := Empty()

	good := NewRow()
	good.Set("ai.match", "good")
	fr.Append(good)

	bad := NewRow()
	bad.Set("ai.match", "bad")
	fr.Append(bad)

	filteredGood := NewRow()
	filteredGood.Set("ai.match", "so-so")
	filteredGood.Set("route.filtered", true)
	fr.Append(filteredGood)

	idx := Exportable(fr)
	if len(idx) != 1 || idx[0] != 0 {
		t.Errorf("Exportable() = %v, want [0]", idx)
	}
}
