package filter

import (
	"reflect"
	"testing"

	apperrors "github.com/oqmd/qmdb/internal/platform/errors"
)

func entrySchema(t *testing.T) *Schema {
	t.Helper()
	schema, err := EntrySchema()
	if err != nil {
		t.Fatalf("entry schema: %v", err)
	}
	return schema
}

func TestParseEmptyFilter(t *testing.T) {
	t.Parallel()

	cond, err := entrySchema(t).Parse("")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cond.Clause != "" || len(cond.Params) != 0 {
		t.Fatalf("condition = %+v, want empty", cond)
	}
}

func TestParseEquality(t *testing.T) {
	t.Parallel()

	cond, err := entrySchema(t).Parse(`name = "ClNa"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cond.Clause != "name = ?" {
		t.Fatalf("clause = %q", cond.Clause)
	}
	if !reflect.DeepEqual(cond.Params, []any{"ClNa"}) {
		t.Fatalf("params = %v", cond.Params)
	}
}

func TestParseNumericComparisons(t *testing.T) {
	t.Parallel()

	tests := []struct {
		filter string
		clause string
	}{
		{filter: "natoms <= 4", clause: "natoms <= ?"},
		{filter: "spacegroup = 225", clause: "spacegroup = ?"},
		{filter: "volume > 100.5", clause: "volume > ?"},
		{filter: "nsites != 8", clause: "nsites != ?"},
	}
	for _, tc := range tests {
		cond, err := entrySchema(t).Parse(tc.filter)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.filter, err)
		}
		if cond.Clause != tc.clause {
			t.Fatalf("parse %q clause = %q, want %q", tc.filter, cond.Clause, tc.clause)
		}
	}
}

func TestParseLogicalOperators(t *testing.T) {
	t.Parallel()

	cond, err := entrySchema(t).Parse(`name = "ClNa" AND natoms <= 4`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cond.Clause != "(name = ? AND natoms <= ?)" {
		t.Fatalf("clause = %q", cond.Clause)
	}
	if len(cond.Params) != 2 {
		t.Fatalf("params = %v", cond.Params)
	}

	cond, err = entrySchema(t).Parse(`generic = "AB" OR generic = "AB2"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cond.Clause != "(generic = ? OR generic = ?)" {
		t.Fatalf("clause = %q", cond.Clause)
	}
}

func TestParseElementContainment(t *testing.T) {
	t.Parallel()

	cond, err := entrySchema(t).Parse(`element = "Fe"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cond.Clause != "instr(element_list, ?) > 0" {
		t.Fatalf("clause = %q", cond.Clause)
	}
	// The match term includes the separator, so "N" cannot match "Na".
	if !reflect.DeepEqual(cond.Params, []any{"Fe_"}) {
		t.Fatalf("params = %v", cond.Params)
	}

	cond, err = entrySchema(t).Parse(`element != "Fe"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cond.Clause != "instr(element_list, ?) = 0" {
		t.Fatalf("clause = %q", cond.Clause)
	}

	if _, err := entrySchema(t).Parse(`element > "Fe"`); !apperrors.IsCode(err, apperrors.CodeAPIInvalidFilter) {
		t.Fatalf("expected invalid filter code, got %v", err)
	}
}

func TestParseRejectsUnknownField(t *testing.T) {
	t.Parallel()

	if _, err := entrySchema(t).Parse(`secret = "x"`); !apperrors.IsCode(err, apperrors.CodeAPIInvalidFilter) {
		t.Fatalf("expected invalid filter code, got %v", err)
	}
}

func TestParseRejectsMalformedFilter(t *testing.T) {
	t.Parallel()

	if _, err := entrySchema(t).Parse(`name = `); !apperrors.IsCode(err, apperrors.CodeAPIInvalidFilter) {
		t.Fatalf("expected invalid filter code, got %v", err)
	}
}

func TestResourceSchemas(t *testing.T) {
	t.Parallel()

	schemas := []struct {
		name   string
		build  func() (*Schema, error)
		filter string
		clause string
	}{
		{"calculation", CalculationSchema, `label = "static" AND converged = true`, "(label = ? AND converged = ?)"},
		{"formation", FormationSchema, `fit = "standard" AND delta_e < 0.0`, "(fit = ? AND delta_e < ?)"},
		{"potential", PotentialSchema, `element = "Li" AND xc = "PBE"`, "(element = ? AND xc = ?)"},
		{"hubbard", HubbardSchema, `element = "Fe" AND hubbard_u >= 3.0`, "(element = ? AND hubbard_u >= ?)"},
		{"task", TaskSchema, `state = "pending" AND kind = "formation"`, "(state = ? AND kind = ?)"},
	}
	for _, tc := range schemas {
		schema, err := tc.build()
		if err != nil {
			t.Fatalf("%s schema: %v", tc.name, err)
		}
		cond, err := schema.Parse(tc.filter)
		if err != nil {
			t.Fatalf("%s parse: %v", tc.name, err)
		}
		if cond.Clause != tc.clause {
			t.Fatalf("%s clause = %q, want %q", tc.name, cond.Clause, tc.clause)
		}
	}
}
