package materials

import (
	"math"
	"testing"

	apperrors "github.com/oqmd/qmdb/internal/platform/errors"
)

func TestParseCompositionSimple(t *testing.T) {
	t.Parallel()

	comp, err := ParseComposition("Fe2O3")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := comp.Count("Fe"); got != 2 {
		t.Fatalf("Fe count = %v, want 2", got)
	}
	if got := comp.Count("O"); got != 3 {
		t.Fatalf("O count = %v, want 3", got)
	}
	if got := comp.NAtoms(); got != 5 {
		t.Fatalf("natoms = %v, want 5", got)
	}
}

func TestParseCompositionParens(t *testing.T) {
	t.Parallel()

	comp, err := ParseComposition("Ca(OH)2")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := comp.Count("Ca"); got != 1 {
		t.Fatalf("Ca count = %v, want 1", got)
	}
	if got := comp.Count("O"); got != 2 {
		t.Fatalf("O count = %v, want 2", got)
	}
	if got := comp.Count("H"); got != 2 {
		t.Fatalf("H count = %v, want 2", got)
	}
}

func TestParseCompositionRejectsGarbage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		formula string
		code    apperrors.Code
	}{
		{name: "empty", formula: "", code: apperrors.CodeCompositionEmpty},
		{name: "unknown symbol", formula: "Xx2O", code: apperrors.CodeCompositionInvalidSymbol},
		{name: "unbalanced open", formula: "Ca(OH", code: apperrors.CodeCompositionMalformed},
		{name: "unbalanced close", formula: "CaOH)2", code: apperrors.CodeCompositionMalformed},
		{name: "leading digit", formula: "2FeO", code: apperrors.CodeCompositionMalformed},
		{name: "lowercase start", formula: "fe2O3", code: apperrors.CodeCompositionMalformed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseComposition(tc.formula)
			if err == nil {
				t.Fatalf("expected error for %q", tc.formula)
			}
			if !apperrors.IsCode(err, tc.code) {
				t.Fatalf("code = %q, want %q", apperrors.GetCode(err), tc.code)
			}
		})
	}
}

func TestCompositionName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		formula string
		want    string
	}{
		{formula: "Fe2O3", want: "Fe2O3"},
		{formula: "Fe4O6", want: "Fe2O3"},
		{formula: "NaCl", want: "ClNa"},
		{formula: "O2Fe2", want: "FeO"},
		{formula: "Li10Ge1P2S12", want: "GeLi10P2S12"},
	}
	for _, tc := range tests {
		comp, err := ParseComposition(tc.formula)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.formula, err)
		}
		if got := comp.Name(); got != tc.want {
			t.Fatalf("Name(%q) = %q, want %q", tc.formula, got, tc.want)
		}
	}
}

func TestCompositionGeneric(t *testing.T) {
	t.Parallel()

	tests := []struct {
		formula string
		want    string
	}{
		{formula: "Fe2O3", want: "A2B3"},
		{formula: "NaCl", want: "AB"},
		{formula: "CaTiO3", want: "ABC3"},
		{formula: "Al2O3", want: "A2B3"},
	}
	for _, tc := range tests {
		comp, err := ParseComposition(tc.formula)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.formula, err)
		}
		if got := comp.Generic(); got != tc.want {
			t.Fatalf("Generic(%q) = %q, want %q", tc.formula, got, tc.want)
		}
	}
}

func TestCompositionWeight(t *testing.T) {
	t.Parallel()

	comp, err := ParseComposition("NaCl")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := 22.990 + 35.45
	if got := comp.Weight(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("weight = %v, want %v", got, want)
	}
}

func TestCompositionAtomicFractions(t *testing.T) {
	t.Parallel()

	comp, err := ParseComposition("Fe2O3")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	fractions := comp.AtomicFractions()
	if math.Abs(fractions["Fe"]-0.4) > 1e-12 {
		t.Fatalf("Fe fraction = %v, want 0.4", fractions["Fe"])
	}
	if math.Abs(fractions["O"]-0.6) > 1e-12 {
		t.Fatalf("O fraction = %v, want 0.6", fractions["O"])
	}
}

func TestElementLookup(t *testing.T) {
	t.Parallel()

	elt, err := ElementBySymbol("Fe")
	if err != nil {
		t.Fatalf("lookup Fe: %v", err)
	}
	if elt.Z != 26 {
		t.Fatalf("Fe Z = %d, want 26", elt.Z)
	}
	if _, err := ElementBySymbol("Xx"); !apperrors.IsCode(err, apperrors.CodeCompositionInvalidSymbol) {
		t.Fatalf("expected invalid symbol code, got %v", err)
	}
	byZ, err := ElementByNumber(8)
	if err != nil {
		t.Fatalf("lookup Z=8: %v", err)
	}
	if byZ.Symbol != "O" {
		t.Fatalf("Z=8 symbol = %q, want O", byZ.Symbol)
	}
}
