package symmetry

import (
	"math"
	"testing"

	apperrors "github.com/oqmd/qmdb/internal/platform/errors"
)

func TestParseSiteSymIdentity(t *testing.T) {
	t.Parallel()

	op, err := ParseSiteSym("x,y,z")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p := op.Apply([3]float64{0.1, 0.2, 0.3})
	want := [3]float64{0.1, 0.2, 0.3}
	for i := 0; i < 3; i++ {
		if math.Abs(p[i]-want[i]) > 1e-12 {
			t.Fatalf("apply identity = %v, want %v", p, want)
		}
	}
}

func TestParseSiteSymTranslationFraction(t *testing.T) {
	t.Parallel()

	op, err := ParseSiteSym("x,y+1/2,-z")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if math.Abs(op.Trans[1]-0.5) > 1e-12 {
		t.Fatalf("translation = %v, want 0.5", op.Trans[1])
	}
	if op.Rot.At(2, 2) != -1 {
		t.Fatalf("rot[2][2] = %v, want -1", op.Rot.At(2, 2))
	}

	p := op.Apply([3]float64{0.1, 0.2, 0.3})
	want := [3]float64{0.1, 0.7, 0.7}
	for i := 0; i < 3; i++ {
		if math.Abs(p[i]-want[i]) > 1e-12 {
			t.Fatalf("apply = %v, want %v", p, want)
		}
	}
}

func TestParseSiteSymMixedAxes(t *testing.T) {
	t.Parallel()

	// Three-fold rotation component common in trigonal settings.
	op, err := ParseSiteSym("-y,x-y+1/3,z")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if op.Rot.At(0, 1) != -1 {
		t.Fatalf("rot[0][1] = %v, want -1", op.Rot.At(0, 1))
	}
	if op.Rot.At(1, 0) != 1 || op.Rot.At(1, 1) != -1 {
		t.Fatalf("second row = %v %v, want 1 -1", op.Rot.At(1, 0), op.Rot.At(1, 1))
	}
	if math.Abs(op.Trans[1]-1.0/3.0) > 1e-12 {
		t.Fatalf("translation = %v, want 1/3", op.Trans[1])
	}
}

func TestParseSiteSymDecimalTranslation(t *testing.T) {
	t.Parallel()

	op, err := ParseSiteSym("x+0.25,y,z")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if math.Abs(op.Trans[0]-0.25) > 1e-12 {
		t.Fatalf("translation = %v, want 0.25", op.Trans[0])
	}
}

func TestParseSiteSymErrors(t *testing.T) {
	t.Parallel()

	tests := []string{
		"x,y",
		"x,y,z,w",
		"x,y,q",
		"x,y,1/0",
		"x,y,-",
		",y,z",
	}
	for _, sitesym := range tests {
		if _, err := ParseSiteSym(sitesym); !apperrors.IsCode(err, apperrors.CodeSymmetryBadSiteSym) {
			t.Fatalf("ParseSiteSym(%q) error = %v, want bad site symmetry code", sitesym, err)
		}
	}
}

func TestOrbitGeneratesDistinctImages(t *testing.T) {
	t.Parallel()

	inversion, err := ParseSiteSym("-x,-y,-z")
	if err != nil {
		t.Fatalf("parse inversion: %v", err)
	}
	mirror, err := ParseSiteSym("x,y,-z")
	if err != nil {
		t.Fatalf("parse mirror: %v", err)
	}

	orbit := Orbit([]Operation{inversion, mirror}, [3]float64{0.1, 0.2, 0.3}, 1e-5)
	if len(orbit) != 3 {
		t.Fatalf("orbit size = %d, want 3", len(orbit))
	}
}

func TestOrbitDeduplicatesAcrossBoundary(t *testing.T) {
	t.Parallel()

	// A translation by one full cell maps every point onto itself.
	full, err := ParseSiteSym("x+1,y,z")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	orbit := Orbit([]Operation{full}, [3]float64{0.9999999, 0.5, 0.5}, 1e-5)
	if len(orbit) != 1 {
		t.Fatalf("orbit size = %d, want 1", len(orbit))
	}
}

func TestSystemForNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		number int
		want   CrystalSystem
	}{
		{1, Triclinic},
		{14, Monoclinic},
		{62, Orthorhombic},
		{139, Tetragonal},
		{166, Trigonal},
		{194, Hexagonal},
		{225, Cubic},
	}
	for _, tc := range tests {
		got, err := SystemForNumber(tc.number)
		if err != nil {
			t.Fatalf("system for %d: %v", tc.number, err)
		}
		if got != tc.want {
			t.Fatalf("system for %d = %q, want %q", tc.number, got, tc.want)
		}
	}

	for _, number := range []int{0, -3, 231} {
		if _, err := SystemForNumber(number); !apperrors.IsCode(err, apperrors.CodeSymmetryInvalidSpacegroup) {
			t.Fatalf("system for %d: expected invalid spacegroup code, got %v", number, err)
		}
		if _, err := SymbolForNumber(number); !apperrors.IsCode(err, apperrors.CodeSymmetryInvalidSpacegroup) {
			t.Fatalf("symbol for %d: expected invalid spacegroup code, got %v", number, err)
		}
	}
}

func TestSymbolForNumber(t *testing.T) {
	t.Parallel()

	symbol, err := SymbolForNumber(225)
	if err != nil {
		t.Fatalf("symbol: %v", err)
	}
	if symbol != "Fm-3m" {
		t.Fatalf("symbol = %q, want Fm-3m", symbol)
	}
	symbol, err = SymbolForNumber(37)
	if err != nil {
		t.Fatalf("symbol: %v", err)
	}
	if symbol != "#37" {
		t.Fatalf("symbol = %q, want #37", symbol)
	}
}
