package materials

import (
	"math"
	"testing"

	apperrors "github.com/oqmd/qmdb/internal/platform/errors"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestLatticeVolumeCubic(t *testing.T) {
	t.Parallel()

	lattice := CubicLattice(4.05)
	want := 4.05 * 4.05 * 4.05
	if got := lattice.Volume(); !almostEqual(got, want, 1e-9) {
		t.Fatalf("volume = %v, want %v", got, want)
	}
}

func TestLatticeParams(t *testing.T) {
	t.Parallel()

	// Hexagonal cell: a = b = 3, c = 5, gamma = 120.
	lattice := NewLattice([3][3]float64{
		{3, 0, 0},
		{-1.5, 3 * math.Sqrt(3) / 2, 0},
		{0, 0, 5},
	})
	a, b, c, alpha, beta, gamma := lattice.Params()
	if !almostEqual(a, 3, 1e-9) || !almostEqual(b, 3, 1e-9) || !almostEqual(c, 5, 1e-9) {
		t.Fatalf("lengths = %v %v %v, want 3 3 5", a, b, c)
	}
	if !almostEqual(alpha, 90, 1e-9) || !almostEqual(beta, 90, 1e-9) {
		t.Fatalf("alpha/beta = %v/%v, want 90/90", alpha, beta)
	}
	if !almostEqual(gamma, 120, 1e-9) {
		t.Fatalf("gamma = %v, want 120", gamma)
	}
}

func TestLatticeMetric(t *testing.T) {
	t.Parallel()

	lattice := NewLattice([3][3]float64{
		{3, 0, 0},
		{-1.5, 3 * math.Sqrt(3) / 2, 0},
		{0, 0, 5},
	})
	metric := lattice.Metric()
	if !almostEqual(metric[0][0], 9, 1e-9) || !almostEqual(metric[1][1], 9, 1e-9) || !almostEqual(metric[2][2], 25, 1e-9) {
		t.Fatalf("diagonal = %v %v %v", metric[0][0], metric[1][1], metric[2][2])
	}
	// a.b = |a||b| cos(120) = -4.5, and the tensor is symmetric.
	if !almostEqual(metric[0][1], -4.5, 1e-9) || !almostEqual(metric[1][0], -4.5, 1e-9) {
		t.Fatalf("off-diagonal = %v/%v, want -4.5", metric[0][1], metric[1][0])
	}
}

func TestLatticeRoundTripCoordinates(t *testing.T) {
	t.Parallel()

	lattice := NewLattice([3][3]float64{
		{2.1, 0.3, 0},
		{0, 3.2, 0.1},
		{0.2, 0, 4.7},
	})
	frac := [3]float64{0.25, 0.5, 0.75}
	cart := lattice.Cartesian(frac)
	back, err := lattice.Fractional(cart)
	if err != nil {
		t.Fatalf("fractional: %v", err)
	}
	for i := 0; i < 3; i++ {
		if !almostEqual(back[i], frac[i], 1e-9) {
			t.Fatalf("round trip coord %d = %v, want %v", i, back[i], frac[i])
		}
	}
}

func TestLatticeSingularCell(t *testing.T) {
	t.Parallel()

	lattice := NewLattice([3][3]float64{
		{1, 0, 0},
		{2, 0, 0},
		{0, 0, 1},
	})
	_, err := lattice.Fractional([3]float64{1, 1, 1})
	if !apperrors.IsCode(err, apperrors.CodeStructureSingularCell) {
		t.Fatalf("expected singular cell code, got %v", err)
	}
}

func TestWrapFrac(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   [3]float64
		want [3]float64
	}{
		{in: [3]float64{0.5, 0.25, 0.75}, want: [3]float64{0.5, 0.25, 0.75}},
		{in: [3]float64{1.5, -0.25, 2}, want: [3]float64{0.5, 0.75, 0}},
		{in: [3]float64{-1, 1, 0}, want: [3]float64{0, 0, 0}},
	}
	for _, tc := range tests {
		got := WrapFrac(tc.in)
		for i := 0; i < 3; i++ {
			if !almostEqual(got[i], tc.want[i], 1e-12) {
				t.Fatalf("WrapFrac(%v) = %v, want %v", tc.in, got, tc.want)
			}
		}
	}
}

func TestStructureComposition(t *testing.T) {
	t.Parallel()

	s := Structure{
		Lattice: CubicLattice(4.2),
		Sites: []Site{
			{Symbol: "Na", Frac: [3]float64{0, 0, 0}},
			{Symbol: "Cl", Frac: [3]float64{0.5, 0.5, 0.5}},
		},
	}
	comp, err := s.Composition()
	if err != nil {
		t.Fatalf("composition: %v", err)
	}
	if got := comp.Name(); got != "ClNa" {
		t.Fatalf("name = %q, want ClNa", got)
	}
	vpa, err := s.VolumePerAtom()
	if err != nil {
		t.Fatalf("volume per atom: %v", err)
	}
	if !almostEqual(vpa, 4.2*4.2*4.2/2, 1e-9) {
		t.Fatalf("volume per atom = %v", vpa)
	}
}
