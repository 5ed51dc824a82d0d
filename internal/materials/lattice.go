package materials

import (
	"math"

	"gonum.org/v1/gonum/mat"

	apperrors "github.com/oqmd/qmdb/internal/platform/errors"
)

// singularTolerance is the determinant magnitude below which a cell is
// treated as degenerate.
const singularTolerance = 1e-12

// Lattice is a crystal lattice whose rows are the cell vectors in Angstrom.
type Lattice struct {
	cell *mat.Dense
}

// NewLattice builds a lattice from three row vectors.
func NewLattice(cell [3][3]float64) Lattice {
	data := make([]float64, 0, 9)
	for _, row := range cell {
		data = append(data, row[0], row[1], row[2])
	}
	return Lattice{cell: mat.NewDense(3, 3, data)}
}

// CubicLattice returns a primitive cubic lattice with edge a.
func CubicLattice(a float64) Lattice {
	return NewLattice([3][3]float64{{a, 0, 0}, {0, a, 0}, {0, 0, a}})
}

// Cell returns the cell row vectors.
func (l Lattice) Cell() [3][3]float64 {
	var out [3][3]float64
	if l.cell == nil {
		return out
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = l.cell.At(i, j)
		}
	}
	return out
}

// Volume returns the cell volume in cubic Angstrom.
func (l Lattice) Volume() float64 {
	if l.cell == nil {
		return 0
	}
	return math.Abs(mat.Det(l.cell))
}

// Params returns the lattice parameters a, b, c in Angstrom and the cell
// angles alpha, beta, gamma in degrees.
func (l Lattice) Params() (a, b, c, alpha, beta, gamma float64) {
	if l.cell == nil {
		return 0, 0, 0, 0, 0, 0
	}
	va := l.cell.RawRowView(0)
	vb := l.cell.RawRowView(1)
	vc := l.cell.RawRowView(2)
	a = norm(va)
	b = norm(vb)
	c = norm(vc)
	alpha = angleDeg(vb, vc)
	beta = angleDeg(va, vc)
	gamma = angleDeg(va, vb)
	return a, b, c, alpha, beta, gamma
}

// Cartesian converts fractional coordinates to cartesian.
func (l Lattice) Cartesian(frac [3]float64) [3]float64 {
	if l.cell == nil {
		return [3]float64{}
	}
	var out [3]float64
	for j := 0; j < 3; j++ {
		out[j] = frac[0]*l.cell.At(0, j) + frac[1]*l.cell.At(1, j) + frac[2]*l.cell.At(2, j)
	}
	return out
}

// Fractional converts cartesian coordinates to fractional. Degenerate cells
// are an error.
func (l Lattice) Fractional(cart [3]float64) ([3]float64, error) {
	if l.cell == nil || math.Abs(mat.Det(l.cell)) < singularTolerance {
		return [3]float64{}, apperrors.New(apperrors.CodeStructureSingularCell, "lattice cell is singular")
	}
	var inverse mat.Dense
	if err := inverse.Inverse(l.cell); err != nil {
		return [3]float64{}, apperrors.Wrap(apperrors.CodeStructureSingularCell, "invert lattice cell", err)
	}
	// cart = frac * cell, so frac = cart * cell^-1.
	var out [3]float64
	for j := 0; j < 3; j++ {
		out[j] = cart[0]*inverse.At(0, j) + cart[1]*inverse.At(1, j) + cart[2]*inverse.At(2, j)
	}
	return out, nil
}

// Metric returns the metric tensor G = A A^T, where A holds the cell row
// vectors. G[i][j] is the dot product of cell vectors i and j.
func (l Lattice) Metric() [3][3]float64 {
	var out [3][3]float64
	if l.cell == nil {
		return out
	}
	var g mat.Dense
	g.Mul(l.cell, l.cell.T())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = g.At(i, j)
		}
	}
	return out
}

// Scale returns the lattice with every cell vector multiplied by factor.
func (l Lattice) Scale(factor float64) Lattice {
	if l.cell == nil {
		return l
	}
	var scaled mat.Dense
	scaled.Scale(factor, l.cell)
	return Lattice{cell: &scaled}
}

func norm(v []float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func angleDeg(u, v []float64) float64 {
	nu := norm(u)
	nv := norm(v)
	if nu == 0 || nv == 0 {
		return 0
	}
	cos := (u[0]*v[0] + u[1]*v[1] + u[2]*v[2]) / (nu * nv)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}
