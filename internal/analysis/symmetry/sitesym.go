// Package symmetry provides space-group utilities: site-symmetry string
// parsing, symmetry operations on fractional coordinates, and orbit
// generation.
package symmetry

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/oqmd/qmdb/internal/materials"
	apperrors "github.com/oqmd/qmdb/internal/platform/errors"
)

// Operation is an affine symmetry operation in fractional coordinates:
// p' = R p + t.
type Operation struct {
	Rot   *mat.Dense
	Trans [3]float64
}

// Identity returns the identity operation.
func Identity() Operation {
	return Operation{
		Rot: mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}),
	}
}

// ParseSiteSym parses a site-symmetry string such as "x,y+1/2,-z" or
// "-y,x-y+1/3,z" into a rotation matrix and translation vector. Translation
// components may be fractions ("1/2") or decimals ("0.5").
func ParseSiteSym(sitesym string) (Operation, error) {
	parts := strings.Split(sitesym, ",")
	if len(parts) != 3 {
		return Operation{}, apperrors.New(apperrors.CodeSymmetryBadSiteSym,
			fmt.Sprintf("site symmetry %q does not have three components", sitesym))
	}

	rot := mat.NewDense(3, 3, nil)
	var trans [3]float64
	for i, part := range parts {
		s := strings.ToLower(strings.TrimSpace(part))
		if s == "" {
			return Operation{}, apperrors.New(apperrors.CodeSymmetryBadSiteSym,
				fmt.Sprintf("empty component in site symmetry %q", sitesym))
		}
		for s != "" {
			sign := 1.0
			if s[0] == '+' || s[0] == '-' {
				if s[0] == '-' {
					sign = -1
				}
				s = s[1:]
				if s == "" {
					return Operation{}, apperrors.New(apperrors.CodeSymmetryBadSiteSym,
						fmt.Sprintf("dangling sign in site symmetry %q", sitesym))
				}
			}
			switch {
			case s[0] >= 'x' && s[0] <= 'z':
				j := int(s[0] - 'x')
				rot.Set(i, j, sign)
				s = s[1:]
			case s[0] >= '0' && s[0] <= '9' || s[0] == '.':
				n := 0
				for n < len(s) && (s[n] >= '0' && s[n] <= '9' || s[n] == '/' || s[n] == '.') {
					n++
				}
				value, err := parseFraction(s[:n])
				if err != nil {
					return Operation{}, apperrors.Wrap(apperrors.CodeSymmetryBadSiteSym,
						fmt.Sprintf("parse translation in site symmetry %q", sitesym), err)
				}
				trans[i] += sign * value
				s = s[n:]
			default:
				return Operation{}, apperrors.New(apperrors.CodeSymmetryBadSiteSym,
					fmt.Sprintf("unexpected %q in site symmetry %q", s, sitesym))
			}
		}
	}
	return Operation{Rot: rot, Trans: trans}, nil
}

func parseFraction(s string) (float64, error) {
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, err
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil {
			return 0, err
		}
		if d == 0 {
			return 0, fmt.Errorf("zero denominator in %q", s)
		}
		return n / d, nil
	}
	return strconv.ParseFloat(s, 64)
}

// Apply maps a fractional position through the operation, wrapping the
// result into [0, 1).
func (op Operation) Apply(p [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = op.Rot.At(i, 0)*p[0] + op.Rot.At(i, 1)*p[1] + op.Rot.At(i, 2)*p[2] + op.Trans[i]
	}
	return materials.WrapFrac(out)
}

// Orbit returns the distinct images of p under ops, deduplicated with the
// given fractional tolerance. The identity need not be included in ops; p
// itself always leads the orbit.
func Orbit(ops []Operation, p [3]float64, tol float64) [][3]float64 {
	if tol <= 0 {
		tol = 1e-5
	}
	orbit := [][3]float64{materials.WrapFrac(p)}
	for _, op := range ops {
		image := op.Apply(p)
		duplicate := false
		for _, existing := range orbit {
			if fracEqual(image, existing, tol) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			orbit = append(orbit, image)
		}
	}
	return orbit
}

// fracEqual compares fractional positions on the torus, so 0.999 and 0.001
// are close.
func fracEqual(a, b [3]float64, tol float64) bool {
	for i := 0; i < 3; i++ {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		if d > 0.5 {
			d = 1 - d
		}
		if d > tol {
			return false
		}
	}
	return true
}
