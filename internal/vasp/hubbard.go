package vasp

import (
	"fmt"
	"math"
	"strings"

	apperrors "github.com/oqmd/qmdb/internal/platform/errors"
)

// Hubbard parameterizes an on-site DFT+U correction for an element,
// optionally restricted to structures containing a ligand.
type Hubbard struct {
	Element    string
	Ligand     string
	Convention string
	// L is the orbital quantum number the correction applies to, with -1
	// meaning no on-site interaction as in the VASP LDAUL convention.
	L int
	U float64
	// OxidationState is optional; NaN means unspecified.
	OxidationState float64
}

// NewHubbard returns a correction with no oxidation state set.
func NewHubbard(element string, l int, u float64) (Hubbard, error) {
	if l < -1 || l > 3 {
		return Hubbard{}, apperrors.New(apperrors.CodeHubbardInvalidL,
			fmt.Sprintf("hubbard l = %d, want -1..3", l))
	}
	return Hubbard{
		Element:        element,
		L:              l,
		U:              u,
		OxidationState: math.NaN(),
	}, nil
}

// IsActive reports whether the correction does anything.
func (h Hubbard) IsActive() bool {
	return h.U > 0 && h.L != -1
}

// Key is the lookup key used by correction tables, e.g. "Fe_3.80".
func (h Hubbard) Key() string {
	return fmt.Sprintf("%s_%0.2f", h.Element, h.U)
}

// Equal compares the physically meaningful fields, ignoring convention and
// oxidation state.
func (h Hubbard) Equal(other Hubbard) bool {
	return h.Element == other.Element &&
		h.Ligand == other.Ligand &&
		h.L == other.L &&
		h.U == other.U
}

// String renders a correction like "Fe3+-O (U=3.80, L=2)".
func (h Hubbard) String() string {
	var b strings.Builder
	b.WriteString(h.Element)
	if !math.IsNaN(h.OxidationState) {
		if h.OxidationState == math.Trunc(h.OxidationState) {
			fmt.Fprintf(&b, "%d+", int(h.OxidationState))
		} else {
			fmt.Fprintf(&b, "%.1f+", h.OxidationState)
		}
	}
	if h.Ligand != "" {
		fmt.Fprintf(&b, "-%s", h.Ligand)
	}
	fmt.Fprintf(&b, " (U=%0.2f, L=%d)", h.U, h.L)
	return b.String()
}
