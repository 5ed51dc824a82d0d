// Package thermo computes formation energies and thermodynamic stability.
//
// Formation energies are referenced against per-element chemical potentials
// from a named fit. Stability is the distance from the convex hull of known
// phases, found by linear programming over phase fractions.
package thermo

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/oqmd/qmdb/internal/materials"
	apperrors "github.com/oqmd/qmdb/internal/platform/errors"
)

// FitStandard is the default chemical potential fit name.
const FitStandard = "standard"

// ReferenceSet holds per-element chemical potentials for named fits, in
// eV/atom.
type ReferenceSet struct {
	fits map[string]map[string]float64
}

// NewReferenceSet returns an empty reference set.
func NewReferenceSet() *ReferenceSet {
	return &ReferenceSet{fits: make(map[string]map[string]float64)}
}

// SetPotential records the chemical potential of an element under a fit.
func (r *ReferenceSet) SetPotential(fit, element string, mu float64) {
	if r.fits[fit] == nil {
		r.fits[fit] = make(map[string]float64)
	}
	r.fits[fit][element] = mu
}

// Potential looks up the chemical potential of an element under a fit.
func (r *ReferenceSet) Potential(fit, element string) (float64, error) {
	elements, ok := r.fits[fit]
	if !ok {
		return 0, apperrors.New(apperrors.CodeThermoUnknownFit,
			fmt.Sprintf("no chemical potential fit named %q", fit))
	}
	mu, ok := elements[element]
	if !ok {
		return 0, apperrors.WithMetadata(apperrors.CodeThermoMissingPotential,
			fmt.Sprintf("fit %q has no chemical potential for %s", fit, element),
			map[string]string{"fit": fit, "element": element})
	}
	return mu, nil
}

// Fits returns the known fit names, sorted.
func (r *ReferenceSet) Fits() []string {
	names := make([]string, 0, len(r.fits))
	for name := range r.fits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FormationEnergyPerAtom converts a total energy per atom into a formation
// energy per atom by subtracting composition-weighted chemical potentials.
func (r *ReferenceSet) FormationEnergyPerAtom(comp materials.Composition, energyPA float64, fit string) (float64, error) {
	if comp.NAtoms() == 0 {
		return 0, apperrors.New(apperrors.CodeCompositionEmpty, "composition has no atoms")
	}
	deltaE := energyPA
	for element, fraction := range comp.AtomicFractions() {
		mu, err := r.Potential(fit, element)
		if err != nil {
			return 0, err
		}
		deltaE -= fraction * mu
	}
	return deltaE, nil
}

// Phase is a known phase competing on the convex hull.
type Phase struct {
	Name        string
	Composition materials.Composition
	// DeltaE is the formation energy in eV/atom.
	DeltaE float64
}

// HullResult reports where a composition/energy point sits relative to the
// hull of competing phases.
type HullResult struct {
	// Stability is the energy above (positive) or below (negative) the
	// hull, in eV/atom. At most zero for a ground state.
	Stability float64
	// HullEnergy is the minimal decomposition energy at this composition.
	HullEnergy float64
	// Decomposition maps phase names to atomic fractions of the optimal
	// decomposition. Fractions below 1e-6 are omitted.
	Decomposition map[string]float64
}

// HullDistance solves for the lowest-energy combination of phases matching
// the target composition and reports the target's distance from it.
//
// Elemental reference phases at zero formation energy are implied for every
// element of the target, so the problem is always bounded.
func HullDistance(target materials.Composition, deltaE float64, phases []Phase) (HullResult, error) {
	elements := target.Elements()
	if len(elements) == 0 {
		return HullResult{}, apperrors.New(apperrors.CodeCompositionEmpty, "composition has no atoms")
	}
	elementIndex := make(map[string]int, len(elements))
	for i, el := range elements {
		elementIndex[el] = i
	}

	// Candidate phases restricted to the target's chemical space, plus one
	// implicit elemental phase per element.
	type candidate struct {
		name      string
		fractions []float64
		deltaE    float64
	}
	candidates := make([]candidate, 0, len(phases)+len(elements))
	for _, el := range elements {
		fractions := make([]float64, len(elements))
		fractions[elementIndex[el]] = 1
		candidates = append(candidates, candidate{name: el, fractions: fractions})
	}
phaseLoop:
	for _, phase := range phases {
		fractions := make([]float64, len(elements))
		for el, frac := range phase.Composition.AtomicFractions() {
			i, ok := elementIndex[el]
			if !ok {
				continue phaseLoop
			}
			fractions[i] = frac
		}
		candidates = append(candidates, candidate{
			name:      phase.Name,
			fractions: fractions,
			deltaE:    phase.DeltaE,
		})
	}

	// minimize sum_i x_i * deltaE_i
	// s.t.     sum_i x_i * fraction_i[el] = targetFraction[el]  (per element)
	//          x >= 0
	n := len(candidates)
	c := make([]float64, n)
	aData := make([]float64, len(elements)*n)
	for j, cand := range candidates {
		c[j] = cand.deltaE
		for i := range elements {
			aData[i*n+j] = cand.fractions[i]
		}
	}
	b := make([]float64, len(elements))
	for el, frac := range target.AtomicFractions() {
		b[elementIndex[el]] = frac
	}

	_, x, err := lp.Simplex(c, mat.NewDense(len(elements), n, aData), b, 1e-10, nil)
	if err != nil {
		return HullResult{}, apperrors.Wrap(apperrors.CodeThermoInfeasibleHull,
			fmt.Sprintf("hull decomposition for %s", target.Name()), err)
	}

	hullEnergy := 0.0
	decomposition := make(map[string]float64)
	for j, fraction := range x {
		hullEnergy += fraction * candidates[j].deltaE
		if fraction > 1e-6 {
			decomposition[candidates[j].name] += fraction
		}
	}
	// Clean float noise so elemental ground states report exactly zero.
	if math.Abs(hullEnergy) < 1e-12 {
		hullEnergy = 0
	}
	return HullResult{
		Stability:     deltaE - hullEnergy,
		HullEnergy:    hullEnergy,
		Decomposition: decomposition,
	}, nil
}
