package materials

import (
	"math"

	apperrors "github.com/oqmd/qmdb/internal/platform/errors"
)

// Site is one atomic site in fractional coordinates.
type Site struct {
	Symbol string
	Frac   [3]float64
	// Magmom is the site magnetic moment in Bohr magnetons.
	Magmom float64
}

// Structure is a periodic crystal: a lattice plus decorated sites.
type Structure struct {
	Lattice Lattice
	Sites   []Site
}

// NSites returns the number of atomic sites.
func (s Structure) NSites() int {
	return len(s.Sites)
}

// Composition derives the structure's composition from its sites.
func (s Structure) Composition() (Composition, error) {
	if len(s.Sites) == 0 {
		return Composition{}, apperrors.New(apperrors.CodeStructureNoSites, "structure has no sites")
	}
	counts := make(map[string]float64)
	for _, site := range s.Sites {
		counts[site.Symbol]++
	}
	return NewComposition(counts)
}

// VolumePerAtom returns the cell volume divided by the site count.
func (s Structure) VolumePerAtom() (float64, error) {
	if len(s.Sites) == 0 {
		return 0, apperrors.New(apperrors.CodeStructureNoSites, "structure has no sites")
	}
	return s.Lattice.Volume() / float64(len(s.Sites)), nil
}

// Wrap maps all fractional coordinates into [0, 1).
func (s *Structure) Wrap() {
	for i := range s.Sites {
		s.Sites[i].Frac = WrapFrac(s.Sites[i].Frac)
	}
}

// WrapFrac maps a fractional position into [0, 1) componentwise.
func WrapFrac(p [3]float64) [3]float64 {
	for i := range p {
		p[i] -= math.Floor(p[i])
		// Floor of a tiny negative value yields 1.0 after wrapping.
		if p[i] >= 1 {
			p[i] = 0
		}
	}
	return p
}
