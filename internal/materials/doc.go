// Package materials defines the core crystallographic domain model.
//
// It provides the periodic table, chemical composition parsing and
// normalization, lattice geometry, and structure representation, plus a
// codec for the VASP POSCAR structure format. Persistence of these types
// lives in internal/storage; this package is purely computational.
package materials
