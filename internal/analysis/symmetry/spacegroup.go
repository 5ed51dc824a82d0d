package symmetry

import (
	"fmt"

	apperrors "github.com/oqmd/qmdb/internal/platform/errors"
)

// CrystalSystem names one of the seven lattice systems.
type CrystalSystem string

const (
	Triclinic    CrystalSystem = "triclinic"
	Monoclinic   CrystalSystem = "monoclinic"
	Orthorhombic CrystalSystem = "orthorhombic"
	Tetragonal   CrystalSystem = "tetragonal"
	Trigonal     CrystalSystem = "trigonal"
	Hexagonal    CrystalSystem = "hexagonal"
	Cubic        CrystalSystem = "cubic"
)

// SystemForNumber returns the crystal system for an international space
// group number (1-230).
func SystemForNumber(number int) (CrystalSystem, error) {
	switch {
	case number < 1:
		return "", apperrors.New(apperrors.CodeSymmetryInvalidSpacegroup,
			fmt.Sprintf("space group number %d out of range 1-230", number))
	case number <= 2:
		return Triclinic, nil
	case number <= 15:
		return Monoclinic, nil
	case number <= 74:
		return Orthorhombic, nil
	case number <= 142:
		return Tetragonal, nil
	case number <= 167:
		return Trigonal, nil
	case number <= 194:
		return Hexagonal, nil
	case number <= 230:
		return Cubic, nil
	default:
		return "", apperrors.New(apperrors.CodeSymmetryInvalidSpacegroup,
			fmt.Sprintf("space group number %d out of range 1-230", number))
	}
}

// commonSymbols maps frequently occurring space group numbers to their
// international (Hermann-Mauguin) symbols. The full table is not needed;
// unknown numbers render as "#N".
var commonSymbols = map[int]string{
	1:   "P1",
	2:   "P-1",
	12:  "C2/m",
	14:  "P2_1/c",
	62:  "Pnma",
	63:  "Cmcm",
	123: "P4/mmm",
	139: "I4/mmm",
	141: "I4_1/amd",
	164: "P-3m1",
	166: "R-3m",
	186: "P6_3mc",
	191: "P6/mmm",
	194: "P6_3/mmc",
	216: "F-43m",
	221: "Pm-3m",
	225: "Fm-3m",
	227: "Fd-3m",
	229: "Im-3m",
}

// SymbolForNumber returns the international symbol for well-known space
// groups and a "#N" placeholder otherwise. Out-of-range numbers are errors.
func SymbolForNumber(number int) (string, error) {
	if _, err := SystemForNumber(number); err != nil {
		return "", err
	}
	if symbol, ok := commonSymbols[number]; ok {
		return symbol, nil
	}
	return fmt.Sprintf("#%d", number), nil
}
