// Package errors provides structured error handling for the qmdb services.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Composition errors
	CodeCompositionEmpty         Code = "COMPOSITION_EMPTY"
	CodeCompositionInvalidSymbol Code = "COMPOSITION_INVALID_SYMBOL"
	CodeCompositionMalformed     Code = "COMPOSITION_MALFORMED"

	// Structure errors
	CodeStructureSingularCell Code = "STRUCTURE_SINGULAR_CELL"
	CodeStructureNoSites      Code = "STRUCTURE_NO_SITES"
	CodeStructureBadPoscar    Code = "STRUCTURE_BAD_POSCAR"

	// Entry errors
	CodeEntryEmptyPath   Code = "ENTRY_EMPTY_PATH"
	CodeEntryEmptyName   Code = "ENTRY_EMPTY_NAME"
	CodeEntryInvalidID   Code = "ENTRY_INVALID_ID"
	CodeEntryDuplicate   Code = "ENTRY_DUPLICATE_PATH"
	CodeEntryNoStructure Code = "ENTRY_NO_STRUCTURE"

	// Calculation errors
	CodeCalculationEmptyLabel   Code = "CALCULATION_EMPTY_LABEL"
	CodeCalculationNotConverged Code = "CALCULATION_NOT_CONVERGED"

	// Potential errors
	CodePotentialUnknownElement Code = "POTENTIAL_UNKNOWN_ELEMENT"
	CodePotentialMalformed      Code = "POTENTIAL_MALFORMED"

	// Hubbard errors
	CodeHubbardInvalidL Code = "HUBBARD_INVALID_L"

	// Symmetry errors
	CodeSymmetryBadSiteSym        Code = "SYMMETRY_BAD_SITE_SYMMETRY"
	CodeSymmetryInvalidSpacegroup Code = "SYMMETRY_INVALID_SPACEGROUP"

	// Thermodynamics errors
	CodeThermoMissingPotential Code = "THERMO_MISSING_CHEMICAL_POTENTIAL"
	CodeThermoUnknownFit       Code = "THERMO_UNKNOWN_FIT"
	CodeThermoInfeasibleHull   Code = "THERMO_INFEASIBLE_HULL"

	// Task errors
	CodeTaskInvalidKind       Code = "TASK_INVALID_KIND"
	CodeTaskInvalidTransition Code = "TASK_INVALID_STATE_TRANSITION"
	CodeTaskNotLeased         Code = "TASK_NOT_LEASED"

	// API errors
	CodeAPIInvalidFilter     Code = "API_INVALID_FILTER"
	CodeAPIInvalidOrderBy    Code = "API_INVALID_ORDER_BY"
	CodeAPIInvalidPagination Code = "API_INVALID_PAGINATION"
	CodeAPIInvalidFormat     Code = "API_INVALID_FORMAT"
	CodeAPIUnauthenticated   Code = "API_UNAUTHENTICATED"
	CodeAPIInvalidBody       Code = "API_INVALID_BODY"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeCompositionEmpty,
		CodeCompositionInvalidSymbol,
		CodeCompositionMalformed,
		CodeStructureSingularCell,
		CodeStructureNoSites,
		CodeStructureBadPoscar,
		CodeEntryEmptyPath,
		CodeEntryEmptyName,
		CodeEntryInvalidID,
		CodeCalculationEmptyLabel,
		CodePotentialMalformed,
		CodeHubbardInvalidL,
		CodeSymmetryBadSiteSym,
		CodeSymmetryInvalidSpacegroup,
		CodeTaskInvalidKind,
		CodeAPIInvalidFilter,
		CodeAPIInvalidOrderBy,
		CodeAPIInvalidPagination,
		CodeAPIInvalidFormat,
		CodeAPIInvalidBody:
		return http.StatusBadRequest

	// Conflict - state doesn't allow operation
	case CodeEntryDuplicate,
		CodeAlreadyExists,
		CodeTaskInvalidTransition,
		CodeTaskNotLeased:
		return http.StatusConflict

	// Unprocessable - the request is well-formed but the data cannot serve it
	case CodeEntryNoStructure,
		CodeCalculationNotConverged,
		CodePotentialUnknownElement,
		CodeThermoMissingPotential,
		CodeThermoUnknownFit,
		CodeThermoInfeasibleHull:
		return http.StatusUnprocessableEntity

	case CodeAPIUnauthenticated:
		return http.StatusUnauthorized

	case CodeNotFound:
		return http.StatusNotFound

	default:
		return http.StatusInternalServerError
	}
}
