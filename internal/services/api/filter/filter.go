// Package filter parses AIP-160 filter expressions and translates them to
// SQL conditions over each resource's columns.
package filter

import (
	"fmt"
	"strings"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	apperrors "github.com/oqmd/qmdb/internal/platform/errors"
)

// SQLCondition is a SQL WHERE clause fragment with positional parameters.
type SQLCondition struct {
	Clause string
	Params []any
}

// Schema declares the filterable fields of one resource and their column
// mapping.
type Schema struct {
	declarations *filtering.Declarations
	columns      map[string]string
	// containment maps fields that filter by membership in a "Fe_O_"
	// style list column, e.g. element = "Fe".
	containment map[string]string
}

type fieldDecl struct {
	name   string
	typ    *expr.Type
	column string
	// contains marks the field as a membership filter against column.
	contains bool
}

func newSchema(fields []fieldDecl) (*Schema, error) {
	opts := []filtering.DeclarationOption{filtering.DeclareStandardFunctions()}
	columns := make(map[string]string, len(fields))
	containment := make(map[string]string)
	for _, field := range fields {
		opts = append(opts, filtering.DeclareIdent(field.name, field.typ))
		if field.contains {
			containment[field.name] = field.column
			continue
		}
		columns[field.name] = field.column
	}
	declarations, err := filtering.NewDeclarations(opts...)
	if err != nil {
		return nil, fmt.Errorf("create filter declarations: %w", err)
	}
	return &Schema{
		declarations: declarations,
		columns:      columns,
		containment:  containment,
	}, nil
}

// EntrySchema declares the filterable entry fields.
func EntrySchema() (*Schema, error) {
	return newSchema([]fieldDecl{
		{name: "name", typ: filtering.TypeString, column: "name"},
		{name: "generic", typ: filtering.TypeString, column: "generic"},
		{name: "path", typ: filtering.TypeString, column: "path"},
		{name: "label", typ: filtering.TypeString, column: "label"},
		{name: "natoms", typ: filtering.TypeInt, column: "natoms"},
		{name: "nelements", typ: filtering.TypeInt, column: "nelements"},
		{name: "nsites", typ: filtering.TypeInt, column: "nsites"},
		{name: "spacegroup", typ: filtering.TypeInt, column: "spacegroup"},
		{name: "volume", typ: filtering.TypeFloat, column: "volume"},
		{name: "element", typ: filtering.TypeString, column: "element_list", contains: true},
	})
}

// CalculationSchema declares the filterable calculation fields.
func CalculationSchema() (*Schema, error) {
	return newSchema([]fieldDecl{
		{name: "entry_id", typ: filtering.TypeString, column: "entry_id"},
		{name: "label", typ: filtering.TypeString, column: "label"},
		{name: "path", typ: filtering.TypeString, column: "path"},
		{name: "composition", typ: filtering.TypeString, column: "composition"},
		{name: "energy", typ: filtering.TypeFloat, column: "energy"},
		{name: "energy_pa", typ: filtering.TypeFloat, column: "energy_pa"},
		{name: "band_gap", typ: filtering.TypeFloat, column: "band_gap"},
		{name: "converged", typ: filtering.TypeBool, column: "converged"},
	})
}

// FormationSchema declares the filterable formation energy fields.
func FormationSchema() (*Schema, error) {
	return newSchema([]fieldDecl{
		{name: "entry_id", typ: filtering.TypeString, column: "entry_id"},
		{name: "composition", typ: filtering.TypeString, column: "composition"},
		{name: "fit", typ: filtering.TypeString, column: "fit"},
		{name: "delta_e", typ: filtering.TypeFloat, column: "delta_e"},
		{name: "stability", typ: filtering.TypeFloat, column: "stability"},
	})
}

// PotentialSchema declares the filterable pseudopotential fields.
func PotentialSchema() (*Schema, error) {
	return newSchema([]fieldDecl{
		{name: "element", typ: filtering.TypeString, column: "element"},
		{name: "name", typ: filtering.TypeString, column: "name"},
		{name: "xc", typ: filtering.TypeString, column: "xc"},
		{name: "release", typ: filtering.TypeString, column: "release"},
		{name: "paw", typ: filtering.TypeBool, column: "paw"},
		{name: "us", typ: filtering.TypeBool, column: "us"},
		{name: "gw", typ: filtering.TypeBool, column: "gw"},
		{name: "enmax", typ: filtering.TypeFloat, column: "enmax"},
	})
}

// HubbardSchema declares the filterable Hubbard correction fields.
func HubbardSchema() (*Schema, error) {
	return newSchema([]fieldDecl{
		{name: "element", typ: filtering.TypeString, column: "element"},
		{name: "ligand", typ: filtering.TypeString, column: "ligand"},
		{name: "convention", typ: filtering.TypeString, column: "convention"},
		{name: "hubbard_l", typ: filtering.TypeInt, column: "hubbard_l"},
		{name: "hubbard_u", typ: filtering.TypeFloat, column: "hubbard_u"},
	})
}

// TaskSchema declares the filterable task fields.
func TaskSchema() (*Schema, error) {
	return newSchema([]fieldDecl{
		{name: "kind", typ: filtering.TypeString, column: "kind"},
		{name: "entry_id", typ: filtering.TypeString, column: "entry_id"},
		{name: "state", typ: filtering.TypeString, column: "state"},
		{name: "priority", typ: filtering.TypeInt, column: "priority"},
		{name: "attempts", typ: filtering.TypeInt, column: "attempts"},
	})
}

// Parse translates an AIP-160 filter into a SQL condition. An empty filter
// yields an empty condition.
func (s *Schema) Parse(filterStr string) (SQLCondition, error) {
	if strings.TrimSpace(filterStr) == "" {
		return SQLCondition{}, nil
	}

	parsed, err := filtering.ParseFilterString(filterStr, s.declarations)
	if err != nil {
		return SQLCondition{}, apperrors.Wrap(apperrors.CodeAPIInvalidFilter,
			fmt.Sprintf("parse filter %q", filterStr), err)
	}
	return s.translateExpr(parsed.CheckedExpr.Expr)
}

func (s *Schema) translateExpr(e *expr.Expr) (SQLCondition, error) {
	if e == nil {
		return SQLCondition{}, nil
	}
	call, ok := e.ExprKind.(*expr.Expr_CallExpr)
	if !ok {
		return SQLCondition{}, apperrors.New(apperrors.CodeAPIInvalidFilter,
			fmt.Sprintf("unsupported filter expression type %T", e.ExprKind))
	}
	return s.translateCall(call.CallExpr)
}

func (s *Schema) translateCall(call *expr.Expr_Call) (SQLCondition, error) {
	switch call.Function {
	case "_&&_", "AND":
		return s.translateLogical(call.Args, "AND")
	case "_||_", "OR":
		return s.translateLogical(call.Args, "OR")
	case "_==_", "=":
		return s.translateComparison(call.Args, "=")
	case "_!=_", "!=":
		return s.translateComparison(call.Args, "!=")
	case "_<_", "<":
		return s.translateComparison(call.Args, "<")
	case "_<=_", "<=":
		return s.translateComparison(call.Args, "<=")
	case "_>_", ">":
		return s.translateComparison(call.Args, ">")
	case "_>=_", ">=":
		return s.translateComparison(call.Args, ">=")
	default:
		return SQLCondition{}, apperrors.New(apperrors.CodeAPIInvalidFilter,
			fmt.Sprintf("unsupported filter function %q", call.Function))
	}
}

func (s *Schema) translateLogical(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, apperrors.New(apperrors.CodeAPIInvalidFilter,
			op+" requires two arguments")
	}
	left, err := s.translateExpr(args[0])
	if err != nil {
		return SQLCondition{}, err
	}
	right, err := s.translateExpr(args[1])
	if err != nil {
		return SQLCondition{}, err
	}
	return SQLCondition{
		Clause: fmt.Sprintf("(%s %s %s)", left.Clause, op, right.Clause),
		Params: append(left.Params, right.Params...),
	}, nil
}

func (s *Schema) translateComparison(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, apperrors.New(apperrors.CodeAPIInvalidFilter,
			"comparison requires two arguments")
	}
	field, err := extractFieldName(args[0])
	if err != nil {
		return SQLCondition{}, err
	}
	value, err := extractValue(args[1])
	if err != nil {
		return SQLCondition{}, err
	}

	if column, ok := s.containment[field]; ok {
		symbol, ok := value.(string)
		if !ok {
			return SQLCondition{}, apperrors.New(apperrors.CodeAPIInvalidFilter,
				fmt.Sprintf("field %q requires a string value", field))
		}
		// Match "Sym_" as a plain substring. LIKE would treat the "_"
		// separator as a single-character wildcard, so element = "N"
		// would match "Cl_Na_".
		switch op {
		case "=":
			return SQLCondition{
				Clause: "instr(" + column + ", ?) > 0",
				Params: []any{symbol + "_"},
			}, nil
		case "!=":
			return SQLCondition{
				Clause: "instr(" + column + ", ?) = 0",
				Params: []any{symbol + "_"},
			}, nil
		default:
			return SQLCondition{}, apperrors.New(apperrors.CodeAPIInvalidFilter,
				fmt.Sprintf("field %q supports only = and !=", field))
		}
	}

	column, ok := s.columns[field]
	if !ok {
		return SQLCondition{}, apperrors.New(apperrors.CodeAPIInvalidFilter,
			fmt.Sprintf("unknown filter field %q", field))
	}
	return SQLCondition{
		Clause: fmt.Sprintf("%s %s ?", column, op),
		Params: []any{value},
	}, nil
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", apperrors.New(apperrors.CodeAPIInvalidFilter, "nil filter expression")
	}
	ident, ok := e.ExprKind.(*expr.Expr_IdentExpr)
	if !ok {
		return "", apperrors.New(apperrors.CodeAPIInvalidFilter,
			fmt.Sprintf("expected field identifier, got %T", e.ExprKind))
	}
	return ident.IdentExpr.Name, nil
}

func extractValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, apperrors.New(apperrors.CodeAPIInvalidFilter, "nil filter value")
	}
	constant, ok := e.ExprKind.(*expr.Expr_ConstExpr)
	if !ok {
		return nil, apperrors.New(apperrors.CodeAPIInvalidFilter,
			fmt.Sprintf("expected constant value, got %T", e.ExprKind))
	}
	switch kind := constant.ConstExpr.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return kind.Uint64Value, nil
	case *expr.Constant_DoubleValue:
		return kind.DoubleValue, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, apperrors.New(apperrors.CodeAPIInvalidFilter,
			fmt.Sprintf("unsupported constant type %T", kind))
	}
}
