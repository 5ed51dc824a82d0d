package materials

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/oqmd/qmdb/internal/platform/errors"
)

// integerTolerance bounds how far a stoichiometric count may sit from an
// integer and still be treated as one when reducing.
const integerTolerance = 1e-8

// Composition is a multiset of elements with stoichiometric quantities.
type Composition struct {
	counts map[string]float64
}

// NewComposition builds a composition from a symbol -> quantity map.
// Symbols are validated against the periodic table.
func NewComposition(counts map[string]float64) (Composition, error) {
	if len(counts) == 0 {
		return Composition{}, apperrors.New(apperrors.CodeCompositionEmpty, "composition has no elements")
	}
	out := make(map[string]float64, len(counts))
	for symbol, quantity := range counts {
		if !IsElement(symbol) {
			return Composition{}, apperrors.WithMetadata(
				apperrors.CodeCompositionInvalidSymbol,
				"unknown element symbol: "+symbol,
				map[string]string{"symbol": symbol},
			)
		}
		if quantity <= 0 {
			continue
		}
		out[symbol] += quantity
	}
	if len(out) == 0 {
		return Composition{}, apperrors.New(apperrors.CodeCompositionEmpty, "composition has no elements")
	}
	return Composition{counts: out}, nil
}

// ParseComposition parses a chemical formula such as "Fe2O3" or "Ca(OH)2".
// Parenthesised groups with multipliers and fractional quantities are accepted.
func ParseComposition(formula string) (Composition, error) {
	formula = strings.TrimSpace(formula)
	if formula == "" {
		return Composition{}, apperrors.New(apperrors.CodeCompositionEmpty, "empty formula")
	}
	counts, rest, err := parseGroup(formula, false)
	if err != nil {
		return Composition{}, err
	}
	if rest != "" {
		return Composition{}, apperrors.New(apperrors.CodeCompositionMalformed,
			fmt.Sprintf("unexpected %q in formula %q", rest, formula))
	}
	return NewComposition(counts)
}

// parseGroup consumes element/group tokens until the input (or the enclosing
// parenthesis, when inner is set) ends. It returns the remaining input.
func parseGroup(s string, inner bool) (map[string]float64, string, error) {
	counts := make(map[string]float64)
	for s != "" {
		switch {
		case s[0] == ')':
			if !inner {
				return nil, "", apperrors.New(apperrors.CodeCompositionMalformed, "unbalanced ')' in formula")
			}
			return counts, s, nil
		case s[0] == '(':
			sub, rest, err := parseGroup(s[1:], true)
			if err != nil {
				return nil, "", err
			}
			if rest == "" || rest[0] != ')' {
				return nil, "", apperrors.New(apperrors.CodeCompositionMalformed, "unbalanced '(' in formula")
			}
			multiplier, rest, err := parseQuantity(rest[1:])
			if err != nil {
				return nil, "", err
			}
			for symbol, quantity := range sub {
				counts[symbol] += quantity * multiplier
			}
			s = rest
		default:
			symbol, rest, err := parseSymbol(s)
			if err != nil {
				return nil, "", err
			}
			quantity, rest, err := parseQuantity(rest)
			if err != nil {
				return nil, "", err
			}
			counts[symbol] += quantity
			s = rest
		}
	}
	if inner {
		return nil, "", apperrors.New(apperrors.CodeCompositionMalformed, "unbalanced '(' in formula")
	}
	return counts, "", nil
}

func parseSymbol(s string) (string, string, error) {
	if s == "" || s[0] < 'A' || s[0] > 'Z' {
		return "", "", apperrors.New(apperrors.CodeCompositionMalformed,
			fmt.Sprintf("expected element symbol at %q", s))
	}
	end := 1
	for end < len(s) && s[end] >= 'a' && s[end] <= 'z' {
		end++
	}
	symbol := s[:end]
	if !IsElement(symbol) {
		return "", "", apperrors.WithMetadata(
			apperrors.CodeCompositionInvalidSymbol,
			"unknown element symbol: "+symbol,
			map[string]string{"symbol": symbol},
		)
	}
	return symbol, s[end:], nil
}

// parseQuantity reads an optional count after a symbol or group; a missing
// count is 1.
func parseQuantity(s string) (float64, string, error) {
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.') {
		end++
	}
	if end == 0 {
		return 1, s, nil
	}
	value, err := strconv.ParseFloat(s[:end], 64)
	if err != nil || value <= 0 {
		return 0, "", apperrors.New(apperrors.CodeCompositionMalformed,
			fmt.Sprintf("invalid quantity %q", s[:end]))
	}
	return value, s[end:], nil
}

// Elements returns the element symbols in alphabetical order.
func (c Composition) Elements() []string {
	symbols := make([]string, 0, len(c.counts))
	for symbol := range c.counts {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Count returns the stoichiometric quantity for a symbol.
func (c Composition) Count(symbol string) float64 {
	return c.counts[symbol]
}

// NAtoms returns the total stoichiometric quantity.
func (c Composition) NAtoms() float64 {
	var total float64
	for _, quantity := range c.counts {
		total += quantity
	}
	return total
}

// NElements returns the number of distinct elements.
func (c Composition) NElements() int {
	return len(c.counts)
}

// Weight returns the formula weight in amu.
func (c Composition) Weight() float64 {
	var total float64
	for symbol, quantity := range c.counts {
		total += elementsBySymbol[symbol].Mass * quantity
	}
	return total
}

// AtomicFractions returns the per-element atomic fractions, summing to one.
func (c Composition) AtomicFractions() map[string]float64 {
	total := c.NAtoms()
	out := make(map[string]float64, len(c.counts))
	for symbol, quantity := range c.counts {
		out[symbol] = quantity / total
	}
	return out
}

// Reduce divides integral stoichiometries by their greatest common divisor.
// Non-integral compositions are returned unchanged.
func (c Composition) Reduce() Composition {
	divisor := 0
	for _, quantity := range c.counts {
		rounded := math.Round(quantity)
		if math.Abs(quantity-rounded) > integerTolerance || rounded <= 0 {
			return c
		}
		divisor = gcd(divisor, int(rounded))
	}
	if divisor <= 1 {
		return c
	}
	out := make(map[string]float64, len(c.counts))
	for symbol, quantity := range c.counts {
		out[symbol] = quantity / float64(divisor)
	}
	return Composition{counts: out}
}

// Name returns the reduced formula with elements in alphabetical order,
// e.g. "Fe2O3" or "ClNa".
func (c Composition) Name() string {
	reduced := c.Reduce()
	var b strings.Builder
	for _, symbol := range reduced.Elements() {
		b.WriteString(symbol)
		b.WriteString(formatQuantity(reduced.counts[symbol]))
	}
	return b.String()
}

// Generic returns the anonymised formula, assigning letters by ascending
// quantity: Fe2O3 -> A2B3, NaCl -> AB.
func (c Composition) Generic() string {
	reduced := c.Reduce()
	type slot struct {
		symbol   string
		quantity float64
	}
	slots := make([]slot, 0, len(reduced.counts))
	for symbol, quantity := range reduced.counts {
		slots = append(slots, slot{symbol: symbol, quantity: quantity})
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].quantity != slots[j].quantity {
			return slots[i].quantity < slots[j].quantity
		}
		return slots[i].symbol < slots[j].symbol
	})
	var b strings.Builder
	for i, s := range slots {
		b.WriteByte(byte('A' + i))
		b.WriteString(formatQuantity(s.quantity))
	}
	return b.String()
}

func formatQuantity(quantity float64) string {
	if math.Abs(quantity-1) <= integerTolerance {
		return ""
	}
	if math.Abs(quantity-math.Round(quantity)) <= integerTolerance {
		return strconv.Itoa(int(math.Round(quantity)))
	}
	return strconv.FormatFloat(quantity, 'g', -1, 64)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
