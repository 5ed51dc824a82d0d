package vasp

import (
	"testing"

	apperrors "github.com/oqmd/qmdb/internal/platform/errors"
)

func TestNewHubbardValidatesL(t *testing.T) {
	t.Parallel()

	if _, err := NewHubbard("Fe", 2, 3.8); err != nil {
		t.Fatalf("new hubbard: %v", err)
	}
	for _, l := range []int{-2, 4} {
		if _, err := NewHubbard("Fe", l, 3.8); !apperrors.IsCode(err, apperrors.CodeHubbardInvalidL) {
			t.Fatalf("l = %d: expected invalid l code, got %v", l, err)
		}
	}
}

func TestHubbardIsActive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		l    int
		u    float64
		want bool
	}{
		{l: 2, u: 3.8, want: true},
		{l: -1, u: 3.8, want: false},
		{l: 2, u: 0, want: false},
		{l: -1, u: 0, want: false},
	}
	for _, tc := range tests {
		h := Hubbard{Element: "Fe", L: tc.l, U: tc.u}
		if got := h.IsActive(); got != tc.want {
			t.Fatalf("IsActive(l=%d, u=%v) = %v, want %v", tc.l, tc.u, got, tc.want)
		}
	}
}

func TestHubbardKey(t *testing.T) {
	t.Parallel()

	h := Hubbard{Element: "Fe", L: 2, U: 3.8}
	if got := h.Key(); got != "Fe_3.80" {
		t.Fatalf("key = %q, want Fe_3.80", got)
	}
}

func TestHubbardEqualIgnoresConvention(t *testing.T) {
	t.Parallel()

	a := Hubbard{Element: "Fe", Ligand: "O", L: 2, U: 3.8, Convention: "wang"}
	b := Hubbard{Element: "Fe", Ligand: "O", L: 2, U: 3.8, Convention: "aykol"}
	if !a.Equal(b) {
		t.Fatal("expected corrections with different conventions to be equal")
	}
	b.U = 4.0
	if a.Equal(b) {
		t.Fatal("expected corrections with different U to differ")
	}
}

func TestHubbardString(t *testing.T) {
	t.Parallel()

	h, err := NewHubbard("Fe", 2, 3.8)
	if err != nil {
		t.Fatal(err)
	}
	h.Ligand = "O"
	h.OxidationState = 3
	if got := h.String(); got != "Fe3+-O (U=3.80, L=2)" {
		t.Fatalf("string = %q", got)
	}

	h.OxidationState = 2.5
	if got := h.String(); got != "Fe2.5+-O (U=3.80, L=2)" {
		t.Fatalf("string = %q", got)
	}
}
