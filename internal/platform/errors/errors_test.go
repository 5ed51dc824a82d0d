package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	err := Wrap(CodeUnknown, "write entry", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable")
	}
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("outer: %w", New(CodeNotFound, "entry missing"))
	if got := GetCode(err); got != CodeNotFound {
		t.Fatalf("GetCode = %q, want %q", got, CodeNotFound)
	}
	if got := GetCode(errors.New("plain")); got != CodeUnknown {
		t.Fatalf("GetCode plain = %q, want %q", got, CodeUnknown)
	}
}

func TestIsCode(t *testing.T) {
	t.Parallel()

	err := New(CodeAPIInvalidFilter, "bad filter")
	if !IsCode(err, CodeAPIInvalidFilter) {
		t.Fatal("expected IsCode match")
	}
	if IsCode(err, CodeNotFound) {
		t.Fatal("expected IsCode mismatch")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code Code
		want int
	}{
		{CodeCompositionMalformed, http.StatusBadRequest},
		{CodeAPIInvalidFilter, http.StatusBadRequest},
		{CodeEntryDuplicate, http.StatusConflict},
		{CodeAlreadyExists, http.StatusConflict},
		{CodeThermoMissingPotential, http.StatusUnprocessableEntity},
		{CodePotentialUnknownElement, http.StatusUnprocessableEntity},
		{CodeAPIUnauthenticated, http.StatusUnauthorized},
		{CodeNotFound, http.StatusNotFound},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("%s HTTPStatus = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestWithMetadata(t *testing.T) {
	t.Parallel()

	err := WithMetadata(CodePotentialUnknownElement, "unknown element", map[string]string{"symbol": "Xx"})
	meta := GetMetadata(fmt.Errorf("parse potcar: %w", err))
	if meta["symbol"] != "Xx" {
		t.Fatalf("metadata symbol = %q, want Xx", meta["symbol"])
	}
}
