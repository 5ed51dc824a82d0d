package pagination

import "testing"

func TestClampLimit(t *testing.T) {
	t.Parallel()

	cfg := LimitConfig{Default: 100, Max: 500}
	tests := []struct {
		name  string
		value int
		want  int
	}{
		{name: "zero uses default", value: 0, want: 100},
		{name: "negative uses default", value: -5, want: 100},
		{name: "within bounds kept", value: 50, want: 50},
		{name: "above max clamped", value: 10000, want: 500},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClampLimit(tc.value, cfg); got != tc.want {
				t.Fatalf("ClampLimit(%d) = %d, want %d", tc.value, got, tc.want)
			}
		})
	}
}

func TestClampLimitZeroConfig(t *testing.T) {
	t.Parallel()

	if got := ClampLimit(0, LimitConfig{}); got != 1 {
		t.Fatalf("ClampLimit with empty config = %d, want 1", got)
	}
}

func TestClampOffset(t *testing.T) {
	t.Parallel()

	if got := ClampOffset(-10); got != 0 {
		t.Fatalf("negative offset = %d, want 0", got)
	}
	if got := ClampOffset(250); got != 250 {
		t.Fatalf("offset = %d, want 250", got)
	}
}

func TestNormalizeOrderBy(t *testing.T) {
	t.Parallel()

	cfg := OrderByConfig{Default: "created_at", Allowed: []string{"created_at", "natoms", "delta_e"}}

	got, err := NormalizeOrderBy("", cfg)
	if err != nil {
		t.Fatalf("normalize empty: %v", err)
	}
	if got != "created_at" {
		t.Fatalf("default order_by = %q, want created_at", got)
	}

	got, err = NormalizeOrderBy("natoms", cfg)
	if err != nil {
		t.Fatalf("normalize natoms: %v", err)
	}
	if got != "natoms" {
		t.Fatalf("order_by = %q, want natoms", got)
	}

	if _, err := NormalizeOrderBy("energy; DROP TABLE entries", cfg); err == nil {
		t.Fatal("expected invalid order_by error")
	}
}
