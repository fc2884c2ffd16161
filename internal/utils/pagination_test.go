package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s        string
		def, out int
	}{
		{"", 20, 20},
		{"3", 1, 3},
		{"-2", 1, -2},
		{"007", 1, 7},
		{"page", 1, 1},
		{" 5", 1, 1},
		{"99999999999999999999", 20, 20},
	}
	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.out {
			t.Fatalf("AtoiDefault(%q, %d) = %d, want %d", tc.s, tc.def, got, tc.out)
		}
	}
}

func TestClamp(t *testing.T) {
	for _, tc := range [][4]int{{0, 1, 100, 1}, {50, 1, 100, 50}, {1000, 1, 100, 100}, {1, 1, 1, 1}} {
		if got := Clamp(tc[0], tc[1], tc[2]); got != tc[3] {
			t.Fatalf("Clamp(%d, %d, %d) = %d, want %d", tc[0], tc[1], tc[2], got, tc[3])
		}
	}
}
