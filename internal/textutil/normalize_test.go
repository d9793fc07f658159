package textutil

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"collapses whitespace", "  Hello\n\tWorld  ", "hello world"},
		{"folds ligature", "ﬁnal Report", "final report"},
		{"full width digits", "Invoice １２３", "invoice 123"},
		{"unicode lower", "ÉCOLE Straße", "école straße"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWords(t *testing.T) {
	got := Words("quarterly report, q3-2024: final!")
	want := []string{"quarterly", "report", "q3", "2024", "final"}
	if len(got) != len(want) {
		t.Fatalf("Words() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Words() = %v, want %v", got, want)
		}
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "alpha beta gamma", "gamma beta alpha", 1},
		{"disjoint", "alpha beta", "gamma delta", 0},
		{"half overlap", "alpha beta gamma", "beta gamma delta", 0.5},
		{"duplicates ignored", "alpha alpha beta", "alpha beta", 1},
		{"empty side", "", "alpha", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Jaccard(WordSet(tt.a), WordSet(tt.b))
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Jaccard() = %v, want %v", got, tt.want)
			}
		})
	}
}
