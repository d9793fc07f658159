package similarity

import (
	"math"
	"testing"

	"unflatten/internal/fingerprint"
)

func TestHash(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want float64
	}{
		{name: "empty", a: nil, b: []string{"ff"}, want: 0},
		{name: "identical", a: []string{"ff00", "abcd"}, b: []string{"ff00", "abcd"}, want: 1},
		{name: "one bit of sixteen", a: []string{"ff00"}, b: []string{"ff01"}, want: 1 - 1.0/16},
		{name: "inverted", a: []string{"00"}, b: []string{"ff"}, want: 0},
		{name: "tokens joined before comparing", a: []string{"ab", "cd"}, b: []string{"abcd"}, want: 1},
		{name: "length mismatch uses ratio", a: []string{"abcd"}, b: []string{"abcdef"}, want: 0.8},
		{name: "invalid hex uses ratio", a: []string{"zz"}, b: []string{"zy"}, want: 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Hash(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("Hash = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRatio(t *testing.T) {
	if got := Ratio("abcd", "bcde"); math.Abs(got-0.75) > 1e-9 {
		t.Fatalf("Ratio = %v, want 0.75", got)
	}
	if got := Ratio("", ""); got != 1 {
		t.Fatalf("Ratio of empty strings = %v", got)
	}
	if got := Ratio("abc", ""); got != 0 {
		t.Fatalf("Ratio with one empty string = %v", got)
	}
}

func TestText(t *testing.T) {
	long := "the quick brown fox jumps over the lazy dog"
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "empty", a: "", b: long, want: 0},
		{name: "short equal", a: "invoice 42", b: "invoice 42", want: 1},
		{name: "short differ", a: "invoice 42", b: "invoice 43", want: 0},
		{name: "one side short", a: "invoice", b: long, want: 0},
		{name: "identical long", a: long, b: long, want: 1},
		// {a b c d e} vs {a b c d f}: 4 shared of 6 distinct.
		{name: "jaccard", a: "a b c d e", b: "a b c d f", want: 4.0 / 6.0},
		{name: "word order ignored", a: "e d c b a", b: "a b c d e", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.a, tt.b, 5); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("Text = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestImage(t *testing.T) {
	a := fingerprint.RenderedImage{Width: 2, Height: 2, Pixels: []byte{0, 0, 0, 0}}
	b := fingerprint.RenderedImage{Width: 2, Height: 2, Pixels: []byte{10, 10, 10, 10}}
	if got := Image(a, a, 1000); got != 1 {
		t.Fatalf("identical grids scored %v", got)
	}
	// mse = 100, exp(-100/1000)
	if got := Image(a, b, 1000); math.Abs(got-math.Exp(-0.1)) > 1e-9 {
		t.Fatalf("Image = %v, want %v", got, math.Exp(-0.1))
	}
	wide := fingerprint.RenderedImage{Width: 4, Height: 1, Pixels: []byte{0, 0, 0, 0}}
	if got := Image(a, wide, 1000); got != 0 {
		t.Fatalf("dimension mismatch scored %v", got)
	}
	if got := Image(a, fingerprint.RenderedImage{}, 1000); got != 0 {
		t.Fatalf("empty grid scored %v", got)
	}
}

func TestCompareDispatch(t *testing.T) {
	params := DefaultParams()
	text := fingerprint.TextSignature{Text: "same short text"}
	hash := fingerprint.PerceptualHash{Pages: []string{"ff"}}

	if got := Compare(text, text, params); got != 1 {
		t.Fatalf("text compare = %v", got)
	}
	if got := Compare(hash, hash, params); got != 1 {
		t.Fatalf("hash compare = %v", got)
	}
	if got := Compare(text, hash, params); got != 0 {
		t.Fatalf("cross-kind compare = %v", got)
	}
	if got := Compare(text, nil, params); got != 0 {
		t.Fatalf("nil compare = %v", got)
	}
	if got := Compare(fingerprint.TextSignature{}, fingerprint.TextSignature{}, params); got != 0 {
		t.Fatalf("empty compare = %v", got)
	}
}
