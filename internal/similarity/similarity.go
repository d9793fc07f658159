package similarity

import (
	"encoding/hex"
	"math"
	"math/bits"
	"strings"

	"unflatten/internal/fingerprint"
	"unflatten/internal/textutil"
)

// Params holds the tunable comparison constants.
type Params struct {
	// MinWords is the word count below which text must match exactly.
	MinWords int
	// ImageDecay scales mean squared error before the exponential falloff.
	ImageDecay float64
}

// DefaultParams returns the comparison defaults.
func DefaultParams() Params {
	return Params{MinWords: 5, ImageDecay: 1000}
}

// Compare scores two signatures of the same kind. Mismatched or empty
// signatures score 0.
func Compare(a, b fingerprint.Signature, params Params) float64 {
	if a == nil || b == nil || a.Kind() != b.Kind() || a.Empty() || b.Empty() {
		return 0
	}
	switch av := a.(type) {
	case fingerprint.TextSignature:
		return Text(av.Text, b.(fingerprint.TextSignature).Text, params.MinWords)
	case fingerprint.PerceptualHash:
		return Hash(av.Pages, b.(fingerprint.PerceptualHash).Pages)
	case fingerprint.RenderedImage:
		return Image(av, b.(fingerprint.RenderedImage), params.ImageDecay)
	default:
		return 0
	}
}

// Hash compares two per-page hex token sequences. Equal-length sequences
// score the fraction of matching bits; otherwise the joined strings fall back
// to Ratio.
func Hash(a, b []string) float64 {
	ja, jb := strings.Join(a, ""), strings.Join(b, "")
	if ja == "" || jb == "" {
		return 0
	}
	if len(ja) == len(jb) {
		if score, ok := bitSimilarity(ja, jb); ok {
			return score
		}
	}
	return Ratio(ja, jb)
}

func bitSimilarity(a, b string) (float64, bool) {
	ba, err := hex.DecodeString(a)
	if err != nil {
		return 0, false
	}
	bb, err := hex.DecodeString(b)
	if err != nil {
		return 0, false
	}
	distance := 0
	for i := range ba {
		distance += bits.OnesCount8(ba[i] ^ bb[i])
	}
	total := len(ba) * 8
	return 1 - float64(distance)/float64(total), true
}

// Ratio returns 2*M/T where M is the longest common subsequence length and T
// the combined length of both strings.
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	return 2 * float64(lcsLength(a, b)) / float64(len(a)+len(b))
}

func lcsLength(a, b string) int {
	if len(b) > len(a) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// Text compares two normalized text samples. Samples shorter than minWords
// words score 1 on exact equality and 0 otherwise; longer samples score the
// Jaccard index of their word sets.
func Text(a, b string, minWords int) float64 {
	if a == "" || b == "" {
		return 0
	}
	wa, wb := textutil.Words(a), textutil.Words(b)
	if len(wa) < minWords || len(wb) < minWords {
		if a == b {
			return 1
		}
		return 0
	}
	return textutil.Jaccard(textutil.WordSet(a), textutil.WordSet(b))
}

// Image maps the mean squared pixel error of two equally sized grids through
// exp(-mse/decay). Grids of different dimensions score 0.
func Image(a, b fingerprint.RenderedImage, decay float64) float64 {
	if a.Empty() || b.Empty() || a.Width != b.Width || a.Height != b.Height {
		return 0
	}
	if decay <= 0 {
		decay = DefaultParams().ImageDecay
	}
	var sum float64
	for i := range a.Pixels {
		d := float64(a.Pixels[i]) - float64(b.Pixels[i])
		sum += d * d
	}
	mse := sum / float64(len(a.Pixels))
	return math.Exp(-mse / decay)
}
