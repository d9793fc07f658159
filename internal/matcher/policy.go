package matcher

import (
	"runtime"

	"unflatten/internal/config"
	"unflatten/internal/fingerprint"
	"unflatten/internal/similarity"
)

// Policy controls ambiguous-bucket resolution.
type Policy struct {
	// Strategy is the escalation order of signature kinds, cheapest first.
	Strategy        []fingerprint.Kind
	TextThreshold   float64
	VisualThreshold float64
	MinWords        int
	ImageDecay      float64
	// StrictUnique sends single-candidate buckets through content
	// comparison instead of accepting the page count as sufficient.
	StrictUnique bool
	Workers      int
}

// DefaultPolicy returns the resolution defaults.
func DefaultPolicy() Policy {
	params := similarity.DefaultParams()
	return Policy{
		Strategy:        []fingerprint.Kind{fingerprint.KindText, fingerprint.KindHash},
		TextThreshold:   0.8,
		VisualThreshold: 0.9,
		MinWords:        params.MinWords,
		ImageDecay:      params.ImageDecay,
	}
}

// PolicyFromConfig builds a policy from the matching and scan sections.
func PolicyFromConfig(cfg *config.Config) (Policy, error) {
	kinds, err := fingerprint.ParseKinds(cfg.Matching.Strategy)
	if err != nil {
		return Policy{}, err
	}
	return Policy{
		Strategy:        kinds,
		TextThreshold:   cfg.Matching.TextThreshold,
		VisualThreshold: cfg.Matching.VisualThreshold,
		MinWords:        cfg.Matching.MinWords,
		ImageDecay:      cfg.Matching.ImageDecay,
		StrictUnique:    cfg.Matching.StrictUnique,
		Workers:         cfg.Scan.Workers,
	}, nil
}

// Threshold returns the inclusive pass mark for kind.
func (p Policy) Threshold(kind fingerprint.Kind) float64 {
	if kind.Visual() {
		return p.VisualThreshold
	}
	return p.TextThreshold
}

// Params returns the similarity constants of the policy.
func (p Policy) Params() similarity.Params {
	return similarity.Params{MinWords: p.MinWords, ImageDecay: p.ImageDecay}
}

func (p Policy) normalized() Policy {
	if len(p.Strategy) == 0 {
		p.Strategy = DefaultPolicy().Strategy
	}
	if p.Workers <= 0 {
		p.Workers = runtime.NumCPU()
	}
	if p.ImageDecay <= 0 {
		p.ImageDecay = similarity.DefaultParams().ImageDecay
	}
	if p.MinWords < 0 {
		p.MinWords = 0
	}
	return p
}
