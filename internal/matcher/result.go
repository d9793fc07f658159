package matcher

import (
	"fmt"
	"sort"

	"unflatten/internal/fingerprint"
	"unflatten/internal/scanner"
)

// Method records how a match was established.
type Method string

const (
	MethodUniquePageCount  Method = "unique_page_count"
	MethodTextSimilarity   Method = "text_similarity"
	MethodVisualSimilarity Method = "visual_similarity"
)

func methodFor(kind fingerprint.Kind) Method {
	if kind.Visual() {
		return MethodVisualSimilarity
	}
	return MethodTextSimilarity
}

// Reason explains why a flattened file has no candidates.
type Reason string

const (
	ReasonUnknownPageCount Reason = "unknown_page_count"
	ReasonNoCandidates     Reason = "no_candidates"
)

// MatchResult pairs a flattened file with its original location.
type MatchResult struct {
	FlattenedPath string  `json:"flattened_path"`
	OriginalPath  string  `json:"original_path"`
	Method        Method  `json:"method"`
	Confidence    float64 `json:"confidence"`
	// Kind is the signature kind that cleared its threshold, if any.
	Kind      fingerprint.Kind `json:"kind,omitempty"`
	PageCount int              `json:"page_count"`
}

// AmbiguousEntry is a flattened file whose candidates could not be told apart.
type AmbiguousEntry struct {
	FlattenedPath string `json:"flattened_path"`
	// Candidates lists every original in the bucket, in table order.
	Candidates []string         `json:"candidate_original_paths"`
	PageCount  int              `json:"page_count"`
	BestPath   string           `json:"best_candidate,omitempty"`
	BestScore  float64          `json:"best_score"`
	BestKind   fingerprint.Kind `json:"best_kind,omitempty"`
}

// UnmatchedEntry is a flattened file with no candidate at all.
type UnmatchedEntry struct {
	FlattenedPath string `json:"flattened_path"`
	PageCount     int    `json:"page_count"`
	Reason        Reason `json:"reason"`
}

// Result holds the classification of every flattened file. Each list is
// ordered by flattened path.
type Result struct {
	Unique    []MatchResult    `json:"unique"`
	Resolved  []MatchResult    `json:"resolved"`
	Ambiguous []AmbiguousEntry `json:"ambiguous"`
	Unmatched []UnmatchedEntry `json:"unmatched"`
}

// Counts summarizes a Result.
type Counts struct {
	Unique    int `json:"unique"`
	Resolved  int `json:"resolved"`
	Ambiguous int `json:"ambiguous"`
	Unmatched int `json:"unmatched"`
	Total     int `json:"total"`
}

// Counts returns the size of each class.
func (r Result) Counts() Counts {
	c := Counts{
		Unique:    len(r.Unique),
		Resolved:  len(r.Resolved),
		Ambiguous: len(r.Ambiguous),
		Unmatched: len(r.Unmatched),
	}
	c.Total = c.Unique + c.Resolved + c.Ambiguous + c.Unmatched
	return c
}

// Matches returns the confirmed matches (unique and resolved) ordered by
// flattened path.
func (r Result) Matches() []MatchResult {
	out := make([]MatchResult, 0, len(r.Unique)+len(r.Resolved))
	out = append(out, r.Unique...)
	out = append(out, r.Resolved...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].FlattenedPath < out[j].FlattenedPath })
	return out
}

// Check verifies that the four classes partition the flattened table: every
// file appears exactly once and nothing else appears.
func (r Result) Check(flattened *scanner.Table) error {
	seen := make(map[string]string, flattened.Len())
	visit := func(path, class string) error {
		if _, ok := flattened.Get(path); !ok {
			return fmt.Errorf("%s entry %q is not in the flattened table", class, path)
		}
		if prev, dup := seen[path]; dup {
			return fmt.Errorf("%q classified as both %s and %s", path, prev, class)
		}
		seen[path] = class
		return nil
	}
	for _, m := range r.Unique {
		if err := visit(m.FlattenedPath, "unique"); err != nil {
			return err
		}
	}
	for _, m := range r.Resolved {
		if err := visit(m.FlattenedPath, "resolved"); err != nil {
			return err
		}
	}
	for _, a := range r.Ambiguous {
		if err := visit(a.FlattenedPath, "ambiguous"); err != nil {
			return err
		}
	}
	for _, u := range r.Unmatched {
		if err := visit(u.FlattenedPath, "unmatched"); err != nil {
			return err
		}
	}
	if len(seen) != flattened.Len() {
		for _, path := range flattened.Paths() {
			if _, ok := seen[path]; !ok {
				return fmt.Errorf("%q was not classified", path)
			}
		}
	}
	return nil
}
