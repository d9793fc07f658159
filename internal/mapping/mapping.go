package mapping

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"unflatten/internal/matcher"
)

// Mapping maps each identifier file name written by the flattening step to
// the original relative path.
type Mapping map[string]string

// Load reads a mapping JSON object.
func Load(filePath string) (Mapping, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}
	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse mapping %s: %w", filePath, err)
	}
	if m == nil {
		return nil, fmt.Errorf("parse mapping %s: expected a JSON object", filePath)
	}
	return m, nil
}

// Original returns the original path for a flattened relative path, trying
// the full path before its base name.
func (m Mapping) Original(flattenedPath string) (string, bool) {
	if orig, ok := m[flattenedPath]; ok {
		return orig, true
	}
	orig, ok := m[path.Base(flattenedPath)]
	return orig, ok
}

// Mistake is a match that disagrees with the mapping.
type Mistake struct {
	FlattenedPath string `json:"flattened_path"`
	Expected      string `json:"expected"`
	Got           string `json:"got"`
}

// Evaluation compares a result with the ground truth mapping.
type Evaluation struct {
	Correct      int `json:"correct"`
	Incorrect    int `json:"incorrect"`
	Unverifiable int `json:"unverifiable"`
	// AmbiguousWithTruth counts ambiguous entries whose candidates include
	// the true original.
	AmbiguousWithTruth int       `json:"ambiguous_with_truth"`
	AmbiguousTotal     int       `json:"ambiguous_total"`
	Mistakes           []Mistake `json:"mistakes,omitempty"`
}

// Accuracy returns the share of verifiable matches that are correct.
func (e Evaluation) Accuracy() float64 {
	checked := e.Correct + e.Incorrect
	if checked == 0 {
		return 0
	}
	return float64(e.Correct) / float64(checked)
}

// Evaluate scores every confirmed match and ambiguous entry against m.
func Evaluate(result matcher.Result, m Mapping) Evaluation {
	var eval Evaluation
	for _, match := range result.Matches() {
		expected, ok := m.Original(match.FlattenedPath)
		switch {
		case !ok:
			eval.Unverifiable++
		case expected == match.OriginalPath:
			eval.Correct++
		default:
			eval.Incorrect++
			eval.Mistakes = append(eval.Mistakes, Mistake{
				FlattenedPath: match.FlattenedPath,
				Expected:      expected,
				Got:           match.OriginalPath,
			})
		}
	}
	for _, entry := range result.Ambiguous {
		eval.AmbiguousTotal++
		expected, ok := m.Original(entry.FlattenedPath)
		if !ok {
			continue
		}
		for _, cand := range entry.Candidates {
			if cand == expected {
				eval.AmbiguousWithTruth++
				break
			}
		}
	}
	return eval
}

// Lookup is the resolution of one identifier name.
type Lookup struct {
	Name     string `json:"name"`
	Original string `json:"original,omitempty"`
	Found    bool   `json:"found"`
}

// Lookup resolves identifier names, accepting lines copied from review
// lists: leading bullets and a trailing ": note" are ignored. Blank inputs
// are skipped.
func (m Mapping) Lookup(names []string) []Lookup {
	out := make([]Lookup, 0, len(names))
	for _, raw := range names {
		name := CleanName(raw)
		if name == "" {
			continue
		}
		orig, ok := m.Original(name)
		out = append(out, Lookup{Name: name, Original: orig, Found: ok})
	}
	return out
}

// CleanName strips list decoration from an identifier name.
func CleanName(raw string) string {
	name := strings.TrimSpace(raw)
	name = strings.TrimLeft(name, "-*• \t")
	if i := strings.Index(name, ":"); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

// Names returns the identifier names in sorted order.
func (m Mapping) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
