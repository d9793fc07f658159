package mapping

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"unflatten/internal/matcher"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "mapping.json")
	if err := os.WriteFile(good, []byte(`{"0a1b.pdf": "reports/q1.pdf"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := Load(good)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m["0a1b.pdf"] != "reports/q1.pdf" {
		t.Fatalf("unexpected mapping %v", m)
	}

	for name, content := range map[string]string{"array": `["x"]`, "null": `null`, "broken": `{`} {
		path := filepath.Join(dir, name+".json")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestEvaluate(t *testing.T) {
	m := Mapping{
		"a.pdf": "docs/a.pdf",
		"b.pdf": "docs/b.pdf",
		"c.pdf": "docs/c.pdf",
		"d.pdf": "docs/d.pdf",
	}
	result := matcher.Result{
		Unique:   []matcher.MatchResult{{FlattenedPath: "a.pdf", OriginalPath: "docs/a.pdf"}},
		Resolved: []matcher.MatchResult{{FlattenedPath: "b.pdf", OriginalPath: "docs/c.pdf"}, {FlattenedPath: "x.pdf", OriginalPath: "docs/x.pdf"}},
		Ambiguous: []matcher.AmbiguousEntry{
			{FlattenedPath: "c.pdf", Candidates: []string{"docs/b.pdf", "docs/c.pdf"}},
			{FlattenedPath: "d.pdf", Candidates: []string{"docs/a.pdf"}},
		},
	}
	eval := Evaluate(result, m)
	want := Evaluation{
		Correct:            1,
		Incorrect:          1,
		Unverifiable:       1,
		AmbiguousWithTruth: 1,
		AmbiguousTotal:     2,
		Mistakes:           []Mistake{{FlattenedPath: "b.pdf", Expected: "docs/b.pdf", Got: "docs/c.pdf"}},
	}
	if !reflect.DeepEqual(eval, want) {
		t.Fatalf("Evaluate = %+v", eval)
	}
	if eval.Accuracy() != 0.5 {
		t.Fatalf("accuracy = %v", eval.Accuracy())
	}
}

func TestLookupCleansNames(t *testing.T) {
	m := Mapping{"0a1b.pdf": "reports/q1.pdf"}
	got := m.Lookup([]string{"  - 0a1b.pdf: candidates 3", "", "* missing.pdf", "   "})
	want := []Lookup{
		{Name: "0a1b.pdf", Original: "reports/q1.pdf", Found: true},
		{Name: "missing.pdf"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Lookup = %+v", got)
	}
}

func TestOriginalFallsBackToBaseName(t *testing.T) {
	m := Mapping{"0a1b.pdf": "reports/q1.pdf"}
	if orig, ok := m.Original("batch1/0a1b.pdf"); !ok || orig != "reports/q1.pdf" {
		t.Fatalf("Original = %q, %v", orig, ok)
	}
}
