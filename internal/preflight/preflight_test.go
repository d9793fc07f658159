package preflight

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"unflatten/internal/ocr"
	"unflatten/internal/testsupport"
)

func TestCheckDirectoryReadable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		path string
		pass bool
	}{
		{"existing dir", t.TempDir(), true},
		{"missing dir", filepath.Join(t.TempDir(), "nope"), false},
		{"file", file, false},
		{"empty", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := CheckDirectoryReadable("test", tc.path)
			if result.Passed != tc.pass {
				t.Fatalf("Passed = %v, want %v (%s)", result.Passed, tc.pass, result.Detail)
			}
			if result.Detail == "" {
				t.Fatal("expected non-empty detail")
			}
		})
	}
}

func TestCheckDirectoryWritable(t *testing.T) {
	base := t.TempDir()
	result := CheckDirectoryWritable("out", filepath.Join(base, "a", "b"))
	if !result.Passed {
		t.Fatalf("expected missing dir under writable parent to pass: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "will be created") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}

	file := filepath.Join(base, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryWritable("out", filepath.Join(file, "child")); result.Passed {
		t.Fatal("expected failure when an ancestor is a file")
	}
}

func TestCheckOutputRoot(t *testing.T) {
	base := t.TempDir()
	flat := filepath.Join(base, "flat")
	orig := filepath.Join(base, "orig")
	tests := []struct {
		name   string
		output string
		pass   bool
	}{
		{"sibling", filepath.Join(base, "restored"), true},
		{"prefix sibling", filepath.Join(base, "flat-restored"), true},
		{"same as flattened", flat, false},
		{"inside original", filepath.Join(orig, "out"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := CheckOutputRoot(tc.output, flat, orig)
			if result.Passed != tc.pass {
				t.Fatalf("Passed = %v, want %v (%s)", result.Passed, tc.pass, result.Detail)
			}
		})
	}
}

func TestCheckSystemDepsOptionalFlags(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStrategy("text"))
	statuses := CheckSystemDeps(cfg)
	byName := make(map[string]bool)
	for _, s := range statuses {
		byName[s.Name] = s.Optional
	}
	if !byName["pdftoppm"] {
		t.Fatal("pdftoppm should be optional for a text-only strategy without OCR")
	}
	if !byName["pdfinfo"] {
		t.Fatal("pdfinfo should always be optional")
	}

	cfg = testsupport.NewConfig(t, testsupport.WithStrategy("text", "image"))
	cfg.Fingerprint.OCREnabled = true
	for _, s := range CheckSystemDeps(cfg) {
		switch s.Name {
		case "pdftoppm", "tesseract":
			if s.Optional {
				t.Fatalf("%s should be required", s.Name)
			}
		}
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	base := testsupport.BaseDir(cfg)
	flat := filepath.Join(base, "flat")
	orig := filepath.Join(base, "orig")
	for _, dir := range []string{flat, orig} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	results := RunAll(cfg, Request{Flattened: flat, Original: orig, Output: filepath.Join(base, "out")})
	if err := Failed(results); err != nil {
		t.Fatalf("expected all checks to pass: %v", err)
	}
	names := make(map[string]bool)
	for _, r := range results {
		names[r.Name] = true
	}
	for _, want := range []string{"Flattened tree", "Original tree", "Output root", "Cache directory", "Data directory", "pdftoppm"} {
		if !names[want] {
			t.Errorf("missing check %q", want)
		}
	}
	if names["tesseract"] {
		t.Error("tesseract is optional without OCR and should not be listed")
	}
}

func TestRunAllReportsFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Fingerprint.PdftoppmBinary = "clearly-not-present-pdftoppm"
	base := testsupport.BaseDir(cfg)
	flat := filepath.Join(base, "flat")
	if err := os.MkdirAll(flat, 0o755); err != nil {
		t.Fatal(err)
	}

	results := RunAll(cfg, Request{Flattened: flat, Original: filepath.Join(base, "missing"), Output: filepath.Join(flat, "out")})
	err := Failed(results)
	if err == nil {
		t.Fatal("expected failures")
	}
	for _, want := range []string{"Original tree", "Output root", "pdftoppm"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestRunAllNilConfig(t *testing.T) {
	if results := RunAll(nil, Request{}); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestTesseractListedOnlyForCLIEngine(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	found := false
	for _, s := range CheckSystemDeps(cfg) {
		if s.Name == "tesseract" {
			found = true
		}
	}
	if found != ocr.ExternalBinary {
		t.Fatalf("tesseract listed = %v, want %v", found, ocr.ExternalBinary)
	}
}
