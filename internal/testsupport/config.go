package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"unflatten/internal/config"
)

// ConfigOption adjusts a test configuration. base is the temp directory that
// holds the config's cache, data and log directories.
type ConfigOption func(t testing.TB, cfg *config.Config, base string)

// NewConfig returns a normalized config whose directories live under a fresh
// temp directory.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Scan.Workers = 2
	for _, opt := range opts {
		opt(t, &cfg, base)
	}
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize test config: %v", err)
	}
	return &cfg
}

// BaseDir returns the temp directory behind a NewConfig result.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CacheDir)
}

func WithStrategy(kinds ...string) ConfigOption {
	return func(_ testing.TB, cfg *config.Config, _ string) {
		cfg.Matching.Strategy = append([]string(nil), kinds...)
	}
}

func WithoutCache() ConfigOption {
	return func(_ testing.TB, cfg *config.Config, _ string) {
		cfg.Scan.CacheEnabled = false
	}
}

func WithoutReport() ConfigOption {
	return func(_ testing.TB, cfg *config.Config, _ string) {
		cfg.Report.Enabled = false
	}
}

// WithStubbedBinaries puts do-nothing executables named names (default: the
// poppler and tesseract tools) first on PATH.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, _ *config.Config, base string) {
		t.Helper()
		if len(names) == 0 {
			names = []string{"pdftoppm", "pdfinfo", "tesseract"}
		}
		bin := filepath.Join(base, "bin")
		if err := os.MkdirAll(bin, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", bin, err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
