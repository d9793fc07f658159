package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"unflatten/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantCache := filepath.Join(tempHome, ".cache", "unflatten")
	if cfg.Paths.CacheDir != wantCache {
		t.Fatalf("unexpected cache dir: got %q want %q", cfg.Paths.CacheDir, wantCache)
	}
	wantData := filepath.Join(tempHome, ".local", "share", "unflatten")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Scan.Workers != runtime.NumCPU() {
		t.Fatalf("expected workers to default to NumCPU, got %d", cfg.Scan.Workers)
	}
	if !cfg.Scan.CacheEnabled {
		t.Fatal("expected cache enabled by default")
	}
	if cfg.Matching.VisualThreshold != 0.9 {
		t.Fatalf("unexpected visual threshold: %v", cfg.Matching.VisualThreshold)
	}
	if got := strings.Join(cfg.Matching.Strategy, ","); got != "text,hash" {
		t.Fatalf("unexpected strategy: %q", got)
	}
	if cfg.Fingerprint.HashPages != 3 || cfg.Fingerprint.DPI != 150 || cfg.Fingerprint.HashGrid != 64 {
		t.Fatalf("unexpected fingerprint constants: %+v", cfg.Fingerprint)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.CacheDir, cfg.Paths.DataDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
	if _, err := os.Stat(cfg.Paths.LogDir); !os.IsNotExist(err) {
		t.Fatalf("expected log dir to be created only when file logging is enabled, stat err=%v", err)
	}
}

func TestLoadHonoursXDGCacheHome(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	xdg := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", xdg)

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if want := filepath.Join(xdg, "unflatten"); cfg.Paths.CacheDir != want {
		t.Fatalf("cache dir = %q, want %q", cfg.Paths.CacheDir, want)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	configPath := filepath.Join(tempDir, "unflatten.toml")

	type payload struct {
		Paths struct {
			CacheDir string `toml:"cache_dir"`
		} `toml:"paths"`
		Scan struct {
			Workers int      `toml:"workers"`
			Exclude []string `toml:"exclude"`
		} `toml:"scan"`
		Matching struct {
			Strategy      []string `toml:"strategy"`
			TextThreshold float64  `toml:"text_threshold"`
		} `toml:"matching"`
	}
	custom := payload{}
	custom.Paths.CacheDir = "~/custom-cache"
	custom.Scan.Workers = 3
	custom.Scan.Exclude = []string{" **/drafts/** ", "**/drafts/**", ""}
	custom.Matching.Strategy = []string{"HASH", " image ", "hash"}
	custom.Matching.TextThreshold = 0.5

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("resolved = %q, want %q", resolved, configPath)
	}
	if cfg.Paths.CacheDir != filepath.Join(tempDir, "custom-cache") {
		t.Fatalf("unexpected cache dir: %q", cfg.Paths.CacheDir)
	}
	if cfg.Scan.Workers != 3 {
		t.Fatalf("unexpected workers: %d", cfg.Scan.Workers)
	}
	if len(cfg.Scan.Exclude) != 1 || cfg.Scan.Exclude[0] != "**/drafts/**" {
		t.Fatalf("unexpected exclude list: %#v", cfg.Scan.Exclude)
	}
	if got := strings.Join(cfg.Matching.Strategy, ","); got != "hash,image" {
		t.Fatalf("unexpected strategy: %q", got)
	}
	if cfg.Matching.TextThreshold != 0.5 {
		t.Fatalf("unexpected text threshold: %v", cfg.Matching.TextThreshold)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"text threshold above one", "[matching]\ntext_threshold = 1.5\n", "matching.text_threshold"},
		{"visual threshold negative", "[matching]\nvisual_threshold = -0.1\n", "matching.visual_threshold"},
		{"text threshold nan", "[matching]\ntext_threshold = nan\n", "matching.text_threshold"},
		{"visual threshold nan", "[matching]\nvisual_threshold = nan\n", "matching.visual_threshold"},
		{"image decay infinite", "[matching]\nimage_decay = inf\n", "matching.image_decay"},
		{"image decay nan", "[matching]\nimage_decay = nan\n", "matching.image_decay"},
		{"unknown strategy", "[matching]\nstrategy = [\"audio\"]\n", "unknown signature kind"},
		{"zero dpi", "[fingerprint]\ndpi = 0\n", "fingerprint.dpi"},
		{"bad glob", "[scan]\ninclude = [\"[\"]\n", "invalid glob"},
		{"bad log format", "[logging]\nformat = \"xml\"\n", "logging.format"},
		{"unknown key", "[scan]\nworkerz = 2\n", "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestWorkersEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("UNFLATTEN_WORKERS", "7")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Scan.Workers != 7 {
		t.Fatalf("workers = %d, want 7", cfg.Scan.Workers)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Fingerprint.DPI != config.Default().Fingerprint.DPI {
		t.Fatalf("sample dpi = %d, want default", cfg.Fingerprint.DPI)
	}
}
