package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	CacheDir string `toml:"cache_dir"`
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
}

// Scan contains configuration for directory scanning.
type Scan struct {
	Workers      int      `toml:"workers"` // 0 means runtime.NumCPU()
	CacheEnabled bool     `toml:"cache_enabled"`
	Include      []string `toml:"include"`
	Exclude      []string `toml:"exclude"`
	JunkNames    []string `toml:"junk_names"`
	// SniffContent admits extension-less files whose bytes identify them as PDF.
	SniffContent bool `toml:"sniff_content"`
	// LazySignatures defers content signatures until page-count bucketing shows
	// they are needed.
	LazySignatures bool `toml:"lazy_signatures"`
}

// Fingerprint contains the fixed extraction constants. Changing any of them
// invalidates existing caches.
type Fingerprint struct {
	HashPages        int    `toml:"hash_pages"`
	DPI              int    `toml:"dpi"`
	HashGrid         int    `toml:"hash_grid"`
	ImageGrid        int    `toml:"image_grid"`
	TextLastPage     bool   `toml:"text_last_page"`
	StripAnnotations bool   `toml:"strip_annotations"`
	OCREnabled       bool   `toml:"ocr_enabled"`
	OCRLanguage      string `toml:"ocr_language"`
	PdftoppmBinary   string `toml:"pdftoppm_binary"`
	PdfinfoBinary    string `toml:"pdfinfo_binary"`
	TesseractBinary  string `toml:"tesseract_binary"`
}

// Matching contains the similarity resolution policy.
type Matching struct {
	// Strategy is the escalation order of signature kinds: "text", "hash", "image".
	Strategy        []string `toml:"strategy"`
	TextThreshold   float64  `toml:"text_threshold"`
	VisualThreshold float64  `toml:"visual_threshold"`
	MinWords        int      `toml:"min_words"`
	ImageDecay      float64  `toml:"image_decay"`
	// StrictUnique requires content evidence even for single-candidate buckets.
	StrictUnique bool `toml:"strict_unique"`
}

// Restore contains configuration for the restoration copy step.
type Restore struct {
	VerifyCopies  bool `toml:"verify_copies"`
	PreserveTimes bool `toml:"preserve_times"`
}

// Report contains configuration for the run history database.
type Report struct {
	Enabled  bool `toml:"enabled"`
	KeepRuns int  `toml:"keep_runs"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   bool   `toml:"file"`
}

// Config encapsulates all configuration values for unflatten.
//
// Configuration sections by subsystem:
//   - Paths: cache, data, and log directories
//   - Scan: worker pool size, cache toggle, file filters
//   - Fingerprint: rendering and sampling constants, external binaries
//   - Matching: thresholds and signature escalation order
//   - Restore: copy verification and timestamp handling
//   - Report: run history persistence
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Scan        Scan        `toml:"scan"`
	Fingerprint Fingerprint `toml:"fingerprint"`
	Matching    Matching    `toml:"matching"`
	Restore     Restore     `toml:"restore"`
	Report      Report      `toml:"report"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/unflatten/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("unflatten.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the cache and data directories. The log directory
// is only created when file logging is enabled.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.CacheDir, c.Paths.DataDir}
	if c.Logging.File {
		dirs = append(dirs, c.Paths.LogDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ReportDBPath returns the location of the run history database.
func (c *Config) ReportDBPath() string {
	return filepath.Join(c.Paths.DataDir, "runs.db")
}

// LockDir returns the directory holding restore locks.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.DataDir, "locks")
}

// LogFilePath returns the log file used when file logging is enabled.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "unflatten.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "unflatten")
	}
	return defaultCacheDirFallback
}

func defaultDataDir() string {
	if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "unflatten")
	}
	return defaultDataDirFallback
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
