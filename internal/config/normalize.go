package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeScan(); err != nil {
		return err
	}
	c.normalizeFingerprint()
	c.normalizeMatching()
	c.normalizeReport()
	c.normalizeLogging()
	return nil
}

// Normalize re-applies defaults and path expansion after callers override
// fields, e.g. from command-line flags.
func (c *Config) Normalize() error {
	return c.normalize()
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir()
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeScan() error {
	if value, ok := os.LookupEnv("UNFLATTEN_WORKERS"); ok && strings.TrimSpace(value) != "" {
		workers, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("UNFLATTEN_WORKERS: %w", err)
		}
		c.Scan.Workers = workers
	}
	if c.Scan.Workers == 0 {
		c.Scan.Workers = runtime.NumCPU()
	}
	c.Scan.Include = trimList(c.Scan.Include, false)
	c.Scan.Exclude = trimList(c.Scan.Exclude, false)
	c.Scan.JunkNames = trimList(c.Scan.JunkNames, false)
	return nil
}

func (c *Config) normalizeFingerprint() {
	c.Fingerprint.OCRLanguage = strings.TrimSpace(c.Fingerprint.OCRLanguage)
	if c.Fingerprint.OCRLanguage == "" {
		c.Fingerprint.OCRLanguage = defaultOCRLanguage
	}
	c.Fingerprint.PdftoppmBinary = strings.TrimSpace(c.Fingerprint.PdftoppmBinary)
	if c.Fingerprint.PdftoppmBinary == "" {
		c.Fingerprint.PdftoppmBinary = defaultPdftoppmBinary
	}
	c.Fingerprint.PdfinfoBinary = strings.TrimSpace(c.Fingerprint.PdfinfoBinary)
	if c.Fingerprint.PdfinfoBinary == "" {
		c.Fingerprint.PdfinfoBinary = defaultPdfinfoBinary
	}
	c.Fingerprint.TesseractBinary = strings.TrimSpace(c.Fingerprint.TesseractBinary)
	if c.Fingerprint.TesseractBinary == "" {
		c.Fingerprint.TesseractBinary = defaultTesseractBinary
	}
}

func (c *Config) normalizeMatching() {
	strategy := trimList(c.Matching.Strategy, true)
	if len(strategy) == 0 {
		strategy = append([]string(nil), defaultStrategy...)
	}
	c.Matching.Strategy = strategy
	if c.Matching.MinWords < 0 {
		c.Matching.MinWords = 0
	}
}

func (c *Config) normalizeReport() {
	if c.Report.KeepRuns < 0 {
		c.Report.KeepRuns = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// trimList drops blank and duplicate entries, optionally lower-casing them.
func trimList(values []string, lower bool) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := strings.TrimSpace(value)
		if lower {
			normalized = strings.ToLower(normalized)
		}
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}
