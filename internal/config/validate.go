package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/bmatcuk/doublestar/v4"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validateFingerprint(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateScan() error {
	if c.Scan.Workers < 0 {
		return errors.New("scan.workers must be >= 0")
	}
	for _, pattern := range append(append([]string{}, c.Scan.Include...), c.Scan.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("scan: invalid glob pattern %q", pattern)
		}
	}
	return nil
}

func (c *Config) validateFingerprint() error {
	return ensurePositiveMap(map[string]int{
		"fingerprint.hash_pages": c.Fingerprint.HashPages,
		"fingerprint.dpi":        c.Fingerprint.DPI,
		"fingerprint.hash_grid":  c.Fingerprint.HashGrid,
		"fingerprint.image_grid": c.Fingerprint.ImageGrid,
	})
}

func (c *Config) validateMatching() error {
	// Written as negated ranges so NaN fails.
	if !inUnitRange(c.Matching.TextThreshold) {
		return errors.New("matching.text_threshold must be between 0 and 1")
	}
	if !inUnitRange(c.Matching.VisualThreshold) {
		return errors.New("matching.visual_threshold must be between 0 and 1")
	}
	if !(c.Matching.ImageDecay > 0) || math.IsInf(c.Matching.ImageDecay, 1) {
		return errors.New("matching.image_decay must be a positive finite number")
	}
	for _, kind := range c.Matching.Strategy {
		switch kind {
		case "text", "hash", "image":
		default:
			return fmt.Errorf("matching.strategy: unknown signature kind %q (want text, hash, or image)", kind)
		}
	}
	return nil
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
