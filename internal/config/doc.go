// Package config loads, normalizes, and validates unflatten configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts and XDG base directories), reads TOML files, and honours the
// UNFLATTEN_WORKERS environment override. The Config type centralizes every
// knob the scanner, matcher, and restorer need: fingerprint constants are kept
// here so two runs with the same file produce byte-identical signatures.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
