// Package progress reports scan and fingerprinting progress, either as a
// terminal progress bar or as sampled log lines.
package progress
