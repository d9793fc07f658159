// Package pipeline wires the scanner, matcher, restorer, and run history into
// a single reconciliation run.
//
// A run scans the flattened and original trees concurrently, classifies every
// flattened file, optionally copies confirmed matches into an output tree, and
// records the outcome in the run database. With lazy signatures enabled the
// first scan reads page counts only; content signatures are extracted later
// for the files whose page-count bucket holds more than one candidate.
package pipeline
