// Package restore rebuilds the original layout from confirmed matches.
//
// Each match copies the flattened file to its original relative path under
// the output root, creating parent directories as needed. Copies overwrite
// through a rename, so repeating a restore yields the same tree. Nothing is
// written outside the output root; ambiguous and unmatched files are never
// copied.
package restore
