// Package scanner builds the fingerprint table of a directory tree.
//
// Scan walks the tree, keeps regular PDF files that pass the junk name and
// glob filters, and extracts them on a bounded worker pool. Cached records
// with an unchanged modification time are reused, and the cache is rewritten
// in full once the pass completes. Results are collected into per-file slots
// and sorted by relative path, so table order never depends on scheduling.
//
// Enrich adds signature kinds to a subset of records after the fact. The
// pipeline uses it to compute content signatures only for files whose page
// count alone does not settle the match.
package scanner
