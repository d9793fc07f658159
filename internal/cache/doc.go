// Package cache persists fingerprint tables per scanned tree.
//
// Each tree gets one JSON file named after a digest of its absolute root,
// holding the records keyed by relative path, the extraction settings, and
// the write time. A record is reused only while the file's modification time
// is unchanged. The cache is advisory: unreadable or mismatched files are
// treated as empty and scans produce the same table without it.
package cache
