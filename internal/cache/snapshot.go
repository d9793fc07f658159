package cache

import (
	"time"

	"unflatten/internal/fingerprint"
)

// Snapshot is a read-only view of one tree's cached records. The zero value
// is an empty snapshot.
type Snapshot struct {
	records   map[string]fingerprint.Record
	timestamp time.Time
}

// Lookup returns the cached record for relPath if its stored modification
// time equals modTime.
func (s Snapshot) Lookup(relPath string, modTime int64) (fingerprint.Record, bool) {
	rec, ok := s.records[relPath]
	if !ok || rec.ModTime != modTime {
		return fingerprint.Record{}, false
	}
	return rec.Clone(), true
}

// Len returns the number of cached records.
func (s Snapshot) Len() int {
	return len(s.records)
}

// Timestamp returns when the snapshot was written.
func (s Snapshot) Timestamp() time.Time {
	return s.timestamp
}
