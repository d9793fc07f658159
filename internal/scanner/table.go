package scanner

import (
	"sort"
	"time"

	"unflatten/internal/fingerprint"
)

// Stats summarizes one scan or enrichment pass.
type Stats struct {
	Files     int
	CacheHits int
	Extracted int
	Failed    int
	Duration  time.Duration
}

// FilesPerSecond returns the throughput of the pass.
func (s Stats) FilesPerSecond() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Files) / s.Duration.Seconds()
}

// Table is the fingerprint table of one tree, ordered by relative path.
// It is never mutated after construction.
type Table struct {
	root    string
	records []fingerprint.Record
	index   map[string]int
	stats   Stats

	// persist holds the version of each record that is safe to cache.
	// Records whose extraction failed are absent.
	persist map[string]fingerprint.Record
}

// NewTable builds a table from records, sorting a copy by relative path.
func NewTable(root string, records []fingerprint.Record) *Table {
	sorted := append([]fingerprint.Record(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RelPath < sorted[j].RelPath })

	index := make(map[string]int, len(sorted))
	for i, rec := range sorted {
		index[rec.RelPath] = i
	}
	return &Table{root: root, records: sorted, index: index}
}

// Root returns the scanned tree root.
func (t *Table) Root() string { return t.root }

// Len returns the number of records.
func (t *Table) Len() int { return len(t.records) }

// Records returns the records in relative path order. Callers must not
// modify the returned slice.
func (t *Table) Records() []fingerprint.Record { return t.records }

// Get returns the record for relPath.
func (t *Table) Get(relPath string) (fingerprint.Record, bool) {
	i, ok := t.index[relPath]
	if !ok {
		return fingerprint.Record{}, false
	}
	return t.records[i], true
}

// Paths returns the relative paths in table order.
func (t *Table) Paths() []string {
	paths := make([]string, len(t.records))
	for i, rec := range t.records {
		paths[i] = rec.RelPath
	}
	return paths
}

// Stats returns the statistics of the pass that produced the table.
func (t *Table) Stats() Stats { return t.stats }

func (t *Table) persistable() []fingerprint.Record {
	out := make([]fingerprint.Record, 0, len(t.persist))
	for _, rec := range t.records {
		if saved, ok := t.persist[rec.RelPath]; ok {
			out = append(out, saved)
		}
	}
	return out
}
