package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"unflatten/internal/cache"
	"unflatten/internal/fingerprint"
	"unflatten/internal/logging"
	"unflatten/internal/progress"
)

// Extractor produces and extends fingerprint records.
type Extractor interface {
	Extract(ctx context.Context, root, relPath string, kinds []fingerprint.Kind) (fingerprint.Record, error)
	Enrich(ctx context.Context, rec fingerprint.Record, kinds []fingerprint.Kind) (fingerprint.Record, error)
	Settings() string
}

// Options controls one scan.
type Options struct {
	// Tree labels log lines, e.g. "original" or "flattened".
	Tree     string
	Workers  int
	Kinds    []fingerprint.Kind
	UseCache bool

	Include      []string
	Exclude      []string
	JunkNames    []string
	SniffContent bool

	Progress progress.Reporter
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

func (o Options) reporter() progress.Reporter {
	if o.Progress == nil {
		return progress.Nop()
	}
	return o.Progress
}

// Scanner walks trees and builds fingerprint tables.
type Scanner struct {
	extractor Extractor
	cache     *cache.Cache
	logger    *slog.Logger
}

// New constructs a Scanner. A nil cache disables caching regardless of options.
func New(extractor Extractor, c *cache.Cache, logger *slog.Logger) *Scanner {
	return &Scanner{
		extractor: extractor,
		cache:     c,
		logger:    logging.NewComponentLogger(logger, "scanner"),
	}
}

// Scan walks root and returns its fingerprint table. Per-file failures are
// logged and leave a degraded record in the table; only a missing or
// unreadable root, or cancellation, fail the scan.
func (s *Scanner) Scan(ctx context.Context, root string, opts Options) (*Table, error) {
	logger := s.logger.With(logging.String(logging.FieldTree, opts.Tree))
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %q is not a directory", root)
	}

	start := time.Now()
	files, err := walk(root, newFilter(opts), logger)
	if err != nil {
		return nil, err
	}

	useCache := opts.UseCache && s.cache != nil
	var snapshot cache.Snapshot
	if useCache {
		snapshot = s.cache.Load(root, s.extractor.Settings())
	}

	reporter := opts.reporter()
	reporter.Grow(len(files))

	records := make([]fingerprint.Record, len(files))
	keep := make([]*fingerprint.Record, len(files))
	var hits, failed atomic.Int64

	p := pool.New().WithMaxGoroutines(opts.workers()).WithContext(ctx)
	for i, rel := range files {
		p.Go(func(ctx context.Context) error {
			defer reporter.Advance(1)
			if err := ctx.Err(); err != nil {
				return err
			}
			res := s.scanFile(ctx, root, rel, snapshot, opts.Kinds)
			records[i] = res.record
			keep[i] = res.cacheable
			if res.hit {
				hits.Add(1)
			}
			if res.err != nil {
				failed.Add(1)
				s.warnExtraction(logger, rel, res.err)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	table := NewTable(root, records)
	table.persist = make(map[string]fingerprint.Record, len(records))
	for _, rec := range keep {
		if rec != nil {
			table.persist[rec.RelPath] = *rec
		}
	}
	table.stats = Stats{
		Files:     len(files),
		CacheHits: int(hits.Load()),
		Extracted: len(files) - int(hits.Load()),
		Failed:    int(failed.Load()),
		Duration:  time.Since(start),
	}

	if useCache {
		s.save(logger, table)
	}
	s.logStats(logger, "scan complete", table.stats)
	return table, nil
}

// fileResult is the outcome of scanning one file. cacheable is the version
// of the record that may be written back to the cache, nil when none is.
type fileResult struct {
	record    fingerprint.Record
	cacheable *fingerprint.Record
	hit       bool
	err       error
}

// scanFile reuses a fresh cached record or extracts a new one. When a cached
// record cannot be enriched, the cached version stays cacheable.
func (s *Scanner) scanFile(ctx context.Context, root, rel string, snapshot cache.Snapshot, kinds []fingerprint.Kind) fileResult {
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if info, err := os.Stat(abs); err == nil {
		if cached, ok := snapshot.Lookup(rel, info.ModTime().UnixNano()); ok {
			cached.AbsPath = abs
			if len(cached.Missing(kinds)) == 0 || !cached.PagesKnown() {
				return fileResult{record: cached, cacheable: &cached, hit: true}
			}
			rec, err := s.extractor.Enrich(ctx, cached, kinds)
			if err != nil {
				return fileResult{record: rec, cacheable: &cached, hit: true, err: err}
			}
			return fileResult{record: rec, cacheable: &rec, hit: true}
		}
	}
	rec, err := s.extractor.Extract(ctx, root, rel, kinds)
	if err != nil {
		return fileResult{record: rec, err: err}
	}
	return fileResult{record: rec, cacheable: &rec}
}

// Enrich returns a new table in which the records named by relPaths carry
// every kind in opts.Kinds. The cache is rewritten when enabled.
func (s *Scanner) Enrich(ctx context.Context, table *Table, relPaths []string, opts Options) (*Table, error) {
	logger := s.logger.With(logging.String(logging.FieldTree, opts.Tree))
	start := time.Now()

	var targets []int
	for _, rel := range relPaths {
		i, ok := table.index[rel]
		if !ok {
			continue
		}
		rec := table.records[i]
		if rec.PagesKnown() && len(rec.Missing(opts.Kinds)) > 0 {
			targets = append(targets, i)
		}
	}

	records := append([]fingerprint.Record(nil), table.records...)
	persist := make(map[string]fingerprint.Record, len(table.persist))
	for rel, rec := range table.persist {
		persist[rel] = rec
	}
	if len(targets) == 0 {
		out := NewTable(table.root, records)
		out.persist = persist
		out.stats = table.stats
		return out, nil
	}

	reporter := opts.reporter()
	reporter.Grow(len(targets))

	enriched := make([]fingerprint.Record, len(targets))
	ok := make([]bool, len(targets))
	var failed atomic.Int64

	p := pool.New().WithMaxGoroutines(opts.workers()).WithContext(ctx)
	for slot, i := range targets {
		p.Go(func(ctx context.Context) error {
			defer reporter.Advance(1)
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := s.extractor.Enrich(ctx, records[i], opts.Kinds)
			enriched[slot] = rec
			if err != nil {
				failed.Add(1)
				s.warnExtraction(logger, records[i].RelPath, err)
				return nil
			}
			ok[slot] = true
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	for slot, i := range targets {
		records[i] = enriched[slot]
		if ok[slot] {
			persist[records[i].RelPath] = enriched[slot]
		}
	}

	out := NewTable(table.root, records)
	out.persist = persist
	out.stats = Stats{
		Files:     len(targets),
		Extracted: len(targets),
		Failed:    int(failed.Load()),
		Duration:  time.Since(start),
	}
	if opts.UseCache && s.cache != nil {
		s.save(logger, out)
	}
	s.logStats(logger, "signature enrichment complete", out.stats)
	return out, nil
}

func (s *Scanner) save(logger *slog.Logger, table *Table) {
	if err := s.cache.Save(table.root, s.extractor.Settings(), table.persistable()); err != nil {
		logging.WarnWithContext(logger, "failed to save metadata cache", "cache_save_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the cache directory"),
			logging.String(logging.FieldImpact, "the next run extracts every file again"))
	}
}

func (s *Scanner) warnExtraction(logger *slog.Logger, rel string, err error) {
	logging.WarnWithContext(logger, "fingerprint extraction failed", "extraction_failed",
		logging.String(logging.FieldPath, rel),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "verify the file opens in a PDF viewer"),
		logging.String(logging.FieldImpact, "file is matched on whatever signals remain"))
}

func (s *Scanner) logStats(logger *slog.Logger, msg string, stats Stats) {
	logger.Info(msg,
		logging.Int("files", stats.Files),
		logging.Int("cache_hits", stats.CacheHits),
		logging.Int("extracted", stats.Extracted),
		logging.Int("failed", stats.Failed),
		logging.Duration("duration", stats.Duration.Round(time.Millisecond)),
		logging.Float64("files_per_second", stats.FilesPerSecond()))
}
