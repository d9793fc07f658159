package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"unflatten/internal/cache"
	"unflatten/internal/config"
	"unflatten/internal/fingerprint"
	"unflatten/internal/logging"
	"unflatten/internal/mapping"
	"unflatten/internal/matcher"
	"unflatten/internal/progress"
	"unflatten/internal/report"
	"unflatten/internal/restore"
	"unflatten/internal/scanner"
)

const (
	treeFlattened = "flattened"
	treeOriginal  = "original"
)

// Request names the trees of one run.
type Request struct {
	Flattened string
	Original  string
	// Output is the root of the restored tree. Without it no plan is built.
	Output string
	// Execute performs the copies; otherwise the run is a dry run.
	Execute bool
	// MappingPath optionally names a flattening mapping used to score the run.
	MappingPath string
}

// Outcome is everything a run produced.
type Outcome struct {
	Run            report.Run
	Result         matcher.Result
	Plan           []restore.Action
	Skipped        []restore.Skipped
	Evaluation     *mapping.Evaluation
	FlattenedStats scanner.Stats
	OriginalStats  scanner.Stats
}

// Document returns the JSON report form of the outcome.
func (o Outcome) Document() report.Document {
	return report.Document{
		Run:        o.Run,
		Result:     o.Result,
		Plan:       o.Plan,
		Evaluation: o.Evaluation,
	}
}

// Option customises the Pipeline.
type Option func(*Pipeline)

// WithExtractor overrides the fingerprint extractor (primarily for tests).
func WithExtractor(e scanner.Extractor) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.extractor = e
		}
	}
}

// WithProgress sets the reporter shared by both scans.
func WithProgress(r progress.Reporter) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.progress = r
		}
	}
}

// WithClock overrides the time source used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// Pipeline runs scan, match, restore, and report for a pair of trees.
type Pipeline struct {
	cfg       *config.Config
	logger    *slog.Logger
	policy    matcher.Policy
	extractor scanner.Extractor
	progress  progress.Reporter
	now       func() time.Time
}

// New constructs a Pipeline bound to cfg. The matching policy is validated
// here so a bad strategy fails before any scanning.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	policy, err := matcher.PolicyFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("matching policy: %w", err)
	}
	p := &Pipeline{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
		policy:   policy,
		progress: progress.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.extractor == nil {
		p.extractor = fingerprint.NewFromConfig(cfg)
	}
	return p, nil
}

// Run reconciles req.Flattened against req.Original. Per-file problems are
// logged and reflected in the result; the returned error covers unreadable
// roots, a bad mapping file, a held restore lock, and cancellation.
func (p *Pipeline) Run(ctx context.Context, req Request) (Outcome, error) {
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, p.logger)
	started := p.now()

	flatRoot, err := filepath.Abs(req.Flattened)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve flattened root: %w", err)
	}
	origRoot, err := filepath.Abs(req.Original)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve original root: %w", err)
	}

	var truth mapping.Mapping
	if req.MappingPath != "" {
		truth, err = mapping.Load(req.MappingPath)
		if err != nil {
			return Outcome{}, err
		}
	}

	logger.Info("run started",
		logging.String("flattened_root", flatRoot),
		logging.String("original_root", origRoot),
		logging.String("output_root", req.Output),
		logging.Bool("execute", req.Execute),
		logging.Any("strategy", p.policy.Strategy))

	sc := scanner.New(p.extractor, p.cache(logger), logger)
	flatTable, origTable, err := p.scan(ctx, sc, flatRoot, origRoot)
	if err != nil {
		return Outcome{}, err
	}

	result, err := matcher.Match(ctx, flatTable, origTable, p.policy, logger)
	if err != nil {
		return Outcome{}, err
	}
	if err := result.Check(flatTable); err != nil {
		return Outcome{}, fmt.Errorf("classification check: %w", err)
	}

	out := Outcome{
		Result:         result,
		FlattenedStats: flatTable.Stats(),
		OriginalStats:  origTable.Stats(),
	}

	run := report.Run{
		ID:              runID,
		StartedAt:       started,
		FlattenedRoot:   flatRoot,
		OriginalRoot:    origRoot,
		Executed:        req.Execute,
		Strategy:        kindNames(p.policy.Strategy),
		TextThreshold:   p.policy.TextThreshold,
		VisualThreshold: p.policy.VisualThreshold,
		StrictUnique:    p.policy.StrictUnique,
		Counts:          result.Counts(),
	}

	if req.Output != "" {
		outRoot, err := filepath.Abs(req.Output)
		if err != nil {
			return Outcome{}, fmt.Errorf("resolve output root: %w", err)
		}
		run.OutputRoot = outRoot
		out.Plan, out.Skipped, err = restore.Plan(result.Matches(), flatRoot, outRoot)
		if err != nil {
			return Outcome{}, err
		}
		if req.Execute {
			restorer := restore.New(logger, restore.Options{
				Verify:        p.cfg.Restore.VerifyCopies,
				PreserveTimes: p.cfg.Restore.PreserveTimes,
				LockDir:       p.cfg.LockDir(),
			})
			run.Restore, err = restorer.Restore(ctx, result.Matches(), flatRoot, outRoot)
			if err != nil {
				return Outcome{}, err
			}
		} else {
			run.Restore = restore.Summary{Planned: len(out.Plan), Skipped: len(out.Skipped)}
		}
	}

	if truth != nil {
		eval := mapping.Evaluate(result, truth)
		out.Evaluation = &eval
		logger.Info("mapping evaluation",
			logging.Int("correct", eval.Correct),
			logging.Int("incorrect", eval.Incorrect),
			logging.Int("unverifiable", eval.Unverifiable),
			logging.Float64("accuracy", eval.Accuracy()))
	}

	run.FinishedAt = p.now()
	out.Run = run
	p.record(ctx, logger, run, result)

	counts := run.Counts
	logger.Info("run complete",
		logging.Int("unique", counts.Unique),
		logging.Int("resolved", counts.Resolved),
		logging.Int("ambiguous", counts.Ambiguous),
		logging.Int("unmatched", counts.Unmatched),
		logging.Int("copied", run.Restore.Copied),
		logging.Duration("elapsed", run.FinishedAt.Sub(started)))
	return out, nil
}

func (p *Pipeline) cache(logger *slog.Logger) *cache.Cache {
	if !p.cfg.Scan.CacheEnabled {
		return nil
	}
	return cache.New(p.cfg.Paths.CacheDir, logger)
}

func (p *Pipeline) scanOptions(tree string, kinds []fingerprint.Kind) scanner.Options {
	s := p.cfg.Scan
	return scanner.Options{
		Tree:         tree,
		Workers:      s.Workers,
		Kinds:        kinds,
		UseCache:     s.CacheEnabled,
		Include:      s.Include,
		Exclude:      s.Exclude,
		JunkNames:    s.JunkNames,
		SniffContent: s.SniffContent,
		Progress:     p.progress,
	}
}

// scan builds both tables concurrently. With lazy signatures the first pass
// reads page counts only and content signatures are added afterwards for
// the files that share a bucket.
func (p *Pipeline) scan(ctx context.Context, sc *scanner.Scanner, flatRoot, origRoot string) (*scanner.Table, *scanner.Table, error) {
	kinds := p.policy.Strategy
	if p.cfg.Scan.LazySignatures {
		kinds = nil
	}

	p.progress.Start("Scanning")
	defer p.progress.Finish()

	var (
		flatTable, origTable *scanner.Table
		flatErr, origErr     error
		wg                   conc.WaitGroup
	)
	wg.Go(func() {
		flatTable, flatErr = sc.Scan(ctx, flatRoot, p.scanOptions(treeFlattened, kinds))
	})
	wg.Go(func() {
		origTable, origErr = sc.Scan(ctx, origRoot, p.scanOptions(treeOriginal, kinds))
	})
	wg.Wait()
	if err := errors.Join(wrapTree(treeFlattened, flatErr), wrapTree(treeOriginal, origErr)); err != nil {
		return nil, nil, err
	}
	if !p.cfg.Scan.LazySignatures {
		return flatTable, origTable, nil
	}

	flatPending, origPending := matcher.Pending(flatTable, origTable, p.policy)
	if len(flatPending) == 0 {
		return flatTable, origTable, nil
	}
	wg = conc.WaitGroup{}
	wg.Go(func() {
		flatTable, flatErr = sc.Enrich(ctx, flatTable, flatPending, p.scanOptions(treeFlattened, p.policy.Strategy))
	})
	wg.Go(func() {
		origTable, origErr = sc.Enrich(ctx, origTable, origPending, p.scanOptions(treeOriginal, p.policy.Strategy))
	})
	wg.Wait()
	if err := errors.Join(wrapTree(treeFlattened, flatErr), wrapTree(treeOriginal, origErr)); err != nil {
		return nil, nil, err
	}
	return flatTable, origTable, nil
}

// record persists the run history. Failures are logged; the run itself
// already succeeded.
func (p *Pipeline) record(ctx context.Context, logger *slog.Logger, run report.Run, result matcher.Result) {
	if !p.cfg.Report.Enabled {
		return
	}
	store, err := report.OpenFromConfig(p.cfg)
	if err != nil {
		logging.WarnWithContext(logger, "run history unavailable", "report_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the run database if its schema is outdated"),
			logging.String(logging.FieldImpact, "run is not recorded"))
		return
	}
	defer store.Close()

	if err := store.SaveRun(ctx, run, result); err != nil {
		logging.WarnWithContext(logger, "failed to record run", "report_save_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space in the data directory"),
			logging.String(logging.FieldImpact, "run is not recorded"))
		return
	}
	if removed, err := store.Prune(ctx, p.cfg.Report.KeepRuns); err != nil {
		logging.WarnWithContext(logger, "failed to prune run history", "report_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "old runs are kept"))
	} else if removed > 0 {
		logger.Debug("pruned run history", logging.Int("removed", removed))
	}
}

func wrapTree(tree string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s tree: %w", tree, err)
}

func kindNames(kinds []fingerprint.Kind) []string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return names
}
