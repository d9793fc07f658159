package restore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"

	"unflatten/internal/fileutil"
	"unflatten/internal/logging"
	"unflatten/internal/matcher"
)

// ErrLocked is returned when another restore holds the output root.
var ErrLocked = errors.New("output root is locked by another restore")

// Skip reasons.
const (
	ReasonEscapesRoot = "escapes_output_root"
	ReasonDuplicate   = "duplicate_destination"
)

// Options controls copying.
type Options struct {
	Verify        bool
	PreserveTimes bool
	// LockDir holds per-output-root lock files. Empty disables locking.
	LockDir string
}

// Action is one planned copy.
type Action struct {
	FlattenedPath string `json:"flattened_path"`
	OriginalPath  string `json:"original_path"`
	Source        string `json:"source"`
	Destination   string `json:"destination"`
}

// Skipped is a match that will not be copied.
type Skipped struct {
	Action
	Reason string `json:"reason"`
}

// Summary reports a restore. Copied counts only files actually written.
type Summary struct {
	Planned int `json:"planned"`
	Copied  int `json:"copied"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Plan maps confirmed matches to copy actions under outputRoot. Matches whose
// destination would leave outputRoot, or repeat an earlier destination, are
// skipped; the earliest match by flattened path keeps a contested destination.
func Plan(matches []matcher.MatchResult, flattenedRoot, outputRoot string) ([]Action, []Skipped, error) {
	if strings.TrimSpace(outputRoot) == "" {
		return nil, nil, errors.New("output root is required")
	}
	root, err := filepath.Abs(outputRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve output root: %w", err)
	}

	ordered := append([]matcher.MatchResult(nil), matches...)
	sortMatches(ordered)

	var actions []Action
	var skipped []Skipped
	taken := make(map[string]string, len(ordered))
	for _, m := range ordered {
		action := Action{
			FlattenedPath: m.FlattenedPath,
			OriginalPath:  m.OriginalPath,
			Source:        filepath.Join(flattenedRoot, filepath.FromSlash(m.FlattenedPath)),
			Destination:   filepath.Join(root, filepath.FromSlash(m.OriginalPath)),
		}
		if !within(root, action.Destination) || filepath.IsAbs(filepath.FromSlash(m.OriginalPath)) {
			skipped = append(skipped, Skipped{Action: action, Reason: ReasonEscapesRoot})
			continue
		}
		if _, dup := taken[action.Destination]; dup {
			skipped = append(skipped, Skipped{Action: action, Reason: ReasonDuplicate})
			continue
		}
		taken[action.Destination] = m.FlattenedPath
		actions = append(actions, action)
	}
	return actions, skipped, nil
}

func sortMatches(matches []matcher.MatchResult) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].FlattenedPath < matches[j].FlattenedPath
	})
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Restorer copies matched files into an output tree.
type Restorer struct {
	logger *slog.Logger
	opts   Options
}

// New constructs a Restorer.
func New(logger *slog.Logger, opts Options) *Restorer {
	return &Restorer{
		logger: logging.NewComponentLogger(logger, "restore"),
		opts:   opts,
	}
}

// Restore copies every planned match from flattenedRoot to outputRoot.
// Per-file failures are logged and counted; the returned error covers only
// conditions that stop the whole restore (lock, output root, cancellation).
func (r *Restorer) Restore(ctx context.Context, matches []matcher.MatchResult, flattenedRoot, outputRoot string) (Summary, error) {
	actions, skipped, err := Plan(matches, flattenedRoot, outputRoot)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Planned: len(actions), Skipped: len(skipped)}
	for _, s := range skipped {
		logging.WarnWithContext(r.logger, "skipping restore of match", "restore_skipped",
			logging.String(logging.FieldPath, s.FlattenedPath),
			logging.String("original_path", s.OriginalPath),
			logging.String("reason", s.Reason),
			logging.String(logging.FieldErrorHint, "review the match in the run report"),
			logging.String(logging.FieldImpact, "file is not copied"))
	}

	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return summary, fmt.Errorf("create output root: %w", err)
	}
	unlock, err := r.lock(outputRoot)
	if err != nil {
		return summary, err
	}
	defer unlock()

	copyOpts := fileutil.CopyOptions{Verify: r.opts.Verify, PreserveTimes: r.opts.PreserveTimes}
	for _, action := range actions {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := copyOne(action, copyOpts); err != nil {
			summary.Failed++
			logging.WarnWithContext(r.logger, "failed to restore file", "restore_copy_failed",
				logging.String(logging.FieldPath, action.FlattenedPath),
				logging.String("destination", action.Destination),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions and free space under the output root"),
				logging.String(logging.FieldImpact, "file is missing from the restored tree"))
			continue
		}
		summary.Copied++
		r.logger.Debug("restored file",
			logging.String(logging.FieldPath, action.FlattenedPath),
			logging.String("destination", action.Destination))
	}

	r.logger.Info("restore complete",
		logging.Int("planned", summary.Planned),
		logging.Int("copied", summary.Copied),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped))
	return summary, nil
}

func copyOne(action Action, opts fileutil.CopyOptions) error {
	if err := os.MkdirAll(filepath.Dir(action.Destination), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	return fileutil.Copy(action.Source, action.Destination, opts)
}

// lock takes an exclusive lock keyed by the output root. The lock file lives
// outside the output tree.
func (r *Restorer) lock(outputRoot string) (func(), error) {
	if r.opts.LockDir == "" {
		return func() {}, nil
	}
	abs, err := filepath.Abs(outputRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve output root: %w", err)
	}
	if err := os.MkdirAll(r.opts.LockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	sum := sha256.Sum256([]byte(filepath.Clean(abs)))
	lockPath := filepath.Join(r.opts.LockDir, hex.EncodeToString(sum[:8])+".lock")

	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, abs)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("failed to release restore lock", logging.Error(err))
		}
	}, nil
}
