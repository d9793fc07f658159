package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"unflatten/internal/fingerprint"
	"unflatten/internal/logging"
)

// filter decides which walked files are queued for extraction.
type filter struct {
	junk    map[string]struct{}
	include []string
	exclude []string
	sniff   bool
}

func newFilter(opts Options) filter {
	junk := make(map[string]struct{}, len(opts.JunkNames))
	for _, name := range opts.JunkNames {
		junk[name] = struct{}{}
	}
	return filter{junk: junk, include: opts.Include, exclude: opts.Exclude, sniff: opts.SniffContent}
}

func (f filter) isJunk(name string) bool {
	_, ok := f.junk[name]
	return ok
}

// matchesGlobs applies include then exclude patterns to a slash-separated path.
func (f filter) matchesGlobs(rel string) bool {
	if len(f.include) > 0 {
		included := false
		for _, pattern := range f.include {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}
	for _, pattern := range f.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	return true
}

func (f filter) supported(abs, name string) bool {
	if strings.EqualFold(path.Ext(name), ".pdf") {
		return true
	}
	if !f.sniff {
		return false
	}
	ok, err := fingerprint.IsPDF(abs)
	return err == nil && ok
}

// walk lists the supported regular files under root as sorted slash paths.
// Unreadable subdirectories are logged and skipped.
func walk(root string, f filter, logger *slog.Logger) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			logging.WarnWithContext(logger, "skipping unreadable entry", "scan_walk_failed",
				logging.String(logging.FieldPath, p),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check directory permissions"),
				logging.String(logging.FieldImpact, "files below this entry are not scanned"))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if f.isJunk(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", p, err)
		}
		rel = filepath.ToSlash(rel)
		if !f.matchesGlobs(rel) || !f.supported(p, d.Name()) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("scan root %q does not exist", root)
		}
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}
