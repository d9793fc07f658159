package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"unflatten/internal/fingerprint"
	"unflatten/internal/logging"
)

// keyLength is the number of hex characters of the root digest used in file names.
const keyLength = 16

// ErrShape reports a cache file whose top-level layout is not recognized.
var ErrShape = errors.New("unexpected cache file shape")

// document is the on-disk layout of one tree's cache file.
type document struct {
	Root      string                        `json:"root"`
	Settings  string                        `json:"settings"`
	Timestamp time.Time                     `json:"timestamp"`
	Metadata  map[string]fingerprint.Record `json:"metadata"`
}

// Info describes one cache file for listing.
type Info struct {
	Root      string
	Path      string
	Settings  string
	Timestamp time.Time
	Entries   int
	Size      int64
}

// Cache stores per-tree fingerprint tables under a directory outside the
// scanned trees. An empty dir disables it: loads return empty snapshots and
// saves are no-ops.
type Cache struct {
	dir    string
	logger *slog.Logger
}

// New creates a cache rooted at dir.
func New(dir string, logger *slog.Logger) *Cache {
	return &Cache{
		dir:    strings.TrimSpace(dir),
		logger: logging.NewComponentLogger(logger, "cache"),
	}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Key returns the stable file key for a tree root.
func Key(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %q: %w", root, err)
	}
	sum := sha256.Sum256([]byte(filepath.Clean(abs)))
	return hex.EncodeToString(sum[:])[:keyLength], nil
}

// Path returns the cache file location for root.
func (c *Cache) Path(root string) (string, error) {
	if c.dir == "" {
		return "", errors.New("cache directory not configured")
	}
	key, err := Key(root)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.dir, key+".json"), nil
}

// Load reads the cached table for root. Any failure, including a settings
// mismatch, yields an empty snapshot; the scan then runs cold.
func (c *Cache) Load(root, settings string) Snapshot {
	if c.dir == "" {
		return Snapshot{}
	}
	path, err := c.Path(root)
	if err != nil {
		c.warnLoad(root, err)
		return Snapshot{}
	}
	doc, err := readDocument(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.warnLoad(root, err)
		}
		return Snapshot{}
	}

	abs, _ := filepath.Abs(root)
	if doc.Root != "" && doc.Root != filepath.Clean(abs) {
		c.warnLoad(root, fmt.Errorf("cache file belongs to %q", doc.Root))
		return Snapshot{}
	}
	if doc.Settings != settings {
		c.logger.Info("cache settings changed; starting cold",
			logging.String("root", root),
			logging.String("cached_settings", doc.Settings),
			logging.String("settings", settings))
		return Snapshot{}
	}

	records := make(map[string]fingerprint.Record, len(doc.Metadata))
	for rel, rec := range doc.Metadata {
		if rec.RelPath != rel {
			continue
		}
		records[rel] = rec
	}
	c.logger.Debug("loaded metadata cache",
		logging.String("root", root),
		logging.Int("entry_count", len(records)),
		logging.String("path", path))
	return Snapshot{records: records, timestamp: doc.Timestamp}
}

func (c *Cache) warnLoad(root string, err error) {
	logging.WarnWithContext(c.logger, "failed to load metadata cache", "cache_load_failed",
		logging.String("root", root),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "run `unflatten cache clear` if this repeats"),
		logging.String(logging.FieldImpact, "every file in the tree is extracted again"))
}

// Save replaces the cached table for root with records.
func (c *Cache) Save(root, settings string, records []fingerprint.Record) error {
	if c.dir == "" {
		return nil
	}
	path, err := c.Path(root)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve root %q: %w", root, err)
	}

	doc := document{
		Root:      filepath.Clean(abs),
		Settings:  settings,
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]fingerprint.Record, len(records)),
	}
	for _, rec := range records {
		doc.Metadata[rec.RelPath] = rec
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock cache file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	c.logger.Debug("saved metadata cache",
		logging.String("root", root),
		logging.Int("entry_count", len(doc.Metadata)),
		logging.String("path", path))
	return nil
}

// Remove deletes the cache file for root.
func (c *Cache) Remove(root string) error {
	path, err := c.Path(root)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("no cache for %q", root)
		}
		return fmt.Errorf("remove cache file: %w", err)
	}
	_ = os.Remove(path + ".lock")
	return nil
}

// Clear deletes every cache file and returns how many were removed.
func (c *Cache) Clear() (int, error) {
	paths, err := c.files()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove cache file: %w", err)
		}
		_ = os.Remove(path + ".lock")
		removed++
	}
	c.logger.Debug("cleared metadata cache", logging.Int("removed", removed))
	return removed, nil
}

// List describes every readable cache file, newest first. Unreadable files
// are reported with only Path and Size set.
func (c *Cache) List() ([]Info, error) {
	paths, err := c.files()
	if err != nil {
		return nil, err
	}
	infos := make([]Info, 0, len(paths))
	for _, path := range paths {
		info := Info{Path: path}
		if stat, err := os.Stat(path); err == nil {
			info.Size = stat.Size()
		}
		if doc, err := readDocument(path); err == nil {
			info.Root = doc.Root
			info.Settings = doc.Settings
			info.Timestamp = doc.Timestamp
			info.Entries = len(doc.Metadata)
		}
		infos = append(infos, info)
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].Timestamp.After(infos[j].Timestamp)
	})
	return infos, nil
}

func (c *Cache) files() ([]string, error) {
	if c.dir == "" {
		return nil, nil
	}
	paths, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list cache directory: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

func readDocument(path string) (document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return document{}, err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("parse cache file: %w", err)
	}
	if doc.Metadata == nil || doc.Timestamp.IsZero() {
		return document{}, ErrShape
	}
	return doc, nil
}
