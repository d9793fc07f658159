package testsupport

import (
	"encoding/json"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// Flatten copies every regular file under src into dst with a random
// identifier name that keeps the extension. It returns the identifier name
// to original relative path mapping.
func Flatten(t testing.TB, src, dst string) map[string]string {
	t.Helper()

	if err := os.MkdirAll(dst, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dst, err)
	}
	mapping := make(map[string]string)
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		name := uuid.NewString() + strings.ToLower(path.Ext(d.Name()))
		if err := os.WriteFile(filepath.Join(dst, name), data, 0o644); err != nil {
			return err
		}
		mapping[name] = filepath.ToSlash(rel)
		return nil
	})
	if err != nil {
		t.Fatalf("flatten %s: %v", src, err)
	}
	return mapping
}

// WriteMapping writes mapping as the flattening tool's JSON mapping file.
func WriteMapping(t testing.TB, path string, mapping map[string]string) {
	t.Helper()

	data, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		t.Fatalf("marshal mapping: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write mapping %s: %v", path, err)
	}
}

// Invert swaps keys and values of a flattening mapping.
func Invert(mapping map[string]string) map[string]string {
	out := make(map[string]string, len(mapping))
	for name, rel := range mapping {
		out[rel] = name
	}
	return out
}
