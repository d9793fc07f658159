package cache

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"unflatten/internal/fingerprint"
)

const testSettings = "v1;test"

func sampleRecords(root string) []fingerprint.Record {
	return []fingerprint.Record{
		{
			RelPath:   "a/one.pdf",
			AbsPath:   filepath.Join(root, "a", "one.pdf"),
			PageCount: 3,
			ModTime:   100,
			Signatures: fingerprint.Signatures{
				fingerprint.KindText: fingerprint.TextSignature{Text: "hello world"},
			},
		},
		{
			RelPath:    "two.pdf",
			AbsPath:    filepath.Join(root, "two.pdf"),
			PageCount:  fingerprint.UnknownPages,
			ModTime:    200,
			Signatures: fingerprint.Signatures{},
		},
	}
}

func TestSaveAndLoad(t *testing.T) {
	root := t.TempDir()
	c := New(filepath.Join(t.TempDir(), "cache"), nil)
	records := sampleRecords(root)

	if err := c.Save(root, testSettings, records); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	snap := c.Load(root, testSettings)
	if snap.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", snap.Len())
	}
	if snap.Timestamp().IsZero() {
		t.Fatal("expected timestamp to be set")
	}
	got, ok := snap.Lookup("a/one.pdf", 100)
	if !ok {
		t.Fatal("expected fresh record")
	}
	if !reflect.DeepEqual(got, records[0]) {
		t.Fatalf("record mismatch:\n%#v\n%#v", got, records[0])
	}
}

func TestLookupRejectsChangedModTime(t *testing.T) {
	root := t.TempDir()
	c := New(t.TempDir(), nil)
	if err := c.Save(root, testSettings, sampleRecords(root)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	snap := c.Load(root, testSettings)
	if _, ok := snap.Lookup("a/one.pdf", 101); ok {
		t.Fatal("stale record should not be returned")
	}
	if _, ok := snap.Lookup("missing.pdf", 100); ok {
		t.Fatal("unknown path should not be returned")
	}
}

func TestSaveReplacesPreviousTable(t *testing.T) {
	root := t.TempDir()
	c := New(t.TempDir(), nil)
	records := sampleRecords(root)
	if err := c.Save(root, testSettings, records); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := c.Save(root, testSettings, records[1:]); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	snap := c.Load(root, testSettings)
	if snap.Len() != 1 {
		t.Fatalf("expected deleted entry to be dropped, got %d records", snap.Len())
	}
	if _, ok := snap.Lookup("a/one.pdf", 100); ok {
		t.Fatal("entry removed from the table should not linger")
	}
}

func TestLoadSettingsMismatchIsEmpty(t *testing.T) {
	root := t.TempDir()
	c := New(t.TempDir(), nil)
	if err := c.Save(root, testSettings, sampleRecords(root)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if snap := c.Load(root, "v1;other"); snap.Len() != 0 {
		t.Fatalf("expected empty snapshot, got %d", snap.Len())
	}
}

func TestLoadCorruptFilesAreEmpty(t *testing.T) {
	cases := map[string]string{
		"invalid json":      "{not json",
		"wrong top level":   `["a", "b"]`,
		"missing metadata":  `{"timestamp":"2024-01-01T00:00:00Z"}`,
		"missing timestamp": `{"metadata":{}}`,
		"bad signature":     `{"timestamp":"2024-01-01T00:00:00Z","metadata":{"a.pdf":{"relative_path":"a.pdf","signatures":{"audio":{}}}}}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			c := New(t.TempDir(), nil)
			path, err := c.Path(root)
			if err != nil {
				t.Fatalf("Path failed: %v", err)
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if snap := c.Load(root, ""); snap.Len() != 0 {
				t.Fatalf("expected empty snapshot, got %d", snap.Len())
			}
			// A fresh save recovers the file.
			if err := c.Save(root, "", sampleRecords(root)); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if snap := c.Load(root, ""); snap.Len() != 2 {
				t.Fatalf("expected 2 records after save, got %d", snap.Len())
			}
		})
	}
}

func TestDisabledCache(t *testing.T) {
	c := New("", nil)
	if err := c.Save(t.TempDir(), testSettings, sampleRecords("/x")); err != nil {
		t.Fatalf("Save on disabled cache failed: %v", err)
	}
	if snap := c.Load(t.TempDir(), testSettings); snap.Len() != 0 {
		t.Fatal("disabled cache should load empty")
	}
	infos, err := c.List()
	if err != nil || len(infos) != 0 {
		t.Fatalf("List on disabled cache = %v, %v", infos, err)
	}
}

func TestKeyIsStableAndDistinct(t *testing.T) {
	a, err := Key("/srv/trees/original")
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	again, _ := Key("/srv/trees/original/")
	other, _ := Key("/srv/trees/flattened")
	if a != again {
		t.Fatalf("expected stable key, got %q and %q", a, again)
	}
	if a == other {
		t.Fatal("expected distinct keys for distinct roots")
	}
	if len(a) != keyLength {
		t.Fatalf("expected %d characters, got %d", keyLength, len(a))
	}
}

func TestListRemoveClear(t *testing.T) {
	c := New(t.TempDir(), nil)
	rootA, rootB := t.TempDir(), t.TempDir()
	if err := c.Save(rootA, testSettings, sampleRecords(rootA)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := c.Save(rootB, testSettings, sampleRecords(rootB)[:1]); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	infos, err := c.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 cache files, got %d", len(infos))
	}
	roots := map[string]int{}
	for _, info := range infos {
		roots[info.Root] = info.Entries
		if info.Size == 0 {
			t.Fatalf("expected size for %s", info.Path)
		}
	}
	if roots[rootA] != 2 || roots[rootB] != 1 {
		t.Fatalf("unexpected entries %v", roots)
	}

	if err := c.Remove(rootA); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := c.Remove(rootA); err == nil {
		t.Fatal("expected error removing a missing cache")
	}

	removed, err := c.Clear()
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if infos, _ := c.List(); len(infos) != 0 {
		t.Fatalf("expected empty cache after Clear, got %d", len(infos))
	}
}
