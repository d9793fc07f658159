package fileutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCopyKeepsModeAndVerifies(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.pdf")
	dst := filepath.Join(dir, "dst.pdf")
	if err := os.WriteFile(src, []byte("%PDF-1.4 payload"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := Copy(src, dst, CopyOptions{Verify: true}); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, want 0600", info.Mode().Perm())
	}
	want, err := Digest(src)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	got, err := Digest(dst)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if string(got) != string(want) {
		t.Fatal("expected identical content")
	}
}

func TestCopyOverwritesAndPreservesTimes(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.pdf")
	dst := filepath.Join(dir, "out", "dst.pdf")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("new content"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("old content that is longer"), 0o644); err != nil {
		t.Fatal(err)
	}
	stamp := time.Date(2020, 5, 17, 8, 30, 0, 0, time.UTC)
	if err := os.Chtimes(src, stamp, stamp); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := Copy(src, dst, CopyOptions{Verify: i == 1, PreserveTimes: true}); err != nil {
			t.Fatalf("Copy #%d: %v", i+1, err)
		}
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new content" {
		t.Fatalf("content mismatch: got %q", got)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(stamp) {
		t.Fatalf("mtime = %v, want %v", info.ModTime(), stamp)
	}

	entries, err := os.ReadDir(filepath.Dir(dst))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected no leftover temp files, got %d entries", len(entries))
	}
}

func TestCopyMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := Copy(filepath.Join(dir, "missing"), filepath.Join(dir, "dst"), CopyOptions{}); err == nil {
		t.Fatal("expected error for missing source")
	}
}
