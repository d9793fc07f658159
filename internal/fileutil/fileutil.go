package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyOptions controls Copy.
type CopyOptions struct {
	// Verify re-reads the written copy and compares its SHA-256 with the
	// source digest taken while copying.
	Verify bool
	// PreserveTimes sets the copy's access and modification times to the
	// source modification time.
	PreserveTimes bool
}

// Copy replaces dst with the contents of src. The bytes land in a hidden
// temporary file next to dst which is renamed over dst only once complete, so
// an interrupted copy never leaves a truncated dst behind.
func Copy(src, dst string, opts CopyOptions) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".partial-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	digest := sha256.New()
	n, err := io.Copy(tmp, io.TeeReader(in, digest))
	if err != nil {
		return fmt.Errorf("copy data: %w", err)
	}
	if n != info.Size() {
		return fmt.Errorf("short copy: wrote %d of %d bytes", n, info.Size())
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if opts.Verify {
		got, err := Digest(tmp.Name())
		if err != nil {
			return fmt.Errorf("verify copy: %w", err)
		}
		if !bytes.Equal(got, digest.Sum(nil)) {
			return fmt.Errorf("verify copy: checksum mismatch")
		}
	}
	if err := os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		return fmt.Errorf("set mode: %w", err)
	}
	if opts.PreserveTimes {
		if err := os.Chtimes(tmp.Name(), info.ModTime(), info.ModTime()); err != nil {
			return fmt.Errorf("set times: %w", err)
		}
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	committed = true
	return nil
}

// Digest returns the SHA-256 of the file at path.
func Digest(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
