package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"unflatten/internal/mapping"
	"unflatten/internal/matcher"
	"unflatten/internal/restore"
)

// Document is the JSON report of a run for downstream review tooling.
type Document struct {
	Run        Run                 `json:"run"`
	Result     matcher.Result      `json:"result"`
	Plan       []restore.Action    `json:"restore_plan,omitempty"`
	Evaluation *mapping.Evaluation `json:"evaluation,omitempty"`
}

// Write encodes doc as indented JSON.
func Write(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// WriteFile writes doc to path atomically.
func WriteFile(path string, doc Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := Write(f, doc); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}
