package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrUnavailable is returned when no OCR engine can run.
var ErrUnavailable = errors.New("ocr engine unavailable")

// Engine recognizes text in a PNG-encoded page image.
type Engine interface {
	Recognize(ctx context.Context, png []byte) (string, error)
}

// Options configures engine construction.
type Options struct {
	// Binary is the tesseract executable used by the CLI engine.
	Binary   string
	Language string
}

// TesseractCLI runs the tesseract executable once per image.
type TesseractCLI struct {
	Binary   string
	Language string
}

// Recognize writes png to a temporary file and reads tesseract's stdout.
func (e TesseractCLI) Recognize(ctx context.Context, png []byte) (string, error) {
	binary := strings.TrimSpace(e.Binary)
	if binary == "" {
		return "", ErrUnavailable
	}
	if len(png) == 0 {
		return "", errors.New("ocr: empty image")
	}

	tmpDir, err := os.MkdirTemp("", "unflatten-ocr-")
	if err != nil {
		return "", fmt.Errorf("ocr: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	input := filepath.Join(tmpDir, "page.png")
	if err := os.WriteFile(input, png, 0o600); err != nil {
		return "", fmt.Errorf("ocr: write image: %w", err)
	}

	args := []string{input, "stdout"}
	if lang := strings.TrimSpace(e.Language); lang != "" {
		args = append(args, "-l", lang)
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("ocr: tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return string(output), nil
}
