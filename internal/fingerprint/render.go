package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrRendererUnavailable is returned when no renderer is configured.
var ErrRendererUnavailable = errors.New("page renderer unavailable")

// Renderer rasterizes a single 1-based page of a PDF.
type Renderer interface {
	Render(ctx context.Context, path string, page int) (image.Image, error)
}

// PopplerRenderer shells out to pdftoppm.
type PopplerRenderer struct {
	Binary string
	DPI    int
	// HideAnnotations renders the page without annotation appearance streams,
	// so highlights and notes do not alter the raster.
	HideAnnotations bool
}

// Render writes the page as a grayscale PNG into a temporary directory and decodes it.
func (r PopplerRenderer) Render(ctx context.Context, path string, page int) (image.Image, error) {
	binary := strings.TrimSpace(r.Binary)
	if binary == "" {
		return nil, ErrRendererUnavailable
	}
	if page < 1 {
		return nil, fmt.Errorf("render: invalid page %d", page)
	}

	tmpDir, err := os.MkdirTemp("", "unflatten-render-")
	if err != nil {
		return nil, fmt.Errorf("render: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	pageArg := strconv.Itoa(page)
	args := []string{"-f", pageArg, "-l", pageArg, "-r", strconv.Itoa(r.DPI), "-gray", "-png", "-singlefile"}
	if r.HideAnnotations {
		args = append(args, "-hide-annotations")
	}
	args = append(args, path, prefix)

	cmd := exec.CommandContext(ctx, binary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("render page %d: %w: %s", page, err, strings.TrimSpace(string(output)))
	}

	file, err := os.Open(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode page %d: %w", page, err)
	}
	return img, nil
}
