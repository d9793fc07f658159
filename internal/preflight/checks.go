package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"unflatten/internal/config"
	"unflatten/internal/deps"
	"unflatten/internal/fingerprint"
	"unflatten/internal/ocr"
)

// CheckDirectoryReadable verifies that the directory exists and can be listed.
func CheckDirectoryReadable(name, path string) Result {
	if res, ok := checkIsDir(name, path); !ok {
		return res
	}
	if err := unix.Access(path, unix.R_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read ok)", path)}
}

// CheckDirectoryWritable verifies that files can be created under path. A
// missing directory passes when its nearest existing ancestor is writable,
// since restoration creates it.
func CheckDirectoryWritable(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "path not configured"}
	}
	target := filepath.Clean(path)
	for {
		info, err := os.Stat(target)
		if err == nil {
			if !info.IsDir() {
				return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s is not a directory)", path, target)}
			}
			break
		}
		if !os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
		}
		parent := filepath.Dir(target)
		if parent == target {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: no existing ancestor)", path)}
		}
		target = parent
	}
	if err := unix.Access(target, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s not writable: %v)", path, target, err)}
	}
	if target != filepath.Clean(path) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created under %s)", path, target)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (write ok)", path)}
}

// CheckOutputRoot rejects an output directory equal to or nested inside
// either input tree.
func CheckOutputRoot(output, flattened, original string) Result {
	const name = "Output root"
	out, err := filepath.Abs(output)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", output, err)}
	}
	for _, input := range []struct{ label, path string }{
		{"flattened tree", flattened},
		{"original tree", original},
	} {
		in, err := filepath.Abs(input.path)
		if err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", input.path, err)}
		}
		if isWithin(out, in) {
			return Result{Name: name, Detail: fmt.Sprintf("%s is inside the %s %s", output, input.label, input.path)}
		}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (separate from inputs)", output)}
}

// CheckSystemDeps evaluates the external binaries the configuration needs.
// pdftoppm is required when a visual signature is in the strategy or OCR is
// enabled; pdfinfo only backs up the built-in page counter.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	kinds, _ := fingerprint.ParseKinds(cfg.Matching.Strategy)
	visual := false
	for _, kind := range kinds {
		if kind.Visual() {
			visual = true
		}
	}
	fp := cfg.Fingerprint
	requirements := []deps.Requirement{
		{
			Name:        "pdftoppm",
			Command:     fp.PdftoppmBinary,
			Description: "Renders pages for perceptual hash, image, and OCR signatures",
			Optional:    !visual && !fp.OCREnabled,
		},
		{
			Name:        "pdfinfo",
			Command:     fp.PdfinfoBinary,
			Description: "Page count fallback for PDFs the built-in parser rejects",
			Optional:    true,
		},
	}
	if ocr.ExternalBinary {
		requirements = append(requirements, deps.Requirement{
			Name:        "tesseract",
			Command:     fp.TesseractBinary,
			Description: "OCR for pages without a text layer",
			Optional:    !fp.OCREnabled,
		})
	}
	return deps.CheckBinaries(requirements)
}

func checkIsDir(name, path string) (Result, bool) {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "path not configured"}, false
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}, false
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}, false
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}, false
	}
	return Result{}, true
}

func isWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
