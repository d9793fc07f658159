//go:build !gosseract

package ocr

// ExternalBinary reports whether recognition shells out to the tesseract binary.
const ExternalBinary = true

// New returns the tesseract CLI engine. Build with -tags gosseract to link
// libtesseract in-process instead.
func New(opts Options) Engine {
	return TesseractCLI{Binary: opts.Binary, Language: opts.Language}
}
