//go:build gosseract

package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// ExternalBinary reports whether recognition shells out to the tesseract binary.
const ExternalBinary = false

// New returns the in-process libtesseract engine.
func New(opts Options) Engine {
	return Gosseract{Language: opts.Language}
}

// Gosseract recognizes text through libtesseract bindings. A client is not
// safe for concurrent use, so each call creates its own.
type Gosseract struct {
	Language string
}

func (e Gosseract) Recognize(ctx context.Context, png []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client := gosseract.NewClient()
	defer client.Close()

	if e.Language != "" {
		if err := client.SetLanguage(e.Language); err != nil {
			return "", fmt.Errorf("ocr: set language: %w", err)
		}
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("ocr: load image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: recognize: %w", err)
	}
	return text, nil
}
