package fingerprint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"unflatten/internal/config"
	"unflatten/internal/ocr"
	"unflatten/internal/textutil"
)

// formatVersion is bumped whenever signature encoding changes.
const formatVersion = 1

// Options holds the extraction constants. Two extractors with equal options
// produce byte-identical records for byte-identical files.
type Options struct {
	HashPages        int
	DPI              int
	HashGrid         int
	ImageGrid        int
	TextLastPage     bool
	StripAnnotations bool
	OCREnabled       bool
	OCRLanguage      string
	PdfinfoBinary    string
}

// OptionsFromConfig copies the fingerprint section of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	fp := cfg.Fingerprint
	return Options{
		HashPages:        fp.HashPages,
		DPI:              fp.DPI,
		HashGrid:         fp.HashGrid,
		ImageGrid:        fp.ImageGrid,
		TextLastPage:     fp.TextLastPage,
		StripAnnotations: fp.StripAnnotations,
		OCREnabled:       fp.OCREnabled,
		OCRLanguage:      fp.OCRLanguage,
		PdfinfoBinary:    fp.PdfinfoBinary,
	}
}

// Extractor builds Records from files on disk. It holds no mutable state and
// is safe for concurrent use on distinct files.
type Extractor struct {
	opts     Options
	renderer Renderer
	ocr      ocr.Engine
}

// New constructs an Extractor. A nil renderer disables visual signatures and
// OCR; a nil engine disables OCR only.
func New(opts Options, renderer Renderer, engine ocr.Engine) *Extractor {
	return &Extractor{opts: opts, renderer: renderer, ocr: engine}
}

// NewFromConfig wires the poppler renderer and, when enabled, the OCR engine.
func NewFromConfig(cfg *config.Config) *Extractor {
	opts := OptionsFromConfig(cfg)
	renderer := PopplerRenderer{
		Binary:          cfg.Fingerprint.PdftoppmBinary,
		DPI:             cfg.Fingerprint.DPI,
		HideAnnotations: cfg.Fingerprint.StripAnnotations,
	}
	var engine ocr.Engine
	if cfg.Fingerprint.OCREnabled {
		engine = ocr.New(ocr.Options{
			Binary:   cfg.Fingerprint.TesseractBinary,
			Language: cfg.Fingerprint.OCRLanguage,
		})
	}
	return New(opts, renderer, engine)
}

// Settings identifies every constant that influences extraction output.
// Caches written under different settings are not reusable.
func (e *Extractor) Settings() string {
	o := e.opts
	ocrSetting := "off"
	if o.OCREnabled {
		ocrSetting = o.OCRLanguage
	}
	return fmt.Sprintf("v%d;hash_pages=%d;dpi=%d;hash_grid=%d;image_grid=%d;last_page=%t;strip=%t;ocr=%s",
		formatVersion, o.HashPages, o.DPI, o.HashGrid, o.ImageGrid, o.TextLastPage, o.StripAnnotations, ocrSetting)
}

// Extract builds the record for root/relPath with the requested signature kinds.
//
// The returned Record is always usable: failures degrade the page count to
// UnknownPages or leave an empty signature, and are reported through the
// error. Signatures are skipped when the page count is unknown.
func (e *Extractor) Extract(ctx context.Context, root, relPath string, kinds []Kind) (Record, error) {
	abs := filepath.Join(root, filepath.FromSlash(relPath))
	rec := Record{
		RelPath:    relPath,
		AbsPath:    abs,
		PageCount:  UnknownPages,
		Signatures: Signatures{},
	}

	info, err := os.Stat(abs)
	if err != nil {
		return rec, fmt.Errorf("stat %s: %w", relPath, err)
	}
	rec.ModTime = info.ModTime().UnixNano()

	isPDF, err := IsPDF(abs)
	if err != nil {
		return rec, fmt.Errorf("read %s: %w", relPath, err)
	}
	if !isPDF {
		return rec, fmt.Errorf("%s: %w", relPath, ErrNotPDF)
	}

	s := e.newSession(abs)
	defer s.close()

	var errs []error
	rec.PageCount, err = e.pageCount(ctx, s)
	if err != nil {
		errs = append(errs, err)
	}
	if !rec.PagesKnown() {
		return rec, errors.Join(errs...)
	}

	errs = append(errs, e.fill(ctx, s, &rec, kinds)...)
	return rec, errors.Join(errs...)
}

// Enrich returns a copy of rec carrying every kind in kinds. Kinds already
// present are kept as they are.
func (e *Extractor) Enrich(ctx context.Context, rec Record, kinds []Kind) (Record, error) {
	out := rec.Clone()
	missing := out.Missing(kinds)
	if len(missing) == 0 || !out.PagesKnown() {
		return out, nil
	}
	if out.Signatures == nil {
		out.Signatures = Signatures{}
	}

	s := e.newSession(out.AbsPath)
	defer s.close()
	s.pageCount = out.PageCount

	return out, errors.Join(e.fill(ctx, s, &out, missing)...)
}

func (e *Extractor) fill(ctx context.Context, s *session, rec *Record, kinds []Kind) []error {
	var errs []error
	for _, kind := range kinds {
		if rec.Has(kind) {
			continue
		}
		var (
			sig Signature
			err error
		)
		switch kind {
		case KindText:
			sig, err = e.text(ctx, s)
		case KindHash:
			sig, err = e.hash(ctx, s)
		case KindImage:
			sig, err = e.image(ctx, s)
		default:
			err = fmt.Errorf("unknown signature kind %q", kind)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s signature for %s: %w", kind, rec.RelPath, err))
		}
		if sig != nil {
			rec.Signatures[kind] = sig
		}
	}
	return errs
}

func (e *Extractor) pageCount(ctx context.Context, s *session) (int, error) {
	var errs []error
	doc, err := s.document()
	if err == nil {
		count, countErr := doc.PageCount()
		if countErr == nil && count > 0 {
			s.pageCount = count
			return count, nil
		}
		if countErr != nil {
			errs = append(errs, countErr)
		}
	} else {
		errs = append(errs, err)
	}

	count, err := pdfinfoPageCount(ctx, e.opts.PdfinfoBinary, s.path)
	if err == nil && count > 0 {
		s.pageCount = count
		return count, nil
	}
	if err != nil {
		errs = append(errs, err)
	}
	return UnknownPages, fmt.Errorf("page count: %w", errors.Join(errs...))
}

// samplePages lists the pages whose text forms the text signature.
func (e *Extractor) samplePages(pageCount int) []int {
	pages := []int{1}
	if e.opts.TextLastPage && pageCount > 1 {
		pages = append(pages, pageCount)
	}
	return pages
}

func (e *Extractor) text(ctx context.Context, s *session) (TextSignature, error) {
	pages := e.samplePages(s.pageCount)

	var errs []error
	var parts []string
	if doc, err := s.document(); err != nil {
		errs = append(errs, err)
	} else {
		for _, page := range pages {
			text, err := doc.PageText(page)
			if err != nil {
				errs = append(errs, fmt.Errorf("page %d text: %w", page, err))
				continue
			}
			parts = append(parts, text)
		}
	}
	normalized := textutil.Normalize(strings.Join(parts, " "))
	if normalized != "" {
		return TextSignature{Text: normalized}, nil
	}
	if !e.opts.OCREnabled || e.ocr == nil {
		return TextSignature{}, errors.Join(errs...)
	}

	parts = parts[:0]
	for _, page := range pages {
		img, err := s.page(ctx, e.renderer, page)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			errs = append(errs, fmt.Errorf("encode page %d: %w", page, err))
			continue
		}
		text, err := e.ocr.Recognize(ctx, buf.Bytes())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		parts = append(parts, text)
	}
	normalized = textutil.Normalize(strings.Join(parts, " "))
	if normalized != "" {
		return TextSignature{Text: normalized}, nil
	}
	return TextSignature{}, errors.Join(errs...)
}

func (e *Extractor) hash(ctx context.Context, s *session) (PerceptualHash, error) {
	count := min(e.opts.HashPages, s.pageCount)
	tokens := make([]string, 0, count)
	for page := 1; page <= count; page++ {
		img, err := s.page(ctx, e.renderer, page)
		if err != nil {
			// A partial sequence would compare as a different document.
			return PerceptualHash{}, err
		}
		tokens = append(tokens, averageHash(grayGrid(img, e.opts.HashGrid)))
	}
	return PerceptualHash{Pages: tokens}, nil
}

func (e *Extractor) image(ctx context.Context, s *session) (RenderedImage, error) {
	img, err := s.page(ctx, e.renderer, 1)
	if err != nil {
		return RenderedImage{}, err
	}
	grid := grayGrid(img, e.opts.ImageGrid)
	return RenderedImage{
		Width:  e.opts.ImageGrid,
		Height: e.opts.ImageGrid,
		Pixels: grayPixels(grid),
	}, nil
}

// session caches the opened document and rendered pages for one file.
type session struct {
	path      string
	pageCount int
	doc       *document
	docErr    error
	opened    bool
	pages     map[int]image.Image
	pageErrs  map[int]error
}

func (e *Extractor) newSession(path string) *session {
	return &session{
		path:      path,
		pageCount: UnknownPages,
		pages:     make(map[int]image.Image),
		pageErrs:  make(map[int]error),
	}
}

func (s *session) document() (*document, error) {
	if !s.opened {
		s.opened = true
		s.doc, s.docErr = openDocument(s.path)
	}
	return s.doc, s.docErr
}

func (s *session) page(ctx context.Context, renderer Renderer, num int) (image.Image, error) {
	if img, ok := s.pages[num]; ok {
		return img, nil
	}
	if err, ok := s.pageErrs[num]; ok {
		return nil, err
	}
	if renderer == nil {
		return nil, ErrRendererUnavailable
	}
	img, err := renderer.Render(ctx, s.path, num)
	if err != nil {
		s.pageErrs[num] = err
		return nil, err
	}
	s.pages[num] = img
	return img, nil
}

func (s *session) close() {
	if s.doc != nil {
		_ = s.doc.Close()
	}
}
