package fingerprint

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/h2non/filetype"
	"github.com/ledongthuc/pdf"
)

// ErrNotPDF is returned for files whose content is not a PDF document.
var ErrNotPDF = errors.New("not a pdf document")

// sniffLength covers every magic number filetype knows about.
const sniffLength = 262

// IsPDF reports whether the file starts with PDF magic bytes.
func IsPDF(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return filetype.Is(head[:n], "pdf"), nil
}

// document wraps the text layer reader. The parser panics on some malformed
// inputs, so every call goes through guard.
type document struct {
	file   *os.File
	reader *pdf.Reader
}

func openDocument(path string) (doc *document, err error) {
	defer guard(&err)
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &document{file: file, reader: reader}, nil
}

func (d *document) Close() error {
	if d == nil || d.file == nil {
		return nil
	}
	return d.file.Close()
}

func (d *document) PageCount() (count int, err error) {
	defer guard(&err)
	return d.reader.NumPage(), nil
}

// PageText returns the plain text of a 1-based page.
func (d *document) PageText(num int) (text string, err error) {
	defer guard(&err)
	page := d.reader.Page(num)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

func guard(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("pdf parser panic: %v", r)
	}
}

// pdfinfoPageCount asks poppler's pdfinfo for the page count. It handles
// documents the pure Go parser rejects (xref streams, repaired files).
func pdfinfoPageCount(ctx context.Context, binary, path string) (int, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return UnknownPages, errors.New("pdfinfo: binary not configured")
	}
	cmd := exec.CommandContext(ctx, binary, "--", path)
	output, err := cmd.Output()
	if err != nil {
		return UnknownPages, fmt.Errorf("pdfinfo: %w", err)
	}
	return parsePdfinfoPages(output)
}

func parsePdfinfoPages(output []byte) (int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok || strings.TrimSpace(key) != "Pages" {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return UnknownPages, fmt.Errorf("pdfinfo: parse page count %q: %w", value, err)
		}
		return count, nil
	}
	return UnknownPages, errors.New("pdfinfo: no page count in output")
}
