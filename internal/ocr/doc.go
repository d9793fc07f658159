// Package ocr recognizes text in rendered page images for scanned documents
// that carry no text layer.
//
// The default engine runs the tesseract executable. Building with the
// gosseract tag swaps in libtesseract bindings, which avoids a process per
// page but requires the tesseract development headers at build time.
package ocr
