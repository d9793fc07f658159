// Package deps checks that the external binaries used for page rendering,
// page counting, and OCR are installed.
package deps
