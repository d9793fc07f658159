// Package fingerprint extracts comparable content signatures from PDF files.
//
// A Record always carries the page count when the document can be opened at
// all. Signatures are a tagged union over three kinds: normalized text from
// the first (and optionally last) page, a perceptual hash over the leading
// pages, and a downscaled grayscale rendering of the first page. Extraction
// constants come from configuration, never from document content, so equal
// files produce equal records and cached records stay valid.
package fingerprint
