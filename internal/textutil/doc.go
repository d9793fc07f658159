// Package textutil provides text normalization and word-set helpers used by
// text signatures.
//
// The primary use cases are:
//   - Normalizing extracted page text so cosmetic differences (ligatures,
//     case, line wrapping) do not change a signature
//   - Splitting normalized text into words and word sets
//   - Computing Jaccard similarity between word sets
package textutil
