package fingerprint

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// UnknownPages marks a record whose page count could not be determined.
const UnknownPages = -1

// Kind names a signature variant.
type Kind string

const (
	KindText  Kind = "text"
	KindHash  Kind = "hash"
	KindImage Kind = "image"
)

// ParseKind converts a configuration value into a Kind.
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindText:
		return KindText, nil
	case KindHash:
		return KindHash, nil
	case KindImage:
		return KindImage, nil
	default:
		return "", fmt.Errorf("unknown signature kind %q", value)
	}
}

// ParseKinds converts a list of configuration values, preserving order.
func ParseKinds(values []string) ([]Kind, error) {
	kinds := make([]Kind, 0, len(values))
	for _, value := range values {
		kind, err := ParseKind(value)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// Visual reports whether the kind is compared against the visual threshold.
func (k Kind) Visual() bool {
	return k == KindHash || k == KindImage
}

// Signature is one comparable content summary of a file.
type Signature interface {
	Kind() Kind
	// Empty reports whether extraction produced nothing comparable.
	Empty() bool
}

// TextSignature holds normalized text sampled from the document.
type TextSignature struct {
	Text string `json:"text"`
}

func (TextSignature) Kind() Kind { return KindText }

func (s TextSignature) Empty() bool { return s.Text == "" }

// PerceptualHash holds one hex token per sampled page, in page order.
type PerceptualHash struct {
	Pages []string `json:"pages"`
}

func (PerceptualHash) Kind() Kind { return KindHash }

func (s PerceptualHash) Empty() bool { return len(s.Pages) == 0 }

// RenderedImage is a row-major 8-bit grayscale pixel grid.
type RenderedImage struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Pixels []byte `json:"pixels"`
}

func (RenderedImage) Kind() Kind { return KindImage }

func (s RenderedImage) Empty() bool {
	return s.Width <= 0 || s.Height <= 0 || len(s.Pixels) != s.Width*s.Height
}

// Signatures holds at most one signature per kind.
type Signatures map[Kind]Signature

// Kinds returns the kinds present, sorted.
func (s Signatures) Kinds() []Kind {
	kinds := make([]Kind, 0, len(s))
	for kind := range s {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// MarshalJSON encodes the map keyed by kind name.
func (s Signatures) MarshalJSON() ([]byte, error) {
	raw := make(map[string]json.RawMessage, len(s))
	for kind, sig := range s {
		if sig == nil {
			continue
		}
		if sig.Kind() != kind {
			return nil, fmt.Errorf("signature stored under %q has kind %q", kind, sig.Kind())
		}
		data, err := json.Marshal(sig)
		if err != nil {
			return nil, err
		}
		raw[string(kind)] = data
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes the tagged variants. Unknown kinds are an error so a
// cache written by a different layout is rejected as a whole.
func (s *Signatures) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Signatures, len(raw))
	for name, payload := range raw {
		kind, err := ParseKind(name)
		if err != nil {
			return err
		}
		switch kind {
		case KindText:
			var sig TextSignature
			if err := json.Unmarshal(payload, &sig); err != nil {
				return fmt.Errorf("decode %s signature: %w", kind, err)
			}
			out[kind] = sig
		case KindHash:
			var sig PerceptualHash
			if err := json.Unmarshal(payload, &sig); err != nil {
				return fmt.Errorf("decode %s signature: %w", kind, err)
			}
			out[kind] = sig
		case KindImage:
			var sig RenderedImage
			if err := json.Unmarshal(payload, &sig); err != nil {
				return fmt.Errorf("decode %s signature: %w", kind, err)
			}
			out[kind] = sig
		}
	}
	*s = out
	return nil
}

// Record describes one file of a scanned tree.
type Record struct {
	RelPath    string     `json:"relative_path"`
	AbsPath    string     `json:"absolute_path"`
	PageCount  int        `json:"page_count"`
	Signatures Signatures `json:"signatures,omitempty"`
	// ModTime is the modification time in Unix nanoseconds.
	ModTime int64 `json:"mtime"`
}

// PagesKnown reports whether the page count was determined.
func (r Record) PagesKnown() bool {
	return r.PageCount >= 0
}

// Signature returns the signature of the given kind, if present.
func (r Record) Signature(kind Kind) (Signature, bool) {
	sig, ok := r.Signatures[kind]
	return sig, ok && sig != nil
}

// Has reports whether a signature of kind was extracted (possibly empty).
func (r Record) Has(kind Kind) bool {
	_, ok := r.Signature(kind)
	return ok
}

// Missing returns the requested kinds not yet present on the record.
func (r Record) Missing(kinds []Kind) []Kind {
	var missing []Kind
	for _, kind := range kinds {
		if !r.Has(kind) {
			missing = append(missing, kind)
		}
	}
	return missing
}

// Clone returns a copy whose signature map can be extended without touching r.
func (r Record) Clone() Record {
	out := r
	if r.Signatures != nil {
		out.Signatures = make(Signatures, len(r.Signatures))
		for kind, sig := range r.Signatures {
			out.Signatures[kind] = sig
		}
	}
	return out
}
