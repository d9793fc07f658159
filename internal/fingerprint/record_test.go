package fingerprint

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestSignaturesJSONKeepsVariants(t *testing.T) {
	rec := Record{
		RelPath:   "reports/q1.pdf",
		AbsPath:   "/data/reports/q1.pdf",
		PageCount: 4,
		ModTime:   1700000000000000000,
		Signatures: Signatures{
			KindText:  TextSignature{Text: "quarterly report"},
			KindHash:  PerceptualHash{Pages: []string{"ff00", "0f0f"}},
			KindImage: RenderedImage{Width: 2, Height: 1, Pixels: []byte{1, 2}},
		},
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Record
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(rec, decoded) {
		t.Fatalf("decoded record differs:\n%#v\n%#v", rec, decoded)
	}
}

func TestSignaturesRejectUnknownKind(t *testing.T) {
	var sigs Signatures
	if err := json.Unmarshal([]byte(`{"audio":{"x":1}}`), &sigs); err == nil {
		t.Fatal("expected unknown kind to be rejected")
	}
}

func TestParseKinds(t *testing.T) {
	kinds, err := ParseKinds([]string{" Text", "HASH", "image"})
	if err != nil {
		t.Fatalf("ParseKinds returned error: %v", err)
	}
	want := []Kind{KindText, KindHash, KindImage}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("got %v, want %v", kinds, want)
	}
	if _, err := ParseKinds([]string{"ocr"}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if KindText.Visual() || !KindHash.Visual() || !KindImage.Visual() {
		t.Fatal("unexpected Visual classification")
	}
}

func TestMissingAndClone(t *testing.T) {
	rec := Record{PageCount: 1, Signatures: Signatures{KindText: TextSignature{}}}
	if got := rec.Missing([]Kind{KindText, KindHash}); !reflect.DeepEqual(got, []Kind{KindHash}) {
		t.Fatalf("unexpected missing kinds %v", got)
	}
	clone := rec.Clone()
	clone.Signatures[KindHash] = PerceptualHash{Pages: []string{"00"}}
	if rec.Has(KindHash) {
		t.Fatal("clone shares signature map with original")
	}
}
