package ber

import (
	"bytes"
	"testing"
)

func TestPutTagDecodeAllRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	PutTag(&buf, 0x80, []byte{0x01, 0x02})
	PutTag(&buf, 0x81, []byte("second"))

	elems, err := DecodeAll(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if len(elems) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(elems))
	}
	if elems[0].Tag != 0x80 || !bytes.Equal(elems[0].Data, []byte{0x01, 0x02}) {
		t.Fatalf("unexpected first element: %+v", elems[0])
	}
	if elems[1].Tag != 0x81 || string(elems[1].Data) != "second" {
		t.Fatalf("unexpected second element: %+v", elems[1])
	}
}

func TestPutNestedTag(t *testing.T) {
	var buf bytes.Buffer
	PutNestedTag(&buf, TypeContext|TypeConstructed|0x0a, 0x80, []byte("secret"))

	elems, err := DecodeAll(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if len(elems) != 1 {
		t.Fatalf("expected 1 outer element, got %d", len(elems))
	}
	inner, err := DecodeAll(elems[0].Data)
	if err != nil {
		t.Fatalf("DecodeAll(inner): %v", err)
	}
	if len(inner) != 1 || inner[0].Tag != 0x80 || string(inner[0].Data) != "secret" {
		t.Fatalf("unexpected inner element: %+v", inner)
	}
}

func TestLengthEncodingThresholds(t *testing.T) {
	table := []struct {
		name string
		n    int
	}{
		{"short-form", 10},
		{"one-byte-long-form", 200},
		{"two-byte-long-form", 1000},
		{"three-byte-long-form", 1 << 17},
	}
	for _, tcase := range table {
		t.Run(tcase.name, func(tt *testing.T) {
			content := bytes.Repeat([]byte{0x5a}, tcase.n)
			var buf bytes.Buffer
			PutTag(&buf, 0x04, content)
			elems, err := DecodeAll(buf.Bytes())
			if err != nil {
				tt.Fatalf("DecodeAll: %v", err)
			}
			if len(elems) != 1 || !bytes.Equal(elems[0].Data, content) {
				tt.Fatalf("round trip mismatch for length %d", tcase.n)
			}
		})
	}
}

func TestDecodeAllRejectsTruncatedElement(t *testing.T) {
	var buf bytes.Buffer
	PutTag(&buf, 0x80, []byte("full content"))
	truncated := buf.Bytes()[:buf.Len()-3]
	if _, err := DecodeAll(truncated); err == nil {
		t.Fatal("expected truncated element to be rejected")
	}
}

func TestDecodeAllRejectsIndefiniteLength(t *testing.T) {
	if _, err := DecodeAll([]byte{0x80, 0x80}); err == nil {
		t.Fatal("expected indefinite length to be rejected")
	}
}

func TestConformanceEncodeDecodeRoundTrip(t *testing.T) {
	bits := uint32(0x1eb19f)
	var buf bytes.Buffer
	EncodeConformance(&buf, bits)

	if buf.Len() != ConformanceBlockLen {
		t.Fatalf("encoded length = %d, want %d", buf.Len(), ConformanceBlockLen)
	}
	want := []byte{ConformanceTag[0], ConformanceTag[1], 0x04, 0x00, 0x1e, 0xb1, 0x9f}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}

	got, err := DecodeConformance(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeConformance: %v", err)
	}
	if got != bits {
		t.Fatalf("got %06x, want %06x", got, bits)
	}
}

func TestConformanceTagUsesTwoOctetHighTagNumberForm(t *testing.T) {
	// X.690 §8.1.2.4: tag numbers >= 31 cannot fit in the low 5 bits of a
	// single tag octet and must use the extended form.
	if ConformanceTag[0]&0x1f != 0x1f {
		t.Fatalf("first tag octet %#x does not signal high-tag-number form", ConformanceTag[0])
	}
	if ConformanceTag[1]&0x80 != 0 {
		t.Fatalf("second tag octet %#x sets the continuation bit, but tag 31 needs only one", ConformanceTag[1])
	}
}

func TestDecodeConformanceRejectsBadUnusedBits(t *testing.T) {
	bad := []byte{ConformanceTag[0], ConformanceTag[1], 0x04, 0x01, 0x00, 0x00, 0x00}
	if _, err := DecodeConformance(bad); err == nil {
		t.Fatal("expected non-zero unused-bits octet to be rejected")
	}
}

func TestDecodeConformanceRejectsWrongLength(t *testing.T) {
	if _, err := DecodeConformance([]byte{ConformanceTag[0], ConformanceTag[1], 0x04, 0x00, 0x00}); err == nil {
		t.Fatal("expected a truncated conformance block to be rejected")
	}
}

func TestDecodeConformanceRejectsWrongTag(t *testing.T) {
	bad := []byte{0x7f, 0x04, 0x00, 0x1e, 0xb1, 0x9f, 0x00}
	if _, err := DecodeConformance(bad); err == nil {
		t.Fatal("expected a collapsed single-byte tag to be rejected")
	}
}
