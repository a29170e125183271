package axdr

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeLengthRoundTrip(t *testing.T) {
	table := []struct {
		name string
		n    uint
	}{
		{"zero", 0},
		{"below-128", 127},
		{"one-byte-length-of-length", 200},
		{"two-byte-length-of-length", 40000},
		{"three-byte-length-of-length", 1 << 20},
	}
	for _, tcase := range table {
		t.Run(tcase.name, func(tt *testing.T) {
			var buf bytes.Buffer
			EncodeLength(&buf, tcase.n)
			got, err := DecodeLength(&buf)
			if err != nil {
				tt.Fatalf("DecodeLength: %v", err)
			}
			if got != tcase.n {
				tt.Fatalf("got %d, want %d", got, tcase.n)
			}
			if buf.Len() != 0 {
				tt.Fatalf("%d bytes left unread", buf.Len())
			}
		})
	}
}

func TestDecodeLengthRejectsIndefiniteLength(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x80})
	if _, err := DecodeLength(buf); err == nil {
		t.Fatal("expected indefinite length (0x80) to be rejected")
	}
}

func TestDecodeLengthRejectsOverlongLengthOfLength(t *testing.T) {
	// 0x85 claims five length octets follow; DecodeLength caps at four.
	buf := bytes.NewBuffer([]byte{0x85, 0, 0, 0, 0, 1})
	if _, err := DecodeLength(buf); err == nil {
		t.Fatal("expected a length-of-length greater than four to be rejected")
	}
}

func TestValueEncodeDecodeRoundTrip(t *testing.T) {
	table := []struct {
		name string
		v    Value
		eq   func(got any) bool
	}{
		{"null", Value{Tag: TagNull}, func(got any) bool { return got == nil }},
		{"boolean-true", Value{Tag: TagBoolean, Value: true}, func(got any) bool { return got == true }},
		{"boolean-false", Value{Tag: TagBoolean, Value: false}, func(got any) bool { return got == false }},
		{
			"octet-string",
			Value{Tag: TagOctetString, Value: []byte{0x01, 0x02, 0x03}},
			func(got any) bool { b, ok := got.([]byte); return ok && bytes.Equal(b, []byte{0x01, 0x02, 0x03}) },
		},
		{
			"visible-string",
			Value{Tag: TagVisibleString, Value: "hello"},
			func(got any) bool { s, ok := got.(string); return ok && s == "hello" },
		},
		{
			"double-long-negative",
			Value{Tag: TagDoubleLong, Value: int32(-12345)},
			func(got any) bool { return asInt64(got) == -12345 },
		},
		{
			"double-long-unsigned",
			Value{Tag: TagDoubleLongUnsigned, Value: uint32(0xdeadbeef)},
			func(got any) bool { return asInt64(got) == int64(0xdeadbeef) },
		},
		{
			"long64-unsigned",
			Value{Tag: TagLong64Unsigned, Value: uint64(0x0102030405060708)},
			func(got any) bool { return asInt64(got) == int64(0x0102030405060708) },
		},
		{
			"integer-negative",
			Value{Tag: TagInteger, Value: int8(-1)},
			func(got any) bool { return asInt64(got) == -1 },
		},
		{
			"long-unsigned",
			Value{Tag: TagLongUnsigned, Value: uint16(4000)},
			func(got any) bool { return asInt64(got) == 4000 },
		},
		{
			"enum",
			Value{Tag: TagEnum, Value: uint8(3)},
			func(got any) bool { return asInt64(got) == 3 },
		},
		{
			"float32",
			Value{Tag: TagFloat32, Value: float32(3.5)},
			func(got any) bool { f, ok := got.(float32); return ok && f == 3.5 },
		},
		{
			"float64",
			Value{Tag: TagFloat64, Value: float64(-2.25)},
			func(got any) bool { f, ok := got.(float64); return ok && f == -2.25 },
		},
	}
	for _, tcase := range table {
		t.Run(tcase.name, func(tt *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, tcase.v); err != nil {
				tt.Fatalf("Encode: %v", err)
			}
			got, err := Decode(&buf)
			if err != nil {
				tt.Fatalf("Decode: %v", err)
			}
			if got.Tag != tcase.v.Tag {
				tt.Fatalf("tag mismatch: got %d, want %d", got.Tag, tcase.v.Tag)
			}
			if !tcase.eq(got.Value) {
				tt.Fatalf("value mismatch: got %#v", got.Value)
			}
		})
	}
}

func TestStructureEncodeDecodeRoundTrip(t *testing.T) {
	v := Value{Tag: TagStructure, Value: []Value{
		{Tag: TagLongUnsigned, Value: uint16(1)},
		{Tag: TagOctetString, Value: []byte("ab")},
	}}
	var buf bytes.Buffer
	if err := Encode(&buf, v); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Tag != TagStructure {
		t.Fatalf("tag mismatch: got %d", got.Tag)
	}
	items, ok := got.Value.([]Value)
	if !ok || len(items) != 2 {
		t.Fatalf("expected two structure members, got %#v", got.Value)
	}
	if asInt64(items[0].Value) != 1 {
		t.Fatalf("first member mismatch: got %#v", items[0].Value)
	}
	b, ok := items[1].Value.([]byte)
	if !ok || string(b) != "ab" {
		t.Fatalf("second member mismatch: got %#v", items[1].Value)
	}
}

func TestArrayNesting(t *testing.T) {
	v := Value{Tag: TagArray, Value: []Value{
		{Tag: TagStructure, Value: []Value{
			{Tag: TagInteger, Value: int8(1)},
		}},
		{Tag: TagStructure, Value: []Value{
			{Tag: TagInteger, Value: int8(2)},
		}},
	}}
	var buf bytes.Buffer
	if err := Encode(&buf, v); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	items, ok := got.Value.([]Value)
	if !ok || len(items) != 2 {
		t.Fatalf("expected two array elements, got %#v", got.Value)
	}
}

func TestDecodeTruncatedInputFails(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, Value{Tag: TagOctetString, Value: []byte("hello world")}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-3])
	if _, err := Decode(truncated); err == nil {
		t.Fatal("expected truncated input to fail decoding")
	}
}
