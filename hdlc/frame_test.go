package hdlc

import (
	"bytes"
	"testing"
)

func TestEncodeParseFrameRoundTrip(t *testing.T) {
	info := []byte("this is an information field payload")
	encoded, err := encodeFrame(nil, 3, 1, 0, iControl(2, 5), true, info, false)
	if err != nil {
		t.Fatalf("encodeFrame: %v", err)
	}
	if encoded[0] != flagByte || encoded[len(encoded)-1] != flagByte {
		t.Fatalf("expected frame to be flag-delimited, got %x", encoded)
	}

	fr := newFrameReader(bytes.NewReader(encoded), 3, 1, 0)
	got, err := fr.next(true)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if !bytes.Equal(got.info, info) {
		t.Fatalf("info mismatch: got %q, want %q", got.info, info)
	}
	if !got.final {
		t.Fatal("expected final bit to survive round trip")
	}
	if nS(got.control) != 2 || nR(got.control) != 5 {
		t.Fatalf("sequence numbers mismatch: N(S)=%d N(R)=%d", nS(got.control), nR(got.control))
	}
}

func TestEncodeParseFrameNoInfoField(t *testing.T) {
	encoded, err := encodeFrame(nil, 1, 3, 0, controlUA, true, nil, false)
	if err != nil {
		t.Fatalf("encodeFrame: %v", err)
	}
	fr := newFrameReader(bytes.NewReader(encoded), 3, 1, 0)
	got, err := fr.next(true)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if len(got.info) != 0 {
		t.Fatalf("expected no info field, got %x", got.info)
	}
}

func TestFrameReaderRejectsCorruptedFCS(t *testing.T) {
	encoded, err := encodeFrame(nil, 3, 1, 0, iControl(0, 0), true, []byte("payload"), false)
	if err != nil {
		t.Fatalf("encodeFrame: %v", err)
	}
	encoded[len(encoded)-2] ^= 0xff

	fr := newFrameReader(bytes.NewReader(encoded), 3, 1, 0)
	if _, err := fr.next(true); err == nil {
		t.Fatal("expected a corrupted FCS to be rejected")
	}
}

func TestFrameReaderRejectsWrongClientAddress(t *testing.T) {
	encoded, err := encodeFrame(nil, 1, 3, 0, controlUA, true, nil, false)
	if err != nil {
		t.Fatalf("encodeFrame: %v", err)
	}
	fr := newFrameReader(bytes.NewReader(encoded), 9, 1, 0)
	if _, err := fr.next(true); err == nil {
		t.Fatal("expected a client address mismatch to be rejected")
	}
}

func TestAddressLengthSelection(t *testing.T) {
	table := []struct {
		name             string
		logical, physical uint16
		want             int
	}{
		{"one-octet", 0x10, 0, 1},
		{"two-octet", 0x10, 0x20, 2},
		{"four-octet", 0x200, 0x10, 4},
	}
	for _, tcase := range table {
		t.Run(tcase.name, func(tt *testing.T) {
			if got := addressLength(tcase.logical, tcase.physical); got != tcase.want {
				tt.Fatalf("got %d, want %d", got, tcase.want)
			}
		})
	}
}

func TestCRC16KnownVector(t *testing.T) {
	// "123456789" is the canonical CRC-16/X-25 test vector, FCS 0x906e.
	if got := crc16([]byte("123456789")); got != 0x906e {
		t.Fatalf("got %04x, want 906e", got)
	}
}
