// Package ber implements the BER subset the ACSE layer needs: definite
// length, constructed/primitive context tags, and the one genuine BER
// exception in the stack, the Conformance block, which is an
// [APPLICATION 31] IMPLICIT BIT STRING rather than a context tag (§4.2).
package ber

import (
	"bytes"

	"github.com/cybroslabs/dlms-go/dlmserr"
)

const (
	TypeContext     = 0x80
	TypeApplication = 0x40
	TypeConstructed = 0x20
)

// ConformanceTag is [APPLICATION 31] in the two-octet high-tag-number
// form X.690 §8.1.2.4 requires once the tag number reaches 31: the low
// 5 bits of the first octet are all set, and the tag number itself
// follows in one or more continuation octets (bit 8 clear on the last
// one). 31 fits in a single continuation octet.
var ConformanceTag = [2]byte{TypeApplication | 0x1f, 0x1f}

// ConformanceBlockLen is the total size of the Conformance TLV:
// the 2-octet tag, a 1-octet length, a 1-octet "unused bits" field, and
// the 3 content bytes the 24-bit conformance block itself takes.
const ConformanceBlockLen = 2 + 1 + 1 + 3

func encodeLength(dst *bytes.Buffer, n uint) {
	switch {
	case n < 128:
		dst.WriteByte(byte(n))
	case n < 256:
		dst.WriteByte(0x81)
		dst.WriteByte(byte(n))
	case n < 65536:
		dst.WriteByte(0x82)
		dst.WriteByte(byte(n >> 8))
		dst.WriteByte(byte(n))
	default:
		dst.WriteByte(0x83)
		dst.WriteByte(byte(n >> 16))
		dst.WriteByte(byte(n >> 8))
		dst.WriteByte(byte(n))
	}
}

// PutTag appends one BER TLV: tag byte, definite length, and raw content.
func PutTag(dst *bytes.Buffer, tag byte, content []byte) {
	dst.WriteByte(tag)
	encodeLength(dst, uint(len(content)))
	dst.Write(content)
}

// PutNestedTag appends a constructed tag wrapping a single inner
// primitive tag+content, as ACSE does for CallingAuthenticationValue and
// UserInformation.
func PutNestedTag(dst *bytes.Buffer, tag byte, innerTag byte, content []byte) {
	var inner bytes.Buffer
	PutTag(&inner, innerTag, content)
	PutTag(dst, tag, inner.Bytes())
}

func decodeLength(src []byte) (n uint, consumed int, err error) {
	if len(src) < 1 {
		return 0, 0, dlmserr.New(dlmserr.Codec, "no length byte")
	}
	b := src[0]
	if b < 128 {
		return uint(b), 1, nil
	}
	if b == 128 {
		return 0, 0, dlmserr.New(dlmserr.Codec, "indefinite length not supported")
	}
	c := int(b & 0x7f)
	if c > 4 || len(src) < 1+c {
		return 0, 0, dlmserr.New(dlmserr.Codec, "invalid length field")
	}
	for i := 0; i < c; i++ {
		n = (n << 8) | uint(src[1+i])
	}
	return n, c + 1, nil
}

// Element is one decoded TLV.
type Element struct {
	Tag  byte
	Data []byte
}

// DecodeAll splits a flat sequence of TLVs (the ACSE content octets)
// into its elements, the way AARE/RLRE/RLRQ bodies are structured.
func DecodeAll(src []byte) ([]Element, error) {
	var out []Element
	for len(src) > 0 {
		if len(src) < 2 {
			return nil, dlmserr.New(dlmserr.Codec, "truncated ber element")
		}
		tag := src[0]
		n, lc, err := decodeLength(src[1:])
		if err != nil {
			return nil, err
		}
		total := 1 + lc + int(n)
		if len(src) < total {
			return nil, dlmserr.New(dlmserr.Codec, "truncated ber element content")
		}
		out = append(out, Element{Tag: tag, Data: src[1+lc : total]})
		src = src[total:]
	}
	return out, nil
}

// EncodeConformance writes the whole self-contained Conformance TLV:
// the two-octet [APPLICATION 31] tag, a definite length, a leading
// "unused bits" octet (always 0 since 24 is a multiple of 8), then the
// 3 big-endian content bytes. Callers treat the ConformanceBlockLen
// bytes this writes as one opaque chunk; DecodeConformance is the exact
// inverse, not a decoder for just the content octets.
func EncodeConformance(dst *bytes.Buffer, bits uint32) {
	dst.WriteByte(ConformanceTag[0])
	dst.WriteByte(ConformanceTag[1])
	dst.WriteByte(0x04) // length: unused-bits octet + 3 content bytes
	dst.WriteByte(0x00)
	dst.WriteByte(byte(bits >> 16))
	dst.WriteByte(byte(bits >> 8))
	dst.WriteByte(byte(bits))
}

// DecodeConformance is the inverse of EncodeConformance. data must be
// exactly the ConformanceBlockLen bytes EncodeConformance writes: both
// tag octets, the length octet, the unused-bits octet, and the 3
// content bytes.
func DecodeConformance(data []byte) (uint32, error) {
	if len(data) != ConformanceBlockLen {
		return 0, dlmserr.New(dlmserr.Codec, "invalid conformance block length")
	}
	if data[0] != ConformanceTag[0] || data[1] != ConformanceTag[1] {
		return 0, dlmserr.New(dlmserr.Codec, "not a conformance block")
	}
	if data[2] != 0x04 {
		return 0, dlmserr.New(dlmserr.Codec, "invalid conformance length octet")
	}
	if data[3] != 0 {
		return 0, dlmserr.New(dlmserr.Codec, "unexpected unused bits in conformance")
	}
	return uint32(data[4])<<16 | uint32(data[5])<<8 | uint32(data[6]), nil
}
