// Package axdr implements the A-XDR codec used by xDLMS APDUs for
// encoding DLMS data values (§4.1): BER-style length prefixes, a choice
// tag per value, and reversed-order encoding for the fields of the PDU
// SEQUENCEs that the standard defines back-to-front (arrays and structures
// keep their natural order).
package axdr

import (
	"bytes"
	"io"
	"math"

	"github.com/cybroslabs/dlms-go/dlmserr"
)

type Tag byte

const (
	TagNull               Tag = 0
	TagArray              Tag = 1
	TagStructure          Tag = 2
	TagBoolean            Tag = 3
	TagBitString          Tag = 4
	TagDoubleLong         Tag = 5
	TagDoubleLongUnsigned Tag = 6
	TagFloatingPoint      Tag = 7
	TagOctetString        Tag = 9
	TagVisibleString      Tag = 10
	TagUTF8String         Tag = 12
	TagBCD                Tag = 13
	TagInteger            Tag = 15
	TagLong               Tag = 16
	TagUnsigned           Tag = 17
	TagLongUnsigned       Tag = 18
	TagCompactArray       Tag = 19
	TagLong64             Tag = 20
	TagLong64Unsigned     Tag = 21
	TagEnum               Tag = 22
	TagFloat32            Tag = 23
	TagFloat64            Tag = 24
	TagDateTime           Tag = 25
	TagDate               Tag = 26
	TagTime               Tag = 27
)

// Value is one decoded A-XDR data value: a tag plus its native Go
// representation (bool, []byte, string, int64 family, float32, float64, []Value for Array/
// Structure, or a DateTime/Date/Time).
type Value struct {
	Tag   Tag
	Value any
}

// EncodeLength writes the BER-style definite length prefix used
// throughout A-XDR: a single byte below 128, or a length-of-length byte
// (0x81..0x84) followed by the big-endian length otherwise.
func EncodeLength(dst *bytes.Buffer, n uint) {
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
	case n < 16777216:
		dst.WriteByte(0x83)
		dst.WriteByte(byte(n >> 16))
		dst.WriteByte(byte(n >> 8))
		dst.WriteByte(byte(n))
	default:
		dst.WriteByte(0x84)
		dst.WriteByte(byte(n >> 24))
		dst.WriteByte(byte(n >> 16))
		dst.WriteByte(byte(n >> 8))
		dst.WriteByte(byte(n))
	}
}

// DecodeLength reads the counterpart of EncodeLength.
func DecodeLength(src io.Reader) (uint, error) {
	var b [4]byte
	if _, err := io.ReadFull(src, b[:1]); err != nil {
		return 0, dlmserr.Wrap(dlmserr.Codec, "reading length", err)
	}
	if b[0] < 128 {
		return uint(b[0]), nil
	}
	if b[0] == 128 {
		return 0, dlmserr.New(dlmserr.Codec, "indefinite length not supported")
	}
	n := int(b[0] & 0x7f)
	if n > 4 {
		return 0, dlmserr.New(dlmserr.Codec, "length too long")
	}
	if _, err := io.ReadFull(src, b[:n]); err != nil {
		return 0, dlmserr.Wrap(dlmserr.Codec, "reading length bytes", err)
	}
	r := uint(0)
	for i := 0; i < n; i++ {
		r = (r << 8) | uint(b[i])
	}
	return r, nil
}

// Encode appends v's A-XDR wire representation (choice tag + payload) to
// dst.
func Encode(dst *bytes.Buffer, v Value) error {
	dst.WriteByte(byte(v.Tag))
	return encodePayload(dst, v)
}

func encodePayload(dst *bytes.Buffer, v Value) error {
	switch v.Tag {
	case TagNull:
		return nil
	case TagArray, TagStructure:
		items, _ := v.Value.([]Value)
		EncodeLength(dst, uint(len(items)))
		for _, it := range items {
			if err := Encode(dst, it); err != nil {
				return err
			}
		}
		return nil
	case TagBoolean:
		b, _ := v.Value.(bool)
		if b {
			dst.WriteByte(1)
		} else {
			dst.WriteByte(0)
		}
		return nil
	case TagBitString:
		bits, _ := v.Value.([]bool)
		EncodeLength(dst, uint(len(bits)))
		packed := make([]byte, (len(bits)+7)/8)
		for i, b := range bits {
			if b {
				packed[i/8] |= 1 << (7 - uint(i%8))
			}
		}
		dst.Write(packed)
		return nil
	case TagDoubleLong:
		writeInt32(dst, int32(asInt64(v.Value)))
		return nil
	case TagDoubleLongUnsigned:
		writeUint32(dst, uint32(asInt64(v.Value)))
		return nil
	case TagFloatingPoint:
		f, _ := v.Value.(float32)
		writeUint32(dst, math.Float32bits(f))
		return nil
	case TagOctetString:
		b, _ := v.Value.([]byte)
		EncodeLength(dst, uint(len(b)))
		dst.Write(b)
		return nil
	case TagVisibleString, TagUTF8String:
		s, _ := v.Value.(string)
		EncodeLength(dst, uint(len(s)))
		dst.WriteString(s)
		return nil
	case TagBCD:
		dst.WriteByte(byte(asInt64(v.Value)))
		return nil
	case TagInteger:
		dst.WriteByte(byte(int8(asInt64(v.Value))))
		return nil
	case TagLong:
		writeInt16(dst, int16(asInt64(v.Value)))
		return nil
	case TagUnsigned:
		dst.WriteByte(byte(asInt64(v.Value)))
		return nil
	case TagLongUnsigned:
		writeUint16(dst, uint16(asInt64(v.Value)))
		return nil
	case TagLong64:
		writeInt64(dst, asInt64(v.Value))
		return nil
	case TagLong64Unsigned:
		writeUint64(dst, uint64(asInt64(v.Value)))
		return nil
	case TagEnum:
		dst.WriteByte(byte(asInt64(v.Value)))
		return nil
	case TagFloat32:
		f, _ := v.Value.(float32)
		writeUint32(dst, math.Float32bits(f))
		return nil
	case TagFloat64:
		f, _ := v.Value.(float64)
		writeUint64(dst, math.Float64bits(f))
		return nil
	case TagDateTime:
		dt, _ := v.Value.(DateTime)
		dst.Write(dt.Encode())
		return nil
	case TagDate:
		d, _ := v.Value.(Date)
		dst.Write(d.Encode())
		return nil
	case TagTime:
		t, _ := v.Value.(Time)
		dst.Write(t.Encode())
		return nil
	default:
		return dlmserr.Newf(dlmserr.Codec, "unsupported tag %d", v.Tag)
	}
}

func asInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case uint64:
		return int64(x)
	case int:
		return int64(x)
	case uint:
		return int64(x)
	case int32:
		return int64(x)
	case uint32:
		return int64(x)
	case int16:
		return int64(x)
	case uint16:
		return int64(x)
	case int8:
		return int64(x)
	case uint8:
		return int64(x)
	default:
		return 0
	}
}

func writeInt16(dst *bytes.Buffer, v int16)   { writeUint16(dst, uint16(v)) }
func writeUint16(dst *bytes.Buffer, v uint16) { dst.WriteByte(byte(v >> 8)); dst.WriteByte(byte(v)) }
func writeInt32(dst *bytes.Buffer, v int32)   { writeUint32(dst, uint32(v)) }
func writeUint32(dst *bytes.Buffer, v uint32) {
	dst.WriteByte(byte(v >> 24))
	dst.WriteByte(byte(v >> 16))
	dst.WriteByte(byte(v >> 8))
	dst.WriteByte(byte(v))
}
func writeInt64(dst *bytes.Buffer, v int64) { writeUint64(dst, uint64(v)) }
func writeUint64(dst *bytes.Buffer, v uint64) {
	for i := 7; i >= 0; i-- {
		dst.WriteByte(byte(v >> (uint(i) * 8)))
	}
}

// Decode reads one tagged A-XDR value from src.
func Decode(src io.Reader) (Value, error) {
	var tb [1]byte
	if _, err := io.ReadFull(src, tb[:]); err != nil {
		return Value{}, dlmserr.Wrap(dlmserr.Codec, "reading tag", err)
	}
	return decodePayload(src, Tag(tb[0]))
}

func decodePayload(src io.Reader, tag Tag) (Value, error) {
	switch tag {
	case TagNull:
		return Value{Tag: tag}, nil
	case TagArray, TagStructure:
		n, err := DecodeLength(src)
		if err != nil {
			return Value{}, err
		}
		items := make([]Value, n)
		for i := range items {
			v, err := Decode(src)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return Value{Tag: tag, Value: items}, nil
	case TagBoolean:
		b, err := readN(src, 1)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Value: b[0] != 0}, nil
	case TagBitString:
		n, err := DecodeLength(src)
		if err != nil {
			return Value{}, err
		}
		packed, err := readN(src, (int(n)+7)/8)
		if err != nil {
			return Value{}, err
		}
		bits := make([]bool, n)
		for i := range bits {
			bits[i] = packed[i/8]&(1<<(7-uint(i%8))) != 0
		}
		return Value{Tag: tag, Value: bits}, nil
	case TagDoubleLong:
		b, err := readN(src, 4)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Value: int64(int32(be32(b)))}, nil
	case TagDoubleLongUnsigned:
		b, err := readN(src, 4)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Value: int64(be32(b))}, nil
	case TagFloatingPoint:
		b, err := readN(src, 4)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Value: math.Float32frombits(be32(b))}, nil
	case TagOctetString:
		n, err := DecodeLength(src)
		if err != nil {
			return Value{}, err
		}
		b, err := readN(src, int(n))
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Value: b}, nil
	case TagVisibleString, TagUTF8String:
		n, err := DecodeLength(src)
		if err != nil {
			return Value{}, err
		}
		b, err := readN(src, int(n))
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Value: string(b)}, nil
	case TagBCD:
		b, err := readN(src, 1)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Value: int64(b[0])}, nil
	case TagInteger:
		b, err := readN(src, 1)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Value: int64(int8(b[0]))}, nil
	case TagLong:
		b, err := readN(src, 2)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Value: int64(int16(be16(b)))}, nil
	case TagUnsigned:
		b, err := readN(src, 1)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Value: int64(b[0])}, nil
	case TagLongUnsigned:
		b, err := readN(src, 2)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Value: int64(be16(b))}, nil
	case TagLong64:
		b, err := readN(src, 8)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Value: int64(be64(b))}, nil
	case TagLong64Unsigned:
		b, err := readN(src, 8)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Value: int64(be64(b))}, nil
	case TagEnum:
		b, err := readN(src, 1)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Value: int64(b[0])}, nil
	case TagFloat32:
		b, err := readN(src, 4)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Value: math.Float32frombits(be32(b))}, nil
	case TagFloat64:
		b, err := readN(src, 8)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Value: math.Float64frombits(be64(b))}, nil
	case TagDateTime:
		b, err := readN(src, 12)
		if err != nil {
			return Value{}, err
		}
		dt, err := DecodeDateTime(b)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Value: dt}, nil
	case TagDate:
		b, err := readN(src, 5)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Value: DecodeDate(b)}, nil
	case TagTime:
		b, err := readN(src, 4)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Value: DecodeTime(b)}, nil
	default:
		return Value{}, dlmserr.Newf(dlmserr.Codec, "unsupported tag %d", tag)
	}
}

func readN(src io.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(src, b); err != nil {
		return nil, dlmserr.Wrap(dlmserr.Codec, "reading value", err)
	}
	return b, nil
}

func be16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }
func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
func be64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}
