package axdr

import (
	"bytes"

	"github.com/cybroslabs/dlms-go/dlmserr"
)

// EncodeReversedSequence encodes items the way A-XDR requires for the
// InitiateRequest/InitiateResponse PDUs and every Get/Set/Action-request
// and -response "Normal" CHOICE variant: the standard defines these
// SEQUENCEs with their members in reverse wire order relative to their
// logical (declared) order; the caller writes the choice tag before them. Callers build
// items front-to-back in logical order, and this writes them back-to-front.
func EncodeReversedSequence(dst *bytes.Buffer, items [][]byte) {
	for i := len(items) - 1; i >= 0; i-- {
		dst.Write(items[i])
	}
}

// DecodeReversedSequence splits a reversed-SEQUENCE byte string into n
// equal-or-variable chunks already reordered into logical order, given a
// splitter that consumes one item from the front of the remaining bytes.
func DecodeReversedSequence(src []byte, n int, split func([]byte) (item []byte, rest []byte, err error)) ([][]byte, error) {
	items := make([][]byte, n)
	rest := src
	for i := n - 1; i >= 0; i-- {
		item, r, err := split(rest)
		if err != nil {
			return nil, err
		}
		items[i] = item
		rest = r
	}
	return items, nil
}

// SequenceSplitter composes per-position splitters into the single
// splitter DecodeReversedSequence expects, for the common case where a
// reversed sequence's items have different shapes at different wire
// positions (fixed-width scalars interleaved with nested variable-length
// structures). steps run in wire order, one per DecodeReversedSequence
// call.
func SequenceSplitter(steps ...func([]byte) (item []byte, rest []byte, err error)) func([]byte) ([]byte, []byte, error) {
	i := 0
	return func(rest []byte) ([]byte, []byte, error) {
		f := steps[i]
		i++
		return f(rest)
	}
}

// SplitFixed returns a splitter that takes exactly n bytes off the front.
func SplitFixed(n int) func([]byte) ([]byte, []byte, error) {
	return func(rest []byte) ([]byte, []byte, error) {
		if len(rest) < n {
			return nil, nil, dlmserr.New(dlmserr.Codec, "truncated fixed-width field")
		}
		return rest[:n], rest[n:], nil
	}
}

// SplitOptionalFixed returns a splitter for the usage-flag-then-value
// pattern A-XDR uses for optional fields, when the value, if present, is
// exactly valueLen bytes.
func SplitOptionalFixed(valueLen int) func([]byte) ([]byte, []byte, error) {
	return func(rest []byte) ([]byte, []byte, error) {
		if len(rest) < 1 {
			return nil, nil, dlmserr.New(dlmserr.Codec, "truncated optional field flag")
		}
		if rest[0] == 0 {
			return rest[:1], rest[1:], nil
		}
		if len(rest) < 1+valueLen {
			return nil, nil, dlmserr.New(dlmserr.Codec, "truncated optional field value")
		}
		return rest[:1+valueLen], rest[1+valueLen:], nil
	}
}
