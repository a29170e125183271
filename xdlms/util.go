package xdlms

import (
	"bytes"
	"io"

	"github.com/cybroslabs/dlms-go/dlmserr"
)

func readFull(src io.Reader, p []byte) (int, error) {
	n, err := io.ReadFull(src, p)
	if err != nil {
		return n, dlmserr.Wrap(dlmserr.Codec, "reading apdu field", err)
	}
	return n, nil
}

func readByte(src io.Reader, out *byte) error {
	var b [1]byte
	if _, err := readFull(src, b[:]); err != nil {
		return err
	}
	*out = b[0]
	return nil
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func writeUint32(dst *bytes.Buffer, v uint32) {
	dst.WriteByte(byte(v >> 24))
	dst.WriteByte(byte(v >> 16))
	dst.WriteByte(byte(v >> 8))
	dst.WriteByte(byte(v))
}
