package security

import (
	"crypto/aes"
	"encoding/binary"

	"github.com/cybroslabs/dlms-go/dlmserr"
)

// WrapKey implements RFC 3394 AES key wrap, used to transport a new
// global unicast/dedicated key encrypted under the current master key
// during key-change services.
func WrapKey(kek []byte, plaintext []byte) ([]byte, error) {
	if len(plaintext)%8 != 0 || len(plaintext) < 16 {
		return nil, dlmserr.New(dlmserr.Protocol, "key wrap input must be a multiple of 8 bytes, at least 16")
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, dlmserr.Wrap(dlmserr.Protocol, "building kek cipher", err)
	}

	n := len(plaintext) / 8
	r := make([][8]byte, n)
	for i := 0; i < n; i++ {
		copy(r[i][:], plaintext[i*8:i*8+8])
	}
	var a [8]byte
	for i := range a {
		a[i] = 0xa6
	}

	buf := make([]byte, 16)
	for j := 0; j < 6; j++ {
		for i := 1; i <= n; i++ {
			copy(buf[:8], a[:])
			copy(buf[8:], r[i-1][:])
			block.Encrypt(buf, buf)
			t := uint64(n*j + i)
			var tb [8]byte
			copy(tb[:], buf[:8])
			binary.BigEndian.PutUint64(tb[:], binary.BigEndian.Uint64(tb[:])^t)
			copy(a[:], tb[:])
			copy(r[i-1][:], buf[8:])
		}
	}

	out := make([]byte, 8+len(plaintext))
	copy(out[:8], a[:])
	for i := 0; i < n; i++ {
		copy(out[8+i*8:], r[i][:])
	}
	return out, nil
}

// UnwrapKey is WrapKey's inverse.
func UnwrapKey(kek []byte, wrapped []byte) ([]byte, error) {
	if len(wrapped)%8 != 0 || len(wrapped) < 24 {
		return nil, dlmserr.New(dlmserr.Codec, "key unwrap input must be a multiple of 8 bytes, at least 24")
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, dlmserr.Wrap(dlmserr.Protocol, "building kek cipher", err)
	}

	n := len(wrapped)/8 - 1
	var a [8]byte
	copy(a[:], wrapped[:8])
	r := make([][8]byte, n)
	for i := 0; i < n; i++ {
		copy(r[i][:], wrapped[8+i*8:8+i*8+8])
	}

	buf := make([]byte, 16)
	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			t := uint64(n*j + i)
			var tb [8]byte
			copy(tb[:], a[:])
			binary.BigEndian.PutUint64(tb[:], binary.BigEndian.Uint64(tb[:])^t)
			copy(buf[:8], tb[:])
			copy(buf[8:], r[i-1][:])
			block.Decrypt(buf, buf)
			copy(a[:], buf[:8])
			copy(r[i-1][:], buf[8:])
		}
	}

	for _, b := range a {
		if b != 0xa6 {
			return nil, dlmserr.New(dlmserr.AuthFailed, "key unwrap integrity check failed")
		}
	}
	out := make([]byte, n*8)
	for i := 0; i < n; i++ {
		copy(out[i*8:], r[i][:])
	}
	return out, nil
}

// DeriveKDFKey implements the DLMS key derivation function used to turn a
// password or shared secret into a usable key material block via
// repeated AES-ECB encryption of a fixed "other info" structure, per the
// standard's KDF profile for GMAC-based key establishment.
func DeriveKDFKey(key []byte, otherInfo []byte, outputLen int) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, dlmserr.Wrap(dlmserr.Protocol, "building kdf cipher", err)
	}
	blockSize := block.BlockSize()
	out := make([]byte, 0, outputLen+blockSize)
	counter := uint32(1)
	buf := make([]byte, blockSize)
	for len(out) < outputLen {
		binary.BigEndian.PutUint32(buf, counter)
		input := append(append([]byte{}, buf[:4]...), otherInfo...)
		for len(input) < blockSize {
			input = append(input, 0)
		}
		enc := make([]byte, blockSize)
		block.Encrypt(enc, input[:blockSize])
		out = append(out, enc...)
		counter++
	}
	return out[:outputLen], nil
}
