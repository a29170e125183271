// Package security implements the xDLMS security layer (§4.6): AES-GCM
// ciphering of APDUs keyed by security-control byte, system-title and
// frame-counter, plus the authentication-mechanism hashing HLS relies on
// (§4.7) and frame-counter replay protection.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"

	"github.com/cybroslabs/dlms-go/base"
	"github.com/cybroslabs/dlms-go/dlmserr"
)

const TagLength = 12

// SecurityControl bits, §4.6.
const (
	ScAuthentication byte = 0x10
	ScEncryption     byte = 0x20
	ScCompression    byte = 0x80
)

// Settings configures one Suite instance for one association direction.
type Settings struct {
	Mechanism         base.Authentication
	EncryptionKey     []byte
	AuthenticationKey []byte
	Password          []byte
	ClientTitle       []byte
	ServerTitle       []byte
	CtoS              []byte
	StoC              []byte
}

func (s *Settings) Validate() error {
	switch s.Mechanism {
	case base.AuthenticationHighGMAC:
		if len(s.EncryptionKey) != 16 && len(s.EncryptionKey) != 32 {
			return dlmserr.New(dlmserr.Protocol, "invalid encryption key length")
		}
		if len(s.AuthenticationKey) == 0 {
			return dlmserr.New(dlmserr.Protocol, "missing authentication key")
		}
	}
	return nil
}

// Suite performs AES-GCM ciphering for one association, using the nist
// cipher.AEAD over the security-control byte, a 12-octet IV of
// system-title‖frame-counter, and the authentication key as additional
// authenticated data.
type Suite struct {
	settings Settings
	aead     cipher.AEAD
	aad      []byte
}

func NewSuite(settings *Settings) (*Suite, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	s := &Suite{settings: *settings}
	if settings.Mechanism != base.AuthenticationHighGMAC {
		return s, nil
	}
	block, err := aes.NewCipher(settings.EncryptionKey)
	if err != nil {
		return nil, dlmserr.Wrap(dlmserr.Protocol, "building aes cipher", err)
	}
	aead, err := cipher.NewGCMWithTagSize(block, TagLength)
	if err != nil {
		return nil, dlmserr.Wrap(dlmserr.Protocol, "building gcm aead", err)
	}
	s.aead = aead
	s.aad = make([]byte, 1+len(settings.AuthenticationKey))
	copy(s.aad[1:], settings.AuthenticationKey)
	return s, nil
}

func (s *Suite) iv(title []byte, fc uint32) [12]byte {
	var iv [12]byte
	copy(iv[:8], title)
	binary.BigEndian.PutUint32(iv[8:], fc)
	return iv
}

// Encrypt ciphers/authenticates apdu according to sc, using title as the
// system-title half of the IV (the sender's own title).
func (s *Suite) Encrypt(sc byte, fc uint32, title []byte, apdu []byte) ([]byte, error) {
	if s.aead == nil {
		return apdu, nil
	}
	iv := s.iv(title, fc)
	switch sc & 0x30 {
	case ScAuthentication:
		aad := make([]byte, len(s.aad)+len(apdu))
		aad[0] = sc
		copy(aad[1:], s.aad[1:])
		copy(aad[len(s.aad):], apdu)
		tag := s.aead.Seal(nil, iv[:], nil, aad)
		out := append(append([]byte{}, apdu...), tag...)
		return out, nil
	case ScAuthentication | ScEncryption:
		s.aad[0] = sc
		return s.aead.Seal(nil, iv[:], apdu, s.aad), nil
	default:
		return nil, dlmserr.Newf(dlmserr.Protocol, "unsupported security control %#x", sc)
	}
}

// Decrypt is Encrypt's inverse, validating the GMAC tag and returning the
// plaintext.
func (s *Suite) Decrypt(sc byte, fc uint32, title []byte, apdu []byte) ([]byte, error) {
	if s.aead == nil {
		return apdu, nil
	}
	if len(apdu) < TagLength {
		return nil, dlmserr.New(dlmserr.Codec, "ciphered data too short for tag")
	}
	iv := s.iv(title, fc)
	switch sc & 0x30 {
	case ScAuthentication:
		plain := apdu[:len(apdu)-TagLength]
		aad := make([]byte, len(s.aad)+len(plain))
		aad[0] = sc
		copy(aad[1:], s.aad[1:])
		copy(aad[len(s.aad):], plain)
		if _, err := s.aead.Open(nil, iv[:], apdu[len(apdu)-TagLength:], aad); err != nil {
			return nil, dlmserr.Wrap(dlmserr.AuthFailed, "gmac tag verification failed", err)
		}
		return plain, nil
	case ScAuthentication | ScEncryption:
		s.aad[0] = sc
		out, err := s.aead.Open(nil, iv[:], apdu, s.aad)
		if err != nil {
			return nil, dlmserr.Wrap(dlmserr.AuthFailed, "gcm tag verification failed", err)
		}
		return out, nil
	default:
		return nil, dlmserr.Newf(dlmserr.Protocol, "unsupported security control %#x", sc)
	}
}

// GmacOf computes the HLS-GMAC challenge-response value: the tag produced
// encrypting data (stoc on the server side, ctos on the client side) under
// sc/fc with title as the sender's own system-title.
func (s *Suite) GmacOf(sc byte, fc uint32, title []byte, data []byte) ([]byte, error) {
	enc, err := s.Encrypt(sc, fc, title, data)
	if err != nil {
		return nil, err
	}
	if len(enc) < TagLength {
		return nil, dlmserr.New(dlmserr.Protocol, "encrypted data too short for tag")
	}
	return enc[len(enc)-TagLength:], nil
}
