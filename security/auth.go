package security

import (
	"bytes"
	"crypto/rand"

	"github.com/cybroslabs/dlms-go/base"
	"github.com/cybroslabs/dlms-go/dlmserr"
)

// ChallengeLength is the random challenge size used by both LLS and
// HLS-GMAC (§4.7).
const ChallengeLength = 16

// NewChallenge returns a fresh random challenge value.
func NewChallenge() ([]byte, error) {
	c := make([]byte, ChallengeLength)
	if _, err := rand.Read(c); err != nil {
		return nil, dlmserr.Wrap(dlmserr.Protocol, "generating challenge", err)
	}
	return c, nil
}

// ClientResponse computes the value the client presents to the server
// during AARQ/the 4-pass exchange: the password for LLS, the GMAC tag
// over stoc for HLS-GMAC.
func (s *Suite) ClientResponse(sc byte, fc uint32, stoc []byte) ([]byte, error) {
	switch s.settings.Mechanism {
	case base.AuthenticationLow:
		return append([]byte{}, s.settings.Password...), nil
	case base.AuthenticationHighGMAC:
		return s.GmacOf(sc, fc, s.settings.ClientTitle, stoc)
	default:
		return nil, dlmserr.Newf(dlmserr.AuthFailed, "unsupported authentication mechanism %v", s.settings.Mechanism)
	}
}

// ServerResponse computes the value the server presents back during the
// 4-pass HLS-GMAC exchange (or the LLS echo, which has none).
func (s *Suite) ServerResponse(sc byte, fc uint32, ctos []byte) ([]byte, error) {
	switch s.settings.Mechanism {
	case base.AuthenticationLow:
		return nil, nil
	case base.AuthenticationHighGMAC:
		return s.GmacOf(sc, fc, s.settings.ServerTitle, ctos)
	default:
		return nil, dlmserr.Newf(dlmserr.AuthFailed, "unsupported authentication mechanism %v", s.settings.Mechanism)
	}
}

// VerifyClientResponse is the server-side check of what ClientResponse
// produced.
func (s *Suite) VerifyClientResponse(sc byte, fc uint32, stoc []byte, response []byte) (bool, error) {
	switch s.settings.Mechanism {
	case base.AuthenticationLow:
		return bytes.Equal(response, s.settings.Password), nil
	case base.AuthenticationHighGMAC:
		want, err := s.GmacOf(sc, fc, s.settings.ClientTitle, stoc)
		if err != nil {
			return false, err
		}
		return bytes.Equal(response, want), nil
	default:
		return false, dlmserr.Newf(dlmserr.AuthFailed, "unsupported authentication mechanism %v", s.settings.Mechanism)
	}
}

// VerifyServerResponse is the client-side check of what ServerResponse
// produced.
func (s *Suite) VerifyServerResponse(sc byte, fc uint32, ctos []byte, response []byte) (bool, error) {
	switch s.settings.Mechanism {
	case base.AuthenticationLow:
		return true, nil
	case base.AuthenticationHighGMAC:
		want, err := s.GmacOf(sc, fc, s.settings.ServerTitle, ctos)
		if err != nil {
			return false, err
		}
		return bytes.Equal(response, want), nil
	default:
		return false, dlmserr.Newf(dlmserr.AuthFailed, "unsupported authentication mechanism %v", s.settings.Mechanism)
	}
}
