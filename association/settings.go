// Package association implements the application-association state
// machine on top of ACSE and xDLMS Initiate (§4.8, §4.10): the client
// side opens/authenticates/releases an association, the server side
// accepts one, both sharing the same state transition table and the
// duplicate-association rule a real DLMS server enforces.
package association

import (
	"github.com/cybroslabs/dlms-go/base"
	"github.com/cybroslabs/dlms-go/dlmserr"
	"github.com/cybroslabs/dlms-go/security"
)

// Settings configures the client side of an association. ClientSystemTitle
// and ServerSystemTitle are only used when Authentication selects
// HLS-GMAC.
type Settings struct {
	ApplicationContext base.ApplicationContext
	Authentication      base.Authentication
	Password            []byte

	ClientSystemTitle []byte
	ServerSystemTitle []byte
	EncryptionKey     []byte
	AuthenticationKey []byte

	Conformance uint32
	MaxPduSize  uint16
	DlmsVersion byte

	DedicatedKey []byte
}

func (s *Settings) securitySettings() *security.Settings {
	return &security.Settings{
		Mechanism:         s.Authentication,
		EncryptionKey:     s.EncryptionKey,
		AuthenticationKey: s.AuthenticationKey,
		Password:          s.Password,
		ClientTitle:       s.ClientSystemTitle,
		ServerTitle:       s.ServerSystemTitle,
	}
}

// Validate checks the parameter combinations Open relies on before ever
// touching the transport.
func (s *Settings) Validate() error {
	if s.Authentication == base.AuthenticationHighGMAC && len(s.ClientSystemTitle) == 0 {
		return dlmserr.New(dlmserr.Protocol, "HLS-GMAC requires a client system title")
	}
	return nil
}
