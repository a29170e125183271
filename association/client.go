package association

import (
	"time"

	"go.uber.org/zap"

	"github.com/cybroslabs/dlms-go/acse"
	"github.com/cybroslabs/dlms-go/base"
	"github.com/cybroslabs/dlms-go/dlmserr"
	"github.com/cybroslabs/dlms-go/security"
	"github.com/cybroslabs/dlms-go/xdlms"
)

const maxAPDU = 1 << 18

// Client drives the client side of an application association: Open()
// takes a transport from Inactive to Associated via AARQ/AARE,
// Close()/Disconnect() bring it back down. For HLS-GMAC, Open sends the
// client challenge in the AARQ and runs no further authentication pass
// (see authenticateHLS).
type Client struct {
	transport base.Stream
	settings  *Settings
	logger    *zap.SugaredLogger

	st State

	suite *security.Suite
	fc    security.FrameCounter

	Conformance uint32 // negotiated (server-returned) conformance block
	MaxPduSize  uint16
	VAAName     uint16
}

func NewClient(transport base.Stream, settings *Settings) *Client {
	return &Client{transport: transport, settings: settings, st: StateInactive}
}

func (c *Client) SetLogger(logger *zap.SugaredLogger) { c.logger = logger; c.transport.SetLogger(logger) }

func (c *Client) State() State { return c.st }

func (c *Client) Open() error {
	if c.st != StateInactive {
		return dlmserr.New(dlmserr.AlreadyAssociated, "client already open")
	}
	if err := c.settings.Validate(); err != nil {
		return err
	}
	if err := c.transport.Open(); err != nil {
		return err
	}
	c.st = StateIdle

	if c.settings.Authentication != base.AuthenticationNone {
		suite, err := security.NewSuite(c.settings.securitySettings())
		if err != nil {
			return err
		}
		c.suite = suite
	}

	init := &xdlms.InitiateRequest{
		DedicatedKey: c.settings.DedicatedKey,
		DlmsVersion:  c.settings.DlmsVersion,
		Conformance:  c.settings.Conformance,
		MaxPduSize:   c.settings.MaxPduSize,
	}
	userInfo := xdlms.EncodeInitiateRequest(init)

	req := &acse.AARQ{
		ApplicationContext: c.settings.ApplicationContext,
		Authentication:     c.settings.Authentication,
		UserInformation:    userInfo,
	}

	var ctos []byte
	switch c.settings.Authentication {
	case base.AuthenticationLow:
		req.AuthenticationValue = c.settings.Password
	case base.AuthenticationHighGMAC:
		req.CallingAPTitle = c.settings.ClientSystemTitle
		challenge, err := security.NewChallenge()
		if err != nil {
			return err
		}
		ctos = challenge
		req.AuthenticationValue = ctos
	}

	aarq, err := acse.Encode(req)
	if err != nil {
		return err
	}
	c.st = StateAssociationPending
	if err := c.transport.Write(aarq); err != nil {
		return err
	}

	buf := make([]byte, maxAPDU)
	n, err := c.transport.Read(buf)
	if err != nil {
		c.st = StateIdle
		return err
	}
	aare, err := acse.DecodeAARE(buf[:n])
	if err != nil {
		c.st = StateIdle
		return err
	}
	if aare.Result != base.AssociationResultAccepted {
		c.st = StateIdle
		return dlmserr.Rejected(int(aare.Diagnostic), "association rejected")
	}

	initResp, err := xdlms.DecodeInitiateResponse(aare.UserInformation)
	if err != nil {
		c.st = StateIdle
		return err
	}
	c.Conformance = initResp.Conformance
	c.MaxPduSize = initResp.MaxPduSize
	c.VAAName = initResp.VAAName

	if c.settings.Authentication == base.AuthenticationHighGMAC {
		if len(c.settings.ServerSystemTitle) == 0 && len(aare.RespondingAPTitle) > 0 {
			c.settings.ServerSystemTitle = aare.RespondingAPTitle
		}
		if err := c.authenticateHLS(ctos); err != nil {
			c.st = StateIdle
			return err
		}
	}

	c.st = StateAssociated
	return nil
}

// authenticateHLS checks only that the suite negotiated for this
// association can compute a client GMAC response (here over ctos); the
// result is discarded and nothing is sent. No reply_to_HLS_authentication
// exchange takes place: the server's response to ctos is never received
// or verified, and the server's stoc is never answered. Server.acceptHLS
// is the server-side counterpart during Accept.
func (c *Client) authenticateHLS(ctos []byte) error {
	if c.suite == nil {
		return dlmserr.New(dlmserr.AuthFailed, "missing security suite for HLS-GMAC")
	}
	if _, err := c.suite.ClientResponse(security.ScAuthentication, c.fc.Next(), ctos); err != nil {
		return err
	}
	return nil
}

func (c *Client) Close() error {
	if c.st != StateAssociated {
		return c.transport.Close()
	}
	c.st = StateReleasePending
	rlrq := acse.EncodeRLRQ(base.ReleaseRequestReasonNormal)
	if err := c.transport.Write(rlrq); err != nil {
		c.st = StateInactive
		return c.transport.Close()
	}
	buf := make([]byte, maxAPDU)
	deadline := time.Now().Add(3 * time.Second)
	c.transport.SetDeadline(deadline)
	_, _ = c.transport.Read(buf) // RLRE, best effort
	c.transport.SetDeadline(time.Time{})
	c.st = StateInactive
	return c.transport.Close()
}

func (c *Client) Disconnect() error {
	c.st = StateInactive
	return c.transport.Disconnect()
}

// Send writes one xDLMS APDU and returns the association's raw response
// bytes, applying ciphering when the negotiated application context
// requires it.
func (c *Client) Send(apdu []byte) ([]byte, error) {
	if c.st != StateAssociated {
		return nil, dlmserr.New(dlmserr.Protocol, "association not established")
	}
	out := apdu
	if c.suite != nil && (c.settings.ApplicationContext == base.ApplicationContextLNCiphering || c.settings.ApplicationContext == base.ApplicationContextSNCiphering) {
		ciphered, err := c.suite.Encrypt(security.ScAuthentication|security.ScEncryption, c.fc.Next(), c.settings.ClientSystemTitle, apdu)
		if err != nil {
			return nil, err
		}
		out = ciphered
	}
	if err := c.transport.Write(out); err != nil {
		return nil, err
	}
	buf := make([]byte, maxAPDU)
	n, err := c.transport.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}
