// Package hdlc implements HDLC framing and the point-to-point connection
// state machine (§4.3, §4.4) DLMS uses as one of its two link layers, the
// other being Wrapper (see the wrapper package).
package hdlc

import (
	"io"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/cybroslabs/dlms-go/base"
	"github.com/cybroslabs/dlms-go/dlmserr"
)

const (
	defaultMaxInfoField = 128
	maxPackets          = 20
	maxEmptyCycles      = 10
	retransmitTimeout   = 3 * time.Second
	maxRetries          = 3
	closeTimeout        = 3 * time.Second
)

// Settings configures one side of an HDLC connection. Client/Logical/
// Physical form the three-part HDLC address (§3); WindowTx/WindowRx and
// MaxInfoTx/MaxInfoRx are the negotiated link parameters exchanged during
// SNRM/UA.
type Settings struct {
	Logical   uint16
	Physical  uint16
	Client    byte
	MaxInfoTx uint16
	MaxInfoRx uint16
	WindowTx  int
	WindowRx  int
}

func (s *Settings) normalize() error {
	if s.Logical > 0x3fff {
		return dlmserr.New(dlmserr.Protocol, "invalid logical address")
	}
	if s.Physical > 0x3fff {
		return dlmserr.New(dlmserr.Protocol, "invalid physical address")
	}
	if s.Client > 0x7f {
		return dlmserr.New(dlmserr.Protocol, "invalid client address")
	}
	if s.MaxInfoTx == 0 || s.MaxInfoTx > initPacketLength {
		s.MaxInfoTx = initPacketLength
	} else if s.MaxInfoTx < 32 {
		s.MaxInfoTx = 32
	}
	if s.MaxInfoRx == 0 || s.MaxInfoRx > initPacketLength {
		s.MaxInfoRx = initPacketLength
	} else if s.MaxInfoRx < 32 {
		s.MaxInfoRx = 32
	}
	if s.WindowTx < 1 || s.WindowTx > 7 {
		s.WindowTx = 1
	}
	if s.WindowRx < 1 || s.WindowRx > 7 {
		s.WindowRx = 1
	}
	return nil
}

const initPacketLength = 2000

type state int

const (
	stateClosed state = iota
	stateConnecting
	stateConnected
	stateDisconnecting
)

// Connection is an HDLC data-link endpoint over a byte-stream transport,
// usable as a client (Open) or a server (Accept). It implements
// base.Stream so xDLMS APDUs above it are unaware of segmentation and
// windowing.
type Connection struct {
	transport base.Stream
	settings  Settings
	logger    *zap.SugaredLogger

	st         state
	isClient   bool
	fr         *frameReader
	sendWin    *sendWindow
	recvWin    receiveWindow
	stats      Statistics

	writeBuf []byte
	outgoing []byte // accumulated info bytes for the current Write() call

	pendingInfo []byte // leftover info bytes from the last received I-frame not yet consumed by Read
	readEOF     bool
}

// New constructs a client-role connection. Call Open to run SNRM/UA.
func New(transport base.Stream, settings *Settings) (*Connection, error) {
	if err := settings.normalize(); err != nil {
		return nil, err
	}
	return &Connection{transport: transport, settings: *settings, isClient: true}, nil
}

// NewServer constructs a server-role connection. Call Accept to wait for
// and answer an incoming SNRM.
func NewServer(transport base.Stream, settings *Settings) (*Connection, error) {
	if err := settings.normalize(); err != nil {
		return nil, err
	}
	return &Connection{transport: transport, settings: *settings, isClient: false}, nil
}

func (c *Connection) logf(format string, v ...any) {
	if c.logger != nil {
		c.logger.Infof(format, v...)
	}
}

func (c *Connection) SetLogger(logger *zap.SugaredLogger) {
	c.logger = logger
	c.transport.SetLogger(logger)
}
func (c *Connection) SetDeadline(t time.Time)     { c.transport.SetDeadline(t) }
func (c *Connection) SetMaxReceivedBytes(m int64) { c.transport.SetMaxReceivedBytes(m) }
func (c *Connection) GetRxTxBytes() (int64, int64) { return c.transport.GetRxTxBytes() }
func (c *Connection) IsOpen() bool                 { return c.st == stateConnected }

func (c *Connection) Statistics() Statistics { return c.stats }

func (c *Connection) encode(control byte, final bool, info []byte, segmented bool) ([]byte, error) {
	var err error
	c.writeBuf, err = encodeFrame(c.writeBuf, c.settings.Client, c.settings.Logical, c.settings.Physical, control, final, info, segmented)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(c.writeBuf))
	copy(out, c.writeBuf)
	return out, nil
}

func (c *Connection) sendRaw(encoded []byte) error {
	c.stats.FramesSent++
	return c.transport.Write(encoded)
}

func (c *Connection) readFrame(first bool) (frame, error) {
	f, err := c.fr.next(first)
	if err != nil {
		if _, ok := dlmserr.KindOf(err); ok {
			c.stats.FramesRejected++
		}
		return f, err
	}
	c.stats.FramesReceived++
	return f, nil
}

// Open runs the client-side SNRM/UA handshake (§4.4).
func (c *Connection) Open() error {
	if c.st == stateConnected {
		return nil
	}
	if err := c.transport.Open(); err != nil {
		return err
	}
	c.fr = newFrameReader(c.transport, c.settings.Client, c.settings.Logical, c.settings.Physical)

	info := encodeSnrmParams(c.settings.MaxInfoTx, c.settings.MaxInfoRx, c.settings.WindowTx, c.settings.WindowRx)
	enc, err := c.encode(controlSNRM, true, info, false)
	if err != nil {
		return err
	}
	if err := c.sendRaw(enc); err != nil {
		return err
	}

	f, err := c.readFrame(true)
	if err != nil {
		return err
	}
	if f.control != controlUA {
		return dlmserr.Newf(dlmserr.Protocol, "expected UA, got control %#x", f.control)
	}
	if err := c.applySnrmUaParams(f.info); err != nil {
		return err
	}
	c.beginConnected()
	c.logf("hdlc open completed, maxsnd=%d maxrcv=%d windowtx=%d windowrx=%d", c.settings.MaxInfoTx, c.settings.MaxInfoRx, c.settings.WindowTx, c.settings.WindowRx)
	return nil
}

// Accept runs the server-side SNRM/UA handshake: wait for an SNRM addressed
// to settings.Client/Logical/Physical, apply its parameters, and answer
// with UA. The client address is taken from settings, not from the SNRM.
func (c *Connection) Accept() error {
	if c.st == stateConnected {
		return nil
	}
	if err := c.transport.Open(); err != nil {
		return err
	}
	c.fr = newFrameReader(c.transport, c.settings.Client, c.settings.Logical, c.settings.Physical)

	f, err := c.readFrame(true)
	if err != nil {
		return err
	}
	if f.control != controlSNRM {
		return dlmserr.Newf(dlmserr.Protocol, "expected SNRM, got control %#x", f.control)
	}
	if err := c.applySnrmUaParams(f.info); err != nil {
		return err
	}

	info := encodeSnrmParams(c.settings.MaxInfoTx, c.settings.MaxInfoRx, c.settings.WindowTx, c.settings.WindowRx)
	enc, err := c.encode(controlUA, true, info, false)
	if err != nil {
		return err
	}
	if err := c.sendRaw(enc); err != nil {
		return err
	}
	c.beginConnected()
	c.logf("hdlc accept completed, maxsnd=%d maxrcv=%d windowtx=%d windowrx=%d", c.settings.MaxInfoTx, c.settings.MaxInfoRx, c.settings.WindowTx, c.settings.WindowRx)
	return nil
}

func (c *Connection) beginConnected() {
	c.sendWin = newSendWindow(c.settings.WindowTx, retransmitTimeout, maxRetries)
	c.recvWin = receiveWindow{}
	c.stats.Clear()
	c.st = stateConnected
}

// encodeSnrmParams / applySnrmUaParams implement the DLMS-standard TLV
// parameter set exchanged in the SNRM and UA information fields: tag 5 is
// the sender's max info field length, tag 6 the sender's max receive
// length, tags 7/8 the sender's tx/rx window sizes.
func encodeSnrmParams(maxTx, maxRx uint16, windowTx, windowRx int) []byte {
	p := make([]byte, 0, 24)
	p = append(p, 0x81, 0x80, 0x00) // group id + length placeholder
	p = append(p, 0x05, 0x02, byte(maxTx>>8), byte(maxTx))
	p = append(p, 0x06, 0x02, byte(maxRx>>8), byte(maxRx))
	p = append(p, 0x07, 0x04, 0, 0, 0, byte(windowTx))
	p = append(p, 0x08, 0x04, 0, 0, 0, byte(windowRx))
	p[2] = byte(len(p) - 3)
	return p
}

func (c *Connection) applySnrmUaParams(info []byte) error {
	if len(info) < 3 {
		return dlmserr.New(dlmserr.FrameInvalid, "missing snrm/ua parameters")
	}
	if info[0] != 0x81 || info[1] != 0x80 {
		return dlmserr.New(dlmserr.FrameInvalid, "invalid snrm/ua parameter header")
	}
	if len(info) != int(info[2])+3 {
		return dlmserr.New(dlmserr.FrameInvalid, "invalid snrm/ua parameter length")
	}
	for i := 3; i < len(info); {
		n, v, err := readTLV(info[i+1:])
		if err != nil {
			return err
		}
		switch info[i] {
		case 5:
			if v < uint(c.settings.MaxInfoRx) {
				c.settings.MaxInfoRx = uint16(v)
			}
		case 6:
			if v < uint(c.settings.MaxInfoTx) {
				c.settings.MaxInfoTx = uint16(v)
			}
		case 7:
			if v >= 1 && v <= 7 && int(v) < c.settings.WindowRx {
				c.settings.WindowRx = int(v)
			}
		case 8:
			if v >= 1 && v <= 7 && int(v) < c.settings.WindowTx {
				c.settings.WindowTx = int(v)
			}
		default:
			return dlmserr.Newf(dlmserr.FrameInvalid, "invalid snrm/ua tag: %d", info[i])
		}
		i += n + 1
	}
	return nil
}

func readTLV(t []byte) (consumed int, value uint, err error) {
	if len(t) < 2 {
		return 0, 0, dlmserr.New(dlmserr.FrameInvalid, "tlv too short")
	}
	switch t[0] {
	case 1:
		return 2, uint(t[1]), nil
	case 2:
		if len(t) < 3 {
			return 0, 0, dlmserr.New(dlmserr.FrameInvalid, "tlv too short")
		}
		return 3, uint(t[1])<<8 | uint(t[2]), nil
	case 4:
		if len(t) < 5 {
			return 0, 0, dlmserr.New(dlmserr.FrameInvalid, "tlv too short")
		}
		return 5, uint(t[1])<<24 | uint(t[2])<<16 | uint(t[3])<<8 | uint(t[4]), nil
	default:
		return 0, 0, dlmserr.New(dlmserr.FrameInvalid, "invalid tlv length tag")
	}
}

// Write frames src as one or more I-frames, segmenting at MaxInfoTx, using
// the send window (up to WindowTx outstanding frames). Frames are resent
// only when the peer answers with REJ (see drainAcks); no timer triggers a
// retransmission.
func (c *Connection) Write(src []byte) error {
	if c.st != stateConnected {
		return dlmserr.New(dlmserr.Protocol, "connection not open")
	}
	if err := c.drainPending(); err != nil {
		return err
	}
	max := int(c.settings.MaxInfoTx)
	for len(src) > 0 {
		chunk := src
		segmented := false
		if len(chunk) > max {
			chunk = src[:max]
			segmented = true
		}
		src = src[len(chunk):]
		final := !segmented

		for !c.sendWin.canSend() {
			if err := c.pollAck(); err != nil {
				return err
			}
		}
		ns := c.sendWin.peekNextSequence()
		enc, err := c.encode(iControl(ns, c.recvWin.expectedSequence()), final, chunk, segmented)
		if err != nil {
			return err
		}
		if _, err := c.sendWin.addFrame(enc); err != nil {
			return err
		}
		if err := c.sendRaw(enc); err != nil {
			return err
		}
		if final {
			if err := c.drainAcks(); err != nil {
				return err
			}
		}
	}
	return nil
}

// drainPending discards any unread bytes left over from a previous Read
// before starting a new Write: DLMS is half-duplex at this layer, one side
// talks at a time, so a caller that didn't read a response to EOF just
// forfeits the remainder.
func (c *Connection) drainPending() error {
	c.pendingInfo = nil
	c.readEOF = false
	return nil
}

// drainAcks reads frames until every pending sent frame is acknowledged.
// RR acknowledges; REJ resends the pending frames whose retransmit timeout
// has elapsed. No timer triggers a retransmission: a missing
// acknowledgment surfaces as the read error.
func (c *Connection) drainAcks() error {
	for !c.sendWin.isEmpty() {
		if err := c.pollAck(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connection) pollAck() error {
	f, err := c.readFrame(true)
	if err != nil {
		return err
	}
	return c.handleControlFrame(f)
}

func (c *Connection) handleControlFrame(f frame) error {
	switch {
	case isIFrame(f.control):
		return dlmserr.New(dlmserr.Protocol, "unexpected I-frame while waiting for acknowledgment")
	case isRRframe(f.control):
		c.sendWin.acknowledge(nR(f.control))
		return nil
	case isREJframe(f.control):
		c.stats.SequenceErrors++
		for _, enc := range c.sendWin.retransmissions() {
			c.stats.Retransmissions++
			if err := c.sendRaw(enc); err != nil {
				return err
			}
		}
		return nil
	default:
		return dlmserr.Newf(dlmserr.Protocol, "unexpected control frame %#x", f.control)
	}
}

// Read returns decoded I-frame payload, automatically sending RR for
// segmented continuations and reassembling across them.
func (c *Connection) Read(p []byte) (int, error) {
	if c.st != stateConnected {
		return 0, dlmserr.New(dlmserr.Protocol, "connection not open")
	}
	if len(p) == 0 {
		return 0, dlmserr.New(dlmserr.Protocol, "nothing to read")
	}
	n, err := c.readInternal(p)
	if err == io.EOF {
		c.readEOF = true
	}
	return n, err
}

func (c *Connection) readInternal(p []byte) (int, error) {
	if len(c.pendingInfo) > 0 {
		n := copy(p, c.pendingInfo)
		c.pendingInfo = c.pendingInfo[n:]
		return n, nil
	}

	var msg []byte
	for cycle := 0; cycle < maxEmptyCycles; {
		f, err := c.readFrame(true)
		if err != nil {
			return 0, err
		}
		if isIFrame(f.control) {
			if err := c.recvWin.accept(nS(f.control)); err != nil {
				c.stats.SequenceErrors++
				return 0, err
			}
			c.sendWin.acknowledge(nR(f.control))
			msg = append(msg, f.info...)
			if f.segmented {
				if len(f.info) == 0 {
					cycle++
				}
				if err := c.sendRR(); err != nil {
					return 0, err
				}
				continue
			}
			if len(msg) == 0 {
				return 0, io.EOF
			}
			n := copy(p, msg)
			if n < len(msg) {
				c.pendingInfo = append([]byte{}, msg[n:]...)
			}
			return n, nil
		}
		cycle++
		if err := c.handleControlFrame(f); err != nil {
			return 0, err
		}
	}
	return 0, dlmserr.New(dlmserr.Protocol, "too many non-information frames received")
}

func (c *Connection) sendRR() error {
	enc, err := c.encode(rrControl(c.recvWin.expectedSequence()), true, nil, false)
	if err != nil {
		return err
	}
	return c.sendRaw(enc)
}

// Close runs DISC and waits for UA/DM within closeTimeout, then closes the
// transport regardless of whether the peer answered.
func (c *Connection) Close() error {
	if c.st != stateConnected {
		return c.transport.Close()
	}
	c.st = stateDisconnecting
	var discErr error
	enc, err := c.encode(controlDISC, true, nil, false)
	if err != nil {
		discErr = err
	} else if werr := c.sendRaw(enc); werr != nil {
		discErr = werr
	} else {
		c.transport.SetDeadline(deadlineIn(closeTimeout))
		_, _ = c.readFrame(true) // UA or DM, ignored either way
	}
	c.st = stateClosed
	return multierr.Combine(discErr, c.transport.Close())
}

func deadlineIn(d time.Duration) time.Time { return time.Now().Add(d) }

func (c *Connection) Disconnect() error {
	c.st = stateClosed
	return c.transport.Disconnect()
}

var _ base.Stream = (*Connection)(nil)
