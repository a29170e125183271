// Package llc prepends/strips the 3-octet LLC header DLMS requires on top
// of HDLC information fields: E6 E6 00 client->server, E6 E7 00
// server->client (§4.4).
package llc

import (
	"io"
	"time"

	"github.com/cybroslabs/dlms-go/base"
	"github.com/cybroslabs/dlms-go/dlmserr"
	"go.uber.org/zap"
)

var (
	requestHeader  = [3]byte{0xe6, 0xe6, 0x00}
	responseHeader = [3]byte{0xe6, 0xe7, 0x00}
)

type llc struct {
	transport base.Stream
	logger    *zap.SugaredLogger
	isClient  bool
	state     int // 0 start, 1 writing, 2 reading
}

// New wraps transport with the LLC prefix. isClient selects which header
// this side writes (and which one it expects on receive is the other).
func New(transport base.Stream, isClient bool) base.Stream {
	return &llc{transport: transport, isClient: isClient}
}

func (l *llc) Close() error      { return l.transport.Close() }
func (l *llc) Disconnect() error { return l.transport.Disconnect() }
func (l *llc) IsOpen() bool      { return l.transport.IsOpen() }
func (l *llc) Open() error       { return l.transport.Open() }

func (l *llc) writeHeader() [3]byte {
	if l.isClient {
		return requestHeader
	}
	return responseHeader
}

func (l *llc) readHeader() [3]byte {
	if l.isClient {
		return responseHeader
	}
	return requestHeader
}

func (l *llc) Read(p []byte) (n int, err error) {
	if l.state == 2 {
		return l.transport.Read(p)
	}
	l.state = 2
	var hdr [3]byte
	if _, err = io.ReadFull(l.transport, hdr[:]); err != nil {
		return
	}
	if hdr != l.readHeader() {
		return 0, dlmserr.New(dlmserr.FrameInvalid, "invalid LLC header")
	}
	return l.transport.Read(p)
}

func (l *llc) Write(src []byte) error {
	if l.state == 1 {
		return l.transport.Write(src)
	}
	l.state = 1
	hdr := l.writeHeader()
	if err := l.transport.Write(hdr[:]); err != nil {
		return err
	}
	return l.transport.Write(src)
}

func (l *llc) SetMaxReceivedBytes(m int64) { l.transport.SetMaxReceivedBytes(m) }
func (l *llc) SetDeadline(t time.Time)     { l.transport.SetDeadline(t) }

func (l *llc) SetLogger(logger *zap.SugaredLogger) {
	l.logger = logger
	l.transport.SetLogger(logger)
}

func (l *llc) GetRxTxBytes() (int64, int64) { return l.transport.GetRxTxBytes() }
