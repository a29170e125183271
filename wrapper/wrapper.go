// Package wrapper implements the DLMS Wrapper protocol (§4.5): a fixed
// 8-octet header framing for DLMS messages over TCP/IP, the alternative
// to HDLC.
//
// Header: version (uint16, 0x0001), source wPort (uint16), destination
// wPort (uint16), length (uint16), followed by length payload octets. No
// segmentation and no LLC prefix.
package wrapper

import (
	"io"
	"time"

	"github.com/cybroslabs/dlms-go/base"
	"github.com/cybroslabs/dlms-go/dlmserr"
	"go.uber.org/zap"
)

const headerLength = 8
const wrapperVersion = 0x0001
const maxPayload = 65535

type wrapper struct {
	transport   base.Stream
	logger      *zap.SugaredLogger
	source      uint16
	destination uint16
	buffer      []byte
	remaining   int
	expresp     bool
	towrite     int
	server      bool // Read-request/Write-response order instead of Write-request/Read-response
}

// New wraps transport in the DLMS Wrapper framing, identifying this side
// by source and the peer by destination (wPort addresses). Write buffers
// a request; the following Read flushes it and reads the reply, the
// half-duplex call pattern a DLMS client drives.
func New(transport base.Stream, source uint16, destination uint16) base.Stream {
	return &wrapper{
		transport:   transport,
		source:      source,
		destination: destination,
		buffer:      make([]byte, 2048),
	}
}

// NewServer wraps an accepted connection the opposite way round: Read
// waits for the next request header with nothing buffered to flush
// first, and Write sends the response immediately rather than deferring
// it to the next Read. destination (the peer's wPort) is learned from
// each incoming frame rather than fixed at construction, since it isn't
// known until the client's first frame arrives.
func NewServer(transport base.Stream, source uint16) base.Stream {
	return &wrapper{
		transport: transport,
		source:    source,
		server:    true,
		buffer:    make([]byte, 2048),
	}
}

func (w *wrapper) logf(format string, v ...any) {
	if w.logger != nil {
		w.logger.Infof(format, v...)
	}
}

func (w *wrapper) Close() error      { return w.transport.Close() }
func (w *wrapper) Disconnect() error { return w.transport.Disconnect() }
func (w *wrapper) IsOpen() bool      { return w.transport.IsOpen() }

func (w *wrapper) Open() error {
	w.logf("opening wrapper source=%d destination=%d", w.source, w.destination)
	return w.transport.Open()
}

func (w *wrapper) SetMaxReceivedBytes(m int64) { w.transport.SetMaxReceivedBytes(m) }
func (w *wrapper) SetDeadline(t time.Time)     { w.transport.SetDeadline(t) }

func (w *wrapper) SetLogger(logger *zap.SugaredLogger) {
	w.logger = logger
	w.transport.SetLogger(logger)
}

func (w *wrapper) GetRxTxBytes() (int64, int64) { return w.transport.GetRxTxBytes() }

func (w *wrapper) Write(src []byte) error {
	if len(src) == 0 {
		return nil
	}
	if w.towrite-headerLength+len(src) > maxPayload {
		return dlmserr.Newf(dlmserr.Protocol, "wrapper payload too big: %d > %d", w.towrite-headerLength+len(src), maxPayload)
	}

	for w.remaining > 0 { // drain a response the caller never fully read
		n, err := w.transport.Read(w.buffer)
		w.remaining -= n
		if err != nil {
			return err
		}
		if n == 0 {
			return dlmserr.New(dlmserr.Transport, "no data read while draining")
		}
	}

	if w.towrite == 0 {
		w.buffer[0] = byte(wrapperVersion >> 8)
		w.buffer[1] = byte(wrapperVersion)
		w.buffer[2] = byte(w.source >> 8)
		w.buffer[3] = byte(w.source)
		w.buffer[4] = byte(w.destination >> 8)
		w.buffer[5] = byte(w.destination)
		w.towrite = headerLength
	}

	if w.towrite+len(src) > len(w.buffer) {
		tmp := make([]byte, w.towrite+len(src))
		copy(tmp, w.buffer[:w.towrite])
		w.buffer = tmp
	}
	copy(w.buffer[w.towrite:], src)
	w.towrite += len(src)
	w.expresp = true
	if w.server {
		return w.flush()
	}
	return nil
}

func (w *wrapper) flush() error {
	if w.towrite == 0 {
		return dlmserr.New(dlmserr.Protocol, "nothing to flush")
	}
	plen := w.towrite - headerLength
	w.buffer[6] = byte(plen >> 8)
	w.buffer[7] = byte(plen)
	if err := w.transport.Write(w.buffer[:w.towrite]); err != nil {
		return err
	}
	w.towrite = 0
	return nil
}

func (w *wrapper) Read(p []byte) (n int, err error) {
	if w.expresp || (w.server && w.remaining == 0) {
		if w.expresp {
			if err = w.flush(); err != nil {
				return
			}
		}
		if _, err = io.ReadFull(w.transport, w.buffer[:headerLength]); err != nil {
			return
		}
		version := uint16(w.buffer[0])<<8 | uint16(w.buffer[1])
		if version != wrapperVersion {
			return 0, dlmserr.Newf(dlmserr.FrameInvalid, "invalid wrapper version %04x", version)
		}
		rsrc := uint16(w.buffer[2])<<8 | uint16(w.buffer[3])
		rdest := uint16(w.buffer[4])<<8 | uint16(w.buffer[5])
		if w.server {
			w.destination = rsrc // reply to whichever wPort this request came from
		} else if rsrc != w.destination || rdest != w.source {
			return 0, dlmserr.New(dlmserr.FrameInvalid, "wrapper source/destination mismatch")
		}
		w.remaining = int(uint16(w.buffer[6])<<8 | uint16(w.buffer[7]))
		w.expresp = false
	}

	n = len(p)
	if n == 0 {
		return 0, dlmserr.New(dlmserr.Protocol, "nothing to read")
	}
	if w.remaining == 0 {
		return 0, io.EOF
	}
	if n > w.remaining {
		n = w.remaining
	}
	n, err = io.ReadFull(w.transport, p[:n])
	w.remaining -= n
	return
}
