// Package base defines the byte-stream transport contract every framing
// layer (HDLC, Wrapper, LLC) is built on top of.
package base

import (
	"time"

	"go.uber.org/zap"
)

// Stream is a full-duplex, reliable-in-order octet channel. Implementations
// are TCP sockets, serial ports, or test fakes; nothing above this layer
// assumes atomic message boundaries.
type Stream interface {
	Close() error
	Open() error
	Disconnect() error // hard end of connection without any unassociation
	IsOpen() bool
	SetLogger(logger *zap.SugaredLogger)
	SetDeadline(t time.Time)     // zero time means no deadline
	SetMaxReceivedBytes(m int64) // every call resets the current counter
	GetRxTxBytes() (rx int64, tx int64)
	Read(p []byte) (n int, err error)
	Write(src []byte) error // always writes everything or returns an error
}
