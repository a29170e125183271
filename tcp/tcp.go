// Package tcp implements the byte-stream transport contract over a plain
// TCP socket.
package tcp

import (
	"encoding/hex"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cybroslabs/dlms-go/base"
	"github.com/cybroslabs/dlms-go/dlmserr"
	"go.uber.org/zap"
)

type tcp struct {
	hostname        string
	port            int
	logger          *zap.SugaredLogger
	connected       bool
	timeout         time.Duration
	conn            net.Conn
	offset          int
	read            int
	buffer          []byte
	deadline        time.Time
	totalincoming   int64
	totaloutgoing   int64
	currentincoming int64
	maxincoming     int64
}

func New(hostname string, port int, timeout time.Duration) base.Stream {
	return &tcp{
		hostname: hostname,
		port:     port,
		timeout:  timeout,
		buffer:   make([]byte, 2048),
	}
}

// NewFromConn wraps an already-accepted connection (the server side of a
// listener's Accept loop) as a base.Stream. Open is then a no-op.
func NewFromConn(conn net.Conn, timeout time.Duration) base.Stream {
	return &tcp{
		hostname:  conn.RemoteAddr().String(),
		timeout:   timeout,
		conn:      conn,
		connected: true,
		buffer:    make([]byte, 2048),
	}
}

func (t *tcp) logf(format string, v ...any) {
	if t.logger != nil {
		t.logger.Infof(format, v...)
	}
}

func (t *tcp) Close() error {
	return nil // no association at this layer, closing is a no-op
}

func (t *tcp) Open() error {
	if t.connected {
		return nil
	}
	address := net.JoinHostPort(t.hostname, strconv.Itoa(t.port))
	conn, err := net.DialTimeout("tcp", address, t.timeout)
	if err != nil {
		t.logf("Connect to %s failed: %v", address, err)
		return dlmserr.Wrap(dlmserr.Transport, "connect failed", err)
	}
	t.logf("Connected to %s", address)
	t.conn = conn
	t.connected = true
	return nil
}

func (t *tcp) Disconnect() error {
	if t.connected {
		t.connected = false
		if t.conn != nil {
			_ = t.conn.Close()
			t.conn = nil
		}
		t.logf("Disconnected from %s", t.hostname)
		t.logf("Total bytes incoming: %v, outgoing: %v", t.totalincoming, t.totaloutgoing)
	}
	return nil
}

func (t *tcp) IsOpen() bool {
	return t.connected
}

func (t *tcp) SetMaxReceivedBytes(m int64) {
	t.currentincoming = 0
	t.maxincoming = m
}

func (t *tcp) SetDeadline(d time.Time) {
	t.deadline = d
}

func (t *tcp) SetLogger(logger *zap.SugaredLogger) {
	t.logger = logger
}

func (t *tcp) GetRxTxBytes() (int64, int64) {
	return t.totalincoming, t.totaloutgoing
}

func (t *tcp) setcommdeadline() {
	cd := time.Now().Add(t.timeout)
	if t.deadline.IsZero() || cd.Before(t.deadline) {
		_ = t.conn.SetDeadline(cd)
	} else {
		_ = t.conn.SetDeadline(t.deadline)
	}
}

func (t *tcp) Write(src []byte) error {
	if !t.connected {
		return dlmserr.New(dlmserr.Transport, "not connected")
	}

	for len(src) > 0 {
		t.setcommdeadline()
		n, err := t.conn.Write(src)
		if err != nil {
			return dlmserr.Wrap(dlmserr.Transport, "write failed", err)
		}
		t.totaloutgoing += int64(n)

		if t.logger != nil {
			t.logger.Debugf("TX (%s): %6d %s", t.hostname, n, encodeHexString(src[:n]))
		}

		src = src[n:]
	}

	return nil
}

func (t *tcp) Read(p []byte) (n int, err error) {
	if !t.connected {
		return 0, dlmserr.New(dlmserr.Transport, "not connected")
	}
	if len(p) == 0 {
		return 0, dlmserr.New(dlmserr.Protocol, "nothing to read")
	}

	n = len(p)
	rem := t.read - t.offset
	if rem > 0 { // something unread in the buffer
		if n > rem {
			n = rem
		}
		copy(p, t.buffer[t.offset:t.offset+n])
		t.offset += n
		return
	}

	t.setcommdeadline()
	rx, err := t.conn.Read(t.buffer)
	t.totalincoming += int64(rx)
	t.currentincoming += int64(rx)
	if t.maxincoming > 0 && t.currentincoming > t.maxincoming {
		return 0, dlmserr.New(dlmserr.Protocol, "received more than allowed")
	}

	if rx > 0 {
		t.read = rx
		if n > rx {
			n = rx
		}
		copy(p, t.buffer[:n])
		t.offset = n

		if t.logger != nil {
			t.logger.Debugf("RX (%s): %6d %s", t.hostname, rx, encodeHexString(t.buffer[:rx]))
		}
	}

	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, dlmserr.Wrap(dlmserr.Timeout, "read timed out", err)
		}
		return 0, dlmserr.Wrap(dlmserr.Transport, "read failed", err)
	}
	if rx == 0 {
		return 0, io.EOF
	}
	return
}

func encodeHexString(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}
