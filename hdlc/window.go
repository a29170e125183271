package hdlc

import (
	"time"

	"k8s.io/utils/clock"

	"github.com/cybroslabs/dlms-go/dlmserr"
)

// pendingFrame is a sent I-frame awaiting acknowledgment.
type pendingFrame struct {
	sequence byte
	sent     time.Time
	retries  int
	encoded  []byte
}

// sendWindow implements the go-back-N sliding window on the send side:
// up to windowSize unacknowledged I-frames may be outstanding, each
// retransmitted on timeout up to maxRetries times.
type sendWindow struct {
	pending      []pendingFrame
	windowSize   int
	nextSequence byte
	timeout      time.Duration
	maxRetries   int
	clock        clock.Clock
}

func newSendWindow(windowSize int, timeout time.Duration, maxRetries int) *sendWindow {
	return newSendWindowWithClock(windowSize, timeout, maxRetries, clock.RealClock{})
}

// newSendWindowWithClock takes an injectable clock so retransmission
// timing can be driven deterministically in tests instead of depending
// on wall-clock sleeps.
func newSendWindowWithClock(windowSize int, timeout time.Duration, maxRetries int, c clock.Clock) *sendWindow {
	if windowSize < 1 || windowSize > 7 {
		windowSize = 1
	}
	return &sendWindow{windowSize: windowSize, timeout: timeout, maxRetries: maxRetries, clock: c}
}

func (w *sendWindow) canSend() bool {
	return len(w.pending) < w.windowSize
}

func (w *sendWindow) addFrame(encoded []byte) (byte, error) {
	if !w.canSend() {
		return 0, dlmserr.Newf(dlmserr.Protocol, "send window full: %d pending (size %d)", len(w.pending), w.windowSize)
	}
	seq := w.nextSequence
	w.pending = append(w.pending, pendingFrame{sequence: seq, sent: w.clock.Now(), encoded: encoded})
	w.nextSequence = (w.nextSequence + 1) & 7
	return seq, nil
}

// acknowledge removes every pending frame with sequence < ackSequence,
// handling 3-bit wrap-around the way the oldest outstanding sequence
// indicates it.
func (w *sendWindow) acknowledge(ackSequence byte) int {
	if len(w.pending) == 0 {
		return 0
	}
	oldest := w.pending[0].sequence
	wrapped := ackSequence < oldest

	acked := 0
	kept := w.pending[:0]
	for _, p := range w.pending {
		var ack bool
		if wrapped {
			ack = p.sequence >= oldest || p.sequence < ackSequence
		} else {
			ack = p.sequence < ackSequence
		}
		if ack {
			acked++
		} else {
			kept = append(kept, p)
		}
	}
	w.pending = kept
	return acked
}

// retransmissions returns the encoded bytes of every pending frame whose
// retransmit timeout has elapsed, bumping its retry count. A frame that
// has reached maxRetries is skipped and stays pending.
func (w *sendWindow) retransmissions() [][]byte {
	var out [][]byte
	now := w.clock.Now()
	for i := range w.pending {
		p := &w.pending[i]
		if now.Sub(p.sent) <= w.timeout {
			continue
		}
		if p.retries >= w.maxRetries {
			continue
		}
		p.retries++
		p.sent = now
		out = append(out, p.encoded)
	}
	return out
}

func (w *sendWindow) oldestSequence() (byte, bool) {
	if len(w.pending) == 0 {
		return 0, false
	}
	return w.pending[0].sequence, true
}

func (w *sendWindow) peekNextSequence() byte { return w.nextSequence }
func (w *sendWindow) isEmpty() bool          { return len(w.pending) == 0 }

func (w *sendWindow) reset() {
	w.pending = nil
	w.nextSequence = 0
}

// receiveWindow tracks the next expected N(S), rejecting anything else.
type receiveWindow struct {
	expected byte
}

func (w *receiveWindow) isExpected(sequence byte) bool { return sequence == w.expected }

func (w *receiveWindow) accept(sequence byte) error {
	if !w.isExpected(sequence) {
		return dlmserr.Newf(dlmserr.FrameInvalid, "sequence mismatch: expected %d, got %d", w.expected, sequence)
	}
	w.expected = (w.expected + 1) & 7
	return nil
}

func (w *receiveWindow) expectedSequence() byte { return w.expected }

func (w *receiveWindow) reset() { w.expected = 0 }
