package hdlc

import (
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"
)

func TestSendWindowCanSendRespectsSize(t *testing.T) {
	w := newSendWindow(2, time.Second, 3)
	if !w.canSend() {
		t.Fatal("expected an empty window to accept a frame")
	}
	if _, err := w.addFrame([]byte("a")); err != nil {
		t.Fatalf("addFrame: %v", err)
	}
	if _, err := w.addFrame([]byte("b")); err != nil {
		t.Fatalf("addFrame: %v", err)
	}
	if w.canSend() {
		t.Fatal("expected a full window to reject further frames")
	}
	if _, err := w.addFrame([]byte("c")); err == nil {
		t.Fatal("expected addFrame on a full window to fail")
	}
}

func TestSendWindowSequenceWrapsAt8(t *testing.T) {
	w := newSendWindow(1, time.Second, 3)
	var last byte
	for i := 0; i < 9; i++ {
		seq, err := w.addFrame([]byte{byte(i)})
		if err != nil {
			t.Fatalf("addFrame: %v", err)
		}
		last = seq
		if w.acknowledge((seq+1)&7) != 1 {
			t.Fatalf("expected acknowledge to drain the single outstanding frame at sequence %d", seq)
		}
	}
	if last != 0 {
		t.Fatalf("expected the 9th frame to wrap back to sequence 0, got %d", last)
	}
}

func TestSendWindowAcknowledgeWithWrapAround(t *testing.T) {
	w := newSendWindow(7, time.Second, 3)
	// drive nextSequence to 6 so the two outstanding frames straddle the 7->0 wrap.
	for i := 0; i < 6; i++ {
		if _, err := w.addFrame([]byte{byte(i)}); err != nil {
			t.Fatalf("addFrame: %v", err)
		}
		if w.acknowledge(w.peekNextSequence()) != 1 {
			t.Fatal("expected the just-added frame to be acknowledged")
		}
	}
	if _, err := w.addFrame([]byte("x")); err != nil { // sequence 6
		t.Fatalf("addFrame: %v", err)
	}
	if _, err := w.addFrame([]byte("y")); err != nil { // sequence 7&7=7... next wraps to 0
		t.Fatalf("addFrame: %v", err)
	}
	if w.peekNextSequence() != 0 {
		t.Fatalf("expected next sequence to wrap to 0, got %d", w.peekNextSequence())
	}
	if acked := w.acknowledge(6); acked != 0 {
		t.Fatalf("expected acking below the oldest outstanding sequence to ack nothing, got %d", acked)
	}
	acked := w.acknowledge(0) // N(R)=0 acks everything up to, and wrapping before, 0: both 6 and 7
	if acked != 2 {
		t.Fatalf("expected both outstanding frames acked across the wrap, got %d", acked)
	}
	if !w.isEmpty() {
		t.Fatal("expected the window to be empty after acknowledging both outstanding frames")
	}
}

func TestSendWindowRetransmitsAfterTimeout(t *testing.T) {
	fake := clocktesting.NewFakeClock(time.Unix(0, 0))
	w := newSendWindowWithClock(3, time.Second, 2, fake)

	if _, err := w.addFrame([]byte("frame-a")); err != nil {
		t.Fatalf("addFrame: %v", err)
	}

	if got := w.retransmissions(); len(got) != 0 {
		t.Fatalf("expected no retransmissions before the timeout elapses, got %d", len(got))
	}

	fake.Step(2 * time.Second)
	got := w.retransmissions()
	if len(got) != 1 || string(got[0]) != "frame-a" {
		t.Fatalf("expected frame-a to be retransmitted once, got %v", got)
	}

	fake.Step(2 * time.Second)
	got = w.retransmissions()
	if len(got) != 1 {
		t.Fatalf("expected a second retransmission within maxRetries, got %d", len(got))
	}

	fake.Step(2 * time.Second)
	got = w.retransmissions()
	if len(got) != 0 {
		t.Fatalf("expected retries exhausted after maxRetries, got %d", len(got))
	}
}

func TestReceiveWindowAcceptsInOrderOnly(t *testing.T) {
	var w receiveWindow
	if err := w.accept(0); err != nil {
		t.Fatalf("accept(0): %v", err)
	}
	if err := w.accept(2); err == nil {
		t.Fatal("expected an out-of-order sequence to be rejected")
	}
	if err := w.accept(1); err != nil {
		t.Fatalf("accept(1): %v", err)
	}
	if w.expectedSequence() != 2 {
		t.Fatalf("expected next sequence 2, got %d", w.expectedSequence())
	}
}

func TestStatisticsErrorRate(t *testing.T) {
	var s Statistics
	if rate := s.ErrorRate(); rate != 0 {
		t.Fatalf("expected 0%% error rate with no traffic, got %v", rate)
	}
	s.FramesSent = 8
	s.FramesReceived = 2
	s.FCSErrors = 1
	s.SequenceErrors = 1
	if rate := s.ErrorRate(); rate != 20 {
		t.Fatalf("got %v, want 20", rate)
	}
	s.Clear()
	if s != (Statistics{}) {
		t.Fatal("expected Clear to zero all counters")
	}
}
