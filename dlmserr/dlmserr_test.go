package dlmserr

import (
	"errors"
	"testing"
)

func TestKindOfRoundTrip(t *testing.T) {
	err := New(Codec, "bad tag")
	kind, ok := KindOf(err)
	if !ok {
		t.Fatal("expected KindOf to recognize a dlmserr error")
	}
	if kind != Codec {
		t.Fatalf("got %v, want %v", kind, Codec)
	}
}

func TestKindOfRejectsForeignError(t *testing.T) {
	if _, ok := KindOf(errors.New("not ours")); ok {
		t.Fatal("expected KindOf to reject an error of a foreign type")
	}
}

func TestErrorsIsMatchesByKindOnly(t *testing.T) {
	a := New(Timeout, "read deadline exceeded")
	b := New(Timeout, "write deadline exceeded")
	if !errors.Is(a, Sentinel(Timeout)) {
		t.Fatal("expected errors.Is to match against a Timeout sentinel")
	}
	if !errors.Is(a, b) {
		t.Fatal("expected two Error values of the same kind to match via Is")
	}
	if errors.Is(a, Sentinel(AuthFailed)) {
		t.Fatal("expected errors.Is to reject a different kind")
	}
}

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := Wrap(Transport, "read failed", cause)
	if !errors.Is(wrapped, cause) {
		t.Fatal("expected errors.Is to see through Wrap to the underlying cause")
	}
	kind, ok := KindOf(wrapped)
	if !ok || kind != Transport {
		t.Fatalf("expected Transport kind, got %v ok=%v", kind, ok)
	}
}

func TestNewfFormatsMessage(t *testing.T) {
	err := Newf(Protocol, "sequence mismatch: expected %d, got %d", 3, 5)
	if err.Error() == "" {
		t.Fatal("expected a non-empty error message")
	}
	kind, ok := KindOf(err)
	if !ok || kind != Protocol {
		t.Fatalf("expected Protocol kind, got %v ok=%v", kind, ok)
	}
}

func TestRejectedCarriesDiagnostic(t *testing.T) {
	err := Rejected(2, "no common application context")
	var e *Error
	if !errors.As(err, &e) {
		t.Fatal("expected errors.As to extract the concrete Error")
	}
	if e.Kind != OpenRejected {
		t.Fatalf("got kind %v, want %v", e.Kind, OpenRejected)
	}
	if e.Diagnostic != 2 {
		t.Fatalf("got diagnostic %d, want 2", e.Diagnostic)
	}
}

func TestKindStringCoversAllKinds(t *testing.T) {
	kinds := []Kind{Transport, FrameInvalid, Protocol, Codec, Timeout, AuthFailed, ReplayDetected, OpenRejected, ServiceError, AlreadyAssociated}
	seen := make(map[string]bool)
	for _, k := range kinds {
		s := k.String()
		if s == "" || s == "unknown" {
			t.Fatalf("kind %d stringified to %q", k, s)
		}
		if seen[s] {
			t.Fatalf("duplicate string representation %q", s)
		}
		seen[s] = true
	}
}
