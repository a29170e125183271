// Package dlmserr defines the error-kind taxonomy surfaced by every layer
// of the stack: transport, framing, codec, protocol, timing and security
// failures are each a distinct kind so callers can branch on errors.Is
// without parsing messages.
package dlmserr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Transport Kind = iota
	FrameInvalid
	Protocol
	Codec
	Timeout
	AuthFailed
	ReplayDetected
	OpenRejected
	ServiceError
	AlreadyAssociated
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case FrameInvalid:
		return "frame-invalid"
	case Protocol:
		return "protocol"
	case Codec:
		return "codec"
	case Timeout:
		return "timeout"
	case AuthFailed:
		return "auth-failed"
	case ReplayDetected:
		return "replay-detected"
	case OpenRejected:
		return "open-rejected"
	case ServiceError:
		return "service-error"
	case AlreadyAssociated:
		return "already-associated"
	default:
		return "unknown"
	}
}

// Error is the concrete error type for every kind above. Diagnostic carries
// the AARE source-diagnostic for OpenRejected and is zero otherwise.
type Error struct {
	Kind       Kind
	Diagnostic int
	msg        string
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, msg: msg}
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, cause error) error {
	return &Error{Kind: kind, msg: msg, cause: cause}
}

func Rejected(diagnostic int, msg string) error {
	return &Error{Kind: OpenRejected, Diagnostic: diagnostic, msg: msg}
}

// Sentinel returns a zero-value *Error of the given kind, suitable as the
// target of errors.Is comparisons: errors.Is(err, dlmserr.Sentinel(dlmserr.Timeout)).
func Sentinel(kind Kind) error {
	return &Error{Kind: kind}
}

func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
