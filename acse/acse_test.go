package acse

import (
	"bytes"
	"testing"

	"github.com/cybroslabs/dlms-go/base"
)

func TestAARQEncodeDecodeRoundTripLLS(t *testing.T) {
	req := &AARQ{
		ApplicationContext:  base.ApplicationContextLNNoCiphering,
		Authentication:      base.AuthenticationLow,
		AuthenticationValue: []byte("secret01"),
		UserInformation:     []byte{0x01, 0x00, 0x00, 0x00, 0x06, 0x5f, 0x1f, 0x04, 0x00, 0x00, 0x1e, 0xb1, 0x9f},
	}
	encoded, err := Encode(req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if encoded[0] != TagAARQ {
		t.Fatalf("expected outer tag %x, got %x", TagAARQ, encoded[0])
	}

	got, err := DecodeAARQ(encoded)
	if err != nil {
		t.Fatalf("DecodeAARQ: %v", err)
	}
	if got.ApplicationContext != req.ApplicationContext {
		t.Fatalf("application context mismatch: got %v, want %v", got.ApplicationContext, req.ApplicationContext)
	}
	if got.Authentication != req.Authentication {
		t.Fatalf("authentication mismatch: got %v, want %v", got.Authentication, req.Authentication)
	}
	if !bytes.Equal(got.AuthenticationValue, req.AuthenticationValue) {
		t.Fatalf("authentication value mismatch: got %x, want %x", got.AuthenticationValue, req.AuthenticationValue)
	}
	if !bytes.Equal(got.UserInformation, req.UserInformation) {
		t.Fatalf("user information mismatch: got %x, want %x", got.UserInformation, req.UserInformation)
	}
}

func TestAARQEncodeDecodeRoundTripHLSGMACWithAPTitle(t *testing.T) {
	req := &AARQ{
		ApplicationContext:  base.ApplicationContextLNNoCiphering,
		Authentication:      base.AuthenticationHighGMAC,
		CallingAPTitle:      []byte("CLIENT01"),
		AuthenticationValue: []byte{0x01, 0x02, 0x03, 0x04},
		UserInformation:     []byte{0xaa, 0xbb},
	}
	encoded, err := Encode(req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeAARQ(encoded)
	if err != nil {
		t.Fatalf("DecodeAARQ: %v", err)
	}
	if !bytes.Equal(got.CallingAPTitle, req.CallingAPTitle) {
		t.Fatalf("calling ap title mismatch: got %q, want %q", got.CallingAPTitle, req.CallingAPTitle)
	}
	if got.Authentication != base.AuthenticationHighGMAC {
		t.Fatalf("authentication mismatch: got %v", got.Authentication)
	}
}

func TestAARQDecodeRejectsWrongOuterTag(t *testing.T) {
	if _, err := DecodeAARQ([]byte{TagAARE, 0x00}); err == nil {
		t.Fatal("expected a non-AARQ outer tag to be rejected")
	}
}

func TestAAREEncodeDecodeRoundTrip(t *testing.T) {
	resp := &AARE{
		ApplicationContext: base.ApplicationContextLNNoCiphering,
		Result:             base.AssociationResultAccepted,
		Diagnostic:         base.SourceDiagnosticNone,
		RespondingAPTitle:  []byte("SERVER01"),
		UserInformation:    []byte{0x08, 0x00, 0x06, 0x5f, 0x1f, 0x04, 0x00, 0x00, 0x1e, 0xb1, 0x9f, 0x00, 0xff, 0xff},
	}
	encoded, err := EncodeAARE(resp)
	if err != nil {
		t.Fatalf("EncodeAARE: %v", err)
	}
	if encoded[0] != TagAARE {
		t.Fatalf("expected outer tag %x, got %x", TagAARE, encoded[0])
	}

	got, err := DecodeAARE(encoded)
	if err != nil {
		t.Fatalf("DecodeAARE: %v", err)
	}
	if got.Result != resp.Result {
		t.Fatalf("result mismatch: got %v, want %v", got.Result, resp.Result)
	}
	if got.Diagnostic != resp.Diagnostic {
		t.Fatalf("diagnostic mismatch: got %v, want %v", got.Diagnostic, resp.Diagnostic)
	}
	if !bytes.Equal(got.RespondingAPTitle, resp.RespondingAPTitle) {
		t.Fatalf("responding ap title mismatch: got %q, want %q", got.RespondingAPTitle, resp.RespondingAPTitle)
	}
	if !bytes.Equal(got.UserInformation, resp.UserInformation) {
		t.Fatalf("user information mismatch: got %x, want %x", got.UserInformation, resp.UserInformation)
	}
}

func TestAAREEncodeDecodeRejectedDiagnostic(t *testing.T) {
	resp := &AARE{
		ApplicationContext: base.ApplicationContextLNNoCiphering,
		Result:             base.AssociationResult(1),
		Diagnostic:         base.SourceDiagnosticAuthenticationFailure,
	}
	encoded, err := EncodeAARE(resp)
	if err != nil {
		t.Fatalf("EncodeAARE: %v", err)
	}
	got, err := DecodeAARE(encoded)
	if err != nil {
		t.Fatalf("DecodeAARE: %v", err)
	}
	if got.Diagnostic != base.SourceDiagnosticAuthenticationFailure {
		t.Fatalf("got %v, want %v", got.Diagnostic, base.SourceDiagnosticAuthenticationFailure)
	}
}

func TestRLRQEncodeDecodeRoundTrip(t *testing.T) {
	encoded := EncodeRLRQ(base.ReleaseRequestReasonNormal)
	if encoded[0] != TagRLRQ {
		t.Fatalf("expected outer tag %x, got %x", TagRLRQ, encoded[0])
	}
	reason, err := DecodeRLRQ(encoded)
	if err != nil {
		t.Fatalf("DecodeRLRQ: %v", err)
	}
	if reason != base.ReleaseRequestReasonNormal {
		t.Fatalf("got %v, want %v", reason, base.ReleaseRequestReasonNormal)
	}
}

func TestRLREEncodeDecodeRoundTrip(t *testing.T) {
	encoded := EncodeRLRE(base.ReleaseRequestReasonNormal)
	if encoded[0] != TagRLRE {
		t.Fatalf("expected outer tag %x, got %x", TagRLRE, encoded[0])
	}
	reason, err := DecodeRLRE(encoded)
	if err != nil {
		t.Fatalf("DecodeRLRE: %v", err)
	}
	if reason != base.ReleaseRequestReasonNormal {
		t.Fatalf("got %v, want %v", reason, base.ReleaseRequestReasonNormal)
	}
}
