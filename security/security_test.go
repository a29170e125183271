package security

import (
	"bytes"
	"testing"

	"github.com/cybroslabs/dlms-go/base"
)

func gmacSettings() *Settings {
	return &Settings{
		Mechanism:         base.AuthenticationHighGMAC,
		EncryptionKey:     bytes.Repeat([]byte{0x11}, 16),
		AuthenticationKey: bytes.Repeat([]byte{0x22}, 16),
		ClientTitle:       []byte("CLIENT01"),
		ServerTitle:       []byte("SERVER01"),
	}
}

func TestSuiteEncryptDecryptRoundTrip(t *testing.T) {
	table := []struct {
		name string
		sc   byte
	}{
		{"authentication-only", ScAuthentication},
		{"authentication-and-encryption", ScAuthentication | ScEncryption},
	}
	for _, tcase := range table {
		t.Run(tcase.name, func(tt *testing.T) {
			suite, err := NewSuite(gmacSettings())
			if err != nil {
				tt.Fatalf("NewSuite: %v", err)
			}
			apdu := []byte("initiate-request-payload")
			enc, err := suite.Encrypt(tcase.sc, 1, []byte("CLIENT01"), apdu)
			if err != nil {
				tt.Fatalf("Encrypt: %v", err)
			}
			dec, err := suite.Decrypt(tcase.sc, 1, []byte("CLIENT01"), enc)
			if err != nil {
				tt.Fatalf("Decrypt: %v", err)
			}
			if !bytes.Equal(dec, apdu) {
				tt.Fatalf("round trip mismatch: got %x want %x", dec, apdu)
			}
		})
	}
}

func TestSuiteDecryptRejectsTamperedCiphertext(t *testing.T) {
	suite, err := NewSuite(gmacSettings())
	if err != nil {
		t.Fatalf("NewSuite: %v", err)
	}
	enc, err := suite.Encrypt(ScAuthentication|ScEncryption, 1, []byte("CLIENT01"), []byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	enc[len(enc)-1] ^= 0xff
	if _, err := suite.Decrypt(ScAuthentication|ScEncryption, 1, []byte("CLIENT01"), enc); err == nil {
		t.Fatal("expected tamper detection to fail decryption")
	}
}

func TestSuiteDecryptRejectsWrongFrameCounter(t *testing.T) {
	suite, err := NewSuite(gmacSettings())
	if err != nil {
		t.Fatalf("NewSuite: %v", err)
	}
	enc, err := suite.Encrypt(ScAuthentication|ScEncryption, 5, []byte("CLIENT01"), []byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := suite.Decrypt(ScAuthentication|ScEncryption, 6, []byte("CLIENT01"), enc); err == nil {
		t.Fatal("expected a mismatched frame counter to fail GCM authentication")
	}
}

func TestFrameCounterRejectsReplay(t *testing.T) {
	var fc FrameCounter
	if err := fc.Check(1); err != nil {
		t.Fatalf("Check(1): %v", err)
	}
	if err := fc.Check(2); err != nil {
		t.Fatalf("Check(2): %v", err)
	}
	if err := fc.Check(2); err == nil {
		t.Fatal("expected replay of frame counter 2 to be rejected")
	}
	if err := fc.Check(1); err == nil {
		t.Fatal("expected a lower frame counter than last seen to be rejected")
	}
}

func TestFrameCounterNextIsMonotonic(t *testing.T) {
	var fc FrameCounter
	first := fc.Next()
	second := fc.Next()
	if second <= first {
		t.Fatalf("expected Next to increase: got %d then %d", first, second)
	}
}

func TestWrapUnwrapKeyRoundTrip(t *testing.T) {
	kek := bytes.Repeat([]byte{0x33}, 16)
	key := bytes.Repeat([]byte{0x44}, 16)
	wrapped, err := WrapKey(kek, key)
	if err != nil {
		t.Fatalf("WrapKey: %v", err)
	}
	unwrapped, err := UnwrapKey(kek, wrapped)
	if err != nil {
		t.Fatalf("UnwrapKey: %v", err)
	}
	if !bytes.Equal(unwrapped, key) {
		t.Fatalf("unwrap mismatch: got %x want %x", unwrapped, key)
	}
}

func TestUnwrapKeyRejectsTamperedInput(t *testing.T) {
	kek := bytes.Repeat([]byte{0x33}, 16)
	key := bytes.Repeat([]byte{0x44}, 16)
	wrapped, err := WrapKey(kek, key)
	if err != nil {
		t.Fatalf("WrapKey: %v", err)
	}
	wrapped[0] ^= 0xff
	if _, err := UnwrapKey(kek, wrapped); err == nil {
		t.Fatal("expected tampered wrapped key to fail the integrity check")
	}
}

func TestClientServerHLSGMACChallengeResponse(t *testing.T) {
	clientSuite, err := NewSuite(gmacSettings())
	if err != nil {
		t.Fatalf("NewSuite(client): %v", err)
	}
	serverSuite, err := NewSuite(gmacSettings())
	if err != nil {
		t.Fatalf("NewSuite(server): %v", err)
	}

	stoc, err := NewChallenge()
	if err != nil {
		t.Fatalf("NewChallenge: %v", err)
	}
	resp, err := clientSuite.ClientResponse(ScAuthentication, 1, stoc)
	if err != nil {
		t.Fatalf("ClientResponse: %v", err)
	}
	ok, err := serverSuite.VerifyClientResponse(ScAuthentication, 1, stoc, resp)
	if err != nil {
		t.Fatalf("VerifyClientResponse: %v", err)
	}
	if !ok {
		t.Fatal("server did not accept a genuine client response")
	}

	resp[0] ^= 0xff
	ok, err = serverSuite.VerifyClientResponse(ScAuthentication, 1, stoc, resp)
	if err != nil {
		t.Fatalf("VerifyClientResponse (tampered): %v", err)
	}
	if ok {
		t.Fatal("server accepted a tampered client response")
	}
}

func TestDeriveKDFKeyIsDeterministic(t *testing.T) {
	key := bytes.Repeat([]byte{0x55}, 16)
	other := []byte("other-info")
	a, err := DeriveKDFKey(key, other, 32)
	if err != nil {
		t.Fatalf("DeriveKDFKey: %v", err)
	}
	b, err := DeriveKDFKey(key, other, 32)
	if err != nil {
		t.Fatalf("DeriveKDFKey: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("expected DeriveKDFKey to be deterministic for the same inputs")
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 bytes of output, got %d", len(a))
	}
}
