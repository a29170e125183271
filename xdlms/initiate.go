package xdlms

import (
	"bytes"

	"github.com/cybroslabs/dlms-go/axdr"
	"github.com/cybroslabs/dlms-go/ber"
	"github.com/cybroslabs/dlms-go/dlmserr"
)

// InitiateRequest is carried as the UserInformation field of AARQ (§4.4).
//
// Declared (logical) field order matches the A-XDR standard's SEQUENCE
// definition; the wire carries them in the exact reverse, with
// MaxPduSize written first and DedicatedKey last. Encode/DecodeRequest
// build/consume items in logical order and hand them to
// axdr.EncodeReversedSequence/DecodeReversedSequence, which do the
// flip.
type InitiateRequest struct {
	DedicatedKey     []byte // nil unless a dedicated key accompanies this association
	QualityOfService *byte  // proposed-quality-of-service, rarely used
	DlmsVersion      byte
	Conformance      uint32
	MaxPduSize       uint16
}

func encodeDedicatedKey(key []byte) []byte {
	if len(key) == 0 {
		return []byte{0}
	}
	item := make([]byte, 0, 2+len(key))
	item = append(item, 1, byte(len(key)))
	return append(item, key...)
}

func encodeOptionalByte(v *byte) []byte {
	if v == nil {
		return []byte{0}
	}
	return []byte{1, *v}
}

func splitDedicatedKey(rest []byte) ([]byte, []byte, error) {
	if len(rest) < 1 {
		return nil, nil, dlmserr.New(dlmserr.Codec, "truncated dedicated-key flag")
	}
	if rest[0] == 0 {
		return rest[:1], rest[1:], nil
	}
	if len(rest) < 2 || int(rest[1]) > len(rest)-2 {
		return nil, nil, dlmserr.New(dlmserr.Codec, "truncated dedicated key")
	}
	n := 2 + int(rest[1])
	return rest[:n], rest[n:], nil
}

func EncodeInitiateRequest(r *InitiateRequest) []byte {
	var conformance bytes.Buffer
	ber.EncodeConformance(&conformance, r.Conformance)

	var b bytes.Buffer
	b.WriteByte(byte(TagInitiateRequest))
	axdr.EncodeReversedSequence(&b, [][]byte{
		encodeDedicatedKey(r.DedicatedKey),        // 1. dedicated-key
		{0},                                       // 2. response-allowed (default true, omitted)
		encodeOptionalByte(r.QualityOfService),    // 3. proposed-quality-of-service
		{r.DlmsVersion},                           // 4. proposed-dlms-version-number
		conformance.Bytes(),                       // 5. proposed-conformance
		{byte(r.MaxPduSize >> 8), byte(r.MaxPduSize)}, // 6. client-max-receive-pdu-size
	})
	return b.Bytes()
}

func DecodeInitiateRequest(data []byte) (*InitiateRequest, error) {
	if len(data) < 1 || CosemTag(data[0]) != TagInitiateRequest {
		return nil, dlmserr.New(dlmserr.Codec, "not an initiate request")
	}
	items, err := axdr.DecodeReversedSequence(data[1:], 6, axdr.SequenceSplitter(
		axdr.SplitFixed(2),                // client-max-receive-pdu-size
		axdr.SplitFixed(ber.ConformanceBlockLen), // proposed-conformance
		axdr.SplitFixed(1),                // proposed-dlms-version-number
		axdr.SplitOptionalFixed(1),         // proposed-quality-of-service
		axdr.SplitFixed(1),                 // response-allowed
		splitDedicatedKey,                  // dedicated-key
	))
	if err != nil {
		return nil, err
	}

	r := &InitiateRequest{}
	if items[0][0] != 0 {
		r.DedicatedKey = append([]byte{}, items[0][2:]...)
	}
	// items[1] is response-allowed, not exposed on InitiateRequest.
	if items[2][0] != 0 {
		q := items[2][1]
		r.QualityOfService = &q
	}
	r.DlmsVersion = items[3][0]
	conf, err := ber.DecodeConformance(items[4])
	if err != nil {
		return nil, err
	}
	r.Conformance = conf
	r.MaxPduSize = uint16(items[5][0])<<8 | uint16(items[5][1])
	return r, nil
}

// InitiateResponse is carried in AARE's UserInformation field. Like
// InitiateRequest, declared field order is logical order; the wire
// carries them in reverse, VAAName first and QualityOfService last.
type InitiateResponse struct {
	QualityOfService *byte
	DlmsVersion      byte
	Conformance      uint32
	MaxPduSize       uint16
	VAAName          uint16
}

func EncodeInitiateResponse(r *InitiateResponse) []byte {
	var conformance bytes.Buffer
	ber.EncodeConformance(&conformance, r.Conformance)

	var b bytes.Buffer
	b.WriteByte(byte(TagInitiateResponse))
	axdr.EncodeReversedSequence(&b, [][]byte{
		encodeOptionalByte(r.QualityOfService),        // 1. negotiated-quality-of-service
		{r.DlmsVersion},                               // 2. negotiated-dlms-version-number
		conformance.Bytes(),                           // 3. negotiated-conformance
		{byte(r.MaxPduSize >> 8), byte(r.MaxPduSize)}, // 4. server-max-receive-pdu-size
		{byte(r.VAAName >> 8), byte(r.VAAName)},       // 5. vaa-name
	})
	return b.Bytes()
}

func DecodeInitiateResponse(data []byte) (*InitiateResponse, error) {
	if len(data) < 1 || CosemTag(data[0]) != TagInitiateResponse {
		return nil, dlmserr.New(dlmserr.Codec, "not an initiate response")
	}
	items, err := axdr.DecodeReversedSequence(data[1:], 5, axdr.SequenceSplitter(
		axdr.SplitFixed(2),                        // vaa-name
		axdr.SplitFixed(2),                        // server-max-receive-pdu-size
		axdr.SplitFixed(ber.ConformanceBlockLen),  // negotiated-conformance
		axdr.SplitFixed(1),                        // negotiated-dlms-version-number
		axdr.SplitOptionalFixed(1),                 // negotiated-quality-of-service
	))
	if err != nil {
		return nil, err
	}

	r := &InitiateResponse{}
	if items[0][0] != 0 {
		q := items[0][1]
		r.QualityOfService = &q
	}
	r.DlmsVersion = items[1][0]
	conf, err := ber.DecodeConformance(items[2])
	if err != nil {
		return nil, err
	}
	r.Conformance = conf
	r.MaxPduSize = uint16(items[3][0])<<8 | uint16(items[3][1])
	r.VAAName = uint16(items[4][0])<<8 | uint16(items[4][1])
	return r, nil
}

// ConfirmedServiceError reports a failed confirmed service (§4.3, rare in
// practice since Get/Set/Action carry their own per-attribute result).
type ConfirmedServiceError struct {
	Service byte
	Result  AccessResultTag
}

func EncodeConfirmedServiceError(e *ConfirmedServiceError) []byte {
	return []byte{byte(TagConfirmedServiceError), e.Service, byte(e.Result)}
}

func DecodeConfirmedServiceError(data []byte) (*ConfirmedServiceError, error) {
	if len(data) != 3 || CosemTag(data[0]) != TagConfirmedServiceError {
		return nil, dlmserr.New(dlmserr.Codec, "not a confirmed service error")
	}
	return &ConfirmedServiceError{Service: data[1], Result: AccessResultTag(data[2])}, nil
}

// ExceptionResponse (§4.3) is the stateless error response the server may
// send when the PDU cannot be parsed/mapped to a normal Get/Set/Action
// response at all (e.g. too large, service not allowed).
type ExceptionResponse struct {
	StateError   byte
	ServiceError byte
}

func EncodeExceptionResponse(e *ExceptionResponse) []byte {
	return []byte{byte(TagExceptionResponse), e.StateError, e.ServiceError}
}

func DecodeExceptionResponse(data []byte) (*ExceptionResponse, error) {
	if len(data) != 3 || CosemTag(data[0]) != TagExceptionResponse {
		return nil, dlmserr.New(dlmserr.Codec, "not an exception response")
	}
	return &ExceptionResponse{StateError: data[1], ServiceError: data[2]}, nil
}
