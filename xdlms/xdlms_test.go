package xdlms

import (
	"bytes"
	"testing"

	"github.com/cybroslabs/dlms-go/axdr"
)

func TestObisParseAndString(t *testing.T) {
	table := []struct {
		name string
		in   string
		want Obis
	}{
		{"full", "1-0:1.8.0.255", Obis{1, 0, 1, 8, 0, 255}},
		{"shortened-three-part", "1.8.0", Obis{0, 0, 1, 8, 0, 255}},
	}
	for _, tcase := range table {
		t.Run(tcase.name, func(tt *testing.T) {
			got, err := ParseObis(tcase.in)
			if err != nil {
				tt.Fatalf("ParseObis: %v", err)
			}
			if got != tcase.want {
				tt.Fatalf("got %+v, want %+v", got, tcase.want)
			}
		})
	}
}

func TestObisBytesRoundTrip(t *testing.T) {
	o := Obis{1, 0, 1, 8, 0, 255}
	got, err := ObisFromBytes(o.Bytes())
	if err != nil {
		t.Fatalf("ObisFromBytes: %v", err)
	}
	if got != o {
		t.Fatalf("got %+v, want %+v", got, o)
	}
}

func TestObisFromBytesRejectsWrongLength(t *testing.T) {
	if _, err := ObisFromBytes([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected a non-6-octet obis to be rejected")
	}
}

func TestParseObisRejectsMalformed(t *testing.T) {
	if _, err := ParseObis("not-an-obis"); err == nil {
		t.Fatal("expected a malformed obis string to be rejected")
	}
}

func TestInitiateRequestEncodeDecodeRoundTrip(t *testing.T) {
	req := &InitiateRequest{
		DlmsVersion: 6,
		Conformance: 0x1eb19f,
		MaxPduSize:  0xffff,
	}
	encoded := EncodeInitiateRequest(req)
	got, err := DecodeInitiateRequest(encoded)
	if err != nil {
		t.Fatalf("DecodeInitiateRequest: %v", err)
	}
	if got.DlmsVersion != req.DlmsVersion || got.Conformance != req.Conformance || got.MaxPduSize != req.MaxPduSize {
		t.Fatalf("got %+v, want %+v", got, req)
	}
}

func TestInitiateRequestEncodeDecodeWithDedicatedKey(t *testing.T) {
	req := &InitiateRequest{
		DedicatedKey: []byte{0x01, 0x02, 0x03, 0x04},
		DlmsVersion:  6,
		Conformance:  0x1eb19f,
		MaxPduSize:   0x0200,
	}
	encoded := EncodeInitiateRequest(req)
	got, err := DecodeInitiateRequest(encoded)
	if err != nil {
		t.Fatalf("DecodeInitiateRequest: %v", err)
	}
	if !bytes.Equal(got.DedicatedKey, req.DedicatedKey) {
		t.Fatalf("dedicated key mismatch: got %x, want %x", got.DedicatedKey, req.DedicatedKey)
	}
}

func TestInitiateResponseEncodeDecodeRoundTrip(t *testing.T) {
	resp := &InitiateResponse{
		DlmsVersion: 6,
		Conformance: 0x1eb19f,
		MaxPduSize:  0xffff,
		VAAName:     0x0007,
	}
	encoded := EncodeInitiateResponse(resp)
	got, err := DecodeInitiateResponse(encoded)
	if err != nil {
		t.Fatalf("DecodeInitiateResponse: %v", err)
	}
	if *got != *resp {
		t.Fatalf("got %+v, want %+v", got, resp)
	}
}

func TestGetRequestNormalEncodeDecodeRoundTrip(t *testing.T) {
	req := &GetRequest{
		InvokeID: 3,
		Items: []AttributeDescriptor{
			{ClassID: 3, Instance: Obis{1, 0, 1, 8, 0, 255}, Attribute: 2},
		},
	}
	encoded, err := EncodeGetRequest(req)
	if err != nil {
		t.Fatalf("EncodeGetRequest: %v", err)
	}
	got, nextBlock, err := DecodeGetRequest(encoded)
	if err != nil {
		t.Fatalf("DecodeGetRequest: %v", err)
	}
	if nextBlock != nil {
		t.Fatal("expected no next-block marker for a normal get request")
	}
	if got.InvokeID != req.InvokeID || len(got.Items) != 1 || got.Items[0] != req.Items[0] {
		t.Fatalf("got %+v, want %+v", got, req)
	}
}

func TestGetRequestWithListEncodeDecodeRoundTrip(t *testing.T) {
	req := &GetRequest{
		InvokeID: 1,
		Items: []AttributeDescriptor{
			{ClassID: 3, Instance: Obis{1, 0, 1, 8, 0, 255}, Attribute: 2},
			{ClassID: 1, Instance: Obis{0, 0, 96, 1, 0, 255}, Attribute: 2},
		},
	}
	encoded, err := EncodeGetRequest(req)
	if err != nil {
		t.Fatalf("EncodeGetRequest: %v", err)
	}
	got, _, err := DecodeGetRequest(encoded)
	if err != nil {
		t.Fatalf("DecodeGetRequest: %v", err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got.Items))
	}
}

func TestGetRequestNextBlockRoundTrip(t *testing.T) {
	encoded := EncodeGetRequestNext(7, 42)
	got, nextBlock, err := DecodeGetRequest(encoded)
	if err != nil {
		t.Fatalf("DecodeGetRequest: %v", err)
	}
	if got.InvokeID != 7 {
		t.Fatalf("got invoke id %d, want 7", got.InvokeID)
	}
	if nextBlock == nil || *nextBlock != 42 {
		t.Fatalf("got block number %v, want 42", nextBlock)
	}
}

func TestGetResponseNormalEncodeDecodeRoundTrip(t *testing.T) {
	resp := &GetResponse{
		InvokeID: 3,
		Results:  []GetResult{{Value: axdr.Value{Tag: axdr.TagDoubleLongUnsigned, Value: uint32(1234)}}},
	}
	encoded, err := EncodeGetResponse(resp)
	if err != nil {
		t.Fatalf("EncodeGetResponse: %v", err)
	}
	got, err := DecodeGetResponse(encoded)
	if err != nil {
		t.Fatalf("DecodeGetResponse: %v", err)
	}
	if got.InvokeID != resp.InvokeID || len(got.Results) != 1 || got.Results[0].IsErr {
		t.Fatalf("got %+v", got)
	}
}

func TestGetResponseErrorResultRoundTrip(t *testing.T) {
	resp := &GetResponse{
		InvokeID: 1,
		Results:  []GetResult{{IsErr: true, Error: AccessObjectUndefined}},
	}
	encoded, err := EncodeGetResponse(resp)
	if err != nil {
		t.Fatalf("EncodeGetResponse: %v", err)
	}
	got, err := DecodeGetResponse(encoded)
	if err != nil {
		t.Fatalf("DecodeGetResponse: %v", err)
	}
	if !got.Results[0].IsErr || got.Results[0].Error != AccessObjectUndefined {
		t.Fatalf("got %+v", got.Results[0])
	}
}

func TestGetResponseDataBlockRoundTrip(t *testing.T) {
	resp := &GetResponse{
		InvokeID:    5,
		IsBlock:     true,
		LastBlock:   false,
		BlockNumber: 2,
		BlockData:   []byte("partial payload"),
	}
	encoded, err := EncodeGetResponse(resp)
	if err != nil {
		t.Fatalf("EncodeGetResponse: %v", err)
	}
	got, err := DecodeGetResponse(encoded)
	if err != nil {
		t.Fatalf("DecodeGetResponse: %v", err)
	}
	if !got.IsBlock || got.LastBlock || got.BlockNumber != 2 || !bytes.Equal(got.BlockData, resp.BlockData) {
		t.Fatalf("got %+v", got)
	}
}

func TestActionRequestEncodeDecodeRoundTripWithParam(t *testing.T) {
	req := &ActionRequest{
		InvokeID: 2,
		Method:   MethodDescriptor{ClassID: 1, Instance: Obis{0, 0, 1, 0, 0, 255}, MethodID: 1},
		HasParam: true,
		Param:    axdr.Value{Tag: axdr.TagInteger, Value: int8(1)},
	}
	encoded, err := EncodeActionRequest(req)
	if err != nil {
		t.Fatalf("EncodeActionRequest: %v", err)
	}
	got, err := DecodeActionRequest(encoded)
	if err != nil {
		t.Fatalf("DecodeActionRequest: %v", err)
	}
	if got.InvokeID != req.InvokeID || got.Method != req.Method || !got.HasParam {
		t.Fatalf("got %+v", got)
	}
}

func TestActionResponseEncodeDecodeRoundTripNoReturn(t *testing.T) {
	resp := &ActionResponse{InvokeID: 2, Result: AccessSuccess}
	encoded, err := EncodeActionResponse(resp)
	if err != nil {
		t.Fatalf("EncodeActionResponse: %v", err)
	}
	got, err := DecodeActionResponse(encoded)
	if err != nil {
		t.Fatalf("DecodeActionResponse: %v", err)
	}
	if got.InvokeID != resp.InvokeID || got.Result != resp.Result || got.HasReturn {
		t.Fatalf("got %+v", got)
	}
}

func TestAccessResultTagStringIsNonEmpty(t *testing.T) {
	for _, a := range []AccessResultTag{AccessSuccess, AccessObjectUndefined, AccessOtherReason} {
		if a.String() == "" {
			t.Fatalf("expected a non-empty string for %d", a)
		}
	}
}
