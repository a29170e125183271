package xdlms

import (
	"bytes"

	"github.com/cybroslabs/dlms-go/axdr"
	"github.com/cybroslabs/dlms-go/dlmserr"
)

// VariableNameRequest addresses one short-name attribute, optionally with
// a selective-access specification (§4.5, SN referencing).
type VariableNameRequest struct {
	Address    uint16
	HasAccess  bool
	AccessType byte
	AccessData axdr.Value
}

func encodeVariableNameRequest(dst *bytes.Buffer, r *VariableNameRequest) error {
	if r.HasAccess {
		dst.WriteByte(4)
		dst.WriteByte(byte(r.Address >> 8))
		dst.WriteByte(byte(r.Address))
		dst.WriteByte(r.AccessType)
		return axdr.Encode(dst, r.AccessData)
	}
	dst.WriteByte(2)
	dst.WriteByte(byte(r.Address >> 8))
	dst.WriteByte(byte(r.Address))
	return nil
}

func decodeVariableNameRequest(src *bytes.Reader) (*VariableNameRequest, error) {
	var choice byte
	if err := readByte(src, &choice); err != nil {
		return nil, err
	}
	var addr [2]byte
	if _, err := readFull(src, addr[:]); err != nil {
		return nil, err
	}
	r := &VariableNameRequest{Address: uint16(addr[0])<<8 | uint16(addr[1])}
	switch choice {
	case 2:
		return r, nil
	case 4:
		var accessType byte
		if err := readByte(src, &accessType); err != nil {
			return nil, err
		}
		v, err := axdr.Decode(src)
		if err != nil {
			return nil, err
		}
		r.HasAccess = true
		r.AccessType = accessType
		r.AccessData = v
		return r, nil
	default:
		return nil, dlmserr.Newf(dlmserr.Codec, "unknown variable-name choice %d", choice)
	}
}

// ReadRequest is the SN read service (§4.5).
type ReadRequest struct {
	Items []VariableNameRequest
}

func EncodeReadRequest(r *ReadRequest) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte(byte(TagReadRequest))
	axdr.EncodeLength(&b, uint(len(r.Items)))
	for i := range r.Items {
		if err := encodeVariableNameRequest(&b, &r.Items[i]); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

func DecodeReadRequest(data []byte) (*ReadRequest, error) {
	if len(data) < 2 || CosemTag(data[0]) != TagReadRequest {
		return nil, dlmserr.New(dlmserr.Codec, "not a read request")
	}
	src := bytes.NewReader(data[1:])
	n, err := axdr.DecodeLength(src)
	if err != nil {
		return nil, err
	}
	items := make([]VariableNameRequest, n)
	for i := range items {
		it, err := decodeVariableNameRequest(src)
		if err != nil {
			return nil, err
		}
		items[i] = *it
	}
	return &ReadRequest{Items: items}, nil
}

// ReadResult is one SN read outcome.
type ReadResult struct {
	Value axdr.Value
	Error AccessResultTag
	IsErr bool
}

func encodeReadResult(dst *bytes.Buffer, r *ReadResult) error {
	if r.IsErr {
		dst.WriteByte(1)
		dst.WriteByte(byte(r.Error))
		return nil
	}
	dst.WriteByte(0)
	return axdr.Encode(dst, r.Value)
}

func decodeReadResult(src *bytes.Reader) (*ReadResult, error) {
	var flag byte
	if err := readByte(src, &flag); err != nil {
		return nil, err
	}
	if flag != 0 {
		var e byte
		if err := readByte(src, &e); err != nil {
			return nil, err
		}
		return &ReadResult{IsErr: true, Error: AccessResultTag(e)}, nil
	}
	v, err := axdr.Decode(src)
	if err != nil {
		return nil, err
	}
	return &ReadResult{Value: v}, nil
}

type ReadResponse struct {
	Results []ReadResult
}

func EncodeReadResponse(r *ReadResponse) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte(byte(TagReadResponse))
	axdr.EncodeLength(&b, uint(len(r.Results)))
	for i := range r.Results {
		if err := encodeReadResult(&b, &r.Results[i]); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

func DecodeReadResponse(data []byte) (*ReadResponse, error) {
	if len(data) < 2 || CosemTag(data[0]) != TagReadResponse {
		return nil, dlmserr.New(dlmserr.Codec, "not a read response")
	}
	src := bytes.NewReader(data[1:])
	n, err := axdr.DecodeLength(src)
	if err != nil {
		return nil, err
	}
	results := make([]ReadResult, n)
	for i := range results {
		res, err := decodeReadResult(src)
		if err != nil {
			return nil, err
		}
		results[i] = *res
	}
	return &ReadResponse{Results: results}, nil
}

// WriteRequest is the SN write service (§4.5): addresses then, separately,
// the values in the same order.
type WriteRequest struct {
	Addresses []uint16
	Values    []axdr.Value
}

func EncodeWriteRequest(r *WriteRequest) ([]byte, error) {
	if len(r.Addresses) != len(r.Values) {
		return nil, dlmserr.New(dlmserr.Protocol, "write request addresses/values length mismatch")
	}
	var b bytes.Buffer
	b.WriteByte(byte(TagWriteRequest))
	axdr.EncodeLength(&b, uint(len(r.Addresses)))
	for _, a := range r.Addresses {
		b.WriteByte(2)
		b.WriteByte(byte(a >> 8))
		b.WriteByte(byte(a))
	}
	axdr.EncodeLength(&b, uint(len(r.Values)))
	for i := range r.Values {
		if err := axdr.Encode(&b, r.Values[i]); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

func DecodeWriteRequest(data []byte) (*WriteRequest, error) {
	if len(data) < 2 || CosemTag(data[0]) != TagWriteRequest {
		return nil, dlmserr.New(dlmserr.Codec, "not a write request")
	}
	src := bytes.NewReader(data[1:])
	n, err := axdr.DecodeLength(src)
	if err != nil {
		return nil, err
	}
	addrs := make([]uint16, n)
	for i := range addrs {
		var choice byte
		if err := readByte(src, &choice); err != nil {
			return nil, err
		}
		var a [2]byte
		if _, err := readFull(src, a[:]); err != nil {
			return nil, err
		}
		addrs[i] = uint16(a[0])<<8 | uint16(a[1])
	}
	vn, err := axdr.DecodeLength(src)
	if err != nil {
		return nil, err
	}
	if vn != n {
		return nil, dlmserr.New(dlmserr.Codec, "write request addresses/values length mismatch")
	}
	values := make([]axdr.Value, vn)
	for i := range values {
		v, err := axdr.Decode(src)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return &WriteRequest{Addresses: addrs, Values: values}, nil
}

// WriteResponse confirms a Write request, one result per address.
type WriteResponse struct {
	Results []AccessResultTag
}

func EncodeWriteResponse(r *WriteResponse) []byte {
	var b bytes.Buffer
	b.WriteByte(byte(TagWriteResponse))
	axdr.EncodeLength(&b, uint(len(r.Results)))
	for _, res := range r.Results {
		if res == AccessSuccess {
			b.WriteByte(0)
		} else {
			b.WriteByte(1)
			b.WriteByte(byte(res))
		}
	}
	return b.Bytes()
}

func DecodeWriteResponse(data []byte) (*WriteResponse, error) {
	if len(data) < 2 || CosemTag(data[0]) != TagWriteResponse {
		return nil, dlmserr.New(dlmserr.Codec, "not a write response")
	}
	src := bytes.NewReader(data[1:])
	n, err := axdr.DecodeLength(src)
	if err != nil {
		return nil, err
	}
	results := make([]AccessResultTag, n)
	for i := range results {
		var flag byte
		if err := readByte(src, &flag); err != nil {
			return nil, err
		}
		if flag == 0 {
			results[i] = AccessSuccess
			continue
		}
		var e byte
		if err := readByte(src, &e); err != nil {
			return nil, err
		}
		results[i] = AccessResultTag(e)
	}
	return &WriteResponse{Results: results}, nil
}

// InformationReportRequest is SN's unconfirmed push equivalent of
// EventNotificationRequest.
type InformationReportRequest struct {
	HasTime   bool
	Time      axdr.DateTime
	Addresses []uint16
	Values    []axdr.Value
}

func EncodeInformationReportRequest(r *InformationReportRequest) ([]byte, error) {
	if len(r.Addresses) != len(r.Values) {
		return nil, dlmserr.New(dlmserr.Protocol, "information report addresses/values length mismatch")
	}
	var b bytes.Buffer
	b.WriteByte(byte(TagInformationReportRequest))
	if r.HasTime {
		b.WriteByte(1)
		b.Write(r.Time.Encode())
	} else {
		b.WriteByte(0)
	}
	axdr.EncodeLength(&b, uint(len(r.Addresses)))
	for _, a := range r.Addresses {
		b.WriteByte(byte(a >> 8))
		b.WriteByte(byte(a))
	}
	axdr.EncodeLength(&b, uint(len(r.Values)))
	for i := range r.Values {
		if err := axdr.Encode(&b, r.Values[i]); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

func DecodeInformationReportRequest(data []byte) (*InformationReportRequest, error) {
	if len(data) < 1 || CosemTag(data[0]) != TagInformationReportRequest {
		return nil, dlmserr.New(dlmserr.Codec, "not an information report")
	}
	src := bytes.NewReader(data[1:])
	var hasTime byte
	if err := readByte(src, &hasTime); err != nil {
		return nil, err
	}
	r := &InformationReportRequest{}
	if hasTime != 0 {
		b, err := readN(src, 12)
		if err != nil {
			return nil, err
		}
		dt, err := axdr.DecodeDateTime(b)
		if err != nil {
			return nil, err
		}
		r.HasTime = true
		r.Time = dt
	}
	n, err := axdr.DecodeLength(src)
	if err != nil {
		return nil, err
	}
	addrs := make([]uint16, n)
	for i := range addrs {
		var a [2]byte
		if _, err := readFull(src, a[:]); err != nil {
			return nil, err
		}
		addrs[i] = uint16(a[0])<<8 | uint16(a[1])
	}
	vn, err := axdr.DecodeLength(src)
	if err != nil {
		return nil, err
	}
	if vn != n {
		return nil, dlmserr.New(dlmserr.Codec, "information report addresses/values length mismatch")
	}
	values := make([]axdr.Value, vn)
	for i := range values {
		v, err := axdr.Decode(src)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	r.Addresses = addrs
	r.Values = values
	return r, nil
}
