package xdlms

import (
	"bytes"

	"github.com/cybroslabs/dlms-go/axdr"
	"github.com/cybroslabs/dlms-go/dlmserr"
)

// MethodDescriptor addresses one cosem_method_descriptor for Action.
type MethodDescriptor struct {
	ClassID  uint16
	Instance Obis
	MethodID int8
}

func encodeMethodDescriptor(dst *bytes.Buffer, d *MethodDescriptor) {
	dst.WriteByte(byte(d.ClassID >> 8))
	dst.WriteByte(byte(d.ClassID))
	dst.Write(d.Instance.Bytes())
	dst.WriteByte(byte(d.MethodID))
}

func decodeMethodDescriptor(src *bytes.Reader) (*MethodDescriptor, error) {
	var hdr [9]byte
	if _, err := readFull(src, hdr[:]); err != nil {
		return nil, err
	}
	return &MethodDescriptor{
		ClassID:  uint16(hdr[0])<<8 | uint16(hdr[1]),
		Instance: Obis{hdr[2], hdr[3], hdr[4], hdr[5], hdr[6], hdr[7]},
		MethodID: int8(hdr[8]),
	}, nil
}

// splitMethodDescriptor determines the wire length of one encoded
// MethodDescriptor by decoding it and measuring consumed bytes, mirroring
// splitAttributeDescriptor.
func splitMethodDescriptor(rest []byte) ([]byte, []byte, error) {
	r := bytes.NewReader(rest)
	if _, err := decodeMethodDescriptor(r); err != nil {
		return nil, nil, err
	}
	consumed := len(rest) - r.Len()
	return rest[:consumed], rest[consumed:], nil
}

// splitOptionalValue splits the usage-flag-then-axdr.Value pattern Action
// uses for its optional parameter/return fields, where the value (if
// present) has variable wire length.
func splitOptionalValue(rest []byte) ([]byte, []byte, error) {
	if len(rest) < 1 {
		return nil, nil, dlmserr.New(dlmserr.Codec, "truncated optional value flag")
	}
	if rest[0] == 0 {
		return rest[:1], rest[1:], nil
	}
	r := bytes.NewReader(rest[1:])
	if _, err := axdr.Decode(r); err != nil {
		return nil, nil, err
	}
	consumed := 1 + (len(rest) - 1 - r.Len())
	return rest[:consumed], rest[consumed:], nil
}

// ActionRequest is the LN method-invocation service (§4.4 Action).
type ActionRequest struct {
	InvokeID uint8
	Method   MethodDescriptor
	HasParam bool
	Param    axdr.Value
}

func EncodeActionRequest(r *ActionRequest) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte(byte(TagActionRequest))
	b.WriteByte(byte(ActionRequestNormal))
	// ActionRequestNormal is {invoke-id-and-priority, cosem-method-descriptor,
	// method-invocation-parameters}; A-XDR writes the parameter last-declared
	// field first and the invoke id last.
	var method bytes.Buffer
	encodeMethodDescriptor(&method, &r.Method)
	var param bytes.Buffer
	if r.HasParam {
		param.WriteByte(1)
		if err := axdr.Encode(&param, r.Param); err != nil {
			return nil, err
		}
	} else {
		param.WriteByte(0)
	}
	axdr.EncodeReversedSequence(&b, [][]byte{
		{r.InvokeID & 0x0f},
		method.Bytes(),
		param.Bytes(),
	})
	return b.Bytes(), nil
}

func DecodeActionRequest(data []byte) (*ActionRequest, error) {
	if len(data) < 2 || CosemTag(data[0]) != TagActionRequest {
		return nil, dlmserr.New(dlmserr.Codec, "not an action request")
	}
	if ActionRequestTag(data[1]) != ActionRequestNormal {
		return nil, dlmserr.Newf(dlmserr.Codec, "unsupported action-request tag %#x", data[1])
	}
	items, err := axdr.DecodeReversedSequence(data[2:], 3, axdr.SequenceSplitter(
		splitOptionalValue,
		splitMethodDescriptor,
		axdr.SplitFixed(1),
	))
	if err != nil {
		return nil, err
	}
	m, err := decodeMethodDescriptor(bytes.NewReader(items[1]))
	if err != nil {
		return nil, err
	}
	r := &ActionRequest{InvokeID: items[0][0] & 0x0f, Method: *m}
	if items[2][0] != 0 {
		v, err := axdr.Decode(bytes.NewReader(items[2][1:]))
		if err != nil {
			return nil, err
		}
		r.HasParam = true
		r.Param = v
	}
	return r, nil
}

// ActionResponse confirms an Action request.
type ActionResponse struct {
	InvokeID  uint8
	Result    AccessResultTag
	HasReturn bool
	Return    axdr.Value
	ReturnErr AccessResultTag
	HasReturnErr bool
}

// splitOptionalReturn splits the usage-flag-then-(error-or-value) blob
// Action's response uses for its optional return-parameter field: one
// flag byte, and, if set, an is-error byte followed by either a one-byte
// AccessResultTag or a variable-length axdr.Value.
func splitOptionalReturn(rest []byte) ([]byte, []byte, error) {
	if len(rest) < 1 {
		return nil, nil, dlmserr.New(dlmserr.Codec, "truncated optional return flag")
	}
	if rest[0] == 0 {
		return rest[:1], rest[1:], nil
	}
	if len(rest) < 2 {
		return nil, nil, dlmserr.New(dlmserr.Codec, "truncated optional return")
	}
	if rest[1] != 0 {
		if len(rest) < 3 {
			return nil, nil, dlmserr.New(dlmserr.Codec, "truncated optional return error")
		}
		return rest[:3], rest[3:], nil
	}
	r := bytes.NewReader(rest[2:])
	if _, err := axdr.Decode(r); err != nil {
		return nil, nil, err
	}
	consumed := 2 + (len(rest) - 2 - r.Len())
	return rest[:consumed], rest[consumed:], nil
}

func EncodeActionResponse(r *ActionResponse) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte(byte(TagActionResponse))
	b.WriteByte(byte(ActionResponseNormal))
	// ActionResponseNormal is {invoke-id-and-priority, result,
	// return-parameters}; A-XDR writes return-parameters first, result
	// next, and the invoke id last.
	var ret bytes.Buffer
	if r.HasReturn || r.HasReturnErr {
		ret.WriteByte(1)
		if r.HasReturnErr {
			ret.WriteByte(1)
			ret.WriteByte(byte(r.ReturnErr))
		} else {
			ret.WriteByte(0)
			if err := axdr.Encode(&ret, r.Return); err != nil {
				return nil, err
			}
		}
	} else {
		ret.WriteByte(0)
	}
	axdr.EncodeReversedSequence(&b, [][]byte{
		{r.InvokeID & 0x0f},
		{byte(r.Result)},
		ret.Bytes(),
	})
	return b.Bytes(), nil
}

func DecodeActionResponse(data []byte) (*ActionResponse, error) {
	if len(data) < 2 || CosemTag(data[0]) != TagActionResponse {
		return nil, dlmserr.New(dlmserr.Codec, "not an action response")
	}
	if ActionResponseTag(data[1]) != ActionResponseNormal {
		return nil, dlmserr.Newf(dlmserr.Codec, "unsupported action-response tag %#x", data[1])
	}
	items, err := axdr.DecodeReversedSequence(data[2:], 3, axdr.SequenceSplitter(
		splitOptionalReturn,
		axdr.SplitFixed(1),
		axdr.SplitFixed(1),
	))
	if err != nil {
		return nil, err
	}
	r := &ActionResponse{InvokeID: items[0][0] & 0x0f, Result: AccessResultTag(items[1][0])}
	ret := items[2]
	if ret[0] != 0 {
		if ret[1] != 0 {
			r.HasReturnErr = true
			r.ReturnErr = AccessResultTag(ret[2])
		} else {
			v, err := axdr.Decode(bytes.NewReader(ret[2:]))
			if err != nil {
				return nil, err
			}
			r.HasReturn = true
			r.Return = v
		}
	}
	return r, nil
}
