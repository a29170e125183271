package xdlms

import (
	"bytes"

	"github.com/cybroslabs/dlms-go/axdr"
	"github.com/cybroslabs/dlms-go/dlmserr"
)

// SetRequest is the LN-referencing write service (§4.4 Set).
type SetRequest struct {
	InvokeID uint8
	Items    []AttributeDescriptor
	Values   []axdr.Value
}

// splitValue determines the wire length of one encoded axdr.Value by
// decoding it and measuring consumed bytes, mirroring
// splitAttributeDescriptor/splitGetResult.
func splitValue(rest []byte) ([]byte, []byte, error) {
	r := bytes.NewReader(rest)
	if _, err := axdr.Decode(r); err != nil {
		return nil, nil, err
	}
	consumed := len(rest) - r.Len()
	return rest[:consumed], rest[consumed:], nil
}

func EncodeSetRequest(r *SetRequest) ([]byte, error) {
	if len(r.Items) != len(r.Values) {
		return nil, dlmserr.New(dlmserr.Protocol, "set request items/values length mismatch")
	}
	var b bytes.Buffer
	b.WriteByte(byte(TagSetRequest))
	if len(r.Items) > 1 {
		b.WriteByte(byte(SetRequestWithList))
		b.WriteByte(r.InvokeID & 0x0f)
		axdr.EncodeLength(&b, uint(len(r.Items)))
		for i := range r.Items {
			if err := encodeAttributeDescriptor(&b, &r.Items[i]); err != nil {
				return nil, err
			}
		}
		axdr.EncodeLength(&b, uint(len(r.Values)))
		for i := range r.Values {
			if err := axdr.Encode(&b, r.Values[i]); err != nil {
				return nil, err
			}
		}
		return b.Bytes(), nil
	}

	b.WriteByte(byte(SetRequestNormal))
	if len(r.Items) != 1 {
		return nil, dlmserr.New(dlmserr.Protocol, "normal set request requires exactly one item")
	}
	// SetRequestNormal is {invoke-id-and-priority, cosem-attribute-descriptor,
	// value}; A-XDR writes value first, the descriptor next, and the invoke
	// id last.
	var descriptor bytes.Buffer
	if err := encodeAttributeDescriptor(&descriptor, &r.Items[0]); err != nil {
		return nil, err
	}
	var value bytes.Buffer
	if err := axdr.Encode(&value, r.Values[0]); err != nil {
		return nil, err
	}
	axdr.EncodeReversedSequence(&b, [][]byte{
		{r.InvokeID & 0x0f},
		descriptor.Bytes(),
		value.Bytes(),
	})
	return b.Bytes(), nil
}

func DecodeSetRequest(data []byte) (*SetRequest, error) {
	if len(data) < 2 || CosemTag(data[0]) != TagSetRequest {
		return nil, dlmserr.New(dlmserr.Codec, "not a set request")
	}
	if SetRequestTag(data[1]) == SetRequestNormal {
		items, err := axdr.DecodeReversedSequence(data[2:], 3, axdr.SequenceSplitter(
			splitValue,
			splitAttributeDescriptor,
			axdr.SplitFixed(1),
		))
		if err != nil {
			return nil, err
		}
		d, err := decodeAttributeDescriptor(bytes.NewReader(items[1]))
		if err != nil {
			return nil, err
		}
		v, err := axdr.Decode(bytes.NewReader(items[2]))
		if err != nil {
			return nil, err
		}
		return &SetRequest{InvokeID: items[0][0] & 0x0f, Items: []AttributeDescriptor{*d}, Values: []axdr.Value{v}}, nil
	}

	src := bytes.NewReader(data[2:])
	var invokeID byte
	switch SetRequestTag(data[1]) {
	case SetRequestWithList:
		if err := readByte(src, &invokeID); err != nil {
			return nil, err
		}
		n, err := axdr.DecodeLength(src)
		if err != nil {
			return nil, err
		}
		items := make([]AttributeDescriptor, n)
		for i := range items {
			d, err := decodeAttributeDescriptor(src)
			if err != nil {
				return nil, err
			}
			items[i] = *d
		}
		vn, err := axdr.DecodeLength(src)
		if err != nil {
			return nil, err
		}
		if vn != n {
			return nil, dlmserr.New(dlmserr.Codec, "set request items/values length mismatch")
		}
		values := make([]axdr.Value, vn)
		for i := range values {
			v, err := axdr.Decode(src)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		return &SetRequest{InvokeID: invokeID, Items: items, Values: values}, nil
	default:
		return nil, dlmserr.Newf(dlmserr.Codec, "unknown set-request tag %#x", data[1])
	}
}

// SetResponse confirms a Set request, one result per addressed attribute.
type SetResponse struct {
	InvokeID uint8
	Results  []AccessResultTag
}

func EncodeSetResponse(r *SetResponse) []byte {
	var b bytes.Buffer
	b.WriteByte(byte(TagSetResponse))
	if len(r.Results) > 1 {
		b.WriteByte(byte(SetResponseWithList))
		b.WriteByte(r.InvokeID & 0x0f)
		axdr.EncodeLength(&b, uint(len(r.Results)))
		for _, res := range r.Results {
			b.WriteByte(byte(res))
		}
	} else {
		b.WriteByte(byte(SetResponseNormal))
		// SetResponseNormal is {invoke-id-and-priority, result}; A-XDR
		// writes result first and the invoke id last.
		axdr.EncodeReversedSequence(&b, [][]byte{
			{r.InvokeID & 0x0f},
			{byte(r.Results[0])},
		})
	}
	return b.Bytes()
}

func DecodeSetResponse(data []byte) (*SetResponse, error) {
	if len(data) < 2 || CosemTag(data[0]) != TagSetResponse {
		return nil, dlmserr.New(dlmserr.Codec, "not a set response")
	}
	if SetResponseTag(data[1]) == SetResponseNormal {
		items, err := axdr.DecodeReversedSequence(data[2:], 2, axdr.SequenceSplitter(
			axdr.SplitFixed(1),
			axdr.SplitFixed(1),
		))
		if err != nil {
			return nil, err
		}
		return &SetResponse{InvokeID: items[0][0] & 0x0f, Results: []AccessResultTag{AccessResultTag(items[1][0])}}, nil
	}

	src := bytes.NewReader(data[2:])
	var invokeID byte
	switch SetResponseTag(data[1]) {
	case SetResponseWithList:
		if err := readByte(src, &invokeID); err != nil {
			return nil, err
		}
		n, err := axdr.DecodeLength(src)
		if err != nil {
			return nil, err
		}
		results := make([]AccessResultTag, n)
		for i := range results {
			var r byte
			if err := readByte(src, &r); err != nil {
				return nil, err
			}
			results[i] = AccessResultTag(r)
		}
		return &SetResponse{InvokeID: invokeID, Results: results}, nil
	default:
		return nil, dlmserr.Newf(dlmserr.Codec, "unknown set-response tag %#x", data[1])
	}
}
