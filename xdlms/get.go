package xdlms

import (
	"bytes"

	"github.com/cybroslabs/dlms-go/axdr"
	"github.com/cybroslabs/dlms-go/dlmserr"
)

// AttributeDescriptor addresses one cosem_attribute_descriptor: class,
// instance (OBIS) and attribute index, with an optional selective-access
// specification.
type AttributeDescriptor struct {
	ClassID   uint16
	Instance  Obis
	Attribute int8

	HasAccess  bool
	AccessType byte
	AccessData axdr.Value
}

func encodeAttributeDescriptor(dst *bytes.Buffer, d *AttributeDescriptor) error {
	dst.WriteByte(byte(d.ClassID >> 8))
	dst.WriteByte(byte(d.ClassID))
	dst.Write(d.Instance.Bytes())
	dst.WriteByte(byte(d.Attribute))
	if d.HasAccess {
		dst.WriteByte(1)
		dst.WriteByte(d.AccessType)
		return axdr.Encode(dst, d.AccessData)
	}
	dst.WriteByte(0)
	return nil
}

func decodeAttributeDescriptor(src *bytes.Reader) (*AttributeDescriptor, error) {
	var hdr [9]byte
	if _, err := readFull(src, hdr[:]); err != nil {
		return nil, err
	}
	d := &AttributeDescriptor{
		ClassID:   uint16(hdr[0])<<8 | uint16(hdr[1]),
		Instance:  Obis{hdr[2], hdr[3], hdr[4], hdr[5], hdr[6], hdr[7]},
		Attribute: int8(hdr[8]),
	}
	var hasAccess byte
	if err := readByte(src, &hasAccess); err != nil {
		return nil, err
	}
	if hasAccess != 0 {
		d.HasAccess = true
		if err := readByte(src, &d.AccessType); err != nil {
			return nil, err
		}
		v, err := axdr.Decode(src)
		if err != nil {
			return nil, err
		}
		d.AccessData = v
	}
	return d, nil
}

// splitAttributeDescriptor determines the wire length of one encoded
// AttributeDescriptor by decoding it and measuring how much of rest the
// decoder consumed, the same "decode to find the length" approach the
// reference A-XDR decoder uses for nested structures.
func splitAttributeDescriptor(rest []byte) ([]byte, []byte, error) {
	r := bytes.NewReader(rest)
	if _, err := decodeAttributeDescriptor(r); err != nil {
		return nil, nil, err
	}
	consumed := len(rest) - r.Len()
	return rest[:consumed], rest[consumed:], nil
}

// GetRequest is the LN-referencing read service (§4.4 Get).
type GetRequest struct {
	InvokeID uint8
	Items    []AttributeDescriptor
}

func EncodeGetRequest(r *GetRequest) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte(byte(TagGetRequest))
	if len(r.Items) > 1 {
		b.WriteByte(byte(GetRequestWithList))
		b.WriteByte(r.InvokeID & 0x0f)
		axdr.EncodeLength(&b, uint(len(r.Items)))
		for i := range r.Items {
			if err := encodeAttributeDescriptor(&b, &r.Items[i]); err != nil {
				return nil, err
			}
		}
		return b.Bytes(), nil
	}

	b.WriteByte(byte(GetRequestNormal))
	if len(r.Items) != 1 {
		return nil, dlmserr.New(dlmserr.Protocol, "normal get request requires exactly one item")
	}
	// GetRequestNormal is {invoke-id-and-priority, cosem-attribute-descriptor}
	// (the latter folding in the optional access-selection); A-XDR writes
	// the descriptor first and the invoke id last.
	var descriptor bytes.Buffer
	if err := encodeAttributeDescriptor(&descriptor, &r.Items[0]); err != nil {
		return nil, err
	}
	axdr.EncodeReversedSequence(&b, [][]byte{
		{r.InvokeID & 0x0f},
		descriptor.Bytes(),
	})
	return b.Bytes(), nil
}

// EncodeGetRequestNext asks for the next block of a long get already in
// progress, identified by blockNumber (the block just received).
func EncodeGetRequestNext(invokeID uint8, blockNumber uint32) []byte {
	var b bytes.Buffer
	b.WriteByte(byte(TagGetRequest))
	b.WriteByte(byte(GetRequestNext))
	b.WriteByte(invokeID & 0x0f)
	writeUint32(&b, blockNumber)
	return b.Bytes()
}

func DecodeGetRequest(data []byte) (req *GetRequest, nextBlock *uint32, err error) {
	if len(data) < 2 || CosemTag(data[0]) != TagGetRequest {
		return nil, nil, dlmserr.New(dlmserr.Codec, "not a get request")
	}
	switch GetRequestTag(data[1]) {
	case GetRequestNormal:
		items, err := axdr.DecodeReversedSequence(data[2:], 2, axdr.SequenceSplitter(
			splitAttributeDescriptor,
			axdr.SplitFixed(1),
		))
		if err != nil {
			return nil, nil, err
		}
		d, err := decodeAttributeDescriptor(bytes.NewReader(items[1]))
		if err != nil {
			return nil, nil, err
		}
		return &GetRequest{InvokeID: items[0][0] & 0x0f, Items: []AttributeDescriptor{*d}}, nil, nil
	}

	src := bytes.NewReader(data[2:])
	var invokeID byte
	switch GetRequestTag(data[1]) {
	case GetRequestWithList:
		if err := readByte(src, &invokeID); err != nil {
			return nil, nil, err
		}
		n, err := axdr.DecodeLength(src)
		if err != nil {
			return nil, nil, err
		}
		items := make([]AttributeDescriptor, n)
		for i := range items {
			d, err := decodeAttributeDescriptor(src)
			if err != nil {
				return nil, nil, err
			}
			items[i] = *d
		}
		return &GetRequest{InvokeID: invokeID, Items: items}, nil, nil
	case GetRequestNext:
		if err := readByte(src, &invokeID); err != nil {
			return nil, nil, err
		}
		var buf [4]byte
		if _, err := readFull(src, buf[:]); err != nil {
			return nil, nil, err
		}
		bn := be32(buf[:])
		return &GetRequest{InvokeID: invokeID}, &bn, nil
	default:
		return nil, nil, dlmserr.Newf(dlmserr.Codec, "unknown get-request tag %#x", data[1])
	}
}

// GetResult is one attribute's outcome: exactly one of Value/Error is set.
type GetResult struct {
	Value axdr.Value
	Error AccessResultTag
	IsErr bool
}

func encodeGetResult(dst *bytes.Buffer, r *GetResult) error {
	if r.IsErr {
		dst.WriteByte(1)
		dst.WriteByte(byte(r.Error))
		return nil
	}
	dst.WriteByte(0)
	return axdr.Encode(dst, r.Value)
}

func decodeGetResult(src *bytes.Reader) (*GetResult, error) {
	var flag byte
	if err := readByte(src, &flag); err != nil {
		return nil, err
	}
	if flag != 0 {
		var e byte
		if err := readByte(src, &e); err != nil {
			return nil, err
		}
		return &GetResult{IsErr: true, Error: AccessResultTag(e)}, nil
	}
	v, err := axdr.Decode(src)
	if err != nil {
		return nil, err
	}
	return &GetResult{Value: v}, nil
}

// splitGetResult determines the wire length of one encoded GetResult by
// decoding it and measuring consumed bytes, mirroring
// splitAttributeDescriptor.
func splitGetResult(rest []byte) ([]byte, []byte, error) {
	r := bytes.NewReader(rest)
	if _, err := decodeGetResult(r); err != nil {
		return nil, nil, err
	}
	consumed := len(rest) - r.Len()
	return rest[:consumed], rest[consumed:], nil
}

// GetResponse is the Get service confirmation: either normal/with-list
// (full results) or with-data-block for a long get transfer.
type GetResponse struct {
	InvokeID uint8
	Results  []GetResult

	// block-transfer fields, set when IsBlock (a GetResponseWithDataBlock)
	IsBlock     bool
	LastBlock   bool
	BlockNumber uint32
	BlockData   []byte
	BlockError  AccessResultTag
	HasBlockError bool
}

func EncodeGetResponse(r *GetResponse) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte(byte(TagGetResponse))
	switch {
	case r.IsBlock:
		b.WriteByte(byte(GetResponseWithDataBlock))
		b.WriteByte(r.InvokeID & 0x0f)
		if r.LastBlock {
			b.WriteByte(1)
		} else {
			b.WriteByte(0)
		}
		writeUint32(&b, r.BlockNumber)
		if r.HasBlockError {
			b.WriteByte(1)
			b.WriteByte(byte(r.BlockError))
		} else {
			b.WriteByte(0)
			axdr.EncodeLength(&b, uint(len(r.BlockData)))
			b.Write(r.BlockData)
		}
	case len(r.Results) > 1:
		b.WriteByte(byte(GetResponseWithList))
		b.WriteByte(r.InvokeID & 0x0f)
		axdr.EncodeLength(&b, uint(len(r.Results)))
		for i := range r.Results {
			if err := encodeGetResult(&b, &r.Results[i]); err != nil {
				return nil, err
			}
		}
	default:
		b.WriteByte(byte(GetResponseNormal))
		if len(r.Results) != 1 {
			return nil, dlmserr.New(dlmserr.Protocol, "normal get response requires exactly one result")
		}
		var result bytes.Buffer
		if err := encodeGetResult(&result, &r.Results[0]); err != nil {
			return nil, err
		}
		axdr.EncodeReversedSequence(&b, [][]byte{
			{r.InvokeID & 0x0f},
			result.Bytes(),
		})
	}
	return b.Bytes(), nil
}

func DecodeGetResponse(data []byte) (*GetResponse, error) {
	if len(data) < 2 || CosemTag(data[0]) != TagGetResponse {
		return nil, dlmserr.New(dlmserr.Codec, "not a get response")
	}
	if GetResponseTag(data[1]) == GetResponseNormal {
		items, err := axdr.DecodeReversedSequence(data[2:], 2, axdr.SequenceSplitter(
			splitGetResult,
			axdr.SplitFixed(1),
		))
		if err != nil {
			return nil, err
		}
		res, err := decodeGetResult(bytes.NewReader(items[1]))
		if err != nil {
			return nil, err
		}
		return &GetResponse{InvokeID: items[0][0], Results: []GetResult{*res}}, nil
	}

	src := bytes.NewReader(data[2:])
	var invokeID byte
	switch GetResponseTag(data[1]) {
	case GetResponseWithList:
		if err := readByte(src, &invokeID); err != nil {
			return nil, err
		}
		n, err := axdr.DecodeLength(src)
		if err != nil {
			return nil, err
		}
		results := make([]GetResult, n)
		for i := range results {
			res, err := decodeGetResult(src)
			if err != nil {
				return nil, err
			}
			results[i] = *res
		}
		return &GetResponse{InvokeID: invokeID, Results: results}, nil
	case GetResponseWithDataBlock:
		if err := readByte(src, &invokeID); err != nil {
			return nil, err
		}
		var last, hasErr byte
		if err := readByte(src, &last); err != nil {
			return nil, err
		}
		var buf [4]byte
		if _, err := readFull(src, buf[:]); err != nil {
			return nil, err
		}
		bn := be32(buf[:])
		if err := readByte(src, &hasErr); err != nil {
			return nil, err
		}
		resp := &GetResponse{InvokeID: invokeID, IsBlock: true, LastBlock: last != 0, BlockNumber: bn}
		if hasErr != 0 {
			var e byte
			if err := readByte(src, &e); err != nil {
				return nil, err
			}
			resp.HasBlockError = true
			resp.BlockError = AccessResultTag(e)
			return resp, nil
		}
		n, err := axdr.DecodeLength(src)
		if err != nil {
			return nil, err
		}
		block := make([]byte, n)
		if _, err := readFull(src, block); err != nil {
			return nil, err
		}
		resp.BlockData = block
		return resp, nil
	default:
		return nil, dlmserr.Newf(dlmserr.Codec, "unknown get-response tag %#x", data[1])
	}
}
