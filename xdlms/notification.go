package xdlms

import (
	"bytes"

	"github.com/cybroslabs/dlms-go/axdr"
	"github.com/cybroslabs/dlms-go/dlmserr"
)

// EventNotificationRequest is the unconfirmed push service addressed by
// LN (§4.4), used for alarms and similar push events. It carries no
// invoke-id since it expects no response.
type EventNotificationRequest struct {
	HasTime  bool
	Time     axdr.DateTime
	Attr     AttributeDescriptor
	Value    axdr.Value
}

func EncodeEventNotificationRequest(r *EventNotificationRequest) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte(byte(TagEventNotificationRequest))
	if r.HasTime {
		b.WriteByte(1)
		b.Write(r.Time.Encode())
	} else {
		b.WriteByte(0)
	}
	b.WriteByte(byte(r.Attr.ClassID >> 8))
	b.WriteByte(byte(r.Attr.ClassID))
	b.Write(r.Attr.Instance.Bytes())
	b.WriteByte(byte(r.Attr.Attribute))
	if err := axdr.Encode(&b, r.Value); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func DecodeEventNotificationRequest(data []byte) (*EventNotificationRequest, error) {
	if len(data) < 1 || CosemTag(data[0]) != TagEventNotificationRequest {
		return nil, dlmserr.New(dlmserr.Codec, "not an event notification")
	}
	src := bytes.NewReader(data[1:])
	var hasTime byte
	if err := readByte(src, &hasTime); err != nil {
		return nil, err
	}
	r := &EventNotificationRequest{}
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
	var hdr [9]byte
	if _, err := readFull(src, hdr[:]); err != nil {
		return nil, err
	}
	r.Attr = AttributeDescriptor{
		ClassID:   uint16(hdr[0])<<8 | uint16(hdr[1]),
		Instance:  Obis{hdr[2], hdr[3], hdr[4], hdr[5], hdr[6], hdr[7]},
		Attribute: int8(hdr[8]),
	}
	v, err := axdr.Decode(src)
	if err != nil {
		return nil, err
	}
	r.Value = v
	return r, nil
}

// DataNotification is the unconfirmed service carrying an invoke-id and an
// optional timestamp, typically used for push scheduling (§4.4).
type DataNotification struct {
	LongInvokeID uint32
	HasTime      bool
	Time         axdr.DateTime
	Value        axdr.Value
}

func EncodeDataNotification(r *DataNotification) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte(byte(TagDataNotification))
	writeUint32(&b, r.LongInvokeID)
	if r.HasTime {
		b.WriteByte(1)
		b.Write(r.Time.Encode())
	} else {
		b.WriteByte(0)
	}
	if err := axdr.Encode(&b, r.Value); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func DecodeDataNotification(data []byte) (*DataNotification, error) {
	if len(data) < 1 || CosemTag(data[0]) != TagDataNotification {
		return nil, dlmserr.New(dlmserr.Codec, "not a data notification")
	}
	src := bytes.NewReader(data[1:])
	var buf [4]byte
	if _, err := readFull(src, buf[:]); err != nil {
		return nil, err
	}
	r := &DataNotification{LongInvokeID: be32(buf[:])}
	var hasTime byte
	if err := readByte(src, &hasTime); err != nil {
		return nil, err
	}
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
	v, err := axdr.Decode(src)
	if err != nil {
		return nil, err
	}
	r.Value = v
	return r, nil
}

func readN(src *bytes.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := readFull(src, b); err != nil {
		return nil, err
	}
	return b, nil
}
