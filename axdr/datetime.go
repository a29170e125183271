package axdr

import "github.com/cybroslabs/dlms-go/dlmserr"

const (
	deviationNotSpecified = 0x8000
	skipValue8            = 0xff
	skipValue16           = 0xffff
)

// DateTime is the 12-octet COSEM date-time: year, month, day, day-of-week,
// hour, minute, second, hundredths, deviation (minutes from UTC), and a
// clock-status bit mask. Any field may carry the standard's "not
// specified" skip value.
type DateTime struct {
	Year               uint16
	Month              uint8
	DayOfMonth         uint8
	DayOfWeek          uint8
	Hour               uint8
	Minute             uint8
	Second             uint8
	Hundredths         uint8
	DeviationMinutes   int16
	DeviationSpecified bool
	ClockStatus        uint8
}

func (d DateTime) Encode() []byte {
	b := make([]byte, 12)
	b[0] = byte(d.Year >> 8)
	b[1] = byte(d.Year)
	b[2] = d.Month
	b[3] = d.DayOfMonth
	b[4] = d.DayOfWeek
	b[5] = d.Hour
	b[6] = d.Minute
	b[7] = d.Second
	b[8] = d.Hundredths
	dev := uint16(deviationNotSpecified)
	if d.DeviationSpecified {
		dev = uint16(d.DeviationMinutes)
	}
	b[9] = byte(dev >> 8)
	b[10] = byte(dev)
	b[11] = d.ClockStatus
	return b
}

func DecodeDateTime(b []byte) (DateTime, error) {
	if len(b) != 12 {
		return DateTime{}, dlmserr.New(dlmserr.Codec, "invalid date-time length")
	}
	dt := DateTime{
		Year:       uint16(b[0])<<8 | uint16(b[1]),
		Month:      b[2],
		DayOfMonth: b[3],
		DayOfWeek:  b[4],
		Hour:       b[5],
		Minute:     b[6],
		Second:     b[7],
		Hundredths: b[8],
		ClockStatus: b[11],
	}
	dev := uint16(b[9])<<8 | uint16(b[10])
	if dev != deviationNotSpecified {
		dt.DeviationSpecified = true
		dt.DeviationMinutes = int16(dev)
	}
	return dt, nil
}

// Date is the 5-octet COSEM date: year, month, day-of-month, day-of-week.
type Date struct {
	Year       uint16
	Month      uint8
	DayOfMonth uint8
	DayOfWeek  uint8
}

func (d Date) Encode() []byte {
	return []byte{byte(d.Year >> 8), byte(d.Year), d.Month, d.DayOfMonth, d.DayOfWeek}
}

func DecodeDate(b []byte) Date {
	return Date{Year: uint16(b[0])<<8 | uint16(b[1]), Month: b[2], DayOfMonth: b[3], DayOfWeek: b[4]}
}

// Time is the 4-octet COSEM time: hour, minute, second, hundredths.
type Time struct {
	Hour       uint8
	Minute     uint8
	Second     uint8
	Hundredths uint8
}

func (t Time) Encode() []byte {
	return []byte{t.Hour, t.Minute, t.Second, t.Hundredths}
}

func DecodeTime(b []byte) Time {
	return Time{Hour: b[0], Minute: b[1], Second: b[2], Hundredths: b[3]}
}
