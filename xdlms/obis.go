package xdlms

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/cybroslabs/dlms-go/dlmserr"
)

// Obis is a COSEM logical device object identifier, six octets A-B:C.D.E.F.
type Obis struct {
	A, B, C, D, E, F byte
}

func (o Obis) String() string {
	return fmt.Sprintf("%d-%d:%d.%d.%d.%d", o.A, o.B, o.C, o.D, o.E, o.F)
}

func (o Obis) Bytes() []byte {
	return []byte{o.A, o.B, o.C, o.D, o.E, o.F}
}

func ObisFromBytes(src []byte) (Obis, error) {
	if len(src) != 6 {
		return Obis{}, dlmserr.New(dlmserr.Codec, "obis code must be 6 octets")
	}
	return Obis{src[0], src[1], src[2], src[3], src[4], src[5]}, nil
}

var obisPattern = regexp.MustCompile(`^(?:(\d+)-(\d+):)?(\d+)\.(\d+)(?:\.(\d+)(?:\.(\d+))?)?$`)

// ParseObis accepts the conventional "1-0:1.8.0.255" or shortened
// "1.8.0" textual forms used in configuration and logs.
func ParseObis(s string) (Obis, error) {
	m := obisPattern.FindStringSubmatch(s)
	if m == nil {
		return Obis{}, dlmserr.Newf(dlmserr.Codec, "invalid obis code %q", s)
	}
	atoi := func(s string, def int) int {
		if s == "" {
			return def
		}
		n, _ := strconv.Atoi(s)
		return n
	}
	a, b, c, d := atoi(m[1], 0), atoi(m[2], 0), atoi(m[3], 0), atoi(m[4], 0)
	e, f := atoi(m[5], 255), atoi(m[6], 255)
	if a > 255 || b > 255 || c > 255 || d > 255 || e > 255 || f > 255 {
		return Obis{}, dlmserr.Newf(dlmserr.Codec, "obis component out of range in %q", s)
	}
	return Obis{byte(a), byte(b), byte(c), byte(d), byte(e), byte(f)}, nil
}
