package hdlc

import (
	"io"

	"github.com/cybroslabs/dlms-go/dlmserr"
)

const (
	flagByte         = 0x7e
	maxBytesBefore7e = 100
	maxLength        = 2050
)

// frame is one decoded HDLC frame. control has the poll/final bit cleared
// (final records it); the 3-bit N(S)/N(R) stay in control and are read
// with nS/nR.
type frame struct {
	control   byte
	info      []byte
	segmented bool
	final     bool
}

func isIFrame(control byte) bool   { return control&1 == 0 }
func isUFrame(control byte) bool   { return control&0x3 == 0x3 }
func nS(control byte) byte         { return (control >> 1) & 7 }
func nR(control byte) byte         { return control >> 5 }
func isRRframe(control byte) bool  { return control&0xf == 1 }
func isREJframe(control byte) bool { return control&0xf == 9 }
func isRNRframe(control byte) bool { return control&0xf == 5 }

func iControl(ns, nr byte) byte      { return (nr << 5) | (ns << 1) }
func rrControl(nr byte) byte         { return (nr << 5) | 1 }
func rejControl(nr byte) byte        { return (nr << 5) | 9 }

const (
	controlSNRM = 0x83
	controlUA   = 0x63
	controlDISC = 0x43
	controlDM   = 0x0f
	controlFRMR = 0x97
)

var fcstab = [...]uint16{
	0x0000, 0x1189, 0x2312, 0x329b, 0x4624, 0x57ad, 0x6536, 0x74bf,
	0x8c48, 0x9dc1, 0xaf5a, 0xbed3, 0xca6c, 0xdbe5, 0xe97e, 0xf8f7,
	0x1081, 0x0108, 0x3393, 0x221a, 0x56a5, 0x472c, 0x75b7, 0x643e,
	0x9cc9, 0x8d40, 0xbfdb, 0xae52, 0xdaed, 0xcb64, 0xf9ff, 0xe876,
	0x2102, 0x308b, 0x0210, 0x1399, 0x6726, 0x76af, 0x4434, 0x55bd,
	0xad4a, 0xbcc3, 0x8e58, 0x9fd1, 0xeb6e, 0xfae7, 0xc87c, 0xd9f5,
	0x3183, 0x200a, 0x1291, 0x0318, 0x77a7, 0x662e, 0x54b5, 0x453c,
	0xbdcb, 0xac42, 0x9ed9, 0x8f50, 0xfbef, 0xea66, 0xd8fd, 0xc974,
	0x4204, 0x538d, 0x6116, 0x709f, 0x0420, 0x15a9, 0x2732, 0x36bb,
	0xce4c, 0xdfc5, 0xed5e, 0xfcd7, 0x8868, 0x99e1, 0xab7a, 0xbaf3,
	0x5285, 0x430c, 0x7197, 0x601e, 0x14a1, 0x0528, 0x37b3, 0x263a,
	0xdecd, 0xcf44, 0xfddf, 0xec56, 0x98e9, 0x8960, 0xbbfb, 0xaa72,
	0x6306, 0x728f, 0x4014, 0x519d, 0x2522, 0x34ab, 0x0630, 0x17b9,
	0xef4e, 0xfec7, 0xcc5c, 0xddd5, 0xa96a, 0xb8e3, 0x8a78, 0x9bf1,
	0x7387, 0x620e, 0x5095, 0x411c, 0x35a3, 0x242a, 0x16b1, 0x0738,
	0xffcf, 0xee46, 0xdcdd, 0xcd54, 0xb9eb, 0xa862, 0x9af9, 0x8b70,
	0x8408, 0x9581, 0xa71a, 0xb693, 0xc22c, 0xd3a5, 0xe13e, 0xf0b7,
	0x0840, 0x19c9, 0x2b52, 0x3adb, 0x4e64, 0x5fed, 0x6d76, 0x7cff,
	0x9489, 0x8500, 0xb79b, 0xa612, 0xd2ad, 0xc324, 0xf1bf, 0xe036,
	0x18c1, 0x0948, 0x3bd3, 0x2a5a, 0x5ee5, 0x4f6c, 0x7df7, 0x6c7e,
	0xa50a, 0xb483, 0x8618, 0x9791, 0xe32e, 0xf2a7, 0xc03c, 0xd1b5,
	0x2942, 0x38cb, 0x0a50, 0x1bd9, 0x6f66, 0x7eef, 0x4c74, 0x5dfd,
	0xb58b, 0xa402, 0x9699, 0x8710, 0xf3af, 0xe226, 0xd0bd, 0xc134,
	0x39c3, 0x284a, 0x1ad1, 0x0b58, 0x7fe7, 0x6e6e, 0x5cf5, 0x4d7c,
	0xc60c, 0xd785, 0xe51e, 0xf497, 0x8028, 0x91a1, 0xa33a, 0xb2b3,
	0x4a44, 0x5bcd, 0x6956, 0x78df, 0x0c60, 0x1de9, 0x2f72, 0x3efb,
	0xd68d, 0xc704, 0xf59f, 0xe416, 0x90a9, 0x8120, 0xb3bb, 0xa232,
	0x5ac5, 0x4b4c, 0x79d7, 0x685e, 0x1ce1, 0x0d68, 0x3ff3, 0x2e7a,
	0xe70e, 0xf687, 0xc41c, 0xd595, 0xa12a, 0xb0a3, 0x8238, 0x93b1,
	0x6b46, 0x7acf, 0x4854, 0x59dd, 0x2d62, 0x3ceb, 0x0e70, 0x1ff9,
	0xf78f, 0xe606, 0xd49d, 0xc514, 0xb1ab, 0xa022, 0x92b9, 0x8330,
	0x7bc7, 0x6a4e, 0x58d5, 0x495c, 0x3de3, 0x2c6a, 0x1ef1, 0x0f78,
}

func crc16(d []byte) uint16 {
	c := uint16(0xffff)
	for _, b := range d {
		c = fcstab[byte(c)^b] ^ (c >> 8)
	}
	return c ^ 0xffff
}

// crc16Split computes HCS over d[:ih] and FCS over all of d, d already
// containing everything between the two flag bytes except the FCS itself.
func crc16Split(d []byte, ih int) (hcs uint16, fcs uint16) {
	c := uint16(0xffff)
	for i := 0; i < ih; i++ {
		c = fcstab[byte(c)^d[i]] ^ (c >> 8)
	}
	hcs = c ^ 0xffff
	for i := ih; i < len(d); i++ {
		c = fcstab[byte(c)^d[i]] ^ (c >> 8)
	}
	return hcs, c ^ 0xffff
}

func crc16Write(d []byte, ih int) uint16 {
	c := uint16(0xffff)
	for i := 0; i < ih; i++ {
		c = fcstab[byte(c)^d[i]] ^ (c >> 8)
	}
	hcs := c ^ 0xffff
	d[ih] = byte(hcs)
	d[ih+1] = byte(hcs >> 8)
	for i := ih; i < len(d); i++ {
		c = fcstab[byte(c)^d[i]] ^ (c >> 8)
	}
	return c ^ 0xffff
}

// addressLength decides the HDLC address field layout for a logical/physical
// pair: 1 octet if physical is absent and logical fits in 7 bits, 2 octets
// if both fit in 7 bits, 4 octets otherwise.
func addressLength(logical, physical uint16) int {
	if logical <= 0x7f {
		if physical == 0 {
			return 1
		}
		if physical <= 0x7f {
			return 2
		}
	}
	return 4
}

// encodeFrame serializes one HDLC frame (§4.3) with client as the address
// octet opposite the logical/physical pair. The length field covers
// everything between the two flag octets, excluding the flags.
func encodeFrame(buf []byte, client byte, logical, physical uint16, control byte, final bool, info []byte, segmented bool) ([]byte, error) {
	addrlen := addressLength(logical, physical)
	need := 1 + 2 + addrlen + 1 + 1 + 2 + len(info) + 2 + 1
	if cap(buf) < need {
		buf = make([]byte, need)
	} else {
		buf = buf[:need]
	}

	buf[0] = flagByte
	off := 3 // flag + format(2)
	switch addrlen {
	case 1:
		buf[off] = byte(logical<<1) | 1
		off++
	case 2:
		buf[off] = byte(logical << 1)
		off++
		buf[off] = byte(physical<<1) | 1
		off++
	case 4:
		buf[off] = byte(logical>>7) << 1
		off++
		buf[off] = byte(logical << 1)
		off++
		buf[off] = byte(physical>>7) << 1
		off++
		buf[off] = byte(physical<<1) | 1
		off++
	default:
		return nil, dlmserr.New(dlmserr.Protocol, "invalid address length")
	}

	buf[off] = byte(client<<1) | 1
	off++
	cb := control
	if final {
		cb |= 0x10
	}
	buf[off] = cb
	off++

	hstart := 1
	if len(info) > 0 {
		leni := off - hstart + 2 + len(info) + 2
		if leni > 0x7ff {
			return nil, dlmserr.New(dlmserr.Protocol, "frame too long to encode")
		}
		buf[1] = 0xa0 | byte(leni>>8)
		if segmented {
			buf[1] |= 8
		}
		buf[2] = byte(leni)
		hcsOff := off
		off += 2
		copy(buf[off:], info)
		off += len(info)
		fcs := crc16Write(buf[hstart:off], hcsOff-hstart)
		buf[off] = byte(fcs)
		off++
		buf[off] = byte(fcs >> 8)
		off++
		_ = hcsOff
	} else {
		leni := off - hstart + 2
		buf[1] = 0xa0 | byte(leni>>8)
		if segmented {
			buf[1] |= 8
		}
		buf[2] = byte(leni)
		fcs := crc16(buf[hstart:off])
		buf[off] = byte(fcs)
		off++
		buf[off] = byte(fcs >> 8)
		off++
	}
	buf[off] = flagByte
	off++
	return buf[:off], nil
}

// frameReader reassembles a single HDLC frame from a byte stream, resyncing
// on the opening flag the way the teacher's readpacket did: HDLC uses a
// length field (not byte-stuffing), so once the flag is found the remaining
// length is known up front.
type frameReader struct {
	r      io.Reader
	scratch [3]byte
	client  byte
	logical uint16
	physical uint16
}

func newFrameReader(r io.Reader, client byte, logical, physical uint16) *frameReader {
	return &frameReader{r: r, client: client, logical: logical, physical: physical}
}

func (fr *frameReader) parseMinHeader(b []byte) (uint, error) {
	if (b[1] & 0xf0) != 0xa0 {
		return 0, dlmserr.Newf(dlmserr.FrameInvalid, "invalid starting packet: %x", b[1])
	}
	length := ((uint(b[1]) & 7) << 8) | uint(b[2])
	if length < 7 {
		return 0, dlmserr.New(dlmserr.FrameInvalid, "frame length too short")
	}
	return length - 2, nil
}

// next reads one complete frame. first indicates whether the opening flag
// must be searched for (start of a stream read) or is known to start the
// next byte (consecutive frames in one read()).
func (fr *frameReader) next(first bool) (frame, error) {
	var pck frame
	var hdr [3]byte
	length := uint(0)
	var err error

	if first {
		bcnt := 0
		for {
			if _, err = io.ReadFull(fr.r, hdr[:]); err != nil {
				return pck, dlmserr.Wrap(dlmserr.Transport, "read failed", err)
			}
			if hdr[0] == flagByte {
				length, err = fr.parseMinHeader(hdr[:])
				break
			}
			if hdr[1] == flagByte {
				hdr[1] = hdr[2]
				if _, err = io.ReadFull(fr.r, hdr[2:3]); err != nil {
					return pck, dlmserr.Wrap(dlmserr.Transport, "read failed", err)
				}
				length, err = fr.parseMinHeader(hdr[:])
				break
			}
			if hdr[2] == flagByte {
				if _, err = io.ReadFull(fr.r, hdr[1:3]); err != nil {
					return pck, dlmserr.Wrap(dlmserr.Transport, "read failed", err)
				}
				length, err = fr.parseMinHeader(hdr[:])
				break
			}
			bcnt += 3
			if bcnt > maxBytesBefore7e {
				return pck, dlmserr.New(dlmserr.FrameInvalid, "too many bytes before flag found")
			}
		}
	} else {
		if _, err = io.ReadFull(fr.r, hdr[1:3]); err != nil {
			return pck, dlmserr.Wrap(dlmserr.Transport, "read failed", err)
		}
		if (hdr[1] & 0xf0) == 0xa0 {
			length, err = fr.parseMinHeader(hdr[:])
		} else if hdr[1] == flagByte {
			hdr[1] = hdr[2]
			if _, err = io.ReadFull(fr.r, hdr[2:3]); err != nil {
				return pck, dlmserr.Wrap(dlmserr.Transport, "read failed", err)
			}
			length, err = fr.parseMinHeader(hdr[:])
		} else {
			return pck, dlmserr.New(dlmserr.FrameInvalid, "expected flag or frame header")
		}
	}
	if err != nil {
		return pck, err
	}

	body := make([]byte, length+3)
	body[0] = hdr[1]
	body[1] = hdr[2]
	if _, err = io.ReadFull(fr.r, body[2:]); err != nil {
		return pck, dlmserr.Wrap(dlmserr.Transport, "read failed", err)
	}
	if body[length+2] != flagByte {
		return pck, dlmserr.New(dlmserr.FrameInvalid, "missing closing flag")
	}
	return fr.parse(body[:length+2])
}

func (fr *frameReader) parse(ori []byte) (pck frame, err error) {
	if len(ori) < 6 {
		return pck, dlmserr.New(dlmserr.FrameInvalid, "frame too short")
	}
	if ori[2]&1 == 0 {
		return pck, dlmserr.New(dlmserr.FrameInvalid, "invalid client address terminator")
	}
	if ori[2]>>1 != fr.client {
		return pck, dlmserr.New(dlmserr.FrameInvalid, "client address mismatch")
	}

	var log, phy uint16
	var offset int
	if ori[3]&1 != 0 {
		log, phy, offset = uint16(ori[3]>>1), 0, 1
	} else if ori[4]&1 != 0 {
		log, phy, offset = uint16(ori[3]>>1), uint16(ori[4]>>1), 2
	} else if ori[5]&1 != 0 {
		return pck, dlmserr.New(dlmserr.FrameInvalid, "premature address termination")
	} else if len(ori) < 7 {
		return pck, dlmserr.New(dlmserr.FrameInvalid, "frame too short for address")
	} else if ori[6]&1 == 0 {
		return pck, dlmserr.New(dlmserr.FrameInvalid, "missing address terminator")
	} else {
		log = uint16(ori[3]>>1)<<7 | uint16(ori[4]>>1)
		phy = uint16(ori[5]>>1)<<7 | uint16(ori[6]>>1)
		offset = 4
	}
	if log != fr.logical {
		return pck, dlmserr.New(dlmserr.FrameInvalid, "logical address mismatch")
	}
	if phy != fr.physical {
		return pck, dlmserr.New(dlmserr.FrameInvalid, "physical address mismatch")
	}
	if len(ori) < offset+6 {
		return pck, dlmserr.New(dlmserr.FrameInvalid, "frame too short")
	}

	offset += 3
	pck.segmented = ori[0]&8 != 0
	pck.control = ori[offset]
	pck.final = pck.control&0x10 != 0
	pck.control &= 0xef

	rem := len(ori) - offset
	switch {
	case rem < 3:
		return pck, dlmserr.New(dlmserr.FrameInvalid, "frame too short")
	case rem == 3:
		fcs := crc16(ori[:len(ori)-2])
		if fcs != uint16(ori[len(ori)-2])|(uint16(ori[len(ori)-1])<<8) {
			return pck, dlmserr.New(dlmserr.FrameInvalid, "fcs mismatch")
		}
		return pck, nil
	case rem == 4:
		return pck, dlmserr.New(dlmserr.FrameInvalid, "invalid frame length")
	default:
		hcs, fcs := crc16Split(ori[:len(ori)-2], offset+1)
		if hcs != uint16(ori[offset+1])|(uint16(ori[offset+2])<<8) {
			return pck, dlmserr.New(dlmserr.FrameInvalid, "hcs mismatch")
		}
		if fcs != uint16(ori[len(ori)-2])|(uint16(ori[len(ori)-1])<<8) {
			return pck, dlmserr.New(dlmserr.FrameInvalid, "fcs mismatch")
		}
		pck.info = ori[offset+3 : len(ori)-2]
	}
	return pck, nil
}
