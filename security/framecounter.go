package security

import "github.com/cybroslabs/dlms-go/dlmserr"

// FrameCounter enforces the monotonic, strictly-increasing frame-counter
// replay protection the security layer requires on decrypt: once a value
// has been seen, an equal or smaller value is rejected (§4.6, §7
// ReplayDetected).
type FrameCounter struct {
	last    uint32
	primed  bool
}

func (f *FrameCounter) Check(fc uint32) error {
	if f.primed && fc <= f.last {
		return dlmserr.Newf(dlmserr.ReplayDetected, "frame counter did not increase: got %d, last %d", fc, f.last)
	}
	f.last = fc
	f.primed = true
	return nil
}

func (f *FrameCounter) Reset() { f.primed = false; f.last = 0 }

// Next returns the next frame-counter value to use when sending, starting
// at 1 (0 is reserved as "never sent").
func (f *FrameCounter) Next() uint32 {
	f.last++
	return f.last
}
