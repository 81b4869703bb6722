package modules

import "sensornode-go/errcode"

// SensorBufferLen is the capacity of the shared per-period sensor buffer.
const SensorBufferLen = 512

// SensorBuffer accumulates every module's sensor output for one period.
type SensorBuffer struct {
	buf [SensorBufferLen]byte
	n   int
}

func (b *SensorBuffer) Reset()        { b.n = 0 }
func (b *SensorBuffer) Len() int      { return b.n }
func (b *SensorBuffer) Bytes() []byte { return b.buf[:b.n] }

// Remaining is the write window for the next module.
func (b *SensorBuffer) Remaining() []byte { return b.buf[b.n:] }

// Advance commits n bytes written into Remaining. A count beyond the
// window is clamped to it and reported as errcode.BufferFull.
func (b *SensorBuffer) Advance(n int) error {
	if n < 0 {
		return errcode.InvalidParams
	}
	if room := len(b.buf) - b.n; n > room {
		b.n = len(b.buf)
		return errcode.BufferFull
	}
	b.n += n
	return nil
}
