package uartlink

import (
	"sensornode-go/errcode"
	"sensornode-go/x/shmring"
)

// Frame layout: START, length (big endian u16), payload, CRC16 (big
// endian) over length and payload.
const (
	startByte     = 0x7E
	headerLen     = 3
	trailerLen    = 2
	frameOverhead = headerLen + trailerLen

	MaxPayload = 512
	MaxFrame   = MaxPayload + frameOverhead

	crcInitial    = 0xFFFF
	crcPolynomial = 0x1021
)

// CRC16 is CRC-16/CCITT-FALSE.
func CRC16(data []byte) uint16 {
	crc := uint16(crcInitial)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Encode writes one frame carrying p into dst and returns its length.
func Encode(dst, p []byte) (int, error) {
	if len(p) > MaxPayload {
		return 0, errcode.InvalidPayload
	}
	n := len(p) + frameOverhead
	if len(dst) < n {
		return 0, errcode.BufferFull
	}
	dst[0] = startByte
	dst[1] = byte(len(p) >> 8)
	dst[2] = byte(len(p))
	copy(dst[headerLen:], p)
	crc := CRC16(dst[1 : headerLen+len(p)])
	dst[n-2] = byte(crc >> 8)
	dst[n-1] = byte(crc)
	return n, nil
}

// decoder finds frames in a byte ring. Frames are only consumed on
// commit, so a frame that cannot be delivered yet stays buffered.
type decoder struct {
	ring    *shmring.Ring
	scratch [MaxFrame]byte

	resyncs   uint32
	crcErrors uint32
}

// next returns the payload of the oldest complete frame and the number of
// ring bytes it occupies. Garbage and corrupt frames are skipped.
func (d *decoder) next() (payload []byte, size int, ok bool) {
	for {
		if d.ring.Peek(d.scratch[:headerLen]) < headerLen {
			return nil, 0, false
		}
		if d.scratch[0] != startByte {
			d.ring.Discard(1)
			d.resyncs++
			continue
		}
		plen := int(d.scratch[1])<<8 | int(d.scratch[2])
		if plen > MaxPayload {
			d.ring.Discard(1)
			d.resyncs++
			continue
		}
		size = plen + frameOverhead
		if d.ring.Available() < size {
			return nil, 0, false
		}
		d.ring.Peek(d.scratch[:size])
		got := uint16(d.scratch[size-2])<<8 | uint16(d.scratch[size-1])
		if CRC16(d.scratch[1:headerLen+plen]) != got {
			d.ring.Discard(1)
			d.crcErrors++
			continue
		}
		return d.scratch[headerLen : headerLen+plen], size, true
	}
}

func (d *decoder) commit(size int) { d.ring.Discard(size) }
