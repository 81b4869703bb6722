// Package shmring is a single-producer, single-consumer byte ring. The
// producer is typically a UART reader goroutine, the consumer the main
// loop.
package shmring

import "sync/atomic"

type Ring struct {
	buf  []byte
	mask uint32
	rd   atomic.Uint32 // consumer index (monotonic)
	wr   atomic.Uint32 // producer index (monotonic)

	dropped atomic.Uint32
}

// New allocates a ring. size must be a power of two >= 2.
func New(size int) *Ring {
	if size < 2 || size&(size-1) != 0 {
		panic("shmring: size must be power of two >= 2")
	}
	return &Ring{buf: make([]byte, size), mask: uint32(size - 1)}
}

func (r *Ring) size() uint32 { return uint32(len(r.buf)) }

func (r *Ring) Available() int { return int(r.wr.Load() - r.rd.Load()) }

func (r *Ring) Space() int { return int(r.size()) - r.Available() }

// Dropped counts bytes Push had to throw away.
func (r *Ring) Dropped() uint32 { return r.dropped.Load() }

// Push writes src for a producer that cannot retry; whatever does not fit
// is lost and counted in Dropped.
func (r *Ring) Push(src []byte) int {
	n := r.WriteFrom(src)
	if d := len(src) - n; d > 0 {
		r.dropped.Add(uint32(d))
	}
	return n
}

// WriteFrom copies as much of src as fits and returns the count. The
// caller keeps the rest.
func (r *Ring) WriteFrom(src []byte) int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	n := int(r.size() - (wr - rd))
	if n > len(src) {
		n = len(src)
	}
	if n == 0 {
		return 0
	}
	i := wr & r.mask
	first := copy(r.buf[i:], src[:n])
	copy(r.buf, src[first:n])
	r.wr.Store(wr + uint32(n))
	return n
}

// ReadInto moves up to len(dst) bytes out of the ring.
func (r *Ring) ReadInto(dst []byte) int {
	n := r.Peek(dst)
	r.rd.Add(uint32(n))
	return n
}

// Peek copies up to len(dst) bytes without consuming them.
func (r *Ring) Peek(dst []byte) int {
	rd := r.rd.Load()
	n := int(r.wr.Load() - rd)
	if n > len(dst) {
		n = len(dst)
	}
	if n == 0 {
		return 0
	}
	i := rd & r.mask
	first := copy(dst[:n], r.buf[i:])
	copy(dst[first:n], r.buf)
	return n
}

// Discard drops up to n buffered bytes.
func (r *Ring) Discard(n int) {
	if a := r.Available(); n > a {
		n = a
	}
	r.rd.Add(uint32(n))
}
