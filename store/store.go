// Package store is the persistent byte-addressable configuration store.
package store

import (
	"io"
	"sync"

	"sensornode-go/errcode"
)

const (
	// Capacity is the total size of the configuration medium.
	Capacity = 2048
	// ModulesRegionLen is the reserved region holding module configuration blocks.
	ModulesRegionLen = 1024
)

// Store is byte-range access to non-volatile memory.
type Store interface {
	ReadRange(off int, buf []byte) error
	WriteRange(off int, data []byte) error
	EraseRange(off, n int) error
	Capacity() int
}

// Backing mirrors the medium to something that outlives the process
// (a file in the host simulator).
type Backing interface {
	io.ReaderAt
	io.WriterAt
}

// EEPROM is an in-memory medium with wear-avoiding writes.
type EEPROM struct {
	mu      sync.Mutex
	mem     []byte
	backing Backing
	writes  int // bytes physically written
}

func NewEEPROM() *EEPROM {
	return &EEPROM{mem: make([]byte, Capacity)}
}

// OpenEEPROM loads the medium from b and writes every change back to it.
// A short backing is treated as erased.
func OpenEEPROM(b Backing) (*EEPROM, error) {
	e := NewEEPROM()
	if _, err := b.ReadAt(e.mem, 0); err != nil && err != io.EOF {
		return nil, errcode.Wrap(errcode.LoadFailed, "eeprom.open", err)
	}
	e.backing = b
	return e, nil
}

func (e *EEPROM) Capacity() int { return len(e.mem) }

func (e *EEPROM) check(off, n int) error {
	if off < 0 || n < 0 || off+n > len(e.mem) {
		return errcode.OutOfRange
	}
	return nil
}

func (e *EEPROM) ReadRange(off int, buf []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(off, len(buf)); err != nil {
		return err
	}
	copy(buf, e.mem[off:])
	return nil
}

// WriteRange skips bytes that already hold the desired value.
func (e *EEPROM) WriteRange(off int, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(off, len(data)); err != nil {
		return err
	}
	dirty := false
	for i, b := range data {
		if e.mem[off+i] != b {
			e.mem[off+i] = b
			e.writes++
			dirty = true
		}
	}
	if dirty {
		return e.flush(off, len(data))
	}
	return nil
}

func (e *EEPROM) EraseRange(off, n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(off, n); err != nil {
		return err
	}
	for i := off; i < off+n; i++ {
		if e.mem[i] != 0 {
			e.mem[i] = 0
			e.writes++
		}
	}
	return e.flush(off, n)
}

// Writes reports how many bytes were physically programmed.
func (e *EEPROM) Writes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writes
}

func (e *EEPROM) flush(off, n int) error {
	if e.backing == nil {
		return nil
	}
	if _, err := e.backing.WriteAt(e.mem[off:off+n], int64(off)); err != nil {
		return errcode.Wrap(errcode.SaveFailed, "eeprom.flush", err)
	}
	return nil
}

// Region is a bound-checked window of a Store.
type Region struct {
	S    Store
	Base int
	Len  int
}

func (r Region) ReadAt(off int, buf []byte) error {
	if off < 0 || off+len(buf) > r.Len {
		return errcode.OutOfRange
	}
	return r.S.ReadRange(r.Base+off, buf)
}

func (r Region) WriteAt(off int, data []byte) error {
	if off < 0 || off+len(data) > r.Len {
		return errcode.OutOfRange
	}
	return r.S.WriteRange(r.Base+off, data)
}

func (r Region) Erase() error { return r.S.EraseRange(r.Base, r.Len) }
