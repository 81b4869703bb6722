//go:build !rp2040 && !rp2350

package platform

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"sensornode-go/services/resetman"
	"sensornode-go/services/sleep"
)

// ----------------------------- interrupts ------------------------------------

// Mask tracks nesting only; the host has no interrupts to hold off.
type Mask struct{ depth atomic.Int32 }

func (m *Mask) Disable() sleep.State  { return sleep.State(m.depth.Add(1) - 1) }
func (m *Mask) Restore(s sleep.State) { m.depth.Store(int32(s)) }

// ----------------------------- watchdog --------------------------------------

// Watchdog counts kicks. Expired reports whether the timeout passed since
// the last Update, which the simulator treats as a watchdog reset.
type Watchdog struct {
	mu        sync.Mutex
	timeoutMs uint32
	running   bool
	last      time.Time
	updates   uint32
}

func (w *Watchdog) Configure(timeoutMs uint32) error {
	if timeoutMs == 0 {
		return errors.New("watchdog: zero timeout")
	}
	w.mu.Lock()
	w.timeoutMs = timeoutMs
	w.mu.Unlock()
	return nil
}

func (w *Watchdog) Start() error {
	w.mu.Lock()
	w.running, w.last = true, time.Now()
	w.mu.Unlock()
	return nil
}

func (w *Watchdog) Update() {
	w.mu.Lock()
	w.last = time.Now()
	w.updates++
	w.mu.Unlock()
}

func (w *Watchdog) Updates() uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.updates
}

func (w *Watchdog) Expired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running && time.Since(w.last) > time.Duration(w.timeoutMs)*time.Millisecond
}

// ResetCause is what the host can tell about the last reset.
func ResetCause() resetman.Reason { return resetman.ReasonPowerOn }

// ----------------------------- serial ----------------------------------------

// SerialPort adapts a go.bug.st/serial port to the link's Port.
type SerialPort struct {
	p serial.Port
}

const serialPollTimeout = 100 * time.Millisecond

func OpenSerial(name string, baud int) (*SerialPort, error) {
	p, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(serialPollTimeout); err != nil {
		p.Close()
		return nil, err
	}
	return &SerialPort{p: p}, nil
}

func (s *SerialPort) Write(b []byte) (int, error) { return s.p.Write(b) }

// Recv polls the port until bytes arrive or ctx ends.
func (s *SerialPort) Recv(ctx context.Context, buf []byte) (int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := s.p.Read(buf)
		if err != nil || n > 0 {
			return n, err
		}
	}
}

func (s *SerialPort) Close() error { return s.p.Close() }

// NullPort discards writes and never receives.
type NullPort struct{ Written atomic.Uint32 }

func (p *NullPort) Write(b []byte) (int, error) {
	p.Written.Add(1)
	return len(b), nil
}

func (p *NullPort) Recv(ctx context.Context, _ []byte) (int, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

// ReadLines feeds each line of r to fn until r ends or ctx is done.
func ReadLines(ctx context.Context, r io.Reader, fn func(string) bool) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		fn(sc.Text())
	}
}

// ----------------------------- I2C / ADC -------------------------------------

// HostI2C implements tinygo drivers.I2C. Respond, if set, fills reads.
type HostI2C struct {
	mu      sync.Mutex
	Respond func(addr uint16, w, r []byte) error
	LastTx  struct {
		Addr uint16
		W    []byte
		Rn   int
	}
}

func (h *HostI2C) Tx(addr uint16, w, r []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastTx.Addr = addr
	h.LastTx.W = append(h.LastTx.W[:0], w...)
	h.LastTx.Rn = len(r)
	if h.Respond != nil {
		return h.Respond(addr, w, r)
	}
	return nil
}

// HostADC returns a settable raw reading.
type HostADC struct{ v atomic.Uint32 }

func (a *HostADC) Set(v uint16) { a.v.Store(uint32(v)) }
func (a *HostADC) Get() uint16  { return uint16(a.v.Load()) }

// SHTC3 answers measurement reads the way an SHTC3 at milliC and
// RHx100 would, CRC included.
func SHTC3(milliC int32, rhx100 uint16) func(addr uint16, w, r []byte) error {
	rawT := uint16((int64(milliC) + 45000) * 65536 / 175000)
	rawRH := uint16(min(uint32(rhx100)*65536/10000, 0xFFFF))
	return func(_ uint16, _, r []byte) error {
		if len(r) < 6 {
			return nil
		}
		r[0], r[1] = byte(rawT>>8), byte(rawT)
		r[2] = sensirionCRC(r[0:2])
		r[3], r[4] = byte(rawRH>>8), byte(rawRH)
		r[5] = sensirionCRC(r[3:5])
		return nil
	}
}

func sensirionCRC(b []byte) byte {
	crc := byte(0xFF)
	for _, v := range b {
		crc ^= v
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
