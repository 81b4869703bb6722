//go:build rp2040 || rp2350

package platform

import (
	"context"
	"machine"
	"runtime/interrupt"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"sensornode-go/services/resetman"
	"sensornode-go/services/sleep"
)

// ----------------------------- interrupts ------------------------------------

type Mask struct{}

func (*Mask) Disable() sleep.State  { return sleep.State(interrupt.Disable()) }
func (*Mask) Restore(s sleep.State) { interrupt.Restore(interrupt.State(s)) }

// ----------------------------- watchdog --------------------------------------

type Watchdog struct{}

func (*Watchdog) Configure(timeoutMs uint32) error {
	return machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: timeoutMs})
}

func (*Watchdog) Start() error { return machine.Watchdog.Start() }
func (*Watchdog) Update()      { machine.Watchdog.Update() }

// SystemReset does not return.
func SystemReset() { machine.CPUReset() }

// ResetCause is what the hardware can tell about the last reset. The
// stored reset record carries the precise reason.
func ResetCause() resetman.Reason { return resetman.ReasonPowerOn }

// ----------------------------- serial ----------------------------------------

// UARTPort adapts a uartx UART to the link's Port.
type UARTPort struct{ u *uartx.UART }

// OpenUART configures uart ("uart0" or "uart1") on the given pins.
func OpenUART(id string, baud uint32, tx, rx machine.Pin) (*UARTPort, bool) {
	var hw *uartx.UART
	switch id {
	case "uart0":
		hw = uartx.UART0
	case "uart1":
		hw = uartx.UART1
	default:
		return nil, false
	}
	_ = hw.Configure(uartx.UARTConfig{BaudRate: baud, TX: tx, RX: rx})
	return &UARTPort{u: hw}, true
}

func (p *UARTPort) Write(b []byte) (int, error) { return p.u.Write(b) }

func (p *UARTPort) Recv(ctx context.Context, buf []byte) (int, error) {
	return p.u.RecvSomeContext(ctx, buf)
}

// ReadLines feeds each CR or LF terminated line from p to fn until ctx
// ends.
func ReadLines(ctx context.Context, p *UARTPort, fn func(string) bool) {
	var line [128]byte
	var buf [32]byte
	n := 0
	for {
		m, err := p.Recv(ctx, buf[:])
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			continue
		}
		for _, c := range buf[:m] {
			switch {
			case c == '\r' || c == '\n':
				if n > 0 {
					fn(string(line[:n]))
					n = 0
				}
			case n < len(line):
				line[n] = c
				n++
			}
		}
	}
}

// ----------------------------- I2C / ADC -------------------------------------

// OpenI2C0 configures I2C0 on the given pins. *machine.I2C implements
// tinygo drivers.I2C.
func OpenI2C0(sda, scl machine.Pin, hz uint32) *machine.I2C {
	sda.Configure(machine.PinConfig{Mode: machine.PinI2C})
	scl.Configure(machine.PinConfig{Mode: machine.PinI2C})
	_ = machine.I2C0.Configure(machine.I2CConfig{SDA: sda, SCL: scl, Frequency: hz})
	return machine.I2C0
}

// OpenADC configures pin as an analog input.
func OpenADC(pin machine.Pin) machine.ADC {
	machine.InitADC()
	a := machine.ADC{Pin: pin}
	a.Configure(machine.ADCConfig{})
	return a
}

// ----------------------------- flash -----------------------------------------

// FlashBacking keeps the store image in the first erase block(s) of the
// flash data area. Every write reprograms the whole image.
type FlashBacking struct {
	img []byte
}

func NewFlashBacking(size int) *FlashBacking {
	return &FlashBacking{img: make([]byte, size)}
}

// ReadAt reads the image. A never programmed area (all 0xFF) reads as
// zeros, the store's erased state.
func (f *FlashBacking) ReadAt(p []byte, off int64) (int, error) {
	n, err := machine.Flash.ReadAt(p, off)
	if err != nil {
		return n, err
	}
	blank := true
	for _, b := range p[:n] {
		if b != 0xFF {
			blank = false
			break
		}
	}
	if blank {
		clear(p[:n])
	}
	if int(off)+n <= len(f.img) {
		copy(f.img[off:], p[:n])
	}
	return n, nil
}

func (f *FlashBacking) WriteAt(p []byte, off int64) (int, error) {
	n := copy(f.img[off:], p)
	bs := machine.Flash.EraseBlockSize()
	blocks := (int64(len(f.img)) + bs - 1) / bs
	if err := machine.Flash.EraseBlocks(0, blocks); err != nil {
		return 0, err
	}
	if _, err := machine.Flash.WriteAt(f.img, 0); err != nil {
		return 0, err
	}
	return n, nil
}
