// Package uartlink is a framed serial uplink. Each period's sensor buffer
// goes out as one frame; inbound frames are forwarded to rxdisplay or, for
// command frames, to the remote terminal.
package uartlink

import (
	"context"
	"sync/atomic"

	"sensornode-go/bus"
	"sensornode-go/errcode"
	"sensornode-go/types"
	"sensornode-go/x/logx"
	"sensornode-go/x/shmring"
)

// KindCommand marks an inbound frame whose remaining bytes are a terminal
// line.
const KindCommand = 0x10

const rxRingSize = 2048

// Port is the serial device underneath the link.
type Port interface {
	Write(p []byte) (int, error)
	// Recv blocks until at least one byte arrives or ctx ends.
	Recv(ctx context.Context, buf []byte) (int, error)
}

type Link struct {
	port   Port
	notify func()
	cmd    func(line string) bool
	log    *logx.Logger

	rx  *shmring.Ring
	dec decoder

	slot *bus.Slot

	tx      chan []byte
	txBusy  atomic.Bool
	txFrame [MaxFrame]byte

	sent     atomic.Uint32
	txErrors atomic.Uint32
	received uint32
	dropped  uint32
}

// New creates a link on port. notify is called from the link's goroutines
// whenever the main loop has work (bytes received, transmit done).
func New(port Port, notify func()) *Link {
	l := &Link{
		port:   port,
		notify: notify,
		log:    logx.New("uartlink", types.SevError),
		rx:     shmring.New(rxRingSize),
		tx:     make(chan []byte, 1),
	}
	l.dec.ring = l.rx
	return l
}

// OnCommand installs the sink for command frames.
func (l *Link) OnCommand(fn func(line string) bool) { l.cmd = fn }

func (l *Link) ApplyConfig(b []byte) error {
	l.log.SetSeverity(types.CfgByte(b[0]).Severity())
	return nil
}

func (l *Link) Init(out *bus.Outbox) error {
	l.slot = out.Slot(types.ModRxDisplay, MaxPayload)
	return nil
}

// Run services the port until ctx ends.
func (l *Link) Run(ctx context.Context) {
	go l.readLoop(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-l.tx:
			if _, err := l.port.Write(f); err != nil {
				l.txErrors.Add(1)
				l.log.Errorf("write: %v", err)
			} else {
				l.sent.Add(1)
			}
			l.txBusy.Store(false)
			l.signal()
		}
	}
}

func (l *Link) readLoop(ctx context.Context) {
	var buf [64]byte
	for {
		n, err := l.port.Recv(ctx, buf[:])
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			l.log.Errorf("read: %v", err)
			continue
		}
		if n > 0 {
			l.rx.Push(buf[:n])
			l.signal()
		}
	}
}

func (l *Link) signal() {
	if l.notify != nil {
		l.notify()
	}
}

// SendData queues the frame for the transmit goroutine. While a previous
// frame is still going out it returns errcode.NotReady.
func (l *Link) SendData(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if l.port == nil {
		return errcode.NotReady
	}
	if !l.txBusy.CompareAndSwap(false, true) {
		return errcode.NotReady
	}
	n, err := Encode(l.txFrame[:], data)
	if err != nil {
		l.txBusy.Store(false)
		return err
	}
	l.tx <- l.txFrame[:n]
	l.log.Debugf("queued %d byte frame", n)
	return nil
}

// SleepEnter holds the node awake while a frame is on the wire.
func (l *Link) SleepEnter() error {
	if l.txBusy.Load() {
		return errcode.Busy
	}
	return nil
}

// ReceiveData drains complete inbound frames. Command frames go to the
// terminal; the first other frame is posted to rxdisplay and the rest
// stay buffered until the slot is free again.
func (l *Link) ReceiveData() error {
	for {
		p, size, ok := l.dec.next()
		if !ok {
			break
		}
		if len(p) > 0 && p[0] == KindCommand {
			if l.cmd == nil || !l.cmd(string(p[1:])) {
				l.log.Errorf("command dropped")
			}
			l.dec.commit(size)
			continue
		}
		if l.slot == nil || l.slot.Pending() {
			break
		}
		if len(p) == 0 {
			l.dec.commit(size)
			continue
		}
		if err := l.slot.Post(p); err != nil {
			l.log.Errorf("post: %v", err)
		}
		l.dec.commit(size)
		l.received++
	}
	if d := l.rx.Dropped(); d != l.dropped {
		l.log.Errorf("rx overrun: %d bytes lost", d-l.dropped)
		l.dropped = d
	}
	return nil
}

type Stats struct {
	Sent, TxErrors, Received, Resyncs, CRCErrors uint32
}

func (l *Link) Stats() Stats {
	return Stats{
		Sent:      l.sent.Load(),
		TxErrors:  l.txErrors.Load(),
		Received:  l.received,
		Resyncs:   l.dec.resyncs,
		CRCErrors: l.dec.crcErrors,
	}
}
