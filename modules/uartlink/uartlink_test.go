package uartlink

import (
	"bytes"
	"context"
	"testing"
	"time"

	"sensornode-go/bus"
	"sensornode-go/errcode"
	"sensornode-go/types"
)

// gatePort holds every write until release is signalled.
type gatePort struct {
	release chan struct{}
	written chan []byte
	rx      chan []byte
}

func newGatePort() *gatePort {
	return &gatePort{release: make(chan struct{}), written: make(chan []byte, 4), rx: make(chan []byte, 4)}
}

func (p *gatePort) Write(b []byte) (int, error) {
	<-p.release
	p.written <- append([]byte(nil), b...)
	return len(b), nil
}

func (p *gatePort) Recv(ctx context.Context, buf []byte) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case b := <-p.rx:
		return copy(buf, b), nil
	}
}

func frame(t *testing.T, p []byte) []byte {
	t.Helper()
	buf := make([]byte, MaxFrame)
	n, err := Encode(buf, p)
	if err != nil {
		t.Fatal(err)
	}
	return buf[:n]
}

func TestCRC16KnownValue(t *testing.T) {
	if got := CRC16([]byte("123456789")); got != 0x29B1 {
		t.Fatalf("crc=%#04x", got)
	}
}

func TestInFlightTransmitIsNotReady(t *testing.T) {
	port := newGatePort()
	notified := make(chan struct{}, 8)
	l := New(port, func() { notified <- struct{}{} })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	if err := l.SendData([]byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := l.SendData([]byte{4}); err != errcode.NotReady {
		t.Fatalf("second send err=%v", err)
	}
	if err := l.SleepEnter(); err != errcode.Busy {
		t.Fatalf("sleep allowed during transmit: %v", err)
	}

	close(port.release)
	select {
	case got := <-port.written:
		if !bytes.Equal(got, frame(t, []byte{1, 2, 3})) {
			t.Fatalf("wire % x", got)
		}
	case <-time.After(time.Second):
		t.Fatal("frame never written")
	}
	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Fatal("no notify after transmit")
	}
	if err := l.SleepEnter(); err != nil {
		t.Fatalf("still busy after transmit: %v", err)
	}
}

func TestReceiveRoutesFrames(t *testing.T) {
	b := bus.NewBus(bus.Options{}, nil)
	l := New(newGatePort(), nil)
	if err := l.Init(b.NewOutbox(types.ModUARTLink)); err != nil {
		t.Fatal(err)
	}
	var lines []string
	l.OnCommand(func(s string) bool { lines = append(lines, s); return true })

	var wire []byte
	wire = append(wire, 0x00, 0x13) // line noise
	wire = append(wire, frame(t, []byte{0x03, 'o', 'k'})...)
	bad := frame(t, []byte{0x00, 0xAA})
	bad[len(bad)-1] ^= 0xFF
	wire = append(wire, bad...)
	wire = append(wire, frame(t, append([]byte{KindCommand}, "setr remoteTerminal 2"...))...)
	wire = append(wire, frame(t, []byte{0x01, 0xB5})...)
	l.rx.WriteFrom(wire)

	if err := l.ReceiveData(); err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 || lines[0] != "setr remoteTerminal 2" {
		t.Fatalf("commands %q", lines)
	}
	if got := l.slot.Payload(); !bytes.Equal(got, []byte{0x03, 'o', 'k'}) {
		t.Fatalf("posted % x", got)
	}
	if l.rx.Available() == 0 {
		t.Fatal("second message should wait for the slot")
	}

	l.slot.Ack()
	_ = l.ReceiveData()
	if got := l.slot.Payload(); !bytes.Equal(got, []byte{0x01, 0xB5}) {
		t.Fatalf("posted % x", got)
	}
	st := l.Stats()
	if st.Received != 2 || st.CRCErrors != 1 || st.Resyncs == 0 {
		t.Fatalf("stats %+v", st)
	}
}

func TestReadLoopFeedsRing(t *testing.T) {
	port := newGatePort()
	notified := make(chan struct{}, 8)
	l := New(port, func() { notified <- struct{}{} })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	port.rx <- frame(t, []byte{0x00, 1})
	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Fatal("no notify on receive")
	}
	if l.rx.Available() != 7 {
		t.Fatalf("ring holds %d bytes", l.rx.Available())
	}
}
