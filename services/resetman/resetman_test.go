package resetman

import (
	"bytes"
	"strings"
	"testing"

	"sensornode-go/errcode"
	"sensornode-go/rtc"
	"sensornode-go/store"
	"sensornode-go/types"
	"sensornode-go/x/logx"
)

func newRegion() store.Region {
	return store.Region{S: store.NewEEPROM(), Base: 16, Len: 48}
}

func TestRecordSurvivesReset(t *testing.T) {
	reg := newRegion()
	resets := 0
	m := New(reg, func() { resets++ }, nil)
	m.RequestReset(ReasonRemoteTerminal)
	m.RequestReset(ReasonUserRequest) // second request is ignored

	if resets != 1 {
		t.Fatalf("resets=%d want 1", resets)
	}
	if r, ok := m.Requested(); !ok || r != ReasonRemoteTerminal {
		t.Fatalf("requested=%v,%v", r, ok)
	}

	next := New(reg, nil, nil)
	if got := next.Boot(ReasonUnknown); got.Reason != ReasonRemoteTerminal {
		t.Fatalf("boot read %v", got.Reason)
	}
	// cleared after boot, so an unrecorded reset reads as unknown
	if got := New(reg, nil, nil).Boot(ReasonUnknown); got.Reason != ReasonUnknown {
		t.Fatalf("record not cleared: %v", got.Reason)
	}
}

func TestFaultDumpRoundTrip(t *testing.T) {
	reg := newRegion()
	dump := FaultDump{R0: 1, R1: 2, R2: 3, R3: 4, R12: 0xFFFFFFFF, LR: 0xFFFFFFF9, PC: 0x10001234, PSR: 0x61000000}
	New(reg, nil, nil).RequestFaultReset(dump)

	var out bytes.Buffer
	got := New(reg, nil, logx.NewTo(&out, "reset", types.SevDebug)).Boot(ReasonUnknown)
	if got.Reason != ReasonHardFault || got.Fault == nil || *got.Fault != dump {
		t.Fatalf("got %+v", got)
	}
	if !strings.Contains(out.String(), "PC=10001234") {
		t.Fatalf("fault registers not reported: %q", out.String())
	}
}

func TestErasedOrForeignRecordIsUnknown(t *testing.T) {
	reg := newRegion()
	if got := New(reg, nil, nil).Boot(ReasonPowerOn); got.Reason != ReasonPowerOn {
		t.Fatalf("erased record should defer to hardware cause, got %v", got.Reason)
	}
	_ = reg.WriteAt(0, []byte{3, 0xFF, 0xFF, 0xFF})
	if got := New(reg, nil, nil).Boot(ReasonUnknown); got.Reason != ReasonUnknown {
		t.Fatalf("garbage decoded as %v", got.Reason)
	}
}

func TestErrorHandlerAlwaysResets(t *testing.T) {
	reg := newRegion()
	resets := 0
	m := New(reg, func() { resets++ }, nil)
	err := m.ErrorHandler(errcode.LoadFailed)
	if errcode.Of(err) != errcode.Reset || resets != 1 {
		t.Fatalf("err=%v resets=%d", err, resets)
	}
	if got := New(reg, nil, nil).Boot(ReasonUnknown); got.Reason != ReasonErrorHandler {
		t.Fatalf("reason %v", got.Reason)
	}
}

type fakeWatchdog struct {
	timeout uint32
	started bool
	updates int
}

func (f *fakeWatchdog) Configure(ms uint32) error { f.timeout = ms; return nil }
func (f *fakeWatchdog) Start() error              { f.started = true; return nil }
func (f *fakeWatchdog) Update()                   { f.updates++ }

func TestWatchdogSafeTimerRearms(t *testing.T) {
	hw := rtc.NewSimHardware(rtc.Epoch, nil)
	clk := rtc.New(hw)
	clk.Init()
	srv := rtc.NewServer(clk, nil)
	wd := &fakeWatchdog{}
	m := NewWatchdogManager(wd, srv, nil)
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	if !wd.started || wd.timeout != WatchdogTimeoutMs {
		t.Fatalf("watchdog not configured: %+v", wd)
	}
	for i := 0; i < 3; i++ {
		if !hw.AdvanceToAlarm() {
			t.Fatal("safe timer not armed")
		}
		srv.Poll()
		m.Kick()
	}
	if m.SafeWakes() != 3 || wd.updates != 3 || m.Kicks() != 3 {
		t.Fatalf("wakes=%d updates=%d", m.SafeWakes(), wd.updates)
	}
}
