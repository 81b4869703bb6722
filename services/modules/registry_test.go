package modules

import (
	"bytes"
	"errors"
	"testing"

	"sensornode-go/bus"
	"sensornode-go/errcode"
	"sensornode-go/store"
	"sensornode-go/types"
)

// fakeModule implements every capability; the fn fields pick behaviour.
type fakeModule struct {
	cfg       []byte
	initErr   error
	sense     []byte
	sleepErr  error
	sendErr   error
	inits     int
	sent      [][]byte
	receives  int
	sleeps    int
	exits     int
	processed int
}

func (f *fakeModule) ApplyConfig(b []byte) error     { f.cfg = append([]byte(nil), b...); return nil }
func (f *fakeModule) Init(*bus.Outbox) error         { f.inits++; return f.initErr }
func (f *fakeModule) ReceiveData() error             { f.receives++; return nil }
func (f *fakeModule) SleepEnter() error              { f.sleeps++; return f.sleepErr }
func (f *fakeModule) SleepExit() error               { f.exits++; return nil }
func (f *fakeModule) ProcessMessage(*bus.Slot) error { f.processed++; return nil }
func (f *fakeModule) GetSensorData(buf []byte) (int, error) {
	return copy(buf, f.sense), nil
}
func (f *fakeModule) SendData(data []byte) error {
	f.sent = append(f.sent, append([]byte(nil), data...))
	return f.sendErr
}

// senseOnly has a single capability.
type senseOnly struct{ out []byte }

func (s senseOnly) GetSensorData(buf []byte) (int, error) { return copy(buf, s.out), nil }

func enable(t *testing.T, st store.Store, off int) {
	t.Helper()
	if err := st.WriteRange(off, []byte{byte(types.MakeCfgByte(true, types.SevDebug))}); err != nil {
		t.Fatal(err)
	}
}

func newReg(st store.Store, core Descriptor, rest ...Descriptor) *Registry {
	return NewRegistry(st, bus.NewBus(bus.Options{}, nil), nil, core, rest...)
}

func TestConfigBaseIsRunningOffset(t *testing.T) {
	lens := []int{64, 3, 1, 17, 8}
	core := Descriptor{Name: "core", ID: 0, ConfigLen: lens[0]}
	var rest []Descriptor
	for i, n := range lens[1:] {
		rest = append(rest, Descriptor{Name: "m", ID: types.ModuleID(100 + i), ConfigLen: n})
	}
	r := newReg(store.NewEEPROM(), core, rest...)
	if err := r.Init(); err != nil {
		t.Fatal(err)
	}
	sum := 0
	for k, e := range r.Entries() {
		if e.ConfigBase != sum {
			t.Fatalf("module %d base=%d want %d", k, e.ConfigBase, sum)
		}
		sum += e.ConfigLen
	}
}

func TestCoreAlwaysEnabled(t *testing.T) {
	st := store.NewEEPROM() // erased: every enable bit is 0
	core := &fakeModule{}
	r := newReg(st, Descriptor{Name: "core", ID: types.ModCore, ConfigLen: 4, Module: core},
		Descriptor{Name: "other", ID: 200, ConfigLen: 2, Module: &fakeModule{}})
	if err := r.Init(); err != nil {
		t.Fatal(err)
	}
	e, _ := r.Entry(types.ModCore)
	if !e.Enabled {
		t.Fatal("core must be enabled")
	}
	if core.cfg[0]&1 == 0 {
		t.Fatal("core config handed to ApplyConfig should carry the forced enable bit")
	}
	if o, _ := r.Entry(200); o.Enabled {
		t.Fatal("erased module should stay disabled")
	}
}

func TestInitFailureIsNotFatal(t *testing.T) {
	st := store.NewEEPROM()
	bad := &fakeModule{initErr: errors.New("no sensor")}
	good := &fakeModule{}
	r := newReg(st, Descriptor{Name: "core", ID: 0, ConfigLen: 1},
		Descriptor{Name: "bad", ID: 1, ConfigLen: 1, Module: bad},
		Descriptor{Name: "good", ID: 2, ConfigLen: 1, Module: good})
	enable(t, st, 1)
	enable(t, st, 2)
	if err := r.Init(); err != nil {
		t.Fatalf("init should survive a module failure: %v", err)
	}
	if bad.inits != 1 || good.inits != 1 {
		t.Fatalf("inits bad=%d good=%d", bad.inits, good.inits)
	}
	e, _ := r.Entry(1)
	if e.InitErr == nil || !e.Enabled {
		t.Fatal("failed module stays registered and enabled with its error kept")
	}
}

type brokenStore struct{ store.Store }

func (brokenStore) ReadRange(int, []byte) error { return errors.New("bus fault") }

func TestLoadFailureIsFatal(t *testing.T) {
	r := newReg(brokenStore{store.NewEEPROM()}, Descriptor{Name: "core", ID: 0, ConfigLen: 1})
	if err := r.Init(); errcode.Of(err) != errcode.LoadFailed {
		t.Fatalf("err=%v want load_failed", err)
	}
}

func TestConfigOverflow(t *testing.T) {
	r := newReg(store.NewEEPROM(), Descriptor{Name: "core", ID: 0, ConfigLen: 1000},
		Descriptor{Name: "big", ID: 1, ConfigLen: 100})
	if err := r.Init(); errcode.Of(err) != errcode.ConfigOverflow {
		t.Fatalf("err=%v want config_overflow", err)
	}
}

func TestDuplicateIDPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate module id")
		}
	}()
	newReg(store.NewEEPROM(), Descriptor{Name: "core", ID: 0, ConfigLen: 1},
		Descriptor{Name: "a", ID: 7, ConfigLen: 1}, Descriptor{Name: "b", ID: 7, ConfigLen: 1})
}

func TestSensingAccumulatesInOrder(t *testing.T) {
	st := store.NewEEPROM()
	r := newReg(st, Descriptor{Name: "core", ID: 0, ConfigLen: 1},
		Descriptor{Name: "A", ID: 1, ConfigLen: 1, Module: senseOnly{out: []byte{0xA1, 0xA2}}},
		Descriptor{Name: "B", ID: 2, ConfigLen: 1, Module: struct{}{}},
		Descriptor{Name: "C", ID: 3, ConfigLen: 1, Module: senseOnly{out: []byte{0xC1, 0xC2, 0xC3}}})
	for off := 1; off <= 3; off++ {
		enable(t, st, off)
	}
	if err := r.Init(); err != nil {
		t.Fatal(err)
	}

	var buf SensorBuffer
	r.GetSensorData(&buf)
	want := []byte{0xA1, 0xA2, 0xC1, 0xC2, 0xC3}
	if buf.Len() != 5 || !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("buffer % x (len %d) want % x", buf.Bytes(), buf.Len(), want)
	}
}

type liar struct{}

func (liar) GetSensorData(buf []byte) (int, error) { return len(buf) + 10, nil }

func TestSensingCapacityIsEnforced(t *testing.T) {
	st := store.NewEEPROM()
	r := newReg(st, Descriptor{Name: "core", ID: 0, ConfigLen: 1},
		Descriptor{Name: "liar", ID: 1, ConfigLen: 1, Module: liar{}},
		Descriptor{Name: "late", ID: 2, ConfigLen: 1, Module: senseOnly{out: []byte{1}}})
	enable(t, st, 1)
	enable(t, st, 2)
	_ = r.Init()

	var buf SensorBuffer
	r.GetSensorData(&buf)
	if buf.Len() != SensorBufferLen {
		t.Fatalf("len=%d want clamp to %d", buf.Len(), SensorBufferLen)
	}
}

func TestDisabledModulesAreSkipped(t *testing.T) {
	st := store.NewEEPROM()
	on, off := &fakeModule{sense: []byte{1}}, &fakeModule{sense: []byte{2}}
	r := newReg(st, Descriptor{Name: "core", ID: 0, ConfigLen: 1},
		Descriptor{Name: "on", ID: 1, ConfigLen: 1, Module: on},
		Descriptor{Name: "off", ID: 2, ConfigLen: 1, Module: off})
	enable(t, st, 1)
	_ = r.Init()

	var buf SensorBuffer
	r.GetSensorData(&buf)
	r.SendData(buf.Bytes())
	r.ReceiveData()
	r.SleepEnter()
	r.SleepExit()
	if off.inits+len(off.sent)+off.receives+off.sleeps+off.exits != 0 {
		t.Fatalf("disabled module was called: %+v", off)
	}
	if on.inits != 1 || len(on.sent) != 1 || on.receives != 1 || on.sleeps != 1 || on.exits != 1 {
		t.Fatalf("enabled module calls: %+v", on)
	}
	if _, ok := r.Handler(2); ok {
		t.Fatal("disabled module must not resolve as a handler")
	}
	if _, ok := r.Handler(1); !ok {
		t.Fatal("enabled module should resolve as a handler")
	}
}

func TestSleepNeedsUnanimity(t *testing.T) {
	st := store.NewEEPROM()
	a, b := &fakeModule{}, &fakeModule{sleepErr: errcode.Busy}
	r := newReg(st, Descriptor{Name: "core", ID: 0, ConfigLen: 1},
		Descriptor{Name: "a", ID: 1, ConfigLen: 1, Module: a},
		Descriptor{Name: "b", ID: 2, ConfigLen: 1, Module: b})
	enable(t, st, 1)
	enable(t, st, 2)
	_ = r.Init()

	if r.SleepEnter() {
		t.Fatal("one veto must block sleep")
	}
	if a.sleeps != 1 || b.sleeps != 1 {
		t.Fatal("every module is asked, even after a veto")
	}
	b.sleepErr = nil
	if !r.SleepEnter() {
		t.Fatal("veto must only last one cycle")
	}
}

func TestSendFailureClassification(t *testing.T) {
	st := store.NewEEPROM()
	busy := &fakeModule{sendErr: errcode.NotReady}
	broken := &fakeModule{sendErr: errcode.Timeout}
	r := newReg(st, Descriptor{Name: "core", ID: 0, ConfigLen: 1},
		Descriptor{Name: "busy", ID: 1, ConfigLen: 1, Module: busy},
		Descriptor{Name: "broken", ID: 2, ConfigLen: 1, Module: broken})
	enable(t, st, 1)
	enable(t, st, 2)
	_ = r.Init()

	failed := r.SendData([]byte{1, 2})
	if len(failed) != 1 || failed[0] != 2 {
		t.Fatalf("failed=%v want only the hard failure", failed)
	}
	broken.sendErr = nil
	if again := r.Resend(failed, []byte{1, 2}); len(again) != 0 {
		t.Fatalf("resend failed=%v", again)
	}
	if len(busy.sent) != 1 || len(broken.sent) != 2 {
		t.Fatalf("sent busy=%d broken=%d", len(busy.sent), len(broken.sent))
	}
}

func TestSaveConfigStaysInBlock(t *testing.T) {
	st := store.NewEEPROM()
	r := newReg(st, Descriptor{Name: "core", ID: 0, ConfigLen: 4},
		Descriptor{Name: "m", ID: 9, ConfigLen: 2})
	_ = r.Init()
	if err := r.SaveConfig(9, 1, []byte{0x55}); err != nil {
		t.Fatal(err)
	}
	b := make([]byte, 1)
	_ = st.ReadRange(5, b)
	if b[0] != 0x55 {
		t.Fatalf("saved at wrong offset: %x", b[0])
	}
	if err := r.SaveConfig(9, 1, []byte{1, 2}); errcode.Of(err) != errcode.SaveFailed {
		t.Fatalf("overrun err=%v", err)
	}
	if err := r.SaveConfig(77, 0, []byte{1}); err != errcode.UnknownModule {
		t.Fatalf("unknown module err=%v", err)
	}
}
