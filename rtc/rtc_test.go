package rtc

import (
	"testing"
	"time"
)

func toTime(c Calendar) time.Time {
	return time.Date(2000+int(c.Year), time.Month(c.Month), int(c.Day),
		int(c.Hour), int(c.Minute), int(c.Second), 0, time.UTC)
}

func TestCalendarRollover(t *testing.T) {
	sec := uint64(TicksPerSecond)
	cases := []struct {
		name string
		from Calendar
		add  uint64
		want Calendar
	}{
		{"next day",
			Calendar{Year: 17, Month: 6, Day: 14, Hour: 23, Minute: 59, Second: 58},
			5 * sec,
			Calendar{Year: 17, Month: 6, Day: 15, Hour: 0, Minute: 0, Second: 3}},
		{"leap day",
			Calendar{Year: 16, Month: 2, Day: 28, Hour: 23, Minute: 59, Second: 58},
			5 * sec,
			Calendar{Year: 16, Month: 2, Day: 29, Hour: 0, Minute: 0, Second: 3}},
		{"no leap day",
			Calendar{Year: 17, Month: 2, Day: 28, Hour: 23, Minute: 59, Second: 58},
			5 * sec,
			Calendar{Year: 17, Month: 3, Day: 1, Hour: 0, Minute: 0, Second: 3}},
		{"30 day month",
			Calendar{Year: 18, Month: 4, Day: 30, Hour: 23, Minute: 59, Second: 59, Sub: 1020},
			10,
			Calendar{Year: 18, Month: 5, Day: 1, Sub: 6}},
		{"new year",
			Calendar{Year: 19, Month: 12, Day: 31, Hour: 23, Minute: 59, Second: 58},
			5 * sec,
			Calendar{Year: 20, Month: 1, Day: 1, Hour: 0, Minute: 0, Second: 3}},
	}
	for _, tc := range cases {
		if got := tc.from.Add(tc.add); got != tc.want {
			t.Fatalf("%s: got %+v want %+v", tc.name, got, tc.want)
		}
	}
}

func TestCalendarMatchesTimePackage(t *testing.T) {
	start := Calendar{Year: 16, Month: 1, Day: 1}
	base := toTime(start)
	// ~3 years in uneven steps, crossing several leap boundaries.
	for s := uint64(0); s < 3*366*86400; s += 86400*17 + 3601 {
		got := start.Add(s * TicksPerSecond)
		want := base.Add(time.Duration(s) * time.Second)
		if !toTime(got).Equal(want) {
			t.Fatalf("offset %ds: got %v want %v", s, toTime(got), want)
		}
		if FromTicks(got.Ticks()) != got {
			t.Fatalf("Ticks/FromTicks mismatch at %+v", got)
		}
	}
}

func TestTickMsRoundTrip(t *testing.T) {
	check := func(x uint32) {
		got := TicksToMs(MsToTicks(x))
		if got > uint64(x) || uint64(x)-got > 1 {
			t.Fatalf("round trip of %d ms gave %d", x, got)
		}
	}
	for x := uint32(0); x < 200000; x += 7 {
		check(x)
	}
	check(1000)
	check(^uint32(0))
	if MsToTicks(1000) != TicksPerSecond {
		t.Fatalf("1 s should be %d ticks, got %d", TicksPerSecond, MsToTicks(1000))
	}
}

func TestSetAlarmLowPowerDecision(t *testing.T) {
	hw := NewSimHardware(Epoch, nil)
	c := New(hw)
	c.Init()

	c.SetAlarm(100)
	if !c.LowPowerAllowed() {
		t.Fatal("long wait should allow low power")
	}
	if at, armed := hw.Alarm(); !armed || at != 100 {
		t.Fatalf("alarm at %d armed=%v, want 100", at, armed)
	}

	c.SetAlarm(MinAlarmDelay)
	if c.LowPowerAllowed() {
		t.Fatal("wait of MinAlarmDelay must not enter low power")
	}
}

func TestCalibrateOnFirstWakeOnly(t *testing.T) {
	hw := NewSimHardware(Epoch, nil)
	hw.WakeLatency = 7
	c := New(hw)
	c.Init()

	c.SetAlarm(100)
	hw.AdvanceToAlarm()
	c.Calibrate()
	if c.Compensation() != 7 {
		t.Fatalf("compensation=%d want 7", c.Compensation())
	}

	ref := c.SetTimerContext()
	c.SetAlarm(100)
	if at, _ := hw.Alarm(); at != ref+93 {
		t.Fatalf("alarm %d want %d (compensated)", at, ref+93)
	}
	hw.AdvanceToAlarm()
	c.Calibrate()
	if c.Compensation() != 7 {
		t.Fatalf("second wake changed compensation to %d", c.Compensation())
	}
}

func TestCalibrateNeedsAlarmWake(t *testing.T) {
	hw := NewSimHardware(Epoch, nil)
	c := New(hw)
	c.Init()
	c.SetAlarm(100)
	hw.Advance(10)
	c.Calibrate()
	if c.Compensation() != 0 {
		t.Fatal("wake without alarm must not calibrate")
	}
}

func TestServerFiresInDueOrder(t *testing.T) {
	var srv *Server
	hw := NewSimHardware(Epoch, func() { srv.IRQ() })
	c := New(hw)
	c.Init()
	wakes := 0
	srv = NewServer(c, func() { wakes++ })

	var order []string
	a := NewTimer(func() { order = append(order, "a") })
	b := NewTimer(func() { order = append(order, "b") })
	srv.Start(a, 300)
	srv.Start(b, 100)

	if at, _ := hw.Alarm(); at != MsToTicks(100) {
		t.Fatalf("alarm armed for %d, want earliest timer", at)
	}
	hw.AdvanceToAlarm()
	if !srv.Fired() || wakes != 1 {
		t.Fatalf("IRQ not delivered: fired=%v wakes=%d", srv.Fired(), wakes)
	}
	if n := srv.Poll(); n != 1 || order[0] != "b" {
		t.Fatalf("poll fired %d %v", n, order)
	}
	hw.AdvanceToAlarm()
	srv.Poll()
	if len(order) != 2 || order[1] != "a" {
		t.Fatalf("order=%v", order)
	}
	if _, armed := hw.Alarm(); armed {
		t.Fatal("alarm should be stopped with no timers left")
	}
}

func TestServerStopAndRestart(t *testing.T) {
	hw := NewSimHardware(Epoch, nil)
	c := New(hw)
	c.Init()
	srv := NewServer(c, nil)

	fired := 0
	tm := NewTimer(func() { fired++ })
	srv.Start(tm, 100)
	srv.Stop(tm)
	if srv.Pending(tm) {
		t.Fatal("stopped timer still pending")
	}
	hw.Advance(MsToTicks(200))
	srv.Poll()
	if fired != 0 {
		t.Fatal("stopped timer fired")
	}

	// restart from within the callback, as periodic users do
	tm = NewTimer(nil)
	tm.fn = func() { fired++; srv.Start(tm, 100) }
	srv.Start(tm, 100)
	hw.AdvanceToAlarm()
	srv.Poll()
	if fired != 1 || !srv.Pending(tm) {
		t.Fatalf("fired=%d pending=%v", fired, srv.Pending(tm))
	}
}

func TestServerRearmsAfterEarlyAlarm(t *testing.T) {
	var srv *Server
	hw := NewSimHardware(Epoch, func() { srv.IRQ() })
	c := New(hw)
	c.Init()
	srv = NewServer(c, nil)

	fired := 0
	tm := NewTimer(nil)
	tm.fn = func() { fired++; srv.Start(tm, 500) }
	srv.Start(tm, 500)

	// first wake is slow and teaches a compensation of 5 ticks
	hw.WakeLatency = 5
	hw.AdvanceToAlarm()
	c.Calibrate()
	srv.Poll()
	if c.Compensation() != 5 || fired != 1 {
		t.Fatalf("comp=%d fired=%d", c.Compensation(), fired)
	}

	// a faster wake lands before the due tick
	hw.WakeLatency = 2
	hw.AdvanceToAlarm()
	if n := srv.Poll(); n != 0 {
		t.Fatalf("early wake fired %d timers", n)
	}
	if _, armed := hw.Alarm(); !armed {
		t.Fatal("alarm left unarmed with a timer pending")
	}

	for i := 0; i < 3 && fired < 2; i++ {
		if !hw.AdvanceToAlarm() {
			t.Fatal("no alarm to wake on")
		}
		srv.Poll()
	}
	if fired != 2 {
		t.Fatalf("timer stalled: fired=%d", fired)
	}
}
