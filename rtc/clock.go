// Package rtc keeps monotonic time on top of a calendar real-time counter,
// arms wake-up alarms and learns how long the MCU takes to wake.
package rtc

// Hardware is the RTC peripheral.
type Hardware interface {
	Now() Calendar
	// SetAlarm programs the wake-up alarm. An alarm at or before Now fires
	// immediately.
	SetAlarm(at Calendar)
	StopAlarm()
	// AlarmFired reports whether the programmed alarm has triggered since
	// it was last set.
	AlarmFired() bool
}

// Context is the reference point elapsed-time queries are measured from.
type Context struct {
	RefTicks uint64
	RefCal   Calendar
}

type Clock struct {
	hw  Hardware
	ctx Context

	alarmAt    uint64 // last programmed alarm, in ticks
	comp       int32  // wake-up compensation, in ticks
	calibrated bool
	lowPower   bool
}

func New(hw Hardware) *Clock {
	return &Clock{hw: hw}
}

// Init stops any stale alarm and takes a fresh reference.
func (c *Clock) Init() {
	c.hw.StopAlarm()
	c.SetTimerContext()
}

// Now returns ticks since Epoch.
func (c *Clock) Now() uint64 { return c.hw.Now().Ticks() }

// SetTimerContext makes the current time the new reference and returns it.
func (c *Clock) SetTimerContext() uint64 {
	cal := c.hw.Now()
	c.ctx = Context{RefTicks: cal.Ticks(), RefCal: cal}
	return c.ctx.RefTicks
}

func (c *Clock) TimerContext() uint64 { return c.ctx.RefTicks }

// Elapsed returns ticks since the reference.
func (c *Clock) Elapsed() uint64 {
	now := c.Now()
	if now < c.ctx.RefTicks {
		return 0
	}
	return now - c.ctx.RefTicks
}

// SetAlarm arms the wake-up alarm timeout ticks after the reference.
//
// Low power is only allowed when the remaining wait exceeds
// MinAlarmDelay plus the learned wake-up time; in that case the wake-up
// time is taken off the timeout so the MCU is running again on schedule.
func (c *Clock) SetAlarm(timeout uint64) {
	t := int64(timeout)
	if int64(MinAlarmDelay)+int64(c.comp) < t-int64(c.Elapsed()) {
		c.lowPower = true
		t -= int64(c.comp)
	} else {
		c.lowPower = false
	}
	if t < 0 {
		t = 0
	}
	at := c.ctx.RefCal.Add(uint64(t))
	c.alarmAt = at.Ticks()
	c.hw.SetAlarm(at)
}

func (c *Clock) StopAlarm() { c.hw.StopAlarm() }

// LowPowerAllowed reports the decision taken by the last SetAlarm.
func (c *Clock) LowPowerAllowed() bool { return c.lowPower }

// Calibrate measures wake-up latency on the first alarm wake after boot
// and folds it into the compensation. Later calls are no-ops.
func (c *Clock) Calibrate() {
	if c.calibrated || !c.hw.AlarmFired() {
		return
	}
	c.calibrated = true
	c.comp += int32(int64(c.Now()) - int64(c.alarmAt))
}

func (c *Clock) Compensation() int32 { return c.comp }

// CalendarTime returns whole seconds and milliseconds since Epoch.
func (c *Clock) CalendarTime() (uint32, uint16) {
	now := c.Now()
	return uint32(now >> PredivBits), uint16(TicksToMs(now & (TicksPerSecond - 1)))
}
