package rtc

import "sync"

// SimHardware is a manually driven RTC for tests and simulations.
// Advance moves time forward and fires the alarm when it is crossed.
type SimHardware struct {
	mu      sync.Mutex
	now     uint64
	alarm   uint64
	armed   bool
	fired   bool
	onAlarm func()

	// WakeLatency is added to the observed time when the alarm fires,
	// emulating oscillator start-up after deep sleep.
	WakeLatency uint64
}

// NewSimHardware starts at cal. onAlarm, if set, is the alarm interrupt.
func NewSimHardware(cal Calendar, onAlarm func()) *SimHardware {
	return &SimHardware{now: cal.Ticks(), onAlarm: onAlarm}
}

// OnAlarm replaces the alarm interrupt handler.
func (s *SimHardware) OnAlarm(fn func()) {
	s.mu.Lock()
	s.onAlarm = fn
	s.mu.Unlock()
}

func (s *SimHardware) Now() Calendar {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FromTicks(s.now)
}

func (s *SimHardware) SetAlarm(at Calendar) {
	s.mu.Lock()
	s.alarm, s.armed, s.fired = at.Ticks(), true, false
	due := s.alarm <= s.now
	s.mu.Unlock()
	if due {
		s.fire()
	}
}

func (s *SimHardware) StopAlarm() {
	s.mu.Lock()
	s.armed, s.fired = false, false
	s.mu.Unlock()
}

func (s *SimHardware) AlarmFired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired
}

// Alarm returns the programmed alarm tick and whether one is armed.
func (s *SimHardware) Alarm() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alarm, s.armed
}

// Advance moves time forward by d ticks.
func (s *SimHardware) Advance(d uint64) {
	s.mu.Lock()
	s.now += d
	due := s.armed && !s.fired && s.alarm <= s.now
	s.mu.Unlock()
	if due {
		s.fire()
	}
}

// AdvanceToAlarm jumps to the armed alarm (plus WakeLatency) and fires it.
// It reports false when no alarm is armed.
func (s *SimHardware) AdvanceToAlarm() bool {
	s.mu.Lock()
	if !s.armed || s.fired {
		s.mu.Unlock()
		return false
	}
	if s.alarm > s.now {
		s.now = s.alarm
	}
	s.now += s.WakeLatency
	s.mu.Unlock()
	s.fire()
	return true
}

func (s *SimHardware) fire() {
	s.mu.Lock()
	s.fired = true
	fn := s.onAlarm
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}
