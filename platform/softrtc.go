// Package platform binds the node to its hardware: RTC, interrupt mask,
// watchdog, reset, serial ports, I2C and ADC. Host builds provide
// software stand-ins for the simulator and tests.
package platform

import (
	"sync"
	"time"

	"sensornode-go/rtc"
)

// SoftRTC is an rtc.Hardware driven by the Go runtime clock. The alarm is
// a runtime timer that calls the alarm interrupt handler from its own
// goroutine.
type SoftRTC struct {
	mu      sync.Mutex
	origin  time.Time
	base    uint64
	timer   *time.Timer
	gen     uint32
	armed   bool
	fired   bool
	onAlarm func()
}

// NewSoftRTC starts counting from cal.
func NewSoftRTC(cal rtc.Calendar, onAlarm func()) *SoftRTC {
	return &SoftRTC{origin: time.Now(), base: cal.Ticks(), onAlarm: onAlarm}
}

// OnAlarm replaces the alarm interrupt handler.
func (s *SoftRTC) OnAlarm(fn func()) {
	s.mu.Lock()
	s.onAlarm = fn
	s.mu.Unlock()
}

func (s *SoftRTC) ticks() uint64 {
	return s.base + uint64(time.Since(s.origin)*rtc.TicksPerSecond/time.Second)
}

func (s *SoftRTC) Now() rtc.Calendar {
	return rtc.FromTicks(s.ticks())
}

func (s *SoftRTC) SetAlarm(at rtc.Calendar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.armed, s.fired = true, false
	s.gen++
	gen := s.gen

	var d time.Duration
	if due, now := at.Ticks(), s.ticks(); due > now {
		d = time.Duration(due-now) * time.Second / rtc.TicksPerSecond
	}
	s.timer = time.AfterFunc(d, func() { s.fire(gen) })
}

func (s *SoftRTC) StopAlarm() {
	s.mu.Lock()
	s.stopLocked()
	s.armed, s.fired = false, false
	s.gen++
	s.mu.Unlock()
}

func (s *SoftRTC) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *SoftRTC) AlarmFired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired
}

func (s *SoftRTC) fire(gen uint32) {
	s.mu.Lock()
	if gen != s.gen || !s.armed {
		s.mu.Unlock()
		return
	}
	s.fired = true
	fn := s.onAlarm
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}
