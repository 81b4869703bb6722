// Package scheduler is the node's main loop: it runs the periodic phases
// (sense, send, receive), delivers inter-module messages and hands over
// to the sleep coordinator.
package scheduler

import (
	"context"
	"sync/atomic"

	"sensornode-go/bus"
	"sensornode-go/errcode"
	"sensornode-go/rtc"
	"sensornode-go/services/corecfg"
	"sensornode-go/services/modules"
	"sensornode-go/services/resetman"
	"sensornode-go/services/sleep"
	"sensornode-go/types"
	"sensornode-go/x/logx"
)

// MaxRepeats bounds in-period send repeats.
const MaxRepeats = 3

type State uint8

const (
	Idle State = iota
	Executing
)

// Resetter is the part of the reset manager the loop needs.
type Resetter interface {
	RequestReset(resetman.Reason)
	Requested() (resetman.Reason, bool)
}

// Kicker feeds the watchdog.
type Kicker interface{ Kick() }

// Terminal executes queued command lines from the loop.
type Terminal interface{ Process() }

type Deps struct {
	Registry *modules.Registry
	Bus      *bus.Bus
	Config   *corecfg.Config
	Timers   *rtc.Server
	Sleep    *sleep.Coordinator
	Reset    Resetter
	Watchdog Kicker
	Terminal Terminal // optional
	Log      *logx.Logger
}

type Stats struct {
	Iterations uint32
	Periods    uint32
	Silenced   uint32
	Repeats    uint32
	Delivered  uint32
}

type Scheduler struct {
	d Deps

	period *rtc.Timer
	repeat *rtc.Timer

	// set from timer context, consumed by the loop
	periodElapsed atomic.Bool
	repeatDue     atomic.Bool

	buf         modules.SensorBuffer
	failed      []types.ModuleID
	attempts    int
	periodStart uint64
	state       State
	stats       Stats
}

func New(d Deps) *Scheduler {
	s := &Scheduler{d: d}
	s.period = rtc.NewTimer(s.onPeriod)
	s.repeat = rtc.NewTimer(func() { s.repeatDue.Store(true) })
	return s
}

// Start arms the first period after the start delay.
func (s *Scheduler) Start() {
	s.d.Timers.Start(s.period, s.d.Config.StartDelayMs)
	s.d.Log.Infof("first period in %d ms", s.d.Config.StartDelayMs)
}

// onPeriod rearms relative to now so processing time only shifts the
// current period.
func (s *Scheduler) onPeriod() {
	s.periodElapsed.Store(true)
	s.d.Timers.Start(s.period, s.d.Config.BasePeriodMs)
}

func (s *Scheduler) State() State                  { return s.state }
func (s *Scheduler) Stats() Stats                  { return s.stats }
func (s *Scheduler) Buffer() *modules.SensorBuffer { return &s.buf }

// ExecutePeriodic runs one period's phases.
func (s *Scheduler) ExecutePeriodic() {
	s.state = Executing
	s.stats.Periods++
	s.periodStart = s.d.Timers.Clock().Now()
	s.d.Timers.Stop(s.repeat)
	s.repeatDue.Store(false)
	s.failed, s.attempts = nil, 0

	expired := false
	if s.d.Config.Silenced() {
		s.stats.Silenced++
		expired = s.d.Config.Tick()
		s.d.Log.Debugf("remote terminal: %d periods left", s.d.Config.RemoteTerminalCounter)
	} else {
		s.buf.Reset()
		s.d.Registry.GetSensorData(&s.buf)
		s.d.Log.Debugf("sensed %d bytes", s.buf.Len())
		s.failed = s.d.Registry.SendData(s.buf.Bytes())
		s.armRepeat()
	}

	s.d.Registry.ReceiveData()
	s.state = Idle

	if expired {
		s.d.Log.Infof("remote terminal timeout")
		s.d.Reset.RequestReset(resetman.ReasonRemoteTerminal)
	}
}

// armRepeat schedules a resend for modules that failed, as long as the
// repeat still lands inside the current period.
func (s *Scheduler) armRepeat() {
	delay := s.d.Config.RepeatDelayMs
	if len(s.failed) == 0 || delay == 0 || s.attempts >= MaxRepeats {
		return
	}
	spent := rtc.TicksToMs(s.d.Timers.Clock().Now() - s.periodStart)
	if spent+uint64(delay) >= uint64(s.d.Config.BasePeriodMs) {
		s.d.Log.Debugf("no time left to repeat %d senders", len(s.failed))
		return
	}
	s.d.Timers.Start(s.repeat, delay)
}

func (s *Scheduler) executeRepeat() {
	s.attempts++
	s.stats.Repeats++
	s.d.Log.Debugf("repeat %d for %d modules", s.attempts, len(s.failed))
	s.failed = s.d.Registry.Resend(s.failed, s.buf.Bytes())
	s.armRepeat()
}

// Step is one main-loop iteration.
func (s *Scheduler) Step(ctx context.Context) {
	s.stats.Iterations++
	s.d.Watchdog.Kick()
	if s.d.Terminal != nil {
		s.d.Terminal.Process()
	}
	s.d.Timers.Poll()

	if s.periodElapsed.Swap(false) {
		s.ExecutePeriodic()
	}
	if s.repeatDue.Swap(false) {
		s.executeRepeat()
	}
	s.stats.Delivered += uint32(s.d.Bus.Dispatch(s.d.Registry))

	if _, ok := s.d.Reset.Requested(); ok {
		return
	}
	s.d.Sleep.Cycle(ctx)
}

// Run loops until ctx ends or a reset is requested.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Step(ctx)
		if reason, ok := s.d.Reset.Requested(); ok {
			return &errcode.E{C: errcode.Reset, Op: "scheduler.run", Msg: reason.String()}
		}
	}
}
