// Package sleep negotiates low-power entry with the modules and wakes the
// main loop when an interrupt arrives.
package sleep

import (
	"context"
	"sync/atomic"

	"sensornode-go/rtc"
	"sensornode-go/x/logx"
)

// Events is the interrupt-to-loop signal. ISRs only call Signal.
type Events struct {
	pending atomic.Bool
	wake    chan struct{}
	dropped atomic.Uint32 // signals that found the wake line already raised
}

func NewEvents() *Events {
	return &Events{wake: make(chan struct{}, 1)}
}

// Signal marks an event pending and wakes a sleeping loop. Safe from any
// goroutine or interrupt handler.
func (e *Events) Signal() {
	e.pending.Store(true)
	select {
	case e.wake <- struct{}{}:
	default:
		e.dropped.Add(1)
	}
}

// Take reads and clears the pending flag.
func (e *Events) Take() bool {
	if !e.pending.Swap(false) {
		return false
	}
	select {
	case <-e.wake:
	default:
	}
	return true
}

// Wake is closed over by LowPower implementations.
func (e *Events) Wake() <-chan struct{} { return e.wake }

// State is the saved global interrupt enable.
type State uintptr

// Mask saves and restores the global interrupt enable. Calls nest.
type Mask interface {
	Disable() State
	Restore(State)
}

// LowPower suspends the CPU until an interrupt. deep selects the stop mode
// in which only the RTC runs; the implementation restores clocks and
// peripherals before returning.
type LowPower interface {
	Sleep(ctx context.Context, deep bool)
}

// EventWait sleeps by blocking on the wake line. With all goroutines
// parked the runtime idles the core until the next interrupt.
type EventWait struct {
	Ev *Events
	// Resume runs after a deep sleep to restore clocks and peripherals.
	Resume func()
}

func (w EventWait) Sleep(ctx context.Context, deep bool) {
	select {
	case <-ctx.Done():
	case <-w.Ev.Wake():
	}
	if deep && w.Resume != nil {
		w.Resume()
	}
}

// Voter is the registry's sleep interface.
type Voter interface {
	SleepEnter() bool
	SleepExit()
}

type Stats struct {
	Approved uint32
	Vetoed   uint32
	Slept    uint32
	Deep     uint32
	Skipped  uint32 // approved but an event was already pending
}

type Coordinator struct {
	voters Voter
	clk    *rtc.Clock
	ev     *Events
	mask   Mask
	lp     LowPower
	log    *logx.Logger
	stats  Stats
}

func NewCoordinator(v Voter, clk *rtc.Clock, ev *Events, mask Mask, lp LowPower, log *logx.Logger) *Coordinator {
	return &Coordinator{voters: v, clk: clk, ev: ev, mask: mask, lp: lp, log: log}
}

// PrepareSleep asks every enabled module; true only when all agree.
func (c *Coordinator) PrepareSleep() bool {
	if c.voters.SleepEnter() {
		c.stats.Approved++
		return true
	}
	c.stats.Vetoed++
	return false
}

// Cycle runs one sleep negotiation. It reports whether sleep was approved.
// After an approved cycle every module's SleepExit runs. The clock learns
// its wake-up latency only from a deep sleep that actually happened.
func (c *Coordinator) Cycle(ctx context.Context) bool {
	if !c.PrepareSleep() {
		c.ev.Take()
		return false
	}
	// An event raised after the check leaves a fresh wake token, so the
	// sleep below returns at once instead of missing it.
	st := c.mask.Disable()
	pending := c.ev.Take()
	c.mask.Restore(st)
	deep := false
	if pending {
		c.stats.Skipped++
	} else {
		deep = c.clk.LowPowerAllowed()
		c.lp.Sleep(ctx, deep)
		c.stats.Slept++
		if deep {
			c.stats.Deep++
		}
	}
	c.voters.SleepExit()
	if deep {
		c.clk.Calibrate()
	}
	return true
}

func (c *Coordinator) Stats() Stats { return c.stats }
