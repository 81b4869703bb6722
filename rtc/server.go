package rtc

import (
	"container/heap"
	"sync/atomic"
)

// Timer is a one-shot software timer multiplexed onto the RTC alarm.
// Callbacks run from Server.Poll, never from interrupt context.
type Timer struct {
	fn    func()
	due   uint64
	index int
}

func NewTimer(fn func()) *Timer { return &Timer{fn: fn, index: -1} }

type timerHeap []*Timer

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].due < h[j].due }
func (h timerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x any)        { t := x.(*Timer); t.index = len(*h); *h = append(*h, t) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	t.index = -1
	*h = old[:n-1]
	return t
}

// Server keeps timers ordered by due tick and keeps the clock alarm armed
// for the earliest one. All methods except IRQ belong to the main loop.
type Server struct {
	clk   *Clock
	h     timerHeap
	fired atomic.Bool
	wake  func()
}

// NewServer binds a timer server to clk. wake is called from IRQ so the
// sleeping loop notices the alarm.
func NewServer(clk *Clock, wake func()) *Server {
	return &Server{clk: clk, wake: wake}
}

func (s *Server) Clock() *Clock { return s.clk }

// Start (re)arms t to fire ms milliseconds from now.
func (s *Server) Start(t *Timer, ms uint32) {
	d := MsToTicks(ms)
	if d == 0 {
		d = 1
	}
	due := s.clk.Now() + d
	if t.index >= 0 {
		t.due = due
		heap.Fix(&s.h, t.index)
	} else {
		t.due = due
		heap.Push(&s.h, t)
	}
	s.rearm()
}

func (s *Server) Stop(t *Timer) {
	if t.index < 0 {
		return
	}
	heap.Remove(&s.h, t.index)
	s.rearm()
}

func (s *Server) Pending(t *Timer) bool { return t.index >= 0 }

// IRQ is the alarm interrupt entry point.
func (s *Server) IRQ() {
	s.fired.Store(true)
	if s.wake != nil {
		s.wake()
	}
}

// Fired reports an alarm interrupt not yet consumed by Poll.
func (s *Server) Fired() bool { return s.fired.Load() }

// Poll runs every expired timer's callback and re-arms the alarm for the
// next one. It returns the number of timers fired.
//
// A compensated alarm can fire ahead of the earliest due tick; the alarm
// is re-armed after every interrupt so the timer is not left unarmed.
func (s *Server) Poll() int {
	irq := s.fired.Swap(false)
	now := s.clk.Now()
	n := 0
	for len(s.h) > 0 && s.h[0].due <= now {
		t := heap.Pop(&s.h).(*Timer)
		n++
		if t.fn != nil {
			t.fn()
		}
	}
	if n > 0 || irq {
		s.rearm()
	}
	return n
}

func (s *Server) rearm() {
	if len(s.h) == 0 {
		s.clk.StopAlarm()
		return
	}
	ref := s.clk.SetTimerContext()
	var timeout uint64
	if due := s.h[0].due; due > ref {
		timeout = due - ref
	}
	s.clk.SetAlarm(timeout)
}
