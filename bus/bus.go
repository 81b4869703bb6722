// Package bus carries inter-module messages. Each producer owns an Outbox
// of fixed slots addressed at a target module; the bus delivers pending
// slots once per period.
package bus

import (
	"sensornode-go/errcode"
	"sensornode-go/types"
	"sensornode-go/x/logx"
)

// ---- Slot ----

// Slot holds at most one pending message for a single target.
type Slot struct {
	Target  types.ModuleID
	buf     []byte
	n       int
	pending bool
}

// Post queues p for delivery. A slot whose previous message has not been
// acknowledged rejects the new one with errcode.Busy; the message is dropped.
func (s *Slot) Post(p []byte) error {
	if s.pending {
		return errcode.Busy
	}
	if len(p) == 0 || len(p) > len(s.buf) {
		return errcode.InvalidPayload
	}
	s.n = copy(s.buf, p)
	s.pending = true
	return nil
}

func (s *Slot) Pending() bool   { return s.pending }
func (s *Slot) Len() int        { return s.n }
func (s *Slot) Cap() int        { return len(s.buf) }
func (s *Slot) Payload() []byte { return s.buf[:s.n] }

// Ack marks the message consumed. Handlers must call it; an unacknowledged
// slot is delivered again next period.
func (s *Slot) Ack() {
	s.n = 0
	s.pending = false
}

// ---- Outbox ----

// Outbox is a producer's ordered list of slots.
type Outbox struct {
	owner types.ModuleID
	slots []*Slot
}

func (o *Outbox) Owner() types.ModuleID { return o.owner }
func (o *Outbox) Slots() []*Slot        { return o.slots }

// Slot appends a slot addressed at target with room for capacity bytes.
func (o *Outbox) Slot(target types.ModuleID, capacity int) *Slot {
	s := &Slot{Target: target, buf: make([]byte, capacity)}
	o.slots = append(o.slots, s)
	return s
}

// ---- Bus ----

// Handler consumes messages addressed at a module.
type Handler interface {
	ProcessMessage(s *Slot) error
}

// Resolver finds the handler for an enabled target module.
type Resolver interface {
	Handler(id types.ModuleID) (Handler, bool)
}

type Options struct {
	// FirstSlotGate skips a producer's whole list when the target of its
	// first slot has no handler. Off by default: every slot is checked
	// against its own target.
	FirstSlotGate bool
}

type Stats struct {
	Delivered uint32
	Skipped   uint32 // pending slots whose target had no handler
	Failed    uint32 // handler returned an error
}

type Bus struct {
	opts  Options
	log   *logx.Logger
	boxes []*Outbox
	stats Stats
}

func NewBus(opts Options, log *logx.Logger) *Bus {
	return &Bus{opts: opts, log: log}
}

// NewOutbox registers an outbox for owner. Outboxes are walked in the
// order they were created.
func (b *Bus) NewOutbox(owner types.ModuleID) *Outbox {
	o := &Outbox{owner: owner}
	b.boxes = append(b.boxes, o)
	return o
}

// Prune drops outboxes that ended up with no slots.
func (b *Bus) Prune() {
	kept := b.boxes[:0]
	for _, o := range b.boxes {
		if len(o.slots) > 0 {
			kept = append(kept, o)
		}
	}
	b.boxes = kept
}

func (b *Bus) Outboxes() []*Outbox { return b.boxes }
func (b *Bus) Stats() Stats        { return b.stats }

// Dispatch delivers every pending slot to its target and returns the
// number of deliveries.
func (b *Bus) Dispatch(r Resolver) int {
	n := 0
	for _, o := range b.boxes {
		if len(o.slots) == 0 {
			continue
		}
		if b.opts.FirstSlotGate {
			if _, ok := r.Handler(o.slots[0].Target); !ok {
				continue
			}
		}
		for _, s := range o.slots {
			if !s.pending {
				continue
			}
			h, ok := r.Handler(s.Target)
			if !ok {
				b.stats.Skipped++
				b.log.Debugf("%v -> %v: no handler", o.owner, s.Target)
				continue
			}
			b.log.Debugf("%v -> %v: process %d bytes", o.owner, s.Target, s.n)
			if err := h.ProcessMessage(s); err != nil {
				b.stats.Failed++
				b.log.Debugf("%v: process failed: %v", s.Target, err)
			}
			b.stats.Delivered++
			n++
		}
	}
	return n
}
