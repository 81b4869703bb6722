package bus

import (
	"bytes"
	"testing"

	"sensornode-go/errcode"
	"sensornode-go/types"
)

type recHandler struct {
	got   [][]byte
	noAck bool
}

func (h *recHandler) ProcessMessage(s *Slot) error {
	h.got = append(h.got, append([]byte(nil), s.Payload()...))
	if !h.noAck {
		s.Ack()
	}
	return nil
}

type mapResolver map[types.ModuleID]Handler

func (m mapResolver) Handler(id types.ModuleID) (Handler, bool) {
	h, ok := m[id]
	return h, ok
}

const (
	producer types.ModuleID = 10
	display  types.ModuleID = 20
	mute     types.ModuleID = 30
)

func TestDeliveredOncePerPeriod(t *testing.T) {
	b := NewBus(Options{}, nil)
	s := b.NewOutbox(producer).Slot(display, 8)
	h := &recHandler{}
	r := mapResolver{display: h}

	if err := s.Post([]byte{1, 2, 3, 4, 5}); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 5 {
		t.Fatalf("len=%d want 5", s.Len())
	}
	if n := b.Dispatch(r); n != 1 {
		t.Fatalf("delivered %d want 1", n)
	}
	if s.Pending() || s.Len() != 0 {
		t.Fatal("slot not acknowledged")
	}
	if n := b.Dispatch(r); n != 0 {
		t.Fatalf("acked slot delivered again (%d)", n)
	}
	if len(h.got) != 1 || !bytes.Equal(h.got[0], []byte{1, 2, 3, 4, 5}) {
		t.Fatalf("got %v", h.got)
	}
}

func TestUnackedSlotIsRedelivered(t *testing.T) {
	b := NewBus(Options{}, nil)
	s := b.NewOutbox(producer).Slot(display, 8)
	h := &recHandler{noAck: true}
	r := mapResolver{display: h}

	_ = s.Post([]byte("hello"))
	b.Dispatch(r)
	b.Dispatch(r)
	if len(h.got) != 2 {
		t.Fatalf("deliveries=%d want 2", len(h.got))
	}
}

func TestPostWhilePendingIsDropped(t *testing.T) {
	b := NewBus(Options{}, nil)
	s := b.NewOutbox(producer).Slot(display, 4)
	_ = s.Post([]byte{1})
	if err := s.Post([]byte{2}); err != errcode.Busy {
		t.Fatalf("second post err=%v want busy", err)
	}
	if s.Payload()[0] != 1 {
		t.Fatal("pending message was overwritten")
	}
	if err := s.Post(make([]byte, 5)); err != errcode.Busy {
		t.Fatalf("pending check must come first, got %v", err)
	}
	s.Ack()
	if err := s.Post(make([]byte, 5)); err != errcode.InvalidPayload {
		t.Fatalf("oversized post err=%v", err)
	}
}

func TestPerSlotTargetCheck(t *testing.T) {
	b := NewBus(Options{}, nil)
	o := b.NewOutbox(producer)
	first := o.Slot(mute, 4)
	second := o.Slot(display, 4)
	h := &recHandler{}
	r := mapResolver{display: h}

	_ = first.Post([]byte{1})
	_ = second.Post([]byte{2})
	b.Dispatch(r)

	if len(h.got) != 1 || h.got[0][0] != 2 {
		t.Fatalf("second slot should be delivered, got %v", h.got)
	}
	if !first.Pending() {
		t.Fatal("slot without handler must stay pending")
	}
	if st := b.Stats(); st.Skipped != 1 || st.Delivered != 1 {
		t.Fatalf("stats %+v", st)
	}
}

func TestFirstSlotGate(t *testing.T) {
	b := NewBus(Options{FirstSlotGate: true}, nil)
	o := b.NewOutbox(producer)
	first := o.Slot(mute, 4)
	second := o.Slot(display, 4)
	h := &recHandler{}
	r := mapResolver{display: h}

	_ = first.Post([]byte{1})
	_ = second.Post([]byte{2})
	b.Dispatch(r)
	if len(h.got) != 0 {
		t.Fatalf("gated producer delivered %v", h.got)
	}
}

func TestProducersWalkedInOrder(t *testing.T) {
	b := NewBus(Options{}, nil)
	a := b.NewOutbox(1).Slot(display, 1)
	_ = b.NewOutbox(2)
	c := b.NewOutbox(3).Slot(display, 1)
	b.Prune()
	if len(b.Outboxes()) != 2 {
		t.Fatalf("prune kept %d outboxes", len(b.Outboxes()))
	}
	h := &recHandler{}
	_ = c.Post([]byte{3})
	_ = a.Post([]byte{1})
	b.Dispatch(mapResolver{display: h})
	if len(h.got) != 2 || h.got[0][0] != 1 || h.got[1][0] != 3 {
		t.Fatalf("order %v", h.got)
	}
}
