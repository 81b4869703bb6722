// Package asynctx sends messages from other modules over the uplink as
// soon as the link is free, outside the periodic send.
package asynctx

import (
	"sensornode-go/bus"
	"sensornode-go/errcode"
	"sensornode-go/types"
	"sensornode-go/x/logx"
)

// Sender is the uplink. uartlink.Link satisfies it.
type Sender interface {
	SendData(data []byte) error
}

type SenderFunc func(data []byte) error

func (f SenderFunc) SendData(data []byte) error { return f(data) }

type Tx struct {
	link Sender
	log  *logx.Logger

	Sent     uint32
	Deferred uint32
}

func New(link Sender) *Tx {
	return &Tx{link: link, log: logx.New("asynctx", types.SevInfo)}
}

func (t *Tx) ApplyConfig(b []byte) error {
	t.log.SetSeverity(types.CfgByte(b[0]).Severity())
	return nil
}

// ProcessMessage frames the payload out through the link. Byte 0 names
// the sending module. While the link is busy the slot stays pending and
// the bus delivers it again next period; any other failure drops it.
func (t *Tx) ProcessMessage(s *bus.Slot) error {
	p := s.Payload()
	if len(p) == 0 {
		s.Ack()
		return errcode.InvalidPayload
	}
	err := t.link.SendData(p)
	switch errcode.Of(err) {
	case errcode.OK:
		t.log.Infof("msg from module %d, %d bytes", p[0], len(p))
		t.Sent++
		s.Ack()
		return nil
	case errcode.NotReady:
		t.Deferred++
		t.log.Debugf("link busy, msg from module %d deferred", p[0])
		return err
	default:
		t.log.Errorf("msg from module %d dropped: %v", p[0], err)
		s.Ack()
		return err
	}
}
