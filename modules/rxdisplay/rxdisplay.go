// Package rxdisplay prints messages other modules received over the air.
package rxdisplay

import (
	"encoding/hex"

	"sensornode-go/bus"
	"sensornode-go/errcode"
	"sensornode-go/types"
	"sensornode-go/x/logx"
)

// Kind is the first byte of every message posted to rxdisplay.
type Kind uint8

const (
	KindData   Kind = iota // raw bytes until the end of the message
	KindRSSI               // 1 byte, signed dBm
	KindSNR                // 1 byte, signed dB
	KindString             // text, optionally NUL terminated
)

type Display struct {
	log *logx.Logger

	Shown uint32
}

func New() *Display {
	return &Display{log: logx.New("rxdisplay", types.SevInfo)}
}

func (d *Display) ApplyConfig(b []byte) error {
	d.log.SetSeverity(types.CfgByte(b[0]).Severity())
	return nil
}

// ProcessMessage prints the message and acknowledges it. Malformed
// messages are acknowledged too so they do not block the sender's slot.
func (d *Display) ProcessMessage(s *bus.Slot) error {
	defer s.Ack()
	p := s.Payload()
	if len(p) == 0 {
		return errcode.InvalidPayload
	}
	body := p[1:]
	switch Kind(p[0]) {
	case KindData:
		d.log.Infof("data: %s", hex.EncodeToString(body))
	case KindRSSI, KindSNR:
		if len(body) != 1 {
			return errcode.InvalidPayload
		}
		label := "RSSI"
		if Kind(p[0]) == KindSNR {
			label = "SNR"
		}
		d.log.Infof("%s: %d", label, int8(body[0]))
	case KindString:
		for i, c := range body {
			if c == 0 {
				body = body[:i]
				break
			}
		}
		d.log.Infof("string: %s", body)
	default:
		return errcode.Unsupported
	}
	d.Shown++
	return nil
}
