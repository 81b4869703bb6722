// Package txdisplay prints the bytes each period would transmit.
package txdisplay

import (
	"encoding/hex"

	"sensornode-go/types"
	"sensornode-go/x/logx"
)

type Display struct {
	log *logx.Logger

	Last []byte
}

func New() *Display {
	return &Display{log: logx.New("txdisplay", types.SevInfo)}
}

func (d *Display) ApplyConfig(b []byte) error {
	d.log.SetSeverity(types.CfgByte(b[0]).Severity())
	return nil
}

func (d *Display) SendData(data []byte) error {
	d.Last = append(d.Last[:0], data...)
	d.log.Infof("tx %d bytes: %s", len(data), hex.EncodeToString(data))
	return nil
}
