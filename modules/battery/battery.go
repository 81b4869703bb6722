// Package battery reports the supply voltage read through a resistive
// divider on an ADC pin.
package battery

import (
	"sensornode-go/bus"
	"sensornode-go/errcode"
	"sensornode-go/types"
	"sensornode-go/x/logx"
	"sensornode-go/x/mathx"
)

const (
	// ConfigLen: cfg byte, divider ratio x10 (u16 little endian), low
	// voltage alert threshold in mV (u16 little endian, 0 or 0xFFFF off).
	ConfigLen  = 5
	PayloadLen = 2 // millivolts, big endian

	// AlertLen is the size of the low voltage alert posted to asynctx:
	// source module, then millivolts big endian.
	AlertLen = 3

	vrefMv       = 3300
	adcFullScale = 0xFFFF // machine.ADC.Get is scaled to 16 bits
	defaultRatio = 30     // 3:1 divider
)

// ADC is satisfied by machine.ADC.
type ADC interface {
	Get() uint16
}

type Monitor struct {
	adc   ADC
	log   *logx.Logger
	ratio uint32 // divider ratio x10
	lowMv uint16

	alert   *bus.Slot
	alerted bool

	LastMv uint16
}

func New(adc ADC) *Monitor {
	return &Monitor{adc: adc, log: logx.New("battery", types.SevError), ratio: defaultRatio}
}

func (m *Monitor) ApplyConfig(b []byte) error {
	m.log.SetSeverity(types.CfgByte(b[0]).Severity())
	if len(b) >= 3 {
		if r := uint32(b[1]) | uint32(b[2])<<8; r != 0 && r != 0xFFFF {
			m.ratio = r
		}
	}
	if len(b) >= 5 {
		if v := uint16(b[3]) | uint16(b[4])<<8; v != 0xFFFF {
			m.lowMv = v
		}
	}
	return nil
}

// Init opens the alert slot when a threshold is configured.
func (m *Monitor) Init(out *bus.Outbox) error {
	if m.lowMv != 0 {
		m.alert = out.Slot(types.ModAsyncTx, AlertLen)
	}
	return nil
}

func (m *Monitor) GetSensorData(buf []byte) (int, error) {
	if len(buf) < PayloadLen {
		return 0, errcode.BufferFull
	}
	raw := uint64(m.adc.Get())
	mv := mathx.RoundDiv(raw*vrefMv*uint64(m.ratio), adcFullScale*10)
	m.LastMv = uint16(mathx.Clamp(mv, 0, 0xFFFF))
	m.log.Infof("battery %d mV", m.LastMv)
	m.checkLow()
	buf[0] = byte(m.LastMv >> 8)
	buf[1] = byte(m.LastMv)
	return PayloadLen, nil
}

// checkLow posts one alert per excursion below the threshold. The alert
// rearms once the voltage recovers.
func (m *Monitor) checkLow() {
	if m.alert == nil {
		return
	}
	if m.LastMv >= m.lowMv {
		m.alerted = false
		return
	}
	if m.alerted {
		return
	}
	msg := [AlertLen]byte{byte(types.ModBattery), byte(m.LastMv >> 8), byte(m.LastMv)}
	if err := m.alert.Post(msg[:]); err != nil {
		m.log.Errorf("low voltage alert: %v", err)
		return
	}
	m.log.Errorf("low voltage: %d mV < %d mV", m.LastMv, m.lowMv)
	m.alerted = true
}
