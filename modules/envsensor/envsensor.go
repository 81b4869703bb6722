// Package envsensor reads an SHTC3 temperature/humidity sensor and appends
// the readings to the period's sensor buffer as Cayenne LPP.
package envsensor

import (
	cayennelpp "github.com/TheThingsNetwork/go-cayenne-lib"
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/shtc3"

	"sensornode-go/bus"
	"sensornode-go/errcode"
	"sensornode-go/types"
	"sensornode-go/x/logx"
	"sensornode-go/x/mathx"
)

const (
	ConfigLen = 2 // cfg byte, LPP channel base

	// PayloadLen is the LPP size of one reading: temperature (4) + humidity (3).
	PayloadLen = 7
)

type Sensor struct {
	drv shtc3.Device
	enc cayennelpp.Encoder
	log *logx.Logger
	ch  uint8

	// last reading, deci-°C and RH x100
	DeciC  int16
	RHx100 uint16
}

func New(i2c drivers.I2C) *Sensor {
	return &Sensor{
		drv: shtc3.New(i2c),
		enc: cayennelpp.NewEncoder(),
		log: logx.New("envsensor", types.SevError),
		ch:  1,
	}
}

func (s *Sensor) ApplyConfig(b []byte) error {
	s.log.SetSeverity(types.CfgByte(b[0]).Severity())
	if len(b) > 1 && b[1] != 0 && b[1] != 0xFF {
		s.ch = b[1]
	}
	return nil
}

// Init puts the sensor into its low power state until the first period.
func (s *Sensor) Init(*bus.Outbox) error {
	if err := s.drv.WakeUp(); err != nil {
		return errcode.Wrap(errcode.NotReady, "envsensor.init", err)
	}
	return s.drv.Sleep()
}

func (s *Sensor) GetSensorData(buf []byte) (int, error) {
	if len(buf) < PayloadLen {
		return 0, errcode.BufferFull
	}
	if err := s.drv.WakeUp(); err != nil {
		return 0, errcode.Wrap(errcode.Timeout, "envsensor.wake", err)
	}
	defer func() { _ = s.drv.Sleep() }()

	tmc, rh, err := s.drv.ReadTemperatureHumidity()
	if err != nil {
		return 0, errcode.Wrap(errcode.Error, "envsensor.read", err)
	}
	s.DeciC = int16(mathx.Clamp(tmc/100, -32768, 32767))
	s.RHx100 = uint16(mathx.Clamp(int32(rh), 0, 10000))
	s.log.Infof("T=%d.%d C RH=%d.%02d %%", s.DeciC/10, abs(s.DeciC%10), s.RHx100/100, s.RHx100%100)

	s.enc.Reset()
	s.enc.AddTemperature(s.ch, float64(s.DeciC)/10)
	s.enc.AddRelativeHumidity(s.ch+1, float64(s.RHx100)/100)
	return copy(buf, s.enc.Bytes()), nil
}

func abs(v int16) int16 {
	if v < 0 {
		return -v
	}
	return v
}
