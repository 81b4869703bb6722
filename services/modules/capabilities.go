package modules

import "sensornode-go/bus"

// A module implements whichever of these its role needs. A missing
// capability means the module does not take part in that phase.

type Initializer interface {
	// Init runs once at boot for enabled modules. Slots created on out
	// are delivered by the message bus every period.
	Init(out *bus.Outbox) error
}

type Configurable interface {
	// ApplyConfig loads the module's persisted block (byte 0 is the
	// enable/severity byte).
	ApplyConfig(block []byte) error
}

type SensorReader interface {
	// GetSensorData appends readings to buf and returns the byte count.
	// buf is the remaining capacity of the shared sensor buffer.
	GetSensorData(buf []byte) (int, error)
}

type Sender interface {
	// SendData sees every byte sensed this period. data is only valid
	// until the next period. errcode.NotReady means "try next period".
	SendData(data []byte) error
}

type Receiver interface {
	ReceiveData() error
}

type SleepEnterer interface {
	// SleepEnter returns nil when the module is ready to sleep.
	SleepEnter() error
}

type SleepExiter interface {
	SleepExit() error
}
