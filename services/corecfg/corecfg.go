// Package corecfg is the core module: node-wide timing and logging
// configuration, persisted as the first block of the module table.
package corecfg

import (
	"encoding/binary"

	"sensornode-go/errcode"
	"sensornode-go/types"
	"sensornode-go/x/logx"
	"sensornode-go/x/mathx"
)

// Persisted block layout.
const (
	ConfigLen = 64

	offCfg            = 0
	offBasePeriod     = 1
	offStartDelay     = 5
	offSeverity       = 9
	offDriverSeverity = 10
	offRepeatDelay    = 11

	// The reset record lives in the tail of the core block.
	ResetRecordOff = 16
	ResetRecordLen = ConfigLen - ResetRecordOff
)

const (
	MinBasePeriodMs  = 500
	MinStartDelayMs  = 500
	MinRepeatDelayMs = 100
	MaxPeriodMs      = 24 * 60 * 60 * 1000

	DefaultSeverity = types.SevError
)

// Config is the in-memory core configuration.
type Config struct {
	BasePeriodMs   uint32
	StartDelayMs   uint32
	RepeatDelayMs  uint32 // 0 disables in-period send repeats
	Severity       types.Severity
	DriverSeverity types.Severity

	// RemoteTerminalCounter is RAM only. While non-zero, periods skip
	// sensing and sending; it counts down and a reset follows at zero.
	RemoteTerminalCounter uint32

	// Log and DriverLog follow Severity and DriverSeverity.
	Log       *logx.Logger
	DriverLog *logx.Logger
}

// Normalize clamps loaded values into their valid ranges.
func (c *Config) Normalize() {
	c.BasePeriodMs = mathx.Clamp(c.BasePeriodMs, MinBasePeriodMs, MaxPeriodMs)
	c.StartDelayMs = mathx.Clamp(c.StartDelayMs, MinStartDelayMs, MaxPeriodMs)
	if c.RepeatDelayMs != 0 {
		c.RepeatDelayMs = mathx.Clamp(c.RepeatDelayMs, MinRepeatDelayMs, MaxPeriodMs)
	}
	if c.Severity > types.SevDebug {
		c.Severity = DefaultSeverity
	}
	if c.DriverSeverity > types.SevDebug {
		c.DriverSeverity = DefaultSeverity
	}
}

// ApplyConfig implements modules.Configurable.
func (c *Config) ApplyConfig(b []byte) error {
	if len(b) < ConfigLen {
		return errcode.InvalidPayload
	}
	c.BasePeriodMs = binary.LittleEndian.Uint32(b[offBasePeriod:])
	c.StartDelayMs = binary.LittleEndian.Uint32(b[offStartDelay:])
	c.RepeatDelayMs = binary.LittleEndian.Uint32(b[offRepeatDelay:])
	c.Severity = types.Severity(b[offSeverity])
	c.DriverSeverity = types.Severity(b[offDriverSeverity])
	c.RemoteTerminalCounter = 0
	c.Normalize()

	c.Log.SetSeverity(c.Severity)
	c.DriverLog.SetSeverity(c.DriverSeverity)

	c.Log.Infof("base period set to: %d ms", c.BasePeriodMs)
	c.Log.Infof("start delay set to: %d ms", c.StartDelayMs)
	if c.RepeatDelayMs != 0 {
		c.Log.Infof("repeat delay set to: %d ms", c.RepeatDelayMs)
	}
	c.Log.Infof("core severity level: %v", c.Severity)
	c.Log.Infof("driver severity level: %v", c.DriverSeverity)
	return nil
}

// Encode writes the persisted fields into b[:ResetRecordOff]. The reset
// record area is left untouched.
func (c *Config) Encode(b []byte) {
	b[offCfg] = byte(types.MakeCfgByte(true, c.Severity))
	binary.LittleEndian.PutUint32(b[offBasePeriod:], c.BasePeriodMs)
	binary.LittleEndian.PutUint32(b[offStartDelay:], c.StartDelayMs)
	b[offSeverity] = byte(c.Severity)
	b[offDriverSeverity] = byte(c.DriverSeverity)
	binary.LittleEndian.PutUint32(b[offRepeatDelay:], c.RepeatDelayMs)
}

// Tick counts one silenced period down. It reports true when the counter
// has just reached zero and the node must reset.
func (c *Config) Tick() bool {
	if c.RemoteTerminalCounter == 0 {
		return false
	}
	c.RemoteTerminalCounter--
	return c.RemoteTerminalCounter == 0
}

// Silenced reports remote-terminal mode.
func (c *Config) Silenced() bool { return c.RemoteTerminalCounter > 0 }
