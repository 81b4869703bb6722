package types

import "sensornode-go/x/strconvx"

// ---- Module identity ----

// ModuleID is the persistent identity of a module. It is independent of
// table position so stored configuration survives table edits.
type ModuleID uint16

const (
	ModCore           ModuleID = 0
	ModDrivers        ModuleID = 1
	ModLocalTerminal  ModuleID = 2
	ModRemoteTerminal ModuleID = 3

	ModUARTLink  ModuleID = 128
	ModTxDisplay ModuleID = 129
	ModEnvSensor ModuleID = 130
	ModBattery   ModuleID = 131
	ModRxDisplay ModuleID = 135
	ModAsyncTx   ModuleID = 136

	ModThirdParty ModuleID = 1024
	ModInvalid    ModuleID = 0xFFFF
)

func (id ModuleID) String() string { return "mod#" + strconvx.Itoa(int(id)) }

// ---- Severity ----

// Severity gates log output. Higher values are more verbose.
type Severity uint8

const (
	SevNone Severity = iota
	SevError
	SevInfo
	SevDebug
)

var sevNames = [...]string{"NONE", "ERROR", "INFO", "DEBUG"}

func (s Severity) String() string {
	if int(s) < len(sevNames) {
		return sevNames[s]
	}
	return "INVALID"
}

// ParseSeverity accepts the aliases NONE/ERROR/INFO/DEBUG or a digit 0..3.
func ParseSeverity(s string) (Severity, bool) {
	for i, n := range sevNames {
		if s == n || s == strconvx.Itoa(i) {
			return Severity(i), true
		}
	}
	return SevNone, false
}

// ---- Module configuration byte ----

// CfgByte is byte 0 of every module's persisted configuration block:
// bit0 enable, bits1-2 module severity, bits3-7 reserved.
type CfgByte uint8

func (b CfgByte) Enabled() bool      { return b&0x01 != 0 }
func (b CfgByte) Severity() Severity { return Severity((b >> 1) & 0x03) }

func MakeCfgByte(enabled bool, sev Severity) CfgByte {
	var b CfgByte
	if enabled {
		b |= 0x01
	}
	b |= CfgByte(sev&0x03) << 1
	return b
}
