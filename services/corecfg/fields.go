package corecfg

import (
	"encoding/binary"

	"sensornode-go/errcode"
	"sensornode-go/types"
	"sensornode-go/x/strconvx"
)

// Flag gates how a configuration field may be accessed.
type Flag uint8

const (
	Local     Flag = 1 << iota // settable from the local terminal
	Remote                     // settable from the remote terminal
	Persisted                  // stored in the core block
	RAM                        // live value can be changed without reset
	Show                       // readable
	Set                        // writable
)

func (f Flag) Has(x Flag) bool { return f&x == x }

type Kind uint8

const (
	KindU32 Kind = iota
	KindSeverity
)

// Field describes one core configuration value for the command interface.
type Field struct {
	Name  string
	Descr string
	Flags Flag
	Kind  Kind
	Off   int // offset in the core block; -1 when RAM only
	Min   uint32
	Max   uint32
	// ZeroOff accepts 0 below Min as "disabled".
	ZeroOff bool

	get func(c *Config) uint32
	set func(c *Config, v uint32)
}

func (f *Field) Get(c *Config) uint32 { return f.get(c) }

// Format renders the live value.
func (f *Field) Format(c *Config) string {
	v := f.get(c)
	if f.Kind == KindSeverity {
		return types.Severity(v).String()
	}
	return strconvx.FormatUint(uint64(v), 10)
}

// Parse validates s against the field's kind and range.
func (f *Field) Parse(s string) (uint32, error) {
	if f.Kind == KindSeverity {
		sev, ok := types.ParseSeverity(s)
		if !ok {
			return 0, errcode.InvalidParams
		}
		return uint32(sev), nil
	}
	v, err := strconvx.ParseUint(s, 10, 32)
	if err != nil {
		return 0, errcode.InvalidParams
	}
	if v == 0 && f.ZeroOff {
		return 0, nil
	}
	if uint32(v) < f.Min || uint32(v) > f.Max {
		return 0, errcode.OutOfRange
	}
	return uint32(v), nil
}

// SetRAM updates the live value.
func (f *Field) SetRAM(c *Config, v uint32) error {
	if !f.Flags.Has(RAM) {
		return errcode.Denied
	}
	f.set(c, v)
	if f.Kind == KindSeverity {
		c.Log.SetSeverity(c.Severity)
		c.DriverLog.SetSeverity(c.DriverSeverity)
	}
	return nil
}

// Encode serialises v for the persisted layout.
func (f *Field) Encode(v uint32) []byte {
	if f.Kind == KindSeverity {
		return []byte{byte(v)}
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

var fields = []Field{
	{
		Name: "basePeriod", Descr: "period of sensing and sending, ms",
		Flags: Local | Remote | Persisted | Show | Set, Kind: KindU32,
		Off: offBasePeriod, Min: MinBasePeriodMs, Max: MaxPeriodMs,
		get: func(c *Config) uint32 { return c.BasePeriodMs },
		set: func(c *Config, v uint32) { c.BasePeriodMs = v },
	},
	{
		Name: "startDelay", Descr: "delay of the first period after boot, ms",
		Flags: Local | Remote | Persisted | Show | Set, Kind: KindU32,
		Off: offStartDelay, Min: MinStartDelayMs, Max: MaxPeriodMs,
		get: func(c *Config) uint32 { return c.StartDelayMs },
		set: func(c *Config, v uint32) { c.StartDelayMs = v },
	},
	{
		Name: "repeatDelay", Descr: "delay before repeating a failed send, ms (0 = off)",
		Flags: Local | Remote | Persisted | Show | Set, Kind: KindU32,
		Off: offRepeatDelay, Min: MinRepeatDelayMs, Max: MaxPeriodMs, ZeroOff: true,
		get: func(c *Config) uint32 { return c.RepeatDelayMs },
		set: func(c *Config, v uint32) { c.RepeatDelayMs = v },
	},
	{
		Name: "severity", Descr: "core log severity",
		Flags: Local | Persisted | RAM | Show | Set, Kind: KindSeverity,
		Off: offSeverity, Max: uint32(types.SevDebug),
		get: func(c *Config) uint32 { return uint32(c.Severity) },
		set: func(c *Config, v uint32) { c.Severity = types.Severity(v) },
	},
	{
		Name: "driverSeverity", Descr: "driver log severity",
		Flags: Local | Persisted | RAM | Show | Set, Kind: KindSeverity,
		Off: offDriverSeverity, Max: uint32(types.SevDebug),
		get: func(c *Config) uint32 { return uint32(c.DriverSeverity) },
		set: func(c *Config, v uint32) { c.DriverSeverity = types.Severity(v) },
	},
	{
		Name: "remoteTerminal", Descr: "periods of remote-terminal mode before reset",
		Flags: Local | Remote | RAM | Show | Set, Kind: KindU32,
		Off: -1, Max: 0xFFFF,
		get: func(c *Config) uint32 { return c.RemoteTerminalCounter },
		set: func(c *Config, v uint32) { c.RemoteTerminalCounter = v },
	},
}

// Fields lists the command-accessible core fields.
func Fields() []Field { return fields }

// Lookup finds a field by name.
func Lookup(name string) (*Field, bool) {
	for i := range fields {
		if fields[i].Name == name {
			return &fields[i], true
		}
	}
	return nil, false
}
