// Package config loads YAML node profiles for the host simulator and
// seeds them into the persistent store, where the firmware reads its
// configuration at boot.
package config

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"

	"sensornode-go/errcode"
	"sensornode-go/services/corecfg"
	"sensornode-go/services/modules"
	"sensornode-go/types"
)

type Profile struct {
	Node    NodeConfig              `yaml:"node"`
	Modules map[string]ModuleConfig `yaml:"modules"`
	Sim     SimConfig               `yaml:"sim"`
}

type NodeConfig struct {
	BasePeriodMs   uint32 `yaml:"base_period_ms"`
	StartDelayMs   uint32 `yaml:"start_delay_ms"`
	RepeatDelayMs  uint32 `yaml:"repeat_delay_ms"`
	Severity       string `yaml:"severity"`
	DriverSeverity string `yaml:"driver_severity"`
}

type ModuleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Severity string `yaml:"severity"`
	// Extra bytes follow the cfg byte, module specific.
	Extra []int `yaml:"extra,omitempty"`
}

// SimConfig drives the simulated peripherals.
type SimConfig struct {
	TemperatureMilliC int32  `yaml:"temperature_mc"`
	HumidityX100      uint16 `yaml:"humidity_x100"`
	BatteryRaw        uint16 `yaml:"battery_raw"`
	Baud              int    `yaml:"baud"`
}

const (
	DefaultBasePeriodMs = 10000
	DefaultStartDelayMs = 1000
	DefaultBaud         = 115200
)

// EmbeddedProfileLookup allows overriding how named profiles are resolved.
var EmbeddedProfileLookup = func(name string) ([]byte, bool) {
	b, ok := embeddedProfiles[name]
	return b, ok
}

// Parse decodes a profile. Unknown keys are rejected.
func Parse(raw []byte) (*Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, errcode.Wrap(errcode.InvalidPayload, "config.parse", err)
	}
	return &p, nil
}

// Load reads a profile file, or an embedded profile when path names one.
func Load(path string) (*Profile, error) {
	if raw, ok := EmbeddedProfileLookup(path); ok {
		return Parse(raw)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errcode.Wrap(errcode.LoadFailed, "config.load", err)
	}
	return Parse(raw)
}

// Marshal renders the profile as YAML.
func Marshal(p *Profile) ([]byte, error) {
	return yaml.Marshal(p)
}

// Seed writes the profile's node settings and module blocks through reg.
// The reset record area of the core block is left alone.
func Seed(p *Profile, reg *modules.Registry) error {
	sev, _ := types.ParseSeverity(p.Node.Severity)
	dsev, _ := types.ParseSeverity(p.Node.DriverSeverity)
	core := corecfg.Config{
		BasePeriodMs:   p.Node.BasePeriodMs,
		StartDelayMs:   p.Node.StartDelayMs,
		RepeatDelayMs:  p.Node.RepeatDelayMs,
		Severity:       sev,
		DriverSeverity: dsev,
	}
	blk := make([]byte, corecfg.ResetRecordOff)
	core.Encode(blk)
	if err := reg.SaveConfig(types.ModCore, 0, blk); err != nil {
		return err
	}

	for _, e := range reg.Entries()[1:] {
		m, ok := p.Modules[e.Name]
		if !ok {
			m = ModuleConfig{}
		}
		msev, _ := types.ParseSeverity(m.Severity)
		blk := make([]byte, 1, e.ConfigLen)
		blk[0] = byte(types.MakeCfgByte(m.Enabled, msev))
		for _, v := range m.Extra {
			blk = append(blk, byte(v))
		}
		if len(blk) > e.ConfigLen {
			return &errcode.E{C: errcode.OutOfRange, Op: "config.seed", Msg: e.Name + ": extra too long"}
		}
		if err := reg.SaveConfig(e.ID, 0, blk); err != nil {
			return err
		}
	}
	return nil
}
