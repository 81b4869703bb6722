package config

import (
	"sensornode-go/services/corecfg"
	"sensornode-go/types"
	"sensornode-go/x/fmtx"
)

// Validate checks profile correctness against the known module names.
// It MUST NOT mutate the profile.
func Validate(p *Profile, known []string) error {
	if p == nil {
		return fmtx.Errorf("empty profile")
	}
	n := p.Node
	for _, f := range []struct {
		name string
		v    uint32
	}{
		{"base_period_ms", n.BasePeriodMs},
		{"start_delay_ms", n.StartDelayMs},
		{"repeat_delay_ms", n.RepeatDelayMs},
	} {
		if f.v > corecfg.MaxPeriodMs {
			return fmtx.Errorf("node: %s %d exceeds %d", f.name, f.v, corecfg.MaxPeriodMs)
		}
	}
	if err := checkSeverity("node: severity", n.Severity); err != nil {
		return err
	}
	if err := checkSeverity("node: driver_severity", n.DriverSeverity); err != nil {
		return err
	}

	names := make(map[string]bool, len(known))
	for _, k := range known {
		names[k] = true
	}
	for name, m := range p.Modules {
		if !names[name] {
			return fmtx.Errorf("modules: unknown module %q", name)
		}
		if err := checkSeverity("module "+name+": severity", m.Severity); err != nil {
			return err
		}
		for _, v := range m.Extra {
			if v < 0 || v > 0xFF {
				return fmtx.Errorf("module %s: extra byte %d out of range", name, v)
			}
		}
	}
	if p.Sim.HumidityX100 > 10000 {
		return fmtx.Errorf("sim: humidity_x100 %d exceeds 10000", p.Sim.HumidityX100)
	}
	return nil
}

func checkSeverity(what, s string) error {
	if s == "" {
		return nil
	}
	if _, ok := types.ParseSeverity(s); !ok {
		return fmtx.Errorf("%s: unknown level %q", what, s)
	}
	return nil
}

// Normalize fills defaults and clamps timings. It MUST be called only
// after Validate.
func Normalize(p *Profile) {
	if p == nil {
		return
	}
	if p.Node.BasePeriodMs == 0 {
		p.Node.BasePeriodMs = DefaultBasePeriodMs
	}
	if p.Node.StartDelayMs == 0 {
		p.Node.StartDelayMs = DefaultStartDelayMs
	}
	c := corecfg.Config{
		BasePeriodMs:  p.Node.BasePeriodMs,
		StartDelayMs:  p.Node.StartDelayMs,
		RepeatDelayMs: p.Node.RepeatDelayMs,
	}
	c.Normalize()
	p.Node.BasePeriodMs, p.Node.StartDelayMs, p.Node.RepeatDelayMs = c.BasePeriodMs, c.StartDelayMs, c.RepeatDelayMs

	if p.Node.Severity == "" {
		p.Node.Severity = corecfg.DefaultSeverity.String()
	}
	if p.Node.DriverSeverity == "" {
		p.Node.DriverSeverity = corecfg.DefaultSeverity.String()
	}
	if p.Sim.Baud == 0 {
		p.Sim.Baud = DefaultBaud
	}
}
