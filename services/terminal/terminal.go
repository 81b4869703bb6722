// Package terminal executes configuration commands from the local UART or
// a remote link. Lines are queued by reader goroutines and executed from
// the main loop.
package terminal

import (
	"strings"

	"github.com/google/shlex"

	"sensornode-go/errcode"
	"sensornode-go/rtc"
	"sensornode-go/services/corecfg"
	"sensornode-go/services/modules"
	"sensornode-go/services/resetman"
	"sensornode-go/types"
	"sensornode-go/x/fmtx"
	"sensornode-go/x/logx"
)

type Origin uint8

const (
	Local Origin = iota
	Remote
)

func (o Origin) String() string {
	if o == Remote {
		return "remote"
	}
	return "local"
}

// Resetter is satisfied by *resetman.Manager.
type Resetter interface {
	RequestReset(resetman.Reason)
}

type line struct {
	text   string
	origin Origin
}

type Terminal struct {
	cfg   *corecfg.Config
	reg   *modules.Registry
	rst   Resetter
	clk   *rtc.Clock
	log   *logx.Logger
	lines chan line
}

const queueLen = 4

func New(cfg *corecfg.Config, reg *modules.Registry, rst Resetter, clk *rtc.Clock, log *logx.Logger) *Terminal {
	return &Terminal{cfg: cfg, reg: reg, rst: rst, clk: clk, log: log, lines: make(chan line, queueLen)}
}

// Submit queues a line without blocking. It reports false when the queue
// is full and the line was dropped.
func (t *Terminal) Submit(text string, o Origin) bool {
	select {
	case t.lines <- line{text: text, origin: o}:
		return true
	default:
		return false
	}
}

// Process executes every queued line and prints the replies.
func (t *Terminal) Process() {
	for {
		select {
		case l := <-t.lines:
			reply, err := t.Exec(l.text, l.origin)
			if err != nil {
				t.log.Printf("%s: %v", l.text, err)
				continue
			}
			if reply != "" {
				t.log.Printf("%s", reply)
			}
		default:
			return
		}
	}
}

// Exec runs a single command line.
func (t *Terminal) Exec(text string, o Origin) (string, error) {
	args, err := shlex.Split(text)
	if err != nil {
		return "", errcode.Wrap(errcode.InvalidParams, "terminal", err)
	}
	if len(args) == 0 {
		return "", nil
	}
	switch args[0] {
	case "list":
		return t.list(), nil
	case "modules":
		return t.modules(), nil
	case "show":
		if len(args) != 2 {
			return "", errcode.InvalidParams
		}
		return t.show(args[1])
	case "set", "setr":
		if len(args) != 3 {
			return "", errcode.InvalidParams
		}
		return t.set(args[1], args[2], args[0] == "setr", o)
	case "enable":
		if len(args) != 3 {
			return "", errcode.InvalidParams
		}
		if o != Local {
			return "", errcode.Denied
		}
		return t.enable(args[1], args[2])
	case "time":
		s, ms := t.clk.CalendarTime()
		return fmtx.Sprintf("time=%d.%03d s", s, ms), nil
	case "reload":
		t.rst.RequestReset(resetman.ReasonUserRequest)
		return "resetting", nil
	}
	return "", errcode.Unsupported
}

func (t *Terminal) list() string {
	var b strings.Builder
	for _, f := range corecfg.Fields() {
		b.WriteString(f.Name)
		b.WriteString(" - ")
		b.WriteString(f.Descr)
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (t *Terminal) modules() string {
	var b strings.Builder
	for _, e := range t.reg.Entries() {
		state := "disabled"
		if e.Enabled {
			state = "enabled"
		}
		b.WriteString(fmtx.Sprintf("%s id=%d cfg=%d+%d %s\n", e.Name, int(e.ID), e.ConfigBase, e.ConfigLen, state))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (t *Terminal) show(name string) (string, error) {
	f, ok := corecfg.Lookup(name)
	if !ok {
		return "", errcode.InvalidParams
	}
	if !f.Flags.Has(corecfg.Show) {
		return "", errcode.Denied
	}
	return f.Name + "=" + f.Format(t.cfg), nil
}

func allowed(f *corecfg.Field, o Origin) bool {
	if !f.Flags.Has(corecfg.Set) {
		return false
	}
	if o == Remote {
		return f.Flags.Has(corecfg.Remote)
	}
	return f.Flags.Has(corecfg.Local)
}

func (t *Terminal) set(name, val string, ram bool, o Origin) (string, error) {
	f, ok := corecfg.Lookup(name)
	if !ok {
		return "", errcode.InvalidParams
	}
	if !allowed(f, o) {
		return "", errcode.Denied
	}
	v, err := f.Parse(val)
	if err != nil {
		return "", err
	}
	if ram {
		if err := f.SetRAM(t.cfg, v); err != nil {
			return "", err
		}
		return f.Name + "=" + f.Format(t.cfg), nil
	}
	if !f.Flags.Has(corecfg.Persisted) {
		return "", errcode.Denied
	}
	if err := t.reg.SaveConfig(types.ModCore, f.Off, f.Encode(v)); err != nil {
		return "", err
	}
	return f.Name + " saved, applied after reload", nil
}

func (t *Terminal) enable(name, val string) (string, error) {
	var on bool
	switch val {
	case "on", "1":
		on = true
	case "off", "0":
	default:
		return "", errcode.InvalidParams
	}
	for _, e := range t.reg.Entries() {
		if e.Name != name {
			continue
		}
		if e.ID == types.ModCore {
			return "", errcode.Denied
		}
		var b [1]byte
		if err := t.reg.LoadConfig(e.ID, 0, b[:]); err != nil {
			return "", err
		}
		cb := types.MakeCfgByte(on, types.CfgByte(b[0]).Severity())
		if err := t.reg.SaveConfig(e.ID, 0, []byte{byte(cb)}); err != nil {
			return "", err
		}
		return name + " " + val + ", applied after reload", nil
	}
	return "", errcode.UnknownModule
}
