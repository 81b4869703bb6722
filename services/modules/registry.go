// Package modules owns the static module table: configuration blocks in
// the persistent store, enable flags and capability dispatch.
package modules

import (
	"sensornode-go/bus"
	"sensornode-go/errcode"
	"sensornode-go/store"
	"sensornode-go/types"
	"sensornode-go/x/logx"
	"sensornode-go/x/strconvx"
)

// Descriptor statically declares one module.
type Descriptor struct {
	Name        string
	Description string
	ID          types.ModuleID
	// ConfigLen is the size of the module's persisted block, at least 1
	// (the enable/severity byte).
	ConfigLen int
	// Module implements any subset of the capability interfaces.
	Module any
}

// Entry is a registered module and its boot-time state.
type Entry struct {
	Descriptor
	ConfigBase int
	Enabled    bool
	Severity   types.Severity
	InitErr    error
}

type Registry struct {
	st      store.Store
	bus     *bus.Bus
	log     *logx.Logger
	entries []*Entry
	byID    map[types.ModuleID]*Entry
	size    int
}

// NewRegistry builds the module table with core fixed first. A duplicate
// ID or an empty config block is a programming error and panics.
func NewRegistry(st store.Store, b *bus.Bus, log *logx.Logger, core Descriptor, rest ...Descriptor) *Registry {
	r := &Registry{st: st, bus: b, log: log, byID: make(map[types.ModuleID]*Entry, len(rest)+1)}
	off := 0
	for _, d := range append([]Descriptor{core}, rest...) {
		if d.ConfigLen < 1 {
			panic("modules: " + d.Name + " has no config block")
		}
		if _, dup := r.byID[d.ID]; dup {
			panic("modules: duplicate module id " + strconvx.Itoa(int(d.ID)))
		}
		e := &Entry{Descriptor: d, ConfigBase: off}
		off += d.ConfigLen
		r.entries = append(r.entries, e)
		r.byID[d.ID] = e
	}
	r.size = off
	return r
}

// Size is the total length of all config blocks.
func (r *Registry) Size() int { return r.size }

// Init loads every config block and runs module Init. A load failure
// aborts boot; an Init failure is only logged.
func (r *Registry) Init() error {
	if r.size > store.ModulesRegionLen {
		return &errcode.E{C: errcode.ConfigOverflow, Op: "modules.init",
			Msg: strconvx.Itoa(r.size) + " > " + strconvx.Itoa(store.ModulesRegionLen)}
	}

	for i, e := range r.entries {
		blk := make([]byte, e.ConfigLen)
		if err := r.st.ReadRange(e.ConfigBase, blk); err != nil {
			return errcode.Wrap(errcode.LoadFailed, "modules.init "+e.Name, err)
		}
		if i == 0 {
			blk[0] |= 0x01
		}
		cb := types.CfgByte(blk[0])
		e.Enabled, e.Severity = cb.Enabled(), cb.Severity()
		if c, ok := e.Module.(Configurable); ok {
			if err := c.ApplyConfig(blk); err != nil {
				return errcode.Wrap(errcode.LoadFailed, "modules.apply "+e.Name, err)
			}
		}
	}

	for _, e := range r.entries {
		if !e.Enabled {
			continue
		}
		m, ok := e.Module.(Initializer)
		if !ok {
			continue
		}
		if err := m.Init(r.bus.NewOutbox(e.ID)); err != nil {
			e.InitErr = err
			r.log.Errorf("%s: init failed: %v", e.Name, err)
			continue
		}
		r.log.Infof("%s: initialized", e.Name)
	}
	r.bus.Prune()
	return nil
}

func (r *Registry) Entries() []*Entry { return r.entries }

func (r *Registry) Entry(id types.ModuleID) (*Entry, bool) {
	e, ok := r.byID[id]
	return e, ok
}

func (r *Registry) Bus() *bus.Bus { return r.bus }

// ---- Configuration access ----

// Region is the module's persisted block.
func (r *Registry) Region(id types.ModuleID) (store.Region, error) {
	e, ok := r.byID[id]
	if !ok {
		return store.Region{}, errcode.UnknownModule
	}
	return store.Region{S: r.st, Base: e.ConfigBase, Len: e.ConfigLen}, nil
}

func (r *Registry) SaveConfig(id types.ModuleID, off int, data []byte) error {
	reg, err := r.Region(id)
	if err != nil {
		return err
	}
	if err := reg.WriteAt(off, data); err != nil {
		return errcode.Wrap(errcode.SaveFailed, "modules.save", err)
	}
	return nil
}

func (r *Registry) LoadConfig(id types.ModuleID, off int, buf []byte) error {
	reg, err := r.Region(id)
	if err != nil {
		return err
	}
	if err := reg.ReadAt(off, buf); err != nil {
		return errcode.Wrap(errcode.LoadFailed, "modules.load", err)
	}
	return nil
}

// ---- Capability dispatch ----
//
// Every helper visits enabled modules in registration order and never
// stops on a module's error.

func (r *Registry) GetSensorData(buf *SensorBuffer) {
	for _, e := range r.entries {
		m, ok := e.Module.(SensorReader)
		if !e.Enabled || !ok {
			continue
		}
		win := buf.Remaining()
		n, err := m.GetSensorData(win)
		if err != nil {
			r.log.Debugf("%s: get sensor data: %v", e.Name, err)
		}
		if err := buf.Advance(n); err != nil {
			r.log.Errorf("%s: reported %d bytes, %d available", e.Name, n, len(win))
		}
	}
}

// SendData passes data to every sender and returns the IDs that failed
// with something other than errcode.NotReady.
func (r *Registry) SendData(data []byte) []types.ModuleID {
	var failed []types.ModuleID
	for _, e := range r.entries {
		if r.send(e, data) {
			failed = append(failed, e.ID)
		}
	}
	return failed
}

// Resend repeats SendData for ids only.
func (r *Registry) Resend(ids []types.ModuleID, data []byte) []types.ModuleID {
	var failed []types.ModuleID
	for _, id := range ids {
		if e, ok := r.byID[id]; ok && r.send(e, data) {
			failed = append(failed, id)
		}
	}
	return failed
}

func (r *Registry) send(e *Entry, data []byte) bool {
	m, ok := e.Module.(Sender)
	if !e.Enabled || !ok {
		return false
	}
	err := m.SendData(data)
	switch errcode.Of(err) {
	case errcode.OK:
		return false
	case errcode.NotReady:
		r.log.Debugf("%s: send skipped: not ready", e.Name)
		return false
	}
	r.log.Debugf("%s: send data: %v", e.Name, err)
	return true
}

func (r *Registry) ReceiveData() {
	for _, e := range r.entries {
		m, ok := e.Module.(Receiver)
		if !e.Enabled || !ok {
			continue
		}
		if err := m.ReceiveData(); err != nil {
			r.log.Debugf("%s: receive data: %v", e.Name, err)
		}
	}
}

// SleepEnter asks every module and reports true only if none objected.
func (r *Registry) SleepEnter() bool {
	ready := true
	for _, e := range r.entries {
		m, ok := e.Module.(SleepEnterer)
		if !e.Enabled || !ok {
			continue
		}
		if err := m.SleepEnter(); err != nil {
			r.log.Debugf("%s: sleep vetoed: %v", e.Name, err)
			ready = false
		}
	}
	return ready
}

func (r *Registry) SleepExit() {
	for _, e := range r.entries {
		m, ok := e.Module.(SleepExiter)
		if !e.Enabled || !ok {
			continue
		}
		if err := m.SleepExit(); err != nil {
			r.log.Debugf("%s: sleep exit: %v", e.Name, err)
		}
	}
}

// Handler implements bus.Resolver.
func (r *Registry) Handler(id types.ModuleID) (bus.Handler, bool) {
	e, ok := r.byID[id]
	if !ok || !e.Enabled {
		return nil, false
	}
	h, ok := e.Module.(bus.Handler)
	return h, ok
}
