// Package resetman records why the node resets, performs the reset and
// keeps the hardware watchdog fed.
package resetman

import (
	"sensornode-go/errcode"
	"sensornode-go/store"
	"sensornode-go/x/logx"
)

type Manager struct {
	reg   store.Region
	reset func()
	log   *logx.Logger

	requested bool
	reason    Reason
	previous  Record
}

// New binds the manager to the persisted record area. reset performs the
// platform reset; on the MCU it does not return.
func New(reg store.Region, reset func(), log *logx.Logger) *Manager {
	return &Manager{reg: reg, reset: reset, log: log}
}

// Boot reads the previous session's record, reports it and clears it so
// an unrecorded reset (watchdog, button) reads back as unknown. hwCause
// is used when nothing was recorded.
func (m *Manager) Boot(hwCause Reason) Record {
	r, err := loadRecord(m.reg)
	if err != nil {
		m.log.Errorf("reset record unreadable: %v", err)
	}
	if r.Reason == ReasonUnknown && hwCause != ReasonUnknown {
		r = Record{Version: recordVersion, Reason: hwCause}
	}
	m.previous = r
	m.Info(r)
	if err := m.reg.Erase(); err != nil {
		m.log.Errorf("reset record not cleared: %v", err)
	}
	return r
}

// Previous returns the record read at Boot.
func (m *Manager) Previous() Record { return m.previous }

// Info prints a human-readable description of r.
func (m *Manager) Info(r Record) {
	switch r.Reason {
	case ReasonUnknown:
		m.log.Infof("last reset: watchdog / reset button / unknown error")
	case ReasonHardFault:
		m.log.Errorf("last reset: hard fault")
		if f := r.Fault; f != nil {
			m.log.Errorf("  R0=%08x R1=%08x R2=%08x R3=%08x", f.R0, f.R1, f.R2, f.R3)
			m.log.Errorf("  R12=%08x LR=%08x PC=%08x PSR=%08x", f.R12, f.LR, f.PC, f.PSR)
		}
	case ReasonErrorHandler:
		m.log.Errorf("last reset: %v", r.Reason)
	default:
		m.log.Infof("last reset: %v", r.Reason)
	}
}

// RequestReset persists reason and resets the node.
func (m *Manager) RequestReset(reason Reason) {
	m.request(Record{Reason: reason})
}

// RequestFaultReset persists a hard-fault dump and resets.
func (m *Manager) RequestFaultReset(f FaultDump) {
	m.request(Record{Reason: ReasonHardFault, Fault: &f})
}

func (m *Manager) request(r Record) {
	if m.requested {
		return
	}
	if err := saveRecord(m.reg, r); err != nil {
		m.log.Errorf("reset record not saved: %v", err)
	}
	m.requested, m.reason = true, r.Reason
	m.log.Infof("reset requested: %v", r.Reason)
	if m.reset != nil {
		m.reset()
	}
}

// Requested reports a pending reset on platforms where reset returns.
func (m *Manager) Requested() (Reason, bool) { return m.reason, m.requested }

// ErrorHandler is the single exit for unrecoverable conditions. It always
// ends in a reset.
func (m *Manager) ErrorHandler(err error) error {
	m.log.Printf("fatal: %v", err)
	m.RequestReset(ReasonErrorHandler)
	return errcode.Wrap(errcode.Reset, "error handler", err)
}
