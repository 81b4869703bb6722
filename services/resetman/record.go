package resetman

import (
	"github.com/fxamacker/cbor/v2"

	"sensornode-go/errcode"
	"sensornode-go/store"
)

// Reason tells the next boot why the previous session ended.
type Reason uint8

const (
	ReasonUnknown        Reason = iota // watchdog, reset button or anything unrecorded
	ReasonPowerOn                      // supply came up
	ReasonUserRequest                  // reload command
	ReasonRemoteTerminal               // remote-terminal countdown expired
	ReasonHardFault                    // CPU fault, registers captured
	ReasonErrorHandler                 // central error handler
	ReasonWatchdog                     // watchdog expiry reported by the platform
)

var reasonNames = [...]string{"unknown", "power-on", "user request", "remote terminal timeout",
	"hard fault", "error handler", "watchdog"}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "invalid"
}

// recordVersion is bumped whenever Record's encoding changes. Records of
// another version read back as ReasonUnknown.
const recordVersion = 1

// FaultDump is the stacked exception frame captured on a hard fault.
type FaultDump struct {
	_   struct{} `cbor:",toarray"`
	R0  uint32
	R1  uint32
	R2  uint32
	R3  uint32
	R12 uint32
	LR  uint32
	PC  uint32
	PSR uint32
}

// Record is the persisted reset reason. Fault is only set for
// ReasonHardFault.
type Record struct {
	_       struct{} `cbor:",toarray"`
	Version uint8
	Reason  Reason
	Fault   *FaultDump
}

// saveRecord writes r as a length-prefixed CBOR array into reg.
func saveRecord(reg store.Region, r Record) error {
	r.Version = recordVersion
	data, err := cbor.Marshal(r)
	if err != nil {
		return errcode.Wrap(errcode.InvalidPayload, "resetman.encode", err)
	}
	if len(data)+1 > reg.Len {
		return &errcode.E{C: errcode.OutOfRange, Op: "resetman.save", Msg: "record too large"}
	}
	buf := make([]byte, reg.Len)
	buf[0] = byte(len(data))
	copy(buf[1:], data)
	if err := reg.WriteAt(0, buf); err != nil {
		return errcode.Wrap(errcode.SaveFailed, "resetman.save", err)
	}
	return nil
}

// loadRecord reads the record back. An erased or foreign area yields a
// zero-reason record and no error.
func loadRecord(reg store.Region) (Record, error) {
	buf := make([]byte, reg.Len)
	if err := reg.ReadAt(0, buf); err != nil {
		return Record{}, errcode.Wrap(errcode.LoadFailed, "resetman.load", err)
	}
	n := int(buf[0])
	if n == 0 || n+1 > len(buf) {
		return Record{}, nil
	}
	var r Record
	if err := cbor.Unmarshal(buf[1:1+n], &r); err != nil || r.Version != recordVersion {
		return Record{}, nil
	}
	if r.Reason != ReasonHardFault {
		r.Fault = nil
	}
	return r, nil
}
