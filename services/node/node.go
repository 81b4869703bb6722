// Package node assembles the sensor node from a board description and
// runs its boot sequence. Both the firmware and the host simulator use it.
package node

import (
	"context"

	"tinygo.org/x/drivers"

	"sensornode-go/bus"
	"sensornode-go/errcode"
	"sensornode-go/modules/asynctx"
	"sensornode-go/modules/battery"
	"sensornode-go/modules/envsensor"
	"sensornode-go/modules/rxdisplay"
	"sensornode-go/modules/txdisplay"
	"sensornode-go/modules/uartlink"
	"sensornode-go/rtc"
	"sensornode-go/services/corecfg"
	"sensornode-go/services/modules"
	"sensornode-go/services/resetman"
	"sensornode-go/services/scheduler"
	"sensornode-go/services/sleep"
	"sensornode-go/services/terminal"
	"sensornode-go/store"
	"sensornode-go/types"
	"sensornode-go/x/logx"
)

// AlarmRTC is an RTC whose alarm interrupt handler is installed after
// construction.
type AlarmRTC interface {
	rtc.Hardware
	OnAlarm(fn func())
}

// Board is everything platform specific.
type Board struct {
	Store    store.Store
	RTC      AlarmRTC
	Mask     sleep.Mask
	Watchdog resetman.Watchdog
	// Reset performs the hardware reset. On the MCU it does not return.
	Reset func()
	Cause resetman.Reason

	I2C  drivers.I2C
	ADC  battery.ADC
	Link uartlink.Port

	// LowPower overrides the default wait on the event line.
	LowPower sleep.LowPower
	// Resume restores clocks and peripherals after deep sleep.
	Resume func()
}

type Node struct {
	Events    *sleep.Events
	Clock     *rtc.Clock
	Timers    *rtc.Server
	Config    *corecfg.Config
	Bus       *bus.Bus
	Registry  *modules.Registry
	Reset     *resetman.Manager
	Watchdog  *resetman.WatchdogManager
	Sleep     *sleep.Coordinator
	Terminal  *terminal.Terminal
	Scheduler *scheduler.Scheduler

	Env       *envsensor.Sensor
	Battery   *battery.Monitor
	Link      *uartlink.Link
	TxDisplay *txdisplay.Display
	RxDisplay *rxdisplay.Display
	AsyncTx   *asynctx.Tx

	board Board
	log   *logx.Logger
}

// New wires the node. Nothing touches the store or peripherals until Boot.
func New(b Board) *Node {
	n := &Node{board: b, Events: sleep.NewEvents()}
	n.log = logx.New("core", corecfg.DefaultSeverity)
	n.Config = &corecfg.Config{Log: n.log, DriverLog: logx.New("driver", corecfg.DefaultSeverity)}

	n.Clock = rtc.New(b.RTC)
	n.Timers = rtc.NewServer(n.Clock, n.Events.Signal)
	b.RTC.OnAlarm(n.Timers.IRQ)

	n.Bus = bus.NewBus(bus.Options{}, n.log)
	n.Env = envsensor.New(b.I2C)
	n.Battery = battery.New(b.ADC)
	n.Link = uartlink.New(b.Link, n.Events.Signal)
	n.TxDisplay = txdisplay.New()
	n.RxDisplay = rxdisplay.New()
	n.AsyncTx = asynctx.New(asynctx.SenderFunc(n.sendAsync))

	n.Registry = modules.NewRegistry(b.Store, n.Bus, n.log,
		modules.Descriptor{Name: "core", Description: "timing and logging", ID: types.ModCore,
			ConfigLen: corecfg.ConfigLen, Module: n.Config},
		modules.Descriptor{Name: "envsensor", Description: "SHTC3 temperature and humidity", ID: types.ModEnvSensor,
			ConfigLen: envsensor.ConfigLen, Module: n.Env},
		modules.Descriptor{Name: "battery", Description: "supply voltage", ID: types.ModBattery,
			ConfigLen: battery.ConfigLen, Module: n.Battery},
		modules.Descriptor{Name: "uartlink", Description: "framed serial uplink", ID: types.ModUARTLink,
			ConfigLen: 1, Module: n.Link},
		modules.Descriptor{Name: "txdisplay", Description: "print transmitted data", ID: types.ModTxDisplay,
			ConfigLen: 1, Module: n.TxDisplay},
		modules.Descriptor{Name: "rxdisplay", Description: "print received data", ID: types.ModRxDisplay,
			ConfigLen: 1, Module: n.RxDisplay},
		modules.Descriptor{Name: "asynctx", Description: "send module messages when the link is free", ID: types.ModAsyncTx,
			ConfigLen: 1, Module: n.AsyncTx},
	)

	rec := store.Region{S: b.Store, Base: corecfg.ResetRecordOff, Len: corecfg.ResetRecordLen}
	n.Reset = resetman.New(rec, b.Reset, n.log)
	n.Watchdog = resetman.NewWatchdogManager(b.Watchdog, n.Timers, n.Config.DriverLog)

	lp := b.LowPower
	if lp == nil {
		lp = sleep.EventWait{Ev: n.Events, Resume: b.Resume}
	}
	n.Sleep = sleep.NewCoordinator(n.Registry, n.Clock, n.Events, b.Mask, lp, n.log)

	n.Terminal = terminal.New(n.Config, n.Registry, n.Reset, n.Clock, logx.New("term", types.SevNone))
	n.Link.OnCommand(func(line string) bool { return n.Submit(line, terminal.Remote) })

	n.Scheduler = scheduler.New(scheduler.Deps{
		Registry: n.Registry,
		Bus:      n.Bus,
		Config:   n.Config,
		Timers:   n.Timers,
		Sleep:    n.Sleep,
		Reset:    n.Reset,
		Watchdog: n.Watchdog,
		Terminal: n.Terminal,
		Log:      n.log,
	})
	return n
}

// sendAsync refuses messages while the link module is disabled, so they
// are dropped instead of waiting for a link that never runs.
func (n *Node) sendAsync(p []byte) error {
	if e, ok := n.Registry.Entry(types.ModUARTLink); !ok || !e.Enabled || n.board.Link == nil {
		return errcode.Unsupported
	}
	return n.Link.SendData(p)
}

// Names lists the registered modules, core first.
func (n *Node) Names() []string {
	var out []string
	for _, e := range n.Registry.Entries() {
		out = append(out, e.Name)
	}
	return out
}

// Submit queues a terminal line and wakes the loop.
func (n *Node) Submit(line string, o terminal.Origin) bool {
	ok := n.Terminal.Submit(line, o)
	n.Events.Signal()
	return ok
}

// Boot reports the previous reset, loads every module's configuration and
// arms the first period. A configuration load failure goes through the
// error handler, which requests a reset.
func (n *Node) Boot() error {
	n.log.Printf("sensor node starting")
	n.Clock.Init()
	n.Reset.Boot(n.board.Cause)

	if err := n.Registry.Init(); err != nil {
		return n.Reset.ErrorHandler(err)
	}
	if err := n.Watchdog.Start(); err != nil {
		n.Config.DriverLog.Errorf("watchdog: %v", err)
	}
	n.Scheduler.Start()
	return nil
}

// Run services the link and runs the main loop until ctx ends or a reset
// is requested.
func (n *Node) Run(ctx context.Context) error {
	if e, ok := n.Registry.Entry(types.ModUARTLink); ok && e.Enabled && n.board.Link != nil {
		go n.Link.Run(ctx)
	}
	return n.Scheduler.Run(ctx)
}
