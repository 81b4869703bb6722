package resetman

import (
	"sensornode-go/rtc"
	"sensornode-go/x/logx"
)

// WatchdogTimeoutMs fits the RP2040 watchdog's ~8.3 s ceiling.
const WatchdogTimeoutMs = 8000

// safeWakeMs keeps the loop cycling, and the watchdog fed, even when the
// base period is longer than the watchdog timeout.
const safeWakeMs = WatchdogTimeoutMs / 2

// Watchdog is the hardware independent watchdog.
type Watchdog interface {
	Configure(timeoutMs uint32) error
	Start() error
	Update()
}

type WatchdogManager struct {
	wd    Watchdog
	srv   *rtc.Server
	safe  *rtc.Timer
	log   *logx.Logger
	kicks uint32
	wakes uint32
}

func NewWatchdogManager(wd Watchdog, srv *rtc.Server, log *logx.Logger) *WatchdogManager {
	w := &WatchdogManager{wd: wd, srv: srv, log: log}
	w.safe = rtc.NewTimer(w.onSafeTimer)
	return w
}

func (w *WatchdogManager) Start() error {
	if err := w.wd.Configure(WatchdogTimeoutMs); err != nil {
		return err
	}
	if err := w.wd.Start(); err != nil {
		return err
	}
	w.srv.Start(w.safe, safeWakeMs)
	w.log.Infof("watchdog armed: %d ms", WatchdogTimeoutMs)
	return nil
}

// Kick feeds the watchdog. The main loop calls it once per iteration.
func (w *WatchdogManager) Kick() {
	w.wd.Update()
	w.kicks++
}

func (w *WatchdogManager) Kicks() uint32     { return w.kicks }
func (w *WatchdogManager) SafeWakes() uint32 { return w.wakes }

func (w *WatchdogManager) onSafeTimer() {
	w.wakes++
	w.log.Debugf("watchdog safe wake")
	w.srv.Start(w.safe, safeWakeMs)
}
