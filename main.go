//go:build rp2040 || rp2350

package main

import (
	"context"
	"machine"
	"time"

	"sensornode-go/platform"
	"sensornode-go/rtc"
	"sensornode-go/services/node"
	"sensornode-go/services/terminal"
	"sensornode-go/store"
	"sensornode-go/x/logx"
)

const (
	consoleBaud = 115200
	linkBaud    = 115200
	i2cHz       = 100_000
)

func main() {
	// Give a serial adapter time to attach before the banner.
	time.Sleep(2 * time.Second)

	console, ok := platform.OpenUART("uart0", consoleBaud, machine.UART0_TX_PIN, machine.UART0_RX_PIN)
	if !ok {
		println("console: uart0 unavailable")
		return
	}
	logx.Output = console

	st, err := store.OpenEEPROM(platform.NewFlashBacking(store.Capacity))
	if err != nil {
		println("store:", err.Error())
		st = store.NewEEPROM()
	}

	b := node.Board{
		Store:    st,
		RTC:      platform.NewSoftRTC(rtc.Epoch, nil),
		Mask:     &platform.Mask{},
		Watchdog: &platform.Watchdog{},
		Reset:    platform.SystemReset,
		Cause:    platform.ResetCause(),
		I2C:      platform.OpenI2C0(machine.I2C0_SDA_PIN, machine.I2C0_SCL_PIN, i2cHz),
		ADC:      platform.OpenADC(machine.ADC0),
	}
	if link, ok := platform.OpenUART("uart1", linkBaud, machine.UART1_TX_PIN, machine.UART1_RX_PIN); ok {
		b.Link = link
	}

	n := node.New(b)
	if err := n.Boot(); err != nil {
		println("boot:", err.Error())
		platform.SystemReset()
	}

	ctx := context.Background()
	go platform.ReadLines(ctx, console, func(line string) bool {
		return n.Submit(line, terminal.Local)
	})

	if err := n.Run(ctx); err != nil {
		println("main loop ended:", err.Error())
	}
	platform.SystemReset()
}
