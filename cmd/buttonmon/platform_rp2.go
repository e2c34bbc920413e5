//go:build rp2040 || rp2350

package main

import (
	"buttonmon-go/gpio"
	"buttonmon-go/irq"
)

const deviceID = "pico"

func newLineFactory() (gpio.LineFactory, irq.Source) {
	f := gpio.NewRP2Factory()
	return f, f
}
