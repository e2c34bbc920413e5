//go:build !rp2040 && !rp2350

package main

import (
	"buttonmon-go/gpio"
	"buttonmon-go/irq"
)

const deviceID = "sim"

func newLineFactory() (gpio.LineFactory, irq.Source) {
	f := gpio.NewSimFactory(63)
	return f, f
}
