package config

// Embedded per-device configuration documents.
// Key: device ID (the value placed in ctx under CtxDeviceKey).
// Val: raw JSON for that device.

// Host simulation: the original board wiring, button on line 46.
const cfgSim = `{
  "monitor": {
    "name": "world",
    "pin": 46,
    "group": "gpio46",
    "pull": "up"
  },
  "statslog": {
    "interval_s": 5
  },
  "bridge": {
    "transport": {
      "type": "serial",
      "serial": {"device": "/dev/ttyACM0", "baud": 115200}
    }
  }
}`

// Pico dev board: button wired to GP14, link over UART0.
const cfgPico = `{
  "monitor": {
    "name": "world",
    "pin": 14,
    "group": "gpio14",
    "pull": "up"
  },
  "statslog": {
    "interval_s": 5
  },
  "bridge": {
    "transport": {
      "type": "uart",
      "uart": {"baud": 115200, "rx_pin": 1, "tx_pin": 0}
    }
  }
}`

var embeddedConfigs = map[string][]byte{
	"sim":  []byte(cfgSim),
	"pico": []byte(cfgPico),
}
