package config

// Embedded node profiles, keyed by name. "sim" is the simulator default.

const profileSim = `node:
  base_period_ms: 10000
  start_delay_ms: 1000
  repeat_delay_ms: 500
  severity: INFO
  driver_severity: ERROR
modules:
  envsensor:
    enabled: true
    severity: INFO
  battery:
    enabled: true
    severity: INFO
  txdisplay:
    enabled: true
    severity: INFO
  uartlink:
    enabled: false
  rxdisplay:
    enabled: true
    severity: INFO
  asynctx:
    enabled: false
sim:
  temperature_mc: 21500
  humidity_x100: 4500
  battery_raw: 24000
  baud: 115200
`

const profileQuiet = `node:
  base_period_ms: 500
  start_delay_ms: 500
  severity: NONE
modules:
  txdisplay:
    enabled: true
`

var embeddedProfiles = map[string][]byte{
	"sim":   []byte(profileSim),
	"quiet": []byte(profileQuiet),
}
