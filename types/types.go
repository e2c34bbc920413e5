package types

// ------------------------
// Service state (retained)
// ------------------------

type ServiceState struct {
	Level  string `json:"level"`  // "idle", "running", "error", "stopped"
	Status string `json:"status"` // freeform short code
	Error  string `json:"error,omitempty"`
	TSms   int64  `json:"ts_ms"`
}

// ------------------------
// Attribute surface payloads
// ------------------------

// AttrInfo is the retained description of one published attribute.
type AttrInfo struct {
	Name string `json:"name"`
	Mode uint16 `json:"mode"` // octal permission bits, e.g. 0444, 0664
}

// AttrRead is the reply to a show request.
type AttrRead struct {
	Text string `json:"text"`
}

// AttrWrite is the payload of a store request.
type AttrWrite struct {
	Text string `json:"text"`
}

// AttrWriteResult reports the outcome of a store: bytes consumed, or an
// error code with nothing consumed.
type AttrWriteResult struct {
	OK    bool   `json:"ok"`
	N     int    `json:"n"`
	Error string `json:"error,omitempty"`
}

// ------------------------
// Button monitor payloads
// ------------------------

// ButtonEvent is published per handled edge (non-retained).
type ButtonEvent struct {
	Level   int    `json:"level"` // sampled level, 0 or 1
	Presses uint32 `json:"presses"`
	TSms    int64  `json:"ts_ms"`
}

// MonitorConfig configures the button monitor service.
type MonitorConfig struct {
	Name  string `json:"name"`  // display name for greeting logs
	Pin   int    `json:"pin"`   // input line number
	Group string `json:"group"` // attribute group name
	Pull  string `json:"pull"`  // "none", "up", "down"
}

// ------------------------
// Ancillary service configs
// ------------------------

type StatsLogConfig struct {
	IntervalS int `json:"interval_s"`
}

// StatsReport is the periodic press-count heartbeat (retained).
type StatsReport struct {
	Group   string `json:"group"`
	Presses uint32 `json:"presses"`
	TSms    int64  `json:"ts_ms"`
}
