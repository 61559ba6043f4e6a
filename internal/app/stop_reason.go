package app

// StopReason labels why the app is shutting down. It is logged and sent to
// systemd as the STATUS line.
type StopReason string

const (
	StopUnknown    StopReason = "unknown"
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
	StopAppStop    StopReason = "app_stop"
)
