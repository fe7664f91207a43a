package sim

// AdminStatusWriter allows writers to receive admin server status updates.
type AdminStatusWriter interface {
	SetAdminStatus(listening bool)
}

// Controls is the operator surface a writer can drive, such as the TUI key
// bindings.
type Controls interface {
	StartDemo()
	StopDemo()
	ResetSensors()
	ActivateSOS() bool
	CancelSOS() error
}

type controlAware interface {
	SetControls(Controls)
}
