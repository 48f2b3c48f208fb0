package model

// ProcessInfo is the best-effort identity of the process owning a socket.
type ProcessInfo struct {
	PID  int    `json:"pid"`
	PPID int    `json:"ppid,omitempty"`
	Name string `json:"name"`
	User string `json:"user,omitempty"`

	// Cmdline is only filled for detail views.
	Cmdline string `json:"cmdline,omitempty"`
}
