package entity

import "fmt"

// LifecycleState is the state of the remote language server for one session.
type LifecycleState int

const (
	// LifecycleIdle means no remote server is running or being prepared.
	LifecycleIdle LifecycleState = iota
	// LifecycleProvisioning means the remote backend is being checked or installed.
	LifecycleProvisioning
	// LifecycleStarting means the remote process was launched and is being initialized.
	LifecycleStarting
	// LifecycleAttached means the remote server completed initialization.
	LifecycleAttached
	// LifecycleExitedClean means the remote server exited with status zero.
	LifecycleExitedClean
	// LifecycleExitedAbnormal means the remote server exited with an error or a signal.
	LifecycleExitedAbnormal
	// LifecycleReconnectPending means a reconnect timer is running.
	LifecycleReconnectPending
	// LifecycleGivenUp means the automatic reconnect was used up and a manual restart is required.
	LifecycleGivenUp
)

// String returns a human-readable state name.
func (s LifecycleState) String() string {
	switch s {
	case LifecycleIdle:
		return "idle"
	case LifecycleProvisioning:
		return "provisioning"
	case LifecycleStarting:
		return "starting"
	case LifecycleAttached:
		return "attached"
	case LifecycleExitedClean:
		return "exited_clean"
	case LifecycleExitedAbnormal:
		return "exited_abnormal"
	case LifecycleReconnectPending:
		return "reconnect_pending"
	case LifecycleGivenUp:
		return "given_up"
	default:
		return "unknown"
	}
}

// ProvisionState is the state of a single backend|host|environment key.
type ProvisionState int

const (
	// ProvisionUnchecked means the key has not been checked in this process.
	ProvisionUnchecked ProvisionState = iota
	// ProvisionChecking means a check or install is in flight.
	ProvisionChecking
	// ProvisionValid means the backend is installed and runnable.
	ProvisionValid
	// ProvisionMissing means the interpreter or backend is unavailable.
	ProvisionMissing
)

// String returns a human-readable state name.
func (s ProvisionState) String() string {
	switch s {
	case ProvisionUnchecked:
		return "unchecked"
	case ProvisionChecking:
		return "checking"
	case ProvisionValid:
		return "valid"
	case ProvisionMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// ExitStatus describes how a remote process terminated.
type ExitStatus struct {
	Code   int
	Signal string
}

// Clean reports whether the process exited with code zero and no signal.
func (e ExitStatus) Clean() bool {
	return e.Code == 0 && e.Signal == ""
}

// String implements fmt.Stringer.
func (e ExitStatus) String() string {
	if e.Signal != "" {
		return fmt.Sprintf("signal %s", e.Signal)
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

// Status is a point in time view of a session, returned by the rlsp.status command.
type Status struct {
	State         string   `json:"state"`
	Settings      Settings `json:"settings"`
	Attempted     bool     `json:"reconnectAttempted"`
	SuppressCount int      `json:"suppressCount"`
	OpenDocuments int      `json:"openDocuments"`
}
