package gateway

import "time"

type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateRunning       State = "running"
	StateFaulted       State = "faulted"
)

// DeviceStatus is a point-in-time snapshot of one managed instance,
// taken under the instance lock.
type DeviceStatus struct {
	Name              string    `json:"name"`
	State             State     `json:"state"`
	Address           string    `json:"address"`
	Model             string    `json:"model,omitempty"`
	ModelLabel        string    `json:"model_label,omitempty"`
	Emulated          bool      `json:"emulated"`
	Connected         bool      `json:"connected"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	LastErrorAt       time.Time `json:"last_error_at,omitempty"`
	ChannelCount      int       `json:"channel_count"`
	LastStateChange   time.Time `json:"last_state_change"`
}
