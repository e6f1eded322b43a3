package gateway

import "github.com/openremoteio/remoteio/internal/types"

// ReadFunc produces the current reading of one channel.
type ReadFunc func() types.Reading

// WriteFunc applies a value to one writable channel. Value is a float64
// for analog channels and a bool for digital channels.
type WriteFunc func(value any) types.WriteResult

// AggregateReadFunc produces the all-of-kind reading for one bank.
type AggregateReadFunc func() types.AggregateReading

// Surface is the host-framework collaborator: whatever turns channel
// handles into externally addressable endpoints. The registry registers
// and unregisters channels through it, and the lifecycle controller
// reports state transitions on it. Calls arrive with the owning
// instance's lock held, so implementations must not call back into the
// instance.
type Surface interface {
	RegisterChannel(device string, desc types.ChannelDescriptor, read ReadFunc, write WriteFunc) error
	RegisterAggregate(device string, desc types.AggregateDescriptor, read AggregateReadFunc) error
	UnregisterChannel(device, name string) error

	OnInit(device string)
	OnRunning(device string)
	OnFault(device, message string)
}

// NopSurface discards all registrations and events. Useful for tests
// and for hosts that only consume the manager's direct API.
type NopSurface struct{}

func (NopSurface) RegisterChannel(string, types.ChannelDescriptor, ReadFunc, WriteFunc) error {
	return nil
}
func (NopSurface) RegisterAggregate(string, types.AggregateDescriptor, AggregateReadFunc) error {
	return nil
}
func (NopSurface) UnregisterChannel(string, string) error { return nil }
func (NopSurface) OnInit(string)                          {}
func (NopSurface) OnRunning(string)                       {}
func (NopSurface) OnFault(string, string)                 {}
