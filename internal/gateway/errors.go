package gateway

import "errors"

var (
	// ErrUnreachable means the device did not answer the open handshake
	// within the bounded wait.
	ErrUnreachable = errors.New("device unreachable")

	// ErrUnknownModel means the device answered with a model code that
	// has no profile in the catalog.
	ErrUnknownModel = errors.New("unknown device model")

	// ErrAddressInUse means another managed, non-emulated instance is
	// already bound to the same address.
	ErrAddressInUse = errors.New("address already in use")

	// ErrNotRegistered means the addressed channel does not exist in
	// the current registry.
	ErrNotRegistered = errors.New("channel not registered")

	// ErrNotWritable means a write targeted an input channel kind.
	ErrNotWritable = errors.New("channel is not writable")

	// ErrInstanceExists and ErrInstanceNotFound guard the manager's
	// instance table.
	ErrInstanceExists   = errors.New("device instance already exists")
	ErrInstanceNotFound = errors.New("device instance not found")
)
