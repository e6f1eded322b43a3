package driver

import (
	"errors"

	"github.com/openremoteio/remoteio/internal/devices"
	"github.com/openremoteio/remoteio/internal/types"
)

var (
	// ErrNotConnected is returned when an operation needs an open transport.
	ErrNotConnected = errors.New("driver: not connected")

	// ErrUnsupportedModel is returned by Describe when the device reports
	// a model code with no matching profile in the catalog.
	ErrUnsupportedModel = errors.New("driver: unsupported model")

	// ErrNotWritable is returned for writes to input kinds.
	ErrNotWritable = errors.New("driver: channel kind is not writable")
)

// Driver is the register-level device collaborator. Implementations
// report the model code, per-channel metadata and raw values; the
// gateway core never touches the wire protocol itself.
//
// ModelCode performs a live query and returns 0 for "not yet known or
// unsupported". Describe resolves the model profile and loads channel
// metadata (masks, range codes); it is only meaningful after ModelCode
// has returned non-zero.
type Driver interface {
	Connect() error
	Close() error

	ModelCode() uint16
	ModelLabel() string
	Describe() error

	ChannelCount(kind types.ChannelKind) int
	ChannelMask(kind types.ChannelKind, index int) bool
	ChannelUnit(kind types.ChannelKind, index int) string
	ChannelRange(kind types.ChannelKind, index int) (min, max float64)

	ReadChannel(kind types.ChannelKind, index int) (float64, error)
	WriteChannel(kind types.ChannelKind, index int, value float64) error
	ReadAll(kind types.ChannelKind) ([]float64, error)

	ReadRegisters(start, count uint16) ([]uint16, error)
	WriteRegisters(start uint16, values []uint16) error
}

// rawToEng converts a 16-bit raw count to engineering units. Bipolar
// ranges interpret the count as signed, unipolar as unsigned; both map
// full scale linearly onto [min, max].
func rawToEng(raw uint16, spec devices.RangeSpec) float64 {
	var frac float64
	if spec.Bipolar() {
		frac = (float64(int16(raw)) + 32768.0) / 65535.0
	} else {
		frac = float64(raw) / 65535.0
	}
	return spec.Min + frac*(spec.Max-spec.Min)
}

// engToRaw is the inverse of rawToEng, clamped to the range span.
func engToRaw(value float64, spec devices.RangeSpec) uint16 {
	if spec.Max <= spec.Min {
		return 0
	}
	frac := (value - spec.Min) / (spec.Max - spec.Min)
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	if spec.Bipolar() {
		return uint16(int16(frac*65535.0 - 32768.0))
	}
	return uint16(frac * 65535.0)
}

// passthroughRange is used for channels whose range code is unknown:
// raw counts pass through unconverted.
var passthroughRange = devices.RangeSpec{Unit: "", Min: 0, Max: 65535}
