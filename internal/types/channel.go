package types

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// ChannelKind identifies one of the four I/O banks a remote module exposes.
type ChannelKind string

const (
	KindAnalogInput   ChannelKind = "ai"
	KindAnalogOutput  ChannelKind = "ao"
	KindDigitalInput  ChannelKind = "di"
	KindDigitalOutput ChannelKind = "do"
)

// Kinds returns all channel kinds in their canonical order.
func Kinds() []ChannelKind {
	return []ChannelKind{KindAnalogInput, KindAnalogOutput, KindDigitalInput, KindDigitalOutput}
}

// Analog reports whether values of this kind are floating point.
// Digital kinds use booleans with false as the "no value" sentinel;
// analog kinds use NaN. Consumers key behavior off this asymmetry.
func (k ChannelKind) Analog() bool {
	return k == KindAnalogInput || k == KindAnalogOutput
}

// Writable reports whether channels of this kind accept writes.
func (k ChannelKind) Writable() bool {
	return k == KindAnalogOutput || k == KindDigitalOutput
}

func (k ChannelKind) Description() string {
	switch k {
	case KindAnalogInput:
		return "analog input"
	case KindAnalogOutput:
		return "analog output"
	case KindDigitalInput:
		return "digital input"
	case KindDigitalOutput:
		return "digital output"
	}
	return "unknown"
}

// ChannelName formats the canonical channel name, e.g. "ai07".
func ChannelName(kind ChannelKind, index int) string {
	return fmt.Sprintf("%s%02d", kind, index)
}

// AggregateName formats the all-of-kind name, e.g. "all_ai".
func AggregateName(kind ChannelKind) string {
	return "all_" + string(kind)
}

// ParseChannelName splits a canonical channel name into kind and index.
func ParseChannelName(name string) (ChannelKind, int, error) {
	if len(name) < 3 {
		return "", 0, fmt.Errorf("invalid channel name: %q", name)
	}
	kind := ChannelKind(name[:2])
	switch kind {
	case KindAnalogInput, KindAnalogOutput, KindDigitalInput, KindDigitalOutput:
	default:
		return "", 0, fmt.Errorf("invalid channel kind in name: %q", name)
	}
	index, err := strconv.Atoi(name[2:])
	if err != nil || index < 0 {
		return "", 0, fmt.Errorf("invalid channel index in name: %q", name)
	}
	return kind, index, nil
}

// Quality tags every produced value, replacing exception-based error
// signaling at the boundary.
type Quality string

const (
	QualityValid   Quality = "valid"
	QualityInvalid Quality = "invalid"
)

// ChannelDescriptor describes one physical channel of a device.
// Index is 0-based and stable for the life of a device identity.
type ChannelDescriptor struct {
	Name     string      `json:"name"`
	Kind     ChannelKind `json:"kind"`
	Index    int         `json:"index"`
	Enabled  bool        `json:"enabled"`
	Writable bool        `json:"writable"`
	Unit     string      `json:"unit,omitempty"`
	Min      float64     `json:"min,omitempty"`
	Max      float64     `json:"max,omitempty"`
}

// AggregateDescriptor describes the synthetic all-of-kind read handle.
// Size is always the full channel count, disabled channels included.
type AggregateDescriptor struct {
	Name string      `json:"name"`
	Kind ChannelKind `json:"kind"`
	Size int         `json:"size"`
}

// Reading is the outcome of a single channel read. Value is a float64
// for analog kinds and a bool for digital kinds; on Invalid quality it
// carries the kind's sentinel (NaN or false). It is never persisted
// beyond the call that produced it.
type Reading struct {
	Quality Quality   `json:"quality"`
	Value   any       `json:"value"`
	At      time.Time `json:"at"`
}

// WriteResult is the outcome of a single channel write.
type WriteResult struct {
	Quality Quality `json:"quality"`
}

// AggregateReading is the outcome of an all-of-kind read. Exactly one
// of Analog or Digital is populated, one entry per channel index in
// ascending order, disabled channels included.
type AggregateReading struct {
	Quality Quality   `json:"quality"`
	Analog  []float64 `json:"analog,omitempty"`
	Digital []bool    `json:"digital,omitempty"`
	At      time.Time `json:"at"`
}

// JSONValue converts a reading value for JSON transport: the NaN
// sentinel becomes null, everything else passes through.
func JSONValue(v any) any {
	if f, ok := v.(float64); ok && math.IsNaN(f) {
		return nil
	}
	return v
}

// JSONAnalog converts an analog array for JSON transport, mapping NaN
// entries to null while keeping every index in place.
func JSONAnalog(values []float64) []*float64 {
	if values == nil {
		return nil
	}
	out := make([]*float64, len(values))
	for i := range values {
		if !math.IsNaN(values[i]) {
			v := values[i]
			out[i] = &v
		}
	}
	return out
}

// HealthState is a snapshot of a device's connection health.
// LastErrorAt is the zero time when no error is pending.
type HealthState struct {
	Connected         bool      `json:"connected"`
	LastErrorAt       time.Time `json:"last_error_at,omitempty"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
}
