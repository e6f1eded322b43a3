package types

import (
	"fmt"
	"strconv"
	"time"
)

const DefaultReconnectTimeoutMs = 10000

// DeviceIdentity is established by a successful handshake and becomes
// stale the moment the handshake fails or the address changes. Channels
// reference it read-only; they never own it.
type DeviceIdentity struct {
	Address    string `json:"address"`
	ModelCode  uint16 `json:"model_code"`
	ModelLabel string `json:"model_label"`
}

// CodeString renders the model code the way the device labels itself,
// e.g. 0x7026 -> "7026". "0000" means unknown or offline.
func (d DeviceIdentity) CodeString() string {
	return fmt.Sprintf("%04X", d.ModelCode)
}

// InstanceConfig is the per-device configuration recognized by the
// gateway. AsyncIO is reserved and unused by the core.
type InstanceConfig struct {
	Name                 string `json:"name" mapstructure:"name"`
	Address              string `json:"address" mapstructure:"address"`
	Emulate              bool   `json:"emulate" mapstructure:"emulate"`
	ReconnectTimeoutMs   int    `json:"reconnect_timeout_ms" mapstructure:"reconnect_timeout_ms"`
	ShowDisabledChannels bool   `json:"show_disabled_channels" mapstructure:"show_disabled_channels"`
	AsyncIO              bool   `json:"async_io" mapstructure:"async_io"`
}

// ReconnectTimeout returns the minimum interval between reconnect
// attempts, applying the default when unset.
func (c InstanceConfig) ReconnectTimeout() time.Duration {
	ms := c.ReconnectTimeoutMs
	if ms <= 0 {
		ms = DefaultReconnectTimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}

// ModelDefinition is a device model profile: how many channels of each
// kind the model exposes and where they live in the Modbus tables.
type ModelDefinition struct {
	Model       string `json:"model"`
	Label       string `json:"label"`
	Vendor      string `json:"vendor,omitempty"`
	Description string `json:"description,omitempty"`

	AnalogInputs   BankDefinition `json:"analog_inputs"`
	AnalogOutputs  BankDefinition `json:"analog_outputs"`
	DigitalInputs  BankDefinition `json:"digital_inputs"`
	DigitalOutputs BankDefinition `json:"digital_outputs"`
}

// BankDefinition locates one channel bank. ValueAddress is the base in
// the kind's natural Modbus table (input registers for ai, holding
// registers for ao, discrete inputs for di, coils for do). MaskAddress
// and RangeAddress are meaningful for analog banks only: the enable
// mask coils and the per-channel range-code holding registers.
type BankDefinition struct {
	Count        int     `json:"count"`
	ValueAddress uint16  `json:"value_address"`
	MaskAddress  *uint16 `json:"mask_address,omitempty"`
	RangeAddress *uint16 `json:"range_address,omitempty"`
}

// Code parses the profile's model string as the hex code the device
// reports from its name register.
func (m *ModelDefinition) Code() (uint16, error) {
	code, err := strconv.ParseUint(m.Model, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid model code %q: %w", m.Model, err)
	}
	return uint16(code), nil
}

// Bank returns the bank definition for a channel kind.
func (m *ModelDefinition) Bank(kind ChannelKind) BankDefinition {
	switch kind {
	case KindAnalogInput:
		return m.AnalogInputs
	case KindAnalogOutput:
		return m.AnalogOutputs
	case KindDigitalInput:
		return m.DigitalInputs
	case KindDigitalOutput:
		return m.DigitalOutputs
	}
	return BankDefinition{}
}
