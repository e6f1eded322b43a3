package driver

import (
	"testing"

	"github.com/openremoteio/remoteio/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simModel() *types.ModelDefinition {
	return &types.ModelDefinition{
		Model: "7026",
		Label: "ET-7026",
		AnalogInputs: types.BankDefinition{
			Count: 6, ValueAddress: 0,
		},
		AnalogOutputs: types.BankDefinition{
			Count: 2, ValueAddress: 0,
		},
		DigitalInputs: types.BankDefinition{
			Count: 2, ValueAddress: 0,
		},
		DigitalOutputs: types.BankDefinition{
			Count: 2, ValueAddress: 0,
		},
	}
}

func TestSimulatorConnectAndModelCode(t *testing.T) {
	sim := NewSimulator(simModel())

	// No model code before the transport opens.
	assert.Equal(t, uint16(0), sim.ModelCode())

	require.NoError(t, sim.Connect())
	assert.Equal(t, uint16(0x7026), sim.ModelCode())
	assert.Equal(t, "ET-7026", sim.ModelLabel())
	assert.NoError(t, sim.Describe())

	require.NoError(t, sim.Close())
	assert.Equal(t, uint16(0), sim.ModelCode())
}

func TestSimulatorChannelMetadata(t *testing.T) {
	sim := NewSimulator(simModel())
	require.NoError(t, sim.Connect())

	assert.Equal(t, 6, sim.ChannelCount(types.KindAnalogInput))
	assert.Equal(t, 2, sim.ChannelCount(types.KindDigitalOutput))

	assert.True(t, sim.ChannelMask(types.KindAnalogInput, 0))
	sim.SetMask(types.KindAnalogInput, 0, false)
	assert.False(t, sim.ChannelMask(types.KindAnalogInput, 0))

	assert.Equal(t, "V", sim.ChannelUnit(types.KindAnalogInput, 0))
	min, max := sim.ChannelRange(types.KindAnalogInput, 0)
	assert.Equal(t, 0.0, min)
	assert.Equal(t, 10.0, max)
}

func TestSimulatorAnalogInputsStayInRange(t *testing.T) {
	sim := NewSimulator(simModel())
	require.NoError(t, sim.Connect())

	values, err := sim.ReadAll(types.KindAnalogInput)
	require.NoError(t, err)
	require.Len(t, values, 6)
	for i, v := range values {
		assert.GreaterOrEqual(t, v, 0.0, "channel %d", i)
		assert.LessOrEqual(t, v, 10.0, "channel %d", i)
	}
}

func TestSimulatorOutputsRetainWrites(t *testing.T) {
	sim := NewSimulator(simModel())
	require.NoError(t, sim.Connect())

	require.NoError(t, sim.WriteChannel(types.KindAnalogOutput, 1, 7.25))
	v, err := sim.ReadChannel(types.KindAnalogOutput, 1)
	require.NoError(t, err)
	assert.Equal(t, 7.25, v)

	require.NoError(t, sim.WriteChannel(types.KindDigitalOutput, 0, 1))
	v, err = sim.ReadChannel(types.KindDigitalOutput, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	// Inputs reject writes.
	err = sim.WriteChannel(types.KindDigitalInput, 0, 1)
	assert.ErrorIs(t, err, ErrNotWritable)
}

func TestSimulatorDigitalInputs(t *testing.T) {
	sim := NewSimulator(simModel())
	require.NoError(t, sim.Connect())

	v, err := sim.ReadChannel(types.KindDigitalInput, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	sim.SetDigitalInput(1, true)
	v, err = sim.ReadChannel(types.KindDigitalInput, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestSimulatorRawRegisters(t *testing.T) {
	sim := NewSimulator(simModel())
	require.NoError(t, sim.Connect())

	// The model name register is pre-seeded.
	values, err := sim.ReadRegisters(modelNameRegister, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x7026}, values)

	require.NoError(t, sim.WriteRegisters(100, []uint16{11, 22}))
	values, err = sim.ReadRegisters(100, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint16{11, 22, 0}, values)
}

func TestSimulatorFailingMode(t *testing.T) {
	sim := NewSimulator(simModel())
	require.NoError(t, sim.Connect())
	sim.SetFailing(true)

	assert.Equal(t, uint16(0), sim.ModelCode())
	_, err := sim.ReadChannel(types.KindAnalogInput, 0)
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = sim.ReadAll(types.KindAnalogInput)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, sim.WriteChannel(types.KindAnalogOutput, 0, 1), ErrNotConnected)
	_, err = sim.ReadRegisters(0, 1)
	assert.ErrorIs(t, err, ErrNotConnected)

	sim.SetFailing(false)
	assert.Equal(t, uint16(0x7026), sim.ModelCode())
}
