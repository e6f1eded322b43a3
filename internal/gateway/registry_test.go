package gateway

import (
	"sort"
	"testing"

	"github.com/openremoteio/remoteio/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRegistersAllChannelsAndAggregates(t *testing.T) {
	fd := newFakeDriver(0x7026, map[types.ChannelKind]int{
		types.KindAnalogInput:   6,
		types.KindAnalogOutput:  2,
		types.KindDigitalInput:  2,
		types.KindDigitalOutput: 2,
	})
	surface := newRecordingSurface()
	mgr := testManager(fd, surface)

	inst, err := mgr.Add(types.InstanceConfig{Name: "dev", Address: "10.0.0.1"})
	require.NoError(t, err)
	require.Equal(t, StateRunning, inst.State())

	assert.Len(t, inst.Channels(), 12)
	aggs := inst.Aggregates()
	require.Len(t, aggs, 4)
	for _, agg := range aggs {
		assert.Equal(t, fd.counts[agg.Kind], agg.Size)
	}

	assert.Len(t, surface.channelNames(), 12)
	assert.Contains(t, surface.aggregates, "dev/all_ai")
	assert.Contains(t, surface.aggregates, "dev/all_do")
}

func TestBuildSkipsDisabledAnalogChannels(t *testing.T) {
	fd := newFakeDriver(0x7018, map[types.ChannelKind]int{
		types.KindAnalogInput: 2,
	})
	fd.masks[types.KindAnalogInput] = []bool{true, false}
	surface := newRecordingSurface()
	mgr := testManager(fd, surface)

	inst, err := mgr.Add(types.InstanceConfig{Name: "dev", Address: "10.0.0.1"})
	require.NoError(t, err)

	channels := inst.Channels()
	require.Len(t, channels, 1)
	assert.Equal(t, "ai00", channels[0].Name)

	// The aggregate still spans the full bank.
	aggs := inst.Aggregates()
	require.Len(t, aggs, 1)
	assert.Equal(t, 2, aggs[0].Size)

	// The suppressed channel is not addressable.
	_, err = inst.ReadChannel(types.KindAnalogInput, 1)
	assert.ErrorIs(t, err, ErrNotRegistered)

	// But it still occupies its slot in the aggregate.
	reading := inst.ReadAggregate(types.KindAnalogInput)
	assert.Equal(t, types.QualityValid, reading.Quality)
	assert.Len(t, reading.Analog, 2)
}

func TestShowDisabledChannelsExposesMaskedChannels(t *testing.T) {
	fd := newFakeDriver(0x7018, map[types.ChannelKind]int{
		types.KindAnalogInput: 2,
	})
	fd.masks[types.KindAnalogInput] = []bool{true, false}
	mgr := testManager(fd, newRecordingSurface())

	inst, err := mgr.Add(types.InstanceConfig{
		Name:                 "dev",
		Address:              "10.0.0.1",
		ShowDisabledChannels: true,
	})
	require.NoError(t, err)

	channels := inst.Channels()
	require.Len(t, channels, 2)
	assert.False(t, channels[1].Enabled)
}

func TestRebuildIsIdempotent(t *testing.T) {
	fd := newFakeDriver(0x7026, map[types.ChannelKind]int{
		types.KindAnalogInput:   6,
		types.KindDigitalOutput: 2,
	})
	surface := newRecordingSurface()
	mgr := testManager(fd, surface)

	inst, err := mgr.Add(types.InstanceConfig{Name: "dev", Address: "10.0.0.1"})
	require.NoError(t, err)

	first := inst.Channels()

	// Tear down and rebuild twice with unchanged metadata.
	inst.mu.Lock()
	inst.teardownRegistryLocked()
	inst.buildRegistryLocked()
	inst.teardownRegistryLocked()
	inst.buildRegistryLocked()
	inst.mu.Unlock()

	second := inst.Channels()
	require.Equal(t, len(first), len(second))
	assert.Equal(t, first, second)

	names := surface.channelNames()
	sort.Strings(names)
	assert.Len(t, names, len(first))
}

func TestTeardownMarksPendingBuild(t *testing.T) {
	fd := newFakeDriver(0x7026, map[types.ChannelKind]int{
		types.KindDigitalInput: 2,
	})
	mgr := testManager(fd, newRecordingSurface())

	inst, err := mgr.Add(types.InstanceConfig{Name: "dev", Address: "10.0.0.1"})
	require.NoError(t, err)

	inst.mu.Lock()
	inst.teardownRegistryLocked()
	pending := inst.pendingBuild
	inst.mu.Unlock()

	assert.True(t, pending)
	assert.Empty(t, inst.Channels())

	// The periodic tick path rebuilds the channel set.
	inst.ensurePending()
	assert.Len(t, inst.Channels(), 2)
	assert.Equal(t, StateRunning, inst.State())
}
