package gateway

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/openremoteio/remoteio/internal/driver"
	"github.com/openremoteio/remoteio/internal/types"
	"go.uber.org/zap"
)

// DriverFactory builds the register-level driver for an instance
// configuration. Emulated instances get an in-process simulator.
type DriverFactory func(cfg types.InstanceConfig) driver.Driver

// Instance is one managed remote I/O device. A single mutex serializes
// everything that touches its state: health checks, reconnects, channel
// reads and writes, and registry rebuilds. Blocking driver I/O happens
// with the lock held; the workload is low-frequency polling, so
// correctness wins over throughput here.
type Instance struct {
	mu sync.Mutex

	cfg     types.InstanceConfig
	factory DriverFactory
	surface Surface
	logger  *zap.Logger

	state        State
	stateChanged time.Time
	handle       *Handle
	registry     *Registry
	health       types.HealthState

	// pendingBuild marks an instance whose channel set is missing or
	// stale; the manager's tick retries the build.
	pendingBuild bool
}

func newInstance(cfg types.InstanceConfig, factory DriverFactory, surface Surface, logger *zap.Logger) *Instance {
	return &Instance{
		cfg:          cfg,
		factory:      factory,
		surface:      surface,
		logger:       logger,
		state:        StateUninitialized,
		stateChanged: time.Now(),
		pendingBuild: true,
	}
}

func (i *Instance) setStateLocked(state State) {
	if i.state == state {
		return
	}
	i.state = state
	i.stateChanged = time.Now()
}

// initializeLocked performs the full open and build sequence: connect,
// wait for a model code, resolve the profile, rebuild the channel set.
// Any failure lands the instance in Faulted with the error recorded.
func (i *Instance) initializeLocked() error {
	i.setStateLocked(StateInitializing)
	i.surface.OnInit(i.cfg.Name)

	handle, err := Open(i.cfg.Address, i.factory(i.cfg), i.logger)
	if err != nil {
		i.faultLocked(err.Error())
		return err
	}

	i.handle = handle
	i.health.Connected = true
	i.recordSuccessLocked()

	i.teardownRegistryLocked()
	i.buildRegistryLocked()

	i.setStateLocked(StateRunning)
	i.surface.OnRunning(i.cfg.Name)

	identity := handle.Identity()
	i.logger.Info("Device created",
		zap.String("device", i.cfg.Name),
		zap.String("model", identity.ModelLabel),
		zap.String("address", identity.Address))

	return nil
}

// faultLocked records an error against health and moves to Faulted.
func (i *Instance) faultLocked(message string) {
	i.recordFailureLocked()
	i.health.Connected = false
	i.setStateLocked(StateFaulted)
	i.logger.Error("Device faulted",
		zap.String("device", i.cfg.Name),
		zap.String("reason", message))
	i.surface.OnFault(i.cfg.Name, message)
}

func (i *Instance) recordFailureLocked() {
	i.health.ConsecutiveErrors++
	i.health.LastErrorAt = time.Now()
}

func (i *Instance) recordSuccessLocked() {
	i.health.ConsecutiveErrors = 0
	i.health.LastErrorAt = time.Time{}
}

// connectedLocked reports whether the device is live. While
// disconnected, once reconnectTimeout has elapsed since the last
// recorded error it attempts a reconnect as a side effect; the current
// call still reports false even when that attempt succeeds, so callers
// observe at most one state change per operation.
func (i *Instance) connectedLocked() bool {
	if i.handle != nil && i.handle.identity.ModelCode != 0 {
		return true
	}
	if !i.health.LastErrorAt.IsZero() && time.Since(i.health.LastErrorAt) > i.cfg.ReconnectTimeout() {
		i.reconnectLocked()
	}
	return false
}

// reconnectLocked discards the handle, identity and channel set and
// runs the full open+build sequence from scratch.
func (i *Instance) reconnectLocked() error {
	i.teardownRegistryLocked()
	if i.handle != nil {
		i.handle.Close()
		i.handle = nil
	}
	i.health.Connected = false
	i.setStateLocked(StateUninitialized)

	if err := i.initializeLocked(); err != nil {
		return err
	}
	i.logger.Info("Reconnected", zap.String("device", i.cfg.Name))
	return nil
}

// Reconnect tears the instance down and rebuilds it immediately,
// bypassing the reconnect rate limit. Used by the explicit operator
// command.
func (i *Instance) Reconnect() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.reconnectLocked()
}

// ReadChannel reads one registered channel. I/O failures surface as an
// Invalid-quality reading, never as an error; the only error returned
// is ErrNotRegistered for channels outside the current registry.
func (i *Instance) ReadChannel(kind types.ChannelKind, index int) (types.Reading, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := time.Now()
	if i.registry == nil {
		return invalidReading(kind, now), ErrNotRegistered
	}
	desc, ok := i.registry.channel(kind, index)
	if !ok {
		return invalidReading(kind, now), ErrNotRegistered
	}

	if !i.connectedLocked() {
		i.logger.Debug("Waiting for reconnect",
			zap.String("device", i.cfg.Name),
			zap.String("channel", desc.Name))
		return invalidReading(kind, now), nil
	}

	val, err := i.handle.ReadChannel(kind, index)
	if err == nil && !(kind.Analog() && math.IsNaN(val)) {
		i.recordSuccessLocked()
		return validReading(kind, val, now), nil
	}

	// Failures on a disabled channel stay silent; the channel only
	// exists because showDisabledChannels asked for it.
	if desc.Enabled {
		i.recordFailureLocked()
		i.logger.Error("Error reading channel",
			zap.String("device", i.cfg.Name),
			zap.String("channel", desc.Name),
			zap.Float64("value", val),
			zap.Error(err))
	}
	return invalidReading(kind, now), nil
}

// WriteChannel writes one registered output channel. Accepts a float64
// for analog and a bool for digital channels. Disconnection and driver
// failures surface as an Invalid result; ErrNotRegistered and
// ErrNotWritable reject the call before any driver contact.
func (i *Instance) WriteChannel(kind types.ChannelKind, index int, value any) (types.WriteResult, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	invalid := types.WriteResult{Quality: types.QualityInvalid}
	if i.registry == nil {
		return invalid, ErrNotRegistered
	}
	desc, ok := i.registry.channel(kind, index)
	if !ok {
		return invalid, ErrNotRegistered
	}
	if !kind.Writable() {
		i.logger.Error("Write to non-writable channel",
			zap.String("device", i.cfg.Name),
			zap.String("channel", desc.Name))
		return invalid, ErrNotWritable
	}

	raw, err := writeValue(kind, value)
	if err != nil {
		i.logger.Error("Write with unsupported value",
			zap.String("device", i.cfg.Name),
			zap.String("channel", desc.Name),
			zap.Error(err))
		return invalid, err
	}

	if !i.connectedLocked() {
		i.logger.Debug("Waiting for reconnect",
			zap.String("device", i.cfg.Name),
			zap.String("channel", desc.Name))
		return invalid, nil
	}

	if err := i.handle.WriteChannel(kind, index, raw); err != nil {
		if desc.Enabled {
			i.recordFailureLocked()
			i.logger.Error("Error writing channel",
				zap.String("device", i.cfg.Name),
				zap.String("channel", desc.Name),
				zap.Error(err))
		}
		return invalid, nil
	}

	i.recordSuccessLocked()
	return types.WriteResult{Quality: types.QualityValid}, nil
}

// ReadAggregate reads a full bank in one bulk call. The result always
// spans the full channel count, disabled channels included. A failed
// bulk read yields Invalid without touching the error counters; the
// per-channel path owns error escalation.
func (i *Instance) ReadAggregate(kind types.ChannelKind) types.AggregateReading {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := time.Now()
	size := 0
	if i.registry != nil {
		if agg, ok := i.registry.aggregate(kind); ok {
			size = agg.Size
		}
	}

	if !i.connectedLocked() {
		i.logger.Debug("Waiting for reconnect",
			zap.String("device", i.cfg.Name),
			zap.String("channel", types.AggregateName(kind)))
		return invalidAggregate(kind, size, now)
	}

	vals, err := i.handle.ReadAll(kind)
	if err != nil || vals == nil {
		return invalidAggregate(kind, size, now)
	}

	i.recordSuccessLocked()
	out := types.AggregateReading{Quality: types.QualityValid, At: now}
	if kind.Analog() {
		out.Analog = vals
	} else {
		out.Digital = make([]bool, len(vals))
		for idx, v := range vals {
			out.Digital[idx] = v != 0
		}
	}
	return out
}

// ReadRegisters reads raw holding registers. The result is always
// sized to count; on any failure it is filled with NaN sentinels so
// consumers get the shape they asked for.
func (i *Instance) ReadRegisters(start, count uint16) []float64 {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.handle == nil {
		return nanSlice(int(count))
	}
	vals, err := i.handle.ReadRegisters(start, count)
	if err != nil {
		i.logger.Debug("Raw register read failed",
			zap.String("device", i.cfg.Name),
			zap.Uint16("start", start),
			zap.Error(err))
		return nanSlice(int(count))
	}

	out := make([]float64, len(vals))
	for idx, v := range vals {
		out[idx] = float64(v)
	}
	return out
}

// WriteRegisters writes raw holding registers. A failure counts toward
// health like an enabled-channel write failure.
func (i *Instance) WriteRegisters(start uint16, values []uint16) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.handle == nil {
		i.recordFailureLocked()
		i.logger.Error("Error writing registers",
			zap.String("device", i.cfg.Name),
			zap.Uint16("start", start))
		return false
	}
	if err := i.handle.WriteRegisters(start, values); err != nil {
		i.recordFailureLocked()
		i.logger.Error("Error writing registers",
			zap.String("device", i.cfg.Name),
			zap.Uint16("start", start),
			zap.Error(err))
		return false
	}
	return true
}

// IsConnected exposes the health check, reconnect side effect included.
func (i *Instance) IsConnected() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.connectedLocked()
}

// ensurePending runs the build work the periodic tick is responsible
// for: first-time initialization, and registry rebuilds for instances
// whose channel set was torn down while the transport stayed up.
func (i *Instance) ensurePending() {
	i.mu.Lock()
	defer i.mu.Unlock()

	switch {
	case i.state == StateUninitialized:
		_ = i.initializeLocked()
	case i.handle != nil && i.pendingBuild:
		i.setStateLocked(StateInitializing)
		i.surface.OnInit(i.cfg.Name)
		i.buildRegistryLocked()
		i.setStateLocked(StateRunning)
		i.surface.OnRunning(i.cfg.Name)
	}
}

// Close tears down the channel set and releases the transport.
func (i *Instance) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.teardownRegistryLocked()
	if i.handle != nil {
		i.handle.Close()
		i.handle = nil
	}
	i.health.Connected = false
	i.setStateLocked(StateUninitialized)
	i.logger.Info("Device closed", zap.String("device", i.cfg.Name))
}

func (i *Instance) Config() types.InstanceConfig {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.cfg
}

func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

func (i *Instance) Health() types.HealthState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.health
}

// Channels returns the currently registered channel descriptors.
func (i *Instance) Channels() []types.ChannelDescriptor {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.registry == nil {
		return nil
	}
	return i.registry.Channels()
}

// Aggregates returns the currently registered aggregate descriptors.
func (i *Instance) Aggregates() []types.AggregateDescriptor {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.registry == nil {
		return nil
	}
	return i.registry.Aggregates()
}

// Status takes a consistent snapshot under the instance lock.
func (i *Instance) Status() DeviceStatus {
	i.mu.Lock()
	defer i.mu.Unlock()

	status := DeviceStatus{
		Name:              i.cfg.Name,
		State:             i.state,
		Address:           i.cfg.Address,
		Emulated:          i.cfg.Emulate,
		Connected:         i.health.Connected,
		ConsecutiveErrors: i.health.ConsecutiveErrors,
		LastErrorAt:       i.health.LastErrorAt,
		LastStateChange:   i.stateChanged,
	}
	if i.handle != nil {
		identity := i.handle.Identity()
		status.Model = identity.CodeString()
		status.ModelLabel = identity.ModelLabel
	}
	if i.registry != nil {
		status.ChannelCount = len(i.registry.channels)
	}
	return status
}

func invalidReading(kind types.ChannelKind, at time.Time) types.Reading {
	if kind.Analog() {
		return types.Reading{Quality: types.QualityInvalid, Value: math.NaN(), At: at}
	}
	return types.Reading{Quality: types.QualityInvalid, Value: false, At: at}
}

func validReading(kind types.ChannelKind, val float64, at time.Time) types.Reading {
	if kind.Analog() {
		return types.Reading{Quality: types.QualityValid, Value: val, At: at}
	}
	return types.Reading{Quality: types.QualityValid, Value: val != 0, At: at}
}

func invalidAggregate(kind types.ChannelKind, size int, at time.Time) types.AggregateReading {
	out := types.AggregateReading{Quality: types.QualityInvalid, At: at}
	if kind.Analog() {
		out.Analog = nanSlice(size)
	} else {
		out.Digital = make([]bool, size)
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for idx := range out {
		out[idx] = math.NaN()
	}
	return out
}

func writeValue(kind types.ChannelKind, value any) (float64, error) {
	switch v := value.(type) {
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	}
	return 0, fmt.Errorf("unsupported value type %T for %s channel", value, kind)
}
