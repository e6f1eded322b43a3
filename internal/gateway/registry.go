package gateway

import (
	"sort"

	"github.com/openremoteio/remoteio/internal/types"
	"go.uber.org/zap"
)

type channelKey struct {
	kind  types.ChannelKind
	index int
}

// Registry is the set of channels currently exposed for one device
// identity. It is rebuilt as a whole whenever the identity changes;
// entries are never patched in place. All access happens under the
// owning instance's lock.
type Registry struct {
	channels   map[channelKey]types.ChannelDescriptor
	aggregates map[types.ChannelKind]types.AggregateDescriptor
}

func newRegistry() *Registry {
	return &Registry{
		channels:   make(map[channelKey]types.ChannelDescriptor),
		aggregates: make(map[types.ChannelKind]types.AggregateDescriptor),
	}
}

func (r *Registry) channel(kind types.ChannelKind, index int) (types.ChannelDescriptor, bool) {
	desc, ok := r.channels[channelKey{kind, index}]
	return desc, ok
}

func (r *Registry) aggregate(kind types.ChannelKind) (types.AggregateDescriptor, bool) {
	desc, ok := r.aggregates[kind]
	return desc, ok
}

// Channels returns all descriptors ordered by kind then index.
func (r *Registry) Channels() []types.ChannelDescriptor {
	out := make([]types.ChannelDescriptor, 0, len(r.channels))
	for _, desc := range r.channels {
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Index < out[j].Index
	})
	return out
}

func (r *Registry) Aggregates() []types.AggregateDescriptor {
	out := make([]types.AggregateDescriptor, 0, len(r.aggregates))
	for _, kind := range types.Kinds() {
		if desc, ok := r.aggregates[kind]; ok {
			out = append(out, desc)
		}
	}
	return out
}

// buildRegistryLocked materializes the channel set from the open
// handle's metadata and registers every channel on the surface.
// Construction is best-effort: a failed registration is logged and
// skipped, the rest of the bank still builds. Any previous registry
// must already be torn down. Caller holds the instance lock.
func (i *Instance) buildRegistryLocked() {
	reg := newRegistry()

	for _, kind := range types.Kinds() {
		count := i.handle.ChannelCount(kind)
		if count == 0 {
			continue
		}

		registered := 0
		for index := 0; index < count; index++ {
			enabled := i.handle.ChannelMask(kind, index)

			// Analog banks carry a device-side enable mask; disabled
			// channels stay addressable only on request. Digital banks
			// have no mask and are always exposed.
			if kind.Analog() && !enabled && !i.cfg.ShowDisabledChannels {
				i.logger.Info("Channel is disabled",
					zap.String("device", i.cfg.Name),
					zap.String("channel", types.ChannelName(kind, index)))
				continue
			}

			desc := types.ChannelDescriptor{
				Name:     types.ChannelName(kind, index),
				Kind:     kind,
				Index:    index,
				Enabled:  enabled,
				Writable: kind.Writable(),
			}
			if kind.Analog() {
				desc.Unit = i.handle.ChannelUnit(kind, index)
				desc.Min, desc.Max = i.handle.ChannelRange(kind, index)
			}

			if err := i.surface.RegisterChannel(i.cfg.Name, desc, i.readFunc(kind, index), i.writeFunc(kind, index)); err != nil {
				i.logger.Warn("Failed to register channel",
					zap.String("device", i.cfg.Name),
					zap.String("channel", desc.Name),
					zap.Error(err))
				continue
			}
			reg.channels[channelKey{kind, index}] = desc
			registered++
		}

		// The aggregate spans the full bank, disabled channels included.
		agg := types.AggregateDescriptor{
			Name: types.AggregateName(kind),
			Kind: kind,
			Size: count,
		}
		if err := i.surface.RegisterAggregate(i.cfg.Name, agg, i.aggregateFunc(kind)); err != nil {
			i.logger.Warn("Failed to register aggregate",
				zap.String("device", i.cfg.Name),
				zap.String("channel", agg.Name),
				zap.Error(err))
		} else {
			reg.aggregates[kind] = agg
		}

		if kind.Analog() {
			i.logger.Info("Bank initialized",
				zap.String("device", i.cfg.Name),
				zap.String("bank", kind.Description()),
				zap.Int("registered", registered),
				zap.Int("total", count))
		} else {
			i.logger.Info("Bank initialized",
				zap.String("device", i.cfg.Name),
				zap.String("bank", kind.Description()),
				zap.Int("registered", registered))
		}
	}

	i.registry = reg
	i.pendingBuild = false
}

// teardownRegistryLocked removes every registered channel from the
// surface. Removal failures are logged and skipped so a stubborn entry
// cannot wedge a rebuild. Caller holds the instance lock.
func (i *Instance) teardownRegistryLocked() {
	if i.registry == nil {
		return
	}

	for key, desc := range i.registry.channels {
		if err := i.surface.UnregisterChannel(i.cfg.Name, desc.Name); err != nil {
			i.logger.Error("Failed to unregister channel",
				zap.String("device", i.cfg.Name),
				zap.String("channel", desc.Name),
				zap.Error(err))
		}
		delete(i.registry.channels, key)
	}
	for kind, desc := range i.registry.aggregates {
		if err := i.surface.UnregisterChannel(i.cfg.Name, desc.Name); err != nil {
			i.logger.Error("Failed to unregister aggregate",
				zap.String("device", i.cfg.Name),
				zap.String("channel", desc.Name),
				zap.Error(err))
		}
		delete(i.registry.aggregates, kind)
	}

	i.registry = nil
	i.pendingBuild = true
}

func (i *Instance) readFunc(kind types.ChannelKind, index int) ReadFunc {
	return func() types.Reading {
		reading, _ := i.ReadChannel(kind, index)
		return reading
	}
}

func (i *Instance) writeFunc(kind types.ChannelKind, index int) WriteFunc {
	if !kind.Writable() {
		return nil
	}
	return func(value any) types.WriteResult {
		result, _ := i.WriteChannel(kind, index, value)
		return result
	}
}

func (i *Instance) aggregateFunc(kind types.ChannelKind) AggregateReadFunc {
	return func() types.AggregateReading {
		return i.ReadAggregate(kind)
	}
}
