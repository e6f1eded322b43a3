package system

import (
	"sync"

	"github.com/openremoteio/remoteio/internal/api/websocket"
	"github.com/openremoteio/remoteio/internal/gateway"
	"github.com/openremoteio/remoteio/internal/types"
	"go.uber.org/zap"
)

// HubSurface is the host side of the gateway's channel surface: it
// keeps the registered read functions for the live-feed publisher and
// forwards lifecycle events to the websocket hub.
//
// Register and unregister calls arrive with the owning instance's lock
// held, so this type only touches its own maps there; the gateway is
// called back exclusively from the publisher goroutine.
type HubSurface struct {
	hub    *websocket.Hub
	logger *zap.Logger

	mu         sync.RWMutex
	channels   map[string]map[string]registeredChannel
	aggregates map[string]map[string]gateway.AggregateReadFunc
}

type registeredChannel struct {
	desc types.ChannelDescriptor
	read gateway.ReadFunc
}

func NewHubSurface(hub *websocket.Hub, logger *zap.Logger) *HubSurface {
	return &HubSurface{
		hub:        hub,
		logger:     logger,
		channels:   make(map[string]map[string]registeredChannel),
		aggregates: make(map[string]map[string]gateway.AggregateReadFunc),
	}
}

func (s *HubSurface) RegisterChannel(device string, desc types.ChannelDescriptor, read gateway.ReadFunc, write gateway.WriteFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.channels[device] == nil {
		s.channels[device] = make(map[string]registeredChannel)
	}
	s.channels[device][desc.Name] = registeredChannel{desc: desc, read: read}

	s.logger.Debug("Channel registered",
		zap.String("device", device),
		zap.String("channel", desc.Name))
	return nil
}

func (s *HubSurface) RegisterAggregate(device string, desc types.AggregateDescriptor, read gateway.AggregateReadFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.aggregates[device] == nil {
		s.aggregates[device] = make(map[string]gateway.AggregateReadFunc)
	}
	s.aggregates[device][desc.Name] = read
	return nil
}

func (s *HubSurface) UnregisterChannel(device, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.channels[device], name)
	delete(s.aggregates[device], name)

	s.logger.Debug("Channel unregistered",
		zap.String("device", device),
		zap.String("channel", name))
	return nil
}

func (s *HubSurface) OnInit(device string) {
	s.hub.Broadcast(websocket.NewDeviceStateMessage(device, string(gateway.StateInitializing)))
}

func (s *HubSurface) OnRunning(device string) {
	s.hub.Broadcast(websocket.NewDeviceStateMessage(device, string(gateway.StateRunning)))
}

func (s *HubSurface) OnFault(device, message string) {
	s.hub.Broadcast(websocket.NewDeviceStateMessage(device, string(gateway.StateFaulted)))
	s.hub.Broadcast(websocket.NewDeviceErrorMessage(device, message))
}

// snapshotAggregates copies the registered aggregate read functions so
// the publisher can call them without holding the surface lock.
func (s *HubSurface) snapshotAggregates() map[string]map[string]gateway.AggregateReadFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]map[string]gateway.AggregateReadFunc, len(s.aggregates))
	for device, aggs := range s.aggregates {
		out[device] = make(map[string]gateway.AggregateReadFunc, len(aggs))
		for name, read := range aggs {
			out[device][name] = read
		}
	}
	return out
}
