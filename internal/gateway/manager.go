package gateway

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/openremoteio/remoteio/internal/types"
	"go.uber.org/zap"
)

const (
	DefaultTickInterval = time.Second
	DefaultTickBudget   = 800 * time.Millisecond
)

// ManagerConfig tunes the periodic re-evaluation tick.
type ManagerConfig struct {
	TickInterval time.Duration
	TickBudget   time.Duration
}

// Manager owns the instance table. Instances are independent: each has
// its own lock, and operations on different devices proceed
// concurrently. The manager's own lock only guards the table.
type Manager struct {
	mu        sync.RWMutex
	instances map[string]*Instance

	factory DriverFactory
	surface Surface
	logger  *zap.Logger
	cfg     ManagerConfig

	stop chan struct{}
	done chan struct{}
}

func NewManager(factory DriverFactory, surface Surface, cfg ManagerConfig, logger *zap.Logger) *Manager {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.TickBudget <= 0 {
		cfg.TickBudget = DefaultTickBudget
	}
	return &Manager{
		instances: make(map[string]*Instance),
		factory:   factory,
		surface:   surface,
		logger:    logger,
		cfg:       cfg,
	}
}

// Add registers a new managed device and initializes it synchronously.
// An address collision with another non-emulated instance is a
// configuration error: the instance is still added, but lands in
// Faulted without any device contact, and ErrAddressInUse is returned
// alongside it. An initialization failure also leaves the instance
// managed (and Faulted); only a duplicate name rejects the add.
func (m *Manager) Add(cfg types.InstanceConfig) (*Instance, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("device name must not be empty")
	}
	if cfg.Address == "" && !cfg.Emulate {
		return nil, fmt.Errorf("device %s: address must not be empty", cfg.Name)
	}

	m.mu.Lock()
	if _, exists := m.instances[cfg.Name]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrInstanceExists, cfg.Name)
	}

	collision := false
	if !cfg.Emulate {
		for _, other := range m.instances {
			otherCfg := other.Config()
			if !otherCfg.Emulate && otherCfg.Address == cfg.Address {
				collision = true
				break
			}
		}
	}

	inst := newInstance(cfg, m.factory, m.surface, m.logger)
	m.instances[cfg.Name] = inst
	m.mu.Unlock()

	if collision {
		inst.mu.Lock()
		inst.faultLocked(fmt.Sprintf("address %s is in use", cfg.Address))
		inst.mu.Unlock()
		return inst, fmt.Errorf("%w: %s", ErrAddressInUse, cfg.Address)
	}

	// Initialization failures are reflected in the instance state, not
	// in the add itself; a device that is offline right now still gets
	// managed and can reconnect later.
	_ = inst.initialize()

	return inst, nil
}

func (i *Instance) initialize() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.initializeLocked()
}

func (m *Manager) Get(name string) (*Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, name)
	}
	return inst, nil
}

// List returns all managed instances ordered by name.
func (m *Manager) List() []*Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.instances))
	for name := range m.instances {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*Instance, 0, len(names))
	for _, name := range names {
		out = append(out, m.instances[name])
	}
	return out
}

// Remove tears down an instance and drops it from the table.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	inst, ok := m.instances[name]
	if ok {
		delete(m.instances, name)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, name)
	}
	inst.Close()
	return nil
}

// Statuses snapshots every managed instance.
func (m *Manager) Statuses() []DeviceStatus {
	instances := m.List()
	out := make([]DeviceStatus, 0, len(instances))
	for _, inst := range instances {
		out = append(out, inst.Status())
	}
	return out
}

// Start launches the periodic re-evaluation tick.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	m.mu.Unlock()

	go m.run(stop, done)
	m.logger.Info("Device manager started",
		zap.Duration("tick", m.cfg.TickInterval))
}

// Stop halts the tick and closes every managed instance.
func (m *Manager) Stop() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	for _, inst := range m.List() {
		inst.Close()
	}
	m.logger.Info("Device manager stopped")
}

func (m *Manager) run(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// tick re-evaluates pending builds across all instances under a
// per-cycle time budget, so one slow device cannot block the cycle
// indefinitely; skipped devices are retried on the next tick.
func (m *Manager) tick() {
	deadline := time.Now().Add(m.cfg.TickBudget)
	for _, inst := range m.List() {
		if time.Now().After(deadline) {
			m.logger.Warn("Tick budget exhausted, deferring remaining devices")
			return
		}
		inst.ensurePending()
	}
}
