package system

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openremoteio/remoteio/internal/api/rest"
	"github.com/openremoteio/remoteio/internal/api/websocket"
	"github.com/openremoteio/remoteio/internal/auth"
	"github.com/openremoteio/remoteio/internal/config"
	"github.com/openremoteio/remoteio/internal/devices"
	"github.com/openremoteio/remoteio/internal/driver"
	"github.com/openremoteio/remoteio/internal/gateway"
	"github.com/openremoteio/remoteio/internal/interfaces"
	"github.com/openremoteio/remoteio/internal/storage"
	"github.com/openremoteio/remoteio/internal/types"
	"go.uber.org/zap"
)

// emulatedModel is the profile used for emulated instances.
const emulatedModel = "7026"

type LifecycleManager struct {
	config    *config.Config
	store     *storage.PostgresClient
	catalog   *devices.Catalog
	manager   *gateway.Manager
	hub       *websocket.Hub
	surface   *HubSurface
	publisher *Publisher
	tokens    *auth.TokenService
	logger    *zap.Logger

	restServer *rest.Server

	stateMu      sync.RWMutex
	currentState SystemState

	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

func NewLifecycleManager(cfg *config.Config, logger *zap.Logger) *LifecycleManager {
	catalog, err := devices.NewCatalog(cfg.Profiles.SearchPaths, logger)
	if err != nil {
		logger.Fatal("Failed to load model catalog", zap.Error(err))
	}

	tokens := auth.NewTokenService(cfg.Auth.MachineTokens, logger)
	hub := websocket.NewHub(logger, tokens)
	surface := NewHubSurface(hub, logger)

	factory := func(ic types.InstanceConfig) driver.Driver {
		if ic.Emulate {
			model, ok := catalog.ByModel(emulatedModel)
			if !ok {
				logger.Fatal("Emulated model profile missing",
					zap.String("model", emulatedModel))
			}
			return driver.NewSimulator(model)
		}
		return driver.NewET7000(ic.Address, catalog, logger)
	}

	manager := gateway.NewManager(factory, surface, gateway.ManagerConfig{
		TickInterval: cfg.Gateway.TickInterval,
		TickBudget:   cfg.Gateway.TickBudget,
	}, logger)

	return &LifecycleManager{
		config:       cfg,
		catalog:      catalog,
		manager:      manager,
		hub:          hub,
		surface:      surface,
		publisher:    NewPublisher(surface, hub, logger),
		tokens:       tokens,
		logger:       logger,
		currentState: StateInitializing,
		shutdownChan: make(chan struct{}),
	}
}

// Start brings the whole system up: storage, device instances, the
// manager tick, the live feed and the REST API.
func (lm *LifecycleManager) Start() error {
	lm.logger.Info("Starting remote I/O gateway")

	lm.setState(StateInitializing)

	if lm.config.Database.Enabled() {
		store, err := storage.NewPostgresClient(lm.config.Database)
		if err != nil {
			lm.logger.Warn("Database unavailable, running without persistence",
				zap.Error(err))
		} else if err := store.EnsureSchema(context.Background()); err != nil {
			lm.logger.Warn("Failed to ensure database schema", zap.Error(err))
			store.Close()
		} else {
			lm.store = store
		}
	}

	go lm.hub.Run()

	lm.loadDevices()

	lm.manager.Start()
	lm.publisher.Start()

	if err := lm.startRESTServer(); err != nil {
		lm.setState(StateError)
		return fmt.Errorf("failed to start REST API: %w", err)
	}

	lm.setState(StateRunning)

	lm.logger.Info("System started successfully",
		zap.Int("http_port", lm.config.Server.HTTPPort),
		zap.Int("devices", len(lm.manager.List())))

	return nil
}

// loadDevices adds every configured instance: persisted devices first,
// then the static list from the config file. A failed add is logged
// and skipped; one broken device never blocks the rest.
func (lm *LifecycleManager) loadDevices() {
	configs := make([]types.InstanceConfig, 0)

	if lm.store != nil {
		persisted, err := lm.store.LoadAllDevices(context.Background())
		if err != nil {
			lm.logger.Warn("Failed to load devices from database", zap.Error(err))
		} else {
			lm.logger.Info("Loading devices from database",
				zap.Int("count", len(persisted)))
			configs = append(configs, persisted...)
		}
	}

	configs = append(configs, lm.config.Devices...)

	for _, cfg := range configs {
		if _, err := lm.manager.Add(cfg); err != nil {
			lm.logger.Error("Failed to add device",
				zap.String("device", cfg.Name),
				zap.Error(err))
		}
	}
}

func (lm *LifecycleManager) startRESTServer() error {
	lm.restServer = rest.NewServer(lm.config, lm, lm.logger, lm.hub, lm.tokens)
	return lm.restServer.Start()
}

// Shutdown gracefully shuts down the system
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")

		lm.setState(StateStopping)

		shutdownErr = lm.gracefulShutdown(ctx)

		lm.setState(StateStopped)
		close(lm.shutdownChan)
	})

	return shutdownErr
}

func (lm *LifecycleManager) gracefulShutdown(ctx context.Context) error {
	lm.publisher.Stop()
	lm.manager.Stop()

	if lm.restServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := lm.restServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("rest api shutdown failed: %w", err)
		}
	}

	if lm.store != nil {
		lm.store.Close()
	}

	lm.logger.Info("Graceful shutdown completed")
	return nil
}

// Done is closed once shutdown has completed.
func (lm *LifecycleManager) Done() <-chan struct{} {
	return lm.shutdownChan
}

func (lm *LifecycleManager) setState(state SystemState) {
	lm.stateMu.Lock()
	if err := ValidateTransition(lm.currentState, state); err != nil && lm.currentState != state {
		lm.logger.Warn("Forcing state transition", zap.Error(err))
	}
	lm.currentState = state
	lm.stateMu.Unlock()

	lm.hub.Broadcast(websocket.NewSystemStatusMessage(state.String()))
}

// GetCurrentStatus returns current system status (Interface implementation)
func (lm *LifecycleManager) GetCurrentStatus() interfaces.SystemStatus {
	lm.stateMu.RLock()
	state := lm.currentState
	lm.stateMu.RUnlock()

	statuses := lm.manager.Statuses()
	connected, faulted := 0, 0
	for _, status := range statuses {
		if status.Connected {
			connected++
		}
		if status.State == gateway.StateFaulted {
			faulted++
		}
	}

	return interfaces.SystemStatus{
		State:            state.String(),
		DeviceCount:      len(statuses),
		ConnectedDevices: connected,
		FaultedDevices:   faulted,
	}
}

// Gateway returns the device manager
func (lm *LifecycleManager) Gateway() *gateway.Manager {
	return lm.manager
}

// Storage returns the storage client, nil when persistence is disabled
func (lm *LifecycleManager) Storage() *storage.PostgresClient {
	return lm.store
}

// Config returns the configuration
func (lm *LifecycleManager) Config() *config.Config {
	return lm.config
}

// Catalog returns the model profile catalog
func (lm *LifecycleManager) Catalog() *devices.Catalog {
	return lm.catalog
}
