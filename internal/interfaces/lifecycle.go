package interfaces

import (
	"context"

	"github.com/openremoteio/remoteio/internal/config"
	"github.com/openremoteio/remoteio/internal/devices"
	"github.com/openremoteio/remoteio/internal/gateway"
	"github.com/openremoteio/remoteio/internal/storage"
)

// SystemStatus represents the current system state
type SystemStatus struct {
	State            string `json:"state"`
	DeviceCount      int    `json:"device_count"`
	ConnectedDevices int    `json:"connected_devices"`
	FaultedDevices   int    `json:"faulted_devices"`
}

type LifecycleManager interface {
	Config() *config.Config
	Storage() *storage.PostgresClient
	Gateway() *gateway.Manager
	Catalog() *devices.Catalog
	GetCurrentStatus() SystemStatus
	Shutdown(ctx context.Context) error
}
