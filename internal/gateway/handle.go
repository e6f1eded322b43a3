package gateway

import (
	"fmt"
	"time"

	"github.com/openremoteio/remoteio/internal/driver"
	"github.com/openremoteio/remoteio/internal/types"
	"go.uber.org/zap"
)

const (
	openWait     = 5 * time.Second
	openPollStep = 100 * time.Millisecond
)

// Handle couples an open driver transport with the device identity
// established during the handshake. The identity is immutable for the
// life of the handle; a changed device means a new handle.
type Handle struct {
	drv      driver.Driver
	identity types.DeviceIdentity
	closed   bool
}

// Open connects the driver and waits, bounded, for the device to report
// a non-zero model code. Modules answer 0 while rebooting, so the poll
// gives a freshly power-cycled device time to come up.
func Open(address string, drv driver.Driver, logger *zap.Logger) (*Handle, error) {
	if err := drv.Connect(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	var code uint16
	deadline := time.Now().Add(openWait)
	for {
		code = drv.ModelCode()
		if code != 0 {
			break
		}
		if time.Now().After(deadline) {
			_ = drv.Close()
			return nil, fmt.Errorf("%w: %s did not report a model code within %s",
				ErrUnreachable, address, openWait)
		}
		time.Sleep(openPollStep)
	}

	if err := drv.Describe(); err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("%w: %04X: %v", ErrUnknownModel, code, err)
	}

	identity := types.DeviceIdentity{
		Address:    address,
		ModelCode:  code,
		ModelLabel: drv.ModelLabel(),
	}

	logger.Info("Device handle opened",
		zap.String("address", address),
		zap.String("model", identity.CodeString()),
		zap.String("label", identity.ModelLabel))

	return &Handle{drv: drv, identity: identity}, nil
}

func (h *Handle) Identity() types.DeviceIdentity {
	return h.identity
}

// Close releases the transport. Safe to call more than once.
func (h *Handle) Close() {
	if h.closed {
		return
	}
	h.closed = true
	_ = h.drv.Close()
}

func (h *Handle) ChannelCount(kind types.ChannelKind) int {
	return h.drv.ChannelCount(kind)
}

func (h *Handle) ChannelMask(kind types.ChannelKind, index int) bool {
	return h.drv.ChannelMask(kind, index)
}

func (h *Handle) ChannelUnit(kind types.ChannelKind, index int) string {
	return h.drv.ChannelUnit(kind, index)
}

func (h *Handle) ChannelRange(kind types.ChannelKind, index int) (float64, float64) {
	return h.drv.ChannelRange(kind, index)
}

func (h *Handle) ReadChannel(kind types.ChannelKind, index int) (float64, error) {
	return h.drv.ReadChannel(kind, index)
}

func (h *Handle) WriteChannel(kind types.ChannelKind, index int, value float64) error {
	return h.drv.WriteChannel(kind, index, value)
}

func (h *Handle) ReadAll(kind types.ChannelKind) ([]float64, error) {
	return h.drv.ReadAll(kind)
}

func (h *Handle) ReadRegisters(start, count uint16) ([]uint16, error) {
	return h.drv.ReadRegisters(start, count)
}

func (h *Handle) WriteRegisters(start uint16, values []uint16) error {
	return h.drv.WriteRegisters(start, values)
}
