package driver

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/goburrow/modbus"
	"github.com/openremoteio/remoteio/internal/devices"
	"github.com/openremoteio/remoteio/internal/types"
	"go.uber.org/zap"
)

const (
	defaultPort    = "502"
	defaultTimeout = 2 * time.Second

	// modelNameRegister holds the hex model code, e.g. 0x7026.
	modelNameRegister = 559
)

// ET7000 talks Modbus TCP to an ICP DAS ET-7000 series module. Channel
// layout comes from the model profile resolved during Describe; raw
// analog counts are converted to engineering units via the per-channel
// range codes read from the device.
type ET7000 struct {
	address string
	handler *modbus.TCPClientHandler
	client  modbus.Client
	catalog *devices.Catalog
	logger  *zap.Logger

	model  *types.ModelDefinition
	masks  map[types.ChannelKind][]bool
	ranges map[types.ChannelKind][]devices.RangeSpec
}

func NewET7000(address string, catalog *devices.Catalog, logger *zap.Logger) *ET7000 {
	if !strings.Contains(address, ":") {
		address = address + ":" + defaultPort
	}

	handler := modbus.NewTCPClientHandler(address)
	handler.Timeout = defaultTimeout

	return &ET7000{
		address: address,
		handler: handler,
		client:  modbus.NewClient(handler),
		catalog: catalog,
		logger:  logger,
		masks:   make(map[types.ChannelKind][]bool),
		ranges:  make(map[types.ChannelKind][]devices.RangeSpec),
	}
}

func (d *ET7000) Connect() error {
	if err := d.handler.Connect(); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", d.address, err)
	}
	return nil
}

func (d *ET7000) Close() error {
	// Close on an already-closed handler is harmless.
	return d.handler.Close()
}

// ModelCode queries the module name register. Any transport error maps
// to 0, the "not yet known" sentinel, so callers can keep polling while
// the module reboots.
func (d *ET7000) ModelCode() uint16 {
	resp, err := d.client.ReadHoldingRegisters(modelNameRegister, 1)
	if err != nil || len(resp) < 2 {
		return 0
	}
	return binary.BigEndian.Uint16(resp)
}

func (d *ET7000) ModelLabel() string {
	if d.model == nil {
		return ""
	}
	return d.model.Label
}

// Describe resolves the model profile and loads per-channel metadata:
// enable masks for analog banks and range codes for unit conversion.
func (d *ET7000) Describe() error {
	code := d.ModelCode()
	if code == 0 {
		return fmt.Errorf("%w: module did not report a model code", ErrNotConnected)
	}

	model, ok := d.catalog.ByCode(code)
	if !ok {
		return fmt.Errorf("%w: %04X", ErrUnsupportedModel, code)
	}
	d.model = model

	for _, kind := range types.Kinds() {
		bank := model.Bank(kind)
		if bank.Count == 0 {
			continue
		}
		if err := d.describeBank(kind, bank); err != nil {
			d.model = nil
			return fmt.Errorf("failed to describe %s bank: %w", kind, err)
		}
	}

	d.logger.Debug("Module described",
		zap.String("address", d.address),
		zap.String("model", model.Label))

	return nil
}

func (d *ET7000) describeBank(kind types.ChannelKind, bank types.BankDefinition) error {
	masks := make([]bool, bank.Count)
	for i := range masks {
		masks[i] = true
	}

	if kind.Analog() && bank.MaskAddress != nil {
		resp, err := d.client.ReadCoils(*bank.MaskAddress, uint16(bank.Count))
		if err != nil {
			return fmt.Errorf("mask read failed: %w", err)
		}
		copy(masks, unpackBits(resp, bank.Count))
	}
	d.masks[kind] = masks

	ranges := make([]devices.RangeSpec, bank.Count)
	for i := range ranges {
		ranges[i] = passthroughRange
	}

	if kind.Analog() && bank.RangeAddress != nil {
		resp, err := d.client.ReadHoldingRegisters(*bank.RangeAddress, uint16(bank.Count))
		if err != nil {
			return fmt.Errorf("range code read failed: %w", err)
		}
		for i := 0; i < bank.Count && (i*2+1) < len(resp); i++ {
			code := binary.BigEndian.Uint16(resp[i*2:])
			spec, ok := devices.RangeByCode(code)
			if !ok {
				d.logger.Warn("Unknown range code, using raw counts",
					zap.String("channel", types.ChannelName(kind, i)),
					zap.Uint16("code", code))
				continue
			}
			ranges[i] = spec
		}
	}
	d.ranges[kind] = ranges

	return nil
}

func (d *ET7000) ChannelCount(kind types.ChannelKind) int {
	if d.model == nil {
		return 0
	}
	return d.model.Bank(kind).Count
}

func (d *ET7000) ChannelMask(kind types.ChannelKind, index int) bool {
	masks := d.masks[kind]
	if index < 0 || index >= len(masks) {
		return false
	}
	return masks[index]
}

func (d *ET7000) ChannelUnit(kind types.ChannelKind, index int) string {
	spec, ok := d.rangeSpec(kind, index)
	if !ok {
		return ""
	}
	return spec.Unit
}

func (d *ET7000) ChannelRange(kind types.ChannelKind, index int) (float64, float64) {
	spec, ok := d.rangeSpec(kind, index)
	if !ok {
		return 0, 0
	}
	return spec.Min, spec.Max
}

func (d *ET7000) rangeSpec(kind types.ChannelKind, index int) (devices.RangeSpec, bool) {
	ranges := d.ranges[kind]
	if index < 0 || index >= len(ranges) {
		return devices.RangeSpec{}, false
	}
	return ranges[index], true
}

func (d *ET7000) ReadChannel(kind types.ChannelKind, index int) (float64, error) {
	if d.model == nil {
		return 0, ErrNotConnected
	}
	bank := d.model.Bank(kind)
	if index < 0 || index >= bank.Count {
		return 0, fmt.Errorf("channel index %d out of range for %s", index, kind)
	}
	addr := bank.ValueAddress + uint16(index)

	switch kind {
	case types.KindAnalogInput:
		resp, err := d.client.ReadInputRegisters(addr, 1)
		if err != nil {
			return 0, err
		}
		return rawToEng(binary.BigEndian.Uint16(resp), d.ranges[kind][index]), nil

	case types.KindAnalogOutput:
		resp, err := d.client.ReadHoldingRegisters(addr, 1)
		if err != nil {
			return 0, err
		}
		return rawToEng(binary.BigEndian.Uint16(resp), d.ranges[kind][index]), nil

	case types.KindDigitalInput:
		resp, err := d.client.ReadDiscreteInputs(addr, 1)
		if err != nil {
			return 0, err
		}
		return bitValue(resp, 0), nil

	case types.KindDigitalOutput:
		resp, err := d.client.ReadCoils(addr, 1)
		if err != nil {
			return 0, err
		}
		return bitValue(resp, 0), nil
	}

	return 0, fmt.Errorf("unknown channel kind: %s", kind)
}

func (d *ET7000) WriteChannel(kind types.ChannelKind, index int, value float64) error {
	if d.model == nil {
		return ErrNotConnected
	}
	bank := d.model.Bank(kind)
	if index < 0 || index >= bank.Count {
		return fmt.Errorf("channel index %d out of range for %s", index, kind)
	}
	addr := bank.ValueAddress + uint16(index)

	switch kind {
	case types.KindAnalogOutput:
		raw := engToRaw(value, d.ranges[kind][index])
		_, err := d.client.WriteSingleRegister(addr, raw)
		return err

	case types.KindDigitalOutput:
		var coil uint16
		if value != 0 {
			coil = 0xFF00
		}
		_, err := d.client.WriteSingleCoil(addr, coil)
		return err
	}

	return ErrNotWritable
}

func (d *ET7000) ReadAll(kind types.ChannelKind) ([]float64, error) {
	if d.model == nil {
		return nil, ErrNotConnected
	}
	bank := d.model.Bank(kind)
	if bank.Count == 0 {
		return nil, nil
	}

	switch kind {
	case types.KindAnalogInput, types.KindAnalogOutput:
		var resp []byte
		var err error
		if kind == types.KindAnalogInput {
			resp, err = d.client.ReadInputRegisters(bank.ValueAddress, uint16(bank.Count))
		} else {
			resp, err = d.client.ReadHoldingRegisters(bank.ValueAddress, uint16(bank.Count))
		}
		if err != nil {
			return nil, err
		}
		values := make([]float64, bank.Count)
		for i := 0; i < bank.Count && (i*2+1) < len(resp); i++ {
			values[i] = rawToEng(binary.BigEndian.Uint16(resp[i*2:]), d.ranges[kind][i])
		}
		return values, nil

	case types.KindDigitalInput, types.KindDigitalOutput:
		var resp []byte
		var err error
		if kind == types.KindDigitalInput {
			resp, err = d.client.ReadDiscreteInputs(bank.ValueAddress, uint16(bank.Count))
		} else {
			resp, err = d.client.ReadCoils(bank.ValueAddress, uint16(bank.Count))
		}
		if err != nil {
			return nil, err
		}
		values := make([]float64, bank.Count)
		for i, on := range unpackBits(resp, bank.Count) {
			if on {
				values[i] = 1
			}
		}
		return values, nil
	}

	return nil, fmt.Errorf("unknown channel kind: %s", kind)
}

func (d *ET7000) ReadRegisters(start, count uint16) ([]uint16, error) {
	resp, err := d.client.ReadHoldingRegisters(start, count)
	if err != nil {
		return nil, err
	}
	values := make([]uint16, count)
	for i := 0; i < int(count) && (i*2+1) < len(resp); i++ {
		values[i] = binary.BigEndian.Uint16(resp[i*2:])
	}
	return values, nil
}

func (d *ET7000) WriteRegisters(start uint16, values []uint16) error {
	data := make([]byte, len(values)*2)
	for i, v := range values {
		binary.BigEndian.PutUint16(data[i*2:], v)
	}
	_, err := d.client.WriteMultipleRegisters(start, uint16(len(values)), data)
	return err
}

// unpackBits expands a Modbus bit-packed response, LSB first.
func unpackBits(data []byte, count int) []bool {
	bits := make([]bool, count)
	for i := 0; i < count; i++ {
		byteIdx := i / 8
		if byteIdx >= len(data) {
			break
		}
		bits[i] = data[byteIdx]&(1<<(i%8)) != 0
	}
	return bits
}

func bitValue(data []byte, bit int) float64 {
	if len(data) > bit/8 && data[bit/8]&(1<<(bit%8)) != 0 {
		return 1
	}
	return 0
}
