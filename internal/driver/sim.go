package driver

import (
	"math"
	"sync"
	"time"

	"github.com/openremoteio/remoteio/internal/devices"
	"github.com/openremoteio/remoteio/internal/types"
)

// Simulator is an in-process device used for emulated instances and
// tests. It honors the same contract as the TCP driver: ModelCode
// returns 0 until Connect, analog inputs drift on a slow sine so live
// feeds show movement, outputs retain what was written.
type Simulator struct {
	mu    sync.Mutex
	model *types.ModelDefinition
	open  bool
	start time.Time

	masks   map[types.ChannelKind][]bool
	ranges  map[types.ChannelKind][]devices.RangeSpec
	analog  map[types.ChannelKind][]float64
	digital map[types.ChannelKind][]bool

	// registers backs ReadRegisters/WriteRegisters for raw access.
	registers map[uint16]uint16

	// failing forces every transport operation to error, for tests.
	failing bool
}

// NewSimulator builds a simulator for the given model profile. Analog
// channels default to the 0..10 V range and enabled masks.
func NewSimulator(model *types.ModelDefinition) *Simulator {
	s := &Simulator{
		model:     model,
		start:     time.Now(),
		masks:     make(map[types.ChannelKind][]bool),
		ranges:    make(map[types.ChannelKind][]devices.RangeSpec),
		analog:    make(map[types.ChannelKind][]float64),
		digital:   make(map[types.ChannelKind][]bool),
		registers: make(map[uint16]uint16),
	}

	volts, _ := devices.RangeByCode(0x32)
	for _, kind := range types.Kinds() {
		count := model.Bank(kind).Count
		masks := make([]bool, count)
		ranges := make([]devices.RangeSpec, count)
		for i := range masks {
			masks[i] = true
			ranges[i] = volts
		}
		s.masks[kind] = masks
		s.ranges[kind] = ranges
		if kind.Analog() {
			s.analog[kind] = make([]float64, count)
		} else {
			s.digital[kind] = make([]bool, count)
		}
	}

	if code, err := model.Code(); err == nil {
		s.registers[modelNameRegister] = code
	}

	return s
}

func (s *Simulator) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return ErrNotConnected
	}
	s.open = true
	return nil
}

func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

func (s *Simulator) ModelCode() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || s.failing {
		return 0
	}
	return s.registers[modelNameRegister]
}

func (s *Simulator) ModelLabel() string {
	return s.model.Label
}

func (s *Simulator) Describe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || s.failing {
		return ErrNotConnected
	}
	return nil
}

func (s *Simulator) ChannelCount(kind types.ChannelKind) int {
	return s.model.Bank(kind).Count
}

func (s *Simulator) ChannelMask(kind types.ChannelKind, index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	masks := s.masks[kind]
	if index < 0 || index >= len(masks) {
		return false
	}
	return masks[index]
}

func (s *Simulator) ChannelUnit(kind types.ChannelKind, index int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ranges := s.ranges[kind]
	if index < 0 || index >= len(ranges) {
		return ""
	}
	return ranges[index].Unit
}

func (s *Simulator) ChannelRange(kind types.ChannelKind, index int) (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ranges := s.ranges[kind]
	if index < 0 || index >= len(ranges) {
		return 0, 0
	}
	return ranges[index].Min, ranges[index].Max
}

func (s *Simulator) ReadChannel(kind types.ChannelKind, index int) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || s.failing {
		return 0, ErrNotConnected
	}
	if index < 0 || index >= s.model.Bank(kind).Count {
		return 0, ErrNotConnected
	}
	return s.valueLocked(kind, index), nil
}

func (s *Simulator) WriteChannel(kind types.ChannelKind, index int, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || s.failing {
		return ErrNotConnected
	}
	if index < 0 || index >= s.model.Bank(kind).Count {
		return ErrNotConnected
	}

	switch kind {
	case types.KindAnalogOutput:
		s.analog[kind][index] = value
		return nil
	case types.KindDigitalOutput:
		s.digital[kind][index] = value != 0
		return nil
	}
	return ErrNotWritable
}

func (s *Simulator) ReadAll(kind types.ChannelKind) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || s.failing {
		return nil, ErrNotConnected
	}
	count := s.model.Bank(kind).Count
	values := make([]float64, count)
	for i := range values {
		values[i] = s.valueLocked(kind, i)
	}
	return values, nil
}

func (s *Simulator) valueLocked(kind types.ChannelKind, index int) float64 {
	switch kind {
	case types.KindAnalogInput:
		// A slow sine per channel, phase-shifted so channels differ.
		spec := s.ranges[kind][index]
		elapsed := time.Since(s.start).Seconds()
		phase := elapsed/30.0*2*math.Pi + float64(index)
		mid := (spec.Min + spec.Max) / 2
		amp := (spec.Max - spec.Min) / 4
		return mid + amp*math.Sin(phase)
	case types.KindAnalogOutput:
		return s.analog[kind][index]
	default:
		if s.digital[kind][index] {
			return 1
		}
		return 0
	}
}

func (s *Simulator) ReadRegisters(start, count uint16) ([]uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || s.failing {
		return nil, ErrNotConnected
	}
	values := make([]uint16, count)
	for i := range values {
		values[i] = s.registers[start+uint16(i)]
	}
	return values, nil
}

func (s *Simulator) WriteRegisters(start uint16, values []uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || s.failing {
		return ErrNotConnected
	}
	for i, v := range values {
		s.registers[start+uint16(i)] = v
	}
	return nil
}

// SetFailing toggles forced transport failures.
func (s *Simulator) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

// SetMask overrides a channel's enable mask.
func (s *Simulator) SetMask(kind types.ChannelKind, index int, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if masks := s.masks[kind]; index >= 0 && index < len(masks) {
		masks[index] = enabled
	}
}

// SetDigitalInput drives a simulated digital input.
func (s *Simulator) SetDigitalInput(index int, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inputs := s.digital[types.KindDigitalInput]; index >= 0 && index < len(inputs) {
		inputs[index] = on
	}
}
