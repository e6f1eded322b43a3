package gateway

import (
	"errors"
	"sync"

	"github.com/openremoteio/remoteio/internal/driver"
	"github.com/openremoteio/remoteio/internal/types"
	"go.uber.org/zap"
)

var errFake = errors.New("fake transport failure")

// fakeDriver scripts device behavior for gateway tests and counts the
// driver calls the gateway makes.
type fakeDriver struct {
	mu sync.Mutex

	model  uint16
	counts map[types.ChannelKind]int
	masks  map[types.ChannelKind][]bool

	failConnect   bool
	failRead      bool
	failWrite     bool
	failReadAll   bool
	failRegisters bool

	connects int
	reads    int
	writes   int
}

func newFakeDriver(model uint16, counts map[types.ChannelKind]int) *fakeDriver {
	return &fakeDriver{
		model:  model,
		counts: counts,
		masks:  make(map[types.ChannelKind][]bool),
	}
}

func (f *fakeDriver) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.failConnect {
		return errFake
	}
	return nil
}

func (f *fakeDriver) Close() error { return nil }

func (f *fakeDriver) ModelCode() uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.model
}

func (f *fakeDriver) ModelLabel() string { return "FAKE-7000" }
func (f *fakeDriver) Describe() error    { return nil }

func (f *fakeDriver) ChannelCount(kind types.ChannelKind) int {
	return f.counts[kind]
}

func (f *fakeDriver) ChannelMask(kind types.ChannelKind, index int) bool {
	masks := f.masks[kind]
	if index < len(masks) {
		return masks[index]
	}
	return true
}

func (f *fakeDriver) ChannelUnit(types.ChannelKind, int) string { return "V" }

func (f *fakeDriver) ChannelRange(types.ChannelKind, int) (float64, float64) {
	return 0, 10
}

func (f *fakeDriver) ReadChannel(kind types.ChannelKind, index int) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.failRead {
		return 0, errFake
	}
	return 5, nil
}

func (f *fakeDriver) WriteChannel(kind types.ChannelKind, index int, value float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.failWrite {
		return errFake
	}
	return nil
}

func (f *fakeDriver) ReadAll(kind types.ChannelKind) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReadAll {
		return nil, errFake
	}
	out := make([]float64, f.counts[kind])
	for i := range out {
		out[i] = 5
	}
	return out, nil
}

func (f *fakeDriver) ReadRegisters(start, count uint16) ([]uint16, error) {
	if f.failRegisters {
		return nil, errFake
	}
	return make([]uint16, count), nil
}

func (f *fakeDriver) WriteRegisters(start uint16, values []uint16) error {
	if f.failRegisters {
		return errFake
	}
	return nil
}

func (f *fakeDriver) callCounts() (connects, reads, writes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.reads, f.writes
}

// recordingSurface captures registrations for assertions.
type recordingSurface struct {
	mu         sync.Mutex
	channels   map[string]types.ChannelDescriptor
	aggregates map[string]types.AggregateDescriptor
	faults     []string
	running    int
}

func newRecordingSurface() *recordingSurface {
	return &recordingSurface{
		channels:   make(map[string]types.ChannelDescriptor),
		aggregates: make(map[string]types.AggregateDescriptor),
	}
}

func (s *recordingSurface) RegisterChannel(device string, desc types.ChannelDescriptor, read ReadFunc, write WriteFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[device+"/"+desc.Name] = desc
	return nil
}

func (s *recordingSurface) RegisterAggregate(device string, desc types.AggregateDescriptor, read AggregateReadFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregates[device+"/"+desc.Name] = desc
	return nil
}

func (s *recordingSurface) UnregisterChannel(device, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, device+"/"+name)
	delete(s.aggregates, device+"/"+name)
	return nil
}

func (s *recordingSurface) OnInit(string) {}

func (s *recordingSurface) OnRunning(string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running++
}

func (s *recordingSurface) OnFault(device, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, message)
}

func (s *recordingSurface) channelNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.channels))
	for name := range s.channels {
		names = append(names, name)
	}
	return names
}

func staticFactory(fd *fakeDriver) DriverFactory {
	return func(types.InstanceConfig) driver.Driver { return fd }
}

func testManager(fd *fakeDriver, surface Surface) *Manager {
	return NewManager(staticFactory(fd), surface, ManagerConfig{}, zap.NewNop())
}
