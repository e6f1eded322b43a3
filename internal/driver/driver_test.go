package driver

import (
	"testing"

	"github.com/openremoteio/remoteio/internal/devices"
	"github.com/stretchr/testify/assert"
)

func TestRawToEngUnipolar(t *testing.T) {
	spec := devices.RangeSpec{Unit: "V", Min: 0, Max: 10}

	assert.InDelta(t, 0.0, rawToEng(0, spec), 1e-9)
	assert.InDelta(t, 10.0, rawToEng(65535, spec), 1e-9)
	assert.InDelta(t, 5.0, rawToEng(32768, spec), 0.001)
}

func TestRawToEngBipolar(t *testing.T) {
	spec := devices.RangeSpec{Unit: "V", Min: -10, Max: 10}

	// Signed interpretation: 0x8000 is the negative rail.
	assert.InDelta(t, -10.0, rawToEng(0x8000, spec), 1e-9)
	assert.InDelta(t, 10.0, rawToEng(0x7FFF, spec), 1e-9)
	assert.InDelta(t, 0.0, rawToEng(0, spec), 0.001)
}

func TestEngToRawRoundTrips(t *testing.T) {
	for _, spec := range []devices.RangeSpec{
		{Unit: "V", Min: 0, Max: 10},
		{Unit: "V", Min: -10, Max: 10},
		{Unit: "mA", Min: 4, Max: 20},
	} {
		for _, value := range []float64{spec.Min, (spec.Min + spec.Max) / 2, spec.Max} {
			raw := engToRaw(value, spec)
			assert.InDelta(t, value, rawToEng(raw, spec), (spec.Max-spec.Min)/1000,
				"range %s %g..%g value %g", spec.Unit, spec.Min, spec.Max, value)
		}
	}
}

func TestEngToRawClampsOutOfRange(t *testing.T) {
	spec := devices.RangeSpec{Unit: "V", Min: 0, Max: 10}

	assert.Equal(t, uint16(0), engToRaw(-3, spec))
	assert.Equal(t, uint16(65535), engToRaw(42, spec))
}

func TestEngToRawDegenerateRange(t *testing.T) {
	assert.Equal(t, uint16(0), engToRaw(5, devices.RangeSpec{Min: 10, Max: 10}))
}

func TestUnpackBits(t *testing.T) {
	// Modbus packs coil status LSB first.
	bits := unpackBits([]byte{0b00000101, 0b00000001}, 10)
	assert.Equal(t, []bool{true, false, true, false, false, false, false, false, true, false}, bits)

	// Short data yields false for the missing tail.
	bits = unpackBits([]byte{0xFF}, 10)
	assert.Equal(t, []bool{true, true, true, true, true, true, true, true, false, false}, bits)
}

func TestBitValue(t *testing.T) {
	data := []byte{0b00000010}
	assert.Equal(t, 0.0, bitValue(data, 0))
	assert.Equal(t, 1.0, bitValue(data, 1))
	assert.Equal(t, 0.0, bitValue(data, 9))
}
