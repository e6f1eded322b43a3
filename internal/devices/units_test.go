package devices

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangeByCode(t *testing.T) {
	spec, ok := RangeByCode(0x32)
	require.True(t, ok)
	assert.Equal(t, "V", spec.Unit)
	assert.Equal(t, 0.0, spec.Min)
	assert.Equal(t, 10.0, spec.Max)
	assert.False(t, spec.Bipolar())

	spec, ok = RangeByCode(0x08)
	require.True(t, ok)
	assert.Equal(t, "V", spec.Unit)
	assert.Equal(t, -10.0, spec.Min)
	assert.Equal(t, 10.0, spec.Max)
	assert.True(t, spec.Bipolar())

	_, ok = RangeByCode(0xFF)
	assert.False(t, ok)
}

func TestParseRangeTableRejectsBadCodes(t *testing.T) {
	_, err := parseRangeTable([]byte(`"zz": { unit: "V", min: 0, max: 10 }`))
	assert.Error(t, err)
}
