package types

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelName(t *testing.T) {
	assert.Equal(t, "ai00", ChannelName(KindAnalogInput, 0))
	assert.Equal(t, "ao07", ChannelName(KindAnalogOutput, 7))
	assert.Equal(t, "di15", ChannelName(KindDigitalInput, 15))
	assert.Equal(t, "do03", ChannelName(KindDigitalOutput, 3))
}

func TestAggregateName(t *testing.T) {
	assert.Equal(t, "all_ai", AggregateName(KindAnalogInput))
	assert.Equal(t, "all_do", AggregateName(KindDigitalOutput))
}

func TestParseChannelName(t *testing.T) {
	kind, index, err := ParseChannelName("ai07")
	require.NoError(t, err)
	assert.Equal(t, KindAnalogInput, kind)
	assert.Equal(t, 7, index)

	kind, index, err = ParseChannelName("do12")
	require.NoError(t, err)
	assert.Equal(t, KindDigitalOutput, kind)
	assert.Equal(t, 12, index)

	for _, bad := range []string{"", "ai", "xx00", "ai-1", "aiXY", "all_ai"} {
		_, _, err := ParseChannelName(bad)
		assert.Error(t, err, "expected %q to be rejected", bad)
	}
}

func TestKindPredicates(t *testing.T) {
	assert.True(t, KindAnalogInput.Analog())
	assert.True(t, KindAnalogOutput.Analog())
	assert.False(t, KindDigitalInput.Analog())

	assert.True(t, KindAnalogOutput.Writable())
	assert.True(t, KindDigitalOutput.Writable())
	assert.False(t, KindAnalogInput.Writable())
	assert.False(t, KindDigitalInput.Writable())
}

func TestJSONValueReplacesNaN(t *testing.T) {
	assert.Nil(t, JSONValue(math.NaN()))
	assert.Equal(t, 4.5, JSONValue(4.5))
	assert.Equal(t, true, JSONValue(true))

	// The sanitized value must survive encoding.
	data, err := json.Marshal(map[string]any{"value": JSONValue(math.NaN())})
	require.NoError(t, err)
	assert.JSONEq(t, `{"value": null}`, string(data))
}

func TestJSONAnalogKeepsShape(t *testing.T) {
	out := JSONAnalog([]float64{1.5, math.NaN(), 3.0})
	require.Len(t, out, 3)
	require.NotNil(t, out[0])
	assert.Equal(t, 1.5, *out[0])
	assert.Nil(t, out[1])
	require.NotNil(t, out[2])
	assert.Equal(t, 3.0, *out[2])

	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `[1.5, null, 3]`, string(data))

	assert.Nil(t, JSONAnalog(nil))
}

func TestReconnectTimeoutDefault(t *testing.T) {
	cfg := InstanceConfig{}
	assert.Equal(t, DefaultReconnectTimeoutMs, int(cfg.ReconnectTimeout().Milliseconds()))

	cfg.ReconnectTimeoutMs = 250
	assert.Equal(t, 250, int(cfg.ReconnectTimeout().Milliseconds()))
}

func TestModelDefinitionCode(t *testing.T) {
	def := ModelDefinition{Model: "7026"}
	code, err := def.Code()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x7026), code)

	def.Model = "xyz"
	_, err = def.Code()
	assert.Error(t, err)
}
