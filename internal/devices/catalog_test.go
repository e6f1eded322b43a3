package devices

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCatalogLoadsBuiltinProfiles(t *testing.T) {
	catalog, err := NewCatalog(nil, zap.NewNop())
	require.NoError(t, err)

	def, ok := catalog.ByCode(0x7026)
	require.True(t, ok)
	assert.Equal(t, "ET-7026", def.Label)
	assert.Equal(t, 6, def.AnalogInputs.Count)
	assert.Equal(t, 2, def.AnalogOutputs.Count)
	require.NotNil(t, def.AnalogInputs.MaskAddress)
	assert.Equal(t, uint16(595), *def.AnalogInputs.MaskAddress)
	require.NotNil(t, def.AnalogInputs.RangeAddress)
	assert.Equal(t, uint16(427), *def.AnalogInputs.RangeAddress)

	// Digital banks carry no mask.
	assert.Nil(t, def.DigitalInputs.MaskAddress)

	for _, model := range []string{"7018", "7026", "7044", "7060"} {
		_, ok := catalog.ByModel(model)
		assert.True(t, ok, "missing builtin profile %s", model)
	}
}

func TestCatalogModelsOrderedByCode(t *testing.T) {
	catalog, err := NewCatalog(nil, zap.NewNop())
	require.NoError(t, err)

	models := catalog.Models()
	require.NotEmpty(t, models)
	for i := 1; i < len(models); i++ {
		prev, err := models[i-1].Code()
		require.NoError(t, err)
		cur, err := models[i].Code()
		require.NoError(t, err)
		assert.Less(t, prev, cur)
	}
}

func TestCatalogUnknownCode(t *testing.T) {
	catalog, err := NewCatalog(nil, zap.NewNop())
	require.NoError(t, err)

	_, ok := catalog.ByCode(0xDEAD)
	assert.False(t, ok)
	_, ok = catalog.ByModel("9999")
	assert.False(t, ok)
}

func TestCatalogSearchPathOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	profile := `{
		"model": "7026",
		"label": "ET-7026 custom",
		"analog_inputs": {"count": 6, "value_address": 0},
		"analog_outputs": {"count": 2, "value_address": 0},
		"digital_inputs": {"count": 2, "value_address": 0},
		"digital_outputs": {"count": 2, "value_address": 0}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.json"), []byte(profile), 0o644))

	catalog, err := NewCatalog([]string{dir}, zap.NewNop())
	require.NoError(t, err)

	def, ok := catalog.ByCode(0x7026)
	require.True(t, ok)
	assert.Equal(t, "ET-7026 custom", def.Label)
}

func TestCatalogSkipsInvalidSearchPathProfile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"),
		[]byte(`{"model": "not-hex", "label": "x"}`), 0o644))

	catalog, err := NewCatalog([]string{dir}, zap.NewNop())
	require.NoError(t, err)

	// Built-ins still load.
	_, ok := catalog.ByCode(0x7026)
	assert.True(t, ok)
}

func TestValidatorRejectsMalformedProfiles(t *testing.T) {
	validator, err := NewValidator()
	require.NoError(t, err)

	cases := map[string]string{
		"missing banks":      `{"model": "7026", "label": "x"}`,
		"bad model code":     `{"model": "zzzz", "label": "x", "analog_inputs": {"count": 0}, "analog_outputs": {"count": 0}, "digital_inputs": {"count": 0}, "digital_outputs": {"count": 0}}`,
		"negative count":     `{"model": "7026", "label": "x", "analog_inputs": {"count": -1}, "analog_outputs": {"count": 0}, "digital_inputs": {"count": 0}, "digital_outputs": {"count": 0}}`,
		"unknown bank field": `{"model": "7026", "label": "x", "analog_inputs": {"count": 0, "bogus": 1}, "analog_outputs": {"count": 0}, "digital_inputs": {"count": 0}, "digital_outputs": {"count": 0}}`,
		"not json":           `{`,
	}
	for name, data := range cases {
		assert.Error(t, validator.ValidateProfile([]byte(data)), name)
	}

	valid := `{"model": "7026", "label": "x", "analog_inputs": {"count": 0}, "analog_outputs": {"count": 0}, "digital_inputs": {"count": 0}, "digital_outputs": {"count": 0}}`
	assert.NoError(t, validator.ValidateProfile([]byte(valid)))
}
