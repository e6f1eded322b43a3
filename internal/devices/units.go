package devices

import (
	"fmt"
	"strconv"
	"strings"

	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed units.yaml
var unitsYAML []byte

// RangeSpec maps an analog range code to its engineering unit and span.
type RangeSpec struct {
	Unit string  `yaml:"unit"`
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
}

// Bipolar reports whether the range is symmetric around zero, which
// selects the signed raw-count conversion.
func (r RangeSpec) Bipolar() bool {
	return r.Min < 0
}

var rangeTable map[uint16]RangeSpec

func init() {
	var err error
	rangeTable, err = parseRangeTable(unitsYAML)
	if err != nil {
		panic(fmt.Sprintf("devices: invalid embedded units table: %v", err))
	}
}

func parseRangeTable(data []byte) (map[uint16]RangeSpec, error) {
	var raw map[string]RangeSpec
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	table := make(map[uint16]RangeSpec, len(raw))
	for key, spec := range raw {
		code, err := strconv.ParseUint(strings.TrimPrefix(key, "0x"), 16, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid range code %q: %w", key, err)
		}
		table[uint16(code)] = spec
	}
	return table, nil
}

// RangeByCode looks up the range spec for a device-reported range code.
func RangeByCode(code uint16) (RangeSpec, bool) {
	spec, ok := rangeTable[code]
	return spec, ok
}
