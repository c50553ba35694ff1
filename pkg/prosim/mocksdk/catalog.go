package mocksdk

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Entry is a dataref served by the mock simulator.
type Entry struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	CanRead     bool    `yaml:"can_read"`
	CanWrite    bool    `yaml:"can_write"`
	DataType    string  `yaml:"data_type"`
	Unit        string  `yaml:"unit"`
	Value       any     `yaml:"value"`
	Drift       float64 `yaml:"drift"` // max random step per tick for numeric read-only values
}

type catalogFile struct {
	DataRefs []Entry `yaml:"datarefs"`
}

// LoadCatalog reads catalog entries from a YAML file.
func LoadCatalog(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	seen := make(map[string]bool, len(f.DataRefs))
	for _, e := range f.DataRefs {
		if e.Name == "" {
			return nil, fmt.Errorf("catalog entry without name")
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("duplicate catalog entry %q", e.Name)
		}
		seen[e.Name] = true
	}
	return f.DataRefs, nil
}

// DefaultCatalog returns a small 737 cockpit catalog.
func DefaultCatalog() []Entry {
	return []Entry{
		{
			Name:        "aircraft.engines.1.thrust",
			Description: "Engine 1 thrust",
			CanRead:     true,
			DataType:    "System.Double",
			Unit:        "lbs",
			Value:       2450.0,
			Drift:       25,
		},
		{
			Name:        "aircraft.engines.2.thrust",
			Description: "Engine 2 thrust",
			CanRead:     true,
			DataType:    "System.Double",
			Unit:        "lbs",
			Value:       2450.0,
			Drift:       25,
		},
		{
			Name:        "aircraft.altitude",
			Description: "Pressure altitude",
			CanRead:     true,
			DataType:    "System.Double",
			Unit:        "ft",
			Value:       285.0,
		},
		{
			Name:        "aircraft.heading",
			Description: "Magnetic heading",
			CanRead:     true,
			DataType:    "System.Double",
			Unit:        "deg",
			Value:       0.0,
		},
		{
			Name:        "system.switches.S_MIP_ISFD_APP",
			Description: "ISFD APP button",
			CanRead:     true,
			CanWrite:    true,
			DataType:    "System.Int32",
			Unit:        "",
			Value:       int32(0),
		},
		{
			Name:        "system.switches.S_OH_NAV_LIGHTS",
			Description: "Navigation lights switch",
			CanRead:     true,
			CanWrite:    true,
			DataType:    "System.Int32",
			Value:       int32(0),
		},
		{
			Name:        "system.gates.B_PARKING_BRAKE",
			Description: "Parking brake set",
			CanRead:     true,
			DataType:    "System.Boolean",
			Value:       true,
		},
		{
			Name:        "aircraft.registration",
			Description: "Aircraft registration",
			CanRead:     true,
			CanWrite:    true,
			DataType:    "System.String",
			Value:       "N737PS",
		},
	}
}
