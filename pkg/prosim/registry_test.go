package prosim

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_LookupUnknown(t *testing.T) {
	r := NewRegistry()
	r.Replace([]Descriptor{{Name: "aircraft.altitude"}})

	_, err := r.Lookup("aircraft.speed")
	assert.True(t, errors.Is(err, ErrUnknownDataRef))
	assert.False(t, r.Has("aircraft.speed"))

	d, err := r.Lookup("aircraft.altitude")
	require.NoError(t, err)
	assert.Equal(t, "aircraft.altitude", d.Name)
}

func TestRegistry_ReplaceDiscardsPriorContents(t *testing.T) {
	r := NewRegistry()
	r.Replace([]Descriptor{{Name: "a"}, {Name: "b"}})
	require.NoError(t, r.setActivation("a", true, 100*time.Millisecond))

	r.Replace([]Descriptor{{Name: "b"}, {Name: "c"}})

	assert.Equal(t, 2, r.Len())
	assert.False(t, r.Has("a"))

	names := []string{}
	for _, d := range r.List() {
		names = append(names, d.Name)
		assert.False(t, d.Active, "%s should be inactive after rebuild", d.Name)
	}
	assert.Equal(t, []string{"b", "c"}, names)

	r.Clear()
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_LookupReturnsCopy(t *testing.T) {
	r := NewRegistry()
	r.Replace([]Descriptor{{Name: "a"}})

	d, _ := r.Lookup("a")
	d.Active = true

	again, _ := r.Lookup("a")
	assert.False(t, again.Active)
}

func TestRegistry_SetActivation(t *testing.T) {
	r := NewRegistry()
	r.Replace([]Descriptor{{Name: "a"}})

	require.NoError(t, r.setActivation("a", true, 250*time.Millisecond))
	d, _ := r.Lookup("a")
	assert.True(t, d.Active)
	assert.Equal(t, 250*time.Millisecond, d.Interval)

	assert.True(t, errors.Is(r.setActivation("missing", true, 0), ErrUnknownDataRef))
}

func TestNewDescriptor(t *testing.T) {
	d := NewDescriptor(Description{
		Name:        "system.switches.S_MIP_ISFD_APP",
		Description: "ISFD APP",
		CanRead:     true,
		CanWrite:    true,
		DataType:    "System.Int32",
		DataUnit:    "",
	})
	assert.Equal(t, TypeInt32, d.Type)
	assert.True(t, d.CanWrite)
	assert.False(t, d.Active)
}

func TestDescriptor_JSONKeys(t *testing.T) {
	d := Descriptor{
		Name:     "aircraft.engines.1.thrust",
		CanRead:  true,
		Type:     TypeFloat64,
		Unit:     "lbs",
		Active:   true,
		Interval: 100 * time.Millisecond,
	}
	data, err := json.Marshal(d)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "float64", raw["data_type"])
	assert.Equal(t, "lbs", raw["data_unit"])
	assert.Equal(t, true, raw["read_access"])
	assert.Equal(t, false, raw["write_access"])
	assert.Equal(t, float64(100), raw["interval"])

	var back Descriptor
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, d, back)
}
