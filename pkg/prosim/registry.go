package prosim

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Descriptor is the local mirror of a vendor dataref description.
type Descriptor struct {
	Name        string
	Description string
	CanRead     bool
	CanWrite    bool
	Type        DataType
	Unit        string
	Active      bool
	Interval    time.Duration
}

type descriptorJSON struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	CanRead     bool     `json:"read_access"`
	CanWrite    bool     `json:"write_access"`
	Type        DataType `json:"data_type"`
	Unit        string   `json:"data_unit"`
	Active      bool     `json:"active"`
	IntervalMs  int64    `json:"interval"`
}

// MarshalJSON encodes the descriptor with the interval in milliseconds.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(descriptorJSON{
		Name:        d.Name,
		Description: d.Description,
		CanRead:     d.CanRead,
		CanWrite:    d.CanWrite,
		Type:        d.Type,
		Unit:        d.Unit,
		Active:      d.Active,
		IntervalMs:  d.Interval.Milliseconds(),
	})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (d *Descriptor) UnmarshalJSON(b []byte) error {
	var raw descriptorJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*d = Descriptor{
		Name:        raw.Name,
		Description: raw.Description,
		CanRead:     raw.CanRead,
		CanWrite:    raw.CanWrite,
		Type:        raw.Type,
		Unit:        raw.Unit,
		Active:      raw.Active,
		Interval:    time.Duration(raw.IntervalMs) * time.Millisecond,
	}
	return nil
}

// NewDescriptor converts a vendor description into an inactive descriptor.
func NewDescriptor(d Description) Descriptor {
	return Descriptor{
		Name:        d.Name,
		Description: d.Description,
		CanRead:     d.CanRead,
		CanWrite:    d.CanWrite,
		Type:        ParseDataType(d.DataType),
		Unit:        d.DataUnit,
	}
}

// Registry maps dataref names to descriptors.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Descriptor)}
}

// Replace discards every entry and loads descs in their place.
// A later duplicate name wins.
func (r *Registry) Replace(descs []Descriptor) {
	entries := make(map[string]*Descriptor, len(descs))
	for i := range descs {
		d := descs[i]
		entries[d.Name] = &d
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = entries
}

// Lookup returns a copy of the named descriptor.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entries[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownDataRef, name)
	}
	return *d, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// List returns all descriptors sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	out := make([]Descriptor, 0, len(r.entries))
	for _, d := range r.entries {
		out = append(out, *d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered datarefs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear removes every entry.
func (r *Registry) Clear() {
	r.Replace(nil)
}

// setActivation updates the activation state of a registered dataref in place.
func (r *Registry) setActivation(name string, active bool, interval time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDataRef, name)
	}
	d.Active = active
	d.Interval = interval
	return nil
}
