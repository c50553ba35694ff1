// Package prosim binds the ProSim737 SDK: connection lifecycle, the dataref
// registry and per-dataref activations with typed accessors.
package prosim

import (
	"math"
	"time"
)

// MaxInterval is the longest polling interval the SDK accepts; intervals are
// passed to it as 32-bit milliseconds.
const MaxInterval = time.Duration(math.MaxInt32) * time.Millisecond

// SDK is the vendor surface the binding delegates to.
// Implementations own their threads; handlers and change callbacks may be
// invoked from any goroutine.
type SDK interface {
	// SetHandlers registers the connect/disconnect callbacks.
	SetHandlers(h Handlers)
	// Connect opens the link to the simulator host. When synchronous is true
	// it returns once the link is up and OnConnect has fired.
	Connect(host string, synchronous bool) error
	// Disconnect closes the link.
	Disconnect() error
	// DataRefDescriptions lists every dataref the simulator exposes.
	DataRefDescriptions() ([]Description, error)
	// Subscribe requests a live handle for a dataref. The simulator sends the
	// value every interval; an interval of zero never sends (write-only).
	Subscribe(name string, interval time.Duration, onChange func(value any)) (Subscription, error)
	// LicensingInfo reports the licence the simulator runs under.
	LicensingInfo() (LicenseInfo, error)
}

// Subscription is a live dataref handle obtained from the SDK.
type Subscription interface {
	Value() (any, error)
	SetValue(v any) error
	Close() error
}

// Handlers are the connection callbacks given to the SDK.
type Handlers struct {
	OnConnect    func()
	OnDisconnect func()
}

// Description is a dataref as reported by the SDK, before type parsing.
type Description struct {
	Name        string
	Description string
	CanRead     bool
	CanWrite    bool
	DataType    string
	DataUnit    string
}

// LicenseInfo mirrors the SDK licensing record.
type LicenseInfo struct {
	Mode     string   `json:"mode"`
	Features []string `json:"features"`
	Licensee string   `json:"licensee"`
}
