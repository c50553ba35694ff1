package prosim

import "errors"

var (
	// ErrSDKLoad is returned when the vendor library cannot be loaded.
	ErrSDKLoad = errors.New("prosim sdk could not be loaded")
	// ErrUnknownDataRef is returned when a name is not in the registry.
	ErrUnknownDataRef = errors.New("unknown dataref")
	// ErrNotWritable is returned when writing a read-only dataref.
	ErrNotWritable = errors.New("dataref is not writable")
	// ErrTypeCoercion is returned when a value does not fit the dataref type.
	ErrTypeCoercion = errors.New("value does not match dataref type")
	// ErrNotConnected is returned when an action requires a live connection.
	ErrNotConnected = errors.New("simulator not connected")
	// ErrNotActive is returned when reading or writing a dataref that was not activated.
	ErrNotActive = errors.New("dataref not activated")
	// ErrInvalidInterval is returned for negative polling intervals and those above MaxInterval.
	ErrInvalidInterval = errors.New("invalid polling interval")
)
