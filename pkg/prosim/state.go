package prosim

import "time"

// State represents the connection state of the binding.
type State string

const (
	// StateDisconnected indicates no link to the simulator.
	StateDisconnected State = "disconnected"
	// StateConnecting indicates a connect call is in flight.
	StateConnecting State = "connecting"
	// StateConnected indicates a live link with a populated registry.
	StateConnected State = "connected"
)

// Change is a dataref value notification.
type Change struct {
	Name  string    `json:"name"`
	Value any       `json:"value"`
	Time  time.Time `json:"time"`
}

// ChangeFunc receives dataref change notifications.
type ChangeFunc func(Change)
