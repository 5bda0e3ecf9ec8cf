package models

import "time"

// HeaterState is the commanded state of a heater relay.
type HeaterState string

const (
	HeaterUnknown HeaterState = "unknown" // nothing commanded since startup
	HeaterOff     HeaterState = "off"
	HeaterOn      HeaterState = "on"
)

// IsActive reports whether the state means the relay is closed.
func (s HeaterState) IsActive() bool { return s == HeaterOn }

// HeaterStateOf maps a boolean relay state to a HeaterState.
func HeaterStateOf(active bool) HeaterState {
	if active {
		return HeaterOn
	}
	return HeaterOff
}

// HeaterCommand asks a Shelly relay to switch on or off.
type HeaterCommand struct {
	ID        string    `json:"id"` // correlation id, not persisted
	ShellyID  string    `json:"shelly_id"`
	IsActive  bool      `json:"is_active"`
	Timestamp time.Time `json:"timestamp"`
}

// HeaterEvent is a persisted heater state transition.
type HeaterEvent struct {
	ShellyID  string    `json:"shelly_id"`
	IsActive  bool      `json:"is_active"`
	Timestamp time.Time `json:"timestamp"`
}
