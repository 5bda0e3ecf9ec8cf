package models

import "time"

// LocationSettings are the runtime-adjustable control settings of a location.
type LocationSettings struct {
	Location           string    `json:"location"`
	DesiredTemperature int       `json:"desired_temperature"`
	Enabled            bool      `json:"enabled"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// LocationSnapshot is a point-in-time copy of a location's control state.
type LocationSnapshot struct {
	Location           string      `json:"location"`
	HeaterID           string      `json:"heater_id"`
	DesiredTemperature int         `json:"desired_temperature"`
	Enabled            bool        `json:"enabled"`
	HeaterState        HeaterState `json:"heater_state"`
	LastReading        *Reading    `json:"last_reading,omitempty"`
	LastTransitionAt   time.Time   `json:"last_transition_at,omitempty"`
	Divergent          bool        `json:"divergent"`
}

// BrokerStatus describes the MQTT session as seen by the connection supervisor.
type BrokerStatus struct {
	Connected       bool      `json:"connected"`
	LastConnectedAt time.Time `json:"last_connected_at,omitempty"`
	Reconnects      int       `json:"reconnects"`
	LastError       string    `json:"last_error,omitempty"`
}

// HubState is the snapshot served to operators.
type HubState struct {
	Broker    BrokerStatus       `json:"broker"`
	Locations []LocationSnapshot `json:"locations"`
	UpdatedAt time.Time          `json:"updated_at"`
}
