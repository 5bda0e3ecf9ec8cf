package models

import "time"

// Reading is a single sensor observation for a location.
type Reading struct {
	Location    string    `json:"location"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature int       `json:"temperature"` // °C
	Humidity    int       `json:"humidity"`    // %
}
