package service

import "paletten_hub/internal/models"

// Valid reading and setpoint range in °C.
const (
	MinTemperature = -50
	MaxTemperature = 100
)

// Decide applies the hysteresis rule to the commanded state for reading t,
// setpoint d and margin m. It returns the next state and whether it differs.
//
//	Off/Unknown and t < d-m  -> On
//	On/Unknown  and t > d+m  -> Off
//
// Inside the band nothing changes, so an Unknown heater stays Unknown until
// the temperature leaves it.
func Decide(current models.HeaterState, t, d, m int) (models.HeaterState, bool) {
	switch {
	case t < d-m && current != models.HeaterOn:
		return models.HeaterOn, true
	case t > d+m && current != models.HeaterOff:
		return models.HeaterOff, true
	default:
		return current, false
	}
}
