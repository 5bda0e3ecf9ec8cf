package service

import "errors"

var (
	// ErrMalformedTelemetry marks a message that could not be decoded into a reading.
	ErrMalformedTelemetry = errors.New("malformed telemetry")
	// ErrUnconfiguredLocation is returned for locations missing from the configuration.
	ErrUnconfiguredLocation = errors.New("unconfigured location")
	ErrStorage              = errors.New("history storage failure")
	ErrDispatchFailed       = errors.New("heater command dispatch failed")
	ErrInvalidSetpoint      = errors.New("invalid setpoint: must be between -50 and 100")
)
