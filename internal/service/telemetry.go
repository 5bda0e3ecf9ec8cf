package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"paletten_hub/internal/models"
)

var validate = validator.New()

// telemetryPayload is the JSON body published by sensors. Numbers may be
// fractional; they are rounded to whole degrees and percent.
type telemetryPayload struct {
	Temperature *float64 `json:"temperature" validate:"required,min=-50,max=100"`
	Humidity    *float64 `json:"humidity" validate:"required,min=0,max=100"`
	Timestamp   string   `json:"timestamp"`
	Location    string   `json:"location"`
}

// ParseReading decodes a telemetry payload. location is the name taken from
// the topic; when empty the payload must carry one. receivedAt stamps
// readings without their own timestamp.
func ParseReading(payload []byte, location string, receivedAt time.Time) (models.Reading, error) {
	var p telemetryPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return models.Reading{}, fmt.Errorf("%w: %v", ErrMalformedTelemetry, err)
	}
	if err := validate.Struct(p); err != nil {
		return models.Reading{}, fmt.Errorf("%w: %v", ErrMalformedTelemetry, err)
	}

	if location == "" {
		location = strings.TrimSpace(p.Location)
	}
	if location == "" {
		return models.Reading{}, fmt.Errorf("%w: missing location", ErrMalformedTelemetry)
	}

	ts := receivedAt
	if p.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, p.Timestamp)
		if err != nil {
			return models.Reading{}, fmt.Errorf("%w: timestamp: %v", ErrMalformedTelemetry, err)
		}
		ts = parsed
	}

	return models.Reading{
		Location:    location,
		Timestamp:   ts.UTC(),
		Temperature: int(math.Round(*p.Temperature)),
		Humidity:    int(math.Round(*p.Humidity)),
	}, nil
}

// ParseSetpoint decodes a plain numeric setpoint such as "21" or "20.5".
func ParseSetpoint(payload []byte) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: setpoint %q", ErrMalformedTelemetry, payload)
	}
	d := int(math.Round(f))
	if err := validateSetpoint(d); err != nil {
		return 0, err
	}
	return d, nil
}

// ParseAuto decodes "true"/"false" (and the other forms strconv accepts).
func ParseAuto(payload []byte) (bool, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(string(payload)))
	if err != nil {
		return false, fmt.Errorf("%w: auto %q", ErrMalformedTelemetry, payload)
	}
	return b, nil
}

func validateSetpoint(d int) error {
	if err := validate.Var(d, "min=-50,max=100"); err != nil {
		return fmt.Errorf("%w: got %d", ErrInvalidSetpoint, d)
	}
	return nil
}
