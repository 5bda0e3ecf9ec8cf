package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"paletten_hub/internal/logger"
	"paletten_hub/internal/mqtt"
)

var testIngestConfig = IngestConfig{
	ReadingsFilter: "sensors/+/telemetry",
	SetpointFilter: "sensors/+/setpoint",
	AutoFilter:     "sensors/+/auto",
}

func msg(topic, payload string) mqtt.Message {
	return mqtt.Message{Topic: topic, Payload: []byte(payload), ReceivedAt: time.Date(2026, 1, 10, 6, 0, 0, 0, time.UTC)}
}

func TestIngest_Subscriptions(t *testing.T) {
	in := NewIngest(IngestConfig{ReadingsFilter: "sensors/+/telemetry"}, nil, nil, nil)
	subs := in.Subscriptions()
	if len(subs) != 1 || subs[0].Filter != "sensors/+/telemetry" || subs[0].QoS != 1 {
		t.Fatalf("unexpected subscriptions %+v", subs)
	}
	if n := len(NewIngest(testIngestConfig, nil, nil, nil).Subscriptions()); n != 3 {
		t.Fatalf("want 3 subscriptions, got %d", n)
	}
}

func TestIngest_Classify(t *testing.T) {
	in := NewIngest(testIngestConfig, nil, nil, nil)

	got, err := in.Classify(msg("sensors/stue/telemetry", `{"temperature":18,"humidity":40}`))
	if err != nil || got.Kind != InboundReading || got.Location != "stue" || got.Reading.Temperature != 18 {
		t.Fatalf("reading: %+v err=%v", got, err)
	}

	got, err = in.Classify(msg("sensors/stue/setpoint", "22"))
	if err != nil || got.Kind != InboundSetpoint || got.Location != "stue" || got.Setpoint != 22 {
		t.Fatalf("setpoint: %+v err=%v", got, err)
	}

	got, err = in.Classify(msg("sensors/sofa/auto", "false"))
	if err != nil || got.Kind != InboundAuto || got.Location != "sofa" || got.Enabled {
		t.Fatalf("auto: %+v err=%v", got, err)
	}

	if _, err = in.Classify(msg("shellies/shelly1-C4402D/relay/0", "on")); !errors.Is(err, errUnhandledTopic) {
		t.Fatalf("want errUnhandledTopic, got %v", err)
	}
}

func TestIngest_LocationFromPayload(t *testing.T) {
	cfg := testIngestConfig
	cfg.LocationFromPayload = true
	in := NewIngest(cfg, nil, nil, nil)

	got, err := in.Classify(msg("sensors/esp32-7/telemetry", `{"temperature":18,"humidity":40,"location":"sofa"}`))
	if err != nil || got.Location != "sofa" {
		t.Fatalf("want payload location, got %+v err=%v", got, err)
	}
	if _, err := in.Classify(msg("sensors/esp32-7/telemetry", `{"temperature":18,"humidity":40}`)); !errors.Is(err, ErrMalformedTelemetry) {
		t.Fatalf("want ErrMalformedTelemetry without location, got %v", err)
	}
}

func TestIngest_MalformedMessageDoesNotStopIngestion(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorConfig{Margin: 1})
	core, logs := observer.New(zap.WarnLevel)
	in := NewIngest(testIngestConfig, f.c, logger.New(core), nil)
	ctx := context.Background()

	if _, err := in.Handle(ctx, msg("sensors/stue/telemetry", `{"temperature":"hot"}`)); !errors.Is(err, ErrMalformedTelemetry) {
		t.Fatalf("want ErrMalformedTelemetry, got %v", err)
	}
	if logs.FilterMessage("malformed_message").Len() != 1 {
		t.Fatalf("malformed message must be logged once, got %v", logs.All())
	}

	d, err := in.Handle(ctx, msg("sensors/stue/telemetry", `{"temperature":18,"humidity":40}`))
	if err != nil || !d.Transitioned {
		t.Fatalf("valid reading after malformed one: %+v err=%v", d, err)
	}
	if _, err := in.Handle(ctx, msg("sensors/stue/telemetry", `{"temperature":19,"humidity":41}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if readings, _ := f.history.counts(); readings != 2 {
		t.Fatalf("only valid readings are persisted, got %d", readings)
	}
}

func TestIngest_SetpointAndAutoMessages(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorConfig{Margin: 1})
	in := NewIngest(testIngestConfig, f.c, nil, nil)
	ctx := context.Background()

	in.Handle(ctx, msg("sensors/stue/telemetry", `{"temperature":20,"humidity":40}`))
	d, err := in.Handle(ctx, msg("sensors/stue/setpoint", "23"))
	if err != nil || !d.Transitioned || !f.disp.commands()[0].IsActive {
		t.Fatalf("setpoint change must switch heater on: %+v err=%v", d, err)
	}

	if _, err := in.Handle(ctx, msg("sensors/stue/auto", "false")); err != nil {
		t.Fatalf("auto: %v", err)
	}
	snap, _ := f.c.LocationSnapshot("stue")
	if snap.Enabled {
		t.Fatalf("auto=false must disable control")
	}

	if _, err := in.Handle(ctx, msg("sensors/stue/setpoint", "200")); !errors.Is(err, ErrInvalidSetpoint) {
		t.Fatalf("want ErrInvalidSetpoint, got %v", err)
	}
}

func TestIngest_UnconfiguredLocationIsLogged(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorConfig{Margin: 1})
	core, logs := observer.New(zap.WarnLevel)
	in := NewIngest(testIngestConfig, f.c, logger.New(core), nil)

	_, err := in.Handle(context.Background(), msg("sensors/loft/telemetry", `{"temperature":10,"humidity":40}`))
	if !errors.Is(err, ErrUnconfiguredLocation) {
		t.Fatalf("want ErrUnconfiguredLocation, got %v", err)
	}
	if logs.FilterMessage("unconfigured_location").Len() != 1 {
		t.Fatalf("expected unconfigured_location warning")
	}
	if readings, _ := f.history.counts(); readings != 1 {
		t.Fatalf("reading must still be stored")
	}
}
