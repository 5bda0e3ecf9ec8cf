package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"paletten_hub/internal/backoff"
	"paletten_hub/internal/models"
	"paletten_hub/internal/mqtt"
)

const commandTopic = "shellies/shelly1-C4402D/relay/0/command"

func newConnectedFake(t *testing.T) *mqtt.FakeClient {
	t.Helper()
	fc := mqtt.NewFakeClient()
	if err := fc.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return fc
}

func newTestDispatcher(pub Publisher, format string, retry backoff.Policy) (*CommandDispatcher, *[]time.Duration) {
	d := NewCommandDispatcher(pub, DispatchConfig{
		TopicTemplate: "shellies/shelly1-{id}/relay/0/command",
		Format:        format,
		QoS:           1,
		Retained:      true,
		Timeout:       time.Second,
		Retry:         retry,
	}, nil, nil)
	var slept []time.Duration
	d.sleep = func(ctx context.Context, delay time.Duration) bool {
		slept = append(slept, delay)
		return ctx.Err() == nil
	}
	return d, &slept
}

var onCommand = models.HeaterCommand{
	ID:        "6f1c1c1e-2d7e-4a53-9d55-3f1e4c1b2a10",
	ShellyID:  "C4402D",
	IsActive:  true,
	Timestamp: time.Date(2026, 1, 10, 6, 0, 0, 0, time.UTC),
}

func TestDispatch_ShellyPayload(t *testing.T) {
	fc := newConnectedFake(t)
	d, _ := newTestDispatcher(fc, PayloadShelly, backoff.Policy{MaxAttempts: 3})

	if err := d.Dispatch(context.Background(), onCommand); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	off := onCommand
	off.IsActive = false
	if err := d.Dispatch(context.Background(), off); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	got := fc.PublishedTo(commandTopic)
	if len(got) != 2 {
		t.Fatalf("want 2 publishes, got %d", len(got))
	}
	if string(got[0].Payload) != "on" || string(got[1].Payload) != "off" {
		t.Fatalf("unexpected payloads %q %q", got[0].Payload, got[1].Payload)
	}
	if got[0].QoS != 1 || !got[0].Retained {
		t.Fatalf("want qos 1 retained, got %+v", got[0])
	}
}

func TestDispatch_JSONPayload(t *testing.T) {
	fc := newConnectedFake(t)
	d, _ := newTestDispatcher(fc, PayloadJSON, backoff.Policy{})

	if err := d.Dispatch(context.Background(), onCommand); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	got := fc.PublishedTo(commandTopic)
	if len(got) != 1 {
		t.Fatalf("want 1 publish, got %d", len(got))
	}

	var body map[string]any
	if err := json.Unmarshal(got[0].Payload, &body); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if body["id"] != onCommand.ID || body["shelly_id"] != "C4402D" || body["is_active"] != true {
		t.Fatalf("unexpected body %v", body)
	}
	if body["timestamp"] != "2026-01-10T06:00:00Z" {
		t.Fatalf("unexpected timestamp %v", body["timestamp"])
	}
}

func TestDispatch_RetriesTransientFailures(t *testing.T) {
	fc := newConnectedFake(t)
	fc.SetPublishErrs(errors.New("timeout"), errors.New("timeout"))
	d, slept := newTestDispatcher(fc, PayloadShelly, backoff.Policy{Base: 100 * time.Millisecond, Max: time.Second, MaxAttempts: 3})

	if err := d.Dispatch(context.Background(), onCommand); err != nil {
		t.Fatalf("want success on third attempt, got %v", err)
	}
	if len(fc.PublishedTo(commandTopic)) != 1 {
		t.Fatalf("want exactly one delivered command")
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(*slept) != 2 || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
		t.Fatalf("delays = %v, want %v", *slept, want)
	}
}

func TestDispatch_ExhaustedRetries(t *testing.T) {
	fc := newConnectedFake(t)
	cause := errors.New("timeout")
	fc.SetPublishErrs(cause, cause, cause)
	d, slept := newTestDispatcher(fc, PayloadShelly, backoff.Policy{Base: time.Millisecond, MaxAttempts: 3})

	err := d.Dispatch(context.Background(), onCommand)
	if !errors.Is(err, ErrDispatchFailed) || !errors.Is(err, cause) {
		t.Fatalf("want ErrDispatchFailed wrapping cause, got %v", err)
	}
	if len(*slept) != 2 {
		t.Fatalf("want 2 backoff sleeps, got %d", len(*slept))
	}
}

func TestDispatch_NotConnectedFailsFast(t *testing.T) {
	fc := mqtt.NewFakeClient()
	d, slept := newTestDispatcher(fc, PayloadShelly, backoff.Policy{Base: time.Second, MaxAttempts: 5})

	err := d.Dispatch(context.Background(), onCommand)
	if !errors.Is(err, ErrDispatchFailed) || !errors.Is(err, mqtt.ErrNotConnected) {
		t.Fatalf("want ErrDispatchFailed wrapping ErrNotConnected, got %v", err)
	}
	if len(*slept) != 0 {
		t.Fatalf("must not retry while disconnected")
	}
}

func TestDispatch_CancelledContextStopsRetrying(t *testing.T) {
	fc := newConnectedFake(t)
	fc.SetPublishErrs(errors.New("timeout"), errors.New("timeout"))
	d, _ := newTestDispatcher(fc, PayloadShelly, backoff.Policy{Base: time.Second, MaxAttempts: 3})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Dispatch(ctx, onCommand); !errors.Is(err, ErrDispatchFailed) {
		t.Fatalf("want ErrDispatchFailed, got %v", err)
	}
}

func TestDispatch_ZeroAttemptsMeansOne(t *testing.T) {
	fc := newConnectedFake(t)
	fc.SetPublishErrs(errors.New("timeout"))
	d, slept := newTestDispatcher(fc, PayloadShelly, backoff.Policy{})

	if err := d.Dispatch(context.Background(), onCommand); !errors.Is(err, ErrDispatchFailed) {
		t.Fatalf("want ErrDispatchFailed, got %v", err)
	}
	if len(*slept) != 0 {
		t.Fatalf("single attempt must not sleep")
	}
}
