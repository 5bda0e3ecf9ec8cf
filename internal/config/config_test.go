package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
mqtt:
  broker: tcp://broker:1883
control:
  margin: 2
  cooldown: 90s
locations:
  - name: stue
    heater_id: C45BBE5FD4E4
    desired_temperature: 21
  - name: kontor
    heater_id: 8CAAB5618D3C
    desired_temperature: 19
    enabled: false
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.MQTT.Broker != "tcp://broker:1883" {
		t.Errorf("broker = %q", cfg.MQTT.Broker)
	}
	if cfg.Control.Margin != 2 || cfg.Control.Cooldown != 90*time.Second {
		t.Errorf("control = %+v", cfg.Control)
	}
	if cfg.Topics.HeaterCommand != "shellies/shelly1-{id}/relay/0/command" {
		t.Errorf("default heater topic = %q", cfg.Topics.HeaterCommand)
	}
	if cfg.Dispatch.QoS != 1 || !cfg.Dispatch.Retained || cfg.Dispatch.Format != FormatShelly {
		t.Errorf("dispatch defaults = %+v", cfg.Dispatch)
	}
	if cfg.Dispatch.Retry.MaxAttempts != 3 || cfg.Dispatch.Retry.Base != 500*time.Millisecond {
		t.Errorf("retry defaults = %+v", cfg.Dispatch.Retry)
	}
	if cfg.MQTT.Backoff.MaxAttempts != 0 || cfg.MQTT.Backoff.Max != time.Minute {
		t.Errorf("mqtt backoff = %+v", cfg.MQTT.Backoff)
	}

	if len(cfg.Locations) != 2 {
		t.Fatalf("want 2 locations, got %d", len(cfg.Locations))
	}
	stue, ok := cfg.Location("stue")
	if !ok || !stue.IsEnabled() || stue.DesiredTemperature != 21 {
		t.Errorf("stue = %+v", stue)
	}
	kontor, _ := cfg.Location("kontor")
	if kontor.IsEnabled() {
		t.Errorf("kontor must start disabled")
	}
	if _, ok := cfg.Location("loft"); ok {
		t.Errorf("unknown location reported as configured")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PALETTEN_MQTT_BROKER", "tcp://override:1883")
	t.Setenv("PALETTEN_CONTROL_COOLDOWN", "10m")
	t.Setenv("PALETTEN_LOG_LEVEL", "debug")
	t.Setenv("PALETTEN_DISPATCH_FORMAT", FormatJSON)

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MQTT.Broker != "tcp://override:1883" {
		t.Errorf("broker = %q", cfg.MQTT.Broker)
	}
	if cfg.Control.Cooldown != 10*time.Minute {
		t.Errorf("cooldown = %v", cfg.Control.Cooldown)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("level = %q", cfg.Log.Level)
	}
	if cfg.Dispatch.Format != FormatJSON {
		t.Errorf("dispatch format = %q", cfg.Dispatch.Format)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "no locations",
			body: "mqtt:\n  broker: tcp://b:1883\n",
			want: "Locations",
		},
		{
			name: "duplicate location",
			body: `
locations:
  - {name: stue, heater_id: A, desired_temperature: 20}
  - {name: stue, heater_id: B, desired_temperature: 20}
`,
			want: "duplicate location",
		},
		{
			name: "heater id with wildcard",
			body: `
locations:
  - {name: stue, heater_id: "A/+", desired_temperature: 20}
`,
			want: "HeaterID",
		},
		{
			name: "setpoint out of range",
			body: `
locations:
  - {name: stue, heater_id: A, desired_temperature: 150}
`,
			want: "DesiredTemperature",
		},
		{
			name: "command template without id",
			body: `
topics:
  heater_command: shellies/relay/0/command
locations:
  - {name: stue, heater_id: A, desired_temperature: 20}
`,
			want: "lacks {id}",
		},
		{
			name: "filter with two wildcards",
			body: `
topics:
  readings: sensors/+/+/telemetry
locations:
  - {name: stue, heater_id: A, desired_temperature: 20}
`,
			want: "topics.readings",
		},
		{
			name: "unknown dispatch format",
			body: `
dispatch:
  format: xml
locations:
  - {name: stue, heater_id: A, desired_temperature: 20}
`,
			want: "Format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("want ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate_PayloadLocationAllowsPlainReadingsTopic(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
topics:
  readings: sensors/telemetry
control:
  location_source: payload
locations:
  - {name: stue, heater_id: A, desired_temperature: 20}
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Control.LocationSource != LocationFromPayload {
		t.Fatalf("location source = %q", cfg.Control.LocationSource)
	}
}
