// Package config loads the hub configuration from a YAML file and
// PALETTEN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"paletten_hub/internal/backoff"
)

// ErrInvalidConfig is returned when the configuration cannot be used.
var ErrInvalidConfig = errors.New("invalid config")

const envPrefix = "PALETTEN"

// Location sources for readings.
const (
	LocationFromTopic   = "topic"
	LocationFromPayload = "payload"
)

// Command payload formats.
const (
	FormatJSON   = "json"
	FormatShelly = "shelly"
)

type Config struct {
	Log             LogConfig        `mapstructure:"log"`
	HTTP            HTTPConfig       `mapstructure:"http"`
	DB              DBConfig         `mapstructure:"db"`
	MQTT            MQTTConfig       `mapstructure:"mqtt"`
	Topics          TopicsConfig     `mapstructure:"topics"`
	Control         ControlConfig    `mapstructure:"control"`
	Dispatch        DispatchConfig   `mapstructure:"dispatch"`
	Locations       []LocationConfig `mapstructure:"locations" validate:"required,min=1,dive"`
	ShutdownTimeout time.Duration    `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type HTTPConfig struct {
	// Port is empty to disable the status API.
	Port string `mapstructure:"port" validate:"omitempty,numeric"`
	// WSInterval is the default push interval of /ws.
	WSInterval time.Duration `mapstructure:"ws_interval" validate:"gt=0"`
}

type DBConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type MQTTConfig struct {
	Broker         string         `mapstructure:"broker" validate:"required"`
	ClientID       string         `mapstructure:"client_id" validate:"required"`
	Username       string         `mapstructure:"username"`
	Password       string         `mapstructure:"password"`
	KeepAlive      time.Duration  `mapstructure:"keep_alive" validate:"gte=0"`
	ConnectTimeout time.Duration  `mapstructure:"connect_timeout" validate:"gt=0"`
	Backoff        backoff.Policy `mapstructure:"backoff"`
	EventBuffer    int            `mapstructure:"event_buffer" validate:"gt=0"`
}

type TopicsConfig struct {
	Readings string `mapstructure:"readings" validate:"required"`
	Setpoint string `mapstructure:"setpoint"`
	Auto     string `mapstructure:"auto"`
	// HeaterCommand must contain {id}, replaced by the heater id.
	HeaterCommand string `mapstructure:"heater_command" validate:"required"`
	Status        string `mapstructure:"status"`
}

type ControlConfig struct {
	Margin         int           `mapstructure:"margin" validate:"gte=0"`
	Cooldown       time.Duration `mapstructure:"cooldown" validate:"gte=0"`
	LocationSource string        `mapstructure:"location_source" validate:"oneof=topic payload"`
	LaneBuffer     int           `mapstructure:"lane_buffer" validate:"gt=0"`
}

type DispatchConfig struct {
	Format   string         `mapstructure:"format" validate:"oneof=json shelly"`
	QoS      byte           `mapstructure:"qos" validate:"lte=2"`
	Retained bool           `mapstructure:"retained"`
	Timeout  time.Duration  `mapstructure:"timeout" validate:"gt=0"`
	Retry    backoff.Policy `mapstructure:"retry"`
}

type LocationConfig struct {
	Name               string `mapstructure:"name" validate:"required,excludesall=+#/"`
	HeaterID           string `mapstructure:"heater_id" validate:"required,excludesall=+#/"`
	DesiredTemperature int    `mapstructure:"desired_temperature" validate:"min=-50,max=100"`
	Enabled            *bool  `mapstructure:"enabled"`
}

// IsEnabled reports whether automatic control starts enabled (default true).
func (l LocationConfig) IsEnabled() bool {
	return l.Enabled == nil || *l.Enabled
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.ws_interval", 2*time.Second)

	v.SetDefault("db.path", "paletten.db")

	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "paletten-hub")
	v.SetDefault("mqtt.keep_alive", 30*time.Second)
	v.SetDefault("mqtt.connect_timeout", 10*time.Second)
	v.SetDefault("mqtt.backoff.base", time.Second)
	v.SetDefault("mqtt.backoff.max", time.Minute)
	v.SetDefault("mqtt.backoff.max_attempts", 0)
	v.SetDefault("mqtt.event_buffer", 64)

	v.SetDefault("topics.readings", "sensors/+/telemetry")
	v.SetDefault("topics.setpoint", "sensors/+/setpoint")
	v.SetDefault("topics.auto", "sensors/+/auto")
	v.SetDefault("topics.heater_command", "shellies/shelly1-{id}/relay/0/command")
	v.SetDefault("topics.status", "paletten/hub/status")

	v.SetDefault("control.margin", 1)
	v.SetDefault("control.cooldown", 5*time.Minute)
	v.SetDefault("control.location_source", LocationFromTopic)
	v.SetDefault("control.lane_buffer", 16)

	v.SetDefault("dispatch.format", FormatShelly)
	v.SetDefault("dispatch.qos", 1)
	v.SetDefault("dispatch.retained", true)
	v.SetDefault("dispatch.timeout", 5*time.Second)
	v.SetDefault("dispatch.retry.base", 500*time.Millisecond)
	v.SetDefault("dispatch.retry.max", 5*time.Second)
	v.SetDefault("dispatch.retry.max_attempts", 3)

	v.SetDefault("shutdown_timeout", 10*time.Second)
}

// Load reads path (or configs/config.yml when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the rules that span fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	seen := make(map[string]struct{}, len(c.Locations))
	for _, l := range c.Locations {
		if _, dup := seen[l.Name]; dup {
			return fmt.Errorf("%w: duplicate location %q", ErrInvalidConfig, l.Name)
		}
		seen[l.Name] = struct{}{}
	}

	filters := map[string]string{
		"topics.setpoint": c.Topics.Setpoint,
		"topics.auto":     c.Topics.Auto,
	}
	// with payload locations the readings filter may be a plain topic
	if c.Control.LocationSource == LocationFromTopic {
		filters["topics.readings"] = c.Topics.Readings
	}
	for key, f := range filters {
		if f == "" {
			continue
		}
		if strings.Count(f, "+") != 1 || strings.Contains(f, "#") {
			return fmt.Errorf("%w: %s %q must contain exactly one '+' and no '#'", ErrInvalidConfig, key, f)
		}
	}

	if !strings.Contains(c.Topics.HeaterCommand, "{id}") {
		return fmt.Errorf("%w: topics.heater_command %q lacks {id}", ErrInvalidConfig, c.Topics.HeaterCommand)
	}
	return nil
}

// Location returns the configured location by name.
func (c *Config) Location(name string) (LocationConfig, bool) {
	for _, l := range c.Locations {
		if l.Name == name {
			return l, true
		}
	}
	return LocationConfig{}, false
}
