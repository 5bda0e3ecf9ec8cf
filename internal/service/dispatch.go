package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"paletten_hub/internal/backoff"
	"paletten_hub/internal/logger"
	"paletten_hub/internal/metrics"
	"paletten_hub/internal/models"
	"paletten_hub/internal/mqtt"
)

// Publisher sends one MQTT message. mqtt.Supervisor implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error
}

// Command payload formats.
const (
	PayloadJSON   = "json"
	PayloadShelly = "shelly" // plain "on"/"off"
)

type DispatchConfig struct {
	// TopicTemplate contains {id}, replaced by the heater id.
	TopicTemplate string
	Format        string
	QoS           byte
	Retained      bool
	// Timeout bounds a single publish attempt.
	Timeout time.Duration
	Retry   backoff.Policy
}

// CommandDispatcher publishes heater commands, retrying transient failures.
type CommandDispatcher struct {
	pub     Publisher
	cfg     DispatchConfig
	log     *logger.Logger
	metrics *metrics.Metrics

	sleep func(ctx context.Context, d time.Duration) bool
}

func NewCommandDispatcher(pub Publisher, cfg DispatchConfig, log *logger.Logger, m *metrics.Metrics) *CommandDispatcher {
	if cfg.Format == "" {
		cfg.Format = PayloadJSON
	}
	// a dispatch always makes at least one attempt and never retries forever
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 1
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &CommandDispatcher{pub: pub, cfg: cfg, log: log, metrics: m, sleep: backoff.Sleep}
}

type commandPayload struct {
	ID        string `json:"id"`
	ShellyID  string `json:"shelly_id"`
	IsActive  bool   `json:"is_active"`
	Timestamp string `json:"timestamp"`
}

// Encode renders cmd in the configured payload format.
func (d *CommandDispatcher) Encode(cmd models.HeaterCommand) ([]byte, error) {
	switch d.cfg.Format {
	case PayloadShelly:
		return []byte(models.HeaterStateOf(cmd.IsActive)), nil
	case PayloadJSON:
		return json.Marshal(commandPayload{
			ID:        cmd.ID,
			ShellyID:  cmd.ShellyID,
			IsActive:  cmd.IsActive,
			Timestamp: cmd.Timestamp.UTC().Format(time.RFC3339),
		})
	default:
		return nil, fmt.Errorf("unknown command format %q", d.cfg.Format)
	}
}

// Topic returns the command topic of a heater.
func (d *CommandDispatcher) Topic(heaterID string) string {
	return mqtt.Expand(d.cfg.TopicTemplate, heaterID)
}

// Dispatch publishes cmd. Errors are retried with backoff up to the configured
// attempts, except ErrNotConnected which fails at once. The returned error
// wraps ErrDispatchFailed.
func (d *CommandDispatcher) Dispatch(ctx context.Context, cmd models.HeaterCommand) error {
	payload, err := d.Encode(cmd)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}
	topic := d.Topic(cmd.ShellyID)

	attempts := 0
	for {
		attempts++
		err = d.publishOnce(ctx, topic, payload)
		if err == nil {
			d.log.Debugw("heater_command_published", "command_id", cmd.ID, "shelly_id", cmd.ShellyID,
				"is_active", cmd.IsActive, "topic", topic, "attempts", attempts)
			return nil
		}
		if errors.Is(err, mqtt.ErrNotConnected) || ctx.Err() != nil || d.cfg.Retry.Exhausted(attempts) {
			break
		}
		delay := d.cfg.Retry.Delay(attempts - 1)
		d.log.Warnw("heater_command_retry", "err", err, "command_id", cmd.ID, "shelly_id", cmd.ShellyID,
			"attempt", attempts, "next_delay", delay.String())
		if !d.sleep(ctx, delay) {
			break
		}
	}

	d.metrics.DispatchFailure(cmd.ShellyID)
	return fmt.Errorf("%w: heater %s after %d attempt(s): %w", ErrDispatchFailed, cmd.ShellyID, attempts, err)
}

func (d *CommandDispatcher) publishOnce(ctx context.Context, topic string, payload []byte) error {
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}
	return d.pub.Publish(ctx, topic, d.cfg.QoS, d.cfg.Retained, payload)
}
