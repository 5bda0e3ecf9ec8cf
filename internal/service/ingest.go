package service

import (
	"context"
	"errors"
	"fmt"

	"paletten_hub/internal/logger"
	"paletten_hub/internal/metrics"
	"paletten_hub/internal/models"
	"paletten_hub/internal/mqtt"
)

// InboundKind is the class of an inbound message.
type InboundKind int

const (
	InboundReading InboundKind = iota + 1
	InboundSetpoint
	InboundAuto
)

func (k InboundKind) String() string {
	switch k {
	case InboundReading:
		return "reading"
	case InboundSetpoint:
		return "setpoint"
	case InboundAuto:
		return "auto"
	default:
		return "unknown"
	}
}

var errUnhandledTopic = errors.New("no handler for topic")

// Inbound is a decoded message ready for the coordinator.
type Inbound struct {
	Kind     InboundKind
	Location string
	Reading  models.Reading
	Setpoint int
	Enabled  bool
}

type IngestConfig struct {
	ReadingsFilter string
	SetpointFilter string
	AutoFilter     string
	// LocationFromPayload takes reading locations from the JSON body instead of the topic.
	LocationFromPayload bool
}

// Ingest decodes sensor, setpoint and auto-mode messages and hands them to
// the Coordinator.
type Ingest struct {
	cfg         IngestConfig
	coordinator *Coordinator
	log         *logger.Logger
	metrics     *metrics.Metrics
}

func NewIngest(cfg IngestConfig, coordinator *Coordinator, log *logger.Logger, m *metrics.Metrics) *Ingest {
	if log == nil {
		log = logger.NewNop()
	}
	return &Ingest{cfg: cfg, coordinator: coordinator, log: log, metrics: m}
}

// Subscriptions lists the filters the supervisor must hold.
func (c IngestConfig) Subscriptions() []mqtt.Subscription {
	var subs []mqtt.Subscription
	for _, f := range []string{c.ReadingsFilter, c.SetpointFilter, c.AutoFilter} {
		if f != "" {
			subs = append(subs, mqtt.Subscription{Filter: f, QoS: 1})
		}
	}
	return subs
}

func (i *Ingest) Subscriptions() []mqtt.Subscription {
	return i.cfg.Subscriptions()
}

// Classify matches msg against the configured filters and decodes its payload.
// Undecodable payloads return ErrMalformedTelemetry.
func (i *Ingest) Classify(msg mqtt.Message) (Inbound, error) {
	if caps, ok := mqtt.Match(i.cfg.ReadingsFilter, msg.Topic); ok {
		location := ""
		if !i.cfg.LocationFromPayload && len(caps) > 0 {
			location = caps[0]
		}
		r, err := ParseReading(msg.Payload, location, msg.ReceivedAt)
		if err != nil {
			return Inbound{Kind: InboundReading, Location: location}, err
		}
		return Inbound{Kind: InboundReading, Location: r.Location, Reading: r}, nil
	}

	if loc, ok := matchLocation(i.cfg.SetpointFilter, msg.Topic); ok {
		d, err := ParseSetpoint(msg.Payload)
		return Inbound{Kind: InboundSetpoint, Location: loc, Setpoint: d}, err
	}

	if loc, ok := matchLocation(i.cfg.AutoFilter, msg.Topic); ok {
		enabled, err := ParseAuto(msg.Payload)
		return Inbound{Kind: InboundAuto, Location: loc, Enabled: enabled}, err
	}

	return Inbound{}, fmt.Errorf("%w: %s", errUnhandledTopic, msg.Topic)
}

// Apply forwards a decoded message to the coordinator.
func (i *Ingest) Apply(ctx context.Context, in Inbound) (Decision, error) {
	var (
		d   Decision
		err error
	)
	switch in.Kind {
	case InboundReading:
		d, err = i.coordinator.HandleReading(ctx, in.Reading)
	case InboundSetpoint:
		d, err = i.coordinator.SetDesiredTemperature(ctx, in.Location, in.Setpoint)
	case InboundAuto:
		d, err = i.coordinator.SetEnabled(ctx, in.Location, in.Enabled)
	default:
		return Decision{}, fmt.Errorf("unknown inbound kind %d", in.Kind)
	}
	if errors.Is(err, ErrUnconfiguredLocation) {
		i.log.Warnw("unconfigured_location", "location", in.Location, "kind", in.Kind.String())
	}
	return d, err
}

// Handle classifies and applies msg in one step. Malformed messages are
// logged, counted and dropped.
func (i *Ingest) Handle(ctx context.Context, msg mqtt.Message) (Decision, error) {
	in, err := i.Classify(msg)
	if err != nil {
		i.reject(msg, err)
		return Decision{}, err
	}
	return i.Apply(ctx, in)
}

func (i *Ingest) reject(msg mqtt.Message, err error) {
	switch {
	case errors.Is(err, errUnhandledTopic):
		i.log.Debugw("unhandled_topic", "topic", msg.Topic)
	case errors.Is(err, ErrMalformedTelemetry), errors.Is(err, ErrInvalidSetpoint):
		i.metrics.Malformed()
		i.log.Warnw("malformed_message", "err", err, "topic", msg.Topic, "payload", truncate(msg.Payload, 128))
	default:
		i.log.Warnw("message_rejected", "err", err, "topic", msg.Topic)
	}
}

func matchLocation(filter, topic string) (string, bool) {
	if filter == "" {
		return "", false
	}
	caps, ok := mqtt.Match(filter, topic)
	if !ok || len(caps) == 0 {
		return "", false
	}
	return caps[0], true
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
