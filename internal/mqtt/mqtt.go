// Package mqtt owns the broker session: a thin client abstraction over paho,
// a fake for tests, and the Supervisor that reconnects, re-subscribes and
// turns broker callbacks into one ordered event stream.
package mqtt

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotConnected is returned by publishes attempted while the session is down.
	ErrNotConnected = errors.New("mqtt: not connected")
	// ErrBackoffExhausted is returned by Supervisor.Run when reconnecting gave up.
	ErrBackoffExhausted = errors.New("mqtt: reconnect attempts exhausted")
)

// Hub status payloads published on the status topic (the offline one as last will).
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Message is an inbound publish.
type Message struct {
	Topic      string
	Payload    []byte
	Retained   bool
	ReceivedAt time.Time
}

// MessageHandler is invoked by the client for every message on a subscription.
type MessageHandler func(Message)

// Subscription is a topic filter the supervisor restores after every reconnect.
type Subscription struct {
	Filter string
	QoS    byte
}

// Client is the part of an MQTT client the hub needs.
type Client interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, filter string, qos byte, handler MessageHandler) error
	Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error
	Disconnect(quiesce time.Duration)
	IsConnected() bool
	// Lost delivers the cause each time an established session drops.
	Lost() <-chan error
}

// EventKind discriminates supervisor events.
type EventKind int

const (
	EventMessage EventKind = iota
	EventConnected
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is one item of the supervisor's inbound stream.
type Event struct {
	Kind    EventKind
	Message Message // EventMessage only
	Err     error   // EventDisconnected only
	At      time.Time
}
