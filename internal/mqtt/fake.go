package mqtt

import (
	"context"
	"errors"
	"sync"
	"time"
)

// errAlreadyConnected mirrors paho refusing Connect on an open session.
var errAlreadyConnected = errors.New("mqtt: already connected or reconnecting")

// Published is one message recorded by FakeClient.
type Published struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// FakeClient is an in-memory Client for tests. Errors queued in ConnectErrs
// and PublishErrs are returned in order, one per call. Like paho without
// auto-reconnect, Connect fails while a session is still open.
type FakeClient struct {
	mu sync.Mutex

	ConnectErrs []error
	// LateConnects is how many failed Connect calls still leave the session
	// open, as when the CONNACK arrives after the caller stopped waiting.
	LateConnects  int
	SubscribeErr  error
	PublishErrs   []error
	ConnectCalls  int
	Subscriptions []string
	Published     []Published
	Disconnects   int

	connected bool
	handlers  map[string]MessageHandler
	lost      chan error
}

var _ Client = (*FakeClient)(nil)

// NewFakeClient creates a disconnected FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		handlers: make(map[string]MessageHandler),
		lost:     make(chan error, 1),
	}
}

func (f *FakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ConnectCalls++
	if f.connected {
		return errAlreadyConnected
	}
	if len(f.ConnectErrs) > 0 {
		err := f.ConnectErrs[0]
		f.ConnectErrs = f.ConnectErrs[1:]
		if err != nil {
			if f.LateConnects > 0 {
				f.LateConnects--
				f.connected = true
			}
			return err
		}
	}
	f.connected = true
	return nil
}

func (f *FakeClient) Subscribe(ctx context.Context, filter string, qos byte, handler MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubscribeErr != nil {
		return f.SubscribeErr
	}
	f.Subscriptions = append(f.Subscriptions, filter)
	f.handlers[filter] = handler
	return nil
}

func (f *FakeClient) Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return ErrNotConnected
	}
	if len(f.PublishErrs) > 0 {
		err := f.PublishErrs[0]
		f.PublishErrs = f.PublishErrs[1:]
		if err != nil {
			return err
		}
	}
	f.Published = append(f.Published, Published{
		Topic:    topic,
		QoS:      qos,
		Retained: retained,
		Payload:  append([]byte(nil), payload...),
	})
	return nil
}

func (f *FakeClient) Disconnect(quiesce time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.Disconnects++
}

func (f *FakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *FakeClient) Lost() <-chan error {
	return f.lost
}

// Drop simulates the broker closing the session.
func (f *FakeClient) Drop(cause error) {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.lost <- cause
}

// QueueLoss leaves a loss signal pending without touching the session,
// like a connection-lost callback from a session that was already abandoned.
func (f *FakeClient) QueueLoss(cause error) {
	f.lost <- cause
}

// Deliver invokes the handler of every subscription matching topic.
// It reports whether any subscription matched.
func (f *FakeClient) Deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	var matched []MessageHandler
	for filter, h := range f.handlers {
		if _, ok := Match(filter, topic); ok {
			matched = append(matched, h)
		}
	}
	f.mu.Unlock()

	for _, h := range matched {
		h(Message{Topic: topic, Payload: payload, ReceivedAt: time.Now()})
	}
	return len(matched) > 0
}

// PublishedTo returns the recorded publishes on topic.
func (f *FakeClient) PublishedTo(topic string) []Published {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Published
	for _, p := range f.Published {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// SubscriptionCount returns how many Subscribe calls succeeded.
func (f *FakeClient) SubscriptionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Subscriptions)
}

// SetPublishErrs replaces the queued publish errors.
func (f *FakeClient) SetPublishErrs(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PublishErrs = errs
}
