package mqtt

import (
	"context"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Options configure the paho-backed client.
type Options struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	// StatusTopic receives a retained "offline" last will when set.
	StatusTopic string
}

// PahoClient adapts paho.mqtt.golang to Client. Automatic reconnect is off:
// the Supervisor owns the reconnect policy.
type PahoClient struct {
	client paho.Client
	lost   chan error
}

var _ Client = (*PahoClient)(nil)

// NewPahoClient builds a client for the given broker. It does not connect.
func NewPahoClient(opts Options) *PahoClient {
	lost := make(chan error, 1)

	o := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOrderMatters(true)
	if opts.KeepAlive > 0 {
		o.SetKeepAlive(opts.KeepAlive)
	}
	if opts.ConnectTimeout > 0 {
		o.SetConnectTimeout(opts.ConnectTimeout)
	}
	if opts.Username != "" {
		o.SetUsername(opts.Username)
		o.SetPassword(opts.Password)
	}
	if opts.StatusTopic != "" {
		o.SetWill(opts.StatusTopic, StatusOffline, 1, true)
	}
	o.SetConnectionLostHandler(func(_ paho.Client, err error) {
		select {
		case lost <- err:
		default: // a loss is already pending
		}
	})

	return &PahoClient{client: paho.NewClient(o), lost: lost}
}

// Connect opens the session, honoring ctx for the wait.
func (c *PahoClient) Connect(ctx context.Context) error {
	return waitToken(ctx, c.client.Connect())
}

// Subscribe registers handler for filter. Paho calls handlers sequentially in arrival order.
func (c *PahoClient) Subscribe(ctx context.Context, filter string, qos byte, handler MessageHandler) error {
	tok := c.client.Subscribe(filter, qos, func(_ paho.Client, m paho.Message) {
		handler(Message{
			Topic:      m.Topic(),
			Payload:    append([]byte(nil), m.Payload()...),
			Retained:   m.Retained(),
			ReceivedAt: time.Now(),
		})
	})
	return waitToken(ctx, tok)
}

// Publish sends payload and waits for the broker acknowledgment required by qos.
func (c *PahoClient) Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error {
	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	return waitToken(ctx, c.client.Publish(topic, qos, retained, payload))
}

// Disconnect closes the session after waiting up to quiesce for in-flight work.
func (c *PahoClient) Disconnect(quiesce time.Duration) {
	c.client.Disconnect(uint(quiesce.Milliseconds()))
}

func (c *PahoClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

func (c *PahoClient) Lost() <-chan error {
	return c.lost
}

// waitToken blocks until the token completes or ctx ends.
func waitToken(ctx context.Context, tok paho.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
