package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"paletten_hub/internal/backoff"
	"paletten_hub/internal/logger"
	"paletten_hub/internal/metrics"
	"paletten_hub/internal/models"
)

const (
	defaultEventBuffer    = 64
	defaultConnectTimeout = 10 * time.Second
	disconnectQuiesce     = 250 * time.Millisecond
)

// SupervisorConfig configures a Supervisor.
type SupervisorConfig struct {
	Subscriptions  []Subscription
	Backoff        backoff.Policy
	ConnectTimeout time.Duration
	// StatusTopic receives retained online/offline markers when set.
	StatusTopic string
	EventBuffer int
}

// Supervisor owns the broker session: it connects with exponential backoff,
// restores subscriptions after every reconnect and exposes broker callbacks
// as a single ordered event stream. Publishing while the session is not
// ready fails fast with ErrNotConnected.
type Supervisor struct {
	client  Client
	cfg     SupervisorConfig
	log     *logger.Logger
	metrics *metrics.Metrics

	// swapped in tests
	sleep func(ctx context.Context, d time.Duration) bool
	now   func() time.Time

	events   chan Event
	done     chan struct{}
	doneOnce sync.Once
	emitMu   sync.RWMutex
	closed   bool

	ready     atomic.Bool
	saturated atomic.Bool
	mu        sync.Mutex
	status    models.BrokerStatus
}

// NewSupervisor creates a Supervisor around client. Call Run to start it.
func NewSupervisor(client Client, cfg SupervisorConfig, log *logger.Logger, m *metrics.Metrics) *Supervisor {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Supervisor{
		client:  client,
		cfg:     cfg,
		log:     log,
		metrics: m,
		sleep:   backoff.Sleep,
		now:     time.Now,
		events:  make(chan Event, cfg.EventBuffer),
		done:    make(chan struct{}),
	}
}

// Events is the inbound stream. It is closed when Run returns and cannot be restarted.
func (s *Supervisor) Events() <-chan Event {
	return s.events
}

// Run keeps the session up until ctx is cancelled or reconnecting is exhausted.
// On cancellation the session is left open so in-flight commands can finish;
// call Close afterwards.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.closeEvents()
	go func() {
		// stop delivering as soon as shutdown starts
		select {
		case <-ctx.Done():
			s.stopEmitting()
		case <-s.done:
		}
	}()

	failures := 0
	connectedBefore := false
	for {
		if ctx.Err() != nil {
			return nil
		}

		s.drainLost()
		if err := s.establish(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			s.recordError(err)
			if s.cfg.Backoff.Exhausted(failures) {
				s.log.Errorw("broker_reconnect_exhausted", "err", err, "attempts", failures)
				return fmt.Errorf("%w after %d attempts: %v", ErrBackoffExhausted, failures, err)
			}
			delay := s.cfg.Backoff.Delay(failures - 1)
			s.log.Warnw("broker_connect_failed", "err", err, "attempt", failures, "next_delay", delay.String())
			if !s.sleep(ctx, delay) {
				return nil
			}
			continue
		}

		failures = 0
		s.markConnected(connectedBefore)
		if connectedBefore {
			s.log.Infow("broker_reconnected", "reconnects", s.Status().Reconnects)
		} else {
			s.log.Infow("broker_connected", "subscriptions", len(s.cfg.Subscriptions))
		}
		connectedBefore = true
		s.emit(Event{Kind: EventConnected, At: s.now()})

		select {
		case <-ctx.Done():
			return nil
		case cause := <-s.client.Lost():
			s.markDisconnected(cause)
			s.log.Warnw("broker_connection_lost", "err", cause)
			s.emit(Event{Kind: EventDisconnected, Err: cause, At: s.now()})
		}
	}
}

// establish connects, restores subscriptions and announces the hub online.
// On failure the session is torn down, so a connect that completes after
// the timeout cannot block the next attempt.
func (s *Supervisor) establish(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	if err := s.client.Connect(cctx); err != nil {
		s.client.Disconnect(0)
		return fmt.Errorf("connect: %w", err)
	}
	for _, sub := range s.cfg.Subscriptions {
		if err := s.client.Subscribe(cctx, sub.Filter, sub.QoS, s.onMessage); err != nil {
			s.client.Disconnect(0)
			return fmt.Errorf("subscribe %q: %w", sub.Filter, err)
		}
	}
	if s.cfg.StatusTopic != "" {
		if err := s.client.Publish(cctx, s.cfg.StatusTopic, 1, true, []byte(StatusOnline)); err != nil {
			s.log.Warnw("status_publish_failed", "err", err, "topic", s.cfg.StatusTopic)
		}
	}
	return nil
}

// drainLost discards loss signals left over from sessions already given up on.
func (s *Supervisor) drainLost() {
	for {
		select {
		case cause := <-s.client.Lost():
			s.log.Debugw("broker_stale_loss_discarded", "err", cause)
		default:
			return
		}
	}
}

func (s *Supervisor) onMessage(m Message) {
	s.emit(Event{Kind: EventMessage, Message: m, At: m.ReceivedAt})
}

// emit blocks until the event is consumed or the stream is shutting down.
// While it blocks paho's reader is held too, acks and keepalives included,
// so the first wait of each backlog is logged.
func (s *Supervisor) emit(ev Event) {
	s.emitMu.RLock()
	defer s.emitMu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
		s.saturated.Store(false)
		return
	default:
	}

	if s.saturated.CompareAndSwap(false, true) {
		s.metrics.EventBufferSaturated()
		s.log.Warnw("event_buffer_saturated", "capacity", cap(s.events), "kind", ev.Kind.String())
	}
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Supervisor) stopEmitting() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Supervisor) closeEvents() {
	s.stopEmitting() // releases blocked emitters before taking the write lock
	s.emitMu.Lock()
	s.closed = true
	close(s.events)
	s.emitMu.Unlock()
}

// Publish forwards to the client while the session is ready.
func (s *Supervisor) Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error {
	if !s.ready.Load() {
		return ErrNotConnected
	}
	return s.client.Publish(ctx, topic, qos, retained, payload)
}

// Ready reports whether the session is up and subscriptions are restored.
func (s *Supervisor) Ready() bool {
	return s.ready.Load()
}

// Close announces the hub offline and disconnects. Safe to call once Run returned.
func (s *Supervisor) Close(ctx context.Context) {
	if s.cfg.StatusTopic != "" && s.client.IsConnected() {
		if err := s.client.Publish(ctx, s.cfg.StatusTopic, 1, true, []byte(StatusOffline)); err != nil {
			s.log.Warnw("status_publish_failed", "err", err, "topic", s.cfg.StatusTopic)
		}
	}
	s.ready.Store(false)
	s.client.Disconnect(disconnectQuiesce)
	s.metrics.SetBrokerConnected(false)
}

// Status returns a copy of the session status.
func (s *Supervisor) Status() models.BrokerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Connected = s.ready.Load()
	return st
}

func (s *Supervisor) markConnected(reconnect bool) {
	s.mu.Lock()
	s.status.LastConnectedAt = s.now()
	s.status.LastError = ""
	if reconnect {
		s.status.Reconnects++
	}
	s.mu.Unlock()

	s.ready.Store(true)
	s.metrics.SetBrokerConnected(true)
	if reconnect {
		s.metrics.Reconnect()
	}
}

func (s *Supervisor) markDisconnected(cause error) {
	s.ready.Store(false)
	s.metrics.SetBrokerConnected(false)
	s.recordError(cause)
}

func (s *Supervisor) recordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.status.LastError = err.Error()
	s.mu.Unlock()
}
