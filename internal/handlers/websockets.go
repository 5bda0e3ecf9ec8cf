package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"paletten_hub/internal/logger"
	"paletten_hub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12
	defaultInterval  = 1 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000
)

// Reasons carried by state messages besides the coordinator's change reasons.
const (
	reasonInitial   = "initial"
	reasonHeartbeat = "heartbeat"
)

type wsEnvelope struct {
	Type     string      `json:"type"`
	Reason   string      `json:"reason,omitempty"`
	Location string      `json:"location,omitempty"`
	Data     interface{} `json:"data,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// The hub serves a trusted home network; any origin may subscribe.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// stateStream feeds one client: the full state on connect, again after every
// location change, and as a heartbeat once the hub has been quiet for the interval.
type stateStream struct {
	conn      *websocket.Conn
	monitor   service.Monitoring
	log       *logger.Logger
	heartbeat time.Duration
}

// @Summary      Stream live control state
// @Description  Upgrades to WebSocket. Pushes {"type":"state"} on connect, after each heater transition, suppression, divergence, reconcile, reading or setting change, and as a heartbeat when quiet for the interval (?interval=2s or ?interval_ms=2000, max 10s)
// @Tags         control
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	heartbeat := h.parseInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger().Errorw("ws_upgrade_failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	changes, unsubscribe := h.services.Monitoring.Subscribe()
	defer unsubscribe()

	s := &stateStream{conn: conn, monitor: h.services.Monitoring, log: h.logger(), heartbeat: heartbeat}
	s.run(c.Request.Context(), changes)
}

func (s *stateStream) run(ctx context.Context, changes <-chan service.Change) {
	s.conn.SetReadLimit(maxMsgSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	closed := make(chan struct{})
	go s.readUntilClosed(closed)

	if err := s.push(ctx, reasonInitial, ""); err != nil {
		s.log.Infow("ws_write_failed_initial", "err", err)
		return
	}

	quiet := time.NewTimer(s.heartbeat)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		quiet.Stop()
		ping.Stop()
	}()

	for {
		var err error
		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.log.Infow("ws_ping_failed", "err", err)
				return
			}
			continue
		case ch, ok := <-changes:
			if !ok {
				return
			}
			err = s.push(ctx, ch.Reason, ch.Location)
		case <-quiet.C:
			err = s.push(ctx, reasonHeartbeat, "")
		}
		if err != nil {
			s.log.Infow("ws_write_failed", "err", err)
			return
		}
		resetTimer(quiet, s.heartbeat)
	}
}

// push writes the current state, or an error envelope when it cannot be loaded.
func (s *stateStream) push(ctx context.Context, reason, location string) error {
	st, err := s.monitor.GetState(ctx)
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err != nil {
		s.log.Errorw("ws_get_state_failed", "err", err)
		_ = s.conn.WriteJSON(wsEnvelope{Type: "error", Error: errGetState})
		return err
	}
	return s.conn.WriteJSON(wsEnvelope{Type: "state", Reason: reason, Location: location, Data: st})
}

// readUntilClosed consumes control frames and closes done when the client goes away.
func (s *stateStream) readUntilClosed(done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			s.log.Infow("ws_read_closed", "err", err)
			return
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// parseInterval reads ?interval=2s or ?interval_ms=2000, falling back to the
// configured heartbeat.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	interval := h.streamInterval
	if interval <= 0 {
		interval = defaultInterval
	}
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}
	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}
	return interval
}

func (h *Handler) logger() *logger.Logger {
	if h.log == nil {
		return logger.NewNop()
	}
	return h.log
}
