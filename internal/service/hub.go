package service

import (
	"context"
	"errors"

	"paletten_hub/internal/logger"
	"paletten_hub/internal/mqtt"
)

const unconfiguredLane = "~unconfigured"

// Hub is the driving loop: it consumes the supervisor's event stream and
// routes each message to the lane of its location.
type Hub struct {
	ingest      *Ingest
	coordinator *Coordinator
	lanes       *Lanes
	log         *logger.Logger
}

func NewHub(ingest *Ingest, coordinator *Coordinator, lanes *Lanes, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{ingest: ingest, coordinator: coordinator, lanes: lanes, log: log}
}

// Run consumes events until ctx is cancelled or the stream closes. It does
// not drain the lanes; call Lanes.Close afterwards.
func (h *Hub) Run(ctx context.Context, events <-chan mqtt.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.handle(ev)
		}
	}
}

func (h *Hub) handle(ev mqtt.Event) {
	switch ev.Kind {
	case mqtt.EventConnected:
		h.log.Infow("hub_ready")
	case mqtt.EventDisconnected:
		h.log.Warnw("hub_offline", "err", ev.Err)
	case mqtt.EventMessage:
		h.route(ev.Message)
	}
}

func (h *Hub) route(msg mqtt.Message) {
	in, err := h.ingest.Classify(msg)
	if err != nil {
		h.ingest.reject(msg, err)
		return
	}

	// unknown locations share one lane so stray topics cannot spawn goroutines
	key := in.Location
	if !h.coordinator.Configured(key) {
		key = unconfiguredLane
	}

	submitted := h.lanes.Submit(key, func(ctx context.Context) {
		d, err := h.ingest.Apply(ctx, in)
		if err != nil && !errors.Is(err, ErrUnconfiguredLocation) {
			h.log.Debugw("inbound_failed", "err", err, "location", in.Location, "kind", in.Kind.String())
		}
		if d.Transitioned || d.Suppressed || d.Reconciled {
			h.log.Debugw("inbound_applied", "location", d.Location, "from", d.From, "to", d.To,
				"transitioned", d.Transitioned, "suppressed", d.Suppressed, "reconciled", d.Reconciled)
		}
	})
	if !submitted {
		h.log.Warnw("inbound_dropped_shutdown", "topic", msg.Topic)
	}
}
