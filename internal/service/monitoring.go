package service

import (
	"context"
	"time"

	"paletten_hub/internal/models"
)

// BrokerStatusFunc reports the MQTT session status (mqtt.Supervisor.Status).
type BrokerStatusFunc func() models.BrokerStatus

type MonitoringService struct {
	coordinator *Coordinator
	broker      BrokerStatusFunc
	now         func() time.Time
}

func NewMonitoringService(coordinator *Coordinator, broker BrokerStatusFunc) *MonitoringService {
	return &MonitoringService{coordinator: coordinator, broker: broker, now: time.Now}
}

// GetState returns the live control state of every location plus the broker status.
func (s *MonitoringService) GetState(ctx context.Context) (models.HubState, error) {
	if err := ctx.Err(); err != nil {
		return models.HubState{}, err
	}
	st := models.HubState{
		Locations: s.coordinator.Snapshot(),
		UpdatedAt: s.now().UTC(),
	}
	if s.broker != nil {
		st.Broker = s.broker()
		st.Broker.LastConnectedAt = toUTC(st.Broker.LastConnectedAt)
	}
	for i := range st.Locations {
		st.Locations[i].LastTransitionAt = toUTC(st.Locations[i].LastTransitionAt)
	}
	return st, nil
}

// Subscribe follows the coordinator's change feed.
func (s *MonitoringService) Subscribe() (<-chan Change, func()) {
	return s.coordinator.Changes().Subscribe()
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
