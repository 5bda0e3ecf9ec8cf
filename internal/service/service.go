package service

import (
	"context"

	"paletten_hub/internal/models"
)

// Control exposes operator overrides of a location's control settings.
type Control interface {
	SetDesiredTemperature(ctx context.Context, location string, desired int) (Decision, error)
	SetEnabled(ctx context.Context, location string, enabled bool) (Decision, error)
}

// Monitoring exposes read-only control state.
type Monitoring interface {
	GetState(ctx context.Context) (models.HubState, error)
	// Subscribe streams location changes until the returned func is called.
	Subscribe() (<-chan Change, func())
}

// Service aggregates what the HTTP layer needs.
type Service struct {
	Control
	Monitoring
}

func NewService(coordinator *Coordinator, broker BrokerStatusFunc) *Service {
	return &Service{
		Control:    coordinator,
		Monitoring: NewMonitoringService(coordinator, broker),
	}
}
