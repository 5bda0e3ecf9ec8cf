package service

import (
	"context"
	"testing"
	"time"

	"paletten_hub/internal/models"
)

func TestMonitoringService_GetState(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, CoordinatorConfig{Margin: 1})
	f.c.HandleReading(context.Background(), newReading("stue", 18))

	oslo := time.FixedZone("CET", 3600)
	connectedAt := time.Date(2026, 1, 10, 7, 0, 0, 0, oslo)
	svc := NewMonitoringService(f.c, func() models.BrokerStatus {
		return models.BrokerStatus{Connected: true, LastConnectedAt: connectedAt, Reconnects: 2}
	})
	svc.now = func() time.Time { return time.Date(2026, 1, 10, 7, 30, 0, 0, oslo) }

	st, err := svc.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if !st.Broker.Connected || st.Broker.Reconnects != 2 {
		t.Errorf("broker = %+v", st.Broker)
	}
	if st.Broker.LastConnectedAt.Location() != time.UTC || st.UpdatedAt.Location() != time.UTC {
		t.Errorf("times must be UTC")
	}
	if len(st.Locations) != len(testLocations) {
		t.Fatalf("want %d locations, got %d", len(testLocations), len(st.Locations))
	}
	for _, loc := range st.Locations {
		if loc.Location == "stue" && loc.HeaterState != models.HeaterOn {
			t.Errorf("stue heater = %s", loc.HeaterState)
		}
		if loc.Location != "stue" && !loc.LastTransitionAt.IsZero() {
			t.Errorf("%s: zero transition time must stay zero", loc.Location)
		}
	}
}

func TestMonitoringService_GetState_CancelledContext(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, CoordinatorConfig{})
	svc := NewMonitoringService(f.c, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.GetState(ctx); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestNewService_Wiring(t *testing.T) {
	f := newCoordinatorFixture(t, CoordinatorConfig{})
	svc := NewService(f.c, nil)
	if svc.Control == nil || svc.Monitoring == nil {
		t.Fatalf("service not wired")
	}
	st, err := svc.GetState(context.Background())
	if err != nil || st.Broker.Connected {
		t.Fatalf("unexpected state %+v err=%v", st, err)
	}
}
