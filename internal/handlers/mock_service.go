package handlers

import (
	"context"
	"sync"

	"paletten_hub/internal/models"
	"paletten_hub/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockControl struct {
	decision service.Decision
	err      error

	lastLocation string
	lastDesired  int
	lastEnabled  bool
	setpointCall int
	autoCalls    int
}

func (m *mockControl) SetDesiredTemperature(ctx context.Context, location string, desired int) (service.Decision, error) {
	m.setpointCall++
	m.lastLocation = location
	m.lastDesired = desired
	return m.decision, m.err
}

func (m *mockControl) SetEnabled(ctx context.Context, location string, enabled bool) (service.Decision, error) {
	m.autoCalls++
	m.lastLocation = location
	m.lastEnabled = enabled
	return m.decision, m.err
}

type mockMonitoring struct {
	state models.HubState
	err   error

	// changes is returned by Subscribe; nil never delivers
	changes      chan service.Change
	unsubscribed chan struct{}
}

func (m *mockMonitoring) GetState(ctx context.Context) (models.HubState, error) {
	return m.state, m.err
}

func (m *mockMonitoring) Subscribe() (<-chan service.Change, func()) {
	var once sync.Once
	return m.changes, func() {
		once.Do(func() {
			if m.unsubscribed != nil {
				close(m.unsubscribed)
			}
		})
	}
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}
