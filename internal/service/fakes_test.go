package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"paletten_hub/internal/models"
	"paletten_hub/internal/repository"
)

type fakeHistory struct {
	mu         sync.Mutex
	readings   []models.Reading
	events     []models.HeaterEvent
	readingErr error
	eventErr   error
}

func (f *fakeHistory) RecordReading(ctx context.Context, r models.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readingErr != nil {
		return f.readingErr
	}
	f.readings = append(f.readings, r)
	return nil
}

func (f *fakeHistory) RecordHeaterEvent(ctx context.Context, e models.HeaterEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.eventErr != nil {
		return f.eventErr
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakeHistory) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.readings), len(f.events)
}

type fakeSettings struct {
	mu    sync.Mutex
	saved []models.LocationSettings
	err   error
}

func (f *fakeSettings) Save(ctx context.Context, s models.LocationSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, s)
	return nil
}

func (f *fakeSettings) LoadAll(ctx context.Context) ([]models.LocationSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.LocationSettings(nil), f.saved...), f.err
}

// fakeDispatcher records commands; queued errs are returned one per call.
type fakeDispatcher struct {
	mu   sync.Mutex
	cmds []models.HeaterCommand
	errs []error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, cmd models.HeaterCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

func (f *fakeDispatcher) commands() []models.HeaterCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.HeaterCommand(nil), f.cmds...)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type coordinatorFixture struct {
	c        *Coordinator
	history  *fakeHistory
	settings *fakeSettings
	disp     *fakeDispatcher
	clock    *fakeClock
}

var testLocations = []LocationConfig{
	{Name: "stue", HeaterID: "C4402D", DesiredTemperature: 20, Enabled: true},
	{Name: "sofa", HeaterID: "C431FB", DesiredTemperature: 21, Enabled: true},
	{Name: "soverom", HeaterID: "10DB9C", DesiredTemperature: 18, Enabled: false},
}

func newCoordinatorFixture(t *testing.T, cfg CoordinatorConfig) *coordinatorFixture {
	t.Helper()
	f := &coordinatorFixture{
		history:  &fakeHistory{},
		settings: &fakeSettings{},
		disp:     &fakeDispatcher{},
		clock:    &fakeClock{t: time.Date(2026, 1, 10, 6, 0, 0, 0, time.UTC)},
	}
	repos := &repository.Repository{History: f.history, Settings: f.settings}
	f.c = NewCoordinator(cfg, testLocations, repos, f.disp, nil, nil)
	f.c.now = f.clock.now
	n := 0
	f.c.newID = func() string {
		n++
		return fmt.Sprintf("cmd-%d", n)
	}
	return f
}

func newReading(location string, temperature int) models.Reading {
	return models.Reading{
		Location:    location,
		Timestamp:   time.Date(2026, 1, 10, 6, 0, 0, 0, time.UTC),
		Temperature: temperature,
		Humidity:    40,
	}
}
