package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"paletten_hub/internal/logger"
	"paletten_hub/internal/metrics"
	"paletten_hub/internal/models"
	"paletten_hub/internal/repository"
)

// Dispatcher delivers heater commands. CommandDispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd models.HeaterCommand) error
}

// LocationConfig is the static configuration of one controlled location.
type LocationConfig struct {
	Name               string
	HeaterID           string
	DesiredTemperature int
	Enabled            bool
}

type CoordinatorConfig struct {
	Margin   int
	Cooldown time.Duration
}

// Decision describes what one evaluation did.
type Decision struct {
	Location string             `json:"location"`
	From     models.HeaterState `json:"from"`
	To       models.HeaterState `json:"to"`
	// Transitioned is set when a command was dispatched for a new state.
	Transitioned bool `json:"transitioned"`
	// Suppressed is set when a transition was held back by the cooldown.
	Suppressed bool `json:"suppressed"`
	// Reconciled is set when the believed state was re-sent after a failed dispatch.
	Reconciled bool `json:"reconciled"`
}

// locationState is the control state of one location. opMu serializes
// evaluations (which may block on dispatch); mu guards the fields and is
// only held briefly so snapshots never wait on the network.
type locationState struct {
	opMu sync.Mutex

	mu               sync.Mutex
	name             string
	heaterID         string
	desired          int
	enabled          bool
	lastReading      *models.Reading
	heater           models.HeaterState
	lastTransitionAt time.Time
	divergent        bool
}

func (s *locationState) snapshot() models.LocationSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := models.LocationSnapshot{
		Location:           s.name,
		HeaterID:           s.heaterID,
		DesiredTemperature: s.desired,
		Enabled:            s.enabled,
		HeaterState:        s.heater,
		LastTransitionAt:   s.lastTransitionAt,
		Divergent:          s.divergent,
	}
	if s.lastReading != nil {
		r := *s.lastReading
		snap.LastReading = &r
	}
	return snap
}

// Coordinator owns the control state of every configured location and turns
// readings into heater commands.
type Coordinator struct {
	cfg        CoordinatorConfig
	locations  map[string]*locationState
	history    repository.History
	settings   repository.Settings
	dispatcher Dispatcher
	log        *logger.Logger
	metrics    *metrics.Metrics
	changes    *ChangeFeed

	// decision clock and command ids, swapped in tests
	now   func() time.Time
	newID func() string
}

func NewCoordinator(
	cfg CoordinatorConfig,
	locations []LocationConfig,
	repos *repository.Repository,
	dispatcher Dispatcher,
	log *logger.Logger,
	m *metrics.Metrics,
) *Coordinator {
	if log == nil {
		log = logger.NewNop()
	}
	c := &Coordinator{
		cfg:        cfg,
		locations:  make(map[string]*locationState, len(locations)),
		history:    repos.History,
		settings:   repos.Settings,
		dispatcher: dispatcher,
		log:        log,
		metrics:    m,
		changes:    NewChangeFeed(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, l := range locations {
		c.locations[l.Name] = &locationState{
			name:     l.Name,
			heaterID: l.HeaterID,
			desired:  l.DesiredTemperature,
			enabled:  l.Enabled,
			heater:   models.HeaterUnknown,
		}
	}
	return c
}

// Changes is the feed of per-location state changes.
func (c *Coordinator) Changes() *ChangeFeed {
	return c.changes
}

// Configured reports whether location has control state.
func (c *Coordinator) Configured(location string) bool {
	_, ok := c.locations[location]
	return ok
}

func (c *Coordinator) lookup(location string) (*locationState, error) {
	st, ok := c.locations[location]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnconfiguredLocation, location)
	}
	return st, nil
}

// HandleReading persists r and, for an enabled configured location, decides
// whether its heater must change state. The reading is stored even when the
// location is unknown or disabled. Storage and dispatch failures are logged
// and returned (wrapping ErrStorage / ErrDispatchFailed) but never undo the
// in-memory decision.
func (c *Coordinator) HandleReading(ctx context.Context, r models.Reading) (Decision, error) {
	storageErr := c.recordReading(ctx, r)

	st, err := c.lookup(r.Location)
	if err != nil {
		c.metrics.Unconfigured()
		return Decision{Location: r.Location}, errors.Join(err, storageErr)
	}
	c.metrics.Reading(r.Location)

	st.opMu.Lock()
	defer st.opMu.Unlock()

	st.mu.Lock()
	reading := r
	st.lastReading = &reading
	st.mu.Unlock()

	d, err := c.evaluate(ctx, st)
	c.notify(st, d, ChangeReading)
	return d, errors.Join(storageErr, err)
}

// SetDesiredTemperature changes the setpoint of location, persists the
// override and re-evaluates against the last reading.
func (c *Coordinator) SetDesiredTemperature(ctx context.Context, location string, desired int) (Decision, error) {
	if err := validateSetpoint(desired); err != nil {
		return Decision{Location: location}, err
	}
	st, err := c.lookup(location)
	if err != nil {
		return Decision{Location: location}, err
	}

	st.opMu.Lock()
	defer st.opMu.Unlock()

	st.mu.Lock()
	st.desired = desired
	st.mu.Unlock()
	c.log.Infow("setpoint_changed", "location", location, "desired_temperature", desired)

	storageErr := c.saveSettings(ctx, st)
	d, err := c.evaluate(ctx, st)
	c.notify(st, d, ChangeSetpoint)
	return d, errors.Join(storageErr, err)
}

// SetEnabled switches automatic control of location on or off. Disabling
// sends nothing; the heater keeps its last commanded state.
func (c *Coordinator) SetEnabled(ctx context.Context, location string, enabled bool) (Decision, error) {
	st, err := c.lookup(location)
	if err != nil {
		return Decision{Location: location}, err
	}

	st.opMu.Lock()
	defer st.opMu.Unlock()

	st.mu.Lock()
	st.enabled = enabled
	st.mu.Unlock()
	c.log.Infow("auto_mode_changed", "location", location, "enabled", enabled)

	storageErr := c.saveSettings(ctx, st)
	d, err := c.evaluate(ctx, st)
	c.notify(st, d, ChangeAuto)
	return d, errors.Join(storageErr, err)
}

// ApplySettings loads persisted overrides into the configured locations.
// Settings of locations no longer configured are ignored.
func (c *Coordinator) ApplySettings(settings []models.LocationSettings) {
	for _, s := range settings {
		st, ok := c.locations[s.Location]
		if !ok {
			c.log.Warnw("stale_location_settings", "location", s.Location)
			continue
		}
		if validateSetpoint(s.DesiredTemperature) != nil {
			c.log.Warnw("invalid_location_settings", "location", s.Location,
				"desired_temperature", s.DesiredTemperature)
			continue
		}
		st.mu.Lock()
		st.desired = s.DesiredTemperature
		st.enabled = s.Enabled
		st.mu.Unlock()
	}
}

// Snapshot returns the control state of every location, ordered by name.
func (c *Coordinator) Snapshot() []models.LocationSnapshot {
	out := make([]models.LocationSnapshot, 0, len(c.locations))
	for _, st := range c.locations {
		out = append(out, st.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out
}

// LocationSnapshot returns the control state of one location.
func (c *Coordinator) LocationSnapshot(location string) (models.LocationSnapshot, error) {
	st, err := c.lookup(location)
	if err != nil {
		return models.LocationSnapshot{}, err
	}
	return st.snapshot(), nil
}

// evaluate runs the decision for st. Caller holds st.opMu.
func (c *Coordinator) evaluate(ctx context.Context, st *locationState) (Decision, error) {
	st.mu.Lock()
	var (
		reading   = st.lastReading
		current   = st.heater
		desired   = st.desired
		enabled   = st.enabled
		lastAt    = st.lastTransitionAt
		divergent = st.divergent
	)
	st.mu.Unlock()

	d := Decision{Location: st.name, From: current, To: current}
	if !enabled || reading == nil {
		return d, nil
	}

	next, changed := Decide(current, reading.Temperature, desired, c.cfg.Margin)
	if !changed {
		if divergent && current != models.HeaterUnknown {
			return c.reconcile(ctx, st, d)
		}
		return d, nil
	}

	now := c.now()
	if !lastAt.IsZero() && now.Sub(lastAt) < c.cfg.Cooldown {
		d.Suppressed = true
		c.metrics.Suppressed(st.name)
		c.log.Infow("heater_transition_suppressed", "location", st.name, "shelly_id", st.heaterID,
			"from", current, "to", next, "temperature", reading.Temperature,
			"desired_temperature", desired, "cooldown_remaining", (c.cfg.Cooldown - now.Sub(lastAt)).String())
		return d, nil
	}

	cmd := models.HeaterCommand{
		ID:        c.newID(),
		ShellyID:  st.heaterID,
		IsActive:  next.IsActive(),
		Timestamp: now,
	}
	dispatchErr := c.dispatcher.Dispatch(ctx, cmd)

	// the believed state follows the decision even if the publish failed
	st.mu.Lock()
	st.heater = next
	st.lastTransitionAt = now
	st.divergent = dispatchErr != nil
	st.mu.Unlock()

	d.To = next
	d.Transitioned = true
	c.metrics.Transition(st.name, string(next))
	c.metrics.SetDivergent(st.name, dispatchErr != nil)

	if dispatchErr != nil {
		c.log.Errorw("heater_state_divergence", "err", dispatchErr, "location", st.name,
			"shelly_id", st.heaterID, "believed_state", next, "command_id", cmd.ID)
	} else {
		c.log.Infow("heater_transition", "location", st.name, "shelly_id", st.heaterID,
			"from", current, "to", next, "temperature", reading.Temperature,
			"desired_temperature", desired, "command_id", cmd.ID)
	}

	var storageErr error
	if err := c.history.RecordHeaterEvent(ctx, models.HeaterEvent{
		ShellyID:  st.heaterID,
		IsActive:  cmd.IsActive,
		Timestamp: now,
	}); err != nil {
		c.metrics.StorageFailure("heater_history")
		c.log.Errorw("heater_history_write_failed", "err", err, "location", st.name, "shelly_id", st.heaterID)
		storageErr = fmt.Errorf("%w: %w", ErrStorage, err)
	}

	return d, errors.Join(dispatchErr, storageErr)
}

// reconcile re-sends the believed state of a divergent location. It writes
// no history and ignores the cooldown.
func (c *Coordinator) reconcile(ctx context.Context, st *locationState, d Decision) (Decision, error) {
	cmd := models.HeaterCommand{
		ID:        c.newID(),
		ShellyID:  st.heaterID,
		IsActive:  d.From.IsActive(),
		Timestamp: c.now(),
	}
	if err := c.dispatcher.Dispatch(ctx, cmd); err != nil {
		c.log.Warnw("heater_reconcile_failed", "err", err, "location", st.name, "shelly_id", st.heaterID)
		return d, err
	}

	st.mu.Lock()
	st.divergent = false
	st.mu.Unlock()
	c.metrics.SetDivergent(st.name, false)
	c.log.Infow("heater_state_reconciled", "location", st.name, "shelly_id", st.heaterID,
		"state", d.From, "command_id", cmd.ID)

	d.Reconciled = true
	return d, nil
}

// notify publishes what an evaluation of st did. Caller holds st.opMu.
func (c *Coordinator) notify(st *locationState, d Decision, fallback string) {
	st.mu.Lock()
	divergent := st.divergent
	st.mu.Unlock()
	c.changes.publish(Change{Location: st.name, Reason: changeReason(d, divergent, fallback), At: c.now().UTC()})
}

func (c *Coordinator) recordReading(ctx context.Context, r models.Reading) error {
	if err := c.history.RecordReading(ctx, r); err != nil {
		c.metrics.StorageFailure("history")
		c.log.Errorw("history_write_failed", "err", err, "location", r.Location)
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

func (c *Coordinator) saveSettings(ctx context.Context, st *locationState) error {
	if c.settings == nil {
		return nil
	}
	st.mu.Lock()
	s := models.LocationSettings{
		Location:           st.name,
		DesiredTemperature: st.desired,
		Enabled:            st.enabled,
		UpdatedAt:          c.now().UTC(),
	}
	st.mu.Unlock()

	if err := c.settings.Save(ctx, s); err != nil {
		c.metrics.StorageFailure("location_settings")
		c.log.Errorw("settings_write_failed", "err", err, "location", st.name)
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}
