// Package fake is a fake geolocation.Manager for testing. It walks in a slow circle around an
// origin, producing one fix and one heading per interval.
package fake

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	geo "github.com/kellydunn/golang-geo"

	"go.viam.com/geolocation/components/geolocation"
	"go.viam.com/geolocation/components/geolocation/internal/filter"
	"go.viam.com/geolocation/logging"
	"go.viam.com/geolocation/utils"
)

const (
	defaultLatitude    = 40.7
	defaultLongitude   = -73.98
	defaultAltitude    = 50.5
	defaultSpeed       = 5.4
	defaultHeading     = 25.0
	defaultHeadingStep = 25.0
	defaultInterval    = time.Second
	fixAccuracy        = 5.0
	headingAccuracy    = 2.0
)

// Config controls the simulated walk. Zero values take defaults.
type Config struct {
	Latitude         float64 `json:"latitude,omitempty"`
	Longitude        float64 `json:"longitude,omitempty"`
	IntervalMs       int     `json:"interval_ms,omitempty"`
	HeadingStep      float64 `json:"heading_step,omitempty"`
	ServicesDisabled bool    `json:"services_disabled,omitempty"`
}

// Manager is a simulated receiver. Authorization is granted as soon as it is requested.
type Manager struct {
	mu       sync.Mutex
	clock    clock.Clock
	logger   logging.Logger
	interval time.Duration
	step     float64
	enabled  bool
	workers  utils.StoppableWorkers

	delegate geolocation.Delegate
	status   geolocation.AuthorizationStatus
	position *geo.Point
	heading  float64
	updates  filter.Updates
}

var _ geolocation.Manager = (*Manager)(nil)

// NewManager starts the simulation. A nil clock means the real clock and a nil logger discards
// output.
func NewManager(cfg Config, clk clock.Clock, logger logging.Logger) *Manager {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = logging.NewBlankLogger("fake")
	}
	lat, lng := cfg.Latitude, cfg.Longitude
	if lat == 0 && lng == 0 {
		lat, lng = defaultLatitude, defaultLongitude
	}
	interval := time.Duration(cfg.IntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = defaultInterval
	}
	step := cfg.HeadingStep
	if step == 0 {
		step = defaultHeadingStep
	}

	m := &Manager{
		clock:    clk,
		logger:   logger,
		interval: interval,
		step:     step,
		enabled:  !cfg.ServicesDisabled,
		status:   geolocation.AuthorizationNotDetermined,
		position: geo.NewPoint(lat, lng),
		heading:  defaultHeading,
		updates:  filter.NewUpdates(),
	}
	ticker := clk.Ticker(interval)
	m.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.tick()
			}
		}
	})
	return m
}

// SetDelegate sets the receiver of simulated callbacks. nil detaches.
func (m *Manager) SetDelegate(d geolocation.Delegate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delegate = d
}

// AuthorizationStatus is NotDetermined until authorization is requested.
func (m *Manager) AuthorizationStatus() geolocation.AuthorizationStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// RequestWhenInUseAuthorization grants AuthorizedWhenInUse.
func (m *Manager) RequestWhenInUseAuthorization() {
	m.grant(geolocation.AuthorizationAuthorizedWhenInUse)
}

// RequestAlwaysAuthorization grants AuthorizedAlways.
func (m *Manager) RequestAlwaysAuthorization() {
	m.grant(geolocation.AuthorizationAuthorizedAlways)
}

func (m *Manager) grant(status geolocation.AuthorizationStatus) {
	m.mu.Lock()
	changed := m.status != status
	m.status = status
	d := m.delegate
	m.mu.Unlock()

	if changed && d != nil {
		d.DidChangeAuthorization(status)
	}
}

// StartUpdatingLocation delivers a fix on every tick that passes the filters.
func (m *Manager) StartUpdatingLocation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates.StartLocation()
}

// StopUpdatingLocation stops continuous fixes.
func (m *Manager) StopUpdatingLocation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates.UpdatingLocation = false
}

// StartUpdatingHeading delivers the rotating heading on every tick that passes the filter.
func (m *Manager) StartUpdatingHeading() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates.StartHeading()
}

// StopUpdatingHeading stops heading delivery.
func (m *Manager) StopUpdatingHeading() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates.UpdatingHeading = false
}

// RequestLocation delivers the fix of the next tick.
func (m *Manager) RequestLocation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates.PendingRequest = true
}

// SetDesiredAccuracy drops every fix when meters is below the simulated accuracy.
func (m *Manager) SetDesiredAccuracy(meters float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates.DesiredAccuracy = meters
}

// SetDistanceFilter suppresses continuous fixes closer than meters to the last delivered one.
func (m *Manager) SetDistanceFilter(meters float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates.DistanceFilter = meters
}

// SetHeadingFilter suppresses heading changes smaller than degrees.
func (m *Manager) SetHeadingFilter(degrees float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates.HeadingFilter = degrees
}

// LocationServicesEnabled is false only when Config.ServicesDisabled is set.
func (m *Manager) LocationServicesEnabled() bool {
	return m.enabled
}

// Close stops the simulation.
func (m *Manager) Close() error {
	m.workers.Stop()
	return nil
}

func (m *Manager) tick() {
	m.mu.Lock()
	m.heading = math.Mod(m.heading+m.step, 360)
	// PointAtDistanceAndBearing takes kilometres.
	m.position = m.position.PointAtDistanceAndBearing(defaultSpeed*m.interval.Seconds()/1000, m.heading)
	now := m.clock.Now()

	var loc *geolocation.RawLocation
	if m.updates.AcceptLocation(m.position, fixAccuracy) {
		loc = &geolocation.RawLocation{
			Coordinate:         m.position,
			Altitude:           defaultAltitude,
			Course:             m.heading,
			Speed:              defaultSpeed,
			HorizontalAccuracy: fixAccuracy,
			VerticalAccuracy:   fixAccuracy,
			Timestamp:          now,
		}
	}
	var heading *geolocation.RawHeading
	if m.updates.AcceptHeading(m.heading) {
		m.logger.Debugw("simulated heading", "heading", m.heading)
		heading = &geolocation.RawHeading{
			MagneticHeading: m.heading,
			TrueHeading:     m.heading,
			HeadingAccuracy: headingAccuracy,
			Timestamp:       now,
		}
	}
	d := m.delegate
	m.mu.Unlock()

	if d == nil {
		return
	}
	if loc != nil {
		d.DidUpdateLocations([]geolocation.RawLocation{*loc})
	}
	if heading != nil {
		d.DidUpdateHeading(*heading)
	}
}
