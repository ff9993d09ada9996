package gpsnmea

import (
	"context"
	"io/fs"
	"os"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/geolocation/components/geolocation"
	"go.viam.com/geolocation/components/geolocation/internal/filter"
	"go.viam.com/geolocation/logging"
	"go.viam.com/geolocation/utils"
)

var errStreamEnded = errors.New("NMEA stream ended")

// Manager is a geolocation.Manager backed by an NMEA receiver. Being able to open the device is
// what authorization means here. The device stays open from the first request for fixes or
// headings until the stream ends or the Manager is closed.
type Manager struct {
	mu      sync.Mutex
	cfg     *Config
	open    func() (DataReader, error)
	exists  func() bool
	clock   clock.Clock
	logger  logging.Logger
	workers utils.StoppableWorkers
	closed  bool

	delegate geolocation.Delegate
	status   geolocation.AuthorizationStatus
	reader   DataReader
	parser   *nmeaParser
	updates  filter.Updates
}

var _ geolocation.Manager = (*Manager)(nil)

// NewManager returns a Manager reading from the source cfg describes.
func NewManager(cfg *Config, clk clock.Clock, logger logging.Logger) (*Manager, error) {
	if err := cfg.Validate("gpsnmea"); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = logging.NewBlankLogger("gpsnmea")
	}
	open := func() (DataReader, error) {
		if cfg.ConnectionType == ConnectionTypeFile {
			return NewFileDataReader(cfg.LogPath, cfg.lineInterval(), clk, logger)
		}
		return NewSerialDataReader(cfg, logger)
	}
	exists := func() bool {
		_, err := os.Stat(cfg.devicePath())
		return err == nil
	}
	return newManager(cfg, open, exists, clk, logger), nil
}

func newManager(
	cfg *Config, open func() (DataReader, error), exists func() bool, clk clock.Clock, logger logging.Logger,
) *Manager {
	return &Manager{
		cfg:     cfg,
		open:    open,
		exists:  exists,
		clock:   clk,
		logger:  logger,
		workers: utils.NewStoppableWorkers(),
		status:  geolocation.AuthorizationNotDetermined,
		parser:  newNMEAParser(cfg.receiverUERE(), clk.Now),
		updates: filter.NewUpdates(),
	}
}

// SetDelegate sets the receiver of callbacks. nil detaches.
func (m *Manager) SetDelegate(d geolocation.Delegate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delegate = d
}

// AuthorizationStatus reports the result of the last attempt to open the device.
func (m *Manager) AuthorizationStatus() geolocation.AuthorizationStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// RequestWhenInUseAuthorization opens the device. The outcome is reported to the delegate.
func (m *Manager) RequestWhenInUseAuthorization() {
	m.requestAuthorization()
}

// RequestAlwaysAuthorization opens the device. The outcome is reported to the delegate.
func (m *Manager) RequestAlwaysAuthorization() {
	m.requestAuthorization()
}

// requestAuthorization checks that the device can be opened. A device that is not already being
// read is closed again right away, so that no sentences are consumed before a fix is requested.
func (m *Manager) requestAuthorization() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	previous := m.status
	var probe DataReader
	if m.reader == nil {
		reader, err := m.open()
		if err != nil {
			m.status = statusForOpenError(err)
			m.logger.Warnw("can't open NMEA source", "error", err, "status", m.status)
		} else {
			m.status = geolocation.AuthorizationAuthorizedAlways
			probe = reader
		}
	}
	status, d := m.status, m.delegate
	m.mu.Unlock()

	if probe != nil {
		if err := probe.Close(); err != nil {
			m.logger.Debugw("closing NMEA source after authorization", "error", err)
		}
	}
	if status != previous && d != nil {
		d.DidChangeAuthorization(status)
	}
}

// StartUpdatingLocation delivers every accepted fix until StopUpdatingLocation.
func (m *Manager) StartUpdatingLocation() {
	m.start(m.updates.StartLocation)
}

// StopUpdatingLocation stops continuous delivery. A pending RequestLocation is still served.
func (m *Manager) StopUpdatingLocation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates.UpdatingLocation = false
}

// StartUpdatingHeading delivers heading changes larger than the heading filter.
func (m *Manager) StartUpdatingHeading() {
	m.start(m.updates.StartHeading)
}

// StopUpdatingHeading stops heading delivery.
func (m *Manager) StopUpdatingHeading() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates.UpdatingHeading = false
}

// RequestLocation delivers the next accepted fix once.
func (m *Manager) RequestLocation() {
	m.start(func() {
		m.updates.PendingRequest = true
	})
}

// start opens the device if needed and applies mark. Failure to open is reported to the delegate
// as an authorization change and a failure.
func (m *Manager) start(mark func()) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	ok, changed, err := m.ensureReaderLocked()
	if ok {
		mark()
	}
	status, d := m.status, m.delegate
	m.mu.Unlock()

	if d == nil {
		return
	}
	if changed {
		d.DidChangeAuthorization(status)
	}
	if err != nil {
		d.DidFailWithError(err)
	}
}

// ensureReaderLocked opens the device if it is not open. It reports whether a reader is running,
// whether the authorization status changed, and the open error.
func (m *Manager) ensureReaderLocked() (bool, bool, error) {
	if m.reader != nil {
		return true, false, nil
	}
	reader, err := m.open()
	previous := m.status
	if err != nil {
		m.status = statusForOpenError(err)
		m.logger.Warnw("can't open NMEA source", "error", err, "status", m.status)
		return false, m.status != previous, err
	}
	m.status = geolocation.AuthorizationAuthorizedAlways
	m.reader = reader
	m.workers.AddWorkers(func(ctx context.Context) {
		m.consume(ctx, reader)
	})
	return true, m.status != previous, nil
}

func statusForOpenError(err error) geolocation.AuthorizationStatus {
	if errors.Is(err, fs.ErrPermission) {
		return geolocation.AuthorizationDenied
	}
	return geolocation.AuthorizationRestricted
}

// SetDesiredAccuracy drops fixes whose horizontal accuracy is known and worse than meters.
// geolocation.AccuracyBest accepts everything.
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

// LocationServicesEnabled reports whether the serial device or log file exists.
func (m *Manager) LocationServicesEnabled() bool {
	return m.exists()
}

// Close stops reading and releases the device.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	reader := m.reader
	m.reader = nil
	m.mu.Unlock()

	var err error
	if reader != nil {
		err = reader.Close()
	}
	m.workers.Stop()
	return err
}

func (m *Manager) consume(ctx context.Context, reader DataReader) {
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-reader.Messages():
			if !ok {
				m.streamEnded(reader)
				return
			}
			m.handleLine(line)
		}
	}
}

func (m *Manager) handleLine(line string) {
	m.mu.Lock()
	loc, heading, err := m.parser.parse(line)
	if err != nil {
		m.mu.Unlock()
		m.logger.Debugw("skipping sentence", "error", err)
		return
	}
	var deliverLoc *geolocation.RawLocation
	if loc != nil && m.acceptLocationLocked(*loc) {
		deliverLoc = loc
	}
	var deliverHeading *geolocation.RawHeading
	if heading != nil && m.acceptHeadingLocked(*heading) {
		deliverHeading = heading
	}
	d := m.delegate
	m.mu.Unlock()

	if d == nil {
		return
	}
	if deliverLoc != nil {
		d.DidUpdateLocations([]geolocation.RawLocation{*deliverLoc})
	}
	if deliverHeading != nil {
		d.DidUpdateHeading(*deliverHeading)
	}
}

func (m *Manager) acceptLocationLocked(loc geolocation.RawLocation) bool {
	if m.updates.Active() && m.updates.TooInaccurate(loc.HorizontalAccuracy) {
		m.logger.Debugw("dropping inaccurate fix", "accuracy", loc.HorizontalAccuracy, "desired", m.updates.DesiredAccuracy)
		return false
	}
	return m.updates.AcceptLocation(loc.Coordinate, loc.HorizontalAccuracy)
}

// acceptHeadingLocked prefers the true heading and falls back to the magnetic one.
func (m *Manager) acceptHeadingLocked(h geolocation.RawHeading) bool {
	value := h.TrueHeading
	if !geolocation.ValidHeadingValue(value) {
		value = h.MagneticHeading
	}
	if !geolocation.ValidHeadingValue(value) {
		return false
	}
	return m.updates.AcceptHeading(value)
}

// streamEnded forgets the reader so the next request reopens the device, and fails whatever is
// waiting for a fix.
func (m *Manager) streamEnded(reader DataReader) {
	m.mu.Lock()
	if m.closed || m.reader != reader {
		m.mu.Unlock()
		return
	}
	m.reader = nil
	active := m.updates.Active()
	m.updates.PendingRequest = false
	d := m.delegate
	m.mu.Unlock()

	cause := errStreamEnded
	if err := reader.Err(); err != nil {
		cause = errors.Wrap(err, errStreamEnded.Error())
	}
	if closeErr := reader.Close(); closeErr != nil {
		m.logger.Debugw("closing ended NMEA source", "error", closeErr)
	}
	m.logger.Infow("NMEA stream ended", "error", cause)
	if active && d != nil {
		d.DidFailWithError(cause)
	}
}
