package geolocation

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"go.viam.com/geolocation/logging"
)

// LocationEvent is one value on the location stream: either a Position or an error.
type LocationEvent struct {
	Position Position
	Err      *LocationError
}

// WrapperOption customizes a Wrapper.
type WrapperOption func(*Wrapper)

// WithServicesChecker replaces the default ServicesValidator.
func WithServicesChecker(checker ServicesChecker) WrapperOption {
	return func(w *Wrapper) {
		w.servicesChecker = checker
	}
}

// WithClock sets the clock used for timeout timers. Tests pass clock.NewMock().
func WithClock(clk clock.Clock) WrapperOption {
	return func(w *Wrapper) {
		w.clock = clk
	}
}

// WithSubscriberBuffer sets the channel capacity of every subscription.
func WithSubscriberBuffer(size int) WrapperOption {
	return func(w *Wrapper) {
		w.subscriberBuffer = size
	}
}

// Wrapper turns a Manager into a Service. It is the Manager's Delegate, keeps the last known
// location, and owns the single timeout timer.
//
// A fired timeout only emits on the timeout stream: monitoring keeps running and later fixes are
// delivered normally. Arming a new timer, a location batch, a failure, StopMonitoringLocation and
// Close all cancel the outstanding timer without emitting anything.
//
// Manager methods are never called while mu is held, so a Manager may invoke Delegate methods
// synchronously.
type Wrapper struct {
	mu               sync.Mutex
	manager          Manager
	servicesChecker  ServicesChecker
	clock            clock.Clock
	logger           logging.Logger
	subscriberBuffer int

	authorizationStatus  AuthorizationStatus
	currentLocation      *Position
	lastRawLocation      *RawLocation
	lastHeading          *RawHeading
	isMonitoringLocation bool
	closed               bool

	timer *clock.Timer
	// timerGeneration changes whenever the timer is armed or cancelled. A fire carrying an older
	// generation lost the race against a cancellation and is ignored.
	timerGeneration uint64

	authorizationSubs *broadcaster[AuthorizationStatus]
	locationSubs      *broadcaster[LocationEvent]
	timeoutSubs       *broadcaster[*LocationError]
}

var _ Service = (*Wrapper)(nil)

// NewWrapper registers a new Wrapper as the delegate of manager. A nil logger means a sublogger
// of the global one.
func NewWrapper(manager Manager, logger logging.Logger, opts ...WrapperOption) *Wrapper {
	if logger == nil {
		logger = logging.Global().Sublogger("geolocation")
	}
	w := &Wrapper{
		manager:         manager,
		servicesChecker: ServicesValidator{Manager: manager},
		clock:           clock.New(),
		logger:          logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.authorizationSubs = newBroadcaster[AuthorizationStatus]("authorization", w.subscriberBuffer, logger)
	w.locationSubs = newBroadcaster[LocationEvent]("location", w.subscriberBuffer, logger)
	w.timeoutSubs = newBroadcaster[*LocationError]("timeout", w.subscriberBuffer, logger)

	w.authorizationStatus = manager.AuthorizationStatus()
	manager.SetDelegate(w)
	return w
}

// RequestAuthorization forwards the request. The result arrives on the authorization stream.
func (w *Wrapper) RequestAuthorization(requestType AuthorizationRequestType) {
	w.logger.Debugw("requesting authorization", "type", requestType)
	requestType.requestAuthorization(w.manager)
}

// AuthorizationStatus returns the last status reported by the Manager.
func (w *Wrapper) AuthorizationStatus() AuthorizationStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.authorizationStatus
}

// SubscribeAuthorizationStatus streams every authorization change after the call. Use
// AuthorizationStatus for the current value.
func (w *Wrapper) SubscribeAuthorizationStatus() (<-chan AuthorizationStatus, func()) {
	return w.authorizationSubs.subscribe()
}

// SubscribeLocation streams fresh positions, cached positions replayed by RequestSingleLocation,
// and location failures.
func (w *Wrapper) SubscribeLocation() (<-chan LocationEvent, func()) {
	return w.locationSubs.subscribe()
}

// SubscribeTimeout streams one ErrTimeout per timer that expires.
func (w *Wrapper) SubscribeTimeout() (<-chan *LocationError, func()) {
	return w.timeoutSubs.subscribe()
}

// StartMonitoringLocation starts continuous location and heading updates. When options is
// non-nil a timeout timer is armed as well.
func (w *Wrapper) StartMonitoringLocation(options *RequestOptions) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Warn("StartMonitoringLocation called on closed wrapper")
		return
	}
	if options != nil {
		w.armTimerLocked(options.TimeoutDuration())
	}
	w.isMonitoringLocation = true
	w.mu.Unlock()

	w.logger.Debugw("starting location monitoring", "timed", options != nil)
	w.manager.SetHeadingFilter(monitoringHeadingFilter)
	w.manager.StartUpdatingLocation()
	w.manager.StartUpdatingHeading()
}

// StopMonitoringLocation stops location and heading updates and cancels any pending timeout.
func (w *Wrapper) StopMonitoringLocation() {
	w.mu.Lock()
	w.isMonitoringLocation = false
	w.cancelTimerLocked()
	w.mu.Unlock()

	w.logger.Debug("stopping location monitoring")
	w.manager.StopUpdatingLocation()
	w.manager.StopUpdatingHeading()
}

// IsMonitoringLocation reports whether monitoring is active.
func (w *Wrapper) IsMonitoringLocation() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isMonitoringLocation
}

// RequestSingleLocation asks for one fix. While monitoring with a cached location, the cached
// value is replayed on the location stream right away and the Manager is not asked again, since
// a running receiver would not produce an extra fix for the request.
func (w *Wrapper) RequestSingleLocation(options RequestOptions) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Warn("RequestSingleLocation called on closed wrapper")
		return
	}
	if w.isMonitoringLocation && w.currentLocation != nil {
		w.locationSubs.send(LocationEvent{Position: *w.currentLocation})
		w.mu.Unlock()
		return
	}
	w.armTimerLocked(options.TimeoutDuration())
	w.mu.Unlock()

	w.manager.RequestLocation()
}

// UpdateConfiguration applies accuracy and distance preferences to the Manager.
func (w *Wrapper) UpdateConfiguration(config Configuration) {
	w.manager.SetDesiredAccuracy(config.DesiredAccuracy())
	if config.MinimumUpdateDistanceInMeters != nil {
		w.manager.SetDistanceFilter(*config.MinimumUpdateDistanceInMeters)
	}
}

// AreLocationServicesEnabled delegates to the ServicesChecker.
func (w *Wrapper) AreLocationServicesEnabled() bool {
	return w.servicesChecker.AreLocationServicesEnabled()
}

// CurrentLocation returns the last known good position.
func (w *Wrapper) CurrentLocation() (Position, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.currentLocation == nil {
		return Position{}, false
	}
	return *w.currentLocation, true
}

// Close cancels the timer, stops updates if monitoring, detaches from the Manager and closes
// every subscription channel.
func (w *Wrapper) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.cancelTimerLocked()
	wasMonitoring := w.isMonitoringLocation
	w.isMonitoringLocation = false
	w.authorizationSubs.close()
	w.locationSubs.close()
	w.timeoutSubs.close()
	w.mu.Unlock()

	w.manager.SetDelegate(nil)
	if wasMonitoring {
		w.manager.StopUpdatingLocation()
		w.manager.StopUpdatingHeading()
	}
	return nil
}

// DidChangeAuthorization implements Delegate.
func (w *Wrapper) DidChangeAuthorization(status AuthorizationStatus) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.logger.Debugw("authorization changed", "from", w.authorizationStatus, "to", status)
	w.authorizationStatus = status
	w.authorizationSubs.send(status)
}

// DidUpdateLocations implements Delegate. Only the last location of the batch is kept.
func (w *Wrapper) DidUpdateLocations(locations []RawLocation) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.cancelTimerLocked()

	if len(locations) == 0 {
		w.currentLocation = nil
		w.lastRawLocation = nil
		w.locationSubs.send(LocationEvent{Err: ErrLocationUnavailable})
		return
	}
	latest := locations[len(locations)-1]
	w.lastRawLocation = &latest
	position := NewPosition(latest, w.lastHeading)
	w.currentLocation = &position
	w.locationSubs.send(LocationEvent{Position: position})
}

// DidUpdateHeading implements Delegate. The heading is merged into the current position if there
// is one; a heading alone never produces a location event.
func (w *Wrapper) DidUpdateHeading(heading RawHeading) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.lastHeading = &heading
	if w.lastRawLocation == nil || w.currentLocation == nil {
		return
	}
	position := NewPosition(*w.lastRawLocation, &heading)
	w.currentLocation = &position
	w.locationSubs.send(LocationEvent{Position: position})
}

// DidFailWithError implements Delegate. The cached location is cleared.
func (w *Wrapper) DidFailWithError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.cancelTimerLocked()
	w.currentLocation = nil
	w.lastRawLocation = nil

	locErr := failureError(err)
	w.logger.Warnw("location manager failed", "error", locErr)
	w.locationSubs.send(LocationEvent{Err: locErr})
}

func (w *Wrapper) armTimerLocked(timeout time.Duration) {
	w.cancelTimerLocked()
	generation := w.timerGeneration
	w.timer = w.clock.AfterFunc(timeout, func() {
		w.timerFired(generation)
	})
}

func (w *Wrapper) cancelTimerLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.timerGeneration++
}

func (w *Wrapper) timerFired(generation uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.timer == nil || generation != w.timerGeneration {
		return
	}
	w.timer = nil
	w.timerGeneration++
	w.logger.Debugw("location request timed out", "monitoring", w.isMonitoringLocation)
	w.timeoutSubs.send(ErrTimeout)
}
