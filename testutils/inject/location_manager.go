package inject

import (
	"sync"

	"go.viam.com/geolocation/components/geolocation"
)

// LocationManager is an injected geolocation.Manager. Every method calls its Func field when set;
// otherwise it records the call the way a receiver would. The trigger methods (ChangeAuthorization,
// UpdateLocations, UpdateHeading, Fail) invoke the registered delegate synchronously.
type LocationManager struct {
	RequestWhenInUseAuthorizationFunc func()
	RequestAlwaysAuthorizationFunc    func()
	StartUpdatingLocationFunc         func()
	StopUpdatingLocationFunc          func()
	StartUpdatingHeadingFunc          func()
	StopUpdatingHeadingFunc           func()
	RequestLocationFunc               func()
	LocationServicesEnabledFunc       func() bool

	mu               sync.Mutex
	delegate         geolocation.Delegate
	status           geolocation.AuthorizationStatus
	servicesEnabled  bool
	updatingLocation bool
	updatingHeading  bool
	desiredAccuracy  float64
	distanceFilter   float64
	headingFilter    float64
	calls            map[string]int
}

// NewLocationManager returns a LocationManager with receiver defaults: not determined, best
// accuracy, no filters, services disabled.
func NewLocationManager() *LocationManager {
	return &LocationManager{
		status:          geolocation.AuthorizationNotDetermined,
		desiredAccuracy: geolocation.AccuracyBest,
		distanceFilter:  geolocation.DistanceFilterNone,
		headingFilter:   geolocation.HeadingFilterNone,
		calls:           map[string]int{},
	}
}

func (m *LocationManager) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[name]++
}

// CallCount returns how many times the named Manager method was called.
func (m *LocationManager) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// SetDelegate records the delegate.
func (m *LocationManager) SetDelegate(d geolocation.Delegate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delegate = d
}

// Delegate returns the registered delegate.
func (m *LocationManager) Delegate() geolocation.Delegate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delegate
}

// AuthorizationStatus returns the status last set by ChangeAuthorization.
func (m *LocationManager) AuthorizationStatus() geolocation.AuthorizationStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// RequestWhenInUseAuthorization calls the injected func or records the call.
func (m *LocationManager) RequestWhenInUseAuthorization() {
	m.record("RequestWhenInUseAuthorization")
	if m.RequestWhenInUseAuthorizationFunc != nil {
		m.RequestWhenInUseAuthorizationFunc()
	}
}

// RequestAlwaysAuthorization calls the injected func or records the call.
func (m *LocationManager) RequestAlwaysAuthorization() {
	m.record("RequestAlwaysAuthorization")
	if m.RequestAlwaysAuthorizationFunc != nil {
		m.RequestAlwaysAuthorizationFunc()
	}
}

// StartUpdatingLocation calls the injected func or marks location updates as running.
func (m *LocationManager) StartUpdatingLocation() {
	m.record("StartUpdatingLocation")
	if m.StartUpdatingLocationFunc != nil {
		m.StartUpdatingLocationFunc()
		return
	}
	m.mu.Lock()
	m.updatingLocation = true
	m.mu.Unlock()
}

// StopUpdatingLocation calls the injected func or marks location updates as stopped.
func (m *LocationManager) StopUpdatingLocation() {
	m.record("StopUpdatingLocation")
	if m.StopUpdatingLocationFunc != nil {
		m.StopUpdatingLocationFunc()
		return
	}
	m.mu.Lock()
	m.updatingLocation = false
	m.mu.Unlock()
}

// StartUpdatingHeading calls the injected func or marks heading updates as running.
func (m *LocationManager) StartUpdatingHeading() {
	m.record("StartUpdatingHeading")
	if m.StartUpdatingHeadingFunc != nil {
		m.StartUpdatingHeadingFunc()
		return
	}
	m.mu.Lock()
	m.updatingHeading = true
	m.mu.Unlock()
}

// StopUpdatingHeading calls the injected func or marks heading updates as stopped.
func (m *LocationManager) StopUpdatingHeading() {
	m.record("StopUpdatingHeading")
	if m.StopUpdatingHeadingFunc != nil {
		m.StopUpdatingHeadingFunc()
		return
	}
	m.mu.Lock()
	m.updatingHeading = false
	m.mu.Unlock()
}

// RequestLocation calls the injected func or records the call.
func (m *LocationManager) RequestLocation() {
	m.record("RequestLocation")
	if m.RequestLocationFunc != nil {
		m.RequestLocationFunc()
	}
}

// SetDesiredAccuracy records the accuracy.
func (m *LocationManager) SetDesiredAccuracy(meters float64) {
	m.record("SetDesiredAccuracy")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.desiredAccuracy = meters
}

// SetDistanceFilter records the filter.
func (m *LocationManager) SetDistanceFilter(meters float64) {
	m.record("SetDistanceFilter")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.distanceFilter = meters
}

// SetHeadingFilter records the filter.
func (m *LocationManager) SetHeadingFilter(degrees float64) {
	m.record("SetHeadingFilter")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headingFilter = degrees
}

// LocationServicesEnabled calls the injected func or returns the value set by
// SetLocationServicesEnabled.
func (m *LocationManager) LocationServicesEnabled() bool {
	if m.LocationServicesEnabledFunc != nil {
		return m.LocationServicesEnabledFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.servicesEnabled
}

// SetLocationServicesEnabled sets the value LocationServicesEnabled reports.
func (m *LocationManager) SetLocationServicesEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servicesEnabled = enabled
}

// UpdatingLocation reports whether location updates are running.
func (m *LocationManager) UpdatingLocation() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updatingLocation
}

// UpdatingHeading reports whether heading updates are running.
func (m *LocationManager) UpdatingHeading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updatingHeading
}

// DesiredAccuracy returns the last accuracy set.
func (m *LocationManager) DesiredAccuracy() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.desiredAccuracy
}

// DistanceFilter returns the last distance filter set.
func (m *LocationManager) DistanceFilter() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.distanceFilter
}

// HeadingFilter returns the last heading filter set.
func (m *LocationManager) HeadingFilter() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.headingFilter
}

// ChangeAuthorization sets the status and notifies the delegate.
func (m *LocationManager) ChangeAuthorization(status geolocation.AuthorizationStatus) {
	m.mu.Lock()
	m.status = status
	d := m.delegate
	m.mu.Unlock()
	if d != nil {
		d.DidChangeAuthorization(status)
	}
}

// UpdateLocations delivers a batch to the delegate.
func (m *LocationManager) UpdateLocations(locations ...geolocation.RawLocation) {
	if d := m.Delegate(); d != nil {
		d.DidUpdateLocations(locations)
	}
}

// UpdateHeading delivers a heading to the delegate.
func (m *LocationManager) UpdateHeading(heading geolocation.RawHeading) {
	if d := m.Delegate(); d != nil {
		d.DidUpdateHeading(heading)
	}
}

// Fail delivers an error to the delegate.
func (m *LocationManager) Fail(err error) {
	if d := m.Delegate(); d != nil {
		d.DidFailWithError(err)
	}
}
