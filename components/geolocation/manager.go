// Package geolocation exposes a location hardware handle through authorization requests, one-shot
// location queries, continuous monitoring and compass heading, each with timeout handling.
//
// A Manager is the hardware handle. It reports back asynchronously through the Delegate it is
// given. Wrapper is the Delegate every consumer should use: it tracks the current location and
// the timeout timer, and fans events out to subscribers.
package geolocation

// Manager is a location hardware handle, e.g. a GPS receiver. All methods must return promptly;
// results are reported through the Delegate from any goroutine.
type Manager interface {
	// SetDelegate registers the callback sink. Passing nil detaches it.
	SetDelegate(d Delegate)
	AuthorizationStatus() AuthorizationStatus
	RequestWhenInUseAuthorization()
	RequestAlwaysAuthorization()

	StartUpdatingLocation()
	StopUpdatingLocation()
	StartUpdatingHeading()
	StopUpdatingHeading()
	// RequestLocation asks for exactly one fix, delivered through DidUpdateLocations.
	RequestLocation()

	// SetDesiredAccuracy takes metres, or AccuracyBest.
	SetDesiredAccuracy(meters float64)
	// SetDistanceFilter takes metres, or DistanceFilterNone.
	SetDistanceFilter(meters float64)
	// SetHeadingFilter takes degrees, or HeadingFilterNone.
	SetHeadingFilter(degrees float64)

	// LocationServicesEnabled reports whether location services are available at all.
	LocationServicesEnabled() bool
}

// Delegate receives Manager callbacks.
type Delegate interface {
	DidChangeAuthorization(status AuthorizationStatus)
	// DidUpdateLocations delivers a batch ordered oldest first.
	DidUpdateLocations(locations []RawLocation)
	DidUpdateHeading(heading RawHeading)
	DidFailWithError(err error)
}

// ServicesChecker reports whether location services are enabled.
type ServicesChecker interface {
	AreLocationServicesEnabled() bool
}

// ServicesValidator is the default ServicesChecker. It asks the Manager every time.
type ServicesValidator struct {
	Manager Manager
}

// AreLocationServicesEnabled delegates to the Manager.
func (v ServicesValidator) AreLocationServicesEnabled() bool {
	return v.Manager.LocationServicesEnabled()
}

// AuthorizationHandler requests and reports location permissions.
type AuthorizationHandler interface {
	RequestAuthorization(requestType AuthorizationRequestType)
	AuthorizationStatus() AuthorizationStatus
	SubscribeAuthorizationStatus() (<-chan AuthorizationStatus, func())
}

// SingleLocationHandler serves one-shot requests.
type SingleLocationHandler interface {
	RequestSingleLocation(options RequestOptions)
	SubscribeLocation() (<-chan LocationEvent, func())
	SubscribeTimeout() (<-chan *LocationError, func())
}

// MonitorLocationHandler serves continuous monitoring.
type MonitorLocationHandler interface {
	StartMonitoringLocation(options *RequestOptions)
	StopMonitoringLocation()
	UpdateConfiguration(config Configuration)
	SubscribeLocation() (<-chan LocationEvent, func())
	SubscribeTimeout() (<-chan *LocationError, func())
}

// Service is everything a consumer of location services needs.
type Service interface {
	ServicesChecker
	AuthorizationHandler
	SingleLocationHandler
	MonitorLocationHandler
}
