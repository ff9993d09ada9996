package geolocation

import "time"

// DefaultTimeout is the request timeout in milliseconds used when none is given.
const DefaultTimeout = 5000

const (
	// AccuracyBest asks the receiver for the best accuracy it can provide.
	AccuracyBest = -1.0
	// AccuracyThreeKilometers is the coarse tier used when high accuracy is disabled.
	AccuracyThreeKilometers = 3000.0
	// DistanceFilterNone delivers every fix regardless of movement.
	DistanceFilterNone = -1.0
	// HeadingFilterNone delivers every heading change.
	HeadingFilterNone = -1.0

	// monitoringHeadingFilter is applied whenever monitoring starts, in degrees.
	monitoringHeadingFilter = 1.0
)

// RequestOptions configures a single location request or a monitoring session.
type RequestOptions struct {
	timeout int
}

// NewRequestOptions returns options with the given timeout in milliseconds, or DefaultTimeout if
// timeout is nil.
func NewRequestOptions(timeout *int) RequestOptions {
	if timeout == nil {
		return RequestOptions{timeout: DefaultTimeout}
	}
	return RequestOptions{timeout: *timeout}
}

// WithTimeout is shorthand for NewRequestOptions(&timeout).
func WithTimeout(timeout int) RequestOptions {
	return NewRequestOptions(&timeout)
}

// Timeout returns the configured timeout in milliseconds.
func (o RequestOptions) Timeout() int {
	return o.timeout
}

// TimeoutDuration returns the configured timeout as a time.Duration.
func (o RequestOptions) TimeoutDuration() time.Duration {
	return time.Duration(o.timeout) * time.Millisecond
}

// Configuration holds accuracy preferences. It is consumed once by Wrapper.UpdateConfiguration.
type Configuration struct {
	EnableHighAccuracy            bool     `json:"enable_high_accuracy"`
	MinimumUpdateDistanceInMeters *float64 `json:"minimum_update_distance_in_meters,omitempty"`
}

// DesiredAccuracy maps EnableHighAccuracy onto an accuracy tier in metres.
func (c Configuration) DesiredAccuracy() float64 {
	if c.EnableHighAccuracy {
		return AccuracyBest
	}
	return AccuracyThreeKilometers
}
