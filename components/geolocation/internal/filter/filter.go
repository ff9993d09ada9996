// Package filter holds the delivery rules shared by the geolocation backends: what a receiver
// has been asked for, and which fixes and headings clear the accuracy, distance and heading
// filters.
package filter

import (
	"math"

	geo "github.com/kellydunn/golang-geo"

	"go.viam.com/geolocation/components/geolocation"
)

// Updates is the delivery state of one backend. It is not safe for concurrent use; backends
// guard it with their own mutex.
type Updates struct {
	UpdatingLocation bool
	UpdatingHeading  bool
	PendingRequest   bool

	DesiredAccuracy float64
	DistanceFilter  float64
	HeadingFilter   float64

	lastDelivered *geo.Point
	lastHeading   *float64
}

// NewUpdates returns idle state with every filter off.
func NewUpdates() Updates {
	return Updates{
		DesiredAccuracy: geolocation.AccuracyBest,
		DistanceFilter:  geolocation.DistanceFilterNone,
		HeadingFilter:   geolocation.HeadingFilterNone,
	}
}

// StartLocation begins continuous delivery. The first fix after it always passes the distance
// filter.
func (u *Updates) StartLocation() {
	u.UpdatingLocation = true
	u.lastDelivered = nil
}

// StartHeading begins heading delivery. The first heading after it always passes the filter.
func (u *Updates) StartHeading() {
	u.UpdatingHeading = true
	u.lastHeading = nil
}

// Active reports whether anything is waiting for a fix.
func (u *Updates) Active() bool {
	return u.UpdatingLocation || u.PendingRequest
}

// TooInaccurate reports whether a fix with the given horizontal accuracy is dropped. Negative
// accuracy means unknown and is never dropped.
func (u *Updates) TooInaccurate(accuracy float64) bool {
	return u.DesiredAccuracy > 0 && accuracy >= 0 && accuracy > u.DesiredAccuracy
}

// AcceptLocation decides whether a fix is delivered and records it if so. A pending one-shot
// request is served first and ignores the distance filter.
func (u *Updates) AcceptLocation(point *geo.Point, accuracy float64) bool {
	if !u.Active() || u.TooInaccurate(accuracy) {
		return false
	}
	if u.PendingRequest {
		u.PendingRequest = false
		u.lastDelivered = point
		return true
	}
	// GreatCircleDistance is in kilometres.
	if u.DistanceFilter > 0 && u.lastDelivered != nil &&
		u.lastDelivered.GreatCircleDistance(point)*1000 < u.DistanceFilter {
		return false
	}
	u.lastDelivered = point
	return true
}

// AcceptHeading decides whether a heading in degrees is delivered and records it if so.
func (u *Updates) AcceptHeading(degrees float64) bool {
	if !u.UpdatingHeading {
		return false
	}
	if u.HeadingFilter > 0 && u.lastHeading != nil && AngularDistance(*u.lastHeading, degrees) < u.HeadingFilter {
		return false
	}
	u.lastHeading = &degrees
	return true
}

// AngularDistance is the smaller angle between two headings, in degrees.
func AngularDistance(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}
