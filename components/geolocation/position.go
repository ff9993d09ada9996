package geolocation

import (
	"encoding/json"
	"time"

	geo "github.com/kellydunn/golang-geo"
)

// RawLocation is a single fix as reported by a Manager.
type RawLocation struct {
	Coordinate         *geo.Point
	Altitude           float64
	Course             float64
	Speed              float64
	HorizontalAccuracy float64
	VerticalAccuracy   float64
	Timestamp          time.Time
}

// RawHeading is a compass reading as reported by a Manager. Negative values mean the reading is
// not available.
type RawHeading struct {
	MagneticHeading float64
	TrueHeading     float64
	HeadingAccuracy float64
	Timestamp       time.Time
}

// ValidHeadingValue reports whether a raw heading value carries data. Receivers use negative
// numbers to signal that no heading is available yet.
func ValidHeadingValue(v float64) bool {
	return v >= 0
}

// Position is an immutable snapshot of one location reading merged with the most recent heading.
type Position struct {
	altitude           float64
	course             float64
	horizontalAccuracy float64
	latitude           float64
	longitude          float64
	speed              float64
	timestamp          float64
	verticalAccuracy   float64
	magneticHeading    *float64
	trueHeading        *float64
	headingAccuracy    *float64
}

// NewPosition maps a raw fix, and optionally a raw heading, into a Position. Heading fields are
// only set when the heading is non-nil and the individual value passes ValidHeadingValue.
func NewPosition(loc RawLocation, heading *RawHeading) Position {
	p := Position{
		altitude:           loc.Altitude,
		course:             loc.Course,
		horizontalAccuracy: loc.HorizontalAccuracy,
		speed:              loc.Speed,
		timestamp:          epochMillis(loc.Timestamp),
		verticalAccuracy:   loc.VerticalAccuracy,
	}
	if loc.Coordinate != nil {
		p.latitude = loc.Coordinate.Lat()
		p.longitude = loc.Coordinate.Lng()
	}
	if heading != nil {
		p.magneticHeading = validOrNil(heading.MagneticHeading)
		p.trueHeading = validOrNil(heading.TrueHeading)
		p.headingAccuracy = validOrNil(heading.HeadingAccuracy)
	}
	return p
}

func validOrNil(v float64) *float64 {
	if !ValidHeadingValue(v) {
		return nil
	}
	return &v
}

func epochMillis(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1000
}

// Altitude in metres.
func (p Position) Altitude() float64 { return p.altitude }

// Course in degrees from true north.
func (p Position) Course() float64 { return p.course }

// HorizontalAccuracy in metres.
func (p Position) HorizontalAccuracy() float64 { return p.horizontalAccuracy }

// Latitude in degrees.
func (p Position) Latitude() float64 { return p.latitude }

// Longitude in degrees.
func (p Position) Longitude() float64 { return p.longitude }

// Speed in metres per second.
func (p Position) Speed() float64 { return p.speed }

// Timestamp in milliseconds since the unix epoch.
func (p Position) Timestamp() float64 { return p.timestamp }

// VerticalAccuracy in metres.
func (p Position) VerticalAccuracy() float64 { return p.verticalAccuracy }

// MagneticHeading returns the heading relative to magnetic north, if known.
func (p Position) MagneticHeading() (float64, bool) { return deref(p.magneticHeading) }

// TrueHeading returns the heading relative to true north, if known.
func (p Position) TrueHeading() (float64, bool) { return deref(p.trueHeading) }

// HeadingAccuracy returns the maximum heading deviation in degrees, if known.
func (p Position) HeadingAccuracy() (float64, bool) { return deref(p.headingAccuracy) }

// Point returns the coordinate as a geo.Point.
func (p Position) Point() *geo.Point {
	return geo.NewPoint(p.latitude, p.longitude)
}

func deref(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}

// Equal compares every field, including whether each heading value is present.
func (p Position) Equal(other Position) bool {
	return p.altitude == other.altitude &&
		p.course == other.course &&
		p.horizontalAccuracy == other.horizontalAccuracy &&
		p.latitude == other.latitude &&
		p.longitude == other.longitude &&
		p.speed == other.speed &&
		p.timestamp == other.timestamp &&
		p.verticalAccuracy == other.verticalAccuracy &&
		optionalEqual(p.magneticHeading, other.magneticHeading) &&
		optionalEqual(p.trueHeading, other.trueHeading) &&
		optionalEqual(p.headingAccuracy, other.headingAccuracy)
}

func optionalEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// positionJSON is the wire shape used by MarshalJSON. Absent headings are omitted.
type positionJSON struct {
	Altitude           float64  `json:"altitude"`
	Course             float64  `json:"course"`
	HorizontalAccuracy float64  `json:"horizontalAccuracy"`
	Latitude           float64  `json:"latitude"`
	Longitude          float64  `json:"longitude"`
	Speed              float64  `json:"speed"`
	Timestamp          float64  `json:"timestamp"`
	VerticalAccuracy   float64  `json:"verticalAccuracy"`
	MagneticHeading    *float64 `json:"magneticHeading,omitempty"`
	TrueHeading        *float64 `json:"trueHeading,omitempty"`
	HeadingAccuracy    *float64 `json:"headingAccuracy,omitempty"`
}

// MarshalJSON encodes the position with camelCase keys, omitting unknown headings.
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal(positionJSON{
		Altitude:           p.altitude,
		Course:             p.course,
		HorizontalAccuracy: p.horizontalAccuracy,
		Latitude:           p.latitude,
		Longitude:          p.longitude,
		Speed:              p.speed,
		Timestamp:          p.timestamp,
		VerticalAccuracy:   p.verticalAccuracy,
		MagneticHeading:    p.magneticHeading,
		TrueHeading:        p.trueHeading,
		HeadingAccuracy:    p.headingAccuracy,
	})
}
