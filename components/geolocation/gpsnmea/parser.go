package gpsnmea

import (
	"time"

	"github.com/adrianmo/go-nmea"
	geo "github.com/kellydunn/golang-geo"
	"github.com/pkg/errors"

	"go.viam.com/geolocation/components/geolocation"
)

const (
	knotsToMetersPerSecond = 0.514444
	kphToMetersPerSecond   = 1 / 3.6
	west                   = "W"
	unknown                = -1.0

	// Positions of speed over ground and course in the RMC field list.
	rmcSpeedField  = 6
	rmcCourseField = 7
)

// nmeaParser accumulates the sentences of one receiver epoch. GGA, GSA and VTG carry the
// altitude, dilution of precision and velocity; a valid RMC closes the epoch and yields a fix.
// Nothing but headings outlives an epoch.
type nmeaParser struct {
	uere float64
	now  func() time.Time

	altitude float64
	hdop     float64
	vdop     float64
	course   float64
	speed    float64

	magneticHeading float64
	trueHeading     float64
}

func newNMEAParser(uere float64, now func() time.Time) *nmeaParser {
	p := &nmeaParser{uere: uere, now: now}
	p.reset()
	p.magneticHeading = unknown
	p.trueHeading = unknown
	return p
}

func (p *nmeaParser) reset() {
	p.altitude = 0
	p.hdop = unknown
	p.vdop = unknown
	p.course = unknown
	p.speed = unknown
}

// parse consumes one sentence. It returns a location when the sentence closes a valid epoch and a
// heading when the sentence carries one; both are nil for every other sentence.
func (p *nmeaParser) parse(line string) (*geolocation.RawLocation, *geolocation.RawHeading, error) {
	s, err := nmea.Parse(line)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "can't parse NMEA sentence %q", line)
	}

	switch sentence := s.(type) {
	case nmea.GGA:
		if sentence.FixQuality == nmea.Invalid {
			p.reset()
			return nil, nil, nil
		}
		p.altitude = sentence.Altitude
		if sentence.HDOP > 0 {
			p.hdop = sentence.HDOP
		}
	case nmea.GSA:
		if sentence.HDOP > 0 {
			p.hdop = sentence.HDOP
		}
		if sentence.VDOP > 0 {
			p.vdop = sentence.VDOP
		}
	case nmea.VTG:
		p.course = sentence.TrueTrack
		p.speed = sentence.GroundSpeedKPH * kphToMetersPerSecond
	case nmea.HDT:
		p.trueHeading = sentence.Heading
		return nil, p.heading(), nil
	case nmea.HDG:
		magnetic := sentence.Heading + signed(sentence.Deviation, sentence.DeviationDirection)
		p.magneticHeading = normalizeDegrees(magnetic)
		if sentence.VariationDirection != "" {
			p.trueHeading = normalizeDegrees(magnetic + signed(sentence.Variation, sentence.VariationDirection))
		}
		return nil, p.heading(), nil
	case nmea.RMC:
		if sentence.Validity != nmea.ValidRMC {
			p.reset()
			return nil, nil, nil
		}
		loc := p.location(sentence)
		p.reset()
		return &loc, nil, nil
	}
	return nil, nil, nil
}

func (p *nmeaParser) location(rmc nmea.RMC) geolocation.RawLocation {
	loc := geolocation.RawLocation{
		Coordinate:         geo.NewPoint(rmc.Latitude, rmc.Longitude),
		Altitude:           p.altitude,
		Course:             rmc.Course,
		Speed:              rmc.Speed * knotsToMetersPerSecond,
		HorizontalAccuracy: p.accuracy(p.hdop),
		VerticalAccuracy:   p.accuracy(p.vdop),
		Timestamp:          p.timestamp(rmc),
	}
	// VTG only fills fields the receiver left empty in the RMC.
	if p.speed >= 0 && emptyField(rmc.BaseSentence, rmcSpeedField) {
		loc.Speed = p.speed
	}
	if p.course >= 0 && emptyField(rmc.BaseSentence, rmcCourseField) {
		loc.Course = p.course
	}
	return loc
}

func emptyField(s nmea.BaseSentence, i int) bool {
	return i >= len(s.Fields) || s.Fields[i] == ""
}

func (p *nmeaParser) accuracy(dop float64) float64 {
	if dop <= 0 {
		return unknown
	}
	return dop * p.uere
}

func (p *nmeaParser) timestamp(rmc nmea.RMC) time.Time {
	if !rmc.Date.Valid || !rmc.Time.Valid {
		return p.now()
	}
	return time.Date(
		2000+rmc.Date.YY, time.Month(rmc.Date.MM), rmc.Date.DD,
		rmc.Time.Hour, rmc.Time.Minute, rmc.Time.Second, rmc.Time.Millisecond*int(time.Millisecond),
		time.UTC,
	)
}

func (p *nmeaParser) heading() *geolocation.RawHeading {
	return &geolocation.RawHeading{
		MagneticHeading: p.magneticHeading,
		TrueHeading:     p.trueHeading,
		HeadingAccuracy: unknown,
		Timestamp:       p.now(),
	}
}

func signed(v float64, direction string) float64 {
	if direction == west {
		return -v
	}
	return v
}

func normalizeDegrees(deg float64) float64 {
	for deg < 0 {
		deg += 360
	}
	for deg >= 360 {
		deg -= 360
	}
	return deg
}
