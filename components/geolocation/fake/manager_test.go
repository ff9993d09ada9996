package fake

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	geo "github.com/kellydunn/golang-geo"
	"go.viam.com/test"

	"go.viam.com/geolocation/components/geolocation"
	"go.viam.com/geolocation/logging"
)

type recordingDelegate struct {
	statuses  chan geolocation.AuthorizationStatus
	locations chan []geolocation.RawLocation
	headings  chan geolocation.RawHeading
}

func (d *recordingDelegate) DidChangeAuthorization(status geolocation.AuthorizationStatus) {
	d.statuses <- status
}

func (d *recordingDelegate) DidUpdateLocations(locations []geolocation.RawLocation) {
	d.locations <- locations
}

func (d *recordingDelegate) DidUpdateHeading(heading geolocation.RawHeading) {
	d.headings <- heading
}

func (d *recordingDelegate) DidFailWithError(err error) {}

func setup(t *testing.T) (*Manager, *recordingDelegate, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	m := NewManager(Config{}, clk, logging.NewTestLogger(t))
	d := &recordingDelegate{
		statuses:  make(chan geolocation.AuthorizationStatus, 8),
		locations: make(chan []geolocation.RawLocation, 8),
		headings:  make(chan geolocation.RawHeading, 8),
	}
	m.SetDelegate(d)
	t.Cleanup(func() {
		test.That(t, m.Close(), test.ShouldBeNil)
	})
	return m, d, clk
}

func geoOrigin() *geo.Point {
	return geo.NewPoint(defaultLatitude, defaultLongitude)
}

func await[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for callback")
	}
	var zero T
	return zero
}

func quiet[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected callback %v", v)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestAuthorization(t *testing.T) {
	m, d, _ := setup(t)
	test.That(t, m.AuthorizationStatus(), test.ShouldEqual, geolocation.AuthorizationNotDetermined)

	m.RequestWhenInUseAuthorization()
	test.That(t, await(t, d.statuses), test.ShouldEqual, geolocation.AuthorizationAuthorizedWhenInUse)
	m.RequestWhenInUseAuthorization()
	quiet(t, d.statuses)

	m.RequestAlwaysAuthorization()
	test.That(t, await(t, d.statuses), test.ShouldEqual, geolocation.AuthorizationAuthorizedAlways)
	test.That(t, m.LocationServicesEnabled(), test.ShouldBeTrue)
}

func TestSimulatedWalk(t *testing.T) {
	t.Run("idle manager delivers nothing", func(t *testing.T) {
		_, d, clk := setup(t)
		clk.Add(time.Second)
		quiet(t, d.locations)
		quiet(t, d.headings)
	})

	t.Run("one-shot", func(t *testing.T) {
		m, d, clk := setup(t)
		m.RequestLocation()
		clk.Add(time.Second)
		locations := await(t, d.locations)
		test.That(t, len(locations), test.ShouldEqual, 1)
		fix := locations[0]
		test.That(t, fix.Coordinate.GreatCircleDistance(geoOrigin())*1000, test.ShouldAlmostEqual, defaultSpeed, 0.01)
		test.That(t, fix.Course, test.ShouldEqual, 50.0)
		test.That(t, fix.HorizontalAccuracy, test.ShouldEqual, fixAccuracy)

		clk.Add(time.Second)
		quiet(t, d.locations)
	})

	t.Run("monitoring with a distance filter", func(t *testing.T) {
		m, d, clk := setup(t)
		m.SetDistanceFilter(8)
		m.StartUpdatingLocation()

		clk.Add(time.Second)
		await(t, d.locations)
		clk.Add(time.Second)
		quiet(t, d.locations)
		clk.Add(time.Second)
		await(t, d.locations)

		m.StopUpdatingLocation()
		clk.Add(time.Second)
		quiet(t, d.locations)
	})

	t.Run("accuracy tier", func(t *testing.T) {
		m, d, clk := setup(t)
		m.SetDesiredAccuracy(1)
		m.StartUpdatingLocation()
		clk.Add(time.Second)
		quiet(t, d.locations)

		m.SetDesiredAccuracy(geolocation.AccuracyThreeKilometers)
		clk.Add(time.Second)
		await(t, d.locations)
	})

	t.Run("heading rotates", func(t *testing.T) {
		m, d, clk := setup(t)
		m.SetHeadingFilter(1)
		m.StartUpdatingHeading()

		clk.Add(time.Second)
		test.That(t, await(t, d.headings).TrueHeading, test.ShouldEqual, 50.0)
		clk.Add(time.Second)
		test.That(t, await(t, d.headings).TrueHeading, test.ShouldEqual, 75.0)

		m.SetHeadingFilter(30)
		clk.Add(time.Second)
		quiet(t, d.headings)
	})
}

func TestMonitoringThroughWrapper(t *testing.T) {
	clk := clock.NewMock()
	logger := logging.NewTestLogger(t)
	m := NewManager(Config{}, clk, logger)
	defer m.Close()
	w := geolocation.NewWrapper(m, logger.Sublogger("wrapper"), geolocation.WithClock(clk))
	defer w.Close()

	locations, cancel := w.SubscribeLocation()
	defer cancel()

	w.StartMonitoringLocation(nil)
	clk.Add(time.Second)

	// The fix arrives first, then the heading is merged into it.
	first := await(t, locations)
	test.That(t, first.Err, test.ShouldBeNil)
	_, ok := first.Position.TrueHeading()
	test.That(t, ok, test.ShouldBeFalse)

	merged := await(t, locations)
	trueHeading, ok := merged.Position.TrueHeading()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, trueHeading, test.ShouldEqual, 50.0)
	test.That(t, merged.Position.Latitude(), test.ShouldEqual, first.Position.Latitude())
}
