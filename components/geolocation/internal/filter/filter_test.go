package filter

import (
	"testing"

	geo "github.com/kellydunn/golang-geo"
	"go.viam.com/test"

	"go.viam.com/geolocation/components/geolocation"
)

func TestAcceptLocation(t *testing.T) {
	origin := geo.NewPoint(48.1173, 11.5167)
	// About 5.5 m north.
	near := geo.NewPoint(48.11735, 11.5167)
	// About 111 m north.
	far := geo.NewPoint(48.1183, 11.5167)

	t.Run("idle drops everything", func(t *testing.T) {
		u := NewUpdates()
		test.That(t, u.AcceptLocation(origin, 5), test.ShouldBeFalse)
	})

	t.Run("one-shot ignores the distance filter", func(t *testing.T) {
		u := NewUpdates()
		u.DistanceFilter = 50
		u.StartLocation()
		test.That(t, u.AcceptLocation(origin, 5), test.ShouldBeTrue)
		test.That(t, u.AcceptLocation(near, 5), test.ShouldBeFalse)

		u.PendingRequest = true
		test.That(t, u.AcceptLocation(near, 5), test.ShouldBeTrue)
		test.That(t, u.PendingRequest, test.ShouldBeFalse)

		test.That(t, u.AcceptLocation(far, 5), test.ShouldBeTrue)
	})

	t.Run("restarting forgets the last fix", func(t *testing.T) {
		u := NewUpdates()
		u.DistanceFilter = 50
		u.StartLocation()
		test.That(t, u.AcceptLocation(origin, 5), test.ShouldBeTrue)
		u.StartLocation()
		test.That(t, u.AcceptLocation(near, 5), test.ShouldBeTrue)
	})

	t.Run("desired accuracy", func(t *testing.T) {
		u := NewUpdates()
		u.DesiredAccuracy = 10
		u.StartLocation()
		test.That(t, u.AcceptLocation(origin, 12), test.ShouldBeFalse)
		test.That(t, u.AcceptLocation(origin, -1), test.ShouldBeTrue)
		test.That(t, u.AcceptLocation(origin, 10), test.ShouldBeTrue)

		u.DesiredAccuracy = geolocation.AccuracyBest
		test.That(t, u.AcceptLocation(origin, 500), test.ShouldBeTrue)
	})
}

func TestAcceptHeading(t *testing.T) {
	u := NewUpdates()
	test.That(t, u.AcceptHeading(10), test.ShouldBeFalse)

	u.HeadingFilter = 5
	u.StartHeading()
	test.That(t, u.AcceptHeading(358), test.ShouldBeTrue)
	test.That(t, u.AcceptHeading(1), test.ShouldBeFalse)
	test.That(t, u.AcceptHeading(4), test.ShouldBeTrue)

	u.StartHeading()
	test.That(t, u.AcceptHeading(4.5), test.ShouldBeTrue)
}

func TestAngularDistance(t *testing.T) {
	test.That(t, AngularDistance(359, 1), test.ShouldEqual, 2.0)
	test.That(t, AngularDistance(1, 359), test.ShouldEqual, 2.0)
	test.That(t, AngularDistance(10, 20), test.ShouldEqual, 10.0)
	test.That(t, AngularDistance(0, 180), test.ShouldEqual, 180.0)
}
