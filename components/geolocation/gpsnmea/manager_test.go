package gpsnmea

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/geolocation/components/geolocation"
	"go.viam.com/geolocation/logging"
	"go.viam.com/geolocation/testutils"
)

type mockDataReader struct {
	messages chan string

	mu     sync.Mutex
	err    error
	closed bool
}

func newMockDataReader() *mockDataReader {
	return &mockDataReader{messages: make(chan string)}
}

func (r *mockDataReader) Messages() chan string {
	return r.messages
}

func (r *mockDataReader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *mockDataReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *mockDataReader) end(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	close(r.messages)
}

// send delivers lines and then a sentence the parser rejects, so that once send returns every
// line has been fully handled.
func (r *mockDataReader) send(lines ...string) {
	for _, line := range lines {
		r.messages <- line
	}
	r.messages <- "noise"
}

type recordingDelegate struct {
	statuses  chan geolocation.AuthorizationStatus
	locations chan []geolocation.RawLocation
	headings  chan geolocation.RawHeading
	failures  chan error
}

func newRecordingDelegate() *recordingDelegate {
	return &recordingDelegate{
		statuses:  make(chan geolocation.AuthorizationStatus, 16),
		locations: make(chan []geolocation.RawLocation, 16),
		headings:  make(chan geolocation.RawHeading, 16),
		failures:  make(chan error, 16),
	}
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

func (d *recordingDelegate) DidFailWithError(err error) {
	d.failures <- err
}

func receive[T any](t *testing.T, ch <-chan T) T {
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

func expectEmpty[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected callback %v", v)
	default:
	}
}

type managerHarness struct {
	manager  *Manager
	delegate *recordingDelegate
	readers  []*mockDataReader
	opens    int
	openErr  error
}

func setupManager(t *testing.T) *managerHarness {
	t.Helper()
	h := &managerHarness{delegate: newRecordingDelegate()}
	open := func() (DataReader, error) {
		h.opens++
		if h.openErr != nil {
			return nil, h.openErr
		}
		r := newMockDataReader()
		h.readers = append(h.readers, r)
		return r, nil
	}
	cfg := &Config{ConnectionType: ConnectionTypeSerial, SerialPath: "/dev/ttyUSB0"}
	h.manager = newManager(cfg, open, func() bool { return true }, clock.NewMock(), logging.NewTestLogger(t))
	h.manager.SetDelegate(h.delegate)
	t.Cleanup(func() {
		test.That(t, h.manager.Close(), test.ShouldBeNil)
	})
	return h
}

func (h *managerHarness) reader() *mockDataReader {
	return h.readers[len(h.readers)-1]
}

func TestAuthorization(t *testing.T) {
	t.Run("open device grants always", func(t *testing.T) {
		h := setupManager(t)
		test.That(t, h.manager.AuthorizationStatus(), test.ShouldEqual, geolocation.AuthorizationNotDetermined)

		h.manager.RequestWhenInUseAuthorization()
		test.That(t, receive(t, h.delegate.statuses), test.ShouldEqual, geolocation.AuthorizationAuthorizedAlways)
		test.That(t, h.manager.AuthorizationStatus(), test.ShouldEqual, geolocation.AuthorizationAuthorizedAlways)

		// Authorization only probes the device.
		test.That(t, h.opens, test.ShouldEqual, 1)
		h.reader().mu.Lock()
		test.That(t, h.reader().closed, test.ShouldBeTrue)
		h.reader().mu.Unlock()

		h.manager.RequestAlwaysAuthorization()
		expectEmpty(t, h.delegate.statuses)
		test.That(t, h.opens, test.ShouldEqual, 2)
	})

	t.Run("permission error denies", func(t *testing.T) {
		h := setupManager(t)
		h.openErr = errors.Wrap(&fs.PathError{Op: "open", Path: "/dev/ttyUSB0", Err: fs.ErrPermission}, "opening serial port")

		h.manager.RequestAlwaysAuthorization()
		test.That(t, receive(t, h.delegate.statuses), test.ShouldEqual, geolocation.AuthorizationDenied)
	})

	t.Run("other errors restrict", func(t *testing.T) {
		h := setupManager(t)
		h.openErr = errors.New("no such device")

		h.manager.RequestLocation()
		test.That(t, receive(t, h.delegate.statuses), test.ShouldEqual, geolocation.AuthorizationRestricted)

		err := receive(t, h.delegate.failures)
		var locErr *geolocation.LocationError
		test.That(t, errors.As(err, &locErr), test.ShouldBeFalse)
		test.That(t, errors.Is(err, h.openErr), test.ShouldBeTrue)

		// The status did not change the second time.
		h.manager.RequestLocation()
		receive(t, h.delegate.failures)
		expectEmpty(t, h.delegate.statuses)
	})
}

func TestRequestLocation(t *testing.T) {
	h := setupManager(t)
	h.manager.RequestLocation()
	receive(t, h.delegate.statuses)

	h.reader().send(rmcMoving)
	locations := receive(t, h.delegate.locations)
	test.That(t, len(locations), test.ShouldEqual, 1)
	test.That(t, locations[0].Course, test.ShouldAlmostEqual, 84.4)

	// The request was served once.
	h.reader().send(rmcStill)
	expectEmpty(t, h.delegate.locations)
}

func TestContinuousUpdates(t *testing.T) {
	t.Run("every fix is delivered", func(t *testing.T) {
		h := setupManager(t)
		h.manager.StartUpdatingLocation()
		h.reader().send(rmcStill, rmcNear, rmcFar)
		for i := 0; i < 3; i++ {
			receive(t, h.delegate.locations)
		}

		h.manager.StopUpdatingLocation()
		h.reader().send(rmcStill)
		expectEmpty(t, h.delegate.locations)
	})

	t.Run("distance filter", func(t *testing.T) {
		h := setupManager(t)
		h.manager.SetDistanceFilter(10)
		h.manager.StartUpdatingLocation()

		h.reader().send(rmcStill, rmcNear)
		first := receive(t, h.delegate.locations)
		test.That(t, first[0].Coordinate.Lat(), test.ShouldAlmostEqual, 48.1173)
		expectEmpty(t, h.delegate.locations)

		h.reader().send(rmcFar)
		far := receive(t, h.delegate.locations)
		test.That(t, far[0].Coordinate.Lat(), test.ShouldAlmostEqual, 48+7.1/60)
	})

	t.Run("one-shot ignores the distance filter", func(t *testing.T) {
		h := setupManager(t)
		h.manager.SetDistanceFilter(10)
		h.manager.StartUpdatingLocation()
		h.reader().send(rmcStill)
		receive(t, h.delegate.locations)

		h.manager.RequestLocation()
		h.reader().send(rmcNear)
		receive(t, h.delegate.locations)
	})

	t.Run("desired accuracy", func(t *testing.T) {
		h := setupManager(t)
		h.manager.SetDesiredAccuracy(5)
		h.manager.StartUpdatingLocation()

		// HDOP 0.9 is 4.5 m.
		h.reader().send(ggaFix, rmcStill)
		receive(t, h.delegate.locations)

		// HDOP 1.3 is 6.5 m.
		h.reader().send(gsa, rmcStill)
		expectEmpty(t, h.delegate.locations)

		h.manager.SetDesiredAccuracy(geolocation.AccuracyBest)
		h.reader().send(rmcStill)
		receive(t, h.delegate.locations)
	})
}

func TestHeadingUpdates(t *testing.T) {
	h := setupManager(t)
	h.manager.SetHeadingFilter(1)
	h.manager.StartUpdatingHeading()

	h.reader().send(hdt)
	test.That(t, receive(t, h.delegate.headings).TrueHeading, test.ShouldAlmostEqual, 274.07)

	h.reader().send(hdt)
	expectEmpty(t, h.delegate.headings)

	h.reader().send(hdg)
	test.That(t, receive(t, h.delegate.headings).TrueHeading, test.ShouldAlmostEqual, 85.7)

	h.manager.StopUpdatingHeading()
	h.reader().send(hdt)
	expectEmpty(t, h.delegate.headings)

	// Headings never produce locations.
	expectEmpty(t, h.delegate.locations)
}

func TestStreamEnded(t *testing.T) {
	t.Run("active request fails", func(t *testing.T) {
		h := setupManager(t)
		h.manager.StartUpdatingLocation()
		first := h.reader()

		cause := errors.New("device unplugged")
		first.end(cause)
		err := receive(t, h.delegate.failures)
		var locErr *geolocation.LocationError
		test.That(t, errors.As(err, &locErr), test.ShouldBeFalse)
		test.That(t, errors.Is(err, cause), test.ShouldBeTrue)
		test.That(t, strings.Contains(err.Error(), "NMEA stream ended"), test.ShouldBeTrue)

		// The next request reopens the device.
		h.manager.RequestLocation()
		test.That(t, h.opens, test.ShouldEqual, 2)
		h.reader().send(rmcStill)
		receive(t, h.delegate.locations)
	})

	t.Run("idle stream ends quietly", func(t *testing.T) {
		h := setupManager(t)
		h.manager.StartUpdatingHeading()
		receive(t, h.delegate.statuses)

		h.reader().end(nil)
		time.Sleep(10 * time.Millisecond)
		expectEmpty(t, h.delegate.failures)
	})
}

func TestManagerClose(t *testing.T) {
	h := setupManager(t)
	h.manager.StartUpdatingLocation()
	reader := h.reader()

	test.That(t, h.manager.Close(), test.ShouldBeNil)
	reader.mu.Lock()
	test.That(t, reader.closed, test.ShouldBeTrue)
	reader.mu.Unlock()

	h.manager.RequestLocation()
	test.That(t, h.opens, test.ShouldEqual, 1)
}

func TestDeviceFailuresThroughWrapper(t *testing.T) {
	t.Run("unplugged device", func(t *testing.T) {
		h := setupManager(t)
		w := geolocation.NewWrapper(h.manager, logging.NewTestLogger(t))
		defer w.Close()
		locations, cancel := w.SubscribeLocation()
		defer cancel()

		w.StartMonitoringLocation(nil)
		h.reader().send(rmcStill)
		test.That(t, receive(t, locations).Err, test.ShouldBeNil)

		cause := errors.New("device unplugged")
		h.reader().end(cause)
		event := receive(t, locations)
		test.That(t, event.Err, test.ShouldNotBeNil)
		test.That(t, event.Err.Kind, test.ShouldEqual, geolocation.KindLocationUnavailable)
		test.That(t, errors.Is(event.Err, geolocation.ErrLocationUnavailable), test.ShouldBeTrue)
		test.That(t, errors.Is(event.Err, cause), test.ShouldBeTrue)
		_, ok := w.CurrentLocation()
		test.That(t, ok, test.ShouldBeFalse)
	})

	t.Run("device fails to open", func(t *testing.T) {
		h := setupManager(t)
		h.openErr = errors.New("no such device")
		w := geolocation.NewWrapper(h.manager, logging.NewTestLogger(t))
		defer w.Close()
		locations, cancel := w.SubscribeLocation()
		defer cancel()

		w.RequestSingleLocation(geolocation.WithTimeout(2000))
		event := receive(t, locations)
		test.That(t, errors.Is(event.Err, geolocation.ErrLocationUnavailable), test.ShouldBeTrue)
		test.That(t, errors.Is(event.Err, h.openErr), test.ShouldBeTrue)
	})
}

func TestNewManager(t *testing.T) {
	logger := logging.NewTestLogger(t)

	_, err := NewManager(&Config{}, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)

	dir := t.TempDir()
	logPath := filepath.Join(dir, "drive.nmea")
	cfg := &Config{ConnectionType: ConnectionTypeFile, LogPath: logPath}
	m, err := NewManager(cfg, nil, logger)
	test.That(t, err, test.ShouldBeNil)
	defer m.Close()
	test.That(t, m.LocationServicesEnabled(), test.ShouldBeFalse)

	test.That(t, os.WriteFile(logPath, []byte(strings.Join([]string{ggaFix, gsa, rmcStill}, "\r\n")+"\r\n"), 0o600), test.ShouldBeNil)
	test.That(t, m.LocationServicesEnabled(), test.ShouldBeTrue)
}

func TestFileReplayThroughWrapper(t *testing.T) {
	logger := logging.NewTestLogger(t)
	logPath := testutils.WriteNMEALog(t, ggaFix, gsa, hdt, rmcStill)

	m, err := NewManager(&Config{ConnectionType: ConnectionTypeFile, LogPath: logPath}, nil, logger)
	test.That(t, err, test.ShouldBeNil)
	defer m.Close()

	w := geolocation.NewWrapper(m, logger.Sublogger("wrapper"))
	defer w.Close()
	locations, cancel := w.SubscribeLocation()
	defer cancel()

	w.RequestSingleLocation(geolocation.WithTimeout(2000))
	event := receive(t, locations)
	test.That(t, event.Err, test.ShouldBeNil)
	test.That(t, event.Position.Latitude(), test.ShouldAlmostEqual, 48.1173)
	test.That(t, event.Position.Altitude(), test.ShouldAlmostEqual, 545.4)
	test.That(t, event.Position.HorizontalAccuracy(), test.ShouldAlmostEqual, 6.5)
	test.That(t, w.AuthorizationStatus(), test.ShouldEqual, geolocation.AuthorizationAuthorizedAlways)
}
