package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/geolocation/components/geolocation"
)

// ServicesAction prints whether location services are enabled.
func ServicesAction(c *cli.Context) (err error) {
	gc, err := newGeolocateClient(c)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, gc.close())
	}()

	printf(c.App.Writer, "location services enabled: %t", gc.wrapper.AreLocationServicesEnabled())
	return nil
}

// LocateAction requests one position and prints it as JSON.
func LocateAction(c *cli.Context) (err error) {
	gc, err := newGeolocateClient(c)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, gc.close())
	}()

	if err := gc.ensureAuthorized(c.Context); err != nil {
		return err
	}
	gc.wrapper.UpdateConfiguration(geolocation.Configuration{EnableHighAccuracy: c.Bool(requestFlagHighAccuracy)})

	locations, cancelLocations := gc.wrapper.SubscribeLocation()
	defer cancelLocations()
	timeouts, cancelTimeouts := gc.wrapper.SubscribeTimeout()
	defer cancelTimeouts()

	gc.wrapper.RequestSingleLocation(geolocation.WithTimeout(c.Int(requestFlagTimeout)))
	select {
	case event := <-locations:
		if event.Err != nil {
			return errors.Wrap(event.Err, "locating")
		}
		return printPosition(c.App.Writer, event.Position)
	case timeoutErr := <-timeouts:
		return errors.Wrapf(timeoutErr, "no position within %dms", c.Int(requestFlagTimeout))
	case <-c.Context.Done():
		return c.Context.Err()
	}
}

// WatchAction monitors the receiver and prints every position it reports. Timeouts are reported
// and monitoring carries on.
func WatchAction(c *cli.Context) (err error) {
	gc, err := newGeolocateClient(c)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, gc.close())
	}()

	if err := gc.ensureAuthorized(c.Context); err != nil {
		return err
	}
	config := geolocation.Configuration{EnableHighAccuracy: c.Bool(requestFlagHighAccuracy)}
	if c.IsSet(requestFlagDistanceFilter) {
		distance := c.Float64(requestFlagDistanceFilter)
		config.MinimumUpdateDistanceInMeters = &distance
	}
	gc.wrapper.UpdateConfiguration(config)

	locations, cancelLocations := gc.wrapper.SubscribeLocation()
	defer cancelLocations()
	timeouts, cancelTimeouts := gc.wrapper.SubscribeTimeout()
	defer cancelTimeouts()

	var options *geolocation.RequestOptions
	if timeout := c.Int(requestFlagTimeout); timeout > 0 {
		opts := geolocation.WithTimeout(timeout)
		options = &opts
	}
	gc.wrapper.StartMonitoringLocation(options)
	defer gc.wrapper.StopMonitoringLocation()

	count := c.Int(requestFlagCount)
	for printed := 0; count <= 0 || printed < count; {
		select {
		case event, ok := <-locations:
			if !ok {
				return nil
			}
			if event.Err != nil {
				return errors.Wrap(event.Err, "watching")
			}
			if err := printPosition(c.App.Writer, event.Position); err != nil {
				return err
			}
			printed++
		case timeoutErr := <-timeouts:
			warningf(c.App.ErrWriter, "%s: still waiting for a position", timeoutErr)
		case <-c.Context.Done():
			return nil
		}
	}
	return nil
}

func printPosition(w io.Writer, position geolocation.Position) error {
	raw, err := json.Marshal(position)
	if err != nil {
		return errors.Wrap(err, "encoding position")
	}
	printf(w, "%s", raw)
	return nil
}

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// warningf prints a message prefixed with a bold yellow "Warning: ".
func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	color.New(color.Bold, color.FgYellow).Fprint(w, "Warning: ")
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}
