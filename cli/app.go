// Package cli contains the geolocate command line interface.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Global flags.
	generalFlagConfig       = "config"
	generalFlagFake         = "fake"
	generalFlagFakeInterval = "fake-interval"
	generalFlagDebug        = "debug"
	generalFlagLogFile      = "log-file"

	// Request flags.
	requestFlagTimeout        = "timeout"
	requestFlagHighAccuracy   = "high-accuracy"
	requestFlagDistanceFilter = "distance-filter"
	requestFlagCount          = "count"
)

var app = &cli.App{
	Name:            "geolocate",
	Usage:           "read positions from a GPS receiver",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    generalFlagConfig,
			Aliases: []string{"c"},
			Usage:   "load receiver configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:  generalFlagFake,
			Usage: "use a simulated receiver instead of a configured one",
		},
		&cli.IntFlag{
			Name:   generalFlagFakeInterval,
			Hidden: true,
			Value:  1000,
			Usage:  "milliseconds between simulated fixes",
		},
		&cli.BoolFlag{
			Name:    generalFlagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.StringFlag{
			Name:  generalFlagLogFile,
			Usage: "write logs to `FILE` instead of stderr, rotating it as it grows",
		},
	},
	Commands: []*cli.Command{
		{
			Name:   "services",
			Usage:  "report whether location services are available",
			Action: ServicesAction,
		},
		{
			Name:  "locate",
			Usage: "print a single position",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  requestFlagTimeout,
					Value: 5000,
					Usage: "give up after `MS` milliseconds",
				},
				&cli.BoolFlag{
					Name:  requestFlagHighAccuracy,
					Usage: "ask for the best accuracy the receiver offers",
				},
			},
			Action: LocateAction,
		},
		{
			Name:  "watch",
			Usage: "print positions as they change",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  requestFlagTimeout,
					Usage: "report a timeout if no fix arrives within `MS` milliseconds, 0 to wait forever",
				},
				&cli.BoolFlag{
					Name:  requestFlagHighAccuracy,
					Value: true,
					Usage: "ask for the best accuracy the receiver offers",
				},
				&cli.Float64Flag{
					Name:  requestFlagDistanceFilter,
					Usage: "only print positions at least `METERS` apart",
				},
				&cli.IntFlag{
					Name:  requestFlagCount,
					Usage: "stop after `N` positions, 0 to run until interrupted",
				},
			},
			Action: WatchAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
