package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"go.viam.com/geolocation/components/geolocation"
	"go.viam.com/geolocation/components/geolocation/fake"
	"go.viam.com/geolocation/components/geolocation/gpsnmea"
	"go.viam.com/geolocation/logging"
)

const (
	authorizationWait = 2 * time.Second
	logFileMaxSizeMB  = 10
	logFileMaxBackups = 3
)

type closableManager interface {
	geolocation.Manager
	Close() error
}

// geolocateClient owns the receiver and the wrapper for the duration of one command.
type geolocateClient struct {
	logger  logging.Logger
	logFile io.Closer
	manager closableManager
	wrapper *geolocation.Wrapper
}

func newGeolocateClient(c *cli.Context) (*geolocateClient, error) {
	level := zapcore.WarnLevel
	if c.Bool(generalFlagDebug) {
		level = zapcore.DebugLevel
	}
	logOut := c.App.ErrWriter
	var logFile io.Closer
	if path := c.String(generalFlagLogFile); path != "" {
		rotating := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    logFileMaxSizeMB,
			MaxBackups: logFileMaxBackups,
			Compress:   true,
		}
		logOut, logFile = rotating, rotating
	}
	logger := logging.NewWriterLogger("geolocate", logOut, level)
	logging.ReplaceGlobal(logger)

	manager, err := newManager(c, logger)
	if err != nil {
		if logFile != nil {
			err = multierr.Combine(err, logFile.Close())
		}
		return nil, err
	}

	return &geolocateClient{
		logger:  logger,
		logFile: logFile,
		manager: manager,
		wrapper: geolocation.NewWrapper(manager, logger.Sublogger("wrapper")),
	}, nil
}

func newManager(c *cli.Context, logger logging.Logger) (closableManager, error) {
	switch {
	case c.Bool(generalFlagFake):
		return fake.NewManager(fake.Config{IntervalMs: c.Int(generalFlagFakeInterval)}, nil, logger.Sublogger("fake")), nil
	case c.String(generalFlagConfig) != "":
		cfg, err := readConfig(c.String(generalFlagConfig))
		if err != nil {
			return nil, err
		}
		m, err := gpsnmea.NewManager(cfg, nil, logger.Sublogger("gpsnmea"))
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, errors.Errorf("either --%s or --%s is required", generalFlagConfig, generalFlagFake)
	}
}

func readConfig(path string) (*gpsnmea.Config, error) {
	//nolint:gosec
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	var attributes map[string]interface{}
	if err := json.Unmarshal(raw, &attributes); err != nil {
		return nil, errors.Wrapf(err, "parsing config %q", path)
	}
	var cfg gpsnmea.Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, errors.Wrapf(err, "decoding config %q", path)
	}
	if err := cfg.Validate(path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ensureAuthorized requests access when the receiver has not decided yet and waits briefly for
// the answer.
func (gc *geolocateClient) ensureAuthorized(ctx context.Context) error {
	statuses, cancel := gc.wrapper.SubscribeAuthorizationStatus()
	defer cancel()

	status := gc.wrapper.AuthorizationStatus()
	if status == geolocation.AuthorizationNotDetermined {
		gc.wrapper.RequestAuthorization(geolocation.AuthorizationRequestWhenInUse)
		status = gc.wrapper.AuthorizationStatus()
	}
	if status == geolocation.AuthorizationNotDetermined {
		select {
		case status = <-statuses:
		case <-time.After(authorizationWait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	gc.logger.CDebugw(ctx, "authorization", "status", status)
	if !status.Authorized() {
		return errors.Errorf("location access is %s", status)
	}
	return nil
}

func (gc *geolocateClient) close() error {
	err := multierr.Combine(gc.wrapper.Close(), gc.manager.Close())
	if gc.logFile != nil {
		err = multierr.Combine(err, gc.logFile.Close())
	}
	return err
}
