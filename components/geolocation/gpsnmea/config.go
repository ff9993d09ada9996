// Package gpsnmea implements a geolocation.Manager on top of an NMEA 0183 GPS receiver, read
// either from a serial port or from a recorded log file.
package gpsnmea

import (
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// Connection types.
const (
	ConnectionTypeSerial = "serial"
	ConnectionTypeFile   = "file"
)

const (
	defaultBaudRate     = 9600
	defaultReceiverUERE = 5.0
)

// Config describes where NMEA sentences come from.
type Config struct {
	ConnectionType string `json:"connection_type"`
	SerialPath     string `json:"serial_path,omitempty"`
	BaudRate       int    `json:"serial_baud_rate,omitempty"`
	LogPath        string `json:"log_path,omitempty"`
	// LineIntervalMs paces log replay. Zero replays as fast as the consumer reads.
	LineIntervalMs int `json:"line_interval_ms,omitempty"`
	// ReceiverUERE is the user equivalent range error in metres. Accuracy is DOP times UERE.
	ReceiverUERE float64 `json:"receiver_uere,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg == nil {
		return goutils.NewConfigValidationError(path, errors.New("no config found"))
	}
	switch cfg.ConnectionType {
	case "":
		return goutils.NewConfigValidationFieldRequiredError(path, "connection_type")
	case ConnectionTypeSerial:
		if cfg.SerialPath == "" {
			return goutils.NewConfigValidationFieldRequiredError(path, "serial_path")
		}
	case ConnectionTypeFile:
		if cfg.LogPath == "" {
			return goutils.NewConfigValidationFieldRequiredError(path, "log_path")
		}
	default:
		return goutils.NewConfigValidationError(path,
			errors.Errorf("%q is not a valid connection type", cfg.ConnectionType))
	}
	if cfg.BaudRate < 0 {
		return goutils.NewConfigValidationError(path, errors.New("serial_baud_rate must not be negative"))
	}
	if cfg.LineIntervalMs < 0 {
		return goutils.NewConfigValidationError(path, errors.New("line_interval_ms must not be negative"))
	}
	if cfg.ReceiverUERE < 0 {
		return goutils.NewConfigValidationError(path, errors.New("receiver_uere must not be negative"))
	}
	return nil
}

func (cfg *Config) baudRate() uint {
	if cfg.BaudRate == 0 {
		return defaultBaudRate
	}
	return uint(cfg.BaudRate)
}

func (cfg *Config) receiverUERE() float64 {
	if cfg.ReceiverUERE == 0 {
		return defaultReceiverUERE
	}
	return cfg.ReceiverUERE
}

func (cfg *Config) lineInterval() time.Duration {
	return time.Duration(cfg.LineIntervalMs) * time.Millisecond
}

// devicePath is the path whose existence means location services are available.
func (cfg *Config) devicePath() string {
	if cfg.ConnectionType == ConnectionTypeFile {
		return cfg.LogPath
	}
	return cfg.SerialPath
}
