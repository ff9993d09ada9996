package gpsnmea

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/geolocation/logging"
	"go.viam.com/geolocation/utils"
)

// DataReader represents a way to get data from a GPS NMEA device. We can read data from it using
// the channel in Messages, and we can close the device when we're done. Messages is closed when
// the source ends; Err then reports why, or nil for a clean end of input.
type DataReader interface {
	Messages() chan string
	Err() error
	Close() error
}

// lineDataReader implements DataReader for anything that yields newline separated sentences.
type lineDataReader struct {
	src      io.ReadCloser
	data     chan string
	interval time.Duration
	clock    clock.Clock
	logger   logging.Logger
	workers  utils.StoppableWorkers

	closing atomic.Bool
	errMu   sync.Mutex
	err     error
}

func newLineDataReader(
	src io.ReadCloser, interval time.Duration, clk clock.Clock, logger logging.Logger,
) *lineDataReader {
	dr := &lineDataReader{
		src:      src,
		data:     make(chan string),
		interval: interval,
		clock:    clk,
		logger:   logger,
	}
	dr.workers = utils.NewStoppableWorkers(dr.readLoop)
	return dr
}

// NewSerialDataReader constructs a new DataReader that gets its NMEA messages over a serial port.
func NewSerialDataReader(cfg *Config, logger logging.Logger) (DataReader, error) {
	options := serial.OpenOptions{
		PortName:        cfg.SerialPath,
		BaudRate:        cfg.baudRate(),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 4,
	}
	dev, err := serial.Open(options)
	if err != nil {
		return nil, errors.Wrapf(err, "opening serial port %q", cfg.SerialPath)
	}
	logger.Infof("reading NMEA from %s at %d baud", cfg.SerialPath, options.BaudRate)
	return newLineDataReader(dev, 0, clock.New(), logger), nil
}

// NewFileDataReader constructs a new DataReader that replays a recorded NMEA log, waiting
// interval between sentences when it is positive.
func NewFileDataReader(path string, interval time.Duration, clk clock.Clock, logger logging.Logger) (DataReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening NMEA log %q", path)
	}
	logger.Infof("replaying NMEA log %s", path)
	return newLineDataReader(f, interval, clk, logger), nil
}

func (dr *lineDataReader) readLoop(ctx context.Context) {
	defer close(dr.data)
	r := bufio.NewReader(dr.src)
	for {
		if dr.interval > 0 {
			select {
			case <-ctx.Done():
				return
			case <-dr.clock.After(dr.interval):
			}
		}

		line, err := r.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			select {
			case <-ctx.Done():
				return
			case dr.data <- line:
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !dr.closing.Load() {
				dr.logger.Errorw("can't read NMEA source", "error", err)
				dr.setErr(err)
			}
			return
		}
	}
}

func (dr *lineDataReader) setErr(err error) {
	dr.errMu.Lock()
	defer dr.errMu.Unlock()
	dr.err = err
}

func (dr *lineDataReader) Messages() chan string {
	return dr.data
}

func (dr *lineDataReader) Err() error {
	dr.errMu.Lock()
	defer dr.errMu.Unlock()
	return dr.err
}

// Close releases the source first so a read blocked on the device returns, then waits for the
// read loop.
func (dr *lineDataReader) Close() error {
	if dr.closing.Swap(true) {
		return nil
	}
	err := dr.src.Close()
	dr.workers.Stop()
	return err
}
