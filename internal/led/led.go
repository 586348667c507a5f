// Package led drives status LEDs through the Linux sysfs LED class.
//
// The observer is best effort: a board without the LEDs, or a process
// without write permission, only produces debug log lines.
package led

import (
	"log/slog"
	"os"
	"strconv"
)

// Orange Pi 3 brightness files.
const (
	OrangePi3Power  = "/sys/class/leds/orangepi:red:power/brightness"
	OrangePi3Status = "/sys/class/leds/orangepi:green:status/brightness"
)

// Observer toggles LEDs for the poll loop's phases: both on while checking,
// both off while sleeping and once done.
type Observer struct {
	paths  []string
	write  func(name string, data []byte, perm os.FileMode) error
	logger *slog.Logger
}

// New creates an Observer for the given brightness files.
func New(logger *slog.Logger, paths ...string) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{paths: paths, write: os.WriteFile, logger: logger}
}

// OrangePi3 creates an Observer for the Orange Pi 3 power and status LEDs.
func OrangePi3(logger *slog.Logger) *Observer {
	return New(logger, OrangePi3Power, OrangePi3Status)
}

// Checking turns the LEDs on.
func (o *Observer) Checking() {
	o.set(true)
}

// Idle turns the LEDs off.
func (o *Observer) Idle() {
	o.set(false)
}

func (o *Observer) set(on bool) {
	value := 0
	if on {
		value = 1
	}
	data := []byte(strconv.Itoa(value))

	for _, p := range o.paths {
		if err := o.write(p, data, 0o644); err != nil {
			o.logger.Debug("led write failed", "path", p, "error", err)
		}
	}
}
