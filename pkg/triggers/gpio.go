// Package triggers provides the trigger monitor variants: a GPIO pin poll, a
// HID key-event wait, and a callback adapter for vendor engines that signal
// detections in-process. All three satisfy the same contract: Wait blocks
// until exactly one fire.
package triggers

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

const (
	// DefaultGPIOPin is BCM 27, the interrupt line on the reference board.
	DefaultGPIOPin = "GPIO27"
	// DefaultPollInterval is the pin sampling cadence.
	DefaultPollInterval = 2 * time.Millisecond
)

// edgeTracker turns a stream of pin levels into falling-edge events. It fires
// on a high-to-low transition and never on a sustained low level, so a held
// line produces exactly one fire.
type edgeTracker struct {
	last gpio.Level
}

func (e *edgeTracker) falling(now gpio.Level) bool {
	fired := e.last == gpio.High && now == gpio.Low
	e.last = now
	return fired
}

// GPIOMonitor polls a digital input pin and fires on each falling edge. The
// line is active-low: the device pulls it down when a keyword boundary is
// ready.
type GPIOMonitor struct {
	pin  gpio.PinIn
	poll time.Duration
	edge edgeTracker
}

// OpenGPIO configures pinName as a pulled-up input and returns a monitor
// polling it at DefaultPollInterval.
func OpenGPIO(pinName string) (*GPIOMonitor, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("triggers: host init failed: %w", err)
	}
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("triggers: gpio pin %q not found", pinName)
	}
	if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("triggers: configuring pin %q as input failed: %w", pinName, err)
	}
	return newGPIOMonitor(pin, DefaultPollInterval), nil
}

func newGPIOMonitor(pin gpio.PinIn, poll time.Duration) *GPIOMonitor {
	return &GPIOMonitor{
		pin:  pin,
		poll: poll,
		// Assume the line idles high so a pin already held low at start
		// still fires once.
		edge: edgeTracker{last: gpio.High},
	}
}

func (m *GPIOMonitor) Wait(ctx context.Context) error {
	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if m.edge.falling(m.pin.Read()) {
				return nil
			}
		}
	}
}

func (m *GPIOMonitor) Name() string {
	return "gpio"
}

func (m *GPIOMonitor) Close() error {
	return m.pin.Halt()
}
