//go:build linux

package triggers

import (
	"context"
	"fmt"

	"github.com/holoplot/go-evdev"
)

const (
	// DefaultHIDPath is the input device the reference firmware enumerates as.
	DefaultHIDPath = "/dev/input/event0"
	// DefaultHIDKey is the key code the firmware emits on detection.
	DefaultHIDKey = evdev.KEY_T
)

// HIDMonitor blocks on input events from a character device and fires on a
// key-down of the configured trigger key. Key-up and autorepeat events for
// the same key are ignored, as are all other keys.
type HIDMonitor struct {
	dev *evdev.InputDevice
	key evdev.EvCode
}

// OpenHID opens the input device at a fixed path.
func OpenHID(path string, key evdev.EvCode) (*HIDMonitor, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("triggers: opening hid device %q failed: %w", path, err)
	}
	return &HIDMonitor{dev: dev, key: key}, nil
}

// OpenHIDByName enumerates /dev/input/* and opens the first device whose
// name matches.
func OpenHIDByName(name string, key evdev.EvCode) (*HIDMonitor, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("triggers: listing input devices failed: %w", err)
	}
	for _, p := range paths {
		if p.Name == name {
			return OpenHID(p.Path, key)
		}
	}
	return nil, fmt.Errorf("triggers: no input device named %q", name)
}

// isTriggerEvent reports whether ev is a key-down of the trigger key.
// Value 1 is key-down; 0 is key-up and 2 is autorepeat.
func isTriggerEvent(ev *evdev.InputEvent, key evdev.EvCode) bool {
	return ev.Type == evdev.EV_KEY && ev.Code == key && ev.Value == 1
}

// Wait blocks on the next input events until the trigger key goes down.
// A read blocked inside the kernel returns on the device's own schedule, so
// cancellation is observed between events.
func (m *HIDMonitor) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, err := m.dev.ReadOne()
		if err != nil {
			return fmt.Errorf("triggers: hid read failed: %w", err)
		}
		if isTriggerEvent(ev, m.key) {
			return nil
		}
	}
}

func (m *HIDMonitor) Name() string {
	return "hid"
}

func (m *HIDMonitor) Close() error {
	return m.dev.Close()
}
