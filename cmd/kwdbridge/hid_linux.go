//go:build linux

package main

import (
	"os"

	"github.com/soundgate-ai/kwd-bridge/pkg/kwd"
	"github.com/soundgate-ai/kwd-bridge/pkg/triggers"
)

// openHIDFromEnv resolves the HID monitor from KWD_HID_NAME (enumeration by
// device name) or KWD_HID_PATH (fixed path).
func openHIDFromEnv() (kwd.TriggerMonitor, error) {
	if name := os.Getenv("KWD_HID_NAME"); name != "" {
		return triggers.OpenHIDByName(name, triggers.DefaultHIDKey)
	}
	path := os.Getenv("KWD_HID_PATH")
	if path == "" {
		path = triggers.DefaultHIDPath
	}
	return triggers.OpenHID(path, triggers.DefaultHIDKey)
}
