//go:build !linux

package main

import (
	"errors"

	"github.com/soundgate-ai/kwd-bridge/pkg/kwd"
)

func openHIDFromEnv() (kwd.TriggerMonitor, error) {
	return nil, errors.New("the hid trigger requires linux input event devices")
}
