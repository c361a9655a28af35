package control

import (
	"context"
	"fmt"

	"github.com/google/gousb"

	"github.com/soundgate-ai/kwd-bridge/pkg/kwd"
)

const (
	// DefaultUSBVendorID identifies the outboard processor on the USB bus.
	DefaultUSBVendorID gousb.ID = 0x20B1
	// DefaultUSBProductID is the reference firmware's product ID.
	DefaultUSBProductID gousb.ID = 0x0018
)

// USBChannel performs the control transaction as a single vendor control
// transfer (IN, device recipient) with the command and resource IDs carried
// in wValue and wIndex.
type USBChannel struct {
	// MaxAttempts caps the status-busy retry loop. 0 retries forever.
	MaxAttempts int

	ctx    *gousb.Context
	dev    *gousb.Device
	logger kwd.Logger
}

// OpenUSB enumerates the bus and opens the first device matching vid:pid.
func OpenUSB(vid, pid gousb.ID) (*USBChannel, error) {
	return OpenUSBWithLogger(vid, pid, &kwd.NoOpLogger{})
}

func OpenUSBWithLogger(vid, pid gousb.ID, logger kwd.Logger) (*USBChannel, error) {
	if logger == nil {
		logger = &kwd.NoOpLogger{}
	}
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("control: opening usb device failed: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("control: usb device %04x:%04x not found", uint16(vid), uint16(pid))
	}
	if err := dev.SetAutoDetach(true); err != nil {
		logger.Warn("usb auto-detach failed", "error", err)
	}
	logger.Info("usb control channel open", "vid", uint16(vid), "pid", uint16(pid))
	return &USBChannel{
		ctx:    ctx,
		dev:    dev,
		logger: logger,
	}, nil
}

func (c *USBChannel) FetchIndices(ctx context.Context) (kwd.DeviceIndices, error) {
	return fetchWithRetry(ctx, c.logger, c.MaxAttempts, func(payload []byte) error {
		n, err := c.dev.Control(
			gousb.ControlIn|gousb.ControlVendor|gousb.ControlDevice,
			0,
			uint16(CommandID),
			uint16(ResourceID),
			payload,
		)
		if err != nil {
			return err
		}
		if n != PayloadLen {
			return fmt.Errorf("short transfer: %d bytes", n)
		}
		return nil
	})
}

func (c *USBChannel) Close() error {
	if err := c.dev.Close(); err != nil {
		c.ctx.Close()
		return err
	}
	return c.ctx.Close()
}
