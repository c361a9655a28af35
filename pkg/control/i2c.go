package control

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/soundgate-ai/kwd-bridge/pkg/kwd"
)

const (
	// DefaultI2CBus is the bus the device hangs off on the reference board.
	DefaultI2CBus = "1"
	// DefaultI2CAddr is the device's 7-bit address.
	DefaultI2CAddr uint16 = 0x2C
)

// I2CChannel performs the control transaction as a write-then-read with
// repeated start on a physical I2C bus.
type I2CChannel struct {
	// MaxAttempts caps the status-busy retry loop. 0 retries forever.
	MaxAttempts int

	bus    i2c.BusCloser
	dev    *i2c.Dev
	logger kwd.Logger
}

// OpenI2C opens the named bus and binds the device address. busName may be a
// number ("1"), a device path ("/dev/i2c-1") or empty for the first bus.
func OpenI2C(busName string, addr uint16) (*I2CChannel, error) {
	return OpenI2CWithLogger(busName, addr, &kwd.NoOpLogger{})
}

func OpenI2CWithLogger(busName string, addr uint16, logger kwd.Logger) (*I2CChannel, error) {
	if logger == nil {
		logger = &kwd.NoOpLogger{}
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("control: host init failed: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("control: opening i2c bus %q failed: %w", busName, err)
	}
	logger.Info("i2c control channel open", "bus", bus.String(), "addr", addr)
	return &I2CChannel{
		bus:    bus,
		dev:    &i2c.Dev{Bus: bus, Addr: addr},
		logger: logger,
	}, nil
}

func (c *I2CChannel) FetchIndices(ctx context.Context) (kwd.DeviceIndices, error) {
	hdr := Header()
	return fetchWithRetry(ctx, c.logger, c.MaxAttempts, func(payload []byte) error {
		// Tx issues the write and the read in one transaction, so the
		// bus sees a repeated start with no stop bit in between.
		return c.dev.Tx(hdr[:], payload)
	})
}

func (c *I2CChannel) Close() error {
	return c.bus.Close()
}
