// Package control implements the fixed request/response transaction used to
// fetch device-side sample indices from the outboard voice processor, over
// either an I2C repeated-start exchange or a USB vendor control transfer.
//
// The wire format is a single 3-byte request {resourceID, commandID,
// payloadLength} answered by a 25-byte payload: one status byte followed by
// three big-endian uint64 counters (current, keyword begin, keyword end). A
// nonzero status means the device is not ready and the transaction is retried
// immediately, with no backoff.
package control

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/soundgate-ai/kwd-bridge/pkg/kwd"
)

const (
	// ResourceID addresses the control resource on the device.
	ResourceID byte = 0xE0
	// CommandID selects the keyword-index command.
	CommandID byte = 0xAF
	// PayloadLen is the response length: one status byte plus three uint64 values.
	PayloadLen = 25
)

// Header returns the 3-byte request header sent before every read.
func Header() [3]byte {
	return [3]byte{ResourceID, CommandID, PayloadLen}
}

// ReadIndex decodes the big-endian uint64 starting at off. The device sends
// its counters in network byte order; on a little-endian host this is an
// 8-byte copy followed by a byte swap.
func ReadIndex(payload []byte, off int) uint64 {
	return binary.BigEndian.Uint64(payload[off : off+8])
}

// DecodeIndices unpacks a successful control payload.
func DecodeIndices(payload []byte) (kwd.DeviceIndices, error) {
	if len(payload) < PayloadLen {
		return kwd.DeviceIndices{}, fmt.Errorf("control: short payload: %d bytes", len(payload))
	}
	if payload[0] != 0 {
		return kwd.DeviceIndices{}, fmt.Errorf("control: device status %d", payload[0])
	}
	return kwd.DeviceIndices{
		Current: ReadIndex(payload, 1),
		Begin:   ReadIndex(payload, 9),
		End:     ReadIndex(payload, 17),
	}, nil
}

// EncodePayload builds a control payload. Only simulated devices and tests
// produce payloads on the host side.
func EncodePayload(status byte, idx kwd.DeviceIndices) []byte {
	payload := make([]byte, PayloadLen)
	payload[0] = status
	binary.BigEndian.PutUint64(payload[1:9], idx.Current)
	binary.BigEndian.PutUint64(payload[9:17], idx.Begin)
	binary.BigEndian.PutUint64(payload[17:25], idx.End)
	return payload
}

// fetchWithRetry drives one logical index fetch: it repeats the transfer
// until the device reports status 0. Transport errors are logged and retried
// like a busy status. maxAttempts 0 retries forever, which matches the device
// contract (the device eventually answers) but means a wedged bus blocks
// until the context is cancelled.
func fetchWithRetry(ctx context.Context, logger kwd.Logger, maxAttempts int, xfer func(payload []byte) error) (kwd.DeviceIndices, error) {
	payload := make([]byte, PayloadLen)
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return kwd.DeviceIndices{}, err
		}
		attempts++
		if err := xfer(payload); err != nil {
			logger.Error("control transfer failed", "attempt", attempts, "error", err)
		} else if payload[0] == 0 {
			return DecodeIndices(payload)
		}
		if maxAttempts > 0 && attempts >= maxAttempts {
			return kwd.DeviceIndices{}, fmt.Errorf("control: gave up after %d attempts: %w", attempts, kwd.ErrRetriesExhausted)
		}
	}
}
