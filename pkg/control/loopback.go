package control

import (
	"context"
	"sync"

	"github.com/soundgate-ai/kwd-bridge/pkg/kwd"
)

// Loopback is an in-process control channel for demos and tests that run
// without hardware. It answers transactions from a settable set of indices
// and can report a busy status for a configurable number of attempts, which
// exercises the same retry path the physical transports use.
type Loopback struct {
	// MaxAttempts caps the status-busy retry loop. 0 retries forever.
	MaxAttempts int

	mu       sync.Mutex
	indices  kwd.DeviceIndices
	busyLeft int
	xfers    int
}

func NewLoopback() *Loopback {
	return &Loopback{}
}

// SetIndices stores the device counters the next transaction will report.
func (l *Loopback) SetIndices(idx kwd.DeviceIndices) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.indices = idx
}

// SetBusy makes the next n transactions answer with a nonzero status.
func (l *Loopback) SetBusy(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.busyLeft = n
}

// Transfers reports how many transactions were issued against the device.
func (l *Loopback) Transfers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.xfers
}

func (l *Loopback) FetchIndices(ctx context.Context) (kwd.DeviceIndices, error) {
	return fetchWithRetry(ctx, &kwd.NoOpLogger{}, l.MaxAttempts, func(payload []byte) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.xfers++
		status := byte(0)
		if l.busyLeft > 0 {
			l.busyLeft--
			status = 1
		}
		// Round-trip through the real encoding so the wire path is the
		// one the physical transports exercise.
		copy(payload, EncodePayload(status, l.indices))
		return nil
	})
}

func (l *Loopback) Close() error {
	return nil
}
