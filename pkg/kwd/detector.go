package kwd

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

const hertzPerKilohertz = 1000

// Detector owns the two goroutines of the keyword bridge: one continuously
// drains the host audio stream so the reader cursor keeps pace with the
// writer, the other blocks on the trigger monitor and, on each fire, runs the
// control transaction and index translation before notifying observers.
type Detector struct {
	reader   StreamReader
	monitor  TriggerMonitor
	control  ControlChannel
	keywords *KeywordNotifier
	states   *StateNotifier
	config   Config
	logger   Logger

	samplesPerPush int

	// shuttingDown is the only flag shared across the two goroutines.
	shuttingDown atomic.Bool
	// overrunEpoch increments every time the drain loop observes an
	// overrun. A detection computed under a stale epoch is discarded.
	overrunEpoch atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stateMu sync.Mutex
	state   State

	closeOnce sync.Once
}

// New creates a detector, transitions it to ACTIVE and starts both
// goroutines. The control channel may be nil for trigger sources that carry
// no device-side indices; detections
// then report the host cursor for both boundaries.
func New(reader StreamReader, format AudioFormat, monitor TriggerMonitor, control ControlChannel, config Config) (*Detector, error) {
	return NewWithObservers(reader, format, monitor, control, nil, nil, config)
}

// NewWithObservers creates a detector wired to existing notifiers. Either
// notifier may be nil, in which case an empty one is created; observers can
// still be registered afterwards through Keywords and States.
func NewWithObservers(
	reader StreamReader,
	format AudioFormat,
	monitor TriggerMonitor,
	control ControlChannel,
	keywords *KeywordNotifier,
	states *StateNotifier,
	config Config,
) (*Detector, error) {
	return NewWithLogger(reader, format, monitor, control, keywords, states, config, &NoOpLogger{})
}

// NewWithLogger creates a detector with a custom logger.
func NewWithLogger(
	reader StreamReader,
	format AudioFormat,
	monitor TriggerMonitor,
	control ControlChannel,
	keywords *KeywordNotifier,
	states *StateNotifier,
	config Config,
	logger Logger,
) (*Detector, error) {
	if reader == nil {
		return nil, ErrNilStream
	}
	if monitor == nil {
		return nil, ErrNilMonitor
	}
	if isByteSwapRequired(format) {
		return nil, ErrByteSwapRequired
	}
	if !isCompatibleFormat(format) {
		return nil, ErrIncompatibleFormat
	}
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if keywords == nil {
		keywords = NewKeywordNotifier()
	}
	if states == nil {
		states = NewStateNotifier()
	}
	if config.MsPerPush <= 0 {
		config.MsPerPush = DefaultConfig().MsPerPush
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = DefaultConfig().ReadTimeout
	}
	if config.Keyword == "" {
		config.Keyword = DefaultConfig().Keyword
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Detector{
		reader:         reader,
		monitor:        monitor,
		control:        control,
		keywords:       keywords,
		states:         states,
		config:         config,
		logger:         logger,
		samplesPerPush: format.SampleRateHz / hertzPerKilohertz * config.MsPerPush,
		ctx:            ctx,
		cancel:         cancel,
		state:          StateUninitialized,
	}

	// ACTIVE is published before either goroutine exists, so a stream
	// failure on the very first read still observes the full transition
	// order.
	d.setState(StateActive)

	d.wg.Add(2)
	go d.drainLoop()
	go d.detectionLoop()
	return d, nil
}

// Keywords returns the notifier carrying keyword detections.
func (d *Detector) Keywords() *KeywordNotifier { return d.keywords }

// States returns the notifier carrying state transitions.
func (d *Detector) States() *StateNotifier { return d.states }

// State returns the current lifecycle state.
func (d *Detector) State() State {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.state
}

func (d *Detector) setState(s State) {
	d.stateMu.Lock()
	if d.state == s {
		d.stateMu.Unlock()
		return
	}
	d.state = s
	d.stateMu.Unlock()
	d.states.Notify(s)
}

// Close sets the shutdown flag, joins both goroutines and releases the device
// handles. It always returns only after both goroutines have stopped.
func (d *Detector) Close() error {
	d.closeOnce.Do(func() {
		d.beginShutdown()
		d.wg.Wait()
		if d.control != nil {
			if err := d.control.Close(); err != nil {
				d.logger.Warn("closing control channel failed", "error", err)
			}
		}
		if err := d.monitor.Close(); err != nil {
			d.logger.Warn("closing trigger monitor failed", "error", err)
		}
		d.setState(StateStopped)
	})
	return nil
}

// beginShutdown flips the shared flag. The cancellation only unblocks waits
// that poll or select; a trigger monitor stuck in a raw device read returns
// on the transport's own schedule, which bounds shutdown latency.
func (d *Detector) beginShutdown() {
	if d.shuttingDown.CompareAndSwap(false, true) {
		d.setState(StateShuttingDown)
		d.cancel()
	}
}

// drainLoop keeps the reader cursor advancing at a fixed cadence. The samples
// themselves are discarded: recognition happens on the device's duplicate
// feed, the host only needs a live cursor and relief of ring backpressure.
func (d *Detector) drainLoop() {
	defer d.wg.Done()
	buf := make([]int16, d.samplesPerPush)
	for !d.shuttingDown.Load() {
		_, err := d.reader.Read(buf, d.config.ReadTimeout)
		switch {
		case err == nil:
		case errors.Is(err, ErrTimeout):
			// No data within the window; keep polling.
		case errors.Is(err, ErrOverrun):
			// Not fatal, but every index anchored before this instant
			// is invalid. The reader has already repositioned itself.
			d.overrunEpoch.Add(1)
			d.logger.Warn("stream overrun, re-anchoring reader cursor", "tell", d.reader.Tell())
		case errors.Is(err, ErrStreamClosed):
			// Orderly teardown: the cursor or stream was closed under a
			// blocked read.
			d.beginShutdown()
			return
		default:
			if d.shuttingDown.Load() {
				return
			}
			d.logger.Error("unrecoverable stream error, shutting down", "error", err)
			d.beginShutdown()
			return
		}
	}
}

// detectionLoop blocks on the trigger monitor and services each fire.
func (d *Detector) detectionLoop() {
	defer d.wg.Done()
	defer func() {
		if err := d.reader.Close(); err != nil {
			d.logger.Warn("closing stream reader failed", "error", err)
		}
	}()

	startTime := time.Now()
	var prevFire time.Time

	for !d.shuttingDown.Load() {
		if err := d.monitor.Wait(d.ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			d.logger.Error("trigger monitor failed, shutting down", "monitor", d.monitor.Name(), "error", err)
			d.beginShutdown()
			return
		}

		now := time.Now()
		d.logger.Debug("trigger fired",
			"monitor", d.monitor.Name(),
			"sinceStartMs", now.Sub(startTime).Milliseconds())
		if !prevFire.IsZero() {
			d.logger.Debug("trigger interval", "sincePreviousFireMs", now.Sub(prevFire).Milliseconds())
		}
		prevFire = now

		d.handleTrigger()
	}
}

// handleTrigger runs the control transaction and index translation for one
// fire, then notifies keyword observers. Runs on the trigger goroutine, so
// detection latency is dominated by the control channel's retry loop.
func (d *Detector) handleTrigger() {
	epoch := d.overrunEpoch.Load()
	hostCurrent := d.reader.Tell()

	var begin, end uint64
	if d.control != nil {
		fetchStart := time.Now()
		dev, err := d.control.FetchIndices(d.ctx)
		if err != nil {
			if d.ctx.Err() == nil {
				d.logger.Error("control transaction failed", "error", err)
			}
			return
		}
		d.logger.Debug("control transaction done", "tookUs", time.Since(fetchStart).Microseconds())

		begin, end = TranslateIndices(hostCurrent, dev)
		d.logger.Debug("keyword indices",
			"hostCurrentIndex", hostCurrent,
			"deviceCurrentIndex", dev.Current,
			"deviceBeginIndex", dev.Begin,
			"deviceEndIndex", dev.End,
			"hostBeginIndex", begin,
			"hostEndIndex", end)
	} else {
		// No control channel: the trigger carries no device indices, so
		// the best available boundary is the cursor at the fire instant.
		begin, end = hostCurrent, hostCurrent
	}

	if d.overrunEpoch.Load() != epoch {
		// The drain loop hit an overrun while we were fetching; the host
		// cursor this detection is anchored to no longer maps to valid
		// stream data.
		d.logger.Warn("dropping detection computed across an overrun",
			"hostBeginIndex", begin, "hostEndIndex", end)
		return
	}

	d.keywords.Notify(Detection{
		Keyword:    d.config.Keyword,
		BeginIndex: begin,
		EndIndex:   end,
	})
}
