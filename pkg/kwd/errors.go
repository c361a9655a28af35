package kwd

import "errors"

// Sentinel errors for creation failures and the StreamReader contract.
var (
	// ErrNilStream is returned when a detector is created without a stream reader
	ErrNilStream = errors.New("audio stream reader is nil")

	// ErrNilMonitor is returned when a detector is created without a trigger monitor
	ErrNilMonitor = errors.New("trigger monitor is nil")

	// ErrByteSwapRequired is returned when the stream format does not match host endianness
	ErrByteSwapRequired = errors.New("audio format requires byte swapping on this host")

	// ErrIncompatibleFormat is returned when the stream format deviates from the required tuple
	ErrIncompatibleFormat = errors.New("audio format incompatible with keyword detector")

	// ErrOverrun is returned by a stream read whose cursor was lapped by the writer
	ErrOverrun = errors.New("stream reader overrun")

	// ErrTimeout is returned by a stream read that saw no data before its deadline
	ErrTimeout = errors.New("stream read timed out")

	// ErrStreamClosed is returned by reads against a closed stream
	ErrStreamClosed = errors.New("stream closed")

	// ErrRetriesExhausted is returned when a control transaction hits its attempt cap
	ErrRetriesExhausted = errors.New("control transaction retries exhausted")
)
