// Package kwd bridges an externally triggered keyword signal (GPIO edge, HID
// keypress or a vendor engine callback) to the host audio capture pipeline,
// expressing the keyword boundaries in host stream sample coordinates.
//
// The outboard voice processor runs its own sample counter. On a trigger the
// detector fetches the device-side indices over a control channel and projects
// the keyword start onto the host stream cursor sampled at the same instant.
package kwd

import (
	"context"
	"time"
	"unsafe"
)

type Logger interface {
	Debug(msg string, args ...interface{})

	Info(msg string, args ...interface{})

	Warn(msg string, args ...interface{})

	Error(msg string, args ...interface{})
}

type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, args ...interface{}) {}
func (n *NoOpLogger) Info(msg string, args ...interface{})  {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})  {}
func (n *NoOpLogger) Error(msg string, args ...interface{}) {}

type Encoding string

const (
	EncodingLPCM Encoding = "LPCM"
)

type Endianness string

const (
	EndianLittle Endianness = "LITTLE"
	EndianBig    Endianness = "BIG"
)

// AudioFormat describes the host PCM stream. A Detector only accepts the
// exact format returned by DefaultAudioFormat; anything else fails creation.
type AudioFormat struct {
	Encoding       Encoding
	Endianness     Endianness
	SampleRateHz   int
	SampleSizeBits int
	Channels       int
}

// DefaultAudioFormat returns the only stream format the outboard device
// understands: 16 kHz, 16-bit, mono, little-endian LPCM.
func DefaultAudioFormat() AudioFormat {
	return AudioFormat{
		Encoding:       EncodingLPCM,
		Endianness:     EndianLittle,
		SampleRateHz:   16000,
		SampleSizeBits: 16,
		Channels:       1,
	}
}

// State is the detector lifecycle.
type State string

const (
	StateUninitialized State = "UNINITIALIZED"
	StateActive        State = "ACTIVE"
	StateShuttingDown  State = "SHUTTING_DOWN"
	StateStopped       State = "STOPPED"
)

// Detection reports one keyword occurrence in host stream sample coordinates.
type Detection struct {
	Keyword    string `json:"keyword"`
	BeginIndex uint64 `json:"begin_index"`
	EndIndex   uint64 `json:"end_index"`
}

// DeviceIndices are the raw sample counters reported by the outboard device,
// in its own clock domain.
type DeviceIndices struct {
	Current uint64
	Begin   uint64
	End     uint64
}

// StreamReader is a blocking cursor over the shared host audio stream.
// The cursor only moves forward; the single exception is the internal reset a
// reader performs when it falls behind the writer (see ErrOverrun).
type StreamReader interface {
	// Tell returns the cursor position as an absolute sample index.
	Tell() uint64

	// Read copies up to len(p) samples at the cursor and advances it.
	// It blocks until at least one sample is available or the timeout
	// elapses (ErrTimeout). A cursor that was lapped by the writer is
	// repositioned to the oldest retained sample and ErrOverrun is
	// returned; the following Read resumes normally.
	Read(p []int16, timeout time.Duration) (int, error)

	Close() error
}

// TriggerMonitor blocks until the outboard device signals that a keyword
// boundary is available. Wait returns nil exactly once per external signal.
type TriggerMonitor interface {
	Wait(ctx context.Context) error
	Name() string
	Close() error
}

// ControlChannel fetches the device-side sample indices after a trigger.
// Implementations retry the underlying transaction until the device reports
// success, so FetchIndices can block for as long as the device stays busy.
type ControlChannel interface {
	FetchIndices(ctx context.Context) (DeviceIndices, error)
	Close() error
}

// KeywordObserver is notified once per detection. Callbacks run on the
// detector's trigger goroutine and should return quickly.
type KeywordObserver interface {
	OnKeywordDetected(d Detection)
}

// KeywordObserverFunc adapts a function to the KeywordObserver interface.
type KeywordObserverFunc func(d Detection)

func (f KeywordObserverFunc) OnKeywordDetected(d Detection) { f(d) }

// StateObserver is notified on every detector state transition.
type StateObserver interface {
	OnStateChanged(s State)
}

// StateObserverFunc adapts a function to the StateObserver interface.
type StateObserverFunc func(s State)

func (f StateObserverFunc) OnStateChanged(s State) { f(s) }

type Config struct {
	// Keyword is the phrase reported with every detection. The actual
	// spotting runs on the outboard device; the host only labels it.
	Keyword string
	// MsPerPush is the drain granularity: how many milliseconds of audio
	// each background read consumes.
	MsPerPush int
	// ReadTimeout bounds a single blocking stream read in the drain loop.
	ReadTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Keyword:     "alexa",
		MsPerPush:   10,
		ReadTimeout: 1000 * time.Millisecond,
	}
}

// isByteSwapRequired reports whether samples in the given format would need
// byte swapping on this machine.
func isByteSwapRequired(f AudioFormat) bool {
	probe := uint16(1)
	littleHost := *(*byte)(unsafe.Pointer(&probe)) == 1
	if littleHost {
		return f.Endianness != EndianLittle
	}
	return f.Endianness != EndianBig
}

// isCompatibleFormat checks the format against the fixed tuple the device
// side consumes on its duplicate feed.
func isCompatibleFormat(f AudioFormat) bool {
	want := DefaultAudioFormat()
	return f.Encoding == want.Encoding &&
		f.Endianness == want.Endianness &&
		f.SampleRateHz == want.SampleRateHz &&
		f.SampleSizeBits == want.SampleSizeBits &&
		f.Channels == want.Channels
}
