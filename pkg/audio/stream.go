// Package audio provides the shared host-side sample stream: a fixed-capacity
// ring of 16-bit PCM samples with one writer and independent blocking reader
// cursors, plus a WAV container encoder for dumping captured windows.
package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/soundgate-ai/kwd-bridge/pkg/kwd"
)

// Stream is a ring buffer of int16 samples. The writer never blocks: when the
// ring is full the oldest samples are overwritten and lagging readers observe
// an overrun on their next read. Sample positions are absolute 64-bit indices
// counted from stream creation, which is what makes cursor arithmetic across
// the detector's two goroutines possible.
type Stream struct {
	mu     sync.Mutex
	buf    []int16
	tail   uint64 // absolute index of the next sample to be written
	notify chan struct{}
	closed bool
	err    error
}

// NewStream creates a stream retaining the most recent capacity samples.
func NewStream(capacity int) *Stream {
	if capacity <= 0 {
		capacity = 1
	}
	return &Stream{
		buf:    make([]int16, capacity),
		notify: make(chan struct{}),
	}
}

// Write appends samples, overwriting the oldest data when the ring is full.
// It never blocks and always consumes all of p.
func (s *Stream) Write(p []int16) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("audio: write to closed stream: %w", s.err)
	}

	src := p
	if len(src) > len(s.buf) {
		// Only the newest window can survive anyway.
		s.tail += uint64(len(src) - len(s.buf))
		src = src[len(src)-len(s.buf):]
	}
	for len(src) > 0 {
		at := int(s.tail % uint64(len(s.buf)))
		n := copy(s.buf[at:], src)
		s.tail += uint64(n)
		src = src[n:]
	}

	// Wake every blocked reader.
	close(s.notify)
	s.notify = make(chan struct{})
	return len(p), nil
}

// Tail returns the absolute index one past the newest sample.
func (s *Stream) Tail() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tail
}

// CloseWithError closes the stream. Blocked and future reads return err.
func (s *Stream) CloseWithError(err error) error {
	if err == nil {
		err = kwd.ErrStreamClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.err = err
	close(s.notify)
	return nil
}

// Close closes the stream with ErrStreamClosed.
func (s *Stream) Close() error {
	return s.CloseWithError(nil)
}

// NewReader returns a cursor positioned at the live edge of the stream.
func (s *Stream) NewReader() *Reader {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Reader{stream: s, cur: s.tail}
}

// Reader is a blocking cursor over a Stream. It satisfies the detector's
// StreamReader contract. A Reader is safe for concurrent Tell and Read, but
// only one goroutine should call Read at a time.
type Reader struct {
	stream *Stream
	cur    uint64
	closed bool
}

// Tell returns the cursor as an absolute sample index.
func (r *Reader) Tell() uint64 {
	r.stream.mu.Lock()
	defer r.stream.mu.Unlock()
	return r.cur
}

// Read copies up to len(p) samples at the cursor, blocking until data arrives
// or the timeout elapses. When the writer has lapped the cursor it is moved
// forward to the oldest retained sample and kwd.ErrOverrun is returned; the
// next Read continues from there.
func (r *Reader) Read(p []int16, timeout time.Duration) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	s := r.stream
	s.mu.Lock()
	for {
		if r.closed {
			s.mu.Unlock()
			return 0, kwd.ErrStreamClosed
		}
		if s.closed {
			s.mu.Unlock()
			return 0, s.err
		}

		capacity := uint64(len(s.buf))
		if s.tail-r.cur > capacity {
			// Lapped: everything between cur and tail-capacity is gone.
			r.cur = s.tail - capacity
			s.mu.Unlock()
			return 0, kwd.ErrOverrun
		}
		if avail := s.tail - r.cur; avail > 0 {
			n := len(p)
			if uint64(n) > avail {
				n = int(avail)
			}
			at := int(r.cur % capacity)
			copied := copy(p[:n], s.buf[at:])
			if copied < n {
				copied += copy(p[copied:n], s.buf[:])
			}
			r.cur += uint64(copied)
			s.mu.Unlock()
			return copied, nil
		}

		notify := s.notify
		s.mu.Unlock()
		select {
		case <-notify:
		case <-timer.C:
			return 0, kwd.ErrTimeout
		}
		s.mu.Lock()
	}
}

// Close detaches the cursor. The stream itself stays open for other readers.
func (r *Reader) Close() error {
	r.stream.mu.Lock()
	defer r.stream.mu.Unlock()
	r.closed = true
	return nil
}
