package control

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/soundgate-ai/kwd-bridge/pkg/kwd"
)

func TestHeader(t *testing.T) {
	hdr := Header()
	if hdr[0] != 0xE0 {
		t.Errorf("Expected resource ID 0xE0, got 0x%02X", hdr[0])
	}
	if hdr[1] != 0xAF {
		t.Errorf("Expected command ID 0xAF, got 0x%02X", hdr[1])
	}
	if hdr[2] != 25 {
		t.Errorf("Expected payload length 25, got %d", hdr[2])
	}
}

func TestDecodeIndices(t *testing.T) {
	payload := make([]byte, PayloadLen)
	binary.BigEndian.PutUint64(payload[1:9], 123456789)
	binary.BigEndian.PutUint64(payload[9:17], 100000000)
	binary.BigEndian.PutUint64(payload[17:25], 123000000)

	idx, err := DecodeIndices(payload)
	if err != nil {
		t.Fatalf("Expected decode to succeed, got %v", err)
	}
	if idx.Current != 123456789 {
		t.Errorf("Expected current 123456789, got %d", idx.Current)
	}
	if idx.Begin != 100000000 {
		t.Errorf("Expected begin 100000000, got %d", idx.Begin)
	}
	if idx.End != 123000000 {
		t.Errorf("Expected end 123000000, got %d", idx.End)
	}
}

func TestDecodeIndicesRejectsShortPayload(t *testing.T) {
	if _, err := DecodeIndices(make([]byte, PayloadLen-1)); err == nil {
		t.Error("Expected an error for a short payload")
	}
}

func TestDecodeIndicesRejectsBusyStatus(t *testing.T) {
	payload := make([]byte, PayloadLen)
	payload[0] = 3
	if _, err := DecodeIndices(payload); err == nil {
		t.Error("Expected an error for a nonzero status")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	// Boundary counter values exercise every byte position of the swap.
	tests := []kwd.DeviceIndices{
		{Current: 0, Begin: 0, End: 0},
		{Current: 1, Begin: 1, End: 1},
		{Current: 0xFFFFFFFFFFFFFFFF, Begin: 0xFFFFFFFFFFFFFFFF, End: 0xFFFFFFFFFFFFFFFF},
		{Current: 1 << 40, Begin: 7, End: 1<<40 + 9},
	}
	for _, want := range tests {
		idx, err := DecodeIndices(EncodePayload(0, want))
		if err != nil {
			t.Fatalf("Expected decode of %+v to succeed, got %v", want, err)
		}
		if idx != want {
			t.Errorf("Expected %+v, got %+v", want, idx)
		}
	}
}

func TestReadIndexIsBigEndian(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	if got := ReadIndex(raw, 0); got != 0x0102030405060708 {
		t.Errorf("Expected 0x0102030405060708, got 0x%016X", got)
	}
}

func TestLoopbackRetriesBusyStatus(t *testing.T) {
	lb := NewLoopback()
	lb.SetIndices(kwd.DeviceIndices{Current: 500, Begin: 100, End: 500})
	lb.SetBusy(3)

	idx, err := lb.FetchIndices(context.Background())
	if err != nil {
		t.Fatalf("Expected fetch to succeed after busy retries, got %v", err)
	}
	if idx.Current != 500 {
		t.Errorf("Expected current 500, got %d", idx.Current)
	}
	if lb.Transfers() != 4 {
		t.Errorf("Expected 4 transfers (3 busy + 1 good), got %d", lb.Transfers())
	}
}

func TestLoopbackMaxAttempts(t *testing.T) {
	lb := NewLoopback()
	lb.MaxAttempts = 2
	lb.SetBusy(5)

	_, err := lb.FetchIndices(context.Background())
	if !errors.Is(err, kwd.ErrRetriesExhausted) {
		t.Errorf("Expected ErrRetriesExhausted, got %v", err)
	}
	if lb.Transfers() != 2 {
		t.Errorf("Expected exactly 2 transfers, got %d", lb.Transfers())
	}
}

func TestFetchWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := fetchWithRetry(ctx, &kwd.NoOpLogger{}, 0, func(payload []byte) error {
			payload[0] = 1 // forever busy
			return nil
		})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected cancellation to stop the retry loop")
	}
}

func TestFetchWithRetryRecoversFromTransportError(t *testing.T) {
	calls := 0
	idx, err := fetchWithRetry(context.Background(), &kwd.NoOpLogger{}, 0, func(payload []byte) error {
		calls++
		if calls < 3 {
			return errors.New("bus glitch")
		}
		copy(payload, EncodePayload(0, kwd.DeviceIndices{Current: 42, Begin: 1, End: 42}))
		return nil
	})
	if err != nil {
		t.Fatalf("Expected fetch to recover, got %v", err)
	}
	if idx.Current != 42 {
		t.Errorf("Expected current 42, got %d", idx.Current)
	}
	if calls != 3 {
		t.Errorf("Expected 3 transfer attempts, got %d", calls)
	}
}
